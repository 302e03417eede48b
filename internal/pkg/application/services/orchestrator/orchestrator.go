// Package orchestrator implements the query orchestrator: it runs one
// federated query to completion, fanning it out to every
// member database of the query's gateway in parallel, bounded by a
// configurable concurrency limit, and composing a per-database timeout
// with an overall gateway deadline.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/merger"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/queries"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/registry"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/upstream"
	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/o11y/logging"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var tracer = otel.Tracer("optimade-gateway/orchestrator")

// Config carries the orchestrator's two deadlines (per database and
// gateway-wide; any request-level deadline arrives with the caller's
// ctx), its fan-out concurrency limit, and the gateway's public base
// URL used to anchor links.next.
type Config struct {
	PerDBTimeout           time.Duration
	GatewayTimeout         time.Duration
	MaxConcurrentUpstreams int64
	BaseURL                string
}

// Orchestrator is the public contract: Run executes to completion
// and is safe to invoke either synchronously (the caller awaits it) or
// detached in the background (the caller returns immediately and
// clients poll the query store).
type Orchestrator interface {
	Run(ctx context.Context, query domain.Query, requestURL string) (domain.Query, error)
}

type orchestrator struct {
	registry registry.Registry
	queries  queries.Store
	client   upstream.Client
	cfg      Config
	log      zerolog.Logger
}

// New builds an Orchestrator.
func New(reg registry.Registry, queryStore queries.Store, client upstream.Client, cfg Config, log zerolog.Logger) Orchestrator {
	return &orchestrator{registry: reg, queries: queryStore, client: client, cfg: cfg, log: log}
}

func (o *orchestrator) Run(ctx context.Context, query domain.Query, requestURL string) (domain.Query, error) {
	gateway, err := o.registry.GetGateway(ctx, query.GatewayID)
	if err != nil {
		return domain.Query{}, fmt.Errorf("resolving gateway %s: %w", query.GatewayID, err)
	}

	query, err = o.queries.Advance(ctx, query.ID, domain.QueryStateStarted, nil)
	if err != nil {
		return domain.Query{}, fmt.Errorf("advancing to started: %w", err)
	}

	// ctx carries whatever cancellation policy the caller wants: the
	// inbound request's context for run_sync (a client disconnect must
	// cancel the fan-out), or a context rooted at the process for
	// run_async (a client disconnect must not). The orchestrator itself
	// is agnostic to which.
	gatewayCtx, cancel := context.WithTimeout(ctx, o.cfg.GatewayTimeout)
	defer cancel()

	sources := o.fanOut(gatewayCtx, query, gateway)

	// Handlers pass the request URL as received (path and query only);
	// anchor it at the gateway's public base URL for links.next.
	if parsed, err := url.Parse(requestURL); err == nil && !parsed.IsAbs() {
		requestURL = strings.TrimSuffix(o.cfg.BaseURL, "/") + requestURL
	}

	merged := merger.Merge(merger.Request{
		Representation: representation(query, requestURL),
		RequestURL:     requestURL,
		PageLimit:      query.QueryParameters.PageLimit,
		PageOffset:     query.QueryParameters.PageOffset,
	}, sources)

	finished, err := o.queries.Advance(ctx, query.ID, domain.QueryStateFinished, &merged)
	if err != nil {
		return domain.Query{}, fmt.Errorf("advancing to finished: %w", err)
	}

	return finished, nil
}

// fanOut spawns one task per member database, in declared order,
// bounded by o.cfg.MaxConcurrentUpstreams concurrent in flight (FIFO
// admission via a weighted semaphore), and returns every outcome
// regardless of per-database success or failure. A per-database error
// never aborts the fan-out.
func (o *orchestrator) fanOut(ctx context.Context, query domain.Query, gateway domain.Gateway) []merger.Source {
	sem := semaphore.NewWeighted(o.cfg.MaxConcurrentUpstreams)
	sources := make([]merger.Source, len(gateway.Databases))

	var startOnce sync.Once
	markStarted := func() {
		startOnce.Do(func() {
			advanceCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := o.queries.Advance(advanceCtx, query.ID, domain.QueryStateInProgress, nil); err != nil {
				o.log.Error().Err(err).Str("query_id", query.ID).Msg("failed to advance query to in_progress")
			}
		})
	}

	group, groupCtx := errgroup.WithContext(ctx)

	for i, db := range gateway.Databases {
		i, db := i, db
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				sources[i] = merger.Source{
					DatabaseID: db.ID,
					Outcome:    upstream.Outcome{TransportErr: &upstream.TransportError{Kind: upstream.KindTimeout, Message: err.Error()}},
				}
				return nil
			}
			defer sem.Release(1)

			markStarted()

			sources[i] = merger.Source{
				DatabaseID: db.ID,
				Outcome:    o.fetchOne(groupCtx, db, query),
			}
			return nil
		})
	}

	// Every task above always returns nil: a per-database failure is
	// recorded as an Outcome, never as a Go error, so Wait can never
	// fail and the errgroup's context is never cancelled early by a
	// single database's problem.
	_ = group.Wait()

	return sources
}

func (o *orchestrator) fetchOne(ctx context.Context, db domain.Database, query domain.Query) upstream.Outcome {
	ctx, span := tracer.Start(ctx, "fetch-upstream")
	defer func() { tracing.RecordAnyErrorAndEndSpan(nil, span) }()

	log := logging.GetFromContext(ctx)
	log.Debug().Str("database_id", db.ID).Str("endpoint", query.Endpoint).Msg("querying upstream")

	return o.client.Fetch(ctx, db, query.Endpoint, paramsToValues(query.QueryParameters), o.cfg.PerDBTimeout)
}

// paramsToValues forwards the query's parameters to every upstream
// verbatim; filter is never parsed by the gateway.
func paramsToValues(params domain.QueryParameters) url.Values {
	values := url.Values{}
	if params.Filter != "" {
		values.Set("filter", params.Filter)
	}
	if params.ResponseFormat != "" {
		values.Set("response_format", params.ResponseFormat)
	}
	if len(params.ResponseFields) > 0 {
		joined := ""
		for i, f := range params.ResponseFields {
			if i > 0 {
				joined += ","
			}
			joined += f
		}
		values.Set("response_fields", joined)
	}
	if params.Sort != "" {
		values.Set("sort", params.Sort)
	}
	if params.PageLimit > 0 {
		values.Set("page_limit", strconv.Itoa(params.PageLimit))
	}
	if params.PageOffset > 0 {
		values.Set("page_offset", strconv.Itoa(params.PageOffset))
	}
	if params.Include != "" {
		values.Set("include", params.Include)
	}
	return values
}

// representation renders the literal query string as received by the
// gateway, for meta.query.representation.
func representation(query domain.Query, requestURL string) string {
	rawQuery := paramsToValues(query.QueryParameters).Encode()
	if parsed, err := url.Parse(requestURL); err == nil {
		rawQuery = parsed.RawQuery
	}
	return fmt.Sprintf("/%s?%s", query.Endpoint, rawQuery)
}
