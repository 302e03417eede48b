package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/orchestrator"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/queries"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/registry"
	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/rs/zerolog"
)

type queryResponse struct {
	Data domain.Query `json:"data"`
}

// Deps bundles the services the query/search handlers share, since all
// three (sync listing, async query, search) perform the same
// "resolve gateway, build a query record, run the orchestrator" steps.
type Deps struct {
	Registry     registry.Registry
	Queries      queries.Store
	Orchestrator orchestrator.Orchestrator
}

// NewListStructuresHandler implements GET /gateways/{id}/structures:
// runs the orchestrator synchronously over the "structures" endpoint
// and writes the merged response inline.
func NewListStructuresHandler(logger zerolog.Logger, deps Deps) http.HandlerFunc {
	return newSyncEndpointHandler(logger, deps, "structures")
}

func newSyncEndpointHandler(logger zerolog.Logger, deps Deps, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger

		gatewayID := chi.URLParam(r, "id")
		if _, err := deps.Registry.GetGateway(r.Context(), gatewayID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, log, http.StatusNotFound, "gateway not found", "no gateway with id "+gatewayID)
				return
			}
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		params := parseQueryParameters(r.URL.Query())

		query, err := deps.Queries.Create(r.Context(), gatewayID, endpoint, params)
		if err != nil {
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		finished, err := deps.Orchestrator.Run(r.Context(), query, r.URL.String())
		if err != nil {
			if errors.Is(r.Context().Err(), context.Canceled) {
				// A client disconnect cancels the synchronous variant's
				// orchestrator run; there is no response to write.
				return
			}
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, finished.Response)
	}
}

// NewCreateQueryHandler implements POST /gateways/{id}/queries: create
// the query record, spawn the orchestrator detached from the request,
// and return immediately with the record in its current (created or
// started) state.
func NewCreateQueryHandler(logger zerolog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger

		gatewayID := chi.URLParam(r, "id")
		if _, err := deps.Registry.GetGateway(r.Context(), gatewayID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, log, http.StatusNotFound, "gateway not found", "no gateway with id "+gatewayID)
				return
			}
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		endpoint := r.URL.Query().Get("endpoint")
		if endpoint == "" {
			endpoint = "structures"
		}
		params := parseQueryParameters(r.URL.Query())

		query, err := deps.Queries.Create(r.Context(), gatewayID, endpoint, params)
		if err != nil {
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		requestURL := r.URL.String()
		runAsync(log, deps, query, requestURL)

		writeJSON(w, http.StatusAccepted, queryResponse{Data: query})
	}
}

// runAsync anchors the orchestrator run to a context derived from the
// process, not the originating request, so a client disconnect never
// cancels it.
func runAsync(log zerolog.Logger, deps Deps, query domain.Query, requestURL string) {
	ctx := context.WithoutCancel(context.Background())
	go func() {
		if _, err := deps.Orchestrator.Run(ctx, query, requestURL); err != nil {
			log.Error().Err(err).Str("query_id", query.ID).Msg("background query failed")
		}
	}()
}

// NewGetQueryHandler implements GET /queries/{id}.
func NewGetQueryHandler(logger zerolog.Logger, queryStore queries.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger

		id := chi.URLParam(r, "id")
		query, err := queryStore.GetPublic(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, log, http.StatusNotFound, "query not found", "no query with id "+id)
				return
			}
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, queryResponse{Data: query})
	}
}

// parseQueryParameters reads the OPTIMADE query parameters accepted on
// federated listings out of raw URL values.
func parseQueryParameters(values url.Values) domain.QueryParameters {
	params := domain.QueryParameters{
		Filter:         values.Get("filter"),
		ResponseFormat: values.Get("response_format"),
		Sort:           values.Get("sort"),
		Include:        values.Get("include"),
	}

	if rf := values.Get("response_fields"); rf != "" {
		params.ResponseFields = strings.Split(rf, ",")
	}
	if limit, err := strconv.Atoi(values.Get("page_limit")); err == nil {
		params.PageLimit = limit
	}
	if offset, err := strconv.Atoi(values.Get("page_offset")); err == nil {
		params.PageOffset = offset
	}

	return params
}
