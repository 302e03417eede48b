// Package merger implements the response merger: a pure function from
// a set of per-database outcomes to a single
// protocol-compliant federated response. It does no I/O, which makes it
// the most directly unit-testable component in the gateway.
package merger

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/upstream"
	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
)

// Source pairs one database's outcome with the database id it came
// from.
type Source struct {
	DatabaseID string
	Outcome    upstream.Outcome
}

// Request carries the inputs the merger needs beyond the outcomes
// themselves: the literal query string (for meta.query.representation)
// and the base URL + page_limit/page_offset it needs to synthesize
// links.next.
type Request struct {
	Representation string
	RequestURL     string
	PageLimit      int
	PageOffset     int
}

// upstreamEnvelope is the subset of an OPTIMADE entry-listing response
// this package reads out of a successful outcome's raw body.
type upstreamEnvelope struct {
	Data []domain.Entry `json:"data"`
	Meta struct {
		DataReturned      *int  `json:"data_returned"`
		DataAvailable     *int  `json:"data_available"`
		MoreDataAvailable *bool `json:"more_data_available"`
	} `json:"meta"`
}

// upstreamErrorBody is what an errored outcome's JSON is expected to
// look like; fields are read best-effort since upstreams are untrusted.
type upstreamErrorBody struct {
	Errors []struct {
		Status string `json:"status"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Merge concatenates every source's data in declaration order with ids
// rewritten "{db.id}/{entry.id}", aggregates meta, and produces one
// structured error per non-ok source. It neither sorts nor
// deduplicates data across sources.
func Merge(req Request, sources []Source) domain.MergedResponse {
	merged := domain.MergedResponse{
		Data:   []domain.Entry{},
		Errors: []domain.SourceError{},
		Meta: domain.MergedMeta{
			Sources: make(map[string]string, len(sources)),
			Query:   domain.QueryMeta{Representation: req.Representation},
		},
	}

	for _, src := range sources {
		switch {
		case src.Outcome.IsOK():
			mergeOK(&merged, src)
		case src.Outcome.UpstreamError != nil:
			mergeUpstreamError(&merged, src)
		case src.Outcome.TransportErr != nil:
			mergeTransportError(&merged, src)
		default:
			// An outcome with none of the three set is a bug in the
			// caller, not a valid "no data" result; record it as an
			// internal error rather than silently dropping the source.
			merged.Errors = append(merged.Errors, domain.SourceError{
				Source: src.DatabaseID,
				Status: 500,
				Title:  "invalid outcome",
				Detail: "upstream client returned neither a response nor an error",
			})
			merged.Meta.Sources[src.DatabaseID] = "error"
		}
	}

	if req.PageLimit > 0 && merged.Meta.MoreDataAvailable {
		merged.Links.Next = nextLink(req)
	}

	return merged
}

func mergeOK(merged *domain.MergedResponse, src Source) {
	var envelope upstreamEnvelope
	if err := json.Unmarshal(src.Outcome.OK, &envelope); err != nil {
		// A malformed-but-2xx body never reaches here in practice (the
		// client already validated data/errors presence), but treat it
		// as a source error rather than panicking on a bad upstream.
		merged.Errors = append(merged.Errors, domain.SourceError{
			Source: src.DatabaseID,
			Status: 502,
			Detail: fmt.Sprintf("could not decode response: %s", err),
		})
		merged.Meta.Sources[src.DatabaseID] = "error"
		return
	}

	for _, entry := range envelope.Data {
		merged.Data = append(merged.Data, entry.WithID(src.DatabaseID+"/"+entry.ID()))
	}

	dataReturned := len(envelope.Data)
	if envelope.Meta.DataReturned != nil {
		dataReturned = *envelope.Meta.DataReturned
	}
	merged.Meta.DataReturned += dataReturned

	if envelope.Meta.DataAvailable != nil {
		merged.Meta.DataAvailable += *envelope.Meta.DataAvailable
	} else {
		merged.Meta.DataAvailable += len(envelope.Data)
	}

	if envelope.Meta.MoreDataAvailable != nil && *envelope.Meta.MoreDataAvailable {
		merged.Meta.MoreDataAvailable = true
	}

	merged.Meta.Sources[src.DatabaseID] = "ok"
}

func mergeUpstreamError(merged *domain.MergedResponse, src Source) {
	detail := fmt.Sprintf("upstream returned HTTP %d", src.Outcome.UpstreamError.Status)
	title := ""

	var body upstreamErrorBody
	if err := json.Unmarshal(src.Outcome.UpstreamError.Body, &body); err == nil && len(body.Errors) > 0 {
		first := body.Errors[0]
		if first.Detail != "" {
			detail = first.Detail
		}
		title = first.Title
	}

	merged.Errors = append(merged.Errors, domain.SourceError{
		Source: src.DatabaseID,
		Status: src.Outcome.UpstreamError.Status,
		Title:  title,
		Detail: detail,
		Type:   "upstream_error",
	})
	merged.Meta.Sources[src.DatabaseID] = "error"
}

func mergeTransportError(merged *domain.MergedResponse, src Source) {
	merged.Errors = append(merged.Errors, domain.SourceError{
		Source: src.DatabaseID,
		Status: 504,
		Detail: fmt.Sprintf("transport error (%s): %s", src.Outcome.TransportErr.Kind, src.Outcome.TransportErr.Message),
		Type:   "transport_error",
	})
	merged.Meta.Sources[src.DatabaseID] = "error"
}

// nextLink re-emits req.RequestURL with page_offset advanced by
// page_limit.
func nextLink(req Request) string {
	parsed, err := url.Parse(req.RequestURL)
	if err != nil {
		return ""
	}

	values := parsed.Query()
	values.Set("page_offset", strconv.Itoa(req.PageOffset+req.PageLimit))
	parsed.RawQuery = values.Encode()

	return parsed.String()
}
