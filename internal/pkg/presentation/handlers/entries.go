package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/registry"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/upstream"
	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/rs/zerolog"
)

type entryResponse struct {
	Data domain.Entry `json:"data"`
}

// NewGetEntryHandler implements GET /gateways/{id}/structures/{db_id}/{orig_id}.
// entry_ref is the prefixed id "{db_id}/{orig_id}"; the
// gateway fetches that one resource from that one database directly,
// bypassing the orchestrator and merger entirely since there is nothing
// to fan out or merge.
func NewGetEntryHandler(logger zerolog.Logger, reg registry.Registry, client upstream.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger

		gatewayID := chi.URLParam(r, "id")
		dbID := chi.URLParam(r, "db_id")
		origID := chi.URLParam(r, "orig_id")
		entryRef := dbID + "/" + origID

		gateway, err := reg.GetGateway(r.Context(), gatewayID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, log, http.StatusNotFound, "gateway not found", "no gateway with id "+gatewayID)
				return
			}
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		var db domain.Database
		found := false
		for _, candidate := range gateway.Databases {
			if candidate.ID == dbID {
				db, found = candidate, true
				break
			}
		}
		if !found {
			writeError(w, log, http.StatusNotFound, "unknown database", "gateway "+gatewayID+" has no member database "+dbID)
			return
		}

		outcome := client.Fetch(r.Context(), db, "structures/"+origID, nil, defaultSingleEntryTimeout)
		switch {
		case outcome.IsOK():
			var envelope struct {
				Data domain.Entry `json:"data"`
			}
			if err := json.Unmarshal(outcome.OK, &envelope); err != nil {
				writeError(w, log, http.StatusBadGateway, "invalid upstream response", err.Error())
				return
			}
			writeJSON(w, http.StatusOK, entryResponse{Data: envelope.Data.WithID(entryRef)})
		case outcome.UpstreamError != nil:
			if outcome.UpstreamError.Status == http.StatusNotFound {
				writeError(w, log, http.StatusNotFound, "entry not found", "database "+dbID+" has no entry "+origID)
				return
			}
			writeError(w, log, http.StatusBadGateway, "upstream error", "database "+dbID+" returned HTTP "+http.StatusText(outcome.UpstreamError.Status))
		default:
			writeError(w, log, http.StatusGatewayTimeout, "upstream unreachable", "database "+dbID+": "+outcome.TransportErr.Message)
		}
	}
}

// defaultSingleEntryTimeout bounds a single-resource fetch; unlike a
// federated listing it has no gateway-wide deadline to inherit since it
// only ever talks to one database.
const defaultSingleEntryTimeout = 10 * time.Second
