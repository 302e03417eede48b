package handlers

import (
	"net/http"
	"strings"

	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/rs/zerolog"
)

// NewSearchHandler implements GET /search: a convenience
// endpoint equivalent to POST /gateways followed by the synchronous
// query variant, in one round trip. The database set is read from a
// repeated or comma-separated "database" query parameter, naming
// previously-registered database ids.
func NewSearchHandler(logger zerolog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger

		dbIDs := parseDatabaseIDs(r.URL.Query()["database"])
		if len(dbIDs) == 0 {
			writeError(w, log, http.StatusBadRequest, "missing databases", "the \"database\" query parameter is required")
			return
		}

		refs := make([]domain.DatabaseRef, len(dbIDs))
		for i, id := range dbIDs {
			refs[i] = domain.DatabaseRef{ID: id}
		}

		gateway, _, err := deps.Registry.ResolveOrCreate(r.Context(), refs, "")
		if err != nil {
			status, title := statusForDomainError(err)
			writeError(w, log, status, title, err.Error())
			return
		}

		params := parseQueryParameters(r.URL.Query())
		query, err := deps.Queries.Create(r.Context(), gateway.ID, "structures", params)
		if err != nil {
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		finished, err := deps.Orchestrator.Run(r.Context(), query, r.URL.String())
		if err != nil {
			writeError(w, log, http.StatusInternalServerError, "internal error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, finished.Response)
	}
}

// parseDatabaseIDs accepts both repeated "database=a&database=b" and
// comma-separated "database=a,b" forms.
func parseDatabaseIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				ids = append(ids, part)
			}
		}
	}
	return ids
}
