// Package handlers maps the gateway's endpoint surface onto HTTP:
// gateway and query CRUD, the synchronous and asynchronous query
// variants, and the static OPTIMADE metadata endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/rs/zerolog"
)

// errorResponse is the OPTIMADE error envelope:
// {errors: [{status, title, detail, source}]}.
type errorResponse struct {
	Errors []apiError `json:"errors"`
}

type apiError struct {
	Status string `json:"status"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail"`
	Source string `json:"source,omitempty"`
}

// writeError renders a single client or internal error as the OPTIMADE
// error envelope, at the given HTTP status. Internal errors are logged
// with their real cause but never leak it into the response body.
func writeError(w http.ResponseWriter, log zerolog.Logger, status int, title, detail string) {
	if status >= 500 {
		log.Error().Int("status", status).Str("title", title).Str("detail", detail).Msg("internal error")
		detail = "an internal error occurred"
	}

	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Errors: []apiError{{Status: statusText(status), Title: title, Detail: detail}},
	})
}

// statusText renders status the way the JSON:API error-object
// convention OPTIMADE builds on expects: the HTTP status code as a
// string, not its English reason phrase.
func statusText(status int) string {
	return strconv.Itoa(status)
}

// statusForDomainError maps the sentinel errors domain-layer services
// return onto HTTP status codes.
func statusForDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrGatewayExists):
		return http.StatusConflict, "gateway already exists"
	case errors.Is(err, domain.ErrUnknownDatabase):
		return http.StatusBadRequest, "unknown database"
	case errors.Is(err, domain.ErrIDConflict):
		return http.StatusConflict, "id conflict"
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrRegistryInconsistent):
		return http.StatusInternalServerError, "invariant violation"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
