package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestWriteErrorMasksInternalDetail(t *testing.T) {
	is := is.New(t)

	w := httptest.NewRecorder()
	writeError(w, zerolog.Nop(), http.StatusInternalServerError, "internal error", "mongo: connection refused at 10.0.0.1:27017")

	var response errorResponse
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &response))
	is.Equal(len(response.Errors), 1)
	is.True(response.Errors[0].Detail != "mongo: connection refused at 10.0.0.1:27017")
}

func TestWriteErrorPreservesClientDetail(t *testing.T) {
	is := is.New(t)

	w := httptest.NewRecorder()
	writeError(w, zerolog.Nop(), http.StatusBadRequest, "malformed request body", "unexpected EOF")

	var response errorResponse
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &response))
	is.Equal(response.Errors[0].Detail, "unexpected EOF")
}

func TestWriteErrorStatusIsNumericString(t *testing.T) {
	is := is.New(t)

	w := httptest.NewRecorder()
	writeError(w, zerolog.Nop(), http.StatusNotFound, "gateway not found", "no gateway with id x")

	var response errorResponse
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &response))
	is.Equal(response.Errors[0].Status, "404")
	is.Equal(response.Errors[0].Title, "gateway not found")
}

func TestStatusForDomainError(t *testing.T) {
	is := is.New(t)

	status, _ := statusForDomainError(domain.ErrNotFound)
	is.Equal(status, http.StatusNotFound)

	status, _ = statusForDomainError(domain.ErrGatewayExists)
	is.Equal(status, http.StatusConflict)

	status, _ = statusForDomainError(domain.ErrUnknownDatabase)
	is.Equal(status, http.StatusBadRequest)
}
