package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestSearchHandlerRequiresDatabaseParameter(t *testing.T) {
	is := is.New(t)
	deps, _ := newTestDeps()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	NewSearchHandler(zerolog.Nop(), deps).ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusBadRequest)
}

func TestSearchHandlerResolvesGatewayAndRunsSynchronously(t *testing.T) {
	is := is.New(t)
	deps, _ := newTestDeps()

	req := httptest.NewRequest(http.MethodGet, "/search?database=d1&filter=elements+HAS+%22Al%22", nil)
	is.NoErr(deps.Registry.RegisterDatabase(req.Context(), domain.Database{ID: "d1", BaseURL: "https://d1.example.org"}))

	w := httptest.NewRecorder()
	NewSearchHandler(zerolog.Nop(), deps).ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusOK)
}
