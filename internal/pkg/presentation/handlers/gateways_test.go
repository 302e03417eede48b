package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/registry"
	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/repositories/document"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func newTestRegistry() registry.Registry {
	return registry.New(document.NewMemoryStore[domain.Gateway](), document.NewMemoryStore[domain.Database]())
}

func TestCreateOrResolveGatewayHandlerCreatesThenResolves(t *testing.T) {
	is := is.New(t)
	reg := newTestRegistry()
	handler := NewCreateOrResolveGatewayHandler(zerolog.Nop(), reg)

	body := `{"databases":[{"id":"d1","base_url":"https://d1.example.org"}]}`

	w1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPost, "/gateways", bytes.NewBufferString(body))
	handler.ServeHTTP(w1, req1)
	is.Equal(w1.Code, http.StatusCreated)

	var created gatewayResponse
	is.NoErr(json.Unmarshal(w1.Body.Bytes(), &created))

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/gateways", bytes.NewBufferString(body))
	handler.ServeHTTP(w2, req2)
	is.Equal(w2.Code, http.StatusOK)

	var resolved gatewayResponse
	is.NoErr(json.Unmarshal(w2.Body.Bytes(), &resolved))
	is.Equal(resolved.Data.ID, created.Data.ID)
}

func TestCreateOrResolveGatewayHandlerRejectsEmptyDatabases(t *testing.T) {
	is := is.New(t)
	reg := newTestRegistry()
	handler := NewCreateOrResolveGatewayHandler(zerolog.Nop(), reg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/gateways", bytes.NewBufferString(`{"databases":[]}`))
	handler.ServeHTTP(w, req)
	is.Equal(w.Code, http.StatusBadRequest)
}

func TestGetGatewayHandlerNotFound(t *testing.T) {
	is := is.New(t)
	reg := newTestRegistry()

	r := chi.NewRouter()
	r.Get("/gateways/{id}", NewGetGatewayHandler(zerolog.Nop(), reg))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/gateways/missing", nil)
	r.ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusNotFound)
}

func TestListGatewaysHandlerReportsCount(t *testing.T) {
	is := is.New(t)
	ctx := httptest.NewRequest(http.MethodGet, "/gateways", nil).Context()
	reg := newTestRegistry()

	_, _, err := reg.ResolveOrCreate(ctx, []domain.DatabaseRef{{ID: "d1", BaseURL: "https://d1.example.org"}}, "")
	is.NoErr(err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/gateways", nil)
	NewListGatewaysHandler(zerolog.Nop(), reg).ServeHTTP(w, req)

	is.Equal(w.Code, http.StatusOK)

	var listed gatewaysListResponse
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &listed))
	is.Equal(listed.Meta.DataReturned, 1)
}
