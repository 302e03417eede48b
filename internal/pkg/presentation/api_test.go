package presentation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/orchestrator"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/queries"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/registry"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/upstream"
	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/repositories/document"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestAPIEndToEndResolveAndQuery(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	upstreamServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"a","type":"structures"}],"meta":{"data_returned":1,"data_available":1,"more_data_available":false}}`))
	}))
	defer upstreamServer.Close()

	reg := registry.New(document.NewMemoryStore[domain.Gateway](), document.NewMemoryStore[domain.Database]())
	queryStore := queries.New(document.NewMemoryStore[domain.Query]())
	client := upstream.NewClient()
	orch := orchestrator.New(reg, queryStore, client, orchestrator.Config{
		PerDBTimeout:           time.Second,
		GatewayTimeout:         5 * time.Second,
		MaxConcurrentUpstreams: 4,
	}, zerolog.Nop())

	r := chi.NewRouter()
	api := NewAPI(ctx, r, reg, queryStore, orch, client, "https://gw.example.org")
	_ = api

	createBody := `{"databases":[{"id":"D1","base_url":"` + upstreamServer.URL + `"}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/gateways", bytes.NewBufferString(createBody))
	r.ServeHTTP(w, req)
	is.Equal(w.Code, http.StatusCreated)

	var created struct {
		Data domain.Gateway `json:"data"`
	}
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &created))

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/gateways/"+created.Data.ID+"/structures", nil)
	r.ServeHTTP(w2, req2)
	is.Equal(w2.Code, http.StatusOK)

	var merged domain.MergedResponse
	is.NoErr(json.Unmarshal(w2.Body.Bytes(), &merged))
	is.Equal(merged.Data[0].ID(), "D1/a")

	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/info", nil)
	r.ServeHTTP(w3, req3)
	is.Equal(w3.Code, http.StatusOK)
}
