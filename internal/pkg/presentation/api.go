package presentation

import (
	"compress/flate"
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/orchestrator"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/queries"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/registry"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/upstream"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/o11y/logging"
	"github.com/optimade-org/optimade-gateway/internal/pkg/presentation/handlers"
	"github.com/riandyrn/otelchi"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// API is the gateway's HTTP surface: start it bound to a port once the
// router has every handler installed.
type API interface {
	Start(port string) error
}

type gatewayAPI struct {
	router chi.Router
	log    zerolog.Logger
}

// NewAPI wires every gateway endpoint onto r and returns the runnable
// API.
func NewAPI(ctx context.Context, r chi.Router, reg registry.Registry, queryStore queries.Store, orch orchestrator.Orchestrator, client upstream.Client, baseURL string) API {
	log := logging.GetFromContext(ctx)

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	compressor := middleware.NewCompressor(
		flate.DefaultCompression,
		"application/vnd.api+json", "application/json", "text/csv",
	)
	r.Use(compressor.Handler)
	r.Use(otelchi.Middleware("optimade-gateway", otelchi.WithChiRoutes(r)))

	a := &gatewayAPI{router: r, log: log}

	deps := handlers.Deps{Registry: reg, Queries: queryStore, Orchestrator: orch}

	r.Get("/info", handlers.NewInfoHandler(baseURL))
	r.Get("/links", handlers.NewLinksHandler())
	r.Get("/versions", handlers.NewVersionsHandler())

	r.Get("/search", handlers.NewSearchHandler(log, deps))

	r.Route("/gateways", func(r chi.Router) {
		r.Post("/", handlers.NewCreateOrResolveGatewayHandler(log, reg))
		r.Get("/", handlers.NewListGatewaysHandler(log, reg))
		r.Get("/{id}", handlers.NewGetGatewayHandler(log, reg))
		r.Get("/{id}/structures", handlers.NewListStructuresHandler(log, deps))
		r.Get("/{id}/structures/{db_id}/{orig_id}", handlers.NewGetEntryHandler(log, reg, client))
		r.Post("/{id}/queries", handlers.NewCreateQueryHandler(log, deps))
	})

	r.Get("/queries/{id}", handlers.NewGetQueryHandler(log, queryStore))

	return a
}

func (a *gatewayAPI) Start(port string) error {
	a.log.Info().Str("port", port).Msg("starting optimade-gateway")
	return http.ListenAndServe(":"+port, a.router)
}
