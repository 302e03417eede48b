package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/orchestrator"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/queries"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/registry"
	"github.com/optimade-org/optimade-gateway/internal/pkg/application/services/upstream"
	"github.com/optimade-org/optimade-gateway/internal/pkg/domain"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/buildinfo"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/env"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/o11y"
	"github.com/optimade-org/optimade-gateway/internal/pkg/infrastructure/repositories/document"
	"github.com/optimade-org/optimade-gateway/internal/pkg/presentation"
)

func main() {
	serviceName := "optimade-gateway"
	serviceVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion)
	defer cleanup()

	log.Info().Msgf("starting up %s ...", serviceName)

	mongoURI := env.GetVariableOrDie(log, "MONGO_URI", "MongoDB connection string")
	databaseName := env.GetVariableOrDefault(log, "MONGO_DATABASE", "optimade_gateway")
	baseURL := env.GetVariableOrDefault(log, "BASE_URL", "http://localhost:8880")
	port := env.GetVariableOrDefault(log, "SERVICE_PORT", "8880")

	perDBTimeoutMs := env.GetVariableOrDefaultInt(log, "PER_DB_TIMEOUT_MS", 240000)
	gatewayTimeoutMs := env.GetVariableOrDefaultInt(log, "GATEWAY_TIMEOUT_MS", 240000)
	maxConcurrentUpstreams := env.GetVariableOrDefaultInt(log, "MAX_CONCURRENT_UPSTREAMS", 10)

	mongoDatabase, err := document.Connect(ctx, mongoURI, databaseName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb, shutting down...")
	}

	gatewayStore, err := document.NewMongoStore[domain.Gateway](ctx, mongoDatabase, "gateways", "database_id_set")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise the gateways collection")
	}

	databaseStore, err := document.NewMongoStore[domain.Database](ctx, mongoDatabase, "databases")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise the databases collection")
	}

	queryStore, err := document.NewMongoStore[domain.Query](ctx, mongoDatabase, "queries")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise the queries collection")
	}

	reg := registry.New(gatewayStore, databaseStore)
	qs := queries.New(queryStore)
	client := upstream.NewClient()

	orch := orchestrator.New(reg, qs, client, orchestrator.Config{
		PerDBTimeout:           time.Duration(perDBTimeoutMs) * time.Millisecond,
		GatewayTimeout:         time.Duration(gatewayTimeoutMs) * time.Millisecond,
		MaxConcurrentUpstreams: int64(maxConcurrentUpstreams),
		BaseURL:                baseURL,
	}, log)

	r := chi.NewRouter()
	app := presentation.NewAPI(ctx, r, reg, qs, orch, client, baseURL)

	if err := app.Start(port); err != nil {
		log.Fatal().Err(err).Msg("failed to start router")
	}
}
