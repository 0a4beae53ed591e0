package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dropdeploy/dropdeploy/internal/api"
	"github.com/dropdeploy/dropdeploy/internal/deploy"
	"github.com/dropdeploy/dropdeploy/internal/dockerx"
	"github.com/dropdeploy/dropdeploy/internal/jobs"
	"github.com/dropdeploy/dropdeploy/internal/metrics"
	"github.com/dropdeploy/dropdeploy/internal/repo"
	"github.com/dropdeploy/dropdeploy/internal/store"
	"github.com/dropdeploy/dropdeploy/internal/terminal"
	"github.com/dropdeploy/dropdeploy/internal/util"
)

func main() {
	config := util.LoadConfig()
	util.SetupLogger(config.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	storeInstance, err := store.Open(config.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer storeInstance.Close()

	ctx := context.Background()
	if err := storeInstance.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate store")
	}

	engine, err := dockerx.NewMobyEngine(ctx, dockerx.EngineConfig{
		Prefix:           config.ContainerPrefix,
		Socket:           config.DockerSocket,
		MemoryLimitBytes: config.MemoryLimitBytes,
		CPUShares:        config.CPUShares,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to container engine")
	}
	defer engine.Close()

	repos, err := repo.NewManager(config.ProjectsRoot)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize projects root")
	}

	queue := jobs.NewQueue(config.QueueAddr())
	defer queue.Close()

	metrics.InitGlobal()

	orchestrator := deploy.NewOrchestrator(storeInstance, repos, engine, queue, config.ContainerPrefix)
	gateway := terminal.NewGateway(engine, config.ContainerPrefix)
	handlers := api.NewHandlers(storeInstance, orchestrator, gateway, metrics.DefaultCollector, config.ContainerPrefix)

	r := gin.New()
	r.Use(gin.Recovery())
	api.SetupRoutes(r, handlers, config.CORSOrigins)

	srv := &http.Server{
		Addr:    config.HTTPAddr,
		Handler: r,
	}

	log.Info().Str("addr", config.HTTPAddr).Str("subdomain_base", config.SubdomainBase).
		Msg("starting dropdeployd server")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
