package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dropdeploy/dropdeploy/internal/deploy"
	"github.com/dropdeploy/dropdeploy/internal/dockerx"
	"github.com/dropdeploy/dropdeploy/internal/jobs"
	"github.com/dropdeploy/dropdeploy/internal/metrics"
	"github.com/dropdeploy/dropdeploy/internal/repo"
	"github.com/dropdeploy/dropdeploy/internal/store"
	"github.com/dropdeploy/dropdeploy/internal/util"
	"github.com/dropdeploy/dropdeploy/internal/worker"
)

func main() {
	config := util.LoadConfig()
	util.SetupLogger(config.LogLevel)

	storeInstance, err := store.Open(config.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer storeInstance.Close()

	ctx := context.Background()
	if err := storeInstance.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate store")
	}

	// Fail fast when the queue backend is down; the runtime cannot do
	// anything useful without it.
	conn, err := net.DialTimeout("tcp", config.QueueAddr(), 5*time.Second)
	if err != nil {
		log.Fatal().Err(err).Str("addr", config.QueueAddr()).Msg("queue backend unreachable")
	}
	conn.Close()

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

	// Recover rows orphaned by a previous crash before consuming new work
	if err := orchestrator.SweepOrphanedBuilding(ctx); err != nil {
		log.Error().Err(err).Msg("failed to sweep orphaned deployments")
	}

	runtime := worker.New(config.QueueAddr(), config.WorkerConcurrency, orchestrator)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runtime.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("worker runtime failed")
		}
	case <-quit:
		runtime.Shutdown()
	}

	log.Info().Msg("worker exited")
}
