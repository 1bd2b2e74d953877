// The worker binary consumes render jobs from the queue, one at a time,
// and publishes results to the reply queue, cache and history.
package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"github.com/personaforge/studiopod/internal/cache"
	"github.com/personaforge/studiopod/internal/config"
	"github.com/personaforge/studiopod/internal/database"
	"github.com/personaforge/studiopod/internal/logging"
	"github.com/personaforge/studiopod/internal/metrics"
	"github.com/personaforge/studiopod/internal/pipeline"
	"github.com/personaforge/studiopod/internal/queue"
	"github.com/personaforge/studiopod/internal/storage"
	"github.com/personaforge/studiopod/internal/tracing"
	"github.com/personaforge/studiopod/internal/transfer"
	"github.com/personaforge/studiopod/pkg/models"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logging.NewDefaultLogger().Fatalf("failed to load config: %v", err)
	}

	log := logging.NewLogger(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	closer, err := tracing.Init(cfg.Tracing)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewClient(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to create storage client: %v", err)
	}
	var objectStore transfer.ObjectStore
	if store != nil {
		if err := store.EnsureBucket(ctx); err != nil {
			log.Fatalf("failed to ensure bucket: %v", err)
		}
		objectStore = store
	} else {
		log.Warn("no object storage configured, outputs will be returned inline")
	}

	orch := pipeline.New(cfg, transfer.New(objectStore, log), log)
	orch.Warm(ctx)

	resultCache, err := cache.NewClient(cfg.Redis)
	if err != nil {
		log.Warnf("result cache unavailable: %v", err)
	}
	repo, err := database.NewRepository(ctx, cfg.Database)
	if err != nil {
		log.Warnf("job history unavailable: %v", err)
	}

	queueClient, err := queue.NewClient(cfg.Queue, log)
	if err != nil {
		log.Fatalf("failed to connect to queue: %v", err)
	}
	defer queueClient.Close()

	go func() {
		if err := metrics.Serve(cfg.Server.MetricsPort); err != nil {
			log.Warnf("metrics server error: %v", err)
		}
	}()

	handler := func(ctx context.Context, req *models.JobRequest) *models.JobResult {
		if resultCache != nil && req.JobID != "" {
			if cached, err := resultCache.GetResult(ctx, req.JobID); err == nil && cached != nil {
				log.Infof("job %s already rendered, returning cached result", req.JobID)
				return cached
			}
		}

		result := orch.Execute(ctx, req)

		if resultCache != nil {
			if err := resultCache.SetResult(ctx, req.JobID, result); err != nil {
				log.Warnf("failed to cache result for %s: %v", req.JobID, err)
			}
		}
		if repo != nil {
			if err := repo.RecordResult(ctx, req, result); err != nil {
				log.Warnf("failed to record result for %s: %v", req.JobID, err)
			}
		}
		return result
	}

	log.Info("worker consuming render jobs")
	if err := queueClient.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("consumer error: %v", err)
	}

	if resultCache != nil {
		resultCache.Close()
	}
	if repo != nil {
		repo.Close()
	}
	log.Info("worker stopped")
}
