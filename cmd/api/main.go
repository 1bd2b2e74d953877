// The api binary accepts render jobs over HTTP. Jobs run synchronously by
// default; with ?async=true they are enqueued for the worker fleet instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

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

type application struct {
	cfg   *config.Config
	log   *logging.Logger
	orch  *pipeline.Orchestrator
	queue *queue.Client
	cache *cache.Client
	repo  *database.Repository
}

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

	app := &application{
		cfg:  cfg,
		log:  log,
		orch: pipeline.New(cfg, transfer.New(objectStore, log), log),
	}
	app.orch.Warm(ctx)

	if app.queue, err = queue.NewClient(cfg.Queue, log); err != nil {
		log.Warnf("queue unavailable, async submission disabled: %v", err)
	}
	if app.cache, err = cache.NewClient(cfg.Redis); err != nil {
		log.Warnf("result cache unavailable: %v", err)
	}
	if app.repo, err = database.NewRepository(ctx, cfg.Database); err != nil {
		log.Warnf("job history unavailable: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", app.handleHealth)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	v1 := router.Group("/v1")
	{
		v1.POST("/jobs", app.handleCreateJob)
		v1.GET("/jobs/:id", app.handleGetJob)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("api listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown error: %v", err)
	}

	if app.queue != nil {
		app.queue.Close()
	}
	if app.cache != nil {
		app.cache.Close()
	}
	if app.repo != nil {
		app.repo.Close()
	}
}

func (app *application) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (app *application) handleCreateJob(c *gin.Context) {
	var req models.JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job payload: " + err.Error()})
		return
	}
	if req.JobID == "" {
		req.JobID = uuid.New().String()
	}

	ctx := c.Request.Context()

	// Redelivery of a finished job returns the recorded result.
	if app.cache != nil {
		if cached, err := app.cache.GetResult(ctx, req.JobID); err == nil && cached != nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	if c.Query("async") == "true" {
		if app.queue == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "async submission unavailable"})
			return
		}
		if err := app.queue.PublishJob(ctx, &req); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to enqueue job"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job_id": req.JobID, "status": "queued"})
		return
	}

	result := app.orch.Execute(ctx, &req)
	app.persist(ctx, &req, result)
	c.JSON(http.StatusOK, result)
}

func (app *application) handleGetJob(c *gin.Context) {
	jobID := c.Param("id")
	ctx := c.Request.Context()

	if app.cache != nil {
		if cached, err := app.cache.GetResult(ctx, jobID); err == nil && cached != nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}
	if app.repo != nil {
		if recorded, err := app.repo.GetResult(ctx, jobID); err == nil && recorded != nil {
			c.JSON(http.StatusOK, recorded)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
}

// persist records a finished job in the cache and history, best effort.
func (app *application) persist(ctx context.Context, req *models.JobRequest, result *models.JobResult) {
	if app.cache != nil {
		if err := app.cache.SetResult(ctx, req.JobID, result); err != nil {
			app.log.Warnf("failed to cache result for %s: %v", req.JobID, err)
		}
	}
	if app.repo != nil {
		if err := app.repo.RecordResult(ctx, req, result); err != nil {
			app.log.Warnf("failed to record result for %s: %v", req.JobID, err)
		}
	}
}
