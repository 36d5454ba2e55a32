// Package server provides the HTTP API with lifecycle management.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/vpinel/docugraph/internal/assistant"
	"github.com/vpinel/docugraph/internal/config"
	"github.com/vpinel/docugraph/internal/ingest"
	"github.com/vpinel/docugraph/internal/jobs"
	"github.com/vpinel/docugraph/internal/metrics"
	"github.com/vpinel/docugraph/internal/progress"
)

// Runner starts one ingestion run. Satisfied by *ingest.Pipeline.
type Runner interface {
	Run(ctx context.Context, jobID, filename, path string) (ingest.Result, error)
}

// Asker answers questions. Satisfied by *assistant.Assistant.
type Asker interface {
	Ask(ctx context.Context, question, mode string) (assistant.Answer, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the server's collaborators, injected by main.
type Deps struct {
	Tracker   *jobs.Tracker
	Hub       *progress.Hub
	Pipeline  Runner
	Assistant Asker
	Graph     Pinger
	JobStore  Pinger
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// Server wraps the HTTP API with dependencies and lifecycle management.
// Ingestion runs it launches are tracked so shutdown can wait for them.
type Server struct {
	cfg  config.Config
	deps Deps
	log  *slog.Logger

	// pipelineCtx outlives individual requests; cancelling it stops all
	// in-flight ingestion runs during shutdown.
	pipelineCtx     context.Context
	cancelPipelines context.CancelFunc
	runs            sync.WaitGroup
}

// New creates a server. Deps.Metrics and Deps.Logger may be nil.
func New(cfg config.Config, deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:             cfg,
		deps:            deps,
		log:             deps.Logger,
		pipelineCtx:     ctx,
		cancelPipelines: cancel,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
	}))

	api := router.Group("/api")
	{
		api.POST("/upload", s.handleUpload)
		api.GET("/progress/:job_id", s.handleProgress)
		api.POST("/ask", s.handleAsk)
		api.GET("/health", s.handleHealth)
		api.GET("/stats", s.handleStats)
	}
	router.GET("/ws/progress/:job_id", s.handleProgressSocket)

	return router
}

// Run serves the API until ctx is cancelled, then drains in-flight requests
// and ingestion runs.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.cancelPipelines()
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	s.cancelPipelines()
	s.runs.Wait()
	return err
}

// launchRun starts an ingestion in the background, tied to the server's
// lifecycle rather than the upload request.
func (s *Server) launchRun(jobID, filename, path string) {
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		if _, err := s.deps.Pipeline.Run(s.pipelineCtx, jobID, filename, path); err != nil {
			s.log.Error("ingestion run failed", "job_id", jobID, "filename", filename, "error", err)
		}
	}()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
