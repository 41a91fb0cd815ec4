// Package server wires configuration, the execution engine and the HTTP
// surface into a runnable service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/my-piper/piper-deno/internal/api/http"
	"github.com/my-piper/piper-deno/internal/api/middleware"
	"github.com/my-piper/piper-deno/internal/config"
	"github.com/my-piper/piper-deno/internal/logging"
	"github.com/my-piper/piper-deno/internal/monitoring"
	"github.com/my-piper/piper-deno/internal/sandbox"
	"github.com/my-piper/piper-deno/internal/sandbox/isolate"
	"github.com/my-piper/piper-deno/internal/sandbox/process"
	"github.com/my-piper/piper-deno/internal/script"
)

// Server holds the assembled service.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	pool    *isolate.Pool
	http    *nethttp.Server

	stopStats chan struct{}
}

// New assembles the full service from configuration.
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics := monitoring.NewMetrics()

	loader := script.NewLoader(script.Config{
		FetchTimeout: time.Duration(cfg.Sandbox.ScriptFetchTimeoutMs) * time.Millisecond,
		MaxBytes:     cfg.Sandbox.ScriptMaxBytes,
	})

	pool := isolate.NewPool(isolate.PoolConfig{
		Capacity:         cfg.Sandbox.PoolCapacity,
		RecycleThreshold: cfg.Sandbox.PoolRecycleThreshold,
	}, loader)
	isoRunner := isolate.NewRunner(pool, logger)

	workerBin, err := resolveWorkerBin(cfg.Sandbox.WorkerBin)
	if err != nil {
		return nil, err
	}
	procRunner := process.NewRunner(process.Config{
		WorkerBin:     workerBin,
		MemoryLimitMB: cfg.Sandbox.MemoryLimitMB,
	}, logger)

	engine := sandbox.NewEngine(sandbox.Config{
		DefaultTimeout: time.Duration(cfg.Sandbox.DefaultTimeoutMs) * time.Millisecond,
		MaxTimeout:     time.Duration(cfg.Sandbox.MaxTimeoutMs) * time.Millisecond,
	}, procRunner, isoRunner, logger, metrics)

	router := buildRouter(cfg, engine, logger, metrics)

	srv := &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		pool:    pool,
		http: &nethttp.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		stopStats: make(chan struct{}),
	}

	logger.Info("server assembled",
		zap.String("addr", srv.http.Addr),
		zap.String("worker_bin", workerBin),
		zap.Int("pool_capacity", cfg.Sandbox.PoolCapacity),
	)
	return srv, nil
}

func buildRouter(cfg *config.Config, engine apihttp.Executor, logger *logging.Logger, metrics *monitoring.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandler(engine, logger)
	router.POST("/execute", handlers.Execute)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// resolveWorkerBin locates the worker bootstrap binary. An explicit path
// wins, then a sibling of the server binary, then PATH lookup.
func resolveWorkerBin(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), "piper-worker")
		if _, err := os.Stat(sibling); err == nil {
			return sibling, nil
		}
	}

	if path, err := exec.LookPath("piper-worker"); err == nil {
		return path, nil
	}
	return "", errors.New("worker binary not found: set WORKER_BIN or install piper-worker on PATH")
}

// Run starts the HTTP listener and blocks until it stops.
func (s *Server) Run() error {
	go s.publishPoolStats()

	s.logger.Info("listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

// publishPoolStats mirrors pool occupancy into the metrics gauges.
func (s *Server) publishPoolStats() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			entries, busy := s.pool.Stats()
			s.metrics.SetPoolStats(entries, busy)
		case <-s.stopStats:
			return
		}
	}
}

// Close drains in-flight requests and releases resources.
func (s *Server) Close() error {
	close(s.stopStats)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.http.Shutdown(ctx)
	s.pool.Close()
	_ = s.logger.Sync()
	return err
}
