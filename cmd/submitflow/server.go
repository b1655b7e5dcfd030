package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/api/handlers"
	"github.com/submitflow/submitflow/config"
	"github.com/submitflow/submitflow/events"
	"github.com/submitflow/submitflow/internal/metrics"
	"github.com/submitflow/submitflow/internal/server"
	"github.com/submitflow/submitflow/internal/telemetry"
	"github.com/submitflow/submitflow/llm"
	"github.com/submitflow/submitflow/resolver"
	"github.com/submitflow/submitflow/runner"
	"github.com/submitflow/submitflow/store"
)

// Server assembles the service: persistence, the job runner, the event bus,
// and the HTTP and metrics listeners.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry

	store *store.GormStore
	bus   events.Bus
	jobs  *runner.Manager

	httpManager    *server.Manager
	metricsManager *server.Manager

	rateLimiterCancel context.CancelFunc
	runnerCancel      context.CancelFunc
}

// NewServer creates an unstarted server instance.
func NewServer(cfg *config.Config, logger *zap.Logger, tel *telemetry.Telemetry) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
	}
}

// Start brings every component up. A failure leaves already-started
// components to be torn down by Shutdown.
func (s *Server) Start() error {
	st, err := store.Open(s.cfg.Database, s.logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.store = st

	if err := s.initEventBus(); err != nil {
		return fmt.Errorf("init event bus: %w", err)
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	credentials, err := loadCredentials(s.cfg.Runner.CredentialsFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	engine := llm.NewEngine(s.cfg.LLM, s.logger)
	limiter := resolver.NewSlidingWindowLimiter(
		s.cfg.Resolver.RateLimit, s.cfg.Resolver.RateWindow, resolver.SystemClock{})
	grounder := resolver.NewHTTPResolver(s.cfg.Resolver, limiter, s.logger)

	attempts := runner.NewAttemptRunner(
		st, engine, grounder, credentials,
		s.cfg.Runner.MaxSteps, s.cfg.Runner.HistoryTokenBudget,
		s.bus, collector, s.logger)
	coordinator := runner.NewCoordinator(
		st, attempts, s.cfg.Browser, nil, s.bus, collector, s.logger)

	runnerCtx, runnerCancel := context.WithCancel(context.Background())
	s.runnerCancel = runnerCancel
	s.jobs = runner.NewManager(runnerCtx, st, coordinator, s.logger)

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("redis_events", s.cfg.Redis.Enabled),
	)
	return nil
}

func (s *Server) initEventBus() error {
	if !s.cfg.Redis.Enabled {
		s.bus = events.NewMemoryBus()
		return nil
	}
	bus, err := events.NewRedisBus(context.Background(), s.cfg.Redis, s.logger)
	if err != nil {
		return err
	}
	s.bus = bus
	return nil
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(s.store, s.logger)
	products := handlers.NewProductHandler(s.store, s.logger)
	directories := handlers.NewDirectoryHandler(s.store, s.logger)
	jobs := handlers.NewJobHandler(s.store, s.jobs, s.logger)
	eventStream := handlers.NewEventsHandler(s.store, s.bus, s.logger)
	handlers.RegisterRoutes(mux, health, products, directories, jobs, eventStream)

	mux.HandleFunc("GET /version", health.HandleVersion(Version, BuildTime, GitCommit))

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
		JWTAuth(s.cfg.Server.AuthSecret, skipAuthPaths, s.logger),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a shutdown signal or server error, then tears
// everything down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops accepting requests, waits for running jobs to halt at an
// attempt boundary, and closes every component.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")
	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	if s.jobs != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.Server.ShutdownTimeout)
		if err := s.jobs.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("job runs did not drain in time, canceling", zap.Error(err))
			if s.runnerCancel != nil {
				s.runnerCancel()
			}
		}
		cancel()
	}
	if s.runnerCancel != nil {
		s.runnerCancel()
	}

	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Error("event bus close error", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close error", zap.Error(err))
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("graceful shutdown completed")
}
