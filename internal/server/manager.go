// Package server manages HTTP listener lifecycles: non-blocking start,
// graceful shutdown, and signal-driven teardown shared by the API and
// metrics servers.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Config holds the listener settings for one managed server.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	ShutdownTimeout time.Duration
}

type managerState int

const (
	stateIdle managerState = iota
	stateServing
	stateStopped
)

// Manager owns one http.Server. Start is non-blocking; serve errors are
// surfaced on Errors and through WaitForShutdown.
type Manager struct {
	server          *http.Server
	logger          *zap.Logger
	shutdownTimeout time.Duration
	errCh           chan error

	mu        sync.Mutex
	state     managerState
	boundAddr string
}

// NewManager wraps handler in a managed http.Server using cfg.
func NewManager(handler http.Handler, cfg Config, logger *zap.Logger) *Manager {
	return &Manager{
		server: &http.Server{
			Addr:           cfg.Addr,
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		logger:          logger.With(zap.String("component", "http_server")),
		shutdownTimeout: cfg.ShutdownTimeout,
		errCh:           make(chan error, 1),
	}
}

// Start binds the listener and begins serving in a background goroutine.
// It may be called at most once per Manager.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateServing:
		return fmt.Errorf("server already started")
	case stateStopped:
		return fmt.Errorf("server is closed")
	}

	listener, err := net.Listen("tcp", m.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", m.server.Addr, err)
	}

	m.state = stateServing
	m.boundAddr = listener.Addr().String()
	m.logger.Info("starting HTTP server", zap.String("addr", m.boundAddr))

	go func() {
		if err := m.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			m.logger.Error("HTTP server failed", zap.Error(err))
			select {
			case m.errCh <- err:
			default:
			}
		}
	}()
	return nil
}

// Shutdown drains in-flight requests within the configured timeout. Calling
// it again after it has run is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateStopped {
		return nil
	}
	m.state = stateStopped
	m.logger.Info("shutting down HTTP server")

	drainCtx, cancel := context.WithTimeout(ctx, m.shutdownTimeout)
	defer cancel()

	if err := m.server.Shutdown(drainCtx); err != nil {
		m.logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}

	m.logger.Info("HTTP server stopped")
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM or a serve error, then shuts
// the server down.
func (m *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		m.logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-m.errCh:
		if err != nil {
			m.logger.Error("server exited unexpectedly", zap.Error(err))
		}
	}

	if err := m.Shutdown(context.Background()); err != nil {
		m.logger.Error("shutdown error", zap.Error(err))
	}
}

// Errors returns asynchronous serve errors.
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// BoundAddr returns the address the listener actually bound, which differs
// from the configured Addr when port 0 was requested. Empty before Start.
func (m *Manager) BoundAddr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.boundAddr
}

// IsRunning reports whether the server has not been shut down.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != stateStopped
}
