package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/submitflow/submitflow/store"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store   store.Store
	logger  *zap.Logger
	started time.Time
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(st store.Store, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{store: st, logger: logger, started: time.Now()}
}

// HandleHealth reports process liveness.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

// HandleReady reports readiness: the database must answer a ping.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		WriteJSON(w, http.StatusServiceUnavailable, Response{
			Success:   false,
			Error:     &ErrorInfo{Code: "SERVICE_UNAVAILABLE", Message: "database unreachable"},
			Timestamp: time.Now().UTC(),
		})
		return
	}
	WriteSuccess(w, HealthResponse{Status: "ready", Uptime: time.Since(h.started).Round(time.Second).String()})
}

// HandleVersion reports build information.
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}
