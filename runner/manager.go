package runner

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/submitflow/submitflow/store"
	"github.com/submitflow/submitflow/types"
)

// Manager is the operator-facing control surface over job runs. It owns the
// async run goroutines and translates start/pause/resume/stop requests into
// store-visible status transitions the coordinator honors.
type Manager struct {
	store       store.Store
	coordinator *Coordinator
	logger      *zap.Logger

	group   errgroup.Group
	baseCtx context.Context

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
}

// NewManager creates a Manager. baseCtx bounds the lifetime of every run it
// spawns; cancel it (or call Shutdown) to tear the runs down.
func NewManager(baseCtx context.Context, st store.Store, coordinator *Coordinator, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:       st,
		coordinator: coordinator,
		logger:      logger.With(zap.String("component", "manager")),
		baseCtx:     baseCtx,
		running:     make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start launches an async run for the job. NOT_STARTED and PAUSED jobs are
// eligible; anything else, or a job already running in this process, is
// rejected.
func (m *Manager) Start(ctx context.Context, jobID uuid.UUID) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.CanStart() {
		return types.Errorf(types.ErrInvalidTransition,
			"job %s cannot start from status %s", jobID, job.Status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, active := m.running[jobID]; active {
		return types.Errorf(types.ErrInvalidTransition, "job %s is already running", jobID)
	}

	runCtx, cancel := context.WithCancel(m.baseCtx)
	m.running[jobID] = cancel

	m.group.Go(func() error {
		defer func() {
			m.mu.Lock()
			delete(m.running, jobID)
			m.mu.Unlock()
			cancel()
		}()
		if err := m.coordinator.Run(runCtx, jobID); err != nil {
			m.logger.Error("job run failed",
				zap.String("job_id", jobID.String()),
				zap.Error(err))
		}
		// Run outcomes land in the store; never fail the group.
		return nil
	})
	return nil
}

// RunSync executes the job in the caller's goroutine, for CLI one-shot use.
func (m *Manager) RunSync(ctx context.Context, jobID uuid.UUID) error {
	return m.coordinator.Run(ctx, jobID)
}

// Pause asks a running job to halt after its current attempt. The transition
// is persisted immediately; the run loop observes it at the next attempt
// boundary.
func (m *Manager) Pause(ctx context.Context, jobID uuid.UUID) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.CanPause() {
		return types.Errorf(types.ErrInvalidTransition,
			"job %s cannot pause from status %s", jobID, job.Status)
	}
	return m.store.SetJobStatus(ctx, jobID, types.JobPaused)
}

// Resume restarts a paused job.
func (m *Manager) Resume(ctx context.Context, jobID uuid.UUID) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.CanResume() {
		return types.Errorf(types.ErrInvalidTransition,
			"job %s cannot resume from status %s", jobID, job.Status)
	}
	return m.Start(ctx, jobID)
}

// Stop terminally fails the job and cancels its run if one is active in this
// process. Stopped jobs cannot be restarted.
func (m *Manager) Stop(ctx context.Context, jobID uuid.UUID) error {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.CanStop() {
		return types.Errorf(types.ErrInvalidTransition,
			"job %s cannot stop from status %s", jobID, job.Status)
	}
	if err := m.store.SetJobStatus(ctx, jobID, types.JobFailed); err != nil {
		return err
	}

	m.mu.Lock()
	cancel, active := m.running[jobID]
	m.mu.Unlock()
	if active {
		cancel()
	}
	return nil
}

// Running reports whether this process currently runs the job.
func (m *Manager) Running(jobID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, active := m.running[jobID]
	return active
}

// Shutdown waits for in-flight runs to drain or ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- m.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
