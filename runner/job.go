package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/browser"
	"github.com/submitflow/submitflow/config"
	"github.com/submitflow/submitflow/events"
	"github.com/submitflow/submitflow/internal/metrics"
	"github.com/submitflow/submitflow/store"
	"github.com/submitflow/submitflow/types"
)

// RunSession is a full browser session lifecycle as the coordinator drives
// it. *browser.Session satisfies it.
type RunSession interface {
	PageSession
	browser.Page
	Start(ctx context.Context) error
	Stop()
}

// SessionFactory builds the browser session for one job run. Swapped for a
// fake in tests.
type SessionFactory func(cfg config.BrowserConfig, logger *zap.Logger) RunSession

func defaultSessionFactory(cfg config.BrowserConfig, logger *zap.Logger) RunSession {
	return browser.NewSession(cfg, logger)
}

// Coordinator executes one job at a time: it opens a single browser session,
// walks the job's pending attempts in creation order, and maintains the job
// state machine and its counters. Pause and stop signals flip the job status
// in the store and are observed here at the next attempt boundary.
type Coordinator struct {
	store      store.Store
	attempts   *AttemptRunner
	browserCfg config.BrowserConfig
	newSession SessionFactory

	bus     events.Bus
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewCoordinator wires a Coordinator. factory may be nil to launch real
// chromedp sessions.
func NewCoordinator(
	st store.Store,
	attempts *AttemptRunner,
	browserCfg config.BrowserConfig,
	factory SessionFactory,
	bus events.Bus,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Coordinator {
	if factory == nil {
		factory = defaultSessionFactory
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = events.NewMemoryBus()
	}
	return &Coordinator{
		store:      st,
		attempts:   attempts,
		browserCfg: browserCfg,
		newSession: factory,
		bus:        bus,
		metrics:    collector,
		logger:     logger.With(zap.String("component", "coordinator")),
	}
}

// Run drives the job until it halts: every pending attempt reached a terminal
// status (job COMPLETED), an operator paused or stopped it, or infrastructure
// failed (job FAILED). Counters only ever grow and never exceed the
// directory total.
func (c *Coordinator) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.CanStart() {
		return types.Errorf(types.ErrInvalidTransition,
			"job %s cannot start from status %s", jobID, job.Status)
	}

	now := time.Now().UTC()
	job.Status = types.JobInProgress
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	if err := c.store.UpdateJob(ctx, job); err != nil {
		return err
	}
	c.publishJob(ctx, job)

	product, err := c.store.GetProduct(ctx, job.ProductID)
	if err != nil {
		return c.failJob(ctx, job, err)
	}

	session := c.newSession(c.browserCfg, c.logger)
	if err := session.Start(ctx); err != nil {
		c.logger.Error("browser launch failed", zap.Error(err))
		return c.failJob(ctx, job, err)
	}
	defer session.Stop()

	applier := browser.NewExecutor(session, c.browserCfg.ActionDelay, c.logger)

	pending, err := c.store.PendingAttempts(ctx, jobID)
	if err != nil {
		return c.failJob(ctx, job, err)
	}
	c.logger.Info("job run started",
		zap.String("job_id", jobID.String()),
		zap.Int("pending", len(pending)))

	for i := range pending {
		// Operators flip the status from outside the loop; honor it
		// before committing to another attempt.
		fresh, err := c.store.GetJob(ctx, jobID)
		if err != nil {
			return c.failJob(ctx, job, err)
		}
		if fresh.Status != types.JobInProgress {
			c.logger.Info("job run halted",
				zap.String("job_id", jobID.String()),
				zap.String("status", string(fresh.Status)))
			return nil
		}
		job = fresh

		attempt := &pending[i]
		directory, err := c.store.GetDirectory(ctx, attempt.DirectoryID)
		if err != nil {
			return c.failJob(ctx, job, err)
		}

		if err := c.attempts.Run(ctx, session, applier, product, directory, attempt); err != nil {
			return c.failJob(ctx, job, err)
		}

		// Re-read before the counter update: a pause or stop may have
		// landed while the attempt ran, and saving a stale row would
		// undo it.
		job, err = c.store.GetJob(ctx, jobID)
		if err != nil {
			return c.failJob(ctx, &types.Job{ID: jobID}, err)
		}
		if attempt.Status == types.AttemptSubmitted {
			job.CompletedCount++
		} else {
			job.FailedCount++
		}
		if err := c.store.UpdateJob(ctx, job); err != nil {
			return c.failJob(ctx, job, err)
		}
	}

	return c.completeJob(ctx, jobID)
}

// completeJob moves the job to COMPLETED, unless an operator already drove it
// elsewhere while the last attempt ran.
func (c *Coordinator) completeJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != types.JobInProgress {
		return nil
	}
	if err := c.store.SetJobStatus(ctx, jobID, types.JobCompleted); err != nil {
		return err
	}
	job.Status = types.JobCompleted
	c.metrics.JobFinished(string(types.JobCompleted))
	c.publishJob(ctx, job)
	c.logger.Info("job completed",
		zap.String("job_id", jobID.String()),
		zap.Int("completed", job.CompletedCount),
		zap.Int("failed", job.FailedCount))
	return nil
}

func (c *Coordinator) failJob(ctx context.Context, job *types.Job, cause error) error {
	if err := c.store.SetJobStatus(ctx, job.ID, types.JobFailed); err != nil {
		c.logger.Error("could not mark job failed", zap.Error(err))
	}
	job.Status = types.JobFailed
	c.metrics.JobFinished(string(types.JobFailed))
	c.publishJob(ctx, job)
	return cause
}

func (c *Coordinator) publishJob(ctx context.Context, job *types.Job) {
	c.bus.Publish(ctx, events.Event{
		Kind:   events.KindJobStatus,
		JobID:  job.ID,
		Status: string(job.Status),
	})
}
