// Package store provides relational persistence for jobs, attempts, action
// logs, products, and directories on top of gorm. PostgreSQL is the
// production backend; MySQL and SQLite (pure Go) are supported for smaller
// deployments and tests.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/submitflow/submitflow/types"
)

// Store is the persistence boundary consumed by the runner and the API layer.
// All reads are read-after-write consistent with respect to prior calls on
// the same Store, which is what lets pause/stop signals flip job status from
// outside a run loop and be observed at the next attempt boundary.
type Store interface {
	// Products
	CreateProduct(ctx context.Context, p *types.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error)
	ListProducts(ctx context.Context) ([]types.Product, error)
	UpdateProduct(ctx context.Context, p *types.Product) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	// Directories
	CreateDirectory(ctx context.Context, d *types.Directory) error
	GetDirectory(ctx context.Context, id uuid.UUID) (*types.Directory, error)
	ListDirectories(ctx context.Context) ([]types.Directory, error)
	UpdateDirectory(ctx context.Context, d *types.Directory) error
	DeleteDirectory(ctx context.Context, id uuid.UUID) error

	// Jobs. CreateJob persists the job and its attempts atomically after
	// verifying every referenced directory exists.
	CreateJob(ctx context.Context, job *types.Job, directoryIDs []uuid.UUID) error
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	GetJobWithAttempts(ctx context.Context, id uuid.UUID) (*types.Job, error)
	ListJobs(ctx context.Context) ([]types.Job, error)
	UpdateJob(ctx context.Context, job *types.Job) error
	SetJobStatus(ctx context.Context, id uuid.UUID, status types.JobStatus) error
	DeleteJob(ctx context.Context, id uuid.UUID) error

	// Attempts
	GetAttempt(ctx context.Context, id uuid.UUID) (*types.Attempt, error)
	AttemptsForJob(ctx context.Context, jobID uuid.UUID) ([]types.Attempt, error)
	// PendingAttempts returns the job's attempts still eligible for
	// execution (NOT_STARTED or IN_PROGRESS), in creation order.
	PendingAttempts(ctx context.Context, jobID uuid.UUID) ([]types.Attempt, error)
	UpdateAttempt(ctx context.Context, a *types.Attempt) error

	// Action logs
	AppendActionLog(ctx context.Context, l *types.ActionLog) error
	UpdateActionLog(ctx context.Context, l *types.ActionLog) error
	LogsForAttempt(ctx context.Context, attemptID uuid.UUID) ([]types.ActionLog, error)

	Ping(ctx context.Context) error
	Close() error
}
