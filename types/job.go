package types

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle status of a submission job.
type JobStatus string

const (
	JobNotStarted JobStatus = "NOT_STARTED"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobPaused     JobStatus = "PAUSED"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanStart reports whether a job in this status may be (re)started.
func (s JobStatus) CanStart() bool {
	return s == JobNotStarted || s == JobPaused
}

// CanPause reports whether a job in this status may be paused.
func (s JobStatus) CanPause() bool {
	return s == JobInProgress
}

// CanResume reports whether a job in this status may be resumed.
func (s JobStatus) CanResume() bool {
	return s == JobPaused
}

// CanStop reports whether a job in this status may be stopped by an operator.
// Stopping transitions the job to FAILED.
func (s JobStatus) CanStop() bool {
	return !s.Terminal()
}

// Job is a batch submission task: one product submitted to a set of
// directories. Counters are mutated only by the job coordinator; the invariant
// CompletedCount+FailedCount <= TotalDirectories holds at all times.
type Job struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"product_id"`
	Status           JobStatus  `gorm:"size:20;not null;default:NOT_STARTED;index" json:"status"`
	TotalDirectories int        `gorm:"not null" json:"total_directories"`
	CompletedCount   int        `gorm:"not null;default:0" json:"completed_count"`
	FailedCount      int        `gorm:"not null;default:0" json:"failed_count"`
	CreatedAt        time.Time  `json:"created_at"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`

	Attempts []Attempt `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"attempts,omitempty"`
}

// AttemptStatus is the lifecycle status of one directory-submission attempt.
type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "NOT_STARTED"
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptSubmitted  AttemptStatus = "SUBMITTED"
	// AttemptPendingApproval is reserved for manual-review flows; the runner
	// never sets it.
	AttemptPendingApproval AttemptStatus = "PENDING_APPROVAL"
	AttemptFailed          AttemptStatus = "FAILED"
)

// Terminal reports whether the attempt status admits no further transitions.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptFailed
}

// Pending reports whether the attempt is still eligible for execution.
func (s AttemptStatus) Pending() bool {
	return s == AttemptNotStarted || s == AttemptInProgress
}

// Attempt is one directory-submission effort within a job. Exactly one attempt
// exists per (job, directory) pair; a failed attempt stays FAILED and is never
// re-executed automatically.
type Attempt struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	JobID         uuid.UUID     `gorm:"type:uuid;not null;index" json:"job_id"`
	DirectoryID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"directory_id"`
	Status        AttemptStatus `gorm:"size:20;not null;default:NOT_STARTED;index" json:"status"`
	AttemptNumber int           `gorm:"not null;default:1" json:"attempt_number"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	ErrorMessage  string        `gorm:"type:text" json:"error_message,omitempty"`

	ActionLogs []ActionLog `gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE" json:"action_logs,omitempty"`
}
