package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/submitflow/submitflow/store"
	"github.com/submitflow/submitflow/types"
)

// JobController is the slice of the run manager the API drives.
type JobController interface {
	Start(ctx context.Context, jobID uuid.UUID) error
	Pause(ctx context.Context, jobID uuid.UUID) error
	Resume(ctx context.Context, jobID uuid.UUID) error
	Stop(ctx context.Context, jobID uuid.UUID) error
}

// JobHandler serves the job lifecycle endpoints.
type JobHandler struct {
	store      store.Store
	controller JobController
	logger     *zap.Logger
}

// CreateJobRequest is the job creation payload.
type CreateJobRequest struct {
	ProductID    uuid.UUID   `json:"product_id"`
	DirectoryIDs []uuid.UUID `json:"directory_ids"`
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(st store.Store, controller JobController, logger *zap.Logger) *JobHandler {
	return &JobHandler{store: st, controller: controller, logger: logger}
}

// HandleCreateJob creates a job with one attempt per directory.
func (h *JobHandler) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.ProductID == uuid.Nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "product_id is required"), h.logger)
		return
	}
	if len(req.DirectoryIDs) == 0 {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "directory_ids must not be empty"), h.logger)
		return
	}

	if _, err := h.store.GetProduct(r.Context(), req.ProductID); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	job := &types.Job{ProductID: req.ProductID}
	if err := h.store.CreateJob(r.Context(), job, req.DirectoryIDs); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.logger.Info("job created",
		zap.String("job_id", job.ID.String()),
		zap.Int("directories", job.TotalDirectories))
	WriteCreated(w, job)
}

// HandleListJobs lists jobs, newest first.
func (h *JobHandler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListJobs(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, jobs)
}

// HandleGetJob returns one job with its attempts.
func (h *JobHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	job, err := h.store.GetJobWithAttempts(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, job)
}

// HandleDeleteJob removes a job and its attempts and logs.
func (h *JobHandler) HandleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	if job.Status == types.JobInProgress {
		WriteError(w, types.NewError(types.ErrInvalidTransition, "cannot delete a running job"), h.logger)
		return
	}
	if err := h.store.DeleteJob(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"deleted": id.String()})
}

// HandleStartJob launches an async run for the job.
func (h *JobHandler) HandleStartJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start", h.controller.Start)
}

// HandlePauseJob pauses the job at its next attempt boundary.
func (h *JobHandler) HandlePauseJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pause", h.controller.Pause)
}

// HandleResumeJob resumes a paused job.
func (h *JobHandler) HandleResumeJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resume", h.controller.Resume)
}

// HandleStopJob terminally stops the job.
func (h *JobHandler) HandleStopJob(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "stop", h.controller.Stop)
}

func (h *JobHandler) transition(w http.ResponseWriter, r *http.Request, name string, op func(context.Context, uuid.UUID) error) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	if err := op(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	h.logger.Info("job transition",
		zap.String("job_id", id.String()),
		zap.String("op", name),
		zap.String("status", string(job.Status)))
	WriteSuccess(w, job)
}

// HandleJobAttempts lists the job's attempts in creation order.
func (h *JobHandler) HandleJobAttempts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	if _, err := h.store.GetJob(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	attempts, err := h.store.AttemptsForJob(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, attempts)
}

// HandleAttemptLogs returns the step-ordered action log of one attempt.
func (h *JobHandler) HandleAttemptLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, h.logger)
	if !ok {
		return
	}
	if _, err := h.store.GetAttempt(r.Context(), id); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	logs, err := h.store.LogsForAttempt(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, logs)
}
