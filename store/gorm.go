package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/submitflow/submitflow/types"
)

// GormStore implements Store on top of a gorm.DB handle.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormStore wraps an open gorm handle. Schema setup is the caller's
// responsibility (see Open / Migrate).
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormStore{db: db, logger: logger.With(zap.String("component", "store"))}
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.NewError(types.ErrNotFound, "record not found").WithCause(err)
	}
	return err
}

// --- Products ---

func (s *GormStore) CreateProduct(ctx context.Context, p *types.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	var p types.Product
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

func (s *GormStore) ListProducts(ctx context.Context) ([]types.Product, error) {
	var out []types.Product
	err := s.db.WithContext(ctx).Order("created_at").Find(&out).Error
	return out, err
}

func (s *GormStore) UpdateProduct(ctx context.Context, p *types.Product) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *GormStore) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&types.Product{}, "id = ?", id).Error
}

// --- Directories ---

func (s *GormStore) CreateDirectory(ctx context.Context, d *types.Directory) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(d).Error
}

func (s *GormStore) GetDirectory(ctx context.Context, id uuid.UUID) (*types.Directory, error) {
	var d types.Directory
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &d, nil
}

func (s *GormStore) ListDirectories(ctx context.Context) ([]types.Directory, error) {
	var out []types.Directory
	err := s.db.WithContext(ctx).Order("created_at").Find(&out).Error
	return out, err
}

func (s *GormStore) UpdateDirectory(ctx context.Context, d *types.Directory) error {
	return s.db.WithContext(ctx).Save(d).Error
}

// DeleteDirectory removes the directory and, transactionally, every attempt
// (and its action logs) that references it.
func (s *GormStore) DeleteDirectory(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attemptIDs []uuid.UUID
		if err := tx.Model(&types.Attempt{}).Where("directory_id = ?", id).
			Pluck("id", &attemptIDs).Error; err != nil {
			return err
		}
		if len(attemptIDs) > 0 {
			if err := tx.Delete(&types.ActionLog{}, "attempt_id IN ?", attemptIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&types.Attempt{}, "id IN ?", attemptIDs).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&types.Directory{}, "id = ?", id).Error
	})
}

// --- Jobs ---

// CreateJob persists a job together with one NOT_STARTED attempt per
// directory, in a single transaction. Every directory must already exist.
func (s *GormStore) CreateJob(ctx context.Context, job *types.Job, directoryIDs []uuid.UUID) error {
	if len(directoryIDs) == 0 {
		return types.NewError(types.ErrInvalidRequest, "job requires at least one directory")
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = types.JobNotStarted
	job.TotalDirectories = len(directoryIDs)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&types.Directory{}).Where("id IN ?", directoryIDs).Count(&count).Error; err != nil {
			return err
		}
		if int(count) != len(directoryIDs) {
			return types.NewError(types.ErrNotFound, "one or more directories do not exist")
		}

		if err := tx.Create(job).Error; err != nil {
			return err
		}
		for _, dirID := range directoryIDs {
			attempt := types.Attempt{
				ID:            uuid.New(),
				JobID:         job.ID,
				DirectoryID:   dirID,
				Status:        types.AttemptNotStarted,
				AttemptNumber: 1,
			}
			if err := tx.Create(&attempt).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	var job types.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &job, nil
}

func (s *GormStore) GetJobWithAttempts(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	var job types.Job
	err := s.db.WithContext(ctx).
		Preload("Attempts", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		First(&job, "id = ?", id).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &job, nil
}

func (s *GormStore) ListJobs(ctx context.Context) ([]types.Job, error) {
	var out []types.Job
	err := s.db.WithContext(ctx).Order("created_at desc").Find(&out).Error
	return out, err
}

func (s *GormStore) UpdateJob(ctx context.Context, job *types.Job) error {
	return s.db.WithContext(ctx).Save(job).Error
}

func (s *GormStore) SetJobStatus(ctx context.Context, id uuid.UUID, status types.JobStatus) error {
	updates := map[string]any{"status": status}
	if status.Terminal() {
		updates["completed_at"] = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).Model(&types.Job{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.Errorf(types.ErrNotFound, "job %s not found", id)
	}
	return nil
}

// DeleteJob removes the job, its attempts, and their action logs.
func (s *GormStore) DeleteJob(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attemptIDs []uuid.UUID
		if err := tx.Model(&types.Attempt{}).Where("job_id = ?", id).
			Pluck("id", &attemptIDs).Error; err != nil {
			return err
		}
		if len(attemptIDs) > 0 {
			if err := tx.Delete(&types.ActionLog{}, "attempt_id IN ?", attemptIDs).Error; err != nil {
				return err
			}
			if err := tx.Delete(&types.Attempt{}, "id IN ?", attemptIDs).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&types.Job{}, "id = ?", id).Error
	})
}

// --- Attempts ---

func (s *GormStore) GetAttempt(ctx context.Context, id uuid.UUID) (*types.Attempt, error) {
	var a types.Attempt
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return &a, nil
}

func (s *GormStore) AttemptsForJob(ctx context.Context, jobID uuid.UUID) ([]types.Attempt, error) {
	var out []types.Attempt
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("created_at, id").Find(&out).Error
	return out, err
}

func (s *GormStore) PendingAttempts(ctx context.Context, jobID uuid.UUID) ([]types.Attempt, error) {
	var out []types.Attempt
	err := s.db.WithContext(ctx).
		Where("job_id = ? AND status IN ?", jobID,
			[]types.AttemptStatus{types.AttemptNotStarted, types.AttemptInProgress}).
		// created_at can tie for attempts created in one transaction; id
		// breaks the tie so dispatch order is deterministic.
		Order("created_at, id").
		Find(&out).Error
	return out, err
}

func (s *GormStore) UpdateAttempt(ctx context.Context, a *types.Attempt) error {
	return s.db.WithContext(ctx).Save(a).Error
}

// --- Action logs ---

func (s *GormStore) AppendActionLog(ctx context.Context, l *types.ActionLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(l).Error
}

// UpdateActionLog backfills the success flag and error of an existing row.
// Other columns are never rewritten.
func (s *GormStore) UpdateActionLog(ctx context.Context, l *types.ActionLog) error {
	return s.db.WithContext(ctx).Model(&types.ActionLog{}).
		Where("id = ?", l.ID).
		Updates(map[string]any{"success": l.Success, "error": l.Error}).Error
}

func (s *GormStore) LogsForAttempt(ctx context.Context, attemptID uuid.UUID) ([]types.ActionLog, error) {
	var out []types.ActionLog
	err := s.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("step_number").
		Find(&out).Error
	return out, err
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}
