package repository

import (
	"context"
	"errors"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobRepository interface {
	// CreateIfAbsent inserts the job unless one with the same idempotency key exists.
	// It returns the stored job and whether it was newly created.
	CreateIfAbsent(ctx context.Context, job *model.Job) (*model.Job, bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error)
	// ClaimNext marks the oldest due pending job as running, skipping rows locked by other workers.
	// It returns nil when nothing is due.
	ClaimNext(ctx context.Context, now time.Time) (*model.Job, error)
	Update(ctx context.Context, job *model.Job) error
	// RequeueFailed resets a failed job to pending with a fresh attempt budget.
	// It reports false when the job was not failed, so only one caller requeues it.
	RequeueFailed(ctx context.Context, id uuid.UUID, payload string, runAt time.Time) (bool, error)
	List(ctx context.Context, status string, page, limit int) ([]model.Job, int64, error)
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) CreateIfAbsent(ctx context.Context, job *model.Job) (*model.Job, bool, error) {
	db := GetDB(ctx, r.db)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(job)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return job, true, nil
	}

	var existing model.Job
	if err := db.Where("idempotency_key = ?", job.IdempotencyKey).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *jobRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := GetDB(ctx, r.db).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) ClaimNext(ctx context.Context, now time.Time) (*model.Job, error) {
	var claimed *model.Job
	err := GetDB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var job model.Job
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_at <= ?", model.JobStatusPending, now).
			Order("run_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		job.Status = model.JobStatusRunning
		job.Attempts++
		if err := tx.Model(&job).Updates(map[string]interface{}{
			"status":   job.Status,
			"attempts": job.Attempts,
		}).Error; err != nil {
			return err
		}
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRepository) Update(ctx context.Context, job *model.Job) error {
	return GetDB(ctx, r.db).Save(job).Error
}

func (r *jobRepository) RequeueFailed(ctx context.Context, id uuid.UUID, payload string, runAt time.Time) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, model.JobStatusFailed).
		Updates(map[string]interface{}{
			"status":      model.JobStatusPending,
			"payload":     payload,
			"attempts":    0,
			"last_error":  "",
			"finished_at": nil,
			"run_at":      runAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *jobRepository) List(ctx context.Context, status string, page, limit int) ([]model.Job, int64, error) {
	var jobs []model.Job
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Job{})
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pageOffset(page, limit)
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&jobs).Error; err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}
