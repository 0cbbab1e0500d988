package psql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"captions/internal/domain/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormJobRepo struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewGormJobRepo(db *gorm.DB) *GormJobRepo {
	return &GormJobRepo{DB: db, now: time.Now}
}

func (r *GormJobRepo) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(&entity.Job{})
}

// CreateJob inserts job unless a row with the same id exists. The check and
// the insert are one statement.
func (r *GormJobRepo) CreateJob(ctx context.Context, job *entity.Job) error {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "job_id"}}, DoNothing: true}).
		Create(job)
	if res.Error != nil {
		return fmt.Errorf("psql: create job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return entity.ErrAlreadyExists
	}
	return nil
}

func (r *GormJobRepo) GetJob(ctx context.Context, jobID string) (*entity.Job, error) {
	job := &entity.Job{}
	if err := r.DB.WithContext(ctx).First(job, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("psql: get job: %w", err)
	}
	return job, nil
}

// UpdateJob locks the row, applies patch to it and writes the result in one
// transaction. A missing row is never inserted.
func (r *GormJobRepo) UpdateJob(ctx context.Context, jobID string, patch entity.Patch) (*entity.Job, error) {
	var next entity.Job

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var current entity.Job
		if err := q.First(&current, "job_id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return entity.ErrNotFound
			}
			return err
		}

		var err error
		next, err = patch.Apply(current, r.now())
		if err != nil {
			return err
		}

		res := tx.Model(&entity.Job{}).
			Where("job_id = ?", jobID).
			Updates(map[string]any{
				"status":        next.Status,
				"stage":         next.Stage,
				"input_ref":     next.InputRef,
				"output_ref":    next.OutputRef,
				"error_message": next.ErrorMessage,
				"updated_at":    next.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return entity.ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) || errors.Is(err, entity.ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("psql: update job: %w", err)
	}
	return &next, nil
}
