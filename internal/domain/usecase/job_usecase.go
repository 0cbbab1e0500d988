package usecase

import (
	"context"
	"log/slog"
	"time"

	"captions/internal/domain/entity"
	"captions/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// JobStore persists jobs. CreateJob must fail with entity.ErrAlreadyExists
// instead of overwriting, UpdateJob must fail with entity.ErrNotFound
// instead of inserting, and UpdateJob applies the patch with
// entity.Patch.Apply atomically against the stored record.
type JobStore interface {
	CreateJob(ctx context.Context, job *entity.Job) error
	GetJob(ctx context.Context, jobID string) (*entity.Job, error)
	UpdateJob(ctx context.Context, jobID string, patch entity.Patch) (*entity.Job, error)
}

type JobUseCase struct {
	Store  JobStore
	Logger *slog.Logger
	Clock  func() time.Time
}

func NewJobUseCase(store JobStore, logger *slog.Logger) *JobUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobUseCase{
		Store:  store,
		Logger: logger,
		Clock:  time.Now,
	}
}

func (u *JobUseCase) CreateJob(ctx context.Context) (job *entity.Job, err error) {
	ctx, span := observability.StartSpan(ctx, "jobs.create")
	defer func() { observability.EndSpan(span, err) }()

	job = entity.NewJob(u.Clock())
	span.SetAttributes(attribute.String("job.id", job.JobID))

	if err := u.Store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	u.Logger.InfoContext(ctx, "job created", slog.String("job_id", job.JobID))
	return job, nil
}

func (u *JobUseCase) GetJob(ctx context.Context, jobID string) (*entity.Job, error) {
	return u.Store.GetJob(ctx, jobID)
}

// UpdateJob checks the requested status and stage against the known values
// before the store is touched, then applies the patch.
func (u *JobUseCase) UpdateJob(ctx context.Context, jobID string, req entity.PatchRequest) (job *entity.Job, err error) {
	ctx, span := observability.StartSpan(ctx, "jobs.update", attribute.String("job.id", jobID))
	defer func() { observability.EndSpan(span, err) }()

	patch, err := req.Patch()
	if err != nil {
		return nil, err
	}

	job, err = u.Store.UpdateJob(ctx, jobID, patch)
	if err != nil {
		u.Logger.WarnContext(ctx, "job update rejected",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	u.Logger.InfoContext(ctx, "job updated",
		slog.String("job_id", job.JobID),
		slog.String("status", job.Status.String()),
		slog.String("stage", job.Stage.String()),
	)
	return job, nil
}
