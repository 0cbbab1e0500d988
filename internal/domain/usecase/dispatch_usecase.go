package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"captions/internal/domain/entity"
	"captions/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const defaultDispatchTimeout = 10 * time.Second

// Dispatcher hands a job to a worker. A single call is a single attempt.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

type JobService interface {
	GetJob(ctx context.Context, jobID string) (*entity.Job, error)
	UpdateJob(ctx context.Context, jobID string, req entity.PatchRequest) (*entity.Job, error)
}

type DispatchUseCase struct {
	Jobs       JobService
	Dispatcher Dispatcher
	Timeout    time.Duration
	// RecordFailures marks the job FAILED when the handoff does not succeed.
	// When false the job record is never touched here.
	RecordFailures bool
	Logger         *slog.Logger
}

func NewDispatchUseCase(jobs JobService, d Dispatcher, timeout time.Duration, logger *slog.Logger) *DispatchUseCase {
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchUseCase{
		Jobs:       jobs,
		Dispatcher: d,
		Timeout:    timeout,
		Logger:     logger,
	}
}

// Dispatch makes one handoff attempt for jobID. The job is advanced by the
// worker's own updates, not here.
func (u *DispatchUseCase) Dispatch(ctx context.Context, jobID string) (err error) {
	ctx, span := observability.StartSpan(ctx, "jobs.dispatch", attribute.String("job.id", jobID))
	defer func() { observability.EndSpan(span, err) }()

	job, err := u.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return &entity.InvalidTransitionError{
			Field:  "status",
			Value:  job.Status.String(),
			Reason: "job has already finished",
		}
	}
	if job.InputRef == "" {
		return &entity.InvalidTransitionError{Field: "inputKey", Reason: "upload has not been recorded"}
	}

	dctx, cancel := context.WithTimeout(ctx, u.Timeout)
	defer cancel()

	start := time.Now()
	if err := u.Dispatcher.Dispatch(dctx, jobID); err != nil {
		var dfe *entity.DispatchFailedError
		if !errors.As(err, &dfe) {
			dfe = &entity.DispatchFailedError{Err: err}
		}
		u.Logger.ErrorContext(ctx, "dispatch failed",
			slog.String("job_id", jobID),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", dfe.Error()),
		)
		if u.RecordFailures {
			u.recordFailure(ctx, jobID, dfe)
		}
		return dfe
	}

	u.Logger.InfoContext(ctx, "job dispatched",
		slog.String("job_id", jobID),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (u *DispatchUseCase) recordFailure(ctx context.Context, jobID string, cause error) {
	status := entity.StatusFailed.String()
	msg := cause.Error()
	_, err := u.Jobs.UpdateJob(context.WithoutCancel(ctx), jobID, entity.PatchRequest{
		Status:       &status,
		ErrorMessage: &msg,
	})
	if err != nil {
		u.Logger.WarnContext(ctx, "could not record dispatch failure",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}
