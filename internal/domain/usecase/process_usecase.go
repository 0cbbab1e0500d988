package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"captions/internal/domain/entity"

	"github.com/cenkalti/backoff/v4"
)

// JobAPI is the worker's view of the job service. The worker advances jobs
// only through the same update path every other caller uses.
type JobAPI interface {
	GetJob(ctx context.Context, jobID string) (*entity.Job, error)
	UpdateJob(ctx context.Context, jobID string, req entity.PatchRequest) (*entity.Job, error)
}

type Storage interface {
	Download(ctx context.Context, key, destPath string) error
}

// StageRunner performs the media work of one pipeline stage.
type StageRunner interface {
	Run(ctx context.Context, job *entity.Job, stage entity.Stage, inputPath string) error
}

type NoopStageRunner struct{}

func (NoopStageRunner) Run(context.Context, *entity.Job, entity.Stage, string) error { return nil }

type ProcessUseCase struct {
	API     JobAPI
	Storage Storage
	Runner  StageRunner
	TmpDir  string
	Logger  *slog.Logger

	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func NewProcessUseCase(api JobAPI, storage Storage, runner StageRunner, tmpDir string, logger *slog.Logger) *ProcessUseCase {
	if runner == nil {
		runner = NoopStageRunner{}
	}
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessUseCase{
		API:         api,
		Storage:     storage,
		Runner:      runner,
		TmpDir:      tmpDir,
		Logger:      logger,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 5,
	}
}

// ProcessJob walks one job from DISPATCH to DONE. Any failure after the job
// has been claimed is reported as FAILED at the stage it happened in.
func (u *ProcessUseCase) ProcessJob(ctx context.Context, jobID string) error {
	u.Logger.InfoContext(ctx, "processing job", slog.String("job_id", jobID))

	if err := u.report(ctx, jobID, entity.StatusProcessing, entity.StageDispatch); err != nil {
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}

	job, err := u.API.GetJob(ctx, jobID)
	if err != nil {
		return u.fail(ctx, jobID, entity.StageDispatch, err)
	}
	if job.InputRef == "" {
		return u.fail(ctx, jobID, entity.StageDispatch, errors.New("missing inputKey on job (upload not completed)"))
	}

	if err := u.report(ctx, jobID, entity.StatusProcessing, entity.StageExtractAudio); err != nil {
		return err
	}

	dest := filepath.Join(u.TmpDir, jobID+filepath.Ext(job.InputRef))
	if err := u.Storage.Download(ctx, job.InputRef, dest); err != nil {
		return u.fail(ctx, jobID, entity.StageExtractAudio, err)
	}
	defer os.Remove(dest)
	u.Logger.InfoContext(ctx, "input downloaded", slog.String("job_id", jobID), slog.String("path", dest))

	for _, stage := range []entity.Stage{entity.StageExtractAudio, entity.StageTranscribe, entity.StageEmbed} {
		if stage != entity.StageExtractAudio {
			if err := u.report(ctx, jobID, entity.StatusProcessing, stage); err != nil {
				return err
			}
		}
		if err := u.Runner.Run(ctx, job, stage, dest); err != nil {
			return u.fail(ctx, jobID, stage, err)
		}
	}

	status, stage, out := entity.StatusCompleted.String(), entity.StageDone.String(), OutputKey(jobID)
	if err := u.update(ctx, jobID, entity.PatchRequest{Status: &status, Stage: &stage, OutputRef: &out}); err != nil {
		return err
	}

	u.Logger.InfoContext(ctx, "job completed", slog.String("job_id", jobID), slog.String("output", out))
	return nil
}

func (u *ProcessUseCase) report(ctx context.Context, jobID string, status entity.Status, stage entity.Stage) error {
	s, st := status.String(), stage.String()
	return u.update(ctx, jobID, entity.PatchRequest{Status: &s, Stage: &st})
}

func (u *ProcessUseCase) fail(ctx context.Context, jobID string, stage entity.Stage, cause error) error {
	u.Logger.ErrorContext(ctx, "job failed",
		slog.String("job_id", jobID),
		slog.String("stage", stage.String()),
		slog.String("error", cause.Error()),
	)

	status, st, msg := entity.StatusFailed.String(), stage.String(), cause.Error()
	if err := u.update(ctx, jobID, entity.PatchRequest{Status: &status, Stage: &st, ErrorMessage: &msg}); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// update retries temporary failures with capped exponential backoff. Any
// other error is returned at once.
func (u *ProcessUseCase) update(ctx context.Context, jobID string, req entity.PatchRequest) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = u.BaseDelay
	b.MaxInterval = u.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	retries := u.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	return backoff.Retry(func() error {
		_, err := u.API.UpdateJob(ctx, jobID, req)
		if err != nil && !temporary(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func temporary(err error) bool {
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}
