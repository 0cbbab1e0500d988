package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"captions/internal/domain/entity"
	"captions/internal/domain/usecase"
	"captions/internal/repository/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func newJobUseCase(t *testing.T) *usecase.JobUseCase {
	t.Helper()
	return usecase.NewJobUseCase(memory.NewMemoryRepo(), discardLogger())
}

func TestCreateJob(t *testing.T) {
	t.Parallel()
	uc := newJobUseCase(t)
	ctx := context.Background()

	a, err := uc.CreateJob(ctx)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	b, err := uc.CreateJob(ctx)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if a.JobID == b.JobID {
		t.Fatal("two jobs share an id")
	}
	if a.Status != entity.StatusQueued || a.Stage != entity.StageUpload {
		t.Fatalf("new job = %+v", a)
	}
	if !a.CreatedAt.Equal(a.UpdatedAt) {
		t.Fatalf("createdAt %v != updatedAt %v", a.CreatedAt, a.UpdatedAt)
	}

	got, err := uc.GetJob(ctx, a.JobID)
	if err != nil || got.JobID != a.JobID {
		t.Fatalf("GetJob = %+v, %v", got, err)
	}
}

func TestUpdateJobRejectsUnknownEnums(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		req       entity.PatchRequest
		wantField string
	}{
		{name: "status", req: entity.PatchRequest{Status: ptr("PAUSED")}, wantField: "status"},
		{name: "stage", req: entity.PatchRequest{Stage: ptr("RENDER")}, wantField: "stage"},
		{name: "empty status", req: entity.PatchRequest{Status: ptr("")}, wantField: "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			uc := newJobUseCase(t)
			ctx := context.Background()
			job, _ := uc.CreateJob(ctx)

			_, err := uc.UpdateJob(ctx, job.JobID, tt.req)
			var ite *entity.InvalidTransitionError
			if !errors.As(err, &ite) || ite.Field != tt.wantField {
				t.Fatalf("err = %v, want invalid %s", err, tt.wantField)
			}

			after, _ := uc.GetJob(ctx, job.JobID)
			if *after != *job {
				t.Fatalf("record changed: before %+v after %+v", job, after)
			}
		})
	}
}

func TestUpdateJobMissing(t *testing.T) {
	t.Parallel()
	uc := newJobUseCase(t)
	ctx := context.Background()

	_, err := uc.UpdateJob(ctx, "nope", entity.PatchRequest{Stage: ptr("DISPATCH")})
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := uc.GetJob(ctx, "nope"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatal("update created a record")
	}
}

func TestLifecycleToCompleted(t *testing.T) {
	t.Parallel()
	uc := newJobUseCase(t)
	ctx := context.Background()

	job, _ := uc.CreateJob(ctx)
	steps := []entity.PatchRequest{
		{InputRef: ptr("inputs/" + job.JobID + "/1-v.mp4"), Stage: ptr("DISPATCH")},
		{Status: ptr("PROCESSING"), Stage: ptr("DISPATCH")},
		{Status: ptr("PROCESSING"), Stage: ptr("EXTRACT_AUDIO")},
		{Status: ptr("PROCESSING"), Stage: ptr("TRANSCRIBE")},
		{Status: ptr("PROCESSING"), Stage: ptr("EMBED")},
		{Status: ptr("COMPLETED"), Stage: ptr("DONE"), OutputRef: ptr(usecase.OutputKey(job.JobID))},
	}

	prev := job.UpdatedAt
	for i, req := range steps {
		got, err := uc.UpdateJob(ctx, job.JobID, req)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if !got.UpdatedAt.After(prev) {
			t.Fatalf("step %d: updatedAt %v not after %v", i, got.UpdatedAt, prev)
		}
		prev = got.UpdatedAt
	}

	final, _ := uc.GetJob(ctx, job.JobID)
	if final.Status != entity.StatusCompleted || final.Stage != entity.StageDone ||
		final.OutputRef == "" || final.ErrorMessage != "" {
		t.Fatalf("final = %+v", final)
	}

	if _, err := uc.UpdateJob(ctx, job.JobID, entity.PatchRequest{Status: ptr("FAILED"), ErrorMessage: ptr("late")}); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("terminal job changed: err = %v", err)
	}
}
