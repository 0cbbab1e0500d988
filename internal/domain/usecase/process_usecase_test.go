package usecase_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"captions/internal/domain/entity"
	"captions/internal/domain/usecase"
)

type fileStorage struct {
	err error
}

func (s fileStorage) Download(_ context.Context, key, destPath string) error {
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(destPath, []byte(key), 0o600)
}

type failingRunner struct {
	at    entity.Stage
	mu    sync.Mutex
	seen  []entity.Stage
	input string
}

func (r *failingRunner) Run(_ context.Context, _ *entity.Job, stage entity.Stage, inputPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, stage)
	r.input = inputPath
	if stage == r.at {
		return errors.New(stage.String() + " exploded")
	}
	return nil
}

type tempError struct{}

func (tempError) Error() string   { return "gateway unavailable" }
func (tempError) Temporary() bool { return true }

// flakyAPI fails the first n updates with a temporary error.
type flakyAPI struct {
	usecase.JobAPI
	mu       sync.Mutex
	failures int
	attempts int
}

func (f *flakyAPI) UpdateJob(ctx context.Context, jobID string, req entity.PatchRequest) (*entity.Job, error) {
	f.mu.Lock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, tempError{}
	}
	f.mu.Unlock()
	return f.JobAPI.UpdateJob(ctx, jobID, req)
}

func newProcess(api usecase.JobAPI, storage usecase.Storage, runner usecase.StageRunner, tmp string) *usecase.ProcessUseCase {
	p := usecase.NewProcessUseCase(api, storage, runner, tmp, discardLogger())
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	return p
}

func TestProcessJobCompletes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	jobs := newJobUseCase(t)
	job := newDispatchable(t, jobs)
	runner := &failingRunner{}
	tmp := t.TempDir()

	if err := newProcess(jobs, fileStorage{}, runner, tmp).ProcessJob(ctx, job.JobID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}

	got, _ := jobs.GetJob(ctx, job.JobID)
	if got.Status != entity.StatusCompleted || got.Stage != entity.StageDone {
		t.Fatalf("job = %+v", got)
	}
	if got.OutputRef != "outputs/"+job.JobID+"/captions.vtt" {
		t.Fatalf("outputKey = %q", got.OutputRef)
	}

	want := []entity.Stage{entity.StageExtractAudio, entity.StageTranscribe, entity.StageEmbed}
	if len(runner.seen) != len(want) {
		t.Fatalf("stages run = %v", runner.seen)
	}
	for i := range want {
		if runner.seen[i] != want[i] {
			t.Fatalf("stages run = %v, want %v", runner.seen, want)
		}
	}
	if !strings.HasPrefix(runner.input, tmp) || !strings.HasSuffix(runner.input, ".mp4") {
		t.Fatalf("input path = %q", runner.input)
	}
	if _, err := os.Stat(runner.input); !os.IsNotExist(err) {
		t.Fatal("downloaded input was not removed")
	}
}

func TestProcessJobFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		withInput bool
		storage   fileStorage
		failAt    entity.Stage
		wantStage entity.Stage
		wantError string
	}{
		{name: "missing input", wantStage: entity.StageDispatch, wantError: "missing inputKey"},
		{name: "download fails", withInput: true, storage: fileStorage{err: errors.New("no such key")}, wantStage: entity.StageExtractAudio, wantError: "no such key"},
		{name: "transcribe fails", withInput: true, failAt: entity.StageTranscribe, wantStage: entity.StageTranscribe, wantError: "TRANSCRIBE exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			jobs := newJobUseCase(t)

			var job *entity.Job
			if tt.withInput {
				job = newDispatchable(t, jobs)
			} else {
				job, _ = jobs.CreateJob(ctx)
			}

			runner := &failingRunner{at: tt.failAt}

			err := newProcess(jobs, tt.storage, runner, t.TempDir()).ProcessJob(ctx, job.JobID)
			if err == nil || !strings.Contains(err.Error(), tt.wantError) {
				t.Fatalf("err = %v, want %q", err, tt.wantError)
			}

			got, _ := jobs.GetJob(ctx, job.JobID)
			if got.Status != entity.StatusFailed || got.Stage != tt.wantStage {
				t.Fatalf("job = %s/%s, want FAILED/%s", got.Status, got.Stage, tt.wantStage)
			}
			if !strings.Contains(got.ErrorMessage, tt.wantError) || got.OutputRef != "" {
				t.Fatalf("job = %+v", got)
			}
		})
	}
}

func TestProcessJobRetriesTemporaryErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	jobs := newJobUseCase(t)
	job := newDispatchable(t, jobs)
	api := &flakyAPI{JobAPI: jobs, failures: 2}

	if err := newProcess(api, fileStorage{}, nil, t.TempDir()).ProcessJob(ctx, job.JobID); err != nil {
		t.Fatalf("ProcessJob: %v", err)
	}
	got, _ := jobs.GetJob(ctx, job.JobID)
	if got.Status != entity.StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	// 5 progress reports plus the 2 rejected attempts.
	if api.attempts != 7 {
		t.Fatalf("attempts = %d, want 7", api.attempts)
	}
}

func TestProcessJobGivesUp(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	jobs := newJobUseCase(t)
	job := newDispatchable(t, jobs)
	api := &flakyAPI{JobAPI: jobs, failures: 100}

	p := newProcess(api, fileStorage{}, nil, t.TempDir())
	p.MaxAttempts = 3

	err := p.ProcessJob(ctx, job.JobID)
	var te tempError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want the last temporary error", err)
	}
	if api.attempts != 3 {
		t.Fatalf("attempts = %d, want 3", api.attempts)
	}
}

func TestProcessJobInvalidTransitionNotRetried(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	jobs := newJobUseCase(t)
	job := newDispatchable(t, jobs)
	if _, err := jobs.UpdateJob(ctx, job.JobID, entity.PatchRequest{Status: ptr("FAILED"), ErrorMessage: ptr("cancelled")}); err != nil {
		t.Fatal(err)
	}
	api := &flakyAPI{JobAPI: jobs}

	err := newProcess(api, fileStorage{}, nil, t.TempDir()).ProcessJob(ctx, job.JobID)
	if !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}
	if api.attempts != 1 {
		t.Fatalf("attempts = %d, want 1", api.attempts)
	}
}

func TestProcessJobStopsRetryingOnCancel(t *testing.T) {
	t.Parallel()

	jobs := newJobUseCase(t)
	job := newDispatchable(t, jobs)
	api := &flakyAPI{JobAPI: jobs, failures: 100}

	p := newProcess(api, fileStorage{}, nil, t.TempDir())
	p.BaseDelay = time.Hour
	p.MaxDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.ProcessJob(ctx, job.JobID)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("retry loop ignored cancellation for %v", elapsed)
	}
	if api.attempts != 1 {
		t.Fatalf("attempts = %d, want 1", api.attempts)
	}
}
