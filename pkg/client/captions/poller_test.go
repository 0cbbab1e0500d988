package captions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"captions/internal/domain/entity"
)

type scriptedJobs struct {
	mu    sync.Mutex
	steps []entity.Status
	err   error
	reads int
}

func (s *scriptedJobs) GetJob(_ context.Context, jobID string) (*entity.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil && s.reads > len(s.steps) {
		return nil, s.err
	}
	i := min(s.reads-1, len(s.steps)-1)
	return &entity.Job{JobID: jobID, Status: s.steps[i]}, nil
}

func TestPollerWait(t *testing.T) {
	t.Parallel()

	jobs := &scriptedJobs{steps: []entity.Status{
		entity.StatusQueued, entity.StatusProcessing, entity.StatusProcessing, entity.StatusCompleted,
	}}
	var updates int
	p := NewPoller(jobs, time.Millisecond)
	p.OnUpdate = func(*entity.Job) { updates++ }

	job, err := p.Wait(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.Status != entity.StatusCompleted {
		t.Fatalf("status = %s", job.Status)
	}
	if jobs.reads != 4 || updates != 4 {
		t.Fatalf("reads = %d updates = %d, want 4", jobs.reads, updates)
	}
}

func TestPollerStopsAtFirstError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	jobs := &scriptedJobs{steps: []entity.Status{entity.StatusProcessing}, err: boom}

	_, err := NewPoller(jobs, time.Millisecond).Wait(context.Background(), "job-1")
	if err != boom {
		t.Fatalf("err = %v, want the read error unchanged", err)
	}
	if jobs.reads != 2 {
		t.Fatalf("reads = %d, want 2", jobs.reads)
	}
}

func TestPollerFailedIsTerminal(t *testing.T) {
	t.Parallel()

	jobs := &scriptedJobs{steps: []entity.Status{entity.StatusFailed}}
	job, err := NewPoller(jobs, time.Hour).Wait(context.Background(), "job-1")
	if err != nil || job.Status != entity.StatusFailed {
		t.Fatalf("Wait = %+v, %v", job, err)
	}
}

func TestPollerContextCancel(t *testing.T) {
	t.Parallel()

	jobs := &scriptedJobs{steps: []entity.Status{entity.StatusProcessing}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewPoller(jobs, 5*time.Millisecond).Wait(ctx, "job-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestNewPollerDefaultInterval(t *testing.T) {
	t.Parallel()
	if p := NewPoller(nil, 0); p.Interval != DefaultPollInterval {
		t.Fatalf("Interval = %v", p.Interval)
	}
}

func TestPollerZeroValueInterval(t *testing.T) {
	t.Parallel()

	jobs := &scriptedJobs{steps: []entity.Status{entity.StatusCompleted}}
	p := &Poller{Jobs: jobs}

	job, err := p.Wait(context.Background(), "job-1")
	if err != nil || job.Status != entity.StatusCompleted {
		t.Fatalf("Wait = %+v, %v", job, err)
	}
}
