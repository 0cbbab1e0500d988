package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"captions/internal/domain/entity"
)

type record struct {
	mu   sync.Mutex // serializes writers of this job
	snap atomic.Pointer[entity.Job]
}

// MemoryRepo keeps jobs in process memory. Writers to one job are
// serialized by that job's lock; readers load the last committed snapshot
// and never wait on a writer.
type MemoryRepo struct {
	mu   sync.RWMutex
	jobs map[string]*record
	now  func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		jobs: make(map[string]*record),
		now:  time.Now,
	}
}

// WithClock replaces the clock used to stamp updatedAt.
func (r *MemoryRepo) WithClock(now func() time.Time) *MemoryRepo {
	r.now = now
	return r
}

func (r *MemoryRepo) CreateJob(_ context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.JobID]; exists {
		return entity.ErrAlreadyExists
	}
	rec := &record{}
	cp := *job
	rec.snap.Store(&cp)
	r.jobs[job.JobID] = rec
	return nil
}

func (r *MemoryRepo) GetJob(_ context.Context, jobID string) (*entity.Job, error) {
	rec := r.lookup(jobID)
	if rec == nil {
		return nil, entity.ErrNotFound
	}
	cp := *rec.snap.Load()
	return &cp, nil
}

func (r *MemoryRepo) UpdateJob(_ context.Context, jobID string, patch entity.Patch) (*entity.Job, error) {
	rec := r.lookup(jobID)
	if rec == nil {
		return nil, entity.ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	next, err := patch.Apply(*rec.snap.Load(), r.now())
	if err != nil {
		return nil, err
	}
	stored := next
	rec.snap.Store(&stored)
	return &next, nil
}

func (r *MemoryRepo) lookup(jobID string) *record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobs[jobID]
}
