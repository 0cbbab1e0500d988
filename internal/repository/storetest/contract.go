// Package storetest holds the behaviour every job store backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"captions/internal/domain/entity"
	"captions/internal/domain/usecase"
)

func ptr[T any](v T) *T { return &v }

// Run exercises store against the job store contract. newStore must return
// an empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) usecase.JobStore) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("CreateDuplicate", func(t *testing.T) { testCreateDuplicate(t, newStore(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("MonotonicUpdatedAt", func(t *testing.T) { testMonotonicUpdatedAt(t, newStore(t)) })
	t.Run("RejectedPatchLeavesRecord", func(t *testing.T) { testRejectedPatch(t, newStore(t)) })
	t.Run("ReadAfterWrite", func(t *testing.T) { testReadAfterWrite(t, newStore(t)) })
	t.Run("TerminalStable", func(t *testing.T) { testTerminalStable(t, newStore(t)) })
	t.Run("ConcurrentUpdates", func(t *testing.T) { testConcurrentUpdates(t, newStore(t)) })
}

func mustCreate(t *testing.T, s usecase.JobStore) *entity.Job {
	t.Helper()
	j := entity.NewJob(time.Now())
	if err := s.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return j
}

func mustGet(t *testing.T, s usecase.JobStore, id string) *entity.Job {
	t.Helper()
	j, err := s.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJob(%s): %v", id, err)
	}
	return j
}

func assertSameJob(t *testing.T, got, want *entity.Job) {
	t.Helper()
	if got.JobID != want.JobID || got.Status != want.Status || got.Stage != want.Stage ||
		got.InputRef != want.InputRef || got.OutputRef != want.OutputRef ||
		got.ErrorMessage != want.ErrorMessage ||
		!got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("job mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func testCreateAndGet(t *testing.T, s usecase.JobStore) {
	j := mustCreate(t, s)
	assertSameJob(t, mustGet(t, s, j.JobID), j)

	if _, err := s.GetJob(context.Background(), "no-such-job"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("GetJob(missing) error = %v, want ErrNotFound", err)
	}
}

func testCreateDuplicate(t *testing.T, s usecase.JobStore) {
	first := mustCreate(t, s)

	second := *first
	second.Stage = entity.StageDispatch
	second.InputRef = "in/other"
	if err := s.CreateJob(context.Background(), &second); !errors.Is(err, entity.ErrAlreadyExists) {
		t.Fatalf("duplicate CreateJob error = %v, want ErrAlreadyExists", err)
	}
	assertSameJob(t, mustGet(t, s, first.JobID), first)
}

func testConcurrentCreate(t *testing.T, s usecase.JobStore) {
	const n = 8
	base := entity.NewJob(time.Now())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*entity.Job
		dupes   int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			j := *base
			j.InputRef = "in/" + string(rune('a'+i))
			err := s.CreateJob(context.Background(), &j)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, &j)
			case errors.Is(err, entity.ErrAlreadyExists):
				dupes++
			default:
				t.Errorf("CreateJob: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(winners) != 1 || dupes != n-1 {
		t.Fatalf("winners = %d, duplicates = %d; want 1 and %d", len(winners), dupes, n-1)
	}
	assertSameJob(t, mustGet(t, s, base.JobID), winners[0])
}

func testUpdateMissing(t *testing.T, s usecase.JobStore) {
	ctx := context.Background()
	_, err := s.UpdateJob(ctx, "ghost", entity.Patch{Stage: ptr(entity.StageDispatch)})
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("UpdateJob(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetJob(ctx, "ghost"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("update created a record: GetJob error = %v", err)
	}
}

func testMonotonicUpdatedAt(t *testing.T, s usecase.JobStore) {
	j := mustCreate(t, s)
	prev := j.UpdatedAt

	patches := []entity.Patch{
		{InputRef: ptr("in/1"), Stage: ptr(entity.StageDispatch)},
		{},
		{Status: ptr(entity.StatusProcessing)},
		{},
		{Stage: ptr(entity.StageExtractAudio)},
		{Stage: ptr(entity.StageTranscribe)},
		{Stage: ptr(entity.StageTranscribe)},
	}
	for i, p := range patches {
		got, err := s.UpdateJob(context.Background(), j.JobID, p)
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if !got.UpdatedAt.After(prev) {
			t.Fatalf("update %d: updatedAt %v not after %v", i, got.UpdatedAt, prev)
		}
		prev = got.UpdatedAt
	}
}

func testRejectedPatch(t *testing.T, s usecase.JobStore) {
	j := mustCreate(t, s)
	before := mustGet(t, s, j.JobID)

	_, err := s.UpdateJob(context.Background(), j.JobID, entity.Patch{Status: ptr(entity.StatusCompleted)})
	if !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("UpdateJob error = %v, want ErrInvalidTransition", err)
	}
	assertSameJob(t, mustGet(t, s, j.JobID), before)
}

func testReadAfterWrite(t *testing.T, s usecase.JobStore) {
	j := mustCreate(t, s)
	got, err := s.UpdateJob(context.Background(), j.JobID, entity.Patch{Stage: ptr(entity.StageTranscribe)})
	if err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if got.Stage != entity.StageTranscribe {
		t.Fatalf("returned stage = %s", got.Stage)
	}
	assertSameJob(t, mustGet(t, s, j.JobID), got)
}

func testTerminalStable(t *testing.T, s usecase.JobStore) {
	ctx := context.Background()
	j := mustCreate(t, s)

	done, err := s.UpdateJob(ctx, j.JobID, entity.Patch{
		Status:    ptr(entity.StatusCompleted),
		OutputRef: ptr("out/1"),
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != entity.StatusCompleted || done.OutputRef != "out/1" {
		t.Fatalf("completed job = %+v", done)
	}

	if _, err := s.UpdateJob(ctx, j.JobID, entity.Patch{Status: ptr(entity.StatusProcessing)}); !errors.Is(err, entity.ErrInvalidTransition) {
		t.Fatalf("reopen error = %v, want ErrInvalidTransition", err)
	}
	got := mustGet(t, s, j.JobID)
	if got.Status != entity.StatusCompleted || got.OutputRef != "out/1" {
		t.Fatalf("terminal job changed: %+v", got)
	}
}

func testConcurrentUpdates(t *testing.T, s usecase.JobStore) {
	ctx := context.Background()
	j := mustCreate(t, s)

	patches := []entity.Patch{
		{InputRef: ptr("in/1")},
		{Stage: ptr(entity.StageDispatch)},
		{Status: ptr(entity.StatusProcessing)},
		{}, {}, {},
	}

	var wg sync.WaitGroup
	for _, p := range patches {
		wg.Add(1)
		go func(p entity.Patch) {
			defer wg.Done()
			if _, err := s.UpdateJob(ctx, j.JobID, p); err != nil {
				t.Errorf("UpdateJob(%+v): %v", p, err)
			}
		}(p)
	}
	wg.Wait()

	got := mustGet(t, s, j.JobID)
	if got.InputRef != "in/1" || got.Stage != entity.StageDispatch || got.Status != entity.StatusProcessing {
		t.Fatalf("lost update: %+v", got)
	}
	if !got.UpdatedAt.After(j.UpdatedAt) {
		t.Fatal("updatedAt did not advance")
	}
}
