package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"captions/internal/domain/entity"
	"captions/internal/domain/usecase"
	"captions/internal/repository/storetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var _ usecase.JobStore = (*RedisRepo)(nil)

func newTestRepo(t *testing.T) *RedisRepo {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRepo(client)
}

func TestRedisRepoContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) usecase.JobStore { return newTestRepo(t) })
}

func TestRedisRepoCorruptRecord(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if err := r.Client.Set(ctx, jobKey("broken"), "{not json", 0).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := r.GetJob(ctx, "broken"); err == nil || errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("GetJob error = %v, want decode error", err)
	}
	if _, err := r.UpdateJob(ctx, "broken", entity.Patch{}); err == nil {
		t.Fatal("UpdateJob on corrupt record succeeded")
	}
}

func TestRedisRepoStoresWireFormat(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	j := entity.NewJob(time.Now())
	if err := r.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	raw, err := r.Client.Get(ctx, jobKey(j.JobID)).Result()
	if err != nil {
		t.Fatalf("raw get: %v", err)
	}
	want := `"status":"QUEUED","stage":"UPLOAD"`
	if !strings.Contains(raw, want) {
		t.Fatalf("stored %s, want it to contain %s", raw, want)
	}
}
