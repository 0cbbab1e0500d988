package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"captions/internal/domain/entity"

	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 100

// RedisRepo stores each job as one JSON value, so a single SET commits a
// whole update.
type RedisRepo struct {
	Client *redis.Client
	now    func() time.Time
}

func NewRedisRepo(client *redis.Client) *RedisRepo {
	return &RedisRepo{Client: client, now: time.Now}
}

func jobKey(jobID string) string { return "job:" + jobID }

func (r *RedisRepo) CreateJob(ctx context.Context, job *entity.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("redis: encode job: %w", err)
	}
	ok, err := r.Client.SetNX(ctx, jobKey(job.JobID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis: create job: %w", err)
	}
	if !ok {
		return entity.ErrAlreadyExists
	}
	return nil
}

func (r *RedisRepo) GetJob(ctx context.Context, jobID string) (*entity.Job, error) {
	data, err := r.Client.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get job: %w", err)
	}
	return decodeJob(data)
}

// UpdateJob applies patch under WATCH, retrying when another writer
// committed to the same job first.
func (r *RedisRepo) UpdateJob(ctx context.Context, jobID string, patch entity.Patch) (*entity.Job, error) {
	key := jobKey(jobID)
	var next entity.Job

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return entity.ErrNotFound
			}
			return err
		}
		current, err := decodeJob(data)
		if err != nil {
			return err
		}

		next, err = patch.Apply(*current, r.now())
		if err != nil {
			return err
		}
		out, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.Client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return &next, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, entity.ErrNotFound), errors.Is(err, entity.ErrInvalidTransition):
			return nil, err
		default:
			return nil, fmt.Errorf("redis: update job: %w", err)
		}
	}
	return nil, fmt.Errorf("redis: update job %s: gave up after %d conflicting writes", jobID, maxTxRetries)
}

func decodeJob(data []byte) (*entity.Job, error) {
	job := &entity.Job{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("redis: decode job: %w", err)
	}
	return job, nil
}
