package etl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobKeyPrefix    = "etl:job"
	latestKeyPrefix = "etl:latest"
)

// RedisStore keeps job state in Redis with a bounded lifetime.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore instantiates the store helper.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Save writes the job. A pending job becomes the company's latest run; later
// updates of an older job never take that place back.
func (s *RedisStore) Save(ctx context.Context, job Job) error {
	if s == nil || s.client == nil {
		return errors.New("etl: store not configured")
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), raw, s.ttl)
	if job.Status == StatusPending {
		pipe.Set(ctx, latestKey(job.CompanyID), job.ID, s.ttl)
	} else {
		pipe.SetNX(ctx, latestKey(job.CompanyID), job.ID, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("etl: save job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads a job by id.
func (s *RedisStore) Get(ctx context.Context, id string) (Job, error) {
	if s == nil || s.client == nil {
		return Job{}, errors.New("etl: store not configured")
	}
	payload, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Latest returns the most recently triggered job for the company.
func (s *RedisStore) Latest(ctx context.Context, companyID string) (Job, error) {
	if s == nil || s.client == nil {
		return Job{}, errors.New("etl: store not configured")
	}
	id, err := s.client.Get(ctx, latestKey(companyID)).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, err
	}
	return s.Get(ctx, id)
}

func jobKey(id string) string {
	return strings.Join([]string{jobKeyPrefix, id}, ":")
}

func latestKey(companyID string) string {
	return strings.Join([]string{latestKeyPrefix, companyID}, ":")
}
