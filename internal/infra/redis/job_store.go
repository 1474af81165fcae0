package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"tutoring-ai-platform/internal/domain"
	"tutoring-ai-platform/internal/domain/model"
	"tutoring-ai-platform/internal/domain/ports/repository"

	goredis "github.com/go-redis/redis/v8"
)

var _ repository.JobStore = (*JobStore)(nil)

const jobKeyPrefix = "chat_job:"

// JobStore keeps chat job records in Redis as JSON values keyed by job id.
// Records are never deleted by the pipeline; pruning is an external concern.
type JobStore struct {
	client RedisClient
}

func NewJobStore(client RedisClient) *JobStore {
	return &JobStore{client: client}
}

func jobKey(id string) string { return jobKeyPrefix + id }

func (s *JobStore) Get(ctx context.Context, id string) (*model.ChatJob, error) {
	data, err := s.client.Get(ctx, jobKey(id))
	if err != nil {
		if err == goredis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	var job model.ChatJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *JobStore) Set(ctx context.Context, id string, job *model.ChatJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", id, err)
	}
	if err := s.client.Set(ctx, jobKey(id), data, 0); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *JobStore) ListAll(ctx context.Context) ([]*model.ChatJob, error) {
	keys, err := s.client.ScanKeys(ctx, jobKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	jobs := make([]*model.ChatJob, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // key expired between SCAN and MGET
		}
		var job model.ChatJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}
