package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/usecase"
)

const taskKeyPrefix = "leadforge:task:"

// TaskStore keeps task records as JSON with a TTL; the API and the worker
// share it through Redis.
type TaskStore struct {
	client redisClient
	ttl    time.Duration
}

func NewTaskStore(client *redis.Client, ttl time.Duration) *TaskStore {
	return &TaskStore{client: client, ttl: ttl}
}

func (s *TaskStore) Save(ctx context.Context, rec *usecase.TaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", rec.TaskID, err)
	}
	if err := s.client.Set(ctx, taskKeyPrefix+rec.TaskID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save task %s: %w", rec.TaskID, err)
	}
	return nil
}

func (s *TaskStore) Get(ctx context.Context, taskID string) (*usecase.TaskRecord, error) {
	data, err := s.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	var rec usecase.TaskRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", taskID, err)
	}
	return &rec, nil
}
