package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadforge/internal/entity"
	"github.com/xavierca1/leadforge/internal/usecase"
)

func TestTaskStore_SaveAndGet(t *testing.T) {
	fake := newFakeRedis()
	s := &TaskStore{client: fake, ttl: 24 * time.Hour}
	ctx := context.Background()

	rec := &usecase.TaskRecord{
		TaskID:  "task-1",
		Kind:    "import",
		Status:  usecase.TaskSucceeded,
		OwnerID: "user-1",
		Result:  &usecase.IngestResult{Created: 3, Failed: 1, Errors: []usecase.RowError{{Row: 4, Message: "email is invalid"}}},
	}
	require.NoError(t, s.Save(ctx, rec))
	assert.Equal(t, 24*time.Hour, fake.keys["leadforge:task:task-1"])

	got, err := s.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestTaskStore_Missing(t *testing.T) {
	s := &TaskStore{client: newFakeRedis(), ttl: time.Hour}

	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestTaskStore_Error(t *testing.T) {
	s := &TaskStore{client: &fakeRedis{err: errors.New("connection refused")}, ttl: time.Hour}

	err := s.Save(context.Background(), &usecase.TaskRecord{TaskID: "task-2"})
	assert.ErrorContains(t, err, "connection refused")
	_, err = s.Get(context.Background(), "task-2")
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, entity.ErrNotFound)
}
