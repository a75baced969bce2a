package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xavierca1/leadforge/internal/entity"
)

const (
	TaskQueued    = "queued"
	TaskSucceeded = "succeeded"
	TaskFailed    = "failed"
)

// TaskRecord is the last known state of a background task.
type TaskRecord struct {
	TaskID     string        `json:"task_id"`
	Kind       string        `json:"kind"`
	Status     string        `json:"status"`
	OwnerID    string        `json:"owner_id"`
	ProjectID  string        `json:"project_id,omitempty"`
	Result     *IngestResult `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	QueuedAt   *time.Time    `json:"queued_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// TaskStore keeps task records for a bounded time. Get returns
// entity.ErrNotFound for unknown or expired ids.
type TaskStore interface {
	Save(ctx context.Context, rec *TaskRecord) error
	Get(ctx context.Context, taskID string) (*TaskRecord, error)
}

// TaskTracker records task progress on a best-effort basis: a store outage
// never fails the task itself. A nil tracker records nothing.
type TaskTracker struct {
	Store  TaskStore
	Logger *zap.Logger
}

func NewTaskTracker(store TaskStore, logger *zap.Logger) *TaskTracker {
	return &TaskTracker{Store: store, Logger: logger}
}

func (t *TaskTracker) Queued(ctx context.Context, handle *TaskHandle, ownerID, projectID string) {
	if t == nil || t.Store == nil {
		return
	}
	now := time.Now().UTC()
	t.save(ctx, &TaskRecord{
		TaskID:    handle.TaskID,
		Kind:      handle.Kind,
		Status:    TaskQueued,
		OwnerID:   ownerID,
		ProjectID: projectID,
		QueuedAt:  &now,
	})
}

// Finish stores the outcome of rec's task. Interrupted runs are left queued
// because the message goes back to the queue.
func (t *TaskTracker) Finish(ctx context.Context, rec TaskRecord, result *IngestResult, err error) {
	if t == nil || t.Store == nil || ctx.Err() != nil {
		return
	}
	if prev, getErr := t.Store.Get(ctx, rec.TaskID); getErr == nil {
		rec.QueuedAt = prev.QueuedAt
	}
	now := time.Now().UTC()
	rec.FinishedAt = &now
	rec.Result = result
	rec.Status = TaskSucceeded
	if err != nil {
		rec.Status = TaskFailed
		rec.Error = err.Error()
	}
	t.save(ctx, &rec)
}

func (t *TaskTracker) save(ctx context.Context, rec *TaskRecord) {
	if err := t.Store.Save(ctx, rec); err != nil {
		t.Logger.Warn("failed to record task state", zap.String("task_id", rec.TaskID),
			zap.String("status", rec.Status), zap.Error(err))
	}
}

// Get returns the caller's task record.
func (t *TaskTracker) Get(ctx context.Context, ownerID, taskID string) (*TaskRecord, error) {
	if t == nil || t.Store == nil {
		return nil, unavailable("task status is not available", nil)
	}
	rec, err := t.Store.Get(ctx, taskID)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, notFound("task")
	}
	if err != nil {
		return nil, unavailable("failed to load task", err)
	}
	if rec.OwnerID != ownerID {
		return nil, forbidden("task")
	}
	return rec, nil
}
