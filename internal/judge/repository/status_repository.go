package repository

import (
	"context"
	"encoding/json"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
)

const (
	statusKeyPrefix  = "judge:task:"
	defaultStatusTTL = 30 * time.Minute
)

// StatusRepository keeps the progress of asynchronous tasks in the cache.
// Entries expire; nothing outlives the TTL.
type StatusRepository struct {
	cache cache.Cache
	TTL   time.Duration
}

// NewStatusRepository creates a new repository.
func NewStatusRepository(cacheClient cache.Cache, ttl time.Duration) *StatusRepository {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &StatusRepository{cache: cacheClient, TTL: ttl}
}

// Get returns the status of one task.
func (r *StatusRepository) Get(ctx context.Context, taskID string) (model.TaskStatus, error) {
	if taskID == "" {
		return model.TaskStatus{}, appErr.ValidationError("id", "required")
	}
	if r.cache == nil {
		return model.TaskStatus{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, statusKeyPrefix+taskID)
	if err != nil {
		return model.TaskStatus{}, appErr.Wrapf(err, appErr.CacheError, "load task status failed")
	}
	if val == "" {
		return model.TaskStatus{}, appErr.New(appErr.NotFound).WithMessage("task not found")
	}
	var status model.TaskStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return model.TaskStatus{}, appErr.Wrapf(err, appErr.CacheError, "decode task status failed")
	}
	return status, nil
}

// Save stores status and refreshes its TTL.
func (r *StatusRepository) Save(ctx context.Context, status model.TaskStatus) error {
	if status.ID == "" {
		return appErr.ValidationError("id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	if status.UpdatedAt == 0 {
		status.UpdatedAt = time.Now().Unix()
	}
	data, err := json.Marshal(status)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "encode task status failed")
	}
	if err := r.cache.Set(ctx, statusKeyPrefix+status.ID, string(data), r.TTL); err != nil {
		return appErr.Wrapf(err, appErr.CacheSetFailed, "store task status failed")
	}
	return nil
}
