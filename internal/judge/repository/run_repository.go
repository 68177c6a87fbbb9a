package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"offlinejudge/internal/common/cache"
	"offlinejudge/internal/judge/model"
	appErr "offlinejudge/pkg/errors"
)

const runKeyPrefix = "judge:run:"

// RunRepository stores asynchronous run status in the shared cache.
type RunRepository struct {
	cache cache.Cache
	TTL   time.Duration
}

// NewRunRepository creates a new repository.
func NewRunRepository(cacheClient cache.Cache, ttl time.Duration) *RunRepository {
	return &RunRepository{cache: cacheClient, TTL: ttl}
}

// Get returns status by run id.
func (r *RunRepository) Get(ctx context.Context, runID string) (model.RunStatus, error) {
	if runID == "" {
		return model.RunStatus{}, appErr.ValidationError("run_id", "required")
	}
	if r.cache == nil {
		return model.RunStatus{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, runKeyPrefix+runID)
	if err != nil {
		return model.RunStatus{}, appErr.Wrapf(err, appErr.CacheError, "load run status failed")
	}
	if val == "" {
		return model.RunStatus{}, appErr.Newf(appErr.RunNotFound, "run %s not found", runID)
	}
	var status model.RunStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return model.RunStatus{}, appErr.Wrapf(err, appErr.CacheError, "decode run status failed")
	}
	return status, nil
}

// Save persists status, refreshing its TTL.
func (r *RunRepository) Save(ctx context.Context, status model.RunStatus) error {
	if status.RunID == "" {
		return appErr.ValidationError("run_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal run status failed: %w", err)
	}
	if err := r.cache.Set(ctx, runKeyPrefix+status.RunID, string(data), r.TTL); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store run status failed")
	}
	return nil
}

// Create stores a pending status only if the run id is unused.
func (r *RunRepository) Create(ctx context.Context, status model.RunStatus) error {
	if status.RunID == "" {
		return appErr.ValidationError("run_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal run status failed: %w", err)
	}
	ok, err := r.cache.SetNX(ctx, runKeyPrefix+status.RunID, string(data), r.TTL)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store run status failed")
	}
	if !ok {
		return appErr.Newf(appErr.InvalidParams, "run %s already exists", status.RunID)
	}
	return nil
}
