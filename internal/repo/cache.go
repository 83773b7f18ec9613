package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/kanban-board/internal/model"
)

// listsCacheKey is a hash of cached list results, one field per filter/limit.
const listsCacheKey = "taskboard:tasks:lists"

// CachedRepo serves List from Redis and evicts on every write. Redis
// failures fall back to the wrapped repository.
type CachedRepo struct {
	TaskRepository
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedRepo(base TaskRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedRepo {
	if base == nil {
		panic("repo.NewCachedRepo: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &CachedRepo{
		TaskRepository: base,
		redis:          client,
		ttl:            ttl,
		logger:         logger,
	}
}

func (c *CachedRepo) List(ctx context.Context, filter model.TaskFilter, limit int) ([]model.Task, error) {
	field := listField(filter, limit)
	if tasks, ok := c.load(ctx, field); ok {
		return tasks, nil
	}

	tasks, err := c.TaskRepository.List(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	c.store(ctx, field, tasks)
	return tasks, nil
}

func (c *CachedRepo) Create(ctx context.Context, in model.TaskInput) (model.Task, error) {
	t, err := c.TaskRepository.Create(ctx, in)
	if err == nil {
		c.evict(ctx)
	}
	return t, err
}

func (c *CachedRepo) Update(ctx context.Context, id int64, patch model.TaskPatch) (model.Task, error) {
	t, err := c.TaskRepository.Update(ctx, id, patch)
	if err == nil {
		c.evict(ctx)
	}
	return t, err
}

func (c *CachedRepo) Delete(ctx context.Context, id int64) error {
	err := c.TaskRepository.Delete(ctx, id)
	if err == nil {
		c.evict(ctx)
	}
	return err
}

func (c *CachedRepo) load(ctx context.Context, field string) ([]model.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.HGet(ctx, listsCacheKey, field).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("task cache read failed", zap.Error(err))
			c.evict(ctx)
		}
		return nil, false
	}
	var tasks []model.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		c.evict(ctx)
		return nil, false
	}
	return tasks, true
}

func (c *CachedRepo) store(ctx context.Context, field string, tasks []model.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	// the hash must never outlive its ttl, so both commands go in one MULTI
	_, err = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, listsCacheKey, field, data)
		pipe.Expire(ctx, listsCacheKey, c.ttl)
		return nil
	})
	if err != nil {
		c.logger.Warn("task cache write failed", zap.Error(err))
		c.evict(ctx)
	}
}

func (c *CachedRepo) evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, listsCacheKey).Err(); err != nil {
		c.logger.Warn("task cache evict failed", zap.Error(err))
	}
}

func listField(filter model.TaskFilter, limit int) string {
	column := "all"
	if filter.Column != nil {
		column = string(*filter.Column)
	}
	return fmt.Sprintf("%s:%d", column, limit)
}
