package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"deadline-tasks/domain"
)

const (
	tasksCacheKey = "tasks:all"
	// tasksGenKey is bumped by every write. A list snapshot is only stored
	// when the generation it was read under is still current.
	tasksGenKey = "tasks:gen"
)

var errGenerationMoved = errors.New("tasks generation moved")

type backend interface {
	CreateTask(ctx context.Context, in domain.NewTask) (string, error)
	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id string) (domain.Task, error)
	MarkDone(ctx context.Context, id string) error
}

// Cache wraps a task store with a Redis copy of the full task list. Writes
// invalidate the copy, so the next list reflects them.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
	// stale is set when an invalidation could not reach Redis. Lists bypass
	// the cache until a retried invalidation succeeds.
	stale atomic.Bool
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// A zero TTL disables population while still invalidating on writes.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) CreateTask(ctx context.Context, in domain.NewTask) (string, error) {
	id, err := c.base.CreateTask(ctx, in)
	if err != nil {
		return "", err
	}
	c.invalidate(ctx)
	return id, nil
}

func (c *Cache) ListTasks(ctx context.Context) ([]domain.Task, error) {
	if c.redis == nil {
		return c.base.ListTasks(ctx)
	}
	if c.stale.Load() && !c.invalidate(ctx) {
		return c.base.ListTasks(ctx)
	}
	if tasks, ok := c.loadTasks(ctx); ok {
		return tasks, nil
	}
	gen, genErr := readGeneration(ctx, c.redis)
	tasks, err := c.base.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		c.storeTasks(ctx, tasks, gen)
	}
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return c.base.GetTask(ctx, id)
}

func (c *Cache) MarkDone(ctx context.Context, id string) error {
	if err := c.base.MarkDone(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *Cache) loadTasks(ctx context.Context) ([]domain.Task, bool) {
	data, err := c.redis.Get(ctx, tasksCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, tasksCacheKey).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey).Err()
		return nil, false
	}
	return tasks, true
}

// storeTasks writes the snapshot only if no write happened since gen was read.
func (c *Cache) storeTasks(ctx context.Context, tasks []domain.Task, gen int64) {
	if c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(tasks)
	if err != nil {
		return
	}
	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGeneration(ctx, tx)
		if err != nil {
			return err
		}
		if cur != gen {
			return errGenerationMoved
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, tasksCacheKey, data, c.ttl)
			return nil
		})
		return err
	}, tasksGenKey)
	if err != nil && !errors.Is(err, errGenerationMoved) && !errors.Is(err, redis.TxFailedErr) {
		log.WithError(err).Debug("tasks cache: store skipped")
	}
}

// invalidate bumps the generation and drops the cached list. It reports
// whether Redis acknowledged both.
func (c *Cache) invalidate(ctx context.Context) bool {
	if c.redis == nil {
		return true
	}
	_, err := c.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, tasksGenKey)
		p.Del(ctx, tasksCacheKey)
		return nil
	})
	if err != nil {
		c.stale.Store(true)
		log.WithError(err).Warn("tasks cache: invalidation failed, bypassing cache")
		return false
	}
	c.stale.Store(false)
	return true
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, r stringGetter) (int64, error) {
	gen, err := r.Get(ctx, tasksGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}
