package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forgo/planner/api/internal/model"
)

// ErrNotFound indicates the job exists in neither the cache nor the store
var ErrNotFound = errors.New("job not found")

// DefaultTTL is how long a cached status stays valid
const DefaultTTL = time.Hour

const (
	fieldJobID            = "job_id"
	fieldStatus           = "status"
	fieldCurrentIteration = "current_iteration"
	fieldCreatedAt        = "created_at"
	fieldUpdatedAt        = "updated_at"
	fieldVersion          = "version"
)

// storeScript writes a status view unless the cached entry is terminal or
// carries a newer version. KEYS[1] is the job key, ARGV[1] the version in
// unix microseconds, ARGV[2] the TTL in milliseconds and the rest are
// field/value pairs.
const storeScript = `
local cur = redis.call('HMGET', KEYS[1], 'status', 'version')
if cur[1] == 'completed' or cur[1] == 'failed' or cur[1] == 'cancelled' then
	return 0
end
local cached = tonumber(cur[2])
if cached and cached > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], unpack(ARGV, 3))
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`

// hashStore is the subset of the Redis client the cache needs
type hashStore interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// JobLoader reads a job from the store on a cache miss
type JobLoader interface {
	GetByID(ctx context.Context, id string) (*model.Job, error)
}

// Config holds Redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
}

// StatusCache is a best-effort Redis cache of job status views in front of
// the store. Redis failures are logged and never surfaced to callers.
type StatusCache struct {
	redis  hashStore
	jobs   JobLoader
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a status cache. A nil store disables Redis and every read goes
// straight to the loader.
func New(store hashStore, jobs JobLoader, ttl time.Duration, logger *slog.Logger) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &StatusCache{
		redis:  store,
		jobs:   jobs,
		ttl:    ttl,
		logger: logger,
	}
}

// NewClient creates a Redis client and verifies it answers a PING
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Key returns the Redis key holding a job's status. Table-qualified and bare
// job ids map to the same key.
func Key(jobID string) string {
	return "job:" + strings.TrimPrefix(jobID, "job:")
}

// Get returns a job's status view, from Redis when present and from the
// store otherwise. A store hit repopulates Redis.
func (c *StatusCache) Get(ctx context.Context, jobID string) (*model.JobStatusView, error) {
	if view, ok := c.lookup(ctx, jobID); ok {
		return view, nil
	}

	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}

	view := job.StatusView()
	c.store(ctx, view)
	return view, nil
}

// Put writes a job's current status through to Redis. A write older than
// the cached entry, or any write over a terminal status, is dropped.
func (c *StatusCache) Put(ctx context.Context, job *model.Job) {
	if job == nil {
		return
	}
	c.store(ctx, job.StatusView())
}

func (c *StatusCache) lookup(ctx context.Context, jobID string) (*model.JobStatusView, bool) {
	if c.redis == nil {
		return nil, false
	}

	fields, err := c.redis.HGetAll(ctx, Key(jobID)).Result()
	if err != nil {
		c.logger.Warn("status cache read failed", "job_id", jobID, "error", err)
		return nil, false
	}
	if len(fields) == 0 {
		return nil, false
	}

	view, err := decodeView(fields)
	if err != nil {
		c.logger.Warn("discarding malformed cached status", "job_id", jobID, "error", err)
		return nil, false
	}
	return view, true
}

func (c *StatusCache) store(ctx context.Context, view *model.JobStatusView) {
	if c.redis == nil {
		return
	}

	args := append([]interface{}{version(view), c.ttl.Milliseconds()}, encodeView(view)...)
	written, err := c.redis.Eval(ctx, storeScript, []string{Key(view.JobID)}, args...).Int()
	if err != nil {
		c.logger.Warn("status cache write failed", "job_id", view.JobID, "error", err)
		return
	}
	if written == 0 {
		c.logger.Debug("status cache kept newer entry", "job_id", view.JobID, "status", view.Status)
	}
}

// version orders writes for the same job by the store's update time
func version(view *model.JobStatusView) int64 {
	return view.UpdatedAt.UnixMicro()
}

func encodeView(view *model.JobStatusView) []interface{} {
	return []interface{}{
		fieldJobID, view.JobID,
		fieldStatus, string(view.Status),
		fieldCurrentIteration, strconv.Itoa(view.CurrentIteration),
		fieldCreatedAt, view.CreatedAt.UTC().Format(time.RFC3339Nano),
		fieldUpdatedAt, view.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeView(fields map[string]string) (*model.JobStatusView, error) {
	status := model.JobStatus(fields[fieldStatus])
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid status %q", fields[fieldStatus])
	}

	iteration, err := strconv.Atoi(fields[fieldCurrentIteration])
	if err != nil {
		return nil, fmt.Errorf("invalid iteration: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &model.JobStatusView{
		JobID:            fields[fieldJobID],
		Status:           status,
		CurrentIteration: iteration,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}
