package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/forgo/planner/api/internal/broker"
	"github.com/forgo/planner/api/internal/cache"
	"github.com/forgo/planner/api/internal/config"
	"github.com/forgo/planner/api/internal/database"
	"github.com/forgo/planner/api/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path == "" {
			path = os.Getenv("CONFIG_FILE")
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger writes to stderr so command output on stdout stays clean
func (c *commandContext) logger(verbose bool) *slog.Logger {
	cfg, _ := c.ensureConfig()
	opts := logging.Options{Output: os.Stderr, Format: "text"}
	if cfg != nil {
		opts.Level = cfg.Log.Level
		opts.Format = cfg.Log.Format
	}
	if verbose {
		opts.Level = "debug"
	}
	return logging.New(opts)
}

func (c *commandContext) openStore(ctx context.Context) (*database.SurrealDB, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,

		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func (c *commandContext) withStore(ctx context.Context, fn func(*database.SurrealDB) error) error {
	db, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return fn(db)
}

func (c *commandContext) dialBroker(ctx context.Context, logger *slog.Logger) (*broker.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := broker.Dial(ctx, broker.Config{
		Host:           cfg.Broker.Host,
		Port:           cfg.Broker.Port,
		Username:       cfg.Broker.Username,
		Password:       cfg.Broker.Password,
		VHost:          cfg.Broker.VHost,
		OptimizerQueue: cfg.Broker.OptimizerQueue,
		ProgressQueue:  cfg.Broker.ProgressQueue,
		ControlQueue:   cfg.Broker.ControlQueue,
		PublishTimeout: cfg.Broker.PublishTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return client, nil
}

// redisClient returns nil when the cache is disabled or unreachable
func (c *commandContext) redisClient(ctx context.Context, logger *slog.Logger) *redis.Client {
	cfg, err := c.ensureConfig()
	if err != nil || !cfg.Cache.Enabled {
		return nil
	}
	client, err := cache.NewClient(ctx, cache.Config{
		Addr:     cfg.Cache.Addr,
		Password: cfg.Cache.Password,
		DB:       cfg.Cache.DB,
	})
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache and live relay", "error", err)
		return nil
	}
	return client
}
