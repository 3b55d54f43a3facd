package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Broker    BrokerConfig
	Cache     CacheConfig
	Lifecycle LifecycleConfig
	Consumer  ConsumerConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// DatabaseConfig holds SurrealDB connection settings
type DatabaseConfig struct {
	Host      string
	Port      string
	Namespace string
	Database  string
	User      string
	Password  string
	// ConnectAttempts bounds startup retries while the store comes up
	ConnectAttempts int
	// Migrate applies the embedded schema on startup
	Migrate bool
}

// BrokerConfig holds RabbitMQ connection and queue settings
type BrokerConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	VHost          string
	OptimizerQueue string
	ProgressQueue  string
	ControlQueue   string
	PublishTimeout time.Duration
}

// CacheConfig holds Redis status cache settings
type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// LifecycleConfig holds recruitment lifecycle scheduler settings
type LifecycleConfig struct {
	Enabled  bool
	Interval time.Duration
}

// ConsumerConfig holds progress consumer settings
type ConsumerConfig struct {
	InProcess    bool
	StoreTimeout time.Duration
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// Load builds the configuration from defaults, an optional TOML file at path,
// and environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	file, err := readFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", orString(file.Server.Port, "8080")),
			Env:            getEnv("SERVER_ENV", orString(file.Server.Env, "development")),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", file.duration(file.Server.ReadTimeout, 15*time.Second)),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", file.duration(file.Server.WriteTimeout, 15*time.Second)),
			AllowedOrigins: getSliceEnv("CORS_ALLOWED_ORIGINS", orSlice(file.Server.AllowedOrigins, []string{"http://localhost:3000"})),
		},
		Database: DatabaseConfig{
			Host:      getEnv("DB_HOST", orString(file.Database.Host, "localhost")),
			Port:      getEnv("DB_PORT", orString(file.Database.Port, "8000")),
			Namespace: getEnv("DB_NAMESPACE", orString(file.Database.Namespace, "planner")),
			Database:  getEnv("DB_DATABASE", orString(file.Database.Database, "main")),
			User:      getEnv("DB_USER", orString(file.Database.User, "root")),
			Password:  getEnv("DB_PASSWORD", orString(file.Database.Password, "root")),

			ConnectAttempts: getIntEnv("DB_CONNECT_ATTEMPTS", orInt(file.Database.ConnectAttempts, 5)),
			Migrate:         getBoolEnv("DB_MIGRATE", orBool(file.Database.Migrate, true)),
		},
		Broker: BrokerConfig{
			Host:           getEnv("RABBITMQ_HOST", orString(file.Broker.Host, "localhost")),
			Port:           getIntEnv("RABBITMQ_PORT", orInt(file.Broker.Port, 5672)),
			Username:       getEnv("RABBITMQ_USERNAME", orString(file.Broker.Username, "guest")),
			Password:       getEnv("RABBITMQ_PASSWORD", orString(file.Broker.Password, "guest")),
			VHost:          getEnv("RABBITMQ_VHOST", orString(file.Broker.VHost, "/")),
			OptimizerQueue: getEnv("OPTIMIZER_QUEUE", orString(file.Broker.OptimizerQueue, "optimizer_jobs")),
			ProgressQueue:  getEnv("PROGRESS_QUEUE", orString(file.Broker.ProgressQueue, "optimizer_progress")),
			ControlQueue:   getEnv("CONTROL_QUEUE", orString(file.Broker.ControlQueue, "optimizer_control")),
			PublishTimeout: getDurationEnv("RABBITMQ_PUBLISH_TIMEOUT", file.duration(file.Broker.PublishTimeout, 5*time.Second)),
		},
		Cache: CacheConfig{
			Enabled:  getBoolEnv("CACHE_ENABLED", orBool(file.Cache.Enabled, true)),
			Addr:     getEnv("REDIS_ADDR", orString(file.Cache.Addr, "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", file.Cache.Password),
			DB:       getIntEnv("REDIS_DB", file.Cache.DB),
			TTL:      getDurationEnv("CACHE_TTL", file.duration(file.Cache.TTL, time.Hour)),
		},
		Lifecycle: LifecycleConfig{
			Enabled:  getBoolEnv("LIFECYCLE_ENABLED", orBool(file.Lifecycle.Enabled, true)),
			Interval: getDurationEnv("LIFECYCLE_INTERVAL", file.duration(file.Lifecycle.Interval, time.Minute)),
		},
		Consumer: ConsumerConfig{
			InProcess:    getBoolEnv("CONSUMER_IN_PROCESS", orBool(file.Consumer.InProcess, false)),
			StoreTimeout: getDurationEnv("CONSUMER_STORE_TIMEOUT", file.duration(file.Consumer.StoreTimeout, 10*time.Second)),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", orString(file.Log.Level, "info")),
			Format: getEnv("LOG_FORMAT", orString(file.Log.Format, "json")),
		},
	}
	if err := file.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// It returns an error describing all validation failures, or nil if valid.
func (c *Config) Validate() error {
	var errs []error

	// Server validation
	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Server.Env != "development" && c.Server.Env != "production" && c.Server.Env != "test" {
		errs = append(errs, fmt.Errorf("SERVER_ENV must be 'development', 'production', or 'test', got '%s'", c.Server.Env))
	}
	if len(c.Server.AllowedOrigins) == 0 {
		errs = append(errs, errors.New("CORS_ALLOWED_ORIGINS must have at least one origin"))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.Database.Port == "" {
		errs = append(errs, errors.New("DB_PORT is required"))
	}
	if c.Database.Namespace == "" {
		errs = append(errs, errors.New("DB_NAMESPACE is required"))
	}
	if c.Database.Database == "" {
		errs = append(errs, errors.New("DB_DATABASE is required"))
	}
	if c.Database.ConnectAttempts < 1 {
		errs = append(errs, fmt.Errorf("DB_CONNECT_ATTEMPTS must be at least 1, got %d", c.Database.ConnectAttempts))
	}

	// Broker validation
	if c.Broker.Host == "" {
		errs = append(errs, errors.New("RABBITMQ_HOST is required"))
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("RABBITMQ_PORT must be a valid port, got %d", c.Broker.Port))
	}
	if err := c.Broker.validateQueues(); err != nil {
		errs = append(errs, err)
	}
	if c.Broker.PublishTimeout <= 0 {
		errs = append(errs, errors.New("RABBITMQ_PUBLISH_TIMEOUT must be positive"))
	}

	// Cache validation
	if c.Cache.Enabled && c.Cache.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when CACHE_ENABLED is true"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}

	if c.Lifecycle.Enabled && c.Lifecycle.Interval <= 0 {
		errs = append(errs, errors.New("LIFECYCLE_INTERVAL must be positive"))
	}
	if c.Consumer.StoreTimeout <= 0 {
		errs = append(errs, errors.New("CONSUMER_STORE_TIMEOUT must be positive"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be 'json' or 'text', got '%s'", c.Log.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// validateQueues checks that the three queue names are set and distinct
func (b BrokerConfig) validateQueues() error {
	var missing []string
	if b.OptimizerQueue == "" {
		missing = append(missing, "OPTIMIZER_QUEUE")
	}
	if b.ProgressQueue == "" {
		missing = append(missing, "PROGRESS_QUEUE")
	}
	if b.ControlQueue == "" {
		missing = append(missing, "CONTROL_QUEUE")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required queue names: %s", strings.Join(missing, ", "))
	}
	if b.OptimizerQueue == b.ProgressQueue || b.OptimizerQueue == b.ControlQueue || b.ProgressQueue == b.ControlQueue {
		return errors.New("OPTIMIZER_QUEUE, PROGRESS_QUEUE and CONTROL_QUEUE must be distinct")
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
