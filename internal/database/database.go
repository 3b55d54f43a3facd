package database

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors wrapped by every implementation
var (
	ErrNotFound   = errors.New("record not found")
	ErrConnection = errors.New("database connection error")
	ErrQuery      = errors.New("query error")
)

// Database is a SurrealQL session
type Database interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Config holds SurrealDB connection settings
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string

	// ConnectAttempts bounds Connect retries; values below 1 mean a single try.
	ConnectAttempts int
	// RetryDelay is the pause between connect attempts.
	RetryDelay time.Duration
}
