package database

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/surrealdb/surrealdb.go"
)

const defaultRetryDelay = 2 * time.Second

// SurrealDB implements Database over a single SurrealDB websocket session
type SurrealDB struct {
	mu     sync.RWMutex
	db     *surrealdb.DB
	config Config
}

// NewSurrealDB creates a new, unconnected SurrealDB client
func NewSurrealDB(cfg Config) *SurrealDB {
	return &SurrealDB{config: cfg}
}

// Endpoint returns the websocket URL Connect dials
func (s *SurrealDB) Endpoint() string {
	return "ws://" + net.JoinHostPort(s.config.Host, s.config.Port)
}

// Connect dials SurrealDB, signs in and selects the namespace and database.
// Failed attempts are retried up to Config.ConnectAttempts times, so the
// API and the progress listener survive a database that starts after them.
func (s *SurrealDB) Connect(ctx context.Context) error {
	attempts := s.config.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := s.config.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := s.open(ctx)
		if err == nil {
			s.mu.Lock()
			s.db = db
			s.mu.Unlock()
			return nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrConnection, ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%w: %s after %d attempt(s): %v", ErrConnection, s.Endpoint(), attempts, lastErr)
}

func (s *SurrealDB) open(ctx context.Context) (*surrealdb.DB, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, s.Endpoint())
	if err != nil {
		return nil, err
	}

	if _, err := db.SignIn(ctx, &surrealdb.Auth{
		Username: s.config.User,
		Password: s.config.Password,
	}); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("signin failed: %w", err)
	}

	if err := db.Use(ctx, s.config.Namespace, s.config.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("use %s/%s failed: %w", s.config.Namespace, s.config.Database, err)
	}

	return db, nil
}

// Close ends the session. Safe to call on an unconnected client.
func (s *SurrealDB) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()

	if db == nil {
		return nil
	}
	return db.Close(context.Background())
}

func (s *SurrealDB) conn() *surrealdb.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Ping checks that the session still answers
func (s *SurrealDB) Ping(ctx context.Context) error {
	db := s.conn()
	if db == nil {
		return ErrConnection
	}
	if _, err := db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Query runs every statement in query and returns one
// {"status", "result"} map per statement. A statement with a non-OK status
// fails the whole call.
func (s *SurrealDB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	db := s.conn()
	if db == nil {
		return nil, ErrConnection
	}

	results, err := surrealdb.Query[interface{}](ctx, db, query, vars)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	if results == nil {
		return nil, nil
	}

	output := make([]interface{}, 0, len(*results))
	for i, r := range *results {
		if r.Status != "OK" {
			if r.Error != nil {
				return nil, fmt.Errorf("%w: statement %d: %s", ErrQuery, i+1, r.Error.Message)
			}
			return nil, fmt.Errorf("%w: statement %d: status %s", ErrQuery, i+1, r.Status)
		}
		output = append(output, map[string]interface{}{
			"status": r.Status,
			"result": r.Result,
		})
	}

	return output, nil
}

// QueryOne returns the first record of the first statement, or ErrNotFound
// when that statement selected nothing. Scalar results are returned as-is.
func (s *SurrealDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := s.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return firstRecord(results)
}

// Execute runs a mutation and discards its results
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}

func firstRecord(results []interface{}) (interface{}, error) {
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	resp, ok := results[0].(map[string]interface{})
	if !ok {
		return results[0], nil
	}
	switch rows := resp["result"].(type) {
	case []interface{}:
		if len(rows) == 0 {
			return nil, ErrNotFound
		}
		return rows[0], nil
	case nil:
		return nil, ErrNotFound
	default:
		return rows, nil
	}
}
