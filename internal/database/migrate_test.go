package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptDB records every script executed through it
type scriptDB struct {
	recordingDB
	scripts []string
	failOn  string
}

func (s *scriptDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	if s.failOn != "" && query == s.failOn {
		return errors.New("boom")
	}
	s.scripts = append(s.scripts, query)
	return nil
}

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"002_recruitment.surql": {Data: []byte("DEFINE TABLE IF NOT EXISTS recruitment;")},
		"001_schema.surql":      {Data: []byte("DEFINE TABLE IF NOT EXISTS job;")},
		"seed.surql":            {Data: []byte("CREATE job;")},
		"003_empty.surql":       {Data: []byte("  \n")},
		"README.md":             {Data: []byte("notes")},
	}
}

func TestLoadMigrations_SortsAndSkipsSeed(t *testing.T) {
	migrations, err := LoadMigrations(migrationFS())
	require.NoError(t, err)

	require.Len(t, migrations, 2)
	assert.Equal(t, "001_schema.surql", migrations[0].Name)
	assert.Equal(t, "002_recruitment.surql", migrations[1].Name)
}

func TestMigrate_AppliesInOrder(t *testing.T) {
	db := &scriptDB{}

	applied, err := Migrate(context.Background(), db, migrationFS())
	require.NoError(t, err)

	assert.Equal(t, 2, applied)
	assert.Equal(t, []string{
		"DEFINE TABLE IF NOT EXISTS job;",
		"DEFINE TABLE IF NOT EXISTS recruitment;",
	}, db.scripts)
}

func TestMigrate_StopsAtFailure(t *testing.T) {
	db := &scriptDB{failOn: "DEFINE TABLE IF NOT EXISTS recruitment;"}

	applied, err := Migrate(context.Background(), db, migrationFS())
	require.Error(t, err)

	assert.Equal(t, 1, applied)
	assert.Contains(t, err.Error(), "002_recruitment.surql")
}

func TestMigrate_EmptyFS(t *testing.T) {
	applied, err := Migrate(context.Background(), &scriptDB{}, fstest.MapFS{})
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestFirstRecord(t *testing.T) {
	ok := func(result interface{}) []interface{} {
		return []interface{}{map[string]interface{}{"status": "OK", "result": result}}
	}

	tests := []struct {
		name    string
		results []interface{}
		want    interface{}
		wantErr error
	}{
		{"no statements", nil, nil, ErrNotFound},
		{"empty rows", ok([]interface{}{}), nil, ErrNotFound},
		{"null result", ok(nil), nil, ErrNotFound},
		{"first row", ok([]interface{}{"a", "b"}), "a", nil},
		{"scalar", ok(float64(3)), float64(3), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := firstRecord(tt.results)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSurrealDB_Endpoint(t *testing.T) {
	db := NewSurrealDB(Config{Host: "db.internal", Port: "8000"})
	assert.Equal(t, "ws://db.internal:8000", db.Endpoint())

	v6 := NewSurrealDB(Config{Host: "::1", Port: "8000"})
	assert.Equal(t, "ws://[::1]:8000", v6.Endpoint())
}

func TestSurrealDB_UnconnectedCalls(t *testing.T) {
	db := NewSurrealDB(Config{})

	assert.ErrorIs(t, db.Ping(context.Background()), ErrConnection)
	_, err := db.Query(context.Background(), "SELECT 1", nil)
	assert.ErrorIs(t, err, ErrConnection)
	assert.NoError(t, db.Close())
}
