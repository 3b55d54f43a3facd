package database

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDB captures the last query sent through the Database interface
type recordingDB struct {
	query string
	vars  map[string]interface{}
	err   error
}

func (r *recordingDB) Connect(ctx context.Context) error { return nil }
func (r *recordingDB) Close() error                      { return nil }
func (r *recordingDB) Ping(ctx context.Context) error    { return nil }

func (r *recordingDB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	r.query = query
	r.vars = vars
	return nil, r.err
}

func (r *recordingDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	_, err := r.Query(ctx, query, vars)
	return nil, err
}

func (r *recordingDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := r.Query(ctx, query, vars)
	return err
}

func TestTxBuilder_NamespacesVariablesPerStatement(t *testing.T) {
	tb := NewTxBuilder()
	first := tb.Add("UPDATE type::record($id) SET status = $status", map[string]interface{}{"id": "job:1", "status": "completed"})
	second := tb.Add("UPDATE type::record($id) SET status = $status", map[string]interface{}{"id": "recruitment:1", "status": "active"})

	query, vars := tb.Build()

	assert.Equal(t, "v1_id", first["id"])
	assert.Equal(t, "v2_id", second["id"])
	assert.True(t, strings.HasPrefix(query, "BEGIN TRANSACTION;"))
	assert.True(t, strings.HasSuffix(query, "COMMIT TRANSACTION;"))
	assert.Contains(t, query, "UPDATE type::record($v1_id) SET status = $v1_status;")
	assert.Contains(t, query, "UPDATE type::record($v2_id) SET status = $v2_status;")
	assert.Equal(t, "job:1", vars["v1_id"])
	assert.Equal(t, "active", vars["v2_status"])
}

func TestTxBuilder_PrefixNamesDoNotCollide(t *testing.T) {
	tb := NewTxBuilder()
	tb.Add("SELECT * FROM progress WHERE job = $job AND job_id = $job_id", map[string]interface{}{"job": "a", "job_id": "b"})

	query, vars := tb.Build()

	assert.Contains(t, query, "job = $v1_job AND job_id = $v1_job_id")
	assert.Equal(t, "a", vars["v1_job"])
	assert.Equal(t, "b", vars["v1_job_id"])
}

func TestTxBuilder_EmptyBuild(t *testing.T) {
	query, vars := NewTxBuilder().Build()
	assert.Empty(t, query)
	assert.Nil(t, vars)
}

func TestAtomicBatch_ExecuteSendsSingleTransaction(t *testing.T) {
	db := &recordingDB{}
	batch := NewAtomicBatch().
		Add("DELETE progress WHERE job = type::record($id)", map[string]interface{}{"id": "job:1"}).
		Add("DELETE type::record($id)", map[string]interface{}{"id": "job:1"})

	require.Equal(t, 2, batch.Len())
	require.NoError(t, batch.Execute(context.Background(), db))

	assert.Equal(t, 1, strings.Count(db.query, "BEGIN TRANSACTION"))
	assert.Len(t, db.vars, 2)
}

func TestAtomicBatch_EmptyIsNoop(t *testing.T) {
	db := &recordingDB{}
	require.NoError(t, NewAtomicBatch().Execute(context.Background(), db))
	assert.Empty(t, db.query)
}
