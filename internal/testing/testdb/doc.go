// Package testdb provides test database utilities for the planner API.
//
// Integration tests use it to get a migrated SurrealDB namespace of their own.
//
// # Test Database Setup
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t)
//	    defer tdb.Close()
//
//	    repo := repository.NewJobRepository(tdb.DB)
//	    ...
//	    assert.Equal(t, 1, tdb.Count("progress"))
//	}
//
// Connection settings come from TEST_DB_HOST, TEST_DB_PORT, TEST_DB_USER and
// TEST_DB_PASSWORD. When no database is reachable the calling test is
// skipped, unless TEST_DB_REQUIRED is set.
//
// Each TestDB lives in its own namespace (test_<nanos>_<n>) with the
// embedded migrations applied, and the namespace is removed on Close.
package testdb
