// Package fixtures provides test data factories for the planner API.
//
// Create a factory with a database connection:
//
//	f := fixtures.New(tdb.DB)
//
// Factory methods insert rows directly and return parsed models:
//
//	rec := f.CreateRecruitment(t, fixtures.WithParticipation(8, 0.5))
//	f.AddParticipants(t, rec, 10)
//	f.SetConstraints(t, rec, fixtures.ValidConstraints())
//	f.AddUserPreferences(t, rec, "host", map[string]interface{}{"slots": 3})
//	job := f.CreateJob(t, fixtures.WithJobRecruitment(rec))
//
// Test data is cleaned up when the test database is closed.
package fixtures
