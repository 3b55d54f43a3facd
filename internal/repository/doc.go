// Package repository implements SurrealDB data access for the planner API.
//
// Each repository wraps a database.Database and owns the queries for one
// aggregate:
//
//   - JobRepository: optimization jobs, guarded status transitions, and the
//     transactional finish that activates the owning recruitment
//   - ProgressRepository: append-only progress history per job
//   - RecruitmentRepository: recruitment reads and compare-and-swap status moves
//   - PreferencesRepository: assembles the optimization problem payload
//   - ParticipantRepository: enrolled participant counts
//
// Identifiers are accepted either bare ("abc") or table-qualified ("job:abc").
// Lookups return nil, nil when the record does not exist.
package repository
