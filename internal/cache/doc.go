// Package cache keeps a Redis copy of each job's status view.
//
// Entries live in the hash "job:{id}" with fields job_id, status,
// current_iteration, created_at and updated_at, and expire after the
// configured TTL. Reads fall back to the store on a miss or a Redis error,
// and repopulate the entry. Writes are best effort.
//
// EventPublisher and RelayEvents carry live job events over Redis pub/sub
// when the progress listener runs outside the server process.
package cache
