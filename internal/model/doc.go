// Package model defines domain entities and data structures for the planner API.
//
// The model package contains the struct definitions shared by every layer:
// persisted entities, broker and live-transport wire messages, request and
// response bodies, and RFC 9457 error types.
//
// # Domain Entities
//
//   - Recruitment: one scheduling cycle with its own lifecycle
//   - Job: one asynchronous optimization run, optionally owned by a recruitment
//   - ProgressRecord: an immutable best-solution snapshot for a job
//
// # Wire Messages
//
// Broker payloads are defined in messages.go:
//
//	WorkMessage     {job_id, problem_data, timestamp}
//	ControlMessage  {job_id, action, data, timestamp}
//	ProgressMessage {job_id, iteration_num, results: {best_solution}}
//
// Live-transport frames are defined in live.go. Inbound frames decode into the
// closed ClientRequest union:
//
//	switch req.(type) {
//	case GetStatusRequest:
//	case CancelJobRequest:
//	default:
//	}
//
// # Error Types
//
// RFC 9457 Problem Details errors are defined in errors.go.
package model
