// Package handler provides the HTTP and websocket endpoints of the planner API.
//
// Handlers depend on small interfaces (JobAPI, RecruitmentAPI, LiveHub)
// rather than concrete services, so each endpoint can be exercised with
// func-field mocks and httptest.
//
// # Response Format
//
//   - WriteData: single resource with optional HATEOAS links
//   - WriteCollection: list of resources with a count
//   - WriteJSON: raw JSON response
//   - WriteError: RFC 9457 Problem Details error response
//
// Service errors are translated by MapServiceError.
//
// # Live Updates
//
// SocketHandler upgrades GET /ws/jobs/{jobId}/ to a websocket and hands the
// connection to the realtime hub. An unknown job is closed with code 4004.
//
// # Example Usage
//
//	jobs := NewJobHandler(jobService, logger)
//	mux.HandleFunc("POST /v1/jobs", jobs.Submit)
//	mux.HandleFunc("GET /v1/jobs/{jobId}", jobs.Get)
package handler
