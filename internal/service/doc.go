// Package service implements the business logic layer for the planner API.
//
// The service package orchestrates repositories, the broker, the status cache
// and live subscribers. Services are the primary abstraction between HTTP
// handlers, background processors and data access.
//
// # Service Pattern
//
// All services follow a consistent pattern:
//
//   - Constructor function (NewXxxService) accepts a config struct with its dependencies
//   - Dependencies are small interfaces declared next to the service
//   - Errors are returned as sentinel errors or wrapped errors for context
//   - Context is passed through for cancellation and request-scoped values
//
// # Services
//
//   - JobService: submits jobs to the work queue, cancels them, and serves reads
//   - ProgressService: applies worker progress reports and broadcasts them
//   - RecruitmentService: evaluates trigger conditions and drives the recruitment lifecycle
//   - RealtimeHub: groups live subscribers per job and fans events out to them
//
// # Error Handling
//
// Services return domain-specific errors defined as package-level variables:
//
//	var (
//	    ErrJobNotFound   = errors.New("job not found")
//	    ErrPublishFailed = errors.New("failed to publish job to broker")
//	)
//
// # Example Usage
//
//	jobs := NewJobService(JobServiceConfig{
//	    JobRepo:      jobRepository,
//	    ProgressRepo: progressRepository,
//	    Publisher:    brokerClient,
//	    Cache:        statusCache,
//	    Events:       hub,
//	    Logger:       logger,
//	})
//	job, err := jobs.SubmitJob(ctx, nil, problem)
package service
