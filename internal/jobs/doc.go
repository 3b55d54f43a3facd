// Package jobs implements the background workers of the planner API.
//
// The jobs package contains long-running tasks that run independently of
// HTTP request handling.
//
// # Workers
//
//   - RecruitmentLifecycleProcessor: periodic trigger and archival pass
//   - ProgressListener: applies worker progress reports from the broker
//
// # Lifecycle
//
// Every worker has the same Start/Stop shape:
//
//	lifecycle := jobs.NewRecruitmentLifecycleProcessor(jobs.LifecycleProcessorConfig{
//	    Recruitments: recruitmentService,
//	    Interval:     time.Minute,
//	    Logger:       logger,
//	})
//	lifecycle.Start()
//	defer lifecycle.Stop()
//
// # Error Handling
//
// Workers log errors but don't crash the application. A failed pass or
// message is retried by the next tick or delivery.
package jobs
