// Package broker connects the planner API to RabbitMQ.
//
// Three durable queues carry traffic between the API and optimizer workers:
//
//   - the optimizer queue receives one work message per submitted job
//   - the progress queue carries worker progress reports back
//   - the control queue receives cooperative cancel instructions
//
// Publishes are persistent JSON messages sent through a confirm-mode channel;
// a publish returns only after the broker acknowledges it. Work messages use
// the job id as message id, control messages use "{job_id}_{action}".
//
// Progress is consumed with automatic acknowledgement: a report that fails to
// apply is logged and dropped, never redelivered.
package broker
