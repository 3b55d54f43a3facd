package service

import "errors"

// Centralized service layer errors.
// All errors returned by service methods are defined here for consistency
// and to make error handling in handlers predictable.

// ===== Job Errors =====
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrPublishFailed     = errors.New("failed to publish job to broker")
	ErrJobNotCancellable = errors.New("job is not queued or running")
)

// ===== Recruitment Errors =====
var (
	ErrRecruitmentNotFound = errors.New("recruitment not found")
	ErrNoConstraints       = errors.New("recruitment has no constraints")
	ErrRecruitmentBusy     = errors.New("recruitment already has a queued or running job")
)

// ===== Live Subscription Errors =====
var (
	ErrSubscriptionClosed = errors.New("subscription closed")
)
