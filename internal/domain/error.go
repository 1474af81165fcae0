package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRateLimited     = errors.New("rate limit exceeded")

	// Queue pipeline errors
	ErrStoreUnavailable   = errors.New("queue store unavailable")
	ErrProviderFailure    = errors.New("completion provider failure")
	ErrPersistenceFailure = errors.New("message persistence failure")
	ErrQueueStopped       = errors.New("message queue is stopped")
)
