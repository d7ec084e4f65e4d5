package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
	ErrStopped    = errors.New("service stopped")
	ErrQueueFull  = errors.New("mutation queue full")
	// ErrPending means the caller gave up after its mutation was queued.
	// The writer still applies it.
	ErrPending = errors.New("mutation queued, result not awaited")
)
