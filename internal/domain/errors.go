package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrQueueFull         = errors.New("queue at capacity")
	ErrProviderExhausted = errors.New("provider fallback chain exhausted")
	ErrSchedulerClosed   = errors.New("scheduler closed")
)
