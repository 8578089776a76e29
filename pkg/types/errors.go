package types

import "errors"

var (
	// Configuration errors
	ErrInvalidRateLimit = errors.New("max executions and per period must be supplied together")
	ErrInvalidQueueName = errors.New("invalid queue name")

	// Call errors
	ErrInvalidCallback = errors.New("callback is not invocable")
	ErrQueueClosed     = errors.New("queue is closed")

	// Ticket errors
	ErrHolderQueued = errors.New("holder already has an outstanding ticket")
	ErrTurnTimeout  = errors.New("timed out waiting for turn")

	// Store errors
	ErrCorruptQueue = errors.New("queue content is corrupt")
)
