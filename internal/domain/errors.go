package domain

import "errors"

var (
	// ErrInvalidEvent marks a fill that violates the feed contract (size <= 0,
	// price outside [0,1], unknown side). The event is dropped, not retried.
	ErrInvalidEvent = errors.New("invalid trade event")

	// ErrInconsistentState marks a close or hedge that references a position
	// the caller's own bookkeeping says must exist but does not. The tracker
	// reports it instead of inventing a position to make the math work.
	ErrInconsistentState = errors.New("inconsistent ledger state")

	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limited")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
)
