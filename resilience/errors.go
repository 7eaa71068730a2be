package resilience

import "errors"

var (
	// ErrCircuitOpen is returned without calling the loader while the
	// breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit open")

	// ErrTimeout is returned when a single attempt exceeds its deadline.
	ErrTimeout = errors.New("resilience: load timed out")
)
