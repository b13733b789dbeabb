package domain

import "errors"

// Engine error taxonomy. Callers match with errors.Is; layers add context
// with fmt.Errorf("...: %w", err) so the kind survives wrapping.
var (
	// ErrInvalidInput is returned for empty, oversized, or malformed input.
	// User-correctable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when no complaint exists for an identifier.
	ErrNotFound = errors.New("complaint not found")

	// ErrDuplicateVote is returned when a citizen votes twice on the same
	// complaint. Benign: the citizen's support is already recorded.
	ErrDuplicateVote = errors.New("citizen already voted on this complaint")

	// ErrIllegalTransition is returned for a status edge outside the
	// transition table.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrTerminalState is returned for any transition attempted from a
	// resolved or rejected complaint.
	ErrTerminalState = errors.New("complaint is in a terminal status")

	// ErrModelUnavailable is returned when no usable classification model is
	// loaded. Fatal at startup; on a failed hot reload the prior model stays
	// active and this surfaces as service-unavailable.
	ErrModelUnavailable = errors.New("classification model unavailable")

	// ErrTimeout is returned when a registry operation exceeds its deadline.
	// Retryable by the caller with backoff; the engine itself never retries.
	ErrTimeout = errors.New("registry operation timed out")
)
