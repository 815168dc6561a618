package api

import "errors"

// Registry and validation errors are surfaced synchronously to the caller
// of Start; they never enter a thread's event stream. Runtime errors take
// the opposite path: they are emitted as error frames and never returned
// from Start, whose caller has already detached.
var (
	// ErrDuplicateDefinition is returned when registering a definition
	// whose name is already taken.
	ErrDuplicateDefinition = errors.New("duplicate workflow definition")

	// ErrMalformedDefinition is returned when a definition violates the
	// step/transition/field invariants.
	ErrMalformedDefinition = errors.New("malformed workflow definition")

	// ErrUnknownWorkflow is returned when no definition has the
	// requested name.
	ErrUnknownWorkflow = errors.New("unknown workflow")

	// ErrInvalidState is returned when an initial state is missing a
	// required field or a present field's type does not match its
	// declaration.
	ErrInvalidState = errors.New("invalid initial state")

	// ErrNoSuchCheckpoint is returned by Resume when no live checkpoint
	// exists for the thread id, including when it was already consumed
	// by an earlier resume or has expired.
	ErrNoSuchCheckpoint = errors.New("no such checkpoint")

	// ErrStepLimitExceeded is recorded on an instance whose step count
	// passed the configured ceiling without reaching a terminal step.
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)
