package api

import "context"

// StartOptions tunes a single Start call.
type StartOptions struct {
	// ThreadID, if non-empty, is used instead of a generated id.
	// Caller-supplied ids enable idempotent retries of the same logical
	// request.
	ThreadID string
}

// Engine is the workflow orchestration and approval engine surface.
//
// Start, Resume and Subscribe are the entire surface a front door (HTTP
// route, CLI, or chat loop) needs; their concrete transport is out of
// scope here.
type Engine interface {
	// Register adds a definition to the catalog. It fails with
	// ErrDuplicateDefinition or ErrMalformedDefinition.
	Register(def Definition) error

	// Definition returns the registered definition, or ErrUnknownWorkflow.
	Definition(name string) (Definition, error)

	// List returns definitions matching the filter, in insertion order.
	List(filter ListFilter) []Definition

	// ValidateInitialState checks state against the definition's field
	// declarations and returns a normalized copy with declared-but-absent
	// optional fields filled with type-appropriate zero values.
	ValidateInitialState(name string, state State) (State, error)

	// Start validates state synchronously, then executes the workflow in
	// its own goroutine and returns the thread id immediately. Runtime
	// errors surface on the frame stream, never from Start.
	Start(ctx context.Context, workflow string, state State, opts StartOptions) (threadID string, err error)

	// Resume supplies a human decision for a suspended thread. The
	// checkpoint is consumed exactly once; a second call returns
	// ErrNoSuchCheckpoint. A rejection cancels the instance without
	// invoking any further step.
	Resume(ctx context.Context, threadID string, decision Decision) error

	// Cancel requests cancellation. For running instances it is
	// cooperative, honored at the next step boundary; for suspended
	// instances it is immediate.
	Cancel(ctx context.Context, threadID string) error

	// Instance returns the current view of a thread.
	Instance(ctx context.Context, threadID string) (*Instance, error)

	// Subscribe attaches the single live observer for a thread. Buffered
	// frames are replayed first. A new subscription displaces any
	// previous one.
	Subscribe(threadID string) (*Subscription, error)
}
