package api

import "context"

// Status represents the lifecycle state of a workflow instance.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSuspended Status = "SUSPENDED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether s is a terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// End is the next-step directive that terminates a workflow.
const End = "end"

// State is the mutable shared record a workflow executes against.
// Values are expected to be JSON-ish: strings, numbers, booleans, lists
// and nested maps.
type State map[string]any

// Clone returns a shallow copy of the state. Deltas are full-field
// replacements, so a shallow copy is sufficient for snapshotting.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge applies delta onto s, last writer wins per field.
// Fields are always replaced whole, never merged within a field.
func (s State) Merge(delta State) {
	for k, v := range delta {
		s[k] = v
	}
}

// FieldType tags a declared state field with its expected runtime type.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldNumber FieldType = "number"
	FieldList   FieldType = "list"
	FieldBool   FieldType = "boolean"
)

// FieldSpec declares one state field of a workflow definition.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
}

// Capabilities are the feature flags a workflow definition advertises.
type Capabilities struct {
	// Interrupts must be set if any step is a gate.
	Interrupts bool

	// RequiresApproval marks workflows that always contain at least one
	// human sign-off, for discovery purposes.
	RequiresApproval bool

	// ParallelBranches is reserved for future parallel execution support.
	// The engine currently runs every instance strictly sequentially.
	ParallelBranches bool
}

// Operation describes the pending business operation a gate step is about
// to perform. The risk classifier decides from it whether a human must
// approve before the engine proceeds.
type Operation struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Result is what a step function returns on success.
type Result struct {
	// Delta is merged into the instance state field-by-field.
	Delta State

	// Next names the step to run next, or End ("" also terminates).
	Next string

	// Pending describes the operation the *next* step will perform.
	// When the next step is a gate, the engine classifies this operation
	// before invoking it.
	Pending *Operation
}

// StepFunc is a single step in a workflow. It receives a snapshot of the
// current state and returns a state delta plus a next-step directive.
// Steps may perform arbitrary I/O but must not manage suspension
// themselves; gating is entirely the engine's job.
type StepFunc func(ctx context.Context, state State) (Result, error)

// StepDefinition describes a named step.
type StepDefinition struct {
	Name string
	Fn   StepFunc

	// Gate marks this step as requiring a risk check before it runs.
	Gate bool

	// Next declares the step names this step may transition to.
	// Used for registration-time validation only; the runtime target is
	// whatever Result.Next says. End is implicitly allowed.
	Next []string

	// Fields declares the state fields this step reads or writes.
	// Every entry must appear in the definition's field declarations.
	Fields []string
}

// Definition describes a workflow as a named graph of steps.
type Definition struct {
	Name     string
	Industry string
	Tags     []string

	Capabilities Capabilities

	// Fields declares the state record's shape.
	Fields []FieldSpec

	// Start names the entry step. Empty means the first step in Steps.
	Start string

	Steps []StepDefinition
}

// StartStep returns the name of the entry step.
func (d Definition) StartStep() string {
	if d.Start != "" {
		return d.Start
	}
	if len(d.Steps) > 0 {
		return d.Steps[0].Name
	}
	return ""
}

// Step returns the step definition with the given name.
func (d Definition) Step(name string) (StepDefinition, bool) {
	for _, s := range d.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepDefinition{}, false
}

// Instance is one execution of a Definition, identified by a thread id.
type Instance struct {
	ThreadID string
	Workflow string

	// Step is the name of the current (or next pending) step.
	Step string

	State     State
	StepCount int
	Status    Status

	// Err holds the terminal failure, if any.
	Err error
}

// ListFilter selects definitions from the registry. Zero values mean
// "no filter"; supplied criteria are combined with logical AND.
type ListFilter struct {
	Industry string
	Tags     []string

	// Capability, if non-nil, must return true for a definition to match.
	Capability func(Capabilities) bool
}
