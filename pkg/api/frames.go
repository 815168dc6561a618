package api

import "time"

// FrameType identifies a streaming protocol frame.
type FrameType string

const (
	// FrameStateUpdate carries a full state snapshot after a step.
	FrameStateUpdate FrameType = "state_update"

	// FrameInterrupt carries an ApprovalRequest when execution suspends
	// at a gate.
	FrameInterrupt FrameType = "interrupt"

	// FrameToolCall and FrameToolResult pass through a step's
	// sub-operations for UI transparency.
	FrameToolCall   FrameType = "tool_call"
	FrameToolResult FrameType = "tool_result"

	// FrameError carries terminal failure detail.
	FrameError FrameType = "error"

	// FrameHeartbeat keeps a transport-level connection alive.
	// Consumers must ignore heartbeats for state purposes.
	FrameHeartbeat FrameType = "heartbeat"

	// FrameEnd is the terminal marker, always the last frame of a run
	// segment. A suspend/resume cycle opens a new end-free segment.
	FrameEnd FrameType = "end"
)

// Frame is one immutable, ordered unit of the progress stream.
type Frame struct {
	Type     FrameType `json:"type"`
	ThreadID string    `json:"thread_id"`

	// Seq is assigned at emission time and increases strictly per
	// thread. Heartbeats are unsequenced (Seq 0) and never buffered.
	Seq uint64    `json:"seq"`
	At  time.Time `json:"at"`

	// Payload is type-specific: State for state_update, *ApprovalRequest
	// for interrupt, *ToolEvent for tool frames, *ErrorDetail for error,
	// *EndDetail for end, nil for heartbeat.
	Payload any `json:"payload,omitempty"`
}

// ToolEvent is the payload of tool_call and tool_result frames.
type ToolEvent struct {
	Tool string `json:"tool"`
	// Args is set on tool_call frames.
	Args map[string]any `json:"args,omitempty"`
	// Result is set on tool_result frames.
	Result any `json:"result,omitempty"`
}

// ErrorDetail is the payload of error frames. It carries error kind and
// message only; internal stack traces and storage detail are stripped
// before emission.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// EndDetail is the payload of end frames.
type EndDetail struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// RiskLevel grades a pending operation.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// DecisionState tracks the review status of an ApprovalRequest.
type DecisionState string

const (
	DecisionPending  DecisionState = "pending"
	DecisionApproved DecisionState = "approved"
	DecisionRejected DecisionState = "rejected"
)

// ApprovalRequest describes why execution paused at a gate. It is carried
// on the interrupt frame and consumed exactly once by the resume call; it
// is never persisted beyond the checkpoint's lifetime (it is
// reconstructable from the checkpoint's step name and state).
type ApprovalRequest struct {
	ThreadID string    `json:"thread_id"`
	Level    RiskLevel `json:"level"`

	// Summary is a human-readable description of the operation under
	// review, e.g. "delete_all on thread abc".
	Summary string `json:"summary"`

	Operation Operation `json:"operation"`

	// Decision starts as pending and is settled by the resume call.
	Decision DecisionState `json:"decision"`
}

// Decision is the human verdict supplied to Resume.
type Decision struct {
	Approved bool

	// StateOverlay holds edits made during review. On conflict with the
	// restored checkpoint state, the overlay wins.
	StateOverlay State

	// Reason is recorded on the end frame when the decision is a
	// rejection.
	Reason string
}

// Subscription is a live view onto one thread's frame stream. Buffered
// frames are delivered first, then live frames as they are produced.
// The channel is closed when the segment ends or the subscription is
// displaced by a newer subscriber.
type Subscription struct {
	// C delivers frames in sequence order.
	C <-chan Frame

	cancel func()
}

// NewSubscription wraps a frame channel and a cancel hook. It is exported
// for transports layered on top of the engine; application code receives
// subscriptions from Engine.Subscribe.
func NewSubscription(ch <-chan Frame, cancel func()) *Subscription {
	return &Subscription{C: ch, cancel: cancel}
}

// Close detaches the subscriber. It is safe to call multiple times.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}
