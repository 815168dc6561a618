package stream

import (
	"sync/atomic"

	"github.com/holdpoint/holdpoint/pkg/api"
)

// subscriber is one observer's buffered frame channel. Sends are
// non-blocking: a full buffer drops the frame rather than stalling the
// engine, and the replay buffer covers reconnection.
type subscriber struct {
	ch     chan api.Frame
	closed atomic.Bool
}

func newSubscriber(capacity int) *subscriber {
	return &subscriber{
		ch: make(chan api.Frame, capacity),
	}
}

func (s *subscriber) send(frame api.Frame) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.ch <- frame:
		return true
	default:
		return false
	}
}

// close is safe to call multiple times.
func (s *subscriber) close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}
