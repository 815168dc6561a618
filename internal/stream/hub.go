// Package stream relays engine frames to one live observer per thread.
//
// Every thread owns a bounded ordered replay buffer; a new subscriber
// receives the buffer contents first (catch-up), then live frames. Frames
// carry per-thread sequence numbers assigned at emission time and are
// never reordered. Heartbeats are unsequenced and never buffered.
package stream

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/holdpoint/holdpoint/pkg/api"
)

// DefaultBufferSize is the default per-thread replay buffer length.
const DefaultBufferSize = 20

// DefaultHeartbeatInterval is the default heartbeat cadence.
const DefaultHeartbeatInterval = 30 * time.Second

// ErrUnknownThread is returned when subscribing to a thread the hub has
// never seen.
var ErrUnknownThread = errors.New("unknown thread")

// Hub owns the per-thread topics. It is shared by all concurrent
// instances; topics are keyed strictly by thread id and need no
// cross-thread coordination.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topic

	bufSize   int
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewHub creates a Hub. bufSize <= 0 selects DefaultBufferSize;
// heartbeat <= 0 disables heartbeats entirely.
func NewHub(bufSize int, heartbeat time.Duration, logger *slog.Logger) *Hub {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		topics:    make(map[string]*topic),
		bufSize:   bufSize,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Open ensures a topic exists for threadID and starts its heartbeat.
func (h *Hub) Open(threadID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.topics[threadID]; ok {
		return
	}
	t := &topic{
		id:     threadID,
		max:    h.bufSize,
		logger: h.logger,
	}
	h.topics[threadID] = t
	if h.heartbeat > 0 {
		t.stopHB = make(chan struct{})
		go t.heartbeatLoop(h.heartbeat)
	}
}

// Publish emits a sequenced frame on the thread's stream. The topic must
// have been opened; publishing to an unknown thread is a no-op and is
// logged, since losing engine frames is a wiring bug.
func (h *Hub) Publish(threadID string, typ api.FrameType, payload any) {
	h.mu.RLock()
	t := h.topics[threadID]
	h.mu.RUnlock()

	if t == nil {
		h.logger.Warn("frame published to unknown thread",
			slog.String("thread_id", threadID),
			slog.String("type", string(typ)),
		)
		return
	}
	t.publish(typ, payload)
}

// Subscribe attaches the live observer for threadID, displacing any
// previous subscriber. Buffered frames are delivered before live ones.
func (h *Hub) Subscribe(threadID string) (*api.Subscription, error) {
	h.mu.RLock()
	t := h.topics[threadID]
	h.mu.RUnlock()

	if t == nil {
		return nil, ErrUnknownThread
	}
	return t.subscribe(), nil
}

// Finish marks the thread's segment as over: the heartbeat stops and the
// current subscriber's channel is closed once drained. The replay buffer
// stays available so a late subscriber can still catch up.
func (h *Hub) Finish(threadID string) {
	h.mu.RLock()
	t := h.topics[threadID]
	h.mu.RUnlock()

	if t != nil {
		t.finish()
	}
}

// Reopen restarts a finished topic for a fresh segment after resume.
func (h *Hub) Reopen(threadID string) {
	h.mu.RLock()
	t := h.topics[threadID]
	h.mu.RUnlock()

	if t == nil {
		h.Open(threadID)
		return
	}
	t.reopen(h.heartbeat)
}

type topic struct {
	mu       sync.Mutex
	id       string
	seq      uint64
	ring     []api.Frame
	max      int
	sub      *subscriber
	finished bool
	stopHB   chan struct{}
	logger   *slog.Logger
}

func (t *topic) publish(typ api.FrameType, payload any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	frame := api.Frame{
		Type:     typ,
		ThreadID: t.id,
		At:       time.Now().UTC(),
		Payload:  payload,
	}

	if typ != api.FrameHeartbeat {
		t.seq++
		frame.Seq = t.seq
		t.ring = append(t.ring, frame)
		if len(t.ring) > t.max {
			t.ring = t.ring[len(t.ring)-t.max:]
		}
	}

	if t.sub != nil && !t.sub.send(frame) && typ != api.FrameHeartbeat {
		t.logger.Debug("slow subscriber, live frame dropped",
			slog.String("thread_id", t.id),
			slog.Uint64("seq", frame.Seq),
		)
	}
}

func (t *topic) subscribe() *api.Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sub != nil {
		t.sub.close()
	}

	// Capacity covers a full replay plus a window of live frames.
	sub := newSubscriber(t.max * 2)
	for _, frame := range t.ring {
		sub.send(frame)
	}
	if t.finished {
		sub.close()
	}
	t.sub = sub

	return api.NewSubscription(sub.ch, func() { t.detach(sub) })
}

func (t *topic) detach(sub *subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sub == sub {
		t.sub = nil
	}
	sub.close()
}

func (t *topic) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.finished = true
	if t.stopHB != nil {
		close(t.stopHB)
		t.stopHB = nil
	}
	if t.sub != nil {
		t.sub.close()
		t.sub = nil
	}
}

func (t *topic) reopen(heartbeat time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.finished {
		return
	}
	t.finished = false
	if heartbeat > 0 && t.stopHB == nil {
		t.stopHB = make(chan struct{})
		go t.heartbeatLoop(heartbeat)
	}
}

func (t *topic) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.mu.Lock()
	stop := t.stopHB
	t.mu.Unlock()
	if stop == nil {
		return
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.publish(api.FrameHeartbeat, nil)
		}
	}
}
