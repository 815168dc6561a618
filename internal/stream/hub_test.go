package stream

import (
	"fmt"
	"testing"
	"time"

	"github.com/holdpoint/holdpoint/pkg/api"
)

func newTestHub() *Hub {
	// Heartbeats off so tests see exactly the frames they publish.
	return NewHub(4, -1, nil)
}

func recvFrame(t *testing.T, sub *api.Subscription) api.Frame {
	t.Helper()
	select {
	case f, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return api.Frame{}
}

func TestHub_SequencedDelivery(t *testing.T) {
	h := newTestHub()
	h.Open("t-1")

	sub, err := h.Subscribe("t-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	h.Publish("t-1", api.FrameStateUpdate, api.State{"n": 1})
	h.Publish("t-1", api.FrameToolCall, &api.ToolEvent{Tool: "lookup"})
	h.Publish("t-1", api.FrameStateUpdate, api.State{"n": 2})

	for i := 1; i <= 3; i++ {
		f := recvFrame(t, sub)
		if f.Seq != uint64(i) {
			t.Fatalf("frame %d has seq %d", i, f.Seq)
		}
		if f.ThreadID != "t-1" {
			t.Fatalf("frame carries wrong thread id %q", f.ThreadID)
		}
		if f.At.IsZero() {
			t.Fatal("frame has no timestamp")
		}
	}
}

func TestHub_SubscribeUnknownThread(t *testing.T) {
	h := newTestHub()
	if _, err := h.Subscribe("nope"); err != ErrUnknownThread {
		t.Fatalf("expected ErrUnknownThread, got %v", err)
	}
}

func TestHub_ReplayCatchUp(t *testing.T) {
	h := newTestHub()
	h.Open("t-1")

	for i := 1; i <= 3; i++ {
		h.Publish("t-1", api.FrameStateUpdate, api.State{"n": i})
	}

	// Late subscriber still sees everything published so far.
	sub, err := h.Subscribe("t-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	for i := 1; i <= 3; i++ {
		f := recvFrame(t, sub)
		if f.Seq != uint64(i) {
			t.Fatalf("replayed frame %d has seq %d", i, f.Seq)
		}
	}

	// And then live frames continue in order.
	h.Publish("t-1", api.FrameStateUpdate, api.State{"n": 4})
	if f := recvFrame(t, sub); f.Seq != 4 {
		t.Fatalf("live frame after replay has seq %d", f.Seq)
	}
}

func TestHub_ReplayBufferIsBounded(t *testing.T) {
	h := newTestHub() // buffer of 4
	h.Open("t-1")

	for i := 1; i <= 10; i++ {
		h.Publish("t-1", api.FrameStateUpdate, api.State{"n": i})
	}

	sub, err := h.Subscribe("t-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	// Only the newest 4 frames survive; sequence numbers are preserved.
	for want := uint64(7); want <= 10; want++ {
		f := recvFrame(t, sub)
		if f.Seq != want {
			t.Fatalf("expected seq %d, got %d", want, f.Seq)
		}
	}
}

func TestHub_NewSubscriberDisplacesOld(t *testing.T) {
	h := newTestHub()
	h.Open("t-1")

	old, err := h.Subscribe("t-1")
	if err != nil {
		t.Fatalf("first Subscribe failed: %v", err)
	}
	fresh, err := h.Subscribe("t-1")
	if err != nil {
		t.Fatalf("second Subscribe failed: %v", err)
	}
	defer fresh.Close()

	if _, ok := <-old.C; ok {
		t.Fatal("displaced subscriber channel should be closed")
	}

	h.Publish("t-1", api.FrameStateUpdate, api.State{"n": 1})
	if f := recvFrame(t, fresh); f.Seq != 1 {
		t.Fatalf("new subscriber missed the frame: %+v", f)
	}
}

func TestHub_FinishClosesSubscriber(t *testing.T) {
	h := newTestHub()
	h.Open("t-1")

	sub, err := h.Subscribe("t-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	h.Publish("t-1", api.FrameEnd, &api.EndDetail{Status: api.StatusCompleted})
	h.Finish("t-1")

	if f := recvFrame(t, sub); f.Type != api.FrameEnd {
		t.Fatalf("expected the end frame, got %+v", f)
	}
	select {
	case _, ok := <-sub.C:
		if ok {
			t.Fatal("expected channel close after finish")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after finish")
	}
}

func TestHub_SubscribeAfterFinishReplaysThenCloses(t *testing.T) {
	h := newTestHub()
	h.Open("t-1")
	h.Publish("t-1", api.FrameStateUpdate, api.State{"n": 1})
	h.Publish("t-1", api.FrameEnd, &api.EndDetail{Status: api.StatusCompleted})
	h.Finish("t-1")

	sub, err := h.Subscribe("t-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	var got []api.Frame
	for f := range sub.C {
		got = append(got, f)
	}
	if len(got) != 2 || got[0].Type != api.FrameStateUpdate || got[1].Type != api.FrameEnd {
		t.Fatalf("unexpected replay after finish: %+v", got)
	}
}

func TestHub_ReopenContinuesSequence(t *testing.T) {
	h := newTestHub()
	h.Open("t-1")
	h.Publish("t-1", api.FrameStateUpdate, api.State{"n": 1})
	h.Finish("t-1")
	h.Reopen("t-1")
	h.Publish("t-1", api.FrameStateUpdate, api.State{"n": 2})

	sub, err := h.Subscribe("t-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	first := recvFrame(t, sub)
	second := recvFrame(t, sub)
	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("sequence broken across reopen: %d then %d", first.Seq, second.Seq)
	}
}

func TestHub_HeartbeatsAreUnsequencedAndUnbuffered(t *testing.T) {
	h := NewHub(4, 10*time.Millisecond, nil)
	h.Open("t-1")

	sub, err := h.Subscribe("t-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case f := <-sub.C:
			if f.Type != api.FrameHeartbeat {
				continue
			}
			if f.Seq != 0 {
				t.Fatalf("heartbeat carries seq %d", f.Seq)
			}
			// A heartbeat must not occupy the replay buffer: a fresh
			// subscriber sees only sequenced frames.
			h.Publish("t-1", api.FrameStateUpdate, api.State{"n": 1})
			fresh, err := h.Subscribe("t-1")
			if err != nil {
				t.Fatalf("second Subscribe failed: %v", err)
			}
			defer fresh.Close()
			if first := recvFrame(t, fresh); first.Type != api.FrameStateUpdate || first.Seq != 1 {
				t.Fatalf("replay contains non-state frame: %+v", first)
			}
			return
		case <-deadline:
			t.Fatal("no heartbeat observed")
		}
	}
}

func TestHub_PublishToUnknownThreadIsNoop(t *testing.T) {
	h := newTestHub()
	// Must not panic or block.
	h.Publish("ghost", api.FrameStateUpdate, api.State{})
}

func TestHub_SlowSubscriberDropsNotBlocks(t *testing.T) {
	h := newTestHub()
	h.Open("t-1")

	sub, err := h.Subscribe("t-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	// Publish far beyond the channel capacity without draining; the
	// publisher must never stall.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish("t-1", api.FrameStateUpdate, api.State{"n": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}

	// What did arrive is still in order.
	var lastSeq uint64
	for {
		select {
		case f := <-sub.C:
			if f.Seq <= lastSeq {
				t.Fatalf("out of order delivery: %d after %d", f.Seq, lastSeq)
			}
			lastSeq = f.Seq
		default:
			if lastSeq == 0 {
				t.Fatal("no frames delivered at all")
			}
			return
		}
	}
}

func TestHub_ManyThreadsAreIndependent(t *testing.T) {
	h := newTestHub()
	subs := make(map[string]*api.Subscription)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("t-%d", i)
		h.Open(id)
		sub, err := h.Subscribe(id)
		if err != nil {
			t.Fatalf("Subscribe %s failed: %v", id, err)
		}
		defer sub.Close()
		subs[id] = sub
	}

	for id := range subs {
		h.Publish(id, api.FrameStateUpdate, api.State{"id": id})
	}

	for id, sub := range subs {
		f := recvFrame(t, sub)
		if f.ThreadID != id || f.Seq != 1 {
			t.Fatalf("thread %s got foreign frame %+v", id, f)
		}
	}
}
