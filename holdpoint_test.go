package holdpoint

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

func waitStatus(t *testing.T, eng Engine, threadID string, want Status) *Instance {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	var last *Instance
	for time.Now().Before(deadline) {
		inst, err := eng.Instance(context.Background(), threadID)
		if err == nil {
			last = inst
			if inst.Status == want {
				return inst
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("thread %s never reached %s; last: %+v", threadID, want, last)
	return nil
}

// checkInDefinition is a small front-desk flow: assign a room, then a
// gated deposit charge that always trips the risk heuristic.
func checkInDefinition() Definition {
	return NewDefinition("check-in-guest").
		Industry("hospitality").
		Tags("front-desk", "billing").
		RequiredField("guest_name", FieldString).
		Field("room", FieldString).
		Step("assign-room", func(ctx context.Context, s State) (Result, error) {
			return RequestApproval(
				Result{Delta: State{"room": "204"}, Next: "charge-deposit"},
				"pay_deposit",
				map[string]any{"amount": 150, "guest": s["guest_name"]},
			), nil
		}).
		GateStep("charge-deposit", func(ctx context.Context, s State) (Result, error) {
			return Result{Delta: State{"deposit_charged": true}, Next: End}, nil
		}).
		Definition()
}

func TestEndToEnd_ApproveFlow(t *testing.T) {
	eng := NewInMemoryEngine()
	require.NoError(t, eng.Register(checkInDefinition()))

	ctx := context.Background()
	threadID, err := Start(ctx, eng, "check-in-guest", State{"guest_name": "Ada"})
	require.NoError(t, err)

	inst := waitStatus(t, eng, threadID, StatusSuspended)
	require.Equal(t, "charge-deposit", inst.Step)
	require.Equal(t, "204", inst.State["room"])

	require.NoError(t, Approve(ctx, eng, threadID, State{"deposit_waived_by": "manager"}))

	inst = waitStatus(t, eng, threadID, StatusCompleted)
	require.Equal(t, true, inst.State["deposit_charged"])
	require.Equal(t, "manager", inst.State["deposit_waived_by"])
}

func TestEndToEnd_RejectFlow(t *testing.T) {
	eng := NewInMemoryEngine()
	require.NoError(t, eng.Register(checkInDefinition()))

	ctx := context.Background()
	threadID, err := Start(ctx, eng, "check-in-guest", State{"guest_name": "Ada"})
	require.NoError(t, err)
	waitStatus(t, eng, threadID, StatusSuspended)

	require.NoError(t, Reject(ctx, eng, threadID, "card declined"))

	inst := waitStatus(t, eng, threadID, StatusCancelled)
	require.NotEqual(t, true, inst.State["deposit_charged"])
}

// TestSQLite_DurableAcrossRestart approves a suspended workflow on a
// second engine over the same database file, simulating a process
// restart between suspension and decision.
func TestSQLite_DurableAcrossRestart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "holdpoint.db") + "?_journal=WAL"

	db1, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)

	eng1, err := NewSQLiteEngine(db1)
	require.NoError(t, err)
	require.NoError(t, eng1.Register(checkInDefinition()))

	threadID, err := Start(ctx, eng1, "check-in-guest", State{"guest_name": "Grace"})
	require.NoError(t, err)
	waitStatus(t, eng1, threadID, StatusSuspended)

	// Simulate the crash: close the handle, discard the engine.
	require.NoError(t, db1.Close())

	db2, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db2.Close() })

	eng2, err := NewSQLiteEngine(db2)
	require.NoError(t, err)
	require.NoError(t, eng2.Register(checkInDefinition()))

	require.NoError(t, Approve(ctx, eng2, threadID, nil))

	inst := waitStatus(t, eng2, threadID, StatusCompleted)
	require.Equal(t, true, inst.State["deposit_charged"])
	require.Equal(t, "Grace", inst.State["guest_name"])
}

func TestSubscribeWithRetry_SucceedsOnceThreadExists(t *testing.T) {
	eng := NewInMemoryEngine()
	require.NoError(t, eng.Register(checkInDefinition()))

	ctx := context.Background()

	// Subscribe in the background before the thread exists; the retry
	// loop bridges the gap.
	ready := make(chan struct{})
	var sub *Subscription
	var subErr error
	go func() {
		sub, subErr = SubscribeWithRetry(ctx, eng, "early-bird", 5)
		close(ready)
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := eng.Start(ctx, "check-in-guest", State{"guest_name": "Ada"},
		StartOptions{ThreadID: "early-bird"})
	require.NoError(t, err)

	select {
	case <-ready:
	case <-time.After(3 * time.Second):
		t.Fatal("SubscribeWithRetry never returned")
	}
	require.NoError(t, subErr)
	require.NotNil(t, sub)
	defer sub.Close()

	select {
	case f := <-sub.C:
		require.Equal(t, FrameStateUpdate, f.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered to retried subscriber")
	}
}

func TestSubscribeWithRetry_GivesUp(t *testing.T) {
	eng := NewInMemoryEngine()
	_, err := SubscribeWithRetry(context.Background(), eng, "never", 2)
	require.Error(t, err)
}

func TestSubscribeWithRetry_HonorsContext(t *testing.T) {
	eng := NewInMemoryEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SubscribeWithRetry(ctx, eng, "never", 5)
	require.ErrorIs(t, err, context.Canceled)
}

func TestList_Discovery(t *testing.T) {
	eng := NewInMemoryEngine()
	require.NoError(t, eng.Register(checkInDefinition()))

	admit := NewDefinition("admit-patient").
		Industry("healthcare").
		Tags("admissions").
		Step("triage", PassStep(End)).
		Definition()
	require.NoError(t, eng.Register(admit))

	all := eng.List(ListFilter{})
	require.Len(t, all, 2)

	hotels := eng.List(ListFilter{Industry: "hospitality"})
	require.Len(t, hotels, 1)
	require.Equal(t, "check-in-guest", hotels[0].Name)

	gated := eng.List(ListFilter{
		Capability: func(c Capabilities) bool { return c.RequiresApproval },
	})
	require.Len(t, gated, 1)
	require.Equal(t, "check-in-guest", gated[0].Name)
}
