package holdpoint

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/holdpoint/holdpoint/internal/backoff"
	"github.com/holdpoint/holdpoint/internal/engine"
	"github.com/holdpoint/holdpoint/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine          = api.Engine
	Definition      = api.Definition
	StepDefinition  = api.StepDefinition
	StepFunc        = api.StepFunc
	Result          = api.Result
	Operation       = api.Operation
	State           = api.State
	FieldSpec       = api.FieldSpec
	FieldType       = api.FieldType
	Capabilities    = api.Capabilities
	Instance        = api.Instance
	Status          = api.Status
	ListFilter      = api.ListFilter
	StartOptions    = api.StartOptions
	Decision        = api.Decision
	ApprovalRequest = api.ApprovalRequest
	Frame           = api.Frame
	FrameType       = api.FrameType
	RiskLevel       = api.RiskLevel
	Subscription    = api.Subscription
	Config          = engine.Config
)

// Re-export status values for convenience.

const (
	StatusRunning   = api.StatusRunning
	StatusSuspended = api.StatusSuspended
	StatusCompleted = api.StatusCompleted
	StatusFailed    = api.StatusFailed
	StatusCancelled = api.StatusCancelled
)

// Re-export field types and the terminal directive.

const (
	FieldString = api.FieldString
	FieldNumber = api.FieldNumber
	FieldList   = api.FieldList
	FieldBool   = api.FieldBool

	End = api.End
)

// Re-export frame types.

const (
	FrameStateUpdate = api.FrameStateUpdate
	FrameInterrupt   = api.FrameInterrupt
	FrameToolCall    = api.FrameToolCall
	FrameToolResult  = api.FrameToolResult
	FrameError       = api.FrameError
	FrameHeartbeat   = api.FrameHeartbeat
	FrameEnd         = api.FrameEnd
)

// Re-export risk levels.

const (
	RiskLow    = api.RiskLow
	RiskMedium = api.RiskMedium
	RiskHigh   = api.RiskHigh
)

// Re-export tool-frame helpers for use inside step functions.

var (
	EmitToolCall   = api.EmitToolCall
	EmitToolResult = api.EmitToolResult
)

// Engine constructors. These wrap the internal/engine package so external
// callers never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by in-memory state.
// Suspended workflows do not survive a process restart.
func NewInMemoryEngine() Engine {
	return engine.NewInMemoryEngine()
}

// NewEngineWithConfig returns an Engine with explicit tunables: the
// checkpoint store, the risk classifier, step limit, buffer size,
// heartbeat interval and checkpoint TTL.
func NewEngineWithConfig(cfg Config) Engine {
	return engine.NewEngineWithConfig(cfg)
}

// NewSQLiteEngine returns an Engine that persists checkpoints in a SQLite
// database. The caller imports the driver, e.g. modernc.org/sqlite.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(db)
}

// NewSQLiteEngineWithConfig is NewSQLiteEngine with explicit tunables.
func NewSQLiteEngineWithConfig(db *sql.DB, cfg Config) (Engine, error) {
	return engine.NewSQLiteEngineWithConfig(db, cfg)
}

// NewPostgresEngine returns an Engine that persists checkpoints in
// PostgreSQL.
func NewPostgresEngine(db *sql.DB) (Engine, error) {
	return engine.NewPostgresEngine(db)
}

// NewPostgresEngineWithConfig is NewPostgresEngine with explicit tunables.
func NewPostgresEngineWithConfig(db *sql.DB, cfg Config) (Engine, error) {
	return engine.NewPostgresEngineWithConfig(db, cfg)
}

// NewRedisEngine returns an Engine that persists checkpoints in Redis.
func NewRedisEngine(client *redis.Client) Engine {
	return engine.NewRedisEngine(client)
}

// NewRedisEngineWithConfig is NewRedisEngine with explicit tunables.
func NewRedisEngineWithConfig(client *redis.Client, cfg Config) Engine {
	return engine.NewRedisEngineWithConfig(client, cfg)
}

// NewMongoEngine returns an Engine that persists checkpoints in MongoDB.
func NewMongoEngine(db *mongo.Database) Engine {
	return engine.NewMongoEngine(db)
}

// NewMongoEngineWithConfig is NewMongoEngine with explicit tunables.
func NewMongoEngineWithConfig(db *mongo.Database, cfg Config) Engine {
	return engine.NewMongoEngineWithConfig(db, cfg)
}

// Convenience helpers that forward to the underlying Engine.

// Start starts a workflow and returns its thread id.
func Start(ctx context.Context, eng Engine, workflow string, state State) (string, error) {
	return eng.Start(ctx, workflow, state, StartOptions{})
}

// Resume supplies a human decision for a suspended thread.
func Resume(ctx context.Context, eng Engine, threadID string, decision Decision) error {
	return eng.Resume(ctx, threadID, decision)
}

// Approve resumes a suspended thread with an approval and optional state
// edits made during review.
func Approve(ctx context.Context, eng Engine, threadID string, overlay State) error {
	return eng.Resume(ctx, threadID, Decision{Approved: true, StateOverlay: overlay})
}

// Reject resumes a suspended thread with a rejection, cancelling it.
func Reject(ctx context.Context, eng Engine, threadID string, reason string) error {
	return eng.Resume(ctx, threadID, Decision{Approved: false, Reason: reason})
}

// SubscribeWithRetry subscribes to a thread's frame stream, retrying with
// exponential backoff when the thread is not yet known (for example when
// the subscriber races the Start call or reconnects after a network
// blip). attempts <= 0 selects 3.
func SubscribeWithRetry(ctx context.Context, eng Engine, threadID string, attempts int) (*Subscription, error) {
	if attempts <= 0 {
		attempts = 3
	}
	strategy := backoff.NewExponential(50*time.Millisecond, 2*time.Second)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		sub, err := eng.Subscribe(threadID)
		if err == nil {
			return sub, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(strategy.Delay(attempt)):
		}
	}
	return nil, lastErr
}
