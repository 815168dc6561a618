package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/holdpoint/holdpoint/internal/checkpoint"
	"github.com/holdpoint/holdpoint/internal/stream"
	"github.com/holdpoint/holdpoint/pkg/api"
	"github.com/holdpoint/holdpoint/pkg/risk"
)

// DefaultStepLimit guards against accidental infinite loops in a graph
// definition.
const DefaultStepLimit = 100

// Config describes how to construct an engine. Zero values select
// defaults.
type Config struct {
	Checkpoints checkpoint.Store
	Classifier  *risk.Classifier
	Logger      *slog.Logger

	// StepLimit caps steps per instance; default DefaultStepLimit.
	StepLimit int

	// BufferSize is the per-thread replay buffer length; default
	// stream.DefaultBufferSize.
	BufferSize int

	// HeartbeatInterval is the heartbeat cadence; default
	// stream.DefaultHeartbeatInterval, negative disables.
	HeartbeatInterval time.Duration

	// CheckpointTTL, when positive, sets an advisory expiry on every
	// checkpoint written.
	CheckpointTTL time.Duration
}

type engineImpl struct {
	registry    *Registry
	checkpoints checkpoint.Store
	classifier  *risk.Classifier
	hub         *stream.Hub
	logger      *slog.Logger

	stepLimit     int
	checkpointTTL time.Duration

	mu        sync.RWMutex
	instances map[string]*instanceState
}

// instanceState is the engine's live view of one thread. While the
// instance is running it is owned by its segment goroutine; while
// suspended, ownership of the state rests with the checkpoint store and
// this record only mirrors it.
type instanceState struct {
	mu        sync.Mutex
	inst      api.Instance
	cancelled atomic.Bool
}

// NewEngineWithConfig creates an Engine from cfg.
func NewEngineWithConfig(cfg Config) api.Engine {
	if cfg.Checkpoints == nil {
		cfg.Checkpoints = checkpoint.NewMemoryStore()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = risk.NewClassifier(risk.Policy{})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StepLimit <= 0 {
		cfg.StepLimit = DefaultStepLimit
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat == 0 {
		heartbeat = stream.DefaultHeartbeatInterval
	}

	return &engineImpl{
		registry:      NewRegistry(),
		checkpoints:   cfg.Checkpoints,
		classifier:    cfg.Classifier,
		hub:           stream.NewHub(cfg.BufferSize, heartbeat, cfg.Logger),
		logger:        cfg.Logger,
		stepLimit:     cfg.StepLimit,
		checkpointTTL: cfg.CheckpointTTL,
		instances:     make(map[string]*instanceState),
	}
}

// NewInMemoryEngine returns an Engine backed entirely by in-memory state.
func NewInMemoryEngine() api.Engine {
	return NewEngineWithConfig(Config{})
}

// NewSQLiteEngine returns an Engine whose checkpoints persist in SQLite.
func NewSQLiteEngine(db *sql.DB) (api.Engine, error) {
	return NewSQLiteEngineWithConfig(db, Config{})
}

// NewSQLiteEngineWithConfig is NewSQLiteEngine with explicit tunables.
func NewSQLiteEngineWithConfig(db *sql.DB, cfg Config) (api.Engine, error) {
	store, err := checkpoint.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	cfg.Checkpoints = store
	return NewEngineWithConfig(cfg), nil
}

// NewPostgresEngine returns an Engine whose checkpoints persist in
// PostgreSQL.
func NewPostgresEngine(db *sql.DB) (api.Engine, error) {
	return NewPostgresEngineWithConfig(db, Config{})
}

// NewPostgresEngineWithConfig is NewPostgresEngine with explicit tunables.
func NewPostgresEngineWithConfig(db *sql.DB, cfg Config) (api.Engine, error) {
	store, err := checkpoint.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}
	cfg.Checkpoints = store
	return NewEngineWithConfig(cfg), nil
}

// NewRedisEngine returns an Engine whose checkpoints persist in Redis.
func NewRedisEngine(client *redis.Client) api.Engine {
	return NewRedisEngineWithConfig(client, Config{})
}

// NewRedisEngineWithConfig is NewRedisEngine with explicit tunables.
func NewRedisEngineWithConfig(client *redis.Client, cfg Config) api.Engine {
	cfg.Checkpoints = checkpoint.NewRedisStore(client, "holdpoint:")
	return NewEngineWithConfig(cfg)
}

// NewMongoEngine returns an Engine whose checkpoints persist in MongoDB.
func NewMongoEngine(db *mongo.Database) api.Engine {
	return NewMongoEngineWithConfig(db, Config{})
}

// NewMongoEngineWithConfig is NewMongoEngine with explicit tunables.
func NewMongoEngineWithConfig(db *mongo.Database, cfg Config) api.Engine {
	cfg.Checkpoints = checkpoint.NewMongoStore(db)
	return NewEngineWithConfig(cfg)
}

func (e *engineImpl) Register(def api.Definition) error {
	return e.registry.Register(def)
}

func (e *engineImpl) Definition(name string) (api.Definition, error) {
	return e.registry.Get(name)
}

func (e *engineImpl) List(filter api.ListFilter) []api.Definition {
	return e.registry.List(filter)
}

func (e *engineImpl) ValidateInitialState(name string, state api.State) (api.State, error) {
	return e.registry.ValidateInitialState(name, state)
}

func (e *engineImpl) Start(ctx context.Context, workflow string, state api.State, opts api.StartOptions) (string, error) {
	def, err := e.registry.Get(workflow)
	if err != nil {
		return "", err
	}
	normalized, err := e.registry.ValidateInitialState(workflow, state)
	if err != nil {
		return "", err
	}

	threadID := opts.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	e.mu.Lock()
	if _, exists := e.instances[threadID]; exists {
		// Caller-supplied ids make retries of the same logical request
		// idempotent: the original execution stands.
		e.mu.Unlock()
		return threadID, nil
	}
	ist := &instanceState{
		inst: api.Instance{
			ThreadID: threadID,
			Workflow: workflow,
			Step:     def.StartStep(),
			State:    normalized,
			Status:   api.StatusRunning,
		},
	}
	e.instances[threadID] = ist
	e.mu.Unlock()

	e.hub.Open(threadID)
	e.emitState(ist)
	e.logger.Info("workflow started",
		slog.String("workflow", workflow),
		slog.String("thread_id", threadID),
	)

	// The caller detaches here; the segment owns its own lifetime.
	go e.runSegment(context.WithoutCancel(ctx), ist, def, def.StartStep(), nil, "")

	return threadID, nil
}

func (e *engineImpl) Resume(ctx context.Context, threadID string, decision api.Decision) error {
	ckpt, err := e.checkpoints.Get(ctx, threadID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return fmt.Errorf("%w: %s", api.ErrNoSuchCheckpoint, threadID)
		}
		return err
	}

	def, err := e.registry.Get(ckpt.Workflow)
	if err != nil {
		return err
	}

	// One-time use: the checkpoint is consumed whatever the decision.
	if err := e.checkpoints.Delete(ctx, threadID); err != nil {
		return err
	}

	ist := e.instance(threadID)
	if ist == nil {
		// Process restarted since suspension; rebuild from the durable
		// record.
		ist = &instanceState{
			inst: api.Instance{
				ThreadID: threadID,
				Workflow: ckpt.Workflow,
				Step:     ckpt.Step,
				State:    ckpt.State.Clone(),
				Status:   api.StatusSuspended,
			},
		}
		e.mu.Lock()
		e.instances[threadID] = ist
		e.mu.Unlock()
		e.hub.Open(threadID)
	}

	if !decision.Approved {
		reason := decision.Reason
		if reason == "" {
			reason = "rejected by reviewer"
		}
		ist.mu.Lock()
		ist.inst.Status = api.StatusCancelled
		ist.mu.Unlock()
		e.hub.Publish(threadID, api.FrameEnd, &api.EndDetail{
			Status: api.StatusCancelled,
			Reason: reason,
		})
		e.hub.Finish(threadID)
		e.logger.Info("workflow cancelled at gate",
			slog.String("thread_id", threadID),
			slog.String("reason", reason),
		)
		return nil
	}

	state := ckpt.State.Clone()
	// Reviewer edits win over the restored snapshot.
	state.Merge(decision.StateOverlay)

	ist.mu.Lock()
	ist.inst.State = state
	ist.inst.Step = ckpt.Step
	ist.inst.Status = api.StatusRunning
	ist.mu.Unlock()

	e.hub.Reopen(threadID)
	e.emitState(ist)
	e.logger.Info("workflow resumed",
		slog.String("thread_id", threadID),
		slog.String("step", ckpt.Step),
	)

	go e.runSegment(context.WithoutCancel(ctx), ist, def, ckpt.Step, nil, ckpt.Step)

	return nil
}

func (e *engineImpl) Cancel(ctx context.Context, threadID string) error {
	ist := e.instance(threadID)
	if ist == nil {
		return fmt.Errorf("%w: %s", api.ErrNoSuchCheckpoint, threadID)
	}

	ist.mu.Lock()
	status := ist.inst.Status
	ist.mu.Unlock()

	switch status {
	case api.StatusSuspended:
		// No step in flight: identical to rejecting the approval.
		return e.Resume(ctx, threadID, api.Decision{Approved: false, Reason: "cancelled by caller"})
	case api.StatusRunning:
		// Cooperative: honored at the next step boundary.
		ist.cancelled.Store(true)
		return nil
	default:
		return nil
	}
}

func (e *engineImpl) Instance(ctx context.Context, threadID string) (*api.Instance, error) {
	ist := e.instance(threadID)
	if ist == nil {
		return nil, fmt.Errorf("%w: %s", api.ErrUnknownWorkflow, threadID)
	}

	ist.mu.Lock()
	defer ist.mu.Unlock()
	snap := ist.inst
	snap.State = ist.inst.State.Clone()
	return &snap, nil
}

func (e *engineImpl) Subscribe(threadID string) (*api.Subscription, error) {
	return e.hub.Subscribe(threadID)
}

func (e *engineImpl) instance(threadID string) *instanceState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.instances[threadID]
}

// runSegment drives an instance from stepName until completion, failure,
// cancellation or suspension. approvedStep names the gate already cleared
// by the resume call, so its risk check is not repeated.
//
// Suspension tears this goroutine down entirely; resumption starts a
// fresh segment seeded from the checkpoint.
func (e *engineImpl) runSegment(
	ctx context.Context,
	ist *instanceState,
	def api.Definition,
	stepName string,
	pending *api.Operation,
	approvedStep string,
) {
	threadID := ist.inst.ThreadID
	emitter := &threadEmitter{hub: e.hub, threadID: threadID}
	stepCtx := api.WithEmitter(ctx, emitter)

	for {
		if ist.cancelled.Load() {
			ist.mu.Lock()
			ist.inst.Status = api.StatusCancelled
			ist.mu.Unlock()
			e.hub.Publish(threadID, api.FrameEnd, &api.EndDetail{
				Status: api.StatusCancelled,
				Reason: "cancelled by caller",
			})
			e.hub.Finish(threadID)
			return
		}

		step, ok := def.Step(stepName)
		if !ok {
			e.fail(ist, "definition_error",
				fmt.Errorf("workflow %s has no step %q", def.Name, stepName))
			return
		}

		if step.Gate && step.Name != approvedStep {
			op := pending
			if op == nil {
				// No pending operation was handed over; the gate is
				// reviewed as the step itself over the current state.
				ist.mu.Lock()
				args := map[string]any(ist.inst.State.Clone())
				ist.mu.Unlock()
				op = &api.Operation{Name: step.Name, Args: args}
			}

			assessment := e.classifier.Classify(*op)
			if assessment.RequiresApproval {
				e.suspend(ctx, ist, def, step.Name, op, assessment)
				return
			}
		}
		approvedStep = ""

		ist.mu.Lock()
		ist.inst.Step = step.Name
		snapshot := ist.inst.State.Clone()
		ist.mu.Unlock()

		result, err := invokeStep(stepCtx, step, snapshot)
		if err != nil {
			e.fail(ist, "step_error", err)
			return
		}

		ist.mu.Lock()
		ist.inst.State.Merge(result.Delta)
		ist.inst.StepCount++
		count := ist.inst.StepCount
		ist.mu.Unlock()

		e.emitState(ist)

		if result.Next == "" || result.Next == api.End {
			ist.mu.Lock()
			ist.inst.Status = api.StatusCompleted
			ist.mu.Unlock()
			e.hub.Publish(threadID, api.FrameEnd, &api.EndDetail{Status: api.StatusCompleted})
			e.hub.Finish(threadID)
			e.logger.Info("workflow completed",
				slog.String("workflow", def.Name),
				slog.String("thread_id", threadID),
				slog.Int("steps", count),
			)
			return
		}

		if count >= e.stepLimit {
			e.fail(ist, "step_limit_exceeded",
				fmt.Errorf("%w: %d steps", api.ErrStepLimitExceeded, count))
			return
		}

		stepName = result.Next
		pending = result.Pending
	}
}

// invokeStep runs a step function, converting panics into ordinary step
// errors so one bad step cannot take the process down.
func invokeStep(ctx context.Context, step api.StepDefinition, state api.State) (result api.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.Name, r)
		}
	}()
	return step.Fn(ctx, state)
}

func (e *engineImpl) suspend(
	ctx context.Context,
	ist *instanceState,
	def api.Definition,
	stepName string,
	op *api.Operation,
	assessment risk.Assessment,
) {
	threadID := ist.inst.ThreadID
	summary := fmt.Sprintf("%s requires approval (risk: %s)", op.Name, assessment.Level)

	ist.mu.Lock()
	snapshot := ist.inst.State.Clone()
	ist.mu.Unlock()

	ckpt := &checkpoint.Checkpoint{
		ThreadID:  threadID,
		Workflow:  def.Name,
		Step:      stepName,
		State:     snapshot,
		Reason:    summary,
		CreatedAt: time.Now().UTC(),
	}
	if e.checkpointTTL > 0 {
		ckpt.ExpiresAt = ckpt.CreatedAt.Add(e.checkpointTTL)
	}

	if err := e.checkpoints.Put(ctx, ckpt); err != nil {
		e.fail(ist, "checkpoint_error", fmt.Errorf("persist checkpoint: %v", err))
		return
	}

	ist.mu.Lock()
	ist.inst.Status = api.StatusSuspended
	ist.inst.Step = stepName
	ist.mu.Unlock()

	e.hub.Publish(threadID, api.FrameInterrupt, &api.ApprovalRequest{
		ThreadID:  threadID,
		Level:     assessment.Level,
		Summary:   summary,
		Operation: *op,
		Decision:  api.DecisionPending,
	})
	e.logger.Info("workflow suspended at gate",
		slog.String("workflow", def.Name),
		slog.String("thread_id", threadID),
		slog.String("step", stepName),
		slog.String("operation", op.Name),
		slog.String("risk", string(assessment.Level)),
	)
}

// fail records a terminal failure and emits the error/end frame pair. The
// error detail carries kind and message only; storage and stack internals
// never reach the stream.
func (e *engineImpl) fail(ist *instanceState, kind string, err error) {
	threadID := ist.inst.ThreadID

	ist.mu.Lock()
	ist.inst.Status = api.StatusFailed
	ist.inst.Err = err
	ist.mu.Unlock()

	e.hub.Publish(threadID, api.FrameError, &api.ErrorDetail{
		Kind:    kind,
		Message: err.Error(),
	})
	e.hub.Publish(threadID, api.FrameEnd, &api.EndDetail{
		Status: api.StatusFailed,
		Reason: err.Error(),
	})
	e.hub.Finish(threadID)
	e.logger.Error("workflow failed",
		slog.String("thread_id", threadID),
		slog.String("kind", kind),
		slog.Any("error", err),
	)
}

func (e *engineImpl) emitState(ist *instanceState) {
	ist.mu.Lock()
	snapshot := ist.inst.State.Clone()
	ist.mu.Unlock()
	e.hub.Publish(ist.inst.ThreadID, api.FrameStateUpdate, snapshot)
}

// threadEmitter publishes tool frames for the step running on one thread.
type threadEmitter struct {
	hub      *stream.Hub
	threadID string
}

func (t *threadEmitter) EmitToolCall(tool string, args map[string]any) {
	t.hub.Publish(t.threadID, api.FrameToolCall, &api.ToolEvent{Tool: tool, Args: args})
}

func (t *threadEmitter) EmitToolResult(tool string, result any) {
	t.hub.Publish(t.threadID, api.FrameToolResult, &api.ToolEvent{Tool: tool, Result: result})
}
