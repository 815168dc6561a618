// Package holdpoint is an embeddable workflow orchestration engine with
// human-in-the-loop approval gates.
//
// A caller describes a multi-step business process as a declarative graph
// of steps, executes it against mutable shared state, and observes
// progress as an ordered stream of typed frames. Whenever a step is
// classified as risky enough to need human sign-off, the engine persists
// a checkpoint, suspends the thread, and waits for a resume call carrying
// the reviewer's decision.
//
// # Core Concepts
//
//  1. Engine — registers workflow definitions, starts and resumes
//     threads, and serves frame subscriptions.
//  2. Definition / DefinitionBuilder — the declarative workflow graph:
//     named steps, transitions, state field declarations, gate flags.
//  3. StepFunc — one step: state in, delta + next-step directive out.
//  4. Risk classifier — the policy table deciding which pending
//     operations pause for approval.
//  5. Checkpoint store — durable suspend/resume snapshots, keyed by
//     thread id.
//
// # Suspension model
//
// Suspension is not a blocked goroutine. When a gate requires approval
// the execution context is torn down entirely and the state snapshot is
// written to the checkpoint store; a later Resume reconstructs execution
// from that snapshot, even across process restarts when a durable store
// backs the engine.
//
// Checkpoint stores are available for:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - PostgreSQL
//   - Redis
//   - MongoDB
//
// # Quick start
//
//	eng := holdpoint.NewInMemoryEngine()
//
//	def := holdpoint.NewDefinition("discharge-patient").
//	    Industry("hospital").
//	    RequiredField("patient_id", holdpoint.FieldString).
//	    Step("review", reviewStep).
//	    GateStep("discharge", dischargeStep).
//	    Definition()
//
//	if err := eng.Register(def); err != nil {
//	    log.Fatal(err)
//	}
//
//	threadID, err := eng.Start(ctx, "discharge-patient",
//	    holdpoint.State{"patient_id": "P-17"}, holdpoint.StartOptions{})
//
//	sub, _ := eng.Subscribe(threadID)
//	for frame := range sub.C {
//	    // interrupt frames carry the ApprovalRequest; settle them with
//	    // eng.Resume(ctx, threadID, holdpoint.Decision{Approved: true}).
//	}
package holdpoint
