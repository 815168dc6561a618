// Package checkpoint persists suspended execution state, keyed by thread
// id. Exactly one live checkpoint exists per thread; writing a new one
// supersedes the previous. Stores must be per-key linearizable: within a
// thread id, Put is strictly ordered relative to Get and Delete.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/holdpoint/holdpoint/pkg/api"
)

// ErrNotFound is returned when no live checkpoint exists for a thread id.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is a durable snapshot of a suspended workflow instance.
type Checkpoint struct {
	ThreadID string    `json:"thread_id"`
	Workflow string    `json:"workflow_name"`
	Step     string    `json:"step_name"`
	State    api.State `json:"state"`

	// Reason is the free-text suspension reason, typically the approval
	// summary.
	Reason string `json:"reason"`

	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt, when non-zero, makes the checkpoint advisory-expire:
	// Get treats it as not found after this instant. Expiry emits no
	// event; it surfaces only on the next access attempt.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the checkpoint is past its expiry at now.
func (c *Checkpoint) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Store is the checkpoint persistence contract. Any storage that can do
// a key-value lookup by thread id satisfies it.
type Store interface {
	// Put writes or overwrites the checkpoint for its thread id.
	Put(ctx context.Context, ckpt *Checkpoint) error

	// Get returns the live checkpoint or ErrNotFound. Expired
	// checkpoints are reported as ErrNotFound.
	Get(ctx context.Context, threadID string) (*Checkpoint, error)

	// Delete removes the checkpoint. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, threadID string) error
}
