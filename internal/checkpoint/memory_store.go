package checkpoint

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the reference Store implementation: a goroutine-safe map
// keyed by thread id. Suspended workflows do not survive a process
// restart with this store; use one of the durable backends for that.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[string]*Checkpoint),
	}
}

func (s *MemoryStore) Put(ctx context.Context, ckpt *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *ckpt
	s.checkpoints[ckpt.ThreadID] = &c
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, threadID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ckpt, ok := s.checkpoints[threadID]
	if !ok || ckpt.Expired(time.Now()) {
		return nil, ErrNotFound
	}

	c := *ckpt
	return &c, nil
}

func (s *MemoryStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.checkpoints, threadID)
	return nil
}
