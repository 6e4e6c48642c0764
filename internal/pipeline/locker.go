package pipeline

import (
	"context"
	"sync"
)

// SourceLocker serializes scrape dispatches per source id, covering the
// window from job creation through job completion. Acquire blocks until the
// lock is held or ctx is done; the returned release must be called exactly
// once.
type SourceLocker interface {
	Acquire(ctx context.Context, sourceID int64) (release func(), err error)
}

// memoryLocker is the in-process default: one slot per source id.
type memoryLocker struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

// NewMemoryLocker returns an in-process SourceLocker. It guards concurrent
// dispatches within one process only; multi-process deployments use the
// Redis locker instead.
func NewMemoryLocker() SourceLocker {
	return &memoryLocker{slots: make(map[int64]chan struct{})}
}

func (l *memoryLocker) Acquire(ctx context.Context, sourceID int64) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[sourceID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[sourceID] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
