package indexer

import "sync/atomic"

// IndexLock rejects overlapping builds instead of queueing them.
type IndexLock struct {
	state atomic.Int32 // 0 = idle, 1 = building
}

// TryAcquire marks a build as running. It returns false if one already is.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release marks the build as finished. Only the caller whose TryAcquire
// succeeded may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Busy reports whether a build is running.
func (l *IndexLock) Busy() bool {
	return l.state.Load() == 1
}
