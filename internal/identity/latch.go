package identity

import "sync/atomic"

// Latch admits at most one holder at a time. Losers of TryAcquire are
// expected to return without doing anything.
type Latch struct {
	held atomic.Bool
}

func (l *Latch) TryAcquire() bool { return l.held.CompareAndSwap(false, true) }
func (l *Latch) Release()         { l.held.Store(false) }
func (l *Latch) Held() bool       { return l.held.Load() }
