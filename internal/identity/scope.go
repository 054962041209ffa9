package identity

import (
	"context"
	"sync"
)

// Scope is the lifetime of the consumer that owns the store. Once closed,
// its context is cancelled and Do refuses to run store writes.
type Scope struct {
	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel}
}

// Context is cancelled when the scope closes.
func (s *Scope) Context() context.Context { return s.ctx }

func (s *Scope) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Do runs fn unless the scope has closed, and reports whether it ran. Close
// waits for a running fn, so nothing fn writes can land after Close returns.
func (s *Scope) Do(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fn()
	return true
}

// Close ends the scope. Safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}
