// Package session runs the conversational order flow: one pending order
// slot per session, turn classification, resolution and the commit
// sequence.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/brifyai/pautapro/internal/model"
)

// State is where a session sits in the order flow.
type State string

const (
	StateIdle                 State = "idle"
	StateExtracting           State = "extracting"
	StateResolving            State = "resolving"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateExecuting            State = "executing"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
	StatePartialCommit        State = "partial_commit"
	StateCancelled            State = "cancelled"
)

// Session is one conversation. Turns are serialized by turn; mu guards the
// fields read by snapshots while a turn is running.
type Session struct {
	ID        string
	CreatedAt time.Time

	turn sync.Mutex

	mu      sync.RWMutex
	state   State
	pending *model.PendingOrder

	lastActive atomic.Int64
}

func newSession(id string, now time.Time) *Session {
	s := &Session{ID: id, CreatedAt: now, state: StateIdle}
	s.touch(now)
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Pending returns a copy of the pending order, or nil.
func (s *Session) Pending() *model.PendingOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePending(s.pending)
}

// HasPending reports whether the slot is occupied.
func (s *Session) HasPending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending != nil
}

// LastActive is the time of the last turn.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch(now time.Time) { s.lastActive.Store(now.UnixNano()) }

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// setPending fills the slot and moves to AwaitingConfirmation.
func (s *Session) setPending(p *model.PendingOrder) {
	s.mu.Lock()
	s.pending = p
	s.state = StateAwaitingConfirmation
	s.mu.Unlock()
}

// peekPending returns the slot contents without copying or clearing them.
func (s *Session) peekPending() *model.PendingOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// clearPending empties the slot and sets st.
func (s *Session) clearPending(st State) {
	s.mu.Lock()
	s.pending = nil
	s.state = st
	s.mu.Unlock()
}

func clonePending(p *model.PendingOrder) *model.PendingOrder {
	if p == nil {
		return nil
	}
	c := &model.PendingOrder{
		Structure: p.Structure.Clone(),
		Entities:  p.Entities,
		Resolved:  p.Resolved.Clone(),
		CreatedAt: p.CreatedAt,
	}
	return c
}
