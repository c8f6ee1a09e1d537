// Package lifecycle provides the session state machine and session ids.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the lifecycle state of a bridged session.
type State int

const (
	// StateConnecting - caller accepted, agent leg not yet open.
	StateConnecting State = iota
	// StateActive - both legs open, media flowing.
	StateActive
	// StateFinalizing - teardown in progress.
	StateFinalizing
	// StateClosed - terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateFinalizing:
		return "FINALIZING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for CLOSED.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// Errors for invalid state transitions.
var (
	ErrAlreadyActive = errors.New("session already active")
	ErrFinalizing    = errors.New("session is finalizing or closed")
)

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	CONNECTING → ACTIVE → FINALIZING → CLOSED
//	     │                    ▲
//	     └────────────────────┘  (agent never opened)
//
// BeginFinalize is the one-shot gate: exactly one caller wins the
// transition into FINALIZING, every later call reports false.
type Lifecycle struct {
	mu          sync.RWMutex
	sessionID   string
	state       State
	reason      string
	activatedAt time.Time
	finalizedAt time.Time
}

// NewLifecycle creates a new session lifecycle in CONNECTING state.
func NewLifecycle(sessionID string) *Lifecycle {
	return &Lifecycle{
		sessionID: sessionID,
		state:     StateConnecting,
	}
}

// SessionID returns the session id.
func (l *Lifecycle) SessionID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sessionID
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Reason returns the finalize reason, empty until BeginFinalize succeeds.
func (l *Lifecycle) Reason() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reason
}

// IsActive returns true while media may flow.
func (l *Lifecycle) IsActive() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateActive
}

// IsDone returns true once finalize has started.
func (l *Lifecycle) IsDone() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state >= StateFinalizing
}

// Activate transitions CONNECTING to ACTIVE.
func (l *Lifecycle) Activate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateConnecting:
		l.state = StateActive
		l.activatedAt = time.Now()
		return nil
	case StateActive:
		return ErrAlreadyActive
	case StateFinalizing, StateClosed:
		return ErrFinalizing
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// BeginFinalize moves the session into FINALIZING and records reason.
// Returns true only for the first caller.
func (l *Lifecycle) BeginFinalize(reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state >= StateFinalizing {
		return false
	}
	l.state = StateFinalizing
	l.reason = reason
	l.finalizedAt = time.Now()
	return true
}

// Close transitions the session to CLOSED. Idempotent.
func (l *Lifecycle) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.reason == "" {
		l.reason = "closed"
	}
	l.state = StateClosed
}

// ActiveDuration returns how long media flowed before finalize started.
func (l *Lifecycle) ActiveDuration() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.activatedAt.IsZero() {
		return 0
	}
	if l.finalizedAt.IsZero() {
		return time.Since(l.activatedAt)
	}
	return l.finalizedAt.Sub(l.activatedAt)
}
