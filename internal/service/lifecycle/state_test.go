package lifecycle

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle("sess-1")

	if lc.State() != StateConnecting {
		t.Errorf("expected StateConnecting, got %v", lc.State())
	}
	if lc.SessionID() != "sess-1" {
		t.Errorf("expected sess-1, got %v", lc.SessionID())
	}
	if lc.IsActive() || lc.IsDone() {
		t.Error("expected neither active nor done")
	}
}

func TestLifecycle_Activate(t *testing.T) {
	lc := NewLifecycle("sess-1")

	if err := lc.Activate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lc.IsActive() {
		t.Error("expected active")
	}
	if err := lc.Activate(); err != ErrAlreadyActive {
		t.Errorf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestLifecycle_ActivateFailsAfterFinalize(t *testing.T) {
	lc := NewLifecycle("sess-1")
	lc.BeginFinalize("caller-close")

	if err := lc.Activate(); err != ErrFinalizing {
		t.Errorf("expected ErrFinalizing, got %v", err)
	}
}

func TestLifecycle_BeginFinalize_OnlyOnce(t *testing.T) {
	lc := NewLifecycle("sess-1")
	lc.Activate()

	if !lc.BeginFinalize("agent-ended") {
		t.Fatal("first BeginFinalize should win")
	}
	if lc.BeginFinalize("caller-close") {
		t.Error("second BeginFinalize should be a no-op")
	}
	if lc.Reason() != "agent-ended" {
		t.Errorf("expected first reason to stick, got %s", lc.Reason())
	}
	if lc.State() != StateFinalizing {
		t.Errorf("expected StateFinalizing, got %v", lc.State())
	}
}

func TestLifecycle_BeginFinalize_Concurrent(t *testing.T) {
	lc := NewLifecycle("sess-1")
	lc.Activate()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lc.BeginFinalize("race") {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestLifecycle_Close_Idempotent(t *testing.T) {
	lc := NewLifecycle("sess-1")
	lc.BeginFinalize("idle-timeout")

	lc.Close()
	lc.Close()

	if lc.State() != StateClosed {
		t.Errorf("expected StateClosed, got %v", lc.State())
	}
	if !lc.State().IsTerminal() {
		t.Error("expected terminal state")
	}
	if lc.BeginFinalize("late") {
		t.Error("expected BeginFinalize to fail after close")
	}
	if lc.Reason() != "idle-timeout" {
		t.Errorf("expected reason preserved, got %s", lc.Reason())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateConnecting, "CONNECTING"},
		{StateActive, "ACTIVE"},
		{StateFinalizing, "FINALIZING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("State(%d).String() = %v, want %v", tt.state, got, tt.expected)
		}
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		if !strings.HasPrefix(id, "sess-") {
			t.Fatalf("unexpected id format %s", id)
		}
		if seen[id] {
			t.Fatalf("duplicate session id %s", id)
		}
		seen[id] = true
	}
}
