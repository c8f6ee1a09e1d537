// Package conversation tracks payment-collection progress over transcript events.
package conversation

import (
	"strings"
	"sync"

	"ai-voice-bridge-service/internal/models"
)

// Policy decides when the payment question counts as asked.
type Policy string

const (
	// PolicyFirstTurn assumes the question is the agent's opening turn and
	// marks it asked as soon as the agent leg handshake completes.
	PolicyFirstTurn Policy = "first-turn"
	// PolicyKeyword marks it asked when agent speech mentions payment.
	PolicyKeyword Policy = "keyword"
)

// State is the per-session conversation record read at finalize.
type State struct {
	PaymentQuestionAsked  bool
	PaymentAnswerCaptured bool
	PaymentIntent         models.PaymentIntent
	PaymentRawResponse    *string
	FinalClosed           bool
}

// Tracker is a forward-only state machine over transcript events.
// Once FinalClosed is set every further event is ignored.
type Tracker struct {
	mu     sync.Mutex
	policy Policy
	state  State
}

// NewTracker creates a tracker in its initial state.
func NewTracker(policy Policy) *Tracker {
	if policy != PolicyKeyword {
		policy = PolicyFirstTurn
	}
	return &Tracker{
		policy: policy,
		state:  State{PaymentIntent: models.IntentUnset},
	}
}

// AgentReady records that the agent handshake completed.
func (t *Tracker) AgentReady() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.FinalClosed {
		return
	}
	if t.policy == PolicyFirstTurn {
		t.state.PaymentQuestionAsked = true
	}
}

// OnAgentText processes an agent response or transcript. It returns true when
// the text is a closing phrase; the tracker is then final-closed.
func (t *Tracker) OnAgentText(text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.FinalClosed {
		return false
	}
	if IsClosingPhrase(text) {
		t.state.FinalClosed = true
		return true
	}
	if t.policy == PolicyKeyword && AsksAboutPayment(text) {
		t.state.PaymentQuestionAsked = true
	}
	return false
}

// OnUserText captures the first substantive answer after the question.
// Returns true if this text was captured.
func (t *Tracker) OnUserText(text string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.FinalClosed {
		return false
	}
	if !t.state.PaymentQuestionAsked || t.state.PaymentAnswerCaptured {
		return false
	}
	if IsFiller(text) {
		return false
	}

	raw := strings.TrimSpace(text)
	t.state.PaymentRawResponse = &raw
	t.state.PaymentAnswerCaptured = true
	t.state.PaymentIntent = ClassifyIntent(raw)
	return true
}

// Finish sets FinalClosed. Returns false if it was already set.
func (t *Tracker) Finish() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.FinalClosed {
		return false
	}
	t.state.FinalClosed = true
	return true
}

// Closed reports whether a terminal signal has been seen.
func (t *Tracker) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.FinalClosed
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state
	if s.PaymentRawResponse != nil {
		raw := *s.PaymentRawResponse
		s.PaymentRawResponse = &raw
	}
	return s
}
