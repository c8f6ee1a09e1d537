package models

import "time"

// PaymentIntent classifies the caller's answer to the payment question.
type PaymentIntent string

const (
	IntentUnset        PaymentIntent = "unset"
	IntentPayToday     PaymentIntent = "pay_today"
	IntentPayLater     PaymentIntent = "pay_later"
	IntentCannotPayNow PaymentIntent = "cannot_pay_now"
	IntentUnclear      PaymentIntent = "unclear"
)

// Valid reports whether i is a known intent.
func (i PaymentIntent) Valid() bool {
	switch i {
	case IntentUnset, IntentPayToday, IntentPayLater, IntentCannotPayNow, IntentUnclear:
		return true
	}
	return false
}

// CallStatus records why a session ended.
type CallStatus string

const (
	StatusCallerStop       CallStatus = "caller-stop"
	StatusCallerClose      CallStatus = "caller-close"
	StatusCallerError      CallStatus = "caller-error"
	StatusAgentEnded       CallStatus = "agent-ended"
	StatusAgentThankYou    CallStatus = "agent-thankyou"
	StatusAgentClose       CallStatus = "agent-close"
	StatusAgentError       CallStatus = "agent-error"
	StatusAgentUnavailable CallStatus = "agent-unavailable"
	StatusIdleTimeout      CallStatus = "idle-timeout"
	StatusLivenessFailure  CallStatus = "liveness-failure"
	StatusShutdown         CallStatus = "shutdown"

	// Statuses reported by UI clients posting their own conversations.
	StatusClientClose CallStatus = "client-close"
	StatusFailed      CallStatus = "failed"
	StatusDropped     CallStatus = "dropped"
)

var knownStatuses = map[CallStatus]bool{
	StatusCallerStop: true, StatusCallerClose: true, StatusCallerError: true,
	StatusAgentEnded: true, StatusAgentThankYou: true, StatusAgentClose: true,
	StatusAgentError: true, StatusAgentUnavailable: true, StatusIdleTimeout: true,
	StatusLivenessFailure: true, StatusShutdown: true,
	StatusClientClose: true, StatusFailed: true, StatusDropped: true,
}

// Valid reports whether s is a known status.
func (s CallStatus) Valid() bool {
	return knownStatuses[s]
}

// StatusFromClientReason maps an end reason reported by a UI client.
func StatusFromClientReason(reason string) CallStatus {
	switch reason {
	case "manual_disconnect", "client-close", "ws_close":
		return StatusClientClose
	case "ws_error":
		return StatusFailed
	default:
		return StatusDropped
	}
}

// DynamicVariables are the per-call values handed to the agent.
type DynamicVariables struct {
	AgentName    string `json:"agent_name" bson:"agentName"`
	CustomerName string `json:"customer_name" bson:"customerName"`
	DueAmount    string `json:"due_amount" bson:"dueAmount"`
	DueDate      string `json:"due_date" bson:"dueDate"`
}

// CallDetail is the provider-side record of a telephony call.
type CallDetail struct {
	CallSID   string `json:"callSid" bson:"callSid"`
	Status    string `json:"status" bson:"status"`
	Duration  string `json:"duration,omitempty" bson:"duration,omitempty"`
	StartTime string `json:"startTime,omitempty" bson:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty" bson:"endTime,omitempty"`
}

// SessionStats counts traffic on both legs of a session.
type SessionStats struct {
	CallerInChunks  int64 `json:"callerInChunks" bson:"callerInChunks"`
	CallerInBytes   int64 `json:"callerInBytes" bson:"callerInBytes"`
	CallerOutFrames int64 `json:"callerOutFrames" bson:"callerOutFrames"`
	CallerOutBytes  int64 `json:"callerOutBytes" bson:"callerOutBytes"`
	AgentInChunks   int64 `json:"agentInChunks" bson:"agentInChunks"`
	AgentInBytes    int64 `json:"agentInBytes" bson:"agentInBytes"`
	AgentOutChunks  int64 `json:"agentOutChunks" bson:"agentOutChunks"`
	AgentOutBytes   int64 `json:"agentOutBytes" bson:"agentOutBytes"`
	FramesDropped   int64 `json:"framesDropped" bson:"framesDropped"`
}

// Outcome is the immutable per-session result handed to persistence.
type Outcome struct {
	ID             string           `json:"id,omitempty" bson:"_id,omitempty"`
	SessionID      string           `json:"sessionId" bson:"sessionId"`
	Mode           string           `json:"mode" bson:"mode"`
	StreamSID      string           `json:"streamSid,omitempty" bson:"streamSid,omitempty"`
	CallSID        string           `json:"callSid,omitempty" bson:"callSid,omitempty"`
	ConversationID string           `json:"conversationId,omitempty" bson:"conversationId,omitempty"`
	Variables      DynamicVariables `json:"variables" bson:"variables"`

	PaymentQuestionAsked  bool          `json:"paymentQuestionAsked" bson:"paymentQuestionAsked"`
	PaymentAnswerCaptured bool          `json:"paymentAnswerCaptured" bson:"paymentAnswerCaptured"`
	PaymentIntent         PaymentIntent `json:"paymentIntent" bson:"paymentIntent"`
	PaymentRawResponse    *string       `json:"paymentRawResponse" bson:"paymentRawResponse"`

	AnswerText *string `json:"answerText" bson:"answerText"`
	DateISO    *string `json:"dateISO" bson:"dateISO"`
	TimeHHmm   *string `json:"timeHHmm" bson:"timeHHmm"`
	DateEN     *string `json:"dateEN" bson:"dateEN"`

	CallStatus CallStatus       `json:"callStatus" bson:"callStatus"`
	Transcript []TranscriptTurn `json:"transcript,omitempty" bson:"transcript,omitempty"`
	CallDetail *CallDetail      `json:"callDetail,omitempty" bson:"callDetail,omitempty"`
	Stats      *SessionStats    `json:"stats,omitempty" bson:"stats,omitempty"`

	StartedAt time.Time `json:"startedAt" bson:"startedAt"`
	EndedAt   time.Time `json:"endedAt" bson:"endedAt"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
