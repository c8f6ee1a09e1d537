// Package models defines the records exchanged between the bridge, the store and Kafka.
package models

import "time"

// Role identifies the speaker of a transcript turn.
type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

// TranscriptTurn is one labelled utterance of the conversation.
type TranscriptTurn struct {
	Role Role      `json:"role" bson:"role"`
	Text string    `json:"text" bson:"text"`
	Kind string    `json:"kind,omitempty" bson:"kind,omitempty"`
	At   time.Time `json:"at,omitempty" bson:"at,omitempty"`
}

// TranscriptEvent is published for every transcript turn as it arrives.
type TranscriptEvent struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	StreamSID string `json:"streamSid,omitempty"`
	Sequence  int    `json:"sequence"`
	Role      Role   `json:"role"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// OutcomeEvent is published once per finalized session.
type OutcomeEvent struct {
	EventType string  `json:"eventType"`
	RecordID  string  `json:"recordId,omitempty"`
	Timestamp int64   `json:"timestamp"`
	Outcome   Outcome `json:"outcome"`
}

const (
	EventTypeTranscript = "call.transcript"
	EventTypeOutcome    = "call.outcome"
)
