package caller

import (
	"encoding/base64"
	"encoding/json"
)

// CallEndedMark is the mark name sent on the stream when the session ends.
const CallEndedMark = "call_ended"

type outMedia struct {
	Event          string       `json:"event"`
	SequenceNumber int          `json:"sequence_number"`
	StreamSID      string       `json:"stream_sid"`
	Media          outMediaBody `json:"media"`
}

type outMediaBody struct {
	Payload string `json:"payload"`
}

type outMark struct {
	Event          string      `json:"event"`
	SequenceNumber int         `json:"sequence_number"`
	StreamSID      string      `json:"stream_sid"`
	Mark           outMarkBody `json:"mark"`
}

type outMarkBody struct {
	Name string `json:"name"`
}

type outClear struct {
	Event     string `json:"event"`
	StreamSID string `json:"stream_sid"`
}

// Stream builds outbound envelopes for one media stream. Sequence numbers
// start at 1 and increase by one per media or mark envelope.
// Not safe for concurrent use.
type Stream struct {
	sid string
	seq int
}

// NewStream creates a Stream for sid.
func NewStream(sid string) *Stream {
	return &Stream{sid: sid}
}

// SID returns the stream identifier.
func (s *Stream) SID() string {
	return s.sid
}

// Sequence returns the last sequence number used, 0 before the first envelope.
func (s *Stream) Sequence() int {
	return s.seq
}

// Media encodes one outbound audio frame.
func (s *Stream) Media(frame []byte) ([]byte, error) {
	s.seq++
	return json.Marshal(outMedia{
		Event:          "media",
		SequenceNumber: s.seq,
		StreamSID:      s.sid,
		Media:          outMediaBody{Payload: base64.StdEncoding.EncodeToString(frame)},
	})
}

// Mark encodes a named mark.
func (s *Stream) Mark(name string) ([]byte, error) {
	s.seq++
	return json.Marshal(outMark{
		Event:          "mark",
		SequenceNumber: s.seq,
		StreamSID:      s.sid,
		Mark:           outMarkBody{Name: name},
	})
}

// Clear asks the provider to drop audio it has buffered for playback.
func (s *Stream) Clear() ([]byte, error) {
	return json.Marshal(outClear{Event: "clear", StreamSID: s.sid})
}

type uiNotice struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// AgentReady is sent to UI clients once the agent leg is open.
func AgentReady() []byte {
	b, _ := json.Marshal(uiNotice{Type: "agent_ready"})
	return b
}

// CallEnded is the terminal notification for UI clients.
func CallEnded(reason string) []byte {
	b, _ := json.Marshal(uiNotice{Type: "call_ended", Reason: reason})
	return b
}
