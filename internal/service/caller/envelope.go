// Package caller decodes and encodes the telephony media-stream envelope
// exchanged on the caller leg, plus the small notifications sent to UI clients.
package caller

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrUnknownEvent is returned for envelopes with an unrecognized event.
	ErrUnknownEvent = errors.New("unknown caller event")
	// ErrMalformed is returned for envelopes that cannot be decoded.
	ErrMalformed = errors.New("malformed caller envelope")
)

// Event is one decoded inbound envelope: Connected, Start, Media, Stop, Mark or DTMF.
type Event interface {
	isCallerEvent()
}

// Connected is sent by some providers before start.
type Connected struct{}

// Start opens the media stream and carries its identifiers.
type Start struct {
	StreamSID        string
	CallSID          string
	AccountSID       string
	From             string
	To               string
	SampleRate       int // 0 when the provider did not declare one
	CustomParameters map[string]string
}

// Media carries one chunk of caller PCM, already base64-decoded.
type Media struct {
	StreamSID string
	Sequence  int
	Chunk     int
	Payload   []byte
}

// Stop ends the media stream.
type Stop struct {
	StreamSID string
	CallSID   string
	Reason    string
}

// Mark acknowledges a mark previously sent on the stream.
type Mark struct {
	StreamSID string
	Name      string
}

// DTMF is a keypress on the caller's handset.
type DTMF struct {
	StreamSID string
	Digit     string
}

func (Connected) isCallerEvent() {}
func (Start) isCallerEvent()     {}
func (Media) isCallerEvent()     {}
func (Stop) isCallerEvent()      {}
func (Mark) isCallerEvent()      {}
func (DTMF) isCallerEvent()      {}

// flexInt accepts both 12 and "12".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type wireEnvelope struct {
	Event          string  `json:"event"`
	SequenceNumber flexInt `json:"sequence_number"`
	StreamSID      string  `json:"stream_sid"`
	Start          *struct {
		StreamSID        string            `json:"stream_sid"`
		CallSID          string            `json:"call_sid"`
		AccountSID       string            `json:"account_sid"`
		From             string            `json:"from"`
		To               string            `json:"to"`
		CustomParameters map[string]string `json:"custom_parameters"`
		MediaFormat      struct {
			Encoding   string  `json:"encoding"`
			SampleRate flexInt `json:"sample_rate"`
		} `json:"media_format"`
	} `json:"start"`
	Media *struct {
		Chunk   flexInt `json:"chunk"`
		Payload string  `json:"payload"`
	} `json:"media"`
	Stop *struct {
		CallSID string `json:"call_sid"`
		Reason  string `json:"reason"`
	} `json:"stop"`
	Mark *struct {
		Name string `json:"name"`
	} `json:"mark"`
	DTMF *struct {
		Digit string `json:"digit"`
	} `json:"dtmf"`
}

// Decode parses one inbound envelope.
func Decode(data []byte) (Event, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch w.Event {
	case "connected":
		return Connected{}, nil

	case "start":
		s := Start{StreamSID: w.StreamSID}
		if w.Start != nil {
			if s.StreamSID == "" {
				s.StreamSID = w.Start.StreamSID
			}
			s.CallSID = w.Start.CallSID
			s.AccountSID = w.Start.AccountSID
			s.From = w.Start.From
			s.To = w.Start.To
			s.SampleRate = int(w.Start.MediaFormat.SampleRate)
			s.CustomParameters = w.Start.CustomParameters
		}
		if s.StreamSID == "" {
			return nil, fmt.Errorf("%w: start without stream_sid", ErrMalformed)
		}
		return s, nil

	case "media":
		if w.Media == nil || w.Media.Payload == "" {
			return nil, fmt.Errorf("%w: media without payload", ErrMalformed)
		}
		pcm, err := base64.StdEncoding.DecodeString(w.Media.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: media payload: %v", ErrMalformed, err)
		}
		return Media{
			StreamSID: w.StreamSID,
			Sequence:  int(w.SequenceNumber),
			Chunk:     int(w.Media.Chunk),
			Payload:   pcm,
		}, nil

	case "stop":
		s := Stop{StreamSID: w.StreamSID}
		if w.Stop != nil {
			s.CallSID = w.Stop.CallSID
			s.Reason = w.Stop.Reason
		}
		return s, nil

	case "mark":
		m := Mark{StreamSID: w.StreamSID}
		if w.Mark != nil {
			m.Name = w.Mark.Name
		}
		return m, nil

	case "dtmf":
		d := DTMF{StreamSID: w.StreamSID}
		if w.DTMF != nil {
			d.Digit = w.DTMF.Digit
		}
		return d, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, w.Event)
}
