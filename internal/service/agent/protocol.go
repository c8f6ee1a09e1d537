// Package agent speaks the conversational-AI service's websocket protocol:
// the initiation handshake, outbound audio chunks and the inbound event stream.
package agent

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"ai-voice-bridge-service/internal/models"
)

// ErrMalformed is returned for inbound messages that cannot be decoded.
var ErrMalformed = errors.New("malformed agent message")

// AudioFormat is the PCM format negotiated for both directions.
const AudioFormat = "pcm_16000"

// Inbound event types.
const (
	TypeAudio           = "audio"
	TypeAgentResponse   = "agent_response"
	TypeAgentTranscript = "agent_transcript"
	TypeUserTranscript  = "user_transcript"
	TypeFinished        = "conversation_finished"
	TypePing            = "ping"
	TypeMetadata        = "conversation_initiation_metadata"
	TypeInterruption    = "interruption"
)

// Event is one decoded inbound message: Audio, Transcript, Finished, Ping,
// Metadata, Interruption or Passthrough.
type Event interface {
	isAgentEvent()
}

// Audio is a chunk of agent speech at 16kHz.
type Audio struct {
	PCM     []byte
	EventID int
}

// Transcript is agent or user text. Kind is the wire type it came from.
type Transcript struct {
	Role models.Role
	Kind string
	Text string
}

// Finished is the explicit end of the conversation.
type Finished struct{}

// Ping must be answered with a pong carrying the same event id.
type Ping struct {
	EventID int
}

// Metadata is sent once after the handshake is accepted.
type Metadata struct {
	ConversationID    string
	AgentOutputFormat string
	UserInputFormat   string
}

// Interruption reports that the user barged in over agent speech.
type Interruption struct {
	EventID int
}

// Passthrough is any other typed message.
type Passthrough struct {
	Type string
}

func (Audio) isAgentEvent()        {}
func (Transcript) isAgentEvent()   {}
func (Finished) isAgentEvent()     {}
func (Ping) isAgentEvent()         {}
func (Metadata) isAgentEvent()     {}
func (Interruption) isAgentEvent() {}
func (Passthrough) isAgentEvent()  {}

type wireEvent struct {
	Type       string `json:"type"`
	AudioEvent *struct {
		Audio   string `json:"audio_base_64"`
		EventID int    `json:"event_id"`
	} `json:"audio_event"`
	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event"`
	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event"`
	Transcript string `json:"transcript"`
	PingEvent  *struct {
		EventID int `json:"event_id"`
		PingMS  int `json:"ping_ms"`
	} `json:"ping_event"`
	MetadataEvent *struct {
		ConversationID    string `json:"conversation_id"`
		AgentOutputFormat string `json:"agent_output_audio_format"`
		UserInputFormat   string `json:"user_input_audio_format"`
	} `json:"conversation_initiation_metadata_event"`
	InterruptionEvent *struct {
		EventID int `json:"event_id"`
	} `json:"interruption_event"`
}

// Decode parses one inbound message.
func Decode(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch w.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)

	case TypeAudio:
		if w.AudioEvent == nil || w.AudioEvent.Audio == "" {
			return nil, fmt.Errorf("%w: audio without payload", ErrMalformed)
		}
		pcm, err := base64.StdEncoding.DecodeString(w.AudioEvent.Audio)
		if err != nil {
			return nil, fmt.Errorf("%w: audio payload: %v", ErrMalformed, err)
		}
		return Audio{PCM: pcm, EventID: w.AudioEvent.EventID}, nil

	case TypeAgentResponse:
		text := w.Transcript
		if w.AgentResponseEvent != nil {
			text = w.AgentResponseEvent.AgentResponse
		}
		return Transcript{Role: models.RoleAgent, Kind: w.Type, Text: text}, nil

	case TypeAgentTranscript:
		return Transcript{Role: models.RoleAgent, Kind: w.Type, Text: w.Transcript}, nil

	case TypeUserTranscript:
		text := w.Transcript
		if w.UserTranscriptionEvent != nil && w.UserTranscriptionEvent.UserTranscript != "" {
			text = w.UserTranscriptionEvent.UserTranscript
		}
		return Transcript{Role: models.RoleUser, Kind: w.Type, Text: text}, nil

	case TypeFinished:
		return Finished{}, nil

	case TypePing:
		p := Ping{}
		if w.PingEvent != nil {
			p.EventID = w.PingEvent.EventID
		}
		return p, nil

	case TypeMetadata:
		m := Metadata{}
		if w.MetadataEvent != nil {
			m.ConversationID = w.MetadataEvent.ConversationID
			m.AgentOutputFormat = w.MetadataEvent.AgentOutputFormat
			m.UserInputFormat = w.MetadataEvent.UserInputFormat
		}
		return m, nil

	case TypeInterruption:
		i := Interruption{}
		if w.InterruptionEvent != nil {
			i.EventID = w.InterruptionEvent.EventID
		}
		return i, nil
	}

	return Passthrough{Type: w.Type}, nil
}

// InitOptions tunes the initiation handshake.
type InitOptions struct {
	ModelID string
	VoiceID string // empty keeps the agent's configured voice
}

type initiation struct {
	Type       string               `json:"type"`
	ClientData initiationClientData `json:"conversation_initiation_client_data"`
	Variables  map[string]string    `json:"dynamic_variables"`
}

type initiationClientData struct {
	Override configOverride `json:"conversation_config_override"`
}

type configOverride struct {
	Conversation conversationOverride `json:"conversation"`
	TTS          *ttsOverride         `json:"tts,omitempty"`
}

type conversationOverride struct {
	TextOnly          bool   `json:"text_only"`
	UserInputFormat   string `json:"user_input_audio_format"`
	AgentOutputFormat string `json:"agent_output_audio_format"`
	ModelID           string `json:"model_id,omitempty"`
}

type ttsOverride struct {
	VoiceID string `json:"voice_id"`
}

// Initiation builds the handshake sent once when the agent leg opens.
func Initiation(vars models.DynamicVariables, opts InitOptions) ([]byte, error) {
	msg := initiation{
		Type: "conversation_initiation_client_data",
		ClientData: initiationClientData{
			Override: configOverride{
				Conversation: conversationOverride{
					TextOnly:          false,
					UserInputFormat:   AudioFormat,
					AgentOutputFormat: AudioFormat,
					ModelID:           opts.ModelID,
				},
			},
		},
		Variables: map[string]string{
			"agent_name":    vars.AgentName,
			"customer_name": vars.CustomerName,
			"due_amount":    vars.DueAmount,
			"due_date":      vars.DueDate,
		},
	}
	if opts.VoiceID != "" {
		msg.ClientData.Override.TTS = &ttsOverride{VoiceID: opts.VoiceID}
	}
	return json.Marshal(msg)
}

// AudioChunk wraps 16kHz caller PCM for the agent.
func AudioChunk(pcm []byte) []byte {
	b, _ := json.Marshal(struct {
		Chunk string `json:"user_audio_chunk"`
	}{base64.StdEncoding.EncodeToString(pcm)})
	return b
}

// Pong answers a Ping.
func Pong(eventID int) []byte {
	b, _ := json.Marshal(struct {
		Type    string `json:"type"`
		EventID int    `json:"event_id"`
	}{"pong", eventID})
	return b
}
