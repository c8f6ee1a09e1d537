// Package mock provides an in-process conversational agent for running the
// bridge without agent credentials. It answers the initiation handshake,
// plays a scripted dialogue driven by the amount of caller audio received
// and then ends the conversation.
package mock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ai-voice-bridge-service/internal/service/leg"
)

// Turn is one scripted exchange: what the caller is "heard" saying and the
// agent's reply.
type Turn struct {
	User  string
	Agent string
}

// DefaultScript is a short payment-reminder dialogue.
var DefaultScript = []Turn{
	{
		User:  "हाँ जी बोलिए",
		Agent: "आप कब तक भुगतान करेंगे?",
	},
	{
		User:  "पंद्रह दिसंबर को कर दूंगा",
		Agent: "ठीक है, पंद्रह दिसंबर नोट कर लिया है।",
	},
}

// ClosingLine ends every scripted dialogue.
const ClosingLine = "आपके समय के लिए धन्यवाद, हमारा सपोर्ट स्पेशलिस्ट आपसे संपर्क करेगा। नमस्ते।"

const (
	defaultChunksPerTurn = 50
	outboxSize           = 256
	speechMillis         = 400
)

// Dialer hands out scripted connections.
type Dialer struct {
	Script        []Turn
	ChunksPerTurn int
}

// NewDialer creates a Dialer with the default script.
func NewDialer() *Dialer {
	return &Dialer{Script: DefaultScript, ChunksPerTurn: defaultChunksPerTurn}
}

// Dial returns a new scripted connection.
func (d *Dialer) Dial(ctx context.Context) (leg.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewConn(d.Script, d.ChunksPerTurn), nil
}

// Conn implements leg.Conn in memory.
type Conn struct {
	mu            sync.Mutex
	script        []Turn
	chunksPerTurn int
	chunks        int
	step          int
	started       bool
	finished      bool
	eventID       int

	outbox    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn creates a scripted connection. chunksPerTurn caller audio chunks
// advance the script by one turn.
func NewConn(script []Turn, chunksPerTurn int) *Conn {
	if chunksPerTurn <= 0 {
		chunksPerTurn = defaultChunksPerTurn
	}
	return &Conn{
		script:        script,
		chunksPerTurn: chunksPerTurn,
		outbox:        make(chan []byte, outboxSize),
		closed:        make(chan struct{}),
	}
}

func (c *Conn) ReadMessage() (int, []byte, error) {
	select {
	case m := <-c.outbox:
		return websocket.TextMessage, m, nil
	case <-c.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (c *Conn) WriteMessage(_ int, data []byte) error {
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	default:
	}

	var msg struct {
		Type      string            `json:"type"`
		Chunk     string            `json:"user_audio_chunk"`
		Variables map[string]string `json:"dynamic_variables"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case msg.Type == "conversation_initiation_client_data":
		if c.started {
			return nil
		}
		c.started = true
		c.emit(map[string]any{
			"type": "conversation_initiation_metadata",
			"conversation_initiation_metadata_event": map[string]any{
				"conversation_id":           "mock-" + uuid.NewString(),
				"agent_output_audio_format": "pcm_16000",
				"user_input_audio_format":   "pcm_16000",
			},
		})
		c.say(greeting(msg.Variables))

	case msg.Chunk != "":
		if !c.started || c.finished {
			return nil
		}
		c.chunks++
		if c.chunks%c.chunksPerTurn != 0 {
			return nil
		}
		c.advance()
	}
	return nil
}

func (c *Conn) advance() {
	if c.step < len(c.script) {
		turn := c.script[c.step]
		c.step++
		c.emit(map[string]any{
			"type":                     "user_transcript",
			"user_transcription_event": map[string]any{"user_transcript": turn.User},
		})
		c.say(turn.Agent)
		return
	}
	c.finished = true
	c.say(ClosingLine)
	c.emit(map[string]any{"type": "conversation_finished"})
}

func (c *Conn) say(text string) {
	c.emit(map[string]any{
		"type":                 "agent_response",
		"agent_response_event": map[string]any{"agent_response": text},
	})
	c.eventID++
	c.emit(map[string]any{
		"type": "audio",
		"audio_event": map[string]any{
			"audio_base_64": base64.StdEncoding.EncodeToString(tone(speechMillis)),
			"event_id":      c.eventID,
		},
	})
}

// emit drops the message when the reader has fallen a full outbox behind.
func (c *Conn) emit(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.outbox <- b:
	case <-c.closed:
	default:
	}
}

func (c *Conn) WriteControl(int, []byte, time.Time) error { return nil }

func (c *Conn) SetWriteDeadline(time.Time) error { return nil }

func (c *Conn) SetPongHandler(func(string) error) {}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Finished reports whether the script has run to its end.
func (c *Conn) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

func greeting(vars map[string]string) string {
	name := vars["customer_name"]
	if name == "" {
		name = "Customer"
	}
	agentName := vars["agent_name"]
	if agentName == "" {
		agentName = "Ritu"
	}
	msg := fmt.Sprintf("नमस्ते %s जी, मैं %s बोल रही हूँ।", name, agentName)
	if amt := vars["due_amount"]; amt != "" {
		msg += fmt.Sprintf(" आपका %s रुपये का भुगतान बाकी है।", amt)
	}
	return msg
}

// tone renders a quiet 440Hz sine as 16kHz PCM16.
func tone(ms int) []byte {
	const rate = 16000
	n := rate * ms / 1000
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := int16(2000 * math.Sin(2*math.Pi*440*float64(i)/rate))
		out[2*i] = byte(s)
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}
