// Package leg wraps one duplex websocket connection of a bridged session.
//
// A Leg serializes writes, buffers outbound messages until it is opened,
// pumps inbound messages into a channel and tracks ping/pong liveness.
// Close is one-shot.
package leg

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by writes on a closed leg.
var ErrClosed = errors.New("leg closed")

const (
	writeWait     = 10 * time.Second
	closeWait     = time.Second
	inboundBuffer = 64
)

// Conn is the subset of *websocket.Conn a Leg needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Message is one inbound or buffered outbound websocket message.
type Message struct {
	Type int
	Data []byte
}

// IsText reports whether m is a text frame.
func (m Message) IsText() bool {
	return m.Type == websocket.TextMessage
}

// Leg is one side of a bridged session.
type Leg struct {
	name string

	mu      sync.Mutex
	conn    Conn
	open    bool
	closed  bool
	pending []Message
	err     error

	inbound      chan Message
	done         chan struct{}
	closeOnce    sync.Once
	awaitingPong atomic.Bool
}

func newLeg(name string) *Leg {
	return &Leg{
		name:    name,
		inbound: make(chan Message, inboundBuffer),
		done:    make(chan struct{}),
	}
}

// New wraps an already established connection. The leg is open and its
// receive loop is running.
func New(name string, conn Conn) *Leg {
	l := newLeg(name)
	l.conn = conn
	l.open = true
	l.start(conn)
	return l
}

// NewPending creates a leg with no connection yet. Messages sent before
// Open are queued in order.
func NewPending(name string) *Leg {
	return newLeg(name)
}

// Open attaches conn, writes handshake (if non-nil) followed by every queued
// message, then marks the leg open. If the leg was closed in the meantime the
// connection is closed and ErrClosed returned.
func (l *Leg) Open(conn Conn, handshake []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		_ = conn.Close()
		return ErrClosed
	}
	if l.open {
		return fmt.Errorf("%s leg already open", l.name)
	}
	l.conn = conn

	if handshake != nil {
		if err := l.write(websocket.TextMessage, handshake); err != nil {
			return fmt.Errorf("send handshake: %w", err)
		}
	}
	for _, m := range l.pending {
		if err := l.write(m.Type, m.Data); err != nil {
			return fmt.Errorf("flush pending: %w", err)
		}
	}
	l.pending = nil
	l.open = true
	l.start(conn)
	return nil
}

func (l *Leg) start(conn Conn) {
	conn.SetPongHandler(func(string) error {
		l.awaitingPong.Store(false)
		return nil
	})
	go l.readLoop(conn)
}

func (l *Leg) readLoop(conn Conn) {
	defer close(l.inbound)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			l.setErr(err)
			return
		}
		select {
		case l.inbound <- Message{Type: mt, Data: data}:
		case <-l.done:
			return
		}
	}
}

// Name returns the leg name used in logs and metrics.
func (l *Leg) Name() string {
	return l.name
}

// Receive returns the inbound message channel. It is closed when the
// connection fails or the leg is closed; Err then reports why.
func (l *Leg) Receive() <-chan Message {
	return l.inbound
}

// Done is closed once Close has run.
func (l *Leg) Done() <-chan struct{} {
	return l.done
}

// Err returns the error that ended the receive loop.
func (l *Leg) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Leg) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		l.err = err
	}
}

// IsOpen reports whether the leg is open and not closed.
func (l *Leg) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open && !l.closed
}

// Pending returns the number of queued outbound messages.
func (l *Leg) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Send writes one message, or queues it while the leg is not yet open.
func (l *Leg) Send(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if !l.open {
		buf := make([]byte, len(data))
		copy(buf, data)
		l.pending = append(l.pending, Message{Type: messageType, Data: buf})
		return nil
	}
	return l.write(messageType, data)
}

// SendText sends a text frame.
func (l *Leg) SendText(data []byte) error {
	return l.Send(websocket.TextMessage, data)
}

// SendJSON marshals v and sends it as a text frame.
func (l *Leg) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", l.name, err)
	}
	return l.Send(websocket.TextMessage, data)
}

func (l *Leg) write(messageType int, data []byte) error {
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return l.conn.WriteMessage(messageType, data)
}

// Ping sends a liveness probe. It is a no-op before the leg is open.
func (l *Leg) Ping() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if !l.open {
		return nil
	}
	l.awaitingPong.Store(true)
	return l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Alive reports whether the last probe was answered.
func (l *Leg) Alive() bool {
	return !l.awaitingPong.Load()
}

// Close sends a close frame with code and reason, closes the connection and
// drops anything still queued. Only the first call has an effect; it returns
// true for that call.
func (l *Leg) Close(code int, reason string) bool {
	first := false
	l.closeOnce.Do(func() {
		first = true

		l.mu.Lock()
		l.closed = true
		l.pending = nil
		conn := l.conn
		l.mu.Unlock()

		close(l.done)
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason), time.Now().Add(closeWait))
			_ = conn.Close()
		}
	})
	return first
}

// IsNormalClosure reports whether err is an orderly close by the peer.
func IsNormalClosure(err error) bool {
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
