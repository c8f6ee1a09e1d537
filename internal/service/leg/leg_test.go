package leg

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeConn is an in-memory Conn.
type fakeConn struct {
	mu       sync.Mutex
	in       chan []byte
	gone     chan struct{}
	writes   []Message
	controls []int
	closes   int
	pong     func(string) error
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:   make(chan []byte, 16),
		gone: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case d, ok := <-c.in:
		if !ok {
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
		return websocket.TextMessage, d, nil
	case <-c.gone:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteMessage(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.writes = append(c.writes, Message{Type: mt, Data: append([]byte(nil), data...)})
	return nil
}

func (c *fakeConn) WriteControl(mt int, _ []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, mt)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pong = h
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.closes == 1 {
		close(c.gone)
	}
	return nil
}

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	for i, w := range c.writes {
		out[i] = string(w.Data)
	}
	return out
}

func TestPending_FlushedInOrderAfterHandshake(t *testing.T) {
	l := NewPending("agent")

	for _, m := range []string{"a", "b", "c"} {
		if err := l.SendText([]byte(m)); err != nil {
			t.Fatalf("send before open: %v", err)
		}
	}
	if l.Pending() != 3 {
		t.Fatalf("expected 3 pending, got %d", l.Pending())
	}
	if l.IsOpen() {
		t.Fatal("leg should not be open yet")
	}

	conn := newFakeConn()
	if err := l.Open(conn, []byte("init")); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close(websocket.CloseNormalClosure, "")

	if err := l.SendText([]byte("d")); err != nil {
		t.Fatalf("send after open: %v", err)
	}

	got := conn.written()
	want := []string{"init", "a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %q, want %q", i, got[i], want[i])
		}
	}
	if l.Pending() != 0 {
		t.Error("pending queue should be empty after open")
	}
}

func TestSend_CopiesQueuedData(t *testing.T) {
	l := NewPending("agent")
	buf := []byte("xyz")
	_ = l.SendText(buf)
	buf[0] = 'q'

	conn := newFakeConn()
	if err := l.Open(conn, nil); err != nil {
		t.Fatal(err)
	}
	defer l.Close(websocket.CloseNormalClosure, "")

	if got := conn.written(); len(got) != 1 || got[0] != "xyz" {
		t.Errorf("queued data was aliased: %v", got)
	}
}

func TestOpen_AfterCloseClosesConn(t *testing.T) {
	l := NewPending("agent")
	l.Close(websocket.CloseNormalClosure, "done")

	conn := newFakeConn()
	if err := l.Open(conn, []byte("init")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if conn.closes != 1 {
		t.Errorf("expected conn closed once, got %d", conn.closes)
	}
	if len(conn.written()) != 0 {
		t.Error("nothing should be written to a late connection")
	}
}

func TestOpen_HandshakeFailure(t *testing.T) {
	l := NewPending("agent")
	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")

	if err := l.Open(conn, []byte("init")); err == nil {
		t.Fatal("expected handshake error")
	}
	if l.IsOpen() {
		t.Error("leg must not be open after a failed handshake")
	}
	l.Close(websocket.CloseInternalServerErr, "")
	if conn.closes != 1 {
		t.Errorf("expected conn closed on leg close, got %d", conn.closes)
	}
}

func TestClose_OnlyOnce(t *testing.T) {
	conn := newFakeConn()
	l := New("caller", conn)

	var wg sync.WaitGroup
	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.Close(websocket.CloseNormalClosure, "bye")
		}()
	}
	wg.Wait()
	close(results)

	firsts := 0
	for r := range results {
		if r {
			firsts++
		}
	}
	if firsts != 1 {
		t.Errorf("expected exactly one effective close, got %d", firsts)
	}
	if conn.closes != 1 {
		t.Errorf("expected conn.Close once, got %d", conn.closes)
	}
	if err := l.SendText([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}

	select {
	case <-l.Done():
	default:
		t.Error("Done should be closed")
	}
}

func TestReceive_DeliversThenReportsError(t *testing.T) {
	conn := newFakeConn()
	l := New("caller", conn)
	defer l.Close(websocket.CloseNormalClosure, "")

	conn.in <- []byte(`{"event":"start"}`)
	close(conn.in)

	msg, ok := <-l.Receive()
	if !ok || string(msg.Data) != `{"event":"start"}` || !msg.IsText() {
		t.Fatalf("unexpected first message %+v ok=%v", msg, ok)
	}

	select {
	case _, ok := <-l.Receive():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("receive channel not closed")
	}
	if !IsNormalClosure(l.Err()) {
		t.Errorf("expected normal closure, got %v", l.Err())
	}
}

func TestPing_AliveTracksPong(t *testing.T) {
	conn := newFakeConn()
	l := New("caller", conn)
	defer l.Close(websocket.CloseNormalClosure, "")

	if !l.Alive() {
		t.Fatal("fresh leg should be alive")
	}
	if err := l.Ping(); err != nil {
		t.Fatal(err)
	}
	if l.Alive() {
		t.Fatal("leg should await a pong after ping")
	}

	conn.mu.Lock()
	pong := conn.pong
	conn.mu.Unlock()
	_ = pong("")

	if !l.Alive() {
		t.Error("pong should mark the leg alive")
	}
}

func TestPing_NoopBeforeOpen(t *testing.T) {
	l := NewPending("agent")
	if err := l.Ping(); err != nil {
		t.Fatal(err)
	}
	if !l.Alive() {
		t.Error("ping before open must not arm the liveness check")
	}
}

func TestIsNormalClosure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, true},
		{&websocket.CloseError{Code: websocket.CloseNormalClosure}, true},
		{&websocket.CloseError{Code: websocket.CloseGoingAway}, true},
		{&websocket.CloseError{Code: websocket.CloseAbnormalClosure}, false},
		{errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		if got := IsNormalClosure(tt.err); got != tt.want {
			t.Errorf("IsNormalClosure(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
