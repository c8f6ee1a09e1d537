package audio

import (
	"sync"
	"time"
)

// FrameSize returns the byte length of one PCM16 mono frame of duration d at
// sampleRate, rounded up to a multiple of alignment.
func FrameSize(sampleRate int, d time.Duration, alignment int) int {
	n := int(int64(sampleRate) * 2 * int64(d) / int64(time.Second))
	if alignment <= 0 {
		return n
	}
	if rem := n % alignment; rem != 0 || n == 0 {
		n += alignment - rem
	}
	return n
}

// Pacer slices outbound audio into fixed-size frames and queues them for
// one-per-tick emission. The queue is bounded; on overflow the oldest frame
// is discarded so the producer never blocks.
type Pacer struct {
	mu        sync.Mutex
	frameSize int
	maxFrames int
	buf       []byte
	queue     [][]byte
	dropped   int
}

// NewPacer creates a pacer producing frames of frameSize bytes and holding at
// most maxFrames of them. Sizes below one are raised to one.
func NewPacer(frameSize, maxFrames int) *Pacer {
	if frameSize < 1 {
		frameSize = 1
	}
	if maxFrames < 1 {
		maxFrames = 1
	}
	return &Pacer{
		frameSize: frameSize,
		maxFrames: maxFrames,
	}
}

// FrameSize returns the configured frame length in bytes.
func (p *Pacer) FrameSize() int {
	return p.frameSize
}

// Push appends data and enqueues every complete frame. It returns the number
// of frames discarded by the overflow policy during this call.
func (p *Pacer) Push(data []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, data...)
	dropped := 0
	for len(p.buf) >= p.frameSize {
		frame := make([]byte, p.frameSize)
		copy(frame, p.buf[:p.frameSize])
		p.buf = p.buf[p.frameSize:]

		if len(p.queue) >= p.maxFrames {
			p.queue[0] = nil
			p.queue = p.queue[1:]
			dropped++
		}
		p.queue = append(p.queue, frame)
	}
	if len(p.buf) == 0 {
		p.buf = nil
	}
	p.dropped += dropped
	return dropped
}

// Next dequeues the oldest frame, if any.
func (p *Pacer) Next() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil, false
	}
	frame := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return frame, true
}

// Clear discards queued frames and any partial remainder.
func (p *Pacer) Clear() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.queue)
	p.queue = nil
	p.buf = nil
	return n
}

// Len returns the number of queued frames.
func (p *Pacer) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Buffered returns the number of bytes waiting for a complete frame.
func (p *Pacer) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// Dropped returns the total number of frames discarded on overflow.
func (p *Pacer) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}
