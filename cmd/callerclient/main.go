// Command callerclient simulates a telephony media stream against the
// bridge: it streams a WAV file (or silence) as Exotel media envelopes and
// reports what the bridge plays back.
package main

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

const chunkIntervalMs = 100

type inbound struct {
	Event          string `json:"event"`
	SequenceNumber int    `json:"sequence_number"`
	Media          struct {
		Payload string `json:"payload"`
	} `json:"media"`
	Mark struct {
		Name string `json:"name"`
	} `json:"mark"`
}

func main() {
	audioFile := flag.String("audio", "", "Path to WAV file (PCM16 mono); silence when empty")
	server := flag.String("server", "ws://localhost:8080/ws/exotel", "Bridge telephony websocket URL")
	rate := flag.Int("rate", 8000, "Caller sample rate")
	customer := flag.String("customer", "Customer", "Customer name")
	amount := flag.String("amount", "5000", "Due amount")
	wait := flag.Duration("wait", 60*time.Second, "How long to stay on the call after the audio ends")
	flag.Parse()

	pcm, err := loadAudio(*audioFile, *rate)
	if err != nil {
		log.Fatalf("Failed to load audio: %v", err)
	}

	u, err := url.Parse(*server)
	if err != nil {
		log.Fatalf("Invalid server URL: %v", err)
	}
	q := u.Query()
	q.Set("sample-rate", fmt.Sprint(*rate))
	q.Set("customer_name", *customer)
	q.Set("amount", *amount)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()
	log.Printf("Connected to %s", u.Redacted())

	streamSID := "sim-" + uuid.NewString()[:8]
	callSID := "sim-call-" + uuid.NewString()[:8]

	var ended atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		readPlayback(conn, &ended)
	}()

	send := func(v any) {
		b, _ := json.Marshal(v)
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil && !ended.Load() {
			log.Printf("Write failed: %v", err)
		}
	}

	send(map[string]any{"event": "connected"})
	send(map[string]any{
		"event":           "start",
		"sequence_number": 1,
		"stream_sid":      streamSID,
		"start": map[string]any{
			"stream_sid":   streamSID,
			"call_sid":     callSID,
			"media_format": map[string]any{"encoding": "raw/slin", "sample_rate": fmt.Sprint(*rate)},
		},
	})

	chunkSize := *rate * 2 * chunkIntervalMs / 1000
	silence := make([]byte, chunkSize)
	deadline := time.Now().Add(*wait)
	chunkNum := 0
	startTime := time.Now()

	for !ended.Load() {
		var chunk []byte
		switch {
		case len(pcm) > 0:
			n := min(chunkSize, len(pcm))
			chunk, pcm = pcm[:n], pcm[n:]
			if len(pcm) == 0 {
				deadline = time.Now().Add(*wait)
			}
		case time.Now().Before(deadline):
			chunk = silence
		}
		if chunk == nil {
			break
		}

		chunkNum++
		send(map[string]any{
			"event":           "media",
			"sequence_number": chunkNum + 1,
			"stream_sid":      streamSID,
			"media": map[string]any{
				"chunk":   chunkNum,
				"payload": base64.StdEncoding.EncodeToString(chunk),
			},
		})
		if chunkNum%50 == 0 {
			log.Printf("Sent chunk %d (%v elapsed)", chunkNum, time.Since(startTime).Round(time.Second))
		}

		// Simulate real-time streaming
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	if !ended.Load() {
		log.Println("Audio finished, sending stop")
		send(map[string]any{"event": "stop", "stream_sid": streamSID, "stop": map[string]any{"call_sid": callSID, "reason": "callended"}})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("Bridge did not close the stream")
	}
}

func readPlayback(conn *websocket.Conn, ended *atomic.Bool) {
	var frames, bytes int
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ended.Store(true)
			if ce, ok := err.(*websocket.CloseError); ok {
				log.Printf("Bridge closed the stream: code=%d reason=%q", ce.Code, ce.Text)
			} else {
				log.Printf("Read ended: %v", err)
			}
			log.Printf("Received %d media frames (%d bytes)", frames, bytes)
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Unparseable message: %s", data)
			continue
		}
		switch msg.Event {
		case "media":
			frames++
			if pcm, err := base64.StdEncoding.DecodeString(msg.Media.Payload); err == nil {
				bytes += len(pcm)
			}
		case "clear":
			log.Println("Bridge cleared playback (barge-in)")
		case "mark":
			log.Printf("Mark %q (seq %d)", msg.Mark.Name, msg.SequenceNumber)
		}
	}
}

// loadAudio reads the PCM payload of a WAV file. An empty path yields no
// audio so the client streams silence only.
func loadAudio(path string, rate int) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, fmt.Errorf("read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%s is not a WAV file", path)
	}

	audioFormat := binary.LittleEndian.Uint16(header[20:22])
	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	bitsPerSample := binary.LittleEndian.Uint16(header[34:36])
	log.Printf("WAV file: format=%d channels=%d sampleRate=%d bitsPerSample=%d",
		audioFormat, numChannels, sampleRate, bitsPerSample)

	if audioFormat != 1 || bitsPerSample != 16 || numChannels != 1 {
		return nil, fmt.Errorf("only PCM16 mono is supported")
	}
	if int(sampleRate) != rate {
		log.Printf("Warning: sample rate is %d Hz, streaming as %d Hz", sampleRate, rate)
	}
	return io.ReadAll(f)
}
