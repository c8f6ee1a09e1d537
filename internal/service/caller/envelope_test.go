package caller

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xff, 0x7f}
	payload := base64.StdEncoding.EncodeToString(pcm)

	t.Run("start with nested stream sid", func(t *testing.T) {
		ev, err := Decode([]byte(`{"event":"start","sequence_number":1,"start":{"stream_sid":"st-1","call_sid":"ca-9",
			"custom_parameters":{"customer_name":"Aman"},"media_format":{"encoding":"raw/slin","sample_rate":"8000"}}}`))
		if err != nil {
			t.Fatal(err)
		}
		s, ok := ev.(Start)
		if !ok {
			t.Fatalf("expected Start, got %T", ev)
		}
		if s.StreamSID != "st-1" || s.CallSID != "ca-9" || s.SampleRate != 8000 {
			t.Errorf("unexpected start %+v", s)
		}
		if s.CustomParameters["customer_name"] != "Aman" {
			t.Errorf("custom parameters lost: %v", s.CustomParameters)
		}
	})

	t.Run("start prefers top level stream sid", func(t *testing.T) {
		ev, err := Decode([]byte(`{"event":"start","stream_sid":"top","start":{"stream_sid":"nested"}}`))
		if err != nil {
			t.Fatal(err)
		}
		if ev.(Start).StreamSID != "top" {
			t.Errorf("expected top, got %s", ev.(Start).StreamSID)
		}
	})

	t.Run("media", func(t *testing.T) {
		ev, err := Decode([]byte(`{"event":"media","sequence_number":"7","stream_sid":"st-1","media":{"chunk":3,"payload":"` + payload + `"}}`))
		if err != nil {
			t.Fatal(err)
		}
		m := ev.(Media)
		if m.Sequence != 7 || m.Chunk != 3 || string(m.Payload) != string(pcm) {
			t.Errorf("unexpected media %+v", m)
		}
	})

	t.Run("stop", func(t *testing.T) {
		ev, err := Decode([]byte(`{"event":"stop","stream_sid":"st-1","stop":{"call_sid":"ca-9","reason":"callended"}}`))
		if err != nil {
			t.Fatal(err)
		}
		if s := ev.(Stop); s.CallSID != "ca-9" || s.Reason != "callended" {
			t.Errorf("unexpected stop %+v", s)
		}
	})

	t.Run("mark and dtmf", func(t *testing.T) {
		ev, _ := Decode([]byte(`{"event":"mark","stream_sid":"st-1","mark":{"name":"greeting"}}`))
		if ev.(Mark).Name != "greeting" {
			t.Errorf("unexpected mark %+v", ev)
		}
		ev, _ = Decode([]byte(`{"event":"dtmf","stream_sid":"st-1","dtmf":{"digit":"5"}}`))
		if ev.(DTMF).Digit != "5" {
			t.Errorf("unexpected dtmf %+v", ev)
		}
	})

	errCases := []struct {
		name string
		in   string
		want error
	}{
		{"not json", `{"event":`, ErrMalformed},
		{"start without sid", `{"event":"start","start":{}}`, ErrMalformed},
		{"media without payload", `{"event":"media","media":{}}`, ErrMalformed},
		{"media bad base64", `{"event":"media","media":{"payload":"***"}}`, ErrMalformed},
		{"bad sequence", `{"event":"media","sequence_number":"x","media":{"payload":"AAA="}}`, ErrMalformed},
		{"unknown", `{"event":"hangup"}`, ErrUnknownEvent},
		{"missing event", `{"foo":1}`, ErrUnknownEvent},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestStream_SequenceStartsAtOne(t *testing.T) {
	s := NewStream("st-1")
	if s.Sequence() != 0 {
		t.Fatalf("expected 0 before first envelope, got %d", s.Sequence())
	}

	for want := 1; want <= 3; want++ {
		raw, err := s.Media(make([]byte, 320))
		if err != nil {
			t.Fatal(err)
		}
		var env struct {
			Event          string `json:"event"`
			SequenceNumber int    `json:"sequence_number"`
			StreamSID      string `json:"stream_sid"`
			Media          struct {
				Payload string `json:"payload"`
			} `json:"media"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatal(err)
		}
		if env.Event != "media" || env.SequenceNumber != want || env.StreamSID != "st-1" {
			t.Errorf("unexpected envelope %+v", env)
		}
		if decoded, _ := base64.StdEncoding.DecodeString(env.Media.Payload); len(decoded) != 320 {
			t.Errorf("payload length %d, want 320", len(decoded))
		}
	}

	raw, _ := s.Mark(CallEndedMark)
	var mark struct {
		SequenceNumber int `json:"sequence_number"`
		Mark           struct {
			Name string `json:"name"`
		} `json:"mark"`
	}
	_ = json.Unmarshal(raw, &mark)
	if mark.SequenceNumber != 4 || mark.Mark.Name != "call_ended" {
		t.Errorf("unexpected mark %s", raw)
	}

	raw, _ = s.Clear()
	if string(raw) != `{"event":"clear","stream_sid":"st-1"}` {
		t.Errorf("unexpected clear %s", raw)
	}
	if s.Sequence() != 4 {
		t.Errorf("clear must not consume a sequence number, got %d", s.Sequence())
	}
}

func TestUINotices(t *testing.T) {
	if got := string(AgentReady()); got != `{"type":"agent_ready"}` {
		t.Errorf("AgentReady = %s", got)
	}
	if got := string(CallEnded("agent-ended")); got != `{"type":"call_ended","reason":"agent-ended"}` {
		t.Errorf("CallEnded = %s", got)
	}
}
