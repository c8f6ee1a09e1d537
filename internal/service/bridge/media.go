package bridge

import (
	"context"
	"time"

	"ai-voice-bridge-service/internal/models"
	"ai-voice-bridge-service/internal/service/agent"
	"ai-voice-bridge-service/internal/service/audio"
	"ai-voice-bridge-service/internal/service/caller"
	"ai-voice-bridge-service/internal/service/leg"
)

func (s *Session) onCallerMessage(msg leg.Message) {
	s.stats.CallerInChunks++
	s.stats.CallerInBytes += int64(len(msg.Data))

	if s.cfg.Mode == ModeUI {
		s.onUIMessage(msg)
		return
	}

	ev, err := caller.Decode(msg.Data)
	if err != nil {
		s.deps.Metrics.RecordDecodeError("caller")
		s.logger.Debug().Err(err).Msg("Dropped caller message")
		return
	}

	switch e := ev.(type) {
	case caller.Connected:

	case caller.Start:
		s.onStart(e)

	case caller.Media:
		if s.skip > 0 {
			s.skip--
			return
		}
		s.deps.Metrics.RecordAudio("caller", "in", len(e.Payload))
		s.forwardCallerAudio(e.Payload)

	case caller.Stop:
		s.stopCallSID = e.CallSID
		if s.stopCallSID == "" {
			s.stopCallSID = s.callSID
		}
		s.logger.Info().Str("reason", e.Reason).Msg("Caller stream stopped")
		s.finalize(models.StatusCallerStop)

	case caller.Mark:
		s.logger.Debug().Str("mark", e.Name).Msg("Caller acknowledged mark")

	case caller.DTMF:
		s.logger.Info().Str("digit", e.Digit).Msg("Caller pressed key")
	}
}

func (s *Session) onStart(e caller.Start) {
	s.stream = caller.NewStream(e.StreamSID)
	s.callSID = e.CallSID
	s.skip = s.cfg.SkipMediaPackets

	if e.SampleRate > 0 && e.SampleRate != s.cfg.SampleRate {
		s.logger.Info().
			Int("queryRate", s.cfg.SampleRate).
			Int("streamRate", e.SampleRate).
			Msg("Caller declared a different sample rate")
		s.cfg.SampleRate = e.SampleRate
		// Frames queued at the old rate cannot be played at the new one.
		if discarded := s.pacer.Clear(); discarded > 0 {
			s.stats.FramesDropped += int64(discarded)
			s.deps.Metrics.RecordFramesDropped(discarded)
			s.logger.Warn().Int("discardedFrames", discarded).Msg("Dropped agent audio queued before stream start")
		}
		s.pacer = s.newPacer(e.SampleRate)
	}

	s.logger.Info().
		Str("streamSid", e.StreamSID).
		Str("callSid", e.CallSID).
		Int("frameBytes", s.pacer.FrameSize()).
		Msg("Caller stream started")
}

func (s *Session) onUIMessage(msg leg.Message) {
	if msg.IsText() {
		s.stats.AgentOutChunks++
		s.stats.AgentOutBytes += int64(len(msg.Data))
		s.sendAgent(msg.Data)
		return
	}
	s.deps.Metrics.RecordAudio("caller", "in", len(msg.Data))
	s.forwardCallerAudio(msg.Data)
}

// forwardCallerAudio resamples caller PCM to the agent rate. Before the agent
// leg opens the chunk is queued on it.
func (s *Session) forwardCallerAudio(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	chunk := agent.AudioChunk(audio.ResampleBytes(pcm, s.cfg.SampleRate, audio.AgentSampleRate))
	if s.sendAgent(chunk) {
		s.stats.AgentOutChunks++
		s.stats.AgentOutBytes += int64(len(chunk))
		s.deps.Metrics.RecordAudio("agent", "out", len(chunk))
	}
}

func (s *Session) onAgentMessage(msg leg.Message) {
	s.stats.AgentInChunks++
	s.stats.AgentInBytes += int64(len(msg.Data))

	ev, err := agent.Decode(msg.Data)
	if err != nil {
		s.deps.Metrics.RecordDecodeError("agent")
		s.logger.Debug().Err(err).Msg("Dropped agent message")
		return
	}

	switch e := ev.(type) {
	case agent.Audio:
		s.deps.Metrics.RecordAudio("agent", "in", len(e.PCM))
		if s.cfg.Mode == ModeUI {
			s.forwardToUI(msg.Data)
			return
		}
		dropped := s.pacer.Push(audio.ResampleBytes(e.PCM, audio.AgentSampleRate, s.cfg.SampleRate))
		if dropped > 0 {
			s.stats.FramesDropped += int64(dropped)
			s.deps.Metrics.RecordFramesDropped(dropped)
		}

	case agent.Transcript:
		s.onTranscript(e, msg.Data)

	case agent.Finished:
		s.logger.Info().Msg("Agent finished the conversation")
		s.finalize(models.StatusAgentEnded)

	case agent.Ping:
		s.sendAgent(agent.Pong(e.EventID))

	case agent.Metadata:
		s.conversationID = e.ConversationID
		s.logger.Info().
			Str("conversationId", e.ConversationID).
			Str("agentOutputFormat", e.AgentOutputFormat).
			Msg("Agent conversation started")
		s.forwardToUI(msg.Data)

	case agent.Interruption:
		s.deps.Metrics.RecordInterruption()
		if s.cfg.Mode == ModeUI {
			s.forwardToUI(msg.Data)
			return
		}
		cleared := s.pacer.Clear()
		if s.stream != nil {
			if data, err := s.stream.Clear(); err == nil {
				s.sendCaller(data)
			}
		}
		s.logger.Debug().Int("clearedFrames", cleared).Msg("Agent interrupted, playback cleared")

	case agent.Passthrough:
		s.forwardToUI(msg.Data)
	}
}

func (s *Session) forwardToUI(raw []byte) {
	if s.cfg.Mode != ModeUI {
		return
	}
	s.sendCaller(raw)
}

// onTranscript records a turn and feeds the tracker. A closing phrase from
// the agent ends the session before the message goes anywhere else.
func (s *Session) onTranscript(t agent.Transcript, raw []byte) {
	if s.tracker.Closed() {
		return
	}

	turn := models.TranscriptTurn{Role: t.Role, Text: t.Text, Kind: t.Kind, At: time.Now().UTC()}
	s.turns = append(s.turns, turn)
	s.publishTurn(turn)

	switch t.Role {
	case models.RoleAgent:
		if s.tracker.OnAgentText(t.Text) {
			s.logger.Info().Str("text", t.Text).Msg("Agent closing phrase detected")
			s.finalize(models.StatusAgentThankYou)
			return
		}
	case models.RoleUser:
		if s.tracker.OnUserText(t.Text) {
			snap := s.tracker.Snapshot()
			s.logger.Info().
				Str("paymentIntent", string(snap.PaymentIntent)).
				Msg("Payment answer captured")
		}
	}
	s.forwardToUI(raw)
}

func (s *Session) publishTurn(turn models.TranscriptTurn) {
	if s.deps.Publisher == nil {
		return
	}
	s.turnSeq++
	ev := models.TranscriptEvent{
		EventType: models.EventTypeTranscript,
		SessionID: s.id,
		Sequence:  s.turnSeq,
		Role:      turn.Role,
		Kind:      turn.Kind,
		Text:      turn.Text,
		Timestamp: turn.At.UnixMilli(),
	}
	if s.stream != nil {
		ev.StreamSID = s.stream.SID()
	}

	// Blocks while the queue is full; each publish is bounded by publishTimeout.
	s.turnsOut <- ev
}

// publishTurns drains the turn queue one event at a time so consumers see a
// session's turns in sequence order. It exits once the queue is closed and empty.
func (s *Session) publishTurns() {
	defer s.wg.Done()
	for ev := range s.turnsOut {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := s.deps.Publisher.PublishTranscript(ctx, s.id, ev); err != nil {
			s.logger.Warn().Err(err).Int("sequence", ev.Sequence).Msg("Failed to publish transcript turn")
		}
		cancel()
	}
}

// emitFrame sends at most one queued frame. Nothing is paced out until the
// caller stream has started.
func (s *Session) emitFrame() {
	if s.stream == nil {
		return
	}
	frame, ok := s.pacer.Next()
	if !ok {
		return
	}
	data, err := s.stream.Media(frame)
	if err != nil {
		return
	}
	if s.sendCaller(data) {
		s.stats.CallerOutFrames++
		s.stats.CallerOutBytes += int64(len(frame))
		s.deps.Metrics.RecordFrameEmitted()
		s.deps.Metrics.RecordAudio("caller", "out", len(frame))
	}
}
