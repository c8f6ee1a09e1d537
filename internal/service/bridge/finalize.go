package bridge

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"ai-voice-bridge-service/internal/models"
	"ai-voice-bridge-service/internal/service/caller"
	"ai-voice-bridge-service/internal/service/conversation"
)

// teardown runs once, on the session goroutine, after finalize has begun:
// snapshot the outcome, hand it to persistence, notify the caller, wait the
// grace period, then close both legs.
func (s *Session) teardown() {
	reason := s.Reason()
	s.tracker.Finish()

	o := s.buildOutcome(reason)
	s.wg.Add(1)
	go s.persist(o, s.stopCallSID)

	if s.notifyCaller(reason) && s.cfg.CloseGrace > 0 {
		time.Sleep(s.cfg.CloseGrace)
	}

	text := string(reason)
	if len(text) > maxCloseReason {
		text = text[:maxCloseReason]
	}
	s.caller.Close(websocket.CloseNormalClosure, text)
	s.agent.Close(websocket.CloseNormalClosure, text)
	s.life.Close()

	duration := time.Since(s.startedAt)
	s.deps.Metrics.RecordSessionEnd(string(reason), duration.Seconds())

	s.logger.Info().
		Str("reason", string(reason)).
		Dur("duration", duration).
		Dur("activeDuration", s.life.ActiveDuration()).
		Int64("callerInChunks", s.stats.CallerInChunks).
		Int64("callerOutFrames", s.stats.CallerOutFrames).
		Int64("agentInChunks", s.stats.AgentInChunks).
		Int64("agentOutChunks", s.stats.AgentOutChunks).
		Int64("framesDropped", s.stats.FramesDropped).
		Int("turns", len(s.turns)).
		Msg("Session closed")
}

// notifyCaller sends the terminal notification if the caller leg is still
// open. Failure is ignored.
func (s *Session) notifyCaller(reason models.CallStatus) bool {
	if !s.caller.IsOpen() {
		return false
	}
	var data []byte
	switch s.cfg.Mode {
	case ModeUI:
		data = caller.CallEnded(string(reason))
	default:
		if s.stream == nil {
			return false
		}
		var err error
		if data, err = s.stream.Mark(caller.CallEndedMark); err != nil {
			return false
		}
	}
	return s.caller.SendText(data) == nil
}

func (s *Session) buildOutcome(reason models.CallStatus) models.Outcome {
	snap := s.tracker.Snapshot()
	ex := s.deps.Extractor.Extract(s.turns)
	stats := s.stats

	o := models.Outcome{
		SessionID:             s.id,
		Mode:                  string(s.cfg.Mode),
		CallSID:               s.callSID,
		ConversationID:        s.conversationID,
		Variables:             s.cfg.Variables,
		PaymentQuestionAsked:  snap.PaymentQuestionAsked,
		PaymentAnswerCaptured: snap.PaymentAnswerCaptured,
		PaymentIntent:         snap.PaymentIntent,
		PaymentRawResponse:    snap.PaymentRawResponse,
		AnswerText:            ex.AnswerText,
		DateISO:               ex.DateISO,
		TimeHHmm:              ex.TimeHHmm,
		DateEN:                ex.DateEN,
		CallStatus:            reason,
		Transcript:            append([]models.TranscriptTurn(nil), s.turns...),
		Stats:                 &stats,
		StartedAt:             s.startedAt,
		EndedAt:               time.Now().UTC(),
	}
	if s.stream != nil {
		o.StreamSID = s.stream.SID()
	}

	if !snap.PaymentAnswerCaptured && ex.AnswerText != nil {
		o.PaymentQuestionAsked = true
		o.PaymentAnswerCaptured = true
		o.PaymentRawResponse = ex.AnswerText
		o.PaymentIntent = conversation.ClassifyIntent(*ex.AnswerText)
	}
	return o
}

// persist runs off the session goroutine so a slow store never delays
// teardown. Errors are logged only.
func (s *Session) persist(o models.Outcome, lookupSID string) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
	defer cancel()

	if lookupSID != "" && s.deps.Calls != nil {
		detail, err := s.deps.Calls.GetCall(ctx, lookupSID)
		if err != nil {
			s.logger.Warn().Err(err).Str("callSid", lookupSID).Msg("Call detail lookup failed")
		} else {
			o.CallDetail = detail
		}
	}

	if s.deps.Sink == nil {
		return
	}
	id, err := s.deps.Sink.Persist(ctx, o)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist outcome")
		return
	}
	s.logger.Debug().Str("recordId", id).Msg("Outcome persisted")
}
