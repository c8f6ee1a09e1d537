// Package bridge connects a caller leg (telephony media stream or UI client)
// to a conversational agent leg for the lifetime of one call.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ai-voice-bridge-service/internal/models"
	"ai-voice-bridge-service/internal/observability/logging"
	"ai-voice-bridge-service/internal/observability/metrics"
	"ai-voice-bridge-service/internal/service/agent"
	"ai-voice-bridge-service/internal/service/audio"
	"ai-voice-bridge-service/internal/service/caller"
	"ai-voice-bridge-service/internal/service/conversation"
	"ai-voice-bridge-service/internal/service/leg"
	"ai-voice-bridge-service/internal/service/lifecycle"
	"ai-voice-bridge-service/internal/service/outcome"
)

// Mode selects how the caller leg is spoken to.
type Mode string

const (
	// ModeTelephony frames agent audio into paced media envelopes.
	ModeTelephony Mode = "telephony"
	// ModeUI passes agent messages through to a browser client.
	ModeUI Mode = "ui"
)

const (
	publishTimeout = 5 * time.Second
	turnQueueSize  = 64
	maxCloseReason = 120
)

// AgentDialer opens the agent leg.
type AgentDialer interface {
	Dial(ctx context.Context) (leg.Conn, error)
}

// OutcomeSink persists the finalized outcome.
type OutcomeSink interface {
	Persist(ctx context.Context, o models.Outcome) (string, error)
}

// TranscriptPublisher announces transcript turns as they arrive.
type TranscriptPublisher interface {
	PublishTranscript(ctx context.Context, key string, event any) error
}

// CallLookup fetches the provider record of a telephony call.
type CallLookup interface {
	GetCall(ctx context.Context, callSID string) (*models.CallDetail, error)
}

// Config is the per-session configuration.
type Config struct {
	Mode       Mode
	SampleRate int
	Variables  models.DynamicVariables

	IdleTimeout       time.Duration // 0 disables
	FrameDuration     time.Duration
	FrameAlignment    int
	MaxQueueFrames    int
	HeartbeatInterval time.Duration // 0 disables
	SkipMediaPackets  int
	CloseGrace        time.Duration
	QuestionPolicy    conversation.Policy
	PersistTimeout    time.Duration
	Init              agent.InitOptions
}

// Deps are the collaborators a session calls into. Publisher and Calls are optional.
type Deps struct {
	Dialer    AgentDialer
	Sink      OutcomeSink
	Publisher TranscriptPublisher
	Calls     CallLookup
	Extractor *outcome.Extractor
	Metrics   *metrics.Metrics
}

// Session bridges one caller connection to one agent connection. All
// per-call state is owned by the goroutine running Run; Finalize may be
// called from anywhere.
type Session struct {
	id     string
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	life    *lifecycle.Lifecycle
	tracker *conversation.Tracker
	caller  *leg.Leg
	agent   *leg.Leg
	pacer   *audio.Pacer
	stream  *caller.Stream

	finalizeReq chan struct{}
	turnsOut    chan models.TranscriptEvent
	wg          sync.WaitGroup

	callSID        string
	stopCallSID    string
	conversationID string
	skip           int
	turns          []models.TranscriptTurn
	turnSeq        int
	stats          models.SessionStats
	startedAt      time.Time
}

type dialResult struct {
	dialErr error
	openErr error
}

// NewSession wraps an accepted caller connection. The caller leg starts
// receiving immediately; Run must be called to drive the session.
func NewSession(cfg Config, deps Deps, callerConn leg.Conn) *Session {
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	if deps.Extractor == nil {
		deps.Extractor = outcome.NewExtractor(nil)
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = audio.AgentSampleRate
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}

	id := lifecycle.NewSessionID()
	s := &Session{
		id:          id,
		cfg:         cfg,
		deps:        deps,
		logger:      logging.WithSession(id, string(cfg.Mode)),
		life:        lifecycle.NewLifecycle(id),
		tracker:     conversation.NewTracker(cfg.QuestionPolicy),
		caller:      leg.New("caller", callerConn),
		agent:       leg.NewPending("agent"),
		finalizeReq: make(chan struct{}),
		skip:        cfg.SkipMediaPackets,
		startedAt:   time.Now().UTC(),
	}
	s.pacer = s.newPacer(cfg.SampleRate)
	if deps.Publisher != nil {
		s.turnsOut = make(chan models.TranscriptEvent, turnQueueSize)
	}
	return s
}

func (s *Session) newPacer(rate int) *audio.Pacer {
	return audio.NewPacer(audio.FrameSize(rate, s.cfg.FrameDuration, s.cfg.FrameAlignment), s.cfg.MaxQueueFrames)
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the caller mode.
func (s *Session) Mode() Mode {
	return s.cfg.Mode
}

// State returns the lifecycle state.
func (s *Session) State() lifecycle.State {
	return s.life.State()
}

// Reason returns the finalize reason once finalize has started.
func (s *Session) Reason() models.CallStatus {
	return models.CallStatus(s.life.Reason())
}

// Finalize ends the session with reason. Only the first call, from any
// goroutine or from the session itself, has an effect.
func (s *Session) Finalize(reason models.CallStatus) bool {
	if !s.life.BeginFinalize(string(reason)) {
		return false
	}
	close(s.finalizeReq)
	return true
}

// finalize is the in-loop trigger; Run notices the state change and tears down.
func (s *Session) finalize(reason models.CallStatus) {
	if s.life.BeginFinalize(string(reason)) {
		s.logger.Info().Str("reason", string(reason)).Msg("Finalize triggered")
	}
}

// Run drives the session until it is finalized, then tears it down. It
// returns once the outcome has been handed off and every helper goroutine
// has exited.
func (s *Session) Run(ctx context.Context) {
	s.deps.Metrics.RecordSessionStart(string(s.cfg.Mode))
	s.logger.Info().
		Int("sampleRate", s.cfg.SampleRate).
		Str("customerName", s.cfg.Variables.CustomerName).
		Msg("Session started")

	dialCtx, cancelDial := context.WithCancel(ctx)
	dialed := make(chan dialResult, 1)
	s.wg.Add(1)
	go s.dialAgent(dialCtx, dialed)
	if s.turnsOut != nil {
		s.wg.Add(1)
		go s.publishTurns()
	}

	var tick, heartbeat, idle <-chan time.Time
	if s.cfg.Mode == ModeTelephony && s.cfg.FrameDuration > 0 {
		t := time.NewTicker(s.cfg.FrameDuration)
		defer t.Stop()
		tick = t.C
	}
	if s.cfg.HeartbeatInterval > 0 {
		t := time.NewTicker(s.cfg.HeartbeatInterval)
		defer t.Stop()
		heartbeat = t.C
	}
	var idleTimer *time.Timer
	if s.cfg.IdleTimeout > 0 {
		idleTimer = time.NewTimer(s.cfg.IdleTimeout)
		defer idleTimer.Stop()
		idle = idleTimer.C
	}

	callerIn := s.caller.Receive()
	// Agent events are read only after the open has been processed so the
	// tracker sees AgentReady first.
	var agentIn <-chan leg.Message

	for !s.life.IsDone() {
		select {
		case <-ctx.Done():
			s.finalize(models.StatusShutdown)

		case <-s.finalizeReq:

		case r := <-dialed:
			dialed = nil
			if s.onAgentDialed(r) {
				agentIn = s.agent.Receive()
			}

		case msg, ok := <-callerIn:
			if !ok {
				callerIn = nil
				s.onLegClosed(s.caller, models.StatusCallerClose, models.StatusCallerError)
				continue
			}
			if idleTimer != nil {
				idleTimer.Reset(s.cfg.IdleTimeout)
			}
			s.onCallerMessage(msg)

		case msg, ok := <-agentIn:
			if !ok {
				agentIn = nil
				s.onLegClosed(s.agent, models.StatusAgentClose, models.StatusAgentError)
				continue
			}
			s.onAgentMessage(msg)

		case <-tick:
			s.emitFrame()

		case <-heartbeat:
			s.probe()

		case <-idle:
			s.finalize(models.StatusIdleTimeout)
		}
	}

	cancelDial()
	s.teardown()
	if s.turnsOut != nil {
		close(s.turnsOut)
	}
	s.wg.Wait()
}

func (s *Session) dialAgent(ctx context.Context, out chan<- dialResult) {
	defer s.wg.Done()

	start := time.Now()
	conn, err := s.deps.Dialer.Dial(ctx)
	s.deps.Metrics.RecordAgentDial(err, time.Since(start).Seconds())
	if err != nil {
		out <- dialResult{dialErr: err}
		return
	}

	handshake, err := agent.Initiation(s.cfg.Variables, s.cfg.Init)
	if err != nil {
		_ = conn.Close()
		out <- dialResult{openErr: err}
		return
	}
	out <- dialResult{openErr: s.agent.Open(conn, handshake)}
}

func (s *Session) onAgentDialed(r dialResult) bool {
	switch {
	case r.dialErr != nil:
		s.logger.Error().Err(r.dialErr).Msg("Agent leg unavailable")
		s.finalize(models.StatusAgentUnavailable)
		return false
	case errors.Is(r.openErr, leg.ErrClosed):
		return false
	case r.openErr != nil:
		s.logger.Error().Err(r.openErr).Msg("Agent handshake failed")
		s.finalize(models.StatusAgentError)
		return false
	}

	if err := s.life.Activate(); err != nil {
		return false
	}
	s.tracker.AgentReady()
	s.logger.Info().Msg("Agent leg open, handshake sent")

	if s.cfg.Mode == ModeUI {
		s.sendCaller(caller.AgentReady())
	}
	return true
}

func (s *Session) onLegClosed(l *leg.Leg, normal, failed models.CallStatus) {
	err := l.Err()
	lg := logging.WithLeg(s.id, l.Name())
	if leg.IsNormalClosure(err) {
		lg.Info().Err(err).Msg("Leg closed")
		s.finalize(normal)
		return
	}
	lg.Warn().Err(err).Msg("Leg failed")
	s.finalize(failed)
}

// probe fails the session if the previous ping went unanswered.
func (s *Session) probe() {
	if !s.caller.Alive() {
		s.deps.Metrics.RecordLivenessFailure()
		s.logger.Warn().Msg("Caller missed heartbeat")
		s.finalize(models.StatusLivenessFailure)
		return
	}
	if err := s.caller.Ping(); err != nil && !errors.Is(err, leg.ErrClosed) {
		s.logger.Warn().Err(err).Msg("Heartbeat write failed")
		s.finalize(models.StatusCallerError)
	}
}

// sendCaller writes to the caller leg; a write failure ends the session.
func (s *Session) sendCaller(data []byte) bool {
	if err := s.caller.SendText(data); err != nil {
		if !errors.Is(err, leg.ErrClosed) {
			s.logger.Warn().Err(err).Msg("Caller write failed")
			s.finalize(models.StatusCallerError)
		}
		return false
	}
	return true
}

// sendAgent writes (or queues) to the agent leg; a write failure ends the session.
func (s *Session) sendAgent(data []byte) bool {
	if err := s.agent.SendText(data); err != nil {
		if !errors.Is(err, leg.ErrClosed) {
			s.logger.Warn().Err(err).Msg("Agent write failed")
			s.finalize(models.StatusAgentError)
		}
		return false
	}
	return true
}
