package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ai-voice-bridge-service/internal/app"
	"ai-voice-bridge-service/internal/models"
	"ai-voice-bridge-service/internal/observability"
	"ai-voice-bridge-service/internal/observability/metrics"
	"ai-voice-bridge-service/internal/service/outcome"
	"ai-voice-bridge-service/internal/telephony/exotel"
)

const restTimeout = 30 * time.Second

// CallPlacer places outbound telephony calls.
type CallPlacer interface {
	Connect(ctx context.Context, req exotel.CallRequest) (string, error)
}

// OutcomeLister reads stored outcomes newest first.
type OutcomeLister interface {
	List(ctx context.Context, limit int) ([]models.Outcome, error)
}

// OutcomeSink validates and stores an outcome.
type OutcomeSink interface {
	Persist(ctx context.Context, o models.Outcome) (string, error)
}

// Deps are the collaborators behind the routes. Nil websocket handlers leave
// their route unregistered.
type Deps struct {
	TelephonyWS http.Handler
	AppWS       http.Handler
	Calls       CallPlacer
	Outcomes    OutcomeLister
	Sink        OutcomeSink
	Extractor   *outcome.Extractor
	Draining    func() bool
	Metrics     *metrics.Metrics
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, deps Deps) http.Handler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.DefaultMetrics
	}
	if deps.Extractor == nil {
		deps.Extractor = outcome.NewExtractor(nil)
	}
	h := &handlers{app: application, deps: deps}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if deps.Draining != nil && deps.Draining() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("draining"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Media streams stay outside the timeout and metrics wrappers; they live
	// for the whole call.
	if deps.TelephonyWS != nil {
		r.Get("/ws/exotel", deps.TelephonyWS.ServeHTTP)
	}
	if deps.AppWS != nil {
		r.Get("/ws/app", deps.AppWS.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(restTimeout))
		r.Use(observability.HTTPMiddleware(deps.Metrics))

		r.Post("/start-call", h.startCall)
		r.Get("/exoml/start-voice", h.startVoice)
		r.Post("/exotel/status", h.statusCallback)

		r.Route("/call-logs", func(r chi.Router) {
			r.Get("/", h.listCallLogs)
			r.Post("/", h.createCallLog)
			r.Post("/from-conversation", h.callLogFromConversation)
		})
	})

	return r
}

type handlers struct {
	app  *app.Application
	deps Deps
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "success": false, "error": msg})
}
