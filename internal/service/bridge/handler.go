package bridge

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"ai-voice-bridge-service/internal/models"
)

// Handler accepts caller websocket connections and runs one Session per
// connection until it ends.
type Handler struct {
	mode     Mode
	base     Config
	deps     Deps
	registry *Registry
	upgrader websocket.Upgrader
}

// NewHandler creates a Handler for mode. base.SampleRate is the rate assumed
// when the request does not declare one.
func NewHandler(mode Mode, base Config, deps Deps, registry *Registry) *Handler {
	base.Mode = mode
	return &Handler{
		mode:     mode,
		base:     base,
		deps:     deps,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// SessionConfig derives the per-session configuration from the request query.
func (h *Handler) SessionConfig(q url.Values) Config {
	cfg := h.base
	if rate, err := strconv.Atoi(q.Get("sample-rate")); err == nil && rate > 0 {
		cfg.SampleRate = rate
	}
	cfg.Variables = models.DynamicVariables{
		AgentName:    queryOr(q, "agent_name", "Ritu"),
		CustomerName: queryOr(q, "customer_name", "Customer"),
		DueAmount:    q.Get("amount"),
		DueDate:      q.Get("due_date"),
	}
	return cfg
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.registry.Draining() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	cfg := h.SessionConfig(r.URL.Query())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("mode", string(h.mode)).Msg("Websocket upgrade failed")
		return
	}

	sess := NewSession(cfg, h.deps, conn)
	if h.registry.Add(sess) {
		defer h.registry.Remove(sess)
	} else {
		sess.Finalize(models.StatusShutdown)
	}

	sess.Run(r.Context())
}

func queryOr(q url.Values, key, def string) string {
	if v := q.Get(key); v != "" {
		return v
	}
	return def
}
