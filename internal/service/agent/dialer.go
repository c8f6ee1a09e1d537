package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"ai-voice-bridge-service/internal/service/leg"
)

// DialerConfig holds the agent endpoint and credentials.
type DialerConfig struct {
	URL     string
	APIKey  string
	AgentID string
	Timeout time.Duration
}

// Dialer opens agent connections over websocket.
type Dialer struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	ws       *websocket.Dialer
}

// NewDialer validates cfg and builds a Dialer.
func NewDialer(cfg DialerConfig) (*Dialer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("agent api key is required")
	}
	if strings.TrimSpace(cfg.AgentID) == "" {
		return nil, errors.New("agent id is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse agent url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("agent url must be ws or wss, got %q", u.Scheme)
	}
	q := u.Query()
	q.Set("agent_id", strings.TrimSpace(cfg.AgentID))
	u.RawQuery = q.Encode()

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Dialer{
		endpoint: u.String(),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		timeout:  timeout,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: timeout,
		},
	}, nil
}

// Dial opens one agent connection.
func (d *Dialer) Dial(ctx context.Context) (leg.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	header := http.Header{}
	header.Set("xi-api-key", d.apiKey)

	conn, resp, err := d.ws.DialContext(ctx, d.endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial agent: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial agent: %w", err)
	}
	return conn, nil
}
