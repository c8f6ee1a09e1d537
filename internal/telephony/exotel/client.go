// Package exotel talks to the Exotel voice API: it places outbound calls that
// stream into the bridge and looks up call records after a stream stops.
package exotel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai-voice-bridge-service/internal/models"
	"ai-voice-bridge-service/internal/observability/logging"
	"ai-voice-bridge-service/internal/observability/metrics"
)

const (
	defaultTimeLimit = 600
	defaultTimeOut   = 45
	maxErrorBody     = 512
)

var (
	// ErrNotConfigured is returned when account credentials are missing.
	ErrNotConfigured = errors.New("exotel account not configured")
	// ErrInvalidNumber is returned when the destination has no digits.
	ErrInvalidNumber = errors.New("destination number has no digits")

	nonDigits = regexp.MustCompile(`\D`)
)

// Config holds account settings.
type Config struct {
	AccountSID string
	APIKey     string
	APIToken   string
	Subdomain  string
	CallerID   string
	AppID      string
	TimeLimit  int
	TimeOut    int

	// BaseURL overrides https://{Subdomain}.
	BaseURL string
	Timeout time.Duration
}

// Client is an Exotel API client.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
}

// NewClient creates a client. A client with missing credentials is still
// returned so the service can run without telephony; its calls fail with
// ErrNotConfigured.
func NewClient(cfg Config) *Client {
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = defaultTimeLimit
	}
	if cfg.TimeOut <= 0 {
		cfg.TimeOut = defaultTimeOut
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://" + strings.TrimRight(cfg.Subdomain, "/")
	}

	log.Info().
		Str("accountSid", cfg.AccountSID).
		Str("apiKey", logging.Mask(cfg.APIKey)).
		Str("baseUrl", base).
		Bool("configured", cfg.configured()).
		Msg("Exotel client initialized")

	return &Client{
		cfg:     cfg,
		baseURL: base,
		http:    &http.Client{Timeout: cfg.Timeout},
		metrics: metrics.DefaultMetrics,
	}
}

func (c Config) configured() bool {
	return c.AccountSID != "" && c.APIKey != "" && c.APIToken != ""
}

// Configured reports whether account credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.configured()
}

// CallRequest describes an outbound call.
type CallRequest struct {
	To        string
	Variables models.DynamicVariables
}

// Connect places an outbound call that runs the configured ExoML app and
// returns the provider call sid.
func (c *Client) Connect(ctx context.Context, req CallRequest) (string, error) {
	sid, err := c.connect(ctx, req)
	c.metrics.RecordTelephonyCall("connect", err)
	return sid, err
}

func (c *Client) connect(ctx context.Context, req CallRequest) (string, error) {
	if !c.cfg.configured() {
		return "", ErrNotConfigured
	}
	from := nonDigits.ReplaceAllString(req.To, "")
	if from == "" {
		return "", ErrInvalidNumber
	}

	custom, err := json.Marshal(req.Variables)
	if err != nil {
		return "", fmt.Errorf("encode custom field: %w", err)
	}

	form := url.Values{
		"From":        {from},
		"CallerId":    {c.cfg.CallerID},
		"Url":         {fmt.Sprintf("http://my.exotel.com/%s/exoml/start_voice/%s", c.cfg.AccountSID, c.cfg.AppID)},
		"CallType":    {"trans"},
		"TimeLimit":   {strconv.Itoa(c.cfg.TimeLimit)},
		"TimeOut":     {strconv.Itoa(c.cfg.TimeOut)},
		"CustomField": {string(custom)},
	}

	endpoint := fmt.Sprintf("%s/v1/Accounts/%s/Calls/connect.json", c.baseURL, url.PathEscape(c.cfg.AccountSID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build connect request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(c.cfg.APIKey, c.cfg.APIToken)

	var out callEnvelope
	if err := c.do(httpReq, &out); err != nil {
		return "", fmt.Errorf("connect call: %w", err)
	}

	log.Info().
		Str("callSid", out.Call.Sid).
		Str("status", out.Call.Status).
		Msg("Outbound call placed")
	return out.Call.Sid, nil
}

// GetCall fetches the call record for callSID.
func (c *Client) GetCall(ctx context.Context, callSID string) (*models.CallDetail, error) {
	detail, err := c.getCall(ctx, callSID)
	c.metrics.RecordTelephonyCall("get_call", err)
	return detail, err
}

func (c *Client) getCall(ctx context.Context, callSID string) (*models.CallDetail, error) {
	if !c.cfg.configured() {
		return nil, ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/v1/Accounts/%s/Calls/%s.json", c.baseURL,
		url.PathEscape(c.cfg.AccountSID), url.PathEscape(callSID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build call request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.APIKey, c.cfg.APIToken)

	var out callEnvelope
	if err := c.do(httpReq, &out); err != nil {
		return nil, fmt.Errorf("get call %s: %w", callSID, err)
	}
	return &models.CallDetail{
		CallSID:   out.Call.Sid,
		Status:    out.Call.Status,
		Duration:  out.Call.Duration.String(),
		StartTime: out.Call.StartTime,
		EndTime:   out.Call.EndTime,
	}, nil
}

type callEnvelope struct {
	Call struct {
		Sid       string     `json:"Sid"`
		Status    string     `json:"Status"`
		Duration  flexString `json:"Duration"`
		StartTime string     `json:"StartTime"`
		EndTime   string     `json:"EndTime"`
	} `json:"Call"`
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string {
	return string(f)
}

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("exotel returned %d: %s", e.Code, e.Body)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
