package exotel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ai-voice-bridge-service/internal/models"
)

func testClient(baseURL string) *Client {
	return NewClient(Config{
		AccountSID: "acme1",
		APIKey:     "key-123456789",
		APIToken:   "token-abc",
		CallerID:   "08012345678",
		AppID:      "777",
		BaseURL:    baseURL,
	})
}

func TestConnect_PostsForm(t *testing.T) {
	var gotForm url.Values
	var gotPath, gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		_, _ = w.Write([]byte(`{"Call":{"Sid":"ca-42","Status":"in-progress"}}`))
	}))
	defer srv.Close()

	sid, err := testClient(srv.URL).Connect(context.Background(), CallRequest{
		To:        "+91 98765-43210",
		Variables: models.DynamicVariables{AgentName: "Ritu", CustomerName: "Aman", DueAmount: "5000"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if sid != "ca-42" {
		t.Errorf("sid = %q", sid)
	}
	if gotPath != "/v1/Accounts/acme1/Calls/connect.json" {
		t.Errorf("path = %s", gotPath)
	}
	if gotUser != "key-123456789" || gotPass != "token-abc" {
		t.Errorf("basic auth = %s:%s", gotUser, gotPass)
	}

	want := map[string]string{
		"From":      "919876543210",
		"CallerId":  "08012345678",
		"Url":       "http://my.exotel.com/acme1/exoml/start_voice/777",
		"CallType":  "trans",
		"TimeLimit": "600",
		"TimeOut":   "45",
	}
	for k, v := range want {
		if gotForm.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, gotForm.Get(k), v)
		}
	}
	var custom models.DynamicVariables
	if err := json.Unmarshal([]byte(gotForm.Get("CustomField")), &custom); err != nil {
		t.Fatalf("CustomField: %v", err)
	}
	if custom.CustomerName != "Aman" || custom.DueAmount != "5000" {
		t.Errorf("CustomField = %+v", custom)
	}
}

func TestConnect_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"RestException":{"Message":"bad caller id"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		client *Client
		to     string
		check  func(error) bool
	}{
		{
			name:   "not configured",
			client: NewClient(Config{BaseURL: srv.URL}),
			to:     "9876543210",
			check:  func(err error) bool { return errors.Is(err, ErrNotConfigured) },
		},
		{
			name:   "no digits",
			client: testClient(srv.URL),
			to:     "not-a-number",
			check:  func(err error) bool { return errors.Is(err, ErrInvalidNumber) },
		},
		{
			name:   "provider rejects",
			client: testClient(srv.URL),
			to:     "9876543210",
			check: func(err error) bool {
				var se *StatusError
				return errors.As(err, &se) && se.Code == http.StatusBadRequest && strings.Contains(se.Body, "bad caller id")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.client.Connect(context.Background(), CallRequest{To: tt.to})
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error %v", err)
			}
		})
	}
}

func TestGetCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/Accounts/acme1/Calls/ca-42.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"Call":{"Sid":"ca-42","Status":"completed","Duration":37,"StartTime":"2026-10-18 10:00:00","EndTime":"2026-10-18 10:00:37"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	detail, err := c.GetCall(context.Background(), "ca-42")
	if err != nil {
		t.Fatal(err)
	}
	want := models.CallDetail{
		CallSID:   "ca-42",
		Status:    "completed",
		Duration:  "37",
		StartTime: "2026-10-18 10:00:00",
		EndTime:   "2026-10-18 10:00:37",
	}
	if *detail != want {
		t.Errorf("detail = %+v, want %+v", *detail, want)
	}

	if _, err := c.GetCall(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown call")
	}
}

func TestStreamURL(t *testing.T) {
	vars := models.DynamicVariables{AgentName: "Ritu", CustomerName: "Ram", DueAmount: "15000", DueDate: "20 फ़रवरी 2026-02-20"}

	tests := []struct {
		name       string
		publicURL  string
		wantPrefix string
	}{
		{"https becomes wss", "https://bridge.example.com/", "wss://bridge.example.com/ws/exotel?"},
		{"http becomes ws", "http://localhost:8080", "ws://localhost:8080/ws/exotel?"},
		{"ws kept", "ws://10.0.0.1:8080", "ws://10.0.0.1:8080/ws/exotel?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StreamURL(tt.publicURL, "8000", vars)
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Fatalf("url = %s, want prefix %s", got, tt.wantPrefix)
			}
			u, err := url.Parse(got)
			if err != nil {
				t.Fatal(err)
			}
			q := u.Query()
			if q.Get("sample-rate") != "8000" || q.Get("customer_name") != "Ram" || q.Get("amount") != "15000" {
				t.Errorf("query = %v", q)
			}
			if q.Get("due_date") != "20  2026-02-20" {
				t.Errorf("due_date = %q, non-ASCII must be stripped", q.Get("due_date"))
			}
		})
	}
}

func TestStartVoice(t *testing.T) {
	doc, err := StartVoice("wss://bridge.example.com/ws/exotel?agent_name=Ritu&amount=5")
	if err != nil {
		t.Fatal(err)
	}
	s := string(doc)
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<Response>`,
		`<Say voice="alice">`,
		`<Stream url="wss://bridge.example.com/ws/exotel?agent_name=Ritu&amp;amount=5"></Stream>`,
		`<Pause length="600"></Pause>`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("document missing %s:\n%s", want, s)
		}
	}
	if strings.Index(s, "<Start>") > strings.Index(s, "<Pause") {
		t.Error("stream must start before the pause")
	}
}
