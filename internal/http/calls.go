package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"ai-voice-bridge-service/internal/models"
	"ai-voice-bridge-service/internal/telephony/exotel"
)

const maxBodyBytes = 1 << 20

type startCallRequest struct {
	To           string `json:"to"`
	MobileNumber string `json:"mobileNumber"`
	AgentName    string `json:"agent_name"`
	CustomerName string `json:"customer_name"`
	Amount       string `json:"amount"`
	DueDate      string `json:"due_date"`
}

func (h *handlers) startCall(w http.ResponseWriter, r *http.Request) {
	if h.deps.Calls == nil {
		writeError(w, http.StatusServiceUnavailable, "telephony not configured")
		return
	}

	var req startCallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	to := req.To
	if to == "" {
		to = req.MobileNumber
	}
	if to == "" {
		writeError(w, http.StatusBadRequest, "to is required")
		return
	}

	vars := models.DynamicVariables{
		AgentName:    orDefault(req.AgentName, "Ritu"),
		CustomerName: orDefault(req.CustomerName, "Customer"),
		DueAmount:    req.Amount,
		DueDate:      req.DueDate,
	}
	sid, err := h.deps.Calls.Connect(r.Context(), exotel.CallRequest{To: to, Variables: vars})
	switch {
	case errors.Is(err, exotel.ErrInvalidNumber):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, exotel.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("Outbound call failed")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "callSid": sid})
}

func (h *handlers) startVoice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rate := q.Get("sample_rate")
	if rate == "" {
		rate = q.Get("sample-rate")
	}
	if rate == "" && h.app != nil {
		rate = strconv.Itoa(h.app.Cfg.Bridge.DefaultSampleRate)
	}

	publicURL := ""
	if h.app != nil {
		publicURL = h.app.Cfg.Telephony.PublicWSURL
	}
	if publicURL == "" {
		publicURL = "http://" + r.Host
	}

	streamURL := exotel.StreamURL(publicURL, rate, models.DynamicVariables{
		AgentName:    orDefault(q.Get("agent_name"), "Ritu"),
		CustomerName: orDefault(q.Get("customer_name"), "Customer"),
		DueAmount:    q.Get("amount"),
		DueDate:      q.Get("due_date"),
	})
	doc, err := exotel.StartVoice(streamURL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "render exoml")
		return
	}

	log.Info().Str("streamUrl", streamURL).Msg("Served ExoML start-voice")
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (h *handlers) statusCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	log.Info().
		Str("callSid", r.PostForm.Get("CallSid")).
		Str("callStatus", r.PostForm.Get("CallStatus")).
		Str("from", r.PostForm.Get("From")).
		Str("to", r.PostForm.Get("To")).
		Str("dialCallStatus", r.PostForm.Get("DialCallStatus")).
		Str("duration", r.PostForm.Get("Duration")).
		Str("recordingUrl", r.PostForm.Get("RecordingUrl")).
		Msg("Exotel status callback")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
