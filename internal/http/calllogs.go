package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai-voice-bridge-service/internal/models"
	"ai-voice-bridge-service/internal/service/conversation"
	"ai-voice-bridge-service/internal/service/lifecycle"
	"ai-voice-bridge-service/internal/service/outcome"
	"ai-voice-bridge-service/internal/store"
)

func (h *handlers) listCallLogs(w http.ResponseWriter, r *http.Request) {
	if h.deps.Outcomes == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.deps.Outcomes.List(r.Context(), store.ClampLimit(limit))
	if err != nil {
		log.Error().Err(err).Msg("List call logs failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []models.Outcome{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(list), "data": list})
}

func (h *handlers) createCallLog(w http.ResponseWriter, r *http.Request) {
	var o models.Outcome
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if o.SessionID == "" {
		o.SessionID = lifecycle.NewSessionID()
	}
	if o.Mode == "" {
		o.Mode = "ui"
	}
	if o.PaymentIntent == "" {
		o.PaymentIntent = models.IntentUnset
	}
	if o.CallStatus == "" {
		o.CallStatus = models.StatusClientClose
	}
	if o.EndedAt.IsZero() {
		o.EndedAt = time.Now().UTC()
	}
	o.ID = ""

	h.persist(w, r, o, nil)
}

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

type conversationRequest struct {
	SessionID      string      `json:"sessionId"`
	ConversationID string      `json:"conversationId"`
	AgentName      string      `json:"agentName"`
	CustomerName   string      `json:"customerName"`
	DueAmount      looseString `json:"dueAmount"`
	DueDate        string      `json:"dueDate"`
	EndReason      string      `json:"endReason"`
	StartedAt      *time.Time  `json:"startedAt"`
	EndedAt        *time.Time  `json:"endedAt"`
	Conversation   []struct {
		Role string `json:"role"`
		Text string `json:"text"`
	} `json:"conversation"`
}

type extractedView struct {
	AnswerText *string `json:"answerText"`
	DateISO    *string `json:"dateISO"`
	TimeHHmm   *string `json:"timeHHmm"`
	DateEN     *string `json:"dateEN"`
}

func (h *handlers) callLogFromConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	turns := make([]models.TranscriptTurn, 0, len(req.Conversation))
	for _, c := range req.Conversation {
		turns = append(turns, models.TranscriptTurn{Role: clientRole(c.Role), Text: c.Text})
	}
	ex := h.deps.Extractor.Extract(turns)

	o := models.Outcome{
		SessionID:      req.SessionID,
		Mode:           "ui",
		ConversationID: req.ConversationID,
		Variables: models.DynamicVariables{
			AgentName:    req.AgentName,
			CustomerName: req.CustomerName,
			DueAmount:    string(req.DueAmount),
			DueDate:      req.DueDate,
		},
		PaymentIntent: models.IntentUnset,
		AnswerText:    ex.AnswerText,
		DateISO:       ex.DateISO,
		TimeHHmm:      ex.TimeHHmm,
		DateEN:        ex.DateEN,
		CallStatus:    models.StatusFromClientReason(req.EndReason),
		Transcript:    turns,
		EndedAt:       time.Now().UTC(),
	}
	if o.SessionID == "" {
		o.SessionID = lifecycle.NewSessionID()
	}
	if ex.AnswerText != nil {
		o.PaymentQuestionAsked = true
		o.PaymentAnswerCaptured = true
		o.PaymentRawResponse = ex.AnswerText
		o.PaymentIntent = conversation.ClassifyIntent(*ex.AnswerText)
	}
	if req.StartedAt != nil {
		o.StartedAt = req.StartedAt.UTC()
	}
	if req.EndedAt != nil {
		o.EndedAt = req.EndedAt.UTC()
	}

	log.Info().
		Str("sessionId", o.SessionID).
		Int("turns", len(turns)).
		Str("endReason", req.EndReason).
		Str("callStatus", string(o.CallStatus)).
		Msg("Call log from client conversation")

	h.persist(w, r, o, &extractedView{
		AnswerText: ex.AnswerText,
		DateISO:    ex.DateISO,
		TimeHHmm:   ex.TimeHHmm,
		DateEN:     ex.DateEN,
	})
}

func (h *handlers) persist(w http.ResponseWriter, r *http.Request, o models.Outcome, extracted *extractedView) {
	if h.deps.Sink == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	id, err := h.deps.Sink.Persist(r.Context(), o)
	if err != nil {
		code := http.StatusInternalServerError
		if outcome.IsInvalid(err) {
			code = http.StatusBadRequest
		}
		writeError(w, code, err.Error())
		return
	}

	resp := map[string]any{"success": true, "id": id, "callStatus": o.CallStatus}
	if extracted != nil {
		resp["extracted"] = extracted
	}
	writeJSON(w, http.StatusOK, resp)
}

func clientRole(role string) models.Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "agent", "ai", "assistant", "bot":
		return models.RoleAgent
	default:
		return models.RoleUser
	}
}
