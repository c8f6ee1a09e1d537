// Package outcome derives the structured payment promise of a session and
// hands it to persistence.
package outcome

import (
	"strings"
	"time"

	"ai-voice-bridge-service/internal/models"
	"ai-voice-bridge-service/internal/service/conversation"
)

// Extraction is the advisory result of scanning a transcript.
type Extraction struct {
	AnswerText *string
	DateTime
}

// IsAgentAsk reports whether an agent turn asks when the caller will pay.
func IsAgentAsk(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "कब") ||
		(strings.Contains(t, "कौन") && strings.Contains(t, "तारीख")) ||
		(strings.Contains(t, "which date") || strings.Contains(t, "when will you"))
}

// Extractor scans turn-labelled transcripts for a payment promise.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an extractor. A nil clock uses time.Now.
func NewExtractor(now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{now: now}
}

// Extract finds the last agent turn asking for a date, takes the first
// substantive user answer after it and parses a date and time out of it.
// An empty Extraction is a normal result.
func (e *Extractor) Extract(turns []models.TranscriptTurn) Extraction {
	ask := -1
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == models.RoleAgent && IsAgentAsk(turns[i].Text) {
			ask = i
			break
		}
	}
	if ask == -1 {
		return Extraction{}
	}

	for _, turn := range turns[ask+1:] {
		if turn.Role != models.RoleUser || conversation.IsFiller(turn.Text) {
			continue
		}
		answer := strings.TrimSpace(turn.Text)
		return Extraction{
			AnswerText: &answer,
			DateTime:   ParseDateTime(answer, e.now()),
		}
	}
	return Extraction{}
}
