// Package schema validates records before they are persisted or published.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ai-voice-bridge-service/internal/models"
)

// ErrInvalidOutcome wraps every validation failure.
var ErrInvalidOutcome = errors.New("invalid outcome")

var (
	isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	hhmm    = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// Validator checks Outcome records.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate returns nil or an error wrapping ErrInvalidOutcome that lists
// every problem found.
func (v *Validator) Validate(o *models.Outcome) error {
	var problems []string

	if o.SessionID == "" {
		problems = append(problems, "sessionId is required")
	}
	if !o.PaymentIntent.Valid() {
		problems = append(problems, fmt.Sprintf("unknown paymentIntent %q", o.PaymentIntent))
	}
	if !o.CallStatus.Valid() {
		problems = append(problems, fmt.Sprintf("unknown callStatus %q", o.CallStatus))
	}
	if o.PaymentAnswerCaptured && o.PaymentRawResponse == nil {
		problems = append(problems, "paymentAnswerCaptured without paymentRawResponse")
	}
	if o.DateISO != nil && !isoDate.MatchString(*o.DateISO) {
		problems = append(problems, fmt.Sprintf("dateISO %q is not YYYY-MM-DD", *o.DateISO))
	}
	if o.TimeHHmm != nil && !hhmm.MatchString(*o.TimeHHmm) {
		problems = append(problems, fmt.Sprintf("timeHHmm %q is not HH:MM", *o.TimeHHmm))
	}
	if !o.StartedAt.IsZero() && !o.EndedAt.IsZero() && o.EndedAt.Before(o.StartedAt) {
		problems = append(problems, "endedAt precedes startedAt")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOutcome, strings.Join(problems, "; "))
	}
	return nil
}
