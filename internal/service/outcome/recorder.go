package outcome

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ai-voice-bridge-service/internal/models"
	"ai-voice-bridge-service/internal/observability/metrics"
	"ai-voice-bridge-service/internal/schema"
)

// Inserter is the part of the outcome store the recorder writes to.
type Inserter interface {
	Insert(ctx context.Context, o *models.Outcome) (string, error)
}

// EventPublisher announces stored outcomes.
type EventPublisher interface {
	PublishOutcome(ctx context.Context, key string, event any) error
}

// Recorder validates, stores and announces finalized outcomes.
type Recorder struct {
	store     Inserter
	publisher EventPublisher
	validator *schema.Validator
	metrics   *metrics.Metrics
}

// NewRecorder creates a recorder. publisher may be nil.
func NewRecorder(store Inserter, publisher EventPublisher) *Recorder {
	return &Recorder{
		store:     store,
		publisher: publisher,
		validator: schema.New(),
		metrics:   metrics.DefaultMetrics,
	}
}

// Persist stores o and returns the generated record id. A publish failure
// after a successful insert is logged and does not fail the call.
func (r *Recorder) Persist(ctx context.Context, o models.Outcome) (string, error) {
	start := time.Now()
	logger := log.With().
		Str("component", "outcome-recorder").
		Str("sessionId", o.SessionID).
		Logger()

	if err := r.validator.Validate(&o); err != nil {
		r.metrics.RecordOutcome("invalid", "", time.Since(start).Seconds())
		return "", err
	}

	id, err := r.store.Insert(ctx, &o)
	if err != nil {
		r.metrics.RecordOutcome("error", "", time.Since(start).Seconds())
		return "", fmt.Errorf("insert outcome: %w", err)
	}
	r.metrics.RecordOutcome("stored", string(o.PaymentIntent), time.Since(start).Seconds())

	logger.Info().
		Str("recordId", id).
		Str("callStatus", string(o.CallStatus)).
		Str("paymentIntent", string(o.PaymentIntent)).
		Msg("Outcome stored")

	if r.publisher != nil {
		ev := models.OutcomeEvent{
			EventType: models.EventTypeOutcome,
			RecordID:  id,
			Timestamp: time.Now().UnixMilli(),
			Outcome:   o,
		}
		if err := r.publisher.PublishOutcome(ctx, o.SessionID, ev); err != nil {
			logger.Warn().Err(err).Str("recordId", id).Msg("Failed to publish outcome event")
		}
	}
	return id, nil
}

// IsInvalid reports whether err came from outcome validation.
func IsInvalid(err error) bool {
	return errors.Is(err, schema.ErrInvalidOutcome)
}
