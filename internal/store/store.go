// Package store persists session outcomes.
package store

import (
	"context"
	"errors"

	"ai-voice-bridge-service/internal/models"
)

// ErrNotFound is returned when a record id is unknown.
var ErrNotFound = errors.New("record not found")

// DefaultListLimit and MaxListLimit bound List queries.
const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// Store defines the outcome document store.
type Store interface {
	// Insert assigns an id and creation time to o and stores it.
	Insert(ctx context.Context, o *models.Outcome) (string, error)

	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]models.Outcome, error)

	// Get returns one record by id.
	Get(ctx context.Context, id string) (models.Outcome, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// ClampLimit applies the default and maximum list limits.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
