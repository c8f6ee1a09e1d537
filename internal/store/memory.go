package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai-voice-bridge-service/internal/models"
)

// Memory is an in-process Store used when no MongoDB URI is configured.
type Memory struct {
	mu      sync.RWMutex
	records []models.Outcome
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Insert(_ context.Context, o *models.Outcome) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o.ID = uuid.NewString()
	o.CreatedAt = time.Now().UTC()
	m.records = append(m.records, *o)
	return o.ID, nil
}

func (m *Memory) List(_ context.Context, limit int) ([]models.Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = ClampLimit(limit)
	out := make([]models.Outcome, 0, min(limit, len(m.records)))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, id string) (models.Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Outcome{}, ErrNotFound
}

func (m *Memory) Close(context.Context) error {
	return nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
