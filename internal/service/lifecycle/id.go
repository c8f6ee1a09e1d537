package lifecycle

import "github.com/google/uuid"

// NewSessionID returns a random session id.
func NewSessionID() string {
	return "sess-" + uuid.NewString()
}
