// Package sessions keeps server-side medication selections alive while a
// checker dialog is open. Sessions are created empty, changed by adding and
// removing names, and dropped on close or after SESSION_TTL of inactivity.
package sessions

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/giygas/ems-interactions-api/interactions"
	"github.com/giygas/ems-interactions-api/interfaces"
)

// ErrSessionNotFound is returned for unknown or expired session IDs
var ErrSessionNotFound = errors.New("selection session not found")

func newSession(now time.Time) *interfaces.Session {
	return &interfaces.Session{
		ID:        uuid.NewString(),
		Selection: interactions.NewSelectionSet(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// clone copies a session so callers never share a SelectionSet with the store
func clone(s *interfaces.Session) *interfaces.Session {
	c := *s
	c.Selection = interactions.NewSelectionSet(s.Selection.Names()...)
	return &c
}
