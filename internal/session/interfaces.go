// Package session tracks where each chat user is in the two-phase
// image-then-prompt conversation. Entries live behind a [Store] so the
// orchestrator can run with an in-memory map or a shared Redis instance.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a user has no stored entry.
var ErrNotFound = errors.New("not found")

// ErrCorrupted is returned when a stored entry cannot be decoded.
var ErrCorrupted = errors.New("session entry corrupted")

// Phase is a user's position in the conversation.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAwaitingImage  Phase = "awaiting_image"
	PhaseAwaitingPrompt Phase = "awaiting_prompt"
)

// Waiting reports whether the phase has a running timeout window.
func (p Phase) Waiting() bool {
	return p == PhaseAwaitingImage || p == PhaseAwaitingPrompt
}

// Entry is one user's conversation state. A user has at most one Entry, so
// they can never be awaiting an image and a prompt at the same time.
type Entry struct {
	Phase    Phase     `json:"phase"`
	Since    time.Time `json:"since"`               // when the current wait began
	ImageURL string    `json:"image_url,omitempty"` // hosted image, set once uploaded
}

// idle is the zero-state entry reported for users with nothing stored.
func idle() Entry {
	return Entry{Phase: PhaseIdle}
}

// Store persists entries by user id. Implementations must be safe for
// concurrent use.
type Store interface {
	// Load returns the entry for userID, or ErrNotFound.
	Load(ctx context.Context, userID string) (Entry, error)

	// Save stores the entry for userID, replacing any previous one.
	Save(ctx context.Context, userID string, entry Entry) error

	// Delete removes the entry for userID. Deleting a missing entry is not an error.
	Delete(ctx context.Context, userID string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error
}
