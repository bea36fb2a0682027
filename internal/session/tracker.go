package session

import (
	"context"
	"errors"
	"time"

	"github.com/Iron-Ham/image2video/internal/logging"
)

// DefaultTimeout is how long a user may take to send the next message.
const DefaultTimeout = 180 * time.Second

// Tracker applies the conversation rules on top of a Store: phase changes,
// timestamps, and lazy expiry. Expired waits are evicted the next time the
// user is looked up; there is no background sweeper.
//
// Callers that read, decide, then write for one user should hold Lock(userID)
// across the whole sequence.
type Tracker struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	locks   *KeyedMutex
	logger  *logging.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets the Tracker's logger.
func WithLogger(logger *logging.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker creates a Tracker over store. A non-positive timeout selects
// DefaultTimeout.
func NewTracker(store Store, timeout time.Duration, opts ...TrackerOption) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := &Tracker{
		store:   store,
		timeout: timeout,
		now:     time.Now,
		locks:   NewKeyedMutex(),
		logger:  logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.WithComponent("session")
	return t
}

// Timeout returns the wait window.
func (t *Tracker) Timeout() time.Duration {
	return t.timeout
}

// Lock serializes work for one user and returns the release function.
func (t *Tracker) Lock(userID string) (unlock func()) {
	return t.locks.Lock(userID)
}

// Current returns the user's entry. A wait older than the timeout is
// evicted, reported as idle, and flagged with expired=true.
func (t *Tracker) Current(ctx context.Context, userID string) (entry Entry, expired bool, err error) {
	e, err := t.store.Load(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return idle(), false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}

	if !e.Phase.Waiting() {
		return idle(), false, nil
	}

	if t.now().Sub(e.Since) > t.timeout {
		if err := t.store.Delete(ctx, userID); err != nil {
			return Entry{}, false, err
		}
		t.logger.Info("session expired",
			"user_id", userID,
			"phase", string(e.Phase),
			"waited", t.now().Sub(e.Since).String(),
		)
		return idle(), true, nil
	}
	return e, false, nil
}

// Peek is Current without side effects: an expired wait is reported as idle
// but stays in the store until the next Current.
func (t *Tracker) Peek(ctx context.Context, userID string) (Entry, error) {
	e, err := t.store.Load(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return idle(), nil
	}
	if err != nil {
		return Entry{}, err
	}
	if !e.Phase.Waiting() || t.now().Sub(e.Since) > t.timeout {
		return idle(), nil
	}
	return e, nil
}

// Begin starts a fresh wait for an image, discarding any earlier state.
func (t *Tracker) Begin(ctx context.Context, userID string) error {
	return t.store.Save(ctx, userID, Entry{
		Phase: PhaseAwaitingImage,
		Since: t.now(),
	})
}

// AwaitPrompt records the uploaded image and starts the wait for a prompt.
func (t *Tracker) AwaitPrompt(ctx context.Context, userID, imageURL string) error {
	return t.store.Save(ctx, userID, Entry{
		Phase:    PhaseAwaitingPrompt,
		Since:    t.now(),
		ImageURL: imageURL,
	})
}

// Touch restarts the timeout window of entry, keeping its phase and data.
func (t *Tracker) Touch(ctx context.Context, userID string, entry Entry) error {
	entry.Since = t.now()
	return t.store.Save(ctx, userID, entry)
}

// Reset returns the user to idle and drops their session data.
func (t *Tracker) Reset(ctx context.Context, userID string) error {
	return t.store.Delete(ctx, userID)
}

// ResetAll drops every user's state.
func (t *Tracker) ResetAll(ctx context.Context) error {
	return t.store.Clear(ctx)
}
