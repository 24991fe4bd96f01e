package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrConflict         = errors.New("streak transaction conflict")
	ErrStoreUnavailable = errors.New("profile store unavailable")
)

const DefaultMaxAttempts = 5

// ProfileStore is the slice of the profile store the tracker needs.
// SwapStreak must write next only if the stored state still equals prev,
// returning ErrConflict otherwise.
type ProfileStore interface {
	LoadStreak(ctx context.Context, userID string) (State, error)
	SwapStreak(ctx context.Context, userID string, prev, next State) error
}

type Tracker struct {
	store       ProfileStore
	location    *time.Location
	maxAttempts int
	logger      *zap.Logger
	metrics     *Metrics
}

type Option func(*Tracker)

func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.location = loc
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

func NewTracker(store ProfileStore, opts ...Option) *Tracker {
	t := &Tracker{
		store:       store,
		location:    time.UTC,
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Location() *time.Location {
	return t.location
}

// RecordActivity advances userID's streak for a qualifying log at now.
// The read-decide-write runs as a compare-and-swap and is retried on
// ErrConflict up to the configured number of attempts.
func (t *Tracker) RecordActivity(ctx context.Context, userID string, now time.Time) error {
	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		outcome, err := t.attempt(ctx, userID, now)
		if err == nil {
			t.metrics.observeOutcome(outcome)
			t.logger.Debug("streak updated",
				zap.String("user_id", userID),
				zap.String("outcome", string(outcome)),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			t.metrics.observeFailure(err)
			return err
		}

		t.metrics.observeConflict()
		t.logger.Debug("streak swap conflict, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt),
		)
		lastErr = err
	}

	t.metrics.observeFailure(lastErr)
	return fmt.Errorf("record activity for %s after %d attempts: %w", userID, t.maxAttempts, lastErr)
}

func (t *Tracker) attempt(ctx context.Context, userID string, now time.Time) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	prev, err := t.store.LoadStreak(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := prev.Validate(); err != nil {
		t.logger.Warn("stored streak is inconsistent",
			zap.String("user_id", userID),
			zap.Int("current_streak", prev.CurrentStreak),
			zap.Bool("has_last_log_date", prev.LastLogDate != nil),
		)
		return "", fmt.Errorf("load streak for %s: %w", userID, err)
	}

	next, outcome := Advance(prev, now, t.location)
	if err := t.store.SwapStreak(ctx, userID, prev, next); err != nil {
		return "", err
	}
	return outcome, nil
}
