// Package store holds the profile and activity persistence backends.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dietTrackerAPI/internal/config"
	"dietTrackerAPI/internal/streak"
	"dietTrackerAPI/internal/types/activity"
	"dietTrackerAPI/internal/types/user"
)

// Backend is implemented by every persistence driver.
type Backend interface {
	streak.ProfileStore

	CreateProfile(ctx context.Context, profile *user.Profile) error
	GetProfileByClerkID(ctx context.Context, clerkID string) (*user.Profile, error)
	UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.Profile, error)
	DeleteProfileByClerkID(ctx context.Context, clerkID string) error

	InsertActivity(ctx context.Context, entry *activity.Entry) error
	ListActivities(ctx context.Context, userID string, from, to time.Time) ([]activity.Entry, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	case config.DriverSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case config.DriverFirestore:
		return NewFirestoreStore(ctx, FirestoreOptions{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentialsFile,
			CredentialsJSON: cfg.FirebaseCredentialsJSON,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// unavailable marks a driver failure as retryable by the caller.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, streak.ErrStoreUnavailable, err)
}

// Instants are persisted at microsecond precision in UTC so a value read back
// compares equal to the one the compare-and-swap was built from.
func storedInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func storedInstantPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := storedInstant(*t)
	return &v
}

func applyProfileUpdate(profile *user.Profile, req *user.UpdateProfileRequest) {
	if req.Username != "" {
		profile.Username = req.Username
	}
	if req.FirstName != "" {
		profile.FirstName = req.FirstName
	}
	if req.LastName != "" {
		profile.LastName = req.LastName
	}
	if req.ImageURL != "" {
		profile.ImageURL = req.ImageURL
	}
}
