package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"dietTrackerAPI/internal/streak"
	"dietTrackerAPI/internal/types/activity"
	"dietTrackerAPI/internal/types/user"
)

type fakeProfiles struct {
	mu      sync.Mutex
	byClerk map[string]*user.Profile
	getErr  error
	created int
	deleted []string
}

func newFakeProfiles(profiles ...*user.Profile) *fakeProfiles {
	f := &fakeProfiles{byClerk: make(map[string]*user.Profile)}
	for _, p := range profiles {
		f.byClerk[p.ClerkID] = p
	}
	return f
}

func (f *fakeProfiles) CreateProfile(ctx context.Context, profile *user.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byClerk[profile.ClerkID]; ok {
		return user.ErrDuplicateProfile
	}
	profile.ID = uuid.NewString()
	f.byClerk[profile.ClerkID] = profile
	f.created++
	return nil
}

func (f *fakeProfiles) GetProfileByClerkID(ctx context.Context, clerkID string) (*user.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.byClerk[clerkID]
	if !ok {
		return nil, streak.ErrProfileNotFound
	}
	clone := *p
	return &clone, nil
}

func (f *fakeProfiles) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byClerk[clerkID]
	if !ok {
		return nil, streak.ErrProfileNotFound
	}
	if req.Username != "" {
		p.Username = req.Username
	}
	if req.FirstName != "" {
		p.FirstName = req.FirstName
	}
	clone := *p
	return &clone, nil
}

func (f *fakeProfiles) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byClerk[clerkID]; !ok {
		return streak.ErrProfileNotFound
	}
	delete(f.byClerk, clerkID)
	f.deleted = append(f.deleted, clerkID)
	return nil
}

type fakeActivities struct {
	mu        sync.Mutex
	entries   []activity.Entry
	insertErr error
	lastFrom  time.Time
	lastTo    time.Time
}

func (f *fakeActivities) InsertActivity(ctx context.Context, entry *activity.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	entry.ID = uuid.New()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeActivities) ListActivities(ctx context.Context, userID string, from, to time.Time) ([]activity.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFrom, f.lastTo = from, to
	var out []activity.Entry
	for _, e := range f.entries {
		if e.UserID == userID && !e.LoggedAt.Before(from) && e.LoggedAt.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordCall struct {
	userID string
	now    time.Time
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordCall
	err   error
}

func (f *fakeRecorder) RecordActivity(ctx context.Context, userID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordCall{userID: userID, now: now})
	return f.err
}

var errBoom = errors.New("boom")
