package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"dietTrackerAPI/internal/store"
	"dietTrackerAPI/internal/streak"
	"dietTrackerAPI/internal/types/activity"
	"dietTrackerAPI/internal/types/user"
)

// runBackendSuite exercises the behaviour every Backend shares. newBackend
// must return an empty store.
func runBackendSuite(t *testing.T, newBackend func(t *testing.T) store.Backend) {
	t.Run("profiles", func(t *testing.T) { testProfiles(t, newBackend(t)) })
	t.Run("streak swap", func(t *testing.T) { testSwapStreak(t, newBackend(t)) })
	t.Run("activities", func(t *testing.T) { testActivities(t, newBackend(t)) })
	t.Run("delete cascades", func(t *testing.T) { testDeleteCascades(t, newBackend(t)) })
	t.Run("tracker", func(t *testing.T) { testTrackerOverBackend(t, newBackend(t)) })
}

// testRejectsInconsistentStreak covers the relational backends, whose schema
// forbids a last log date without a positive streak and the reverse.
func testRejectsInconsistentStreak(t *testing.T, b store.Backend) {
	ctx := context.Background()
	p := createProfile(t, b, "user_inconsistent")
	last := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	assert.Error(t, b.SwapStreak(ctx, p.ID, streak.State{}, streak.State{CurrentStreak: 0, LastLogDate: &last}))
	assert.Error(t, b.SwapStreak(ctx, p.ID, streak.State{}, streak.State{CurrentStreak: 2}))

	state, err := b.LoadStreak(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.CurrentStreak)
	assert.Nil(t, state.LastLogDate)
}

func createProfile(t *testing.T, b store.Backend, clerkID string) *user.Profile {
	t.Helper()
	p := &user.Profile{
		ClerkID:   clerkID,
		Email:     clerkID + "@example.com",
		Username:  clerkID,
		FirstName: "Ada",
	}
	require.NoError(t, b.CreateProfile(context.Background(), p))
	require.NotEmpty(t, p.ID)
	return p
}

func testProfiles(t *testing.T, b store.Backend) {
	ctx := context.Background()
	created := createProfile(t, b, "user_profiles")

	got, err := b.GetProfileByClerkID(ctx, "user_profiles")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "user_profiles@example.com", got.Email)
	assert.Zero(t, got.CurrentStreak)
	assert.Nil(t, got.LastLogDate)

	dup := &user.Profile{ClerkID: "user_profiles", Email: "other@example.com", Username: "other"}
	assert.ErrorIs(t, b.CreateProfile(ctx, dup), user.ErrDuplicateProfile)

	_, err = b.GetProfileByClerkID(ctx, "user_missing")
	assert.ErrorIs(t, err, streak.ErrProfileNotFound)

	updated, err := b.UpdateProfileByClerkID(ctx, "user_profiles", &user.UpdateProfileRequest{LastName: "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "Lovelace", updated.LastName)

	_, err = b.UpdateProfileByClerkID(ctx, "user_missing", &user.UpdateProfileRequest{FirstName: "x"})
	assert.ErrorIs(t, err, streak.ErrProfileNotFound)
}

func testSwapStreak(t *testing.T, b store.Backend) {
	ctx := context.Background()
	p := createProfile(t, b, "user_swap")

	initial, err := b.LoadStreak(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, streak.State{}, initial)

	// Sub-microsecond precision must not break the next compare-and-swap.
	first := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	next := streak.State{CurrentStreak: 1, LastLogDate: &first}
	require.NoError(t, b.SwapStreak(ctx, p.ID, initial, next))

	loaded, err := b.LoadStreak(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CurrentStreak)
	require.NotNil(t, loaded.LastLogDate)
	assert.True(t, loaded.LastLogDate.Equal(first.Truncate(time.Microsecond)))

	second := first.Add(24 * time.Hour)
	assert.ErrorIs(t, b.SwapStreak(ctx, p.ID, initial, streak.State{CurrentStreak: 2, LastLogDate: &second}), streak.ErrConflict)
	require.NoError(t, b.SwapStreak(ctx, p.ID, loaded, streak.State{CurrentStreak: 2, LastLogDate: &second}))

	missing := uuid.NewString()
	_, err = b.LoadStreak(ctx, missing)
	assert.ErrorIs(t, err, streak.ErrProfileNotFound)
	assert.ErrorIs(t, b.SwapStreak(ctx, missing, streak.State{}, next), streak.ErrProfileNotFound)
}

func testActivities(t *testing.T, b store.Backend) {
	ctx := context.Background()
	p := createProfile(t, b, "user_activities")
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	entries := []activity.Entry{
		{UserID: p.ID, Kind: activity.KindFood, Name: "Oats", MealType: activity.MealBreakfast, Calories: 350, ProteinG: 12, CarbsG: 60, FatG: 6, LoggedAt: day.Add(8 * time.Hour)},
		{UserID: p.ID, Kind: activity.KindWater, WaterML: 500, LoggedAt: day.Add(9 * time.Hour)},
		{UserID: p.ID, Kind: activity.KindWorkout, Name: "Run", Calories: 300, DurationMinutes: 30, LoggedAt: day.Add(18 * time.Hour)},
		{UserID: p.ID, Kind: activity.KindQuickAdd, MealType: activity.MealSnack, Calories: 120, LoggedAt: day.Add(26 * time.Hour)},
	}
	for i := range entries {
		require.NoError(t, b.InsertActivity(ctx, &entries[i]))
		assert.NotEqual(t, uuid.Nil, entries[i].ID)
	}

	got, err := b.ListActivities(ctx, p.ID, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, activity.KindFood, got[0].Kind)
	assert.Equal(t, activity.MealBreakfast, got[0].MealType)
	assert.Equal(t, 60.0, got[0].CarbsG)
	assert.Equal(t, 500, got[1].WaterML)
	assert.Equal(t, 30, got[2].DurationMinutes)
	assert.True(t, got[2].LoggedAt.Equal(day.Add(18*time.Hour)))

	sofia := time.FixedZone("EET", 2*60*60)
	precise := &activity.Entry{UserID: p.ID, Kind: activity.KindWater, WaterML: 200, LoggedAt: time.Date(2026, 3, 5, 12, 0, 0, 123456789, sofia)}
	require.NoError(t, b.InsertActivity(ctx, precise))
	assert.True(t, precise.LoggedAt.Equal(time.Date(2026, 3, 5, 10, 0, 0, 123456000, time.UTC)))
	assert.Equal(t, time.UTC, precise.LoggedAt.Location())
	stored, err := b.ListActivities(ctx, p.ID, day.Add(72*time.Hour), day.Add(96*time.Hour))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].LoggedAt.Equal(precise.LoggedAt))

	orphan := &activity.Entry{UserID: uuid.NewString(), Kind: activity.KindWater, WaterML: 250, LoggedAt: day}
	assert.ErrorIs(t, b.InsertActivity(ctx, orphan), streak.ErrProfileNotFound)
}

func testDeleteCascades(t *testing.T, b store.Backend) {
	ctx := context.Background()
	p := createProfile(t, b, "user_delete")
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.InsertActivity(ctx, &activity.Entry{UserID: p.ID, Kind: activity.KindWater, WaterML: 250, LoggedAt: now}))

	require.NoError(t, b.DeleteProfileByClerkID(ctx, "user_delete"))

	_, err := b.GetProfileByClerkID(ctx, "user_delete")
	assert.ErrorIs(t, err, streak.ErrProfileNotFound)
	_, err = b.LoadStreak(ctx, p.ID)
	assert.ErrorIs(t, err, streak.ErrProfileNotFound)

	left, err := b.ListActivities(ctx, p.ID, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.ErrorIs(t, b.DeleteProfileByClerkID(ctx, "user_delete"), streak.ErrProfileNotFound)
}

func testTrackerOverBackend(t *testing.T, b store.Backend) {
	ctx := context.Background()
	p := createProfile(t, b, "user_tracker")
	tracker := streak.NewTracker(b, streak.WithMaxAttempts(50))
	dayTwo := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, tracker.RecordActivity(ctx, p.ID, dayTwo.Add(-14*time.Hour)))

	var g errgroup.Group
	for _, hour := range []int{12, 15, 9, 21} {
		now := dayTwo.Add(time.Duration(hour) * time.Hour)
		g.Go(func() error {
			return tracker.RecordActivity(ctx, p.ID, now)
		})
	}
	require.NoError(t, g.Wait())

	state, err := b.LoadStreak(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, state.CurrentStreak)
	require.NotNil(t, state.LastLogDate)
	assert.True(t, state.LastLogDate.Equal(dayTwo.Add(21*time.Hour)), "last log %s", state.LastLogDate)

	assert.ErrorIs(t, tracker.RecordActivity(ctx, uuid.NewString(), dayTwo), streak.ErrProfileNotFound)
}
