package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dietTrackerAPI/internal/store"
	"dietTrackerAPI/internal/streak"
)

func newSQLiteBackend(t *testing.T) store.Backend {
	t.Helper()
	s, err := store.NewSQLiteMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteBackend(t *testing.T) {
	runBackendSuite(t, newSQLiteBackend)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "diet.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	p := createProfile(t, s, "user_reopen")
	last := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	require.NoError(t, s.SwapStreak(ctx, p.ID, streak.State{}, streak.State{CurrentStreak: 1, LastLogDate: &last}))
	require.NoError(t, s.Close())

	reopened, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Migrate(ctx))
	state, err := reopened.LoadStreak(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.CurrentStreak)
	assert.True(t, state.LastLogDate.Equal(last))
}

func TestSQLiteRejectsInconsistentStreak(t *testing.T) {
	testRejectsInconsistentStreak(t, newSQLiteBackend(t))
}

func TestSQLitePing(t *testing.T) {
	s := newSQLiteBackend(t)
	assert.NoError(t, s.Ping(context.Background()))
}
