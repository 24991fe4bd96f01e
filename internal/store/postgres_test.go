package store_test

import (
	"context"
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"dietTrackerAPI/internal/store"
)

// TEST_DATABASE_URL must point at a disposable database; the suite truncates it.
func newPostgresBackend(t *testing.T) store.Backend {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := store.NewPostgresStore(ctx, dbURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, store.TruncatePostgres(ctx, s))
	return s
}

func TestPostgresBackend(t *testing.T) {
	runBackendSuite(t, newPostgresBackend)
}

func TestPostgresMigrateIsIdempotent(t *testing.T) {
	s := newPostgresBackend(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestPostgresRejectsInconsistentStreak(t *testing.T) {
	testRejectsInconsistentStreak(t, newPostgresBackend(t))
}

func TestLoadEmbeddedMigrationsOrdering(t *testing.T) {
	files := fstest.MapFS{
		"10_later.sql":  {Data: []byte("SELECT 10;")},
		"2_second.sql":  {Data: []byte("SELECT 2;")},
		"0001_init.sql": {Data: []byte("SELECT 1;")},
		"README.md":     {Data: []byte("ignored")},
	}

	names, err := store.EmbeddedMigrationNames(files)
	require.NoError(t, err)
	require.Equal(t, []string{"0001_init.sql", "2_second.sql", "10_later.sql"}, names)

	files["02_dup.sql"] = &fstest.MapFile{Data: []byte("SELECT 2;")}
	files["2_dup.sql"] = &fstest.MapFile{Data: []byte("SELECT 2;")}
	_, err = store.EmbeddedMigrationNames(files)
	require.Error(t, err)
}
