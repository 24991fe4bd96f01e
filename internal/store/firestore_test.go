package store_test

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"dietTrackerAPI/internal/store"
)

// Runs against the Firestore emulator only. Each subtest gets its own project
// id so collections never overlap.
func newFirestoreBackend(t *testing.T) store.Backend {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	client, err := firestore.NewClient(context.Background(), "demo-"+uuid.NewString()[:8])
	require.NoError(t, err)
	s := store.NewFirestoreStoreFromClient(client, nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFirestoreBackend(t *testing.T) {
	runBackendSuite(t, newFirestoreBackend)
}
