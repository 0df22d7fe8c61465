package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFirestoreRejectsIncompleteDescriptor(t *testing.T) {
	ctx := context.Background()

	_, err := NewFirestore(ctx, FirestoreConfig{CredentialsPath: "/tmp/creds.json"})
	assert.ErrorContains(t, err, "project id")

	_, err = NewFirestore(ctx, FirestoreConfig{ProjectID: "defesa-civil"})
	assert.ErrorContains(t, err, "credentials path")

	_, err = NewFirestore(ctx, FirestoreConfig{
		ProjectID:       "defesa-civil",
		CredentialsPath: filepath.Join(t.TempDir(), "does-not-exist.json"),
	})
	assert.ErrorContains(t, err, "not found")
}

func TestNewFirestoreReusesExistingClient(t *testing.T) {
	creds := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{}`), 0600))

	cfg := FirestoreConfig{ProjectID: "defesa-civil", CredentialsPath: creds}

	// Install an instance under this descriptor; a second init must return
	// it instead of reconnecting.
	existing := &Firestore{cfg: cfg}
	firestoreMu.Lock()
	firestoreClients[cfg] = existing
	firestoreMu.Unlock()
	t.Cleanup(func() {
		firestoreMu.Lock()
		delete(firestoreClients, cfg)
		firestoreMu.Unlock()
	})

	got, err := NewFirestore(context.Background(), cfg)
	require.NoError(t, err)
	assert.Same(t, existing, got)
}
