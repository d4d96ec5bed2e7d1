package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "session.json")
}

func TestOpenWithoutFile(t *testing.T) {
	store, err := Open(tempPath(t))
	require.NoError(t, err)
	assert.False(t, store.Active())

	_, err = store.Token()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSaveAndToken(t *testing.T) {
	path := tempPath(t)

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(Session{Phone: "555", Token: "secret"}))

	assert.True(t, store.Active())
	assert.Equal(t, "555", store.Phone())

	token, err := store.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)

	// A fresh store sees the persisted session.
	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "555", reopened.Phone())
}

func TestClear(t *testing.T) {
	path := tempPath(t)

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(Session{Phone: "555", Token: "secret"}))
	require.NoError(t, store.Clear())

	assert.False(t, store.Active())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestWatchPicksUpRewrite(t *testing.T) {
	path := tempPath(t)

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(Session{Phone: "555", Token: "old"}))

	require.NoError(t, store.Watch())
	defer store.Close()

	// Another process logs in again.
	other, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, other.Save(Session{Phone: "555", Token: "new"}))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if token, err := store.Token(); err == nil && token.AccessToken == "new" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("watcher never picked up the rewritten session")
}

// A logout in another terminal removes the file; the loaded credential
// must be dropped, not served until the process exits.
func TestWatchDropsRemovedSession(t *testing.T) {
	path := tempPath(t)

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(Session{Phone: "555", Token: "secret"}))

	require.NoError(t, store.Watch())
	defer store.Close()

	require.NoError(t, os.Remove(path))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := store.Token(); errors.Is(err, ErrNoSession) && !store.Active() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("watcher never dropped the removed session")
}
