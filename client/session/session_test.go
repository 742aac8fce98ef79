package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateIsStableWithinSession(t *testing.T) {
	store := NewMemoryStore()

	first, err := LoadOrCreateClientTempID(store, ClientTempIDKey)
	require.NoError(t, err)
	again, err := LoadOrCreateClientTempID(store, ClientTempIDKey)
	require.NoError(t, err)

	assert.Equal(t, first, again)
}

func TestClearIssuesFreshToken(t *testing.T) {
	store := NewMemoryStore()

	first, err := LoadOrCreateClientTempID(store, ClientTempIDKey)
	require.NoError(t, err)
	require.NoError(t, ClearClientTempID(store, ClientTempIDKey))

	second, err := LoadOrCreateClientTempID(store, ClientTempIDKey)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir, "wizard")
	require.NoError(t, err)
	id, err := LoadOrCreateClientTempID(store, ClientTempIDKey)
	require.NoError(t, err)

	reopened, err := NewFileStore(dir, "wizard")
	require.NoError(t, err)
	got, ok, err := reopened.Get(ClientTempIDKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	require.NoError(t, reopened.Delete(ClientTempIDKey))
	_, ok, err = store.Get(ClientTempIDKey)
	require.NoError(t, err)
	assert.False(t, ok)
}
