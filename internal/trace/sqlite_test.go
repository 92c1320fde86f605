package trace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(New(TypeLLMCall, map[string]any{"model": "gemini-2.0-flash"})))
	require.NoError(t, store.Append(New(TypeToolCall, map[string]any{"tool": "github_get_issues"})))

	events, err := store.Events()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, TypeLLMCall, events[0].Type)
	assert.Equal(t, TypeToolCall, events[1].Type)
	assert.Equal(t, "github_get_issues", events[1].PayloadString("tool"))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(New(TypeDecision, map[string]any{"type": "run_start"})))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.Events()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TypeDecision, events[0].Type)
}

func TestSQLiteStoreCloseIdempotent(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestMemoryStoreSeedAndAppend(t *testing.T) {
	seed := []Event{New(TypeToolCall, nil), New(TypeObservation, nil)}
	store := NewMemoryStore(seed)
	defer store.Close()

	require.NoError(t, store.Append(New(TypeIntervention, nil)))

	events, err := store.Events()
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, TypeIntervention, events[2].Type)

	require.NoError(t, store.Close())
	assert.ErrorIs(t, store.Append(New(TypeDecision, nil)), ErrStoreClosed)
}
