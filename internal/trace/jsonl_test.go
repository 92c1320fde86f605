package trace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJSONLStore(t *testing.T) *JSONLStore {
	t.Helper()
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "trace", "trace.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestJSONLStoreAppendAndRead(t *testing.T) {
	store := newTestJSONLStore(t)

	require.NoError(t, store.Append(New(TypeLLMCall, map[string]any{"model": "gemini-2.0-flash"})))
	require.NoError(t, store.Append(New(TypeToolCall, map[string]any{"tool": "search_issues"})))
	require.NoError(t, store.Append(New(TypeObservation, map[string]any{"result": map[string]any{"content": "found"}})))

	events, err := store.Events()
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, TypeLLMCall, events[0].Type)
	assert.Equal(t, TypeToolCall, events[1].Type)
	assert.Equal(t, TypeObservation, events[2].Type)
	assert.Equal(t, "gemini-2.0-flash", events[0].PayloadString("model"))

	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp),
			"append order must equal timestamp order")
	}
}

func TestJSONLStoreEmptyWhenFileMissing(t *testing.T) {
	store := newTestJSONLStore(t)

	events, err := store.Events()
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestJSONLStoreSkipsPartialLines(t *testing.T) {
	store := newTestJSONLStore(t)

	require.NoError(t, store.Append(New(TypeToolCall, map[string]any{"tool": "read_file"})))
	require.NoError(t, store.Append(New(TypeDecision, map[string]any{"type": "run_start"})))

	// Simulate a crashed writer leaving a truncated record.
	f, err := os.OpenFile(store.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"type":"observation","time`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, err := store.Events()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, TypeToolCall, events[0].Type)
	assert.Equal(t, TypeDecision, events[1].Type)
}

func TestJSONLStoreEventsRestartable(t *testing.T) {
	store := newTestJSONLStore(t)

	require.NoError(t, store.Append(New(TypeToolCall, nil)))

	first, err := store.Events()
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, store.Append(New(TypeObservation, nil)))

	second, err := store.Events()
	require.NoError(t, err)
	assert.Len(t, second, 2, "a later read sees events appended since the previous read")
}

func TestJSONLStoreCloseIdempotent(t *testing.T) {
	store := newTestJSONLStore(t)
	require.NoError(t, store.Append(New(TypeDecision, nil)))

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestLoadEvents(t *testing.T) {
	store := newTestJSONLStore(t)
	require.NoError(t, store.Append(New(TypeArtifactCreated, map[string]any{"path": "PRD.md"})))
	require.NoError(t, store.Close())

	events, err := LoadEvents(store.Path())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "PRD.md", events[0].PayloadString("path"))
}
