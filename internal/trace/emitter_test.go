package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterPayloadShapes(t *testing.T) {
	store := NewMemoryStore(nil)
	defer store.Close()
	em := NewEmitter(store)

	require.NoError(t, em.EmitLLMCall("gemini-2.0-flash", map[string]any{"iteration": 1}))
	require.NoError(t, em.EmitToolCall("search_issues", map[string]any{"query": "auth"}, "tc-1"))
	require.NoError(t, em.EmitObservation("plain text result", "tc-1"))
	require.NoError(t, em.EmitObservation(map[string]any{"title": "login", "body": "oauth"}, ""))
	require.NoError(t, em.EmitArtifact("/tmp/PRD.md", "document", "PRD"))
	require.NoError(t, em.EmitDecision("run_start", map[string]any{"run_id": "r1"}))

	events, err := store.Events()
	require.NoError(t, err)
	require.Len(t, events, 6)

	t.Run("llm call carries model and metadata", func(t *testing.T) {
		assert.Equal(t, TypeLLMCall, events[0].Type)
		assert.Equal(t, "gemini-2.0-flash", events[0].PayloadString("model"))
		assert.Equal(t, 1, events[0].Payload["iteration"])
	})

	t.Run("string observations are wrapped in an object", func(t *testing.T) {
		assert.Equal(t, TypeObservation, events[2].Type)
		result, ok := events[2].Payload["result"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "plain text result", result["content"])
		assert.Equal(t, "tc-1", events[2].PayloadString("tool_call_id"))
	})

	t.Run("map observations pass through", func(t *testing.T) {
		result, ok := events[3].Payload["result"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "login", result["title"])
		_, hasID := events[3].Payload["tool_call_id"]
		assert.False(t, hasID, "empty tool_call_id is omitted")
	})

	t.Run("artifact and decision payloads", func(t *testing.T) {
		assert.Equal(t, TypeArtifactCreated, events[4].Type)
		assert.Equal(t, "PRD", events[4].PayloadString("name"))
		assert.Equal(t, TypeDecision, events[5].Type)
		assert.Equal(t, "run_start", events[5].PayloadString("type"))
	})
}
