package packet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/evidence"
	"sentinel/internal/intervention"
	"sentinel/internal/trace"
)

func TestGeneratorWritesNumberedPackets(t *testing.T) {
	dir := t.TempDir()
	store := trace.NewMemoryStore(nil)
	defer store.Close()

	g := evidence.NewGraph(0.2)
	g.AddClaim(evidence.Claim{
		ID:       "PRD-abc12345-1",
		Text:     "Replace the legacy session system with OAuth for all users",
		Section:  "Goal",
		Severity: evidence.SeverityHigh,
		Artifact: "PRD",
	})
	g.AddItem(evidence.Item{ID: "ev-1", Text: "OAuth discussion", SourceRef: "issue:7"})

	gen := NewGenerator(dir, "run-42")
	iv := intervention.Intervention{
		Type:               intervention.TypeEscalate,
		TargetID:           "uncovered_claims",
		Rationale:          "3 HIGH severity claims lack evidence",
		SuggestedNextSteps: []string{"Review the uncovered claims"},
	}
	ctx := Context{Repo: "acme/widgets", Milestone: "v1.0", IssueCount: 12}

	first, err := gen.Write(iv, g, store, ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "packet_0.md"), first)

	second, err := gen.Write(iv, g, store, ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "packet_1.md"), second, "each escalation gets its own packet")

	content, err := os.ReadFile(first)
	require.NoError(t, err)
	body := string(content)
	assert.Contains(t, body, "# Decision Packet 0")
	assert.Contains(t, body, "run-42")
	assert.Contains(t, body, "acme/widgets")
	assert.Contains(t, body, "PRD-abc12345-1")
	assert.Contains(t, body, "3 HIGH severity claims lack evidence")
	assert.Contains(t, body, "issue:7")
	assert.Contains(t, body, "Review the uncovered claims")

	events, err := store.Events()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, trace.TypeEscalationPacket, events[0].Type)
	assert.Equal(t, first, events[0].PayloadString("packet_path"))
}

func TestGeneratorEmptyGraph(t *testing.T) {
	dir := t.TempDir()
	store := trace.NewMemoryStore(nil)
	defer store.Close()

	gen := NewGenerator(dir, "run-1")
	path, err := gen.Write(intervention.Intervention{
		Type:      intervention.TypeEscalate,
		Rationale: "agent made 60 tool calls but only bound 0 evidence items",
	}, evidence.NewGraph(0.2), store, Context{})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "No uncovered HIGH severity claims.")
	assert.Contains(t, string(content), "No evidence gathered yet.")
	assert.Contains(t, string(content), "N/A")
}
