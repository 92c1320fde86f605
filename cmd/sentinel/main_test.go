package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/config"
	"sentinel/internal/trace"
)

// cfg is normally populated by the root command's PersistentPreRunE; tests
// that exercise the run-loading helpers install the defaults directly.
func useDefaultConfig(t *testing.T) {
	t.Helper()
	prev := cfg
	cfg = config.DefaultConfig()
	t.Cleanup(func() { cfg = prev })
}

func writeRunArtifact(t *testing.T, runDir, name, content string) {
	t.Helper()
	dir := filepath.Join(runDir, "artifacts")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadRunSQLiteBackend(t *testing.T) {
	useDefaultConfig(t)
	runDir := t.TempDir()

	store, err := trace.NewSQLiteStore(filepath.Join(runDir, "trace", "trace.db"))
	require.NoError(t, err)
	require.NoError(t, store.Append(trace.New(trace.TypeToolCall, map[string]any{"tool": "fetch_bundle"})))
	require.NoError(t, store.Append(trace.New(trace.TypeArtifactCreated, map[string]any{"name": "PRD"})))
	require.NoError(t, store.Close())

	writeRunArtifact(t, runDir, "PRD.md", "# PRD\n\n## Goals\n\nShip it.\n")

	events, artifacts, err := loadRun(runDir)
	require.NoError(t, err)
	require.Len(t, events, 2, "a sqlite-backed run must load its recorded events")
	assert.Equal(t, trace.TypeToolCall, events[0].Type)
	assert.Equal(t, trace.TypeArtifactCreated, events[1].Type)
	assert.Contains(t, artifacts, "PRD")
}

func TestLoadRunJSONLBackend(t *testing.T) {
	useDefaultConfig(t)
	runDir := t.TempDir()

	store, err := trace.NewJSONLStore(filepath.Join(runDir, "trace", "trace.jsonl"))
	require.NoError(t, err)
	require.NoError(t, store.Append(trace.New(trace.TypeLLMCall, map[string]any{"model": "offline"})))
	require.NoError(t, store.Close())

	events, artifacts, err := loadRun(runDir)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, trace.TypeLLMCall, events[0].Type)
	assert.Empty(t, artifacts)
}

func TestLoadRunWithoutTraceFails(t *testing.T) {
	useDefaultConfig(t)

	_, _, err := loadRun(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trace found")
}

func TestSummarizeRunCountsFromRecordedTrace(t *testing.T) {
	useDefaultConfig(t)
	runDir := t.TempDir()

	store, err := trace.NewJSONLStore(filepath.Join(runDir, "trace", "trace.jsonl"))
	require.NoError(t, err)
	require.NoError(t, store.Append(trace.New(trace.TypeToolCall, nil)))
	require.NoError(t, store.Append(trace.New(trace.TypeArtifactCreated, map[string]any{"name": "PRD"})))
	require.NoError(t, store.Append(trace.New(trace.TypeIntervention, map[string]any{
		"type": "REQUEST_EVIDENCE",
	})))
	require.NoError(t, store.Close())

	writeRunArtifact(t, runDir, "PRD.md", `# PRD

## Goals

Support OAuth login for enterprise customers.

## Metrics

Login success stays above 99% each week.

## Tradeoffs

Speed over completeness for this release.
`)

	summary, err := summarizeRun(runDir)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.EventCount)
	assert.Equal(t, 1, summary.ArtifactCount)
	assert.Equal(t, 1, summary.InterventionCount, "interventions come from the recorded trace")
	assert.Positive(t, summary.TotalClaims)
}
