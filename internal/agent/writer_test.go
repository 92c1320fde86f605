package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/github"
	"sentinel/internal/trace"
)

func testBundle() *github.Bundle {
	return &github.Bundle{
		Repo: "acme/widgets",
		Milestone: github.Milestone{
			Number: 3, Title: "Auth Revamp", Description: "OAuth everywhere",
		},
		Issues: []github.Issue{
			{Number: 10, Title: "Add OAuth login", Body: "Support enterprise SSO", State: "open"},
			{Number: 11, Title: "Rotate tokens", State: "closed"},
		},
	}
}

func TestOfflineWriterProducesBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	store := trace.NewMemoryStore(nil)
	defer store.Close()

	writer := NewWriter(testBundle(), dir, trace.NewEmitter(store), nil)
	artifacts, err := writer.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	prd, err := os.ReadFile(artifacts["PRD"])
	require.NoError(t, err)
	body := string(prd)
	assert.Contains(t, body, "# PRD: Auth Revamp")
	assert.Contains(t, body, "## Goals")
	assert.Contains(t, body, "## Metrics")
	assert.Contains(t, body, "## Risks")
	assert.Contains(t, body, "#10 Add OAuth login")

	plan, err := os.ReadFile(artifacts["LAUNCH_PLAN"])
	require.NoError(t, err)
	assert.Contains(t, string(plan), "## Rollout")
	assert.Contains(t, string(plan), "## Tradeoffs")
}

func TestOfflineWriterIsDeterministic(t *testing.T) {
	run := func() (string, string) {
		dir := t.TempDir()
		writer := NewWriter(testBundle(), dir, nil, nil)
		artifacts, err := writer.Run(context.Background())
		require.NoError(t, err)
		prd, err := os.ReadFile(artifacts["PRD"])
		require.NoError(t, err)
		plan, err := os.ReadFile(artifacts["LAUNCH_PLAN"])
		require.NoError(t, err)
		return string(prd), string(plan)
	}

	prd1, plan1 := run()
	prd2, plan2 := run()
	assert.Equal(t, prd1, prd2)
	assert.Equal(t, plan1, plan2)
}

func TestWriterEmitsTraceEvents(t *testing.T) {
	store := trace.NewMemoryStore(nil)
	defer store.Close()

	writer := NewWriter(testBundle(), t.TempDir(), trace.NewEmitter(store), nil)
	_, err := writer.Run(context.Background())
	require.NoError(t, err)

	events, err := store.Events()
	require.NoError(t, err)

	counts := make(map[trace.Type]int)
	for _, ev := range events {
		counts[ev.Type]++
	}
	assert.Equal(t, 1, counts[trace.TypeToolCall], "one issue survey")
	assert.Equal(t, 2, counts[trace.TypeObservation], "one observation per issue")
	assert.Equal(t, 2, counts[trace.TypeArtifactCreated], "PRD and launch plan")
	assert.Zero(t, counts[trace.TypeLLMCall], "the offline writer makes no model calls")
}

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithSystem(ctx, "", prompt)
}

func (f *fakeLLM) CompleteWithSystem(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.response, f.err
}

func TestWriterUsesLLMWhenConfigured(t *testing.T) {
	store := trace.NewMemoryStore(nil)
	defer store.Close()

	llm := &fakeLLM{response: "# Drafted by the model\n\n## Goals\n\nA model-written goal statement.\n"}
	writer := NewWriter(testBundle(), t.TempDir(), trace.NewEmitter(store), llm)

	artifacts, err := writer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls, "one call per document")

	prd, err := os.ReadFile(artifacts["PRD"])
	require.NoError(t, err)
	assert.Contains(t, string(prd), "Drafted by the model")

	events, err := store.Events()
	require.NoError(t, err)
	var llmCalls int
	for _, ev := range events {
		if ev.Type == trace.TypeLLMCall {
			llmCalls++
			assert.Equal(t, "fake-model", ev.PayloadString("model"))
		}
	}
	assert.Equal(t, 2, llmCalls)
}

func TestWriterFallsBackWhenLLMFails(t *testing.T) {
	llm := &fakeLLM{err: errors.New("quota exceeded")}
	dir := t.TempDir()
	writer := NewWriter(testBundle(), dir, nil, llm)

	artifacts, err := writer.Run(context.Background())
	require.NoError(t, err, "a failing model degrades to the offline draft")

	prd, err := os.ReadFile(filepath.Join(dir, "PRD.md"))
	require.NoError(t, err)
	assert.Contains(t, string(prd), "# PRD: Auth Revamp")
	assert.Len(t, artifacts, 2)
}
