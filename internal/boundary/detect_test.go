package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/trace"
)

func boundaryTypes(bs []Boundary) []Type {
	out := make([]Type, len(bs))
	for i, b := range bs {
		out[i] = b.Type
	}
	return out
}

func TestDetectEmptyMetrics(t *testing.T) {
	t.Run("vague metrics section fires", func(t *testing.T) {
		content := "## Metrics\n\nWe will improve user satisfaction considerably.\n\n## Tradeoffs\n\nSome.\n"
		found := Detect("PRD", content, nil)
		assert.Contains(t, boundaryTypes(found), TypeEmptyMetrics)
	})

	t.Run("numbers satisfy the detector", func(t *testing.T) {
		content := "## Metrics\n\nLogin success stays above 99.5% for all users.\n\n## Tradeoffs\n\nSome.\n"
		found := Detect("PRD", content, nil)
		assert.NotContains(t, boundaryTypes(found), TypeEmptyMetrics)
	})

	t.Run("no metrics heading means no empty_metrics", func(t *testing.T) {
		content := "## Goals\n\nShip the feature.\n\n## Tradeoffs\n\nSome.\n"
		found := Detect("PRD", content, nil)
		assert.NotContains(t, boundaryTypes(found), TypeEmptyMetrics)
	})

	t.Run("success metrics heading variant is recognized", func(t *testing.T) {
		content := "## Success Metrics\n\nBetter outcomes overall.\n\n## Alternatives\n\nNone considered.\n"
		found := Detect("PRD", content, nil)
		assert.Contains(t, boundaryTypes(found), TypeEmptyMetrics)
	})
}

func TestDetectMissingTradeoffs(t *testing.T) {
	t.Run("absent section fires", func(t *testing.T) {
		content := "## Goals\n\nShip the feature.\n"
		found := Detect("PRD", content, nil)
		assert.Contains(t, boundaryTypes(found), TypeMissingTradeoffs)
	})

	t.Run("tradeoffs heading suppresses", func(t *testing.T) {
		content := "## Goals\n\nShip.\n\n## Trade-offs\n\nSpeed over completeness.\n"
		found := Detect("PRD", content, nil)
		assert.NotContains(t, boundaryTypes(found), TypeMissingTradeoffs)
	})

	t.Run("alternatives heading also suppresses", func(t *testing.T) {
		content := "## Goals\n\nShip.\n\n### Alternatives\n\nBuy instead of build.\n"
		found := Detect("PRD", content, nil)
		assert.NotContains(t, boundaryTypes(found), TypeMissingTradeoffs)
	})

	t.Run("empty content is not flagged", func(t *testing.T) {
		found := Detect("PRD", "", nil)
		assert.NotContains(t, boundaryTypes(found), TypeMissingTradeoffs)
	})
}

func TestDetectLowEvidenceRate(t *testing.T) {
	churn := func(toolCalls, observations int) []trace.Event {
		var events []trace.Event
		for i := 0; i < toolCalls; i++ {
			events = append(events, trace.New(trace.TypeToolCall, nil))
		}
		for i := 0; i < observations; i++ {
			events = append(events, trace.New(trace.TypeObservation, nil))
		}
		return events
	}
	content := "## Tradeoffs\n\nCovered, so only churn can fire.\n"

	t.Run("heavy churn with few observations fires", func(t *testing.T) {
		found := Detect("PRD", content, churn(25, 2))
		assert.Contains(t, boundaryTypes(found), TypeLowEvidenceRate)
	})

	t.Run("healthy observation rate does not fire", func(t *testing.T) {
		found := Detect("PRD", content, churn(25, 10))
		assert.NotContains(t, boundaryTypes(found), TypeLowEvidenceRate)
	})

	t.Run("few tool calls never fire", func(t *testing.T) {
		found := Detect("PRD", content, churn(10, 0))
		assert.NotContains(t, boundaryTypes(found), TypeLowEvidenceRate)
	})
}

func TestDetectRulesAreIndependent(t *testing.T) {
	// Vague metrics and no tradeoffs in the same document: both fire.
	content := "## Metrics\n\nThings get better over time.\n"
	found := Detect("PRD", content, nil)
	require.Len(t, found, 2)
	assert.ElementsMatch(t, []Type{TypeEmptyMetrics, TypeMissingTradeoffs}, boundaryTypes(found))
}
