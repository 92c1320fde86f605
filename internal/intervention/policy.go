package intervention

import (
	"fmt"
	"strings"

	"sentinel/internal/boundary"
	"sentinel/internal/evidence"
	"sentinel/internal/logging"
)

// Policy is the supervision decision table. It holds only configured
// thresholds; all run state (counters, graph) arrives through Input on each
// evaluation, so the same facts always produce the same verdict.
type Policy struct {
	escalateUncovered int // uncovered HIGH claims at or above this count escalate
	toolCallLimit     int // cumulative tool calls beyond this trip rule 5
	minEvidence       int // rule 5 fires only while bound evidence stays below this
}

// NewPolicy creates a policy with the given thresholds. Zero values fall
// back to the design defaults (3 uncovered, 50 tool calls, 5 evidence items).
func NewPolicy(escalateUncovered, toolCallLimit, minEvidence int) *Policy {
	if escalateUncovered <= 0 {
		escalateUncovered = 3
	}
	if toolCallLimit <= 0 {
		toolCallLimit = 50
	}
	if minEvidence <= 0 {
		minEvidence = 5
	}
	return &Policy{
		escalateUncovered: escalateUncovered,
		toolCallLimit:     toolCallLimit,
		minEvidence:       minEvidence,
	}
}

// Input is the snapshot of current facts the policy evaluates. Counters are
// cumulative for the run, owned by the supervisor hook.
type Input struct {
	UncoveredHigh []evidence.Claim
	Boundaries    []boundary.Boundary
	ToolCallCount int
	EvidenceCount int
}

// Evaluate walks the decision table in order and returns the first matching
// intervention, or nil. ESCALATE strictly dominates lesser interventions:
// human review is the terminal, most expensive action and must never be
// masked by a suggestion.
func (p *Policy) Evaluate(in Input) *Intervention {
	if n := len(in.UncoveredHigh); n >= p.escalateUncovered {
		ids := claimIDs(in.UncoveredHigh)
		logging.Policy("escalating: %d uncovered HIGH claims", n)
		return &Intervention{
			Type:      TypeEscalate,
			TargetID:  "uncovered_claims",
			Rationale: fmt.Sprintf("%d HIGH severity claims lack evidence: %s", n, strings.Join(ids, ", ")),
			SuggestedNextSteps: []string{
				"Review the uncovered claims",
				"Gather additional evidence from the configured evidence source",
				"Consider reducing scope or clarifying requirements",
			},
		}
	}

	if n := len(in.UncoveredHigh); n >= 1 {
		ids := claimIDs(in.UncoveredHigh)
		return &Intervention{
			Type:      TypeRequestEvidence,
			TargetID:  strings.Join(ids, ","),
			Rationale: fmt.Sprintf("%d HIGH severity claims need evidence: %s", n, strings.Join(ids, ", ")),
			SuggestedNextSteps: append(
				suggestedLookups(in.UncoveredHigh),
				"Search the evidence source for relevant keywords",
				"Review the milestone description",
			),
		}
	}

	for _, b := range in.Boundaries {
		if b.Type == boundary.TypeEmptyMetrics {
			return &Intervention{
				Type:      TypeRequestMetrics,
				TargetID:  b.Section,
				Rationale: b.Rationale,
				SuggestedNextSteps: []string{
					"Add measurable success metrics",
					"Include specific targets (e.g. '95% uptime', '1000 users')",
				},
			}
		}
	}

	for _, b := range in.Boundaries {
		if b.Type == boundary.TypeMissingTradeoffs {
			return &Intervention{
				Type:      TypeRequestOptions,
				TargetID:  b.Section,
				Rationale: b.Rationale,
				SuggestedNextSteps: []string{
					"Explicitly list what is out of scope",
					"Explain tradeoffs and alternatives considered",
				},
			}
		}
	}

	if in.ToolCallCount > p.toolCallLimit && in.EvidenceCount < p.minEvidence {
		logging.Policy("escalating: %d tool calls with only %d evidence items", in.ToolCallCount, in.EvidenceCount)
		return &Intervention{
			Type:     TypeEscalate,
			TargetID: "tool_call_limit",
			Rationale: fmt.Sprintf("agent made %d tool calls but only bound %d evidence items",
				in.ToolCallCount, in.EvidenceCount),
			SuggestedNextSteps: []string{
				"Review the agent's tool usage",
				"Consider whether the agent is stuck in a loop",
				"Check whether the evidence source data is sufficient",
			},
		}
	}

	return nil
}

func claimIDs(claims []evidence.Claim) []string {
	ids := make([]string, len(claims))
	for i, c := range claims {
		ids[i] = c.ID
	}
	return ids
}

// suggestedLookups proposes one fetch per uncovered claim, truncated so
// rationale text stays readable.
func suggestedLookups(claims []evidence.Claim) []string {
	steps := make([]string, 0, len(claims))
	for _, c := range claims {
		text := c.Text
		if len(text) > 50 {
			text = text[:50] + "..."
		}
		steps = append(steps, fmt.Sprintf("Fetch evidence related to: %s", text))
	}
	return steps
}
