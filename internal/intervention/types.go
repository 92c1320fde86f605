// Package intervention defines supervisory directives and the decision table
// that produces them.
package intervention

// Type orders interventions from suggestion to terminal escalation.
type Type string

const (
	TypeRequestEvidence Type = "REQUEST_EVIDENCE"
	TypeRequestMetrics  Type = "REQUEST_METRICS"
	TypeRequestOptions  Type = "REQUEST_OPTIONS"
	TypeRequestRisks    Type = "REQUEST_RISKS"
	TypeEscalate        Type = "ESCALATE"
)

// Intervention is the policy's output for one evaluation. It is created
// fresh each time and only recorded in the trace and the hook's in-memory
// log, never mutated afterwards.
type Intervention struct {
	Type               Type     `json:"type"`
	TargetID           string   `json:"target_id"`
	Rationale          string   `json:"rationale"`
	SuggestedNextSteps []string `json:"suggested_next_steps"`
}
