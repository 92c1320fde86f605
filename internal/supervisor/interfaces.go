// Package supervisor orchestrates supervision of a tool-calling agent:
// claim extraction on artifact creation, evidence binding, boundary
// detection, policy evaluation, and escalation.
package supervisor

import (
	"sentinel/internal/evidence"
	"sentinel/internal/intervention"
	"sentinel/internal/trace"
)

// EvidenceSource supplies candidate evidence items from an external
// collaborator, for example a cached issue-tracker bundle. A failing source
// degrades coverage quality for the cycle but never halts supervision.
type EvidenceSource interface {
	EvidenceItems() ([]evidence.Item, error)
}

// HandlerContext is the state snapshot passed to an intervention handler.
type HandlerContext struct {
	Events             []trace.Event
	Artifacts          map[string]string
	InterventionCount  int
	UncoveredHighCount int
}

// HandlerResponse is an intervention handler's verdict. Stop forces the hook
// to treat the current evaluation as an escalation regardless of the
// policy's own verdict.
type HandlerResponse struct {
	Stop   bool
	Action string
}

// Handler lets the embedding loop react to interventions in real time. A
// handler error is logged and the policy's original verdict stands; a
// collaborator bug must never crash the supervision loop.
type Handler interface {
	HandleIntervention(iv intervention.Intervention, ctx HandlerContext) (*HandlerResponse, error)
}
