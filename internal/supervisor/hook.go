package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"sentinel/internal/boundary"
	"sentinel/internal/evidence"
	"sentinel/internal/intervention"
	"sentinel/internal/logging"
	"sentinel/internal/packet"
	"sentinel/internal/trace"
)

// Options configures a Hook. Store is required; everything else is optional
// and falls back to defaults or stays disabled.
type Options struct {
	RunID             string
	CoverageThreshold float64
	MaxBindings       int
	WindowSize        int

	// Policy thresholds; zero values use the design defaults.
	EscalateUncovered int
	ToolCallLimit     int
	MinEvidence       int

	Source        EvidenceSource // optional external evidence collaborator
	Handler       Handler        // optional intervention handler
	PacketsDir    string         // escalation packets land here when set
	PacketContext packet.Context
}

// Hook is the orchestration facade external event loops call. It owns the
// evidence graph and the run counters. Safe for concurrent use; the artifact
// watcher drives it from its own goroutine.
type Hook struct {
	mu      sync.Mutex
	store   trace.Store
	graph   *evidence.Graph
	binder  *evidence.Binder
	policy  *intervention.Policy
	source  EvidenceSource
	handler Handler
	packets *packet.Generator
	pktCtx  packet.Context

	runID      string
	windowSize int

	artifacts     map[string]string // name -> path
	lastArtifact  string            // name of the most recently created artifact
	interventions []intervention.Intervention

	// Cumulative run counters, advanced by OnStep over new trace events.
	toolCallCount int
	eventCursor   int
}

// NewHook creates a hook bound to a trace store.
func NewHook(store trace.Store, opts Options) *Hook {
	threshold := opts.CoverageThreshold
	if threshold <= 0 {
		threshold = 0.2
	}
	windowSize := opts.WindowSize
	if windowSize <= 0 {
		windowSize = 20
	}

	h := &Hook{
		store:      store,
		graph:      evidence.NewGraph(threshold),
		binder:     evidence.NewBinder(threshold, opts.MaxBindings),
		policy:     intervention.NewPolicy(opts.EscalateUncovered, opts.ToolCallLimit, opts.MinEvidence),
		source:     opts.Source,
		handler:    opts.Handler,
		pktCtx:     opts.PacketContext,
		runID:      opts.RunID,
		windowSize: windowSize,
		artifacts:  make(map[string]string),
	}
	if opts.PacketsDir != "" && opts.RunID != "" {
		h.packets = packet.NewGenerator(opts.PacketsDir, opts.RunID)
	}
	return h
}

// Graph exposes the evidence graph for reporting. Callers must not mutate
// it outside the hook's own operations.
func (h *Hook) Graph() *evidence.Graph {
	return h.graph
}

// Interventions returns all interventions issued so far.
func (h *Hook) Interventions() []intervention.Intervention {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]intervention.Intervention, len(h.interventions))
	copy(out, h.interventions)
	return out
}

// OnArtifactCreated registers a new artifact: claims are extracted and
// merged into the graph (id-stable, so re-registering unchanged content adds
// nothing), then evidence binding runs over the full graph.
func (h *Hook) OnArtifactCreated(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrArtifactUnreadable, path, err)
	}

	h.mu.Lock()
	name := artifactName(path)
	h.artifacts[name] = path
	h.lastArtifact = name
	h.mu.Unlock()

	for _, c := range evidence.ExtractClaims(name, string(content)) {
		h.graph.AddClaim(c)
	}
	logging.Supervisor("artifact %s registered, graph now holds %d claims", name, h.graph.ClaimCount())

	return h.BindEvidence()
}

// BindEvidence recomputes all bindings from the trace and the evidence
// source. A failing source is logged and treated as empty for this cycle.
func (h *Hook) BindEvidence() error {
	if h.graph.ClaimCount() == 0 {
		return nil
	}

	events, err := h.store.Events()
	if err != nil {
		return fmt.Errorf("read trace for binding: %w", err)
	}

	var items []evidence.Item
	if h.source != nil {
		items, err = h.source.EvidenceItems()
		if err != nil {
			logging.Supervisor("evidence source failed, binding with zero items: %v", err)
			items = nil
		}
	}

	h.binder.Bind(h.graph, events, items)
	return nil
}

// OnStep runs one supervision check: counters advance over new events, the
// boundary detector scans the latest artifact, and the policy is evaluated
// against current cumulative state. Any intervention is appended to the
// trace, offered to the handler, and escalations produce a packet.
//
// recent narrows the events the boundary detector sees; pass nil to use the
// trailing window of the trace.
func (h *Hook) OnStep(recent []trace.Event) (*intervention.Intervention, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	all, err := h.store.Events()
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	for _, ev := range all[min(h.eventCursor, len(all)):] {
		if ev.Type == trace.TypeToolCall {
			h.toolCallCount++
		}
	}
	h.eventCursor = len(all)

	if recent == nil {
		start := len(all) - h.windowSize
		if start < 0 {
			start = 0
		}
		recent = all[start:]
	}

	var boundaries []boundary.Boundary
	if h.lastArtifact != "" {
		content, err := os.ReadFile(h.artifacts[h.lastArtifact])
		if err != nil {
			logging.Supervisor("skipping boundary detection, artifact unreadable: %v", err)
		} else {
			boundaries = boundary.Detect(h.lastArtifact, string(content), recent)
		}
	}

	iv := h.policy.Evaluate(intervention.Input{
		UncoveredHigh: h.graph.UncoveredClaims(evidence.SeverityHigh),
		Boundaries:    boundaries,
		ToolCallCount: h.toolCallCount,
		EvidenceCount: h.graph.BoundItemCount(),
	})
	if iv == nil {
		return nil, nil
	}

	h.interventions = append(h.interventions, *iv)
	if err := h.appendIntervention(iv, false); err != nil {
		return nil, fmt.Errorf("record intervention: %w", err)
	}

	// consultHandler returns a new value only when the handler overrode the
	// verdict; the override is recorded too so the trace and the in-memory
	// log never disagree about what was issued.
	overridden := h.consultHandler(iv, recent)
	if overridden != iv {
		iv = overridden
		if err := h.appendIntervention(iv, true); err != nil {
			return nil, fmt.Errorf("record handler override: %w", err)
		}
	}

	if iv.Type == intervention.TypeEscalate {
		if err := h.escalate(*iv); err != nil {
			return nil, err
		}
	}
	return iv, nil
}

// appendIntervention records an issued intervention on the trace.
func (h *Hook) appendIntervention(iv *intervention.Intervention, override bool) error {
	payload := map[string]any{
		"type":                 string(iv.Type),
		"target_id":            iv.TargetID,
		"rationale":            iv.Rationale,
		"suggested_next_steps": iv.SuggestedNextSteps,
	}
	if override {
		payload["handler_override"] = true
	}
	return h.store.Append(trace.New(trace.TypeIntervention, payload))
}

// consultHandler offers the intervention to the external handler. A stop
// response upgrades the verdict to ESCALATE; a handler error leaves the
// policy's verdict untouched.
func (h *Hook) consultHandler(iv *intervention.Intervention, recent []trace.Event) *intervention.Intervention {
	if h.handler == nil {
		return iv
	}

	artifacts := make(map[string]string, len(h.artifacts))
	for name, path := range h.artifacts {
		artifacts[name] = path
	}
	resp, err := h.handler.HandleIntervention(*iv, HandlerContext{
		Events:             recent,
		Artifacts:          artifacts,
		InterventionCount:  len(h.interventions),
		UncoveredHighCount: len(h.graph.UncoveredClaims(evidence.SeverityHigh)),
	})
	if err != nil {
		logging.Supervisor("intervention handler failed, keeping policy verdict: %v", err)
		return iv
	}
	if resp == nil || !resp.Stop {
		return iv
	}

	escalated := &intervention.Intervention{
		Type:               intervention.TypeEscalate,
		TargetID:           iv.TargetID,
		Rationale:          "handler requested escalation: " + iv.Rationale,
		SuggestedNextSteps: iv.SuggestedNextSteps,
	}
	h.interventions[len(h.interventions)-1] = *escalated
	return escalated
}

// escalate writes a packet (when configured) and records the decision.
func (h *Hook) escalate(iv intervention.Intervention) error {
	if h.packets != nil {
		if _, err := h.packets.Write(iv, h.graph, h.store, h.pktCtx); err != nil {
			return fmt.Errorf("write escalation packet: %w", err)
		}
	}
	return h.store.Append(trace.New(trace.TypeDecision, map[string]any{
		"type":               "escalation",
		"run_id":             h.runID,
		"intervention_count": len(h.interventions),
	}))
}

// Summary is a read-only snapshot of supervision state.
type Summary struct {
	EventCount          int `json:"event_count"`
	ArtifactCount       int `json:"artifact_count"`
	InterventionCount   int `json:"intervention_count"`
	UncoveredClaimCount int `json:"uncovered_claim_count"`
	TotalClaims         int `json:"total_claims"`
	BoundEvidence       int `json:"bound_evidence"`
}

// GetSummary reports current counts. Reading the trace can fail; the event
// count is zero in that case and the rest of the snapshot is still valid.
func (h *Hook) GetSummary() Summary {
	eventCount := 0
	if events, err := h.store.Events(); err == nil {
		eventCount = len(events)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return Summary{
		EventCount:          eventCount,
		ArtifactCount:       len(h.artifacts),
		InterventionCount:   len(h.interventions),
		UncoveredClaimCount: len(h.graph.UncoveredClaims(evidence.SeverityHigh)),
		TotalClaims:         h.graph.ClaimCount(),
		BoundEvidence:       h.graph.BoundItemCount(),
	}
}

// artifactName derives the registry key from a path: base name without the
// extension.
func artifactName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
