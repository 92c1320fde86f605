// Package evidence implements the claim-evidence graph: claims extracted
// from artifacts, candidate evidence items, and scored bindings between
// them. Coverage is always computed from current state, never cached.
package evidence

import (
	"sort"
	"sync"
)

// Severity ranks how much a claim matters. HIGH claims without evidence
// drive escalation.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// rank orders severities so "severity >= S" queries are cheap.
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// AtLeast reports whether s is of severity min or stronger.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

// Escalate bumps a severity one level, capped at HIGH.
func (s Severity) Escalate() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	}
	return SeverityHigh
}

// Claim is an assertion extracted from an artifact that needs evidentiary
// support. Claims are immutable after creation; IDs derive from content hash
// and position so re-extraction of unchanged content is idempotent.
type Claim struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Section  string   `json:"section"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line"`
	Artifact string   `json:"artifact"`
}

// Item is a candidate piece of supporting evidence, supplied by an external
// evidence source or derived from trace observations.
type Item struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	SourceRef  string `json:"source_ref"`
	SourceType string `json:"source_type"`
}

// Binding is a scored claim-evidence link. Bindings are derived data,
// recomputed in full by the binder; they are never hand-edited.
type Binding struct {
	ClaimID string  `json:"claim_id"`
	ItemID  string  `json:"item_id"`
	Score   float64 `json:"score"`
}

// Graph holds all claims, evidence items, and bindings for one run.
// A claim is covered iff it has at least one binding with score at or above
// the coverage threshold.
type Graph struct {
	mu         sync.RWMutex
	threshold  float64
	claims     map[string]Claim
	claimOrder []string
	items      map[string]Item
	itemOrder  []string
	bindings   map[string][]Binding // claim id -> bindings, best first
}

// NewGraph creates an empty graph with the given coverage threshold.
func NewGraph(threshold float64) *Graph {
	return &Graph{
		threshold: threshold,
		claims:    make(map[string]Claim),
		items:     make(map[string]Item),
		bindings:  make(map[string][]Binding),
	}
}

// Threshold returns the coverage threshold the graph was built with.
func (g *Graph) Threshold() float64 {
	return g.threshold
}

// AddClaim inserts a claim. Re-adding an existing ID is a no-op, which makes
// re-registering an unchanged artifact safe.
func (g *Graph) AddClaim(c Claim) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.claims[c.ID]; ok {
		return
	}
	g.claims[c.ID] = c
	g.claimOrder = append(g.claimOrder, c.ID)
}

// AddItem inserts an evidence item, deduplicating by ID.
func (g *Graph) AddItem(it Item) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.items[it.ID]; ok {
		return
	}
	g.items[it.ID] = it
	g.itemOrder = append(g.itemOrder, it.ID)
}

// ResetBindings drops all bindings and evidence items ahead of a full
// recompute by the binder.
func (g *Graph) ResetBindings() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bindings = make(map[string][]Binding)
	g.items = make(map[string]Item)
	g.itemOrder = nil
}

// SetBindings records the binder's kept bindings for one claim, best first.
func (g *Graph) SetBindings(claimID string, bs []Binding) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.claims[claimID]; !ok {
		return
	}
	g.bindings[claimID] = bs
}

// Covered reports whether a claim has at least one binding meeting the
// coverage threshold.
func (g *Graph) Covered(claimID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.coveredLocked(claimID)
}

func (g *Graph) coveredLocked(claimID string) bool {
	for _, b := range g.bindings[claimID] {
		if b.Score >= g.threshold {
			return true
		}
	}
	return false
}

// UncoveredClaims returns, in insertion order, every claim of severity min
// or stronger that has no binding meeting the threshold. This is a pure
// query over current state.
func (g *Graph) UncoveredClaims(min Severity) []Claim {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Claim
	for _, id := range g.claimOrder {
		c := g.claims[id]
		if !c.Severity.AtLeast(min) {
			continue
		}
		if !g.coveredLocked(id) {
			out = append(out, c)
		}
	}
	return out
}

// Claims returns all claims in insertion order.
func (g *Graph) Claims() []Claim {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Claim, 0, len(g.claimOrder))
	for _, id := range g.claimOrder {
		out = append(out, g.claims[id])
	}
	return out
}

// Items returns all evidence items in insertion order.
func (g *Graph) Items() []Item {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Item, 0, len(g.itemOrder))
	for _, id := range g.itemOrder {
		out = append(out, g.items[id])
	}
	return out
}

// Bindings returns the kept bindings for a claim, best first.
func (g *Graph) Bindings(claimID string) []Binding {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Binding, len(g.bindings[claimID]))
	copy(out, g.bindings[claimID])
	return out
}

// BoundItemCount returns the number of distinct evidence items referenced by
// at least one binding meeting the threshold. This is the policy layer's
// evidence_count.
func (g *Graph) BoundItemCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, bs := range g.bindings {
		for _, b := range bs {
			if b.Score >= g.threshold {
				seen[b.ItemID] = struct{}{}
			}
		}
	}
	return len(seen)
}

// ClaimCount returns the number of claims in the graph.
func (g *Graph) ClaimCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.claims)
}

// SortClaims orders a claim slice by artifact, then line, then ID. Helper
// for deterministic rendering in packets and reports.
func SortClaims(claims []Claim) {
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].Artifact != claims[j].Artifact {
			return claims[i].Artifact < claims[j].Artifact
		}
		if claims[i].Line != claims[j].Line {
			return claims[i].Line < claims[j].Line
		}
		return claims[i].ID < claims[j].ID
	})
}
