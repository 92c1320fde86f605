// Package packet renders escalation packets: the minimal review document a
// human receives when the supervisor escalates.
package packet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sentinel/internal/evidence"
	"sentinel/internal/intervention"
	"sentinel/internal/logging"
	"sentinel/internal/trace"
)

// Context carries run metadata rendered into the packet header.
type Context struct {
	Repo       string
	Milestone  string
	IssueCount int
}

// Generator writes one markdown packet per escalation into a run's packets
// directory. Packets are numbered by the count of existing packet files, so
// repeated escalations produce packet_0.md, packet_1.md, and so on.
type Generator struct {
	dir   string
	runID string
}

// NewGenerator creates a generator for one run.
func NewGenerator(dir, runID string) *Generator {
	return &Generator{dir: dir, runID: runID}
}

// Write renders a packet for one escalation and appends an
// escalation_packet event to the trace. Returns the packet path.
func (g *Generator) Write(
	iv intervention.Intervention,
	graph *evidence.Graph,
	store trace.Store,
	ctx Context,
) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create packets directory: %w", err)
	}

	existing, err := filepath.Glob(filepath.Join(g.dir, "packet_*.md"))
	if err != nil {
		return "", fmt.Errorf("list packets: %w", err)
	}
	num := len(existing)
	path := filepath.Join(g.dir, fmt.Sprintf("packet_%d.md", num))

	uncovered := graph.UncoveredClaims(evidence.SeverityHigh)
	evidence.SortClaims(uncovered)

	var b strings.Builder
	fmt.Fprintf(&b, "# Decision Packet %d\n\n", num)
	fmt.Fprintf(&b, "**Run ID**: %s\n\n", g.runID)
	fmt.Fprintf(&b, "**Generated**: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	b.WriteString("## Context\n\n")
	fmt.Fprintf(&b, "- **Repository**: %s\n", orNA(ctx.Repo))
	fmt.Fprintf(&b, "- **Milestone**: %s\n", orNA(ctx.Milestone))
	fmt.Fprintf(&b, "- **Issue Count**: %d\n\n", ctx.IssueCount)

	b.WriteString("## Decision Boundary Reason\n\n")
	fmt.Fprintf(&b, "Escalation triggered by: %s\n\n", iv.Type)
	fmt.Fprintf(&b, "**Rationale**: %s\n\n", iv.Rationale)

	b.WriteString("## Uncovered Claims\n\n")
	if len(uncovered) == 0 {
		b.WriteString("No uncovered HIGH severity claims.\n\n")
	}
	for _, c := range uncovered {
		fmt.Fprintf(&b, "### %s: %s\n\n", c.Section, truncate(c.Text, 100))
		fmt.Fprintf(&b, "- **ID**: %s\n", c.ID)
		fmt.Fprintf(&b, "- **Severity**: %s\n", c.Severity)
		fmt.Fprintf(&b, "- **Source**: %s\n\n", c.Artifact)
	}

	b.WriteString("## Evidence Gathered\n\n")
	items := graph.Items()
	if len(items) == 0 {
		b.WriteString("No evidence gathered yet.\n\n")
	} else {
		if len(items) > 10 {
			items = items[:10]
		}
		for _, it := range items {
			fmt.Fprintf(&b, "- %s (from %s)\n", truncate(it.Text, 100), it.SourceRef)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recommended Next Actions\n\n")
	for _, step := range iv.SuggestedNextSteps {
		fmt.Fprintf(&b, "- %s\n", step)
	}
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write packet: %w", err)
	}

	if err := store.Append(trace.New(trace.TypeEscalationPacket, map[string]any{
		"run_id":                 g.runID,
		"packet_path":            path,
		"uncovered_claims_count": len(uncovered),
	})); err != nil {
		return "", fmt.Errorf("record packet event: %w", err)
	}

	logging.Get(logging.CategoryPackets).Infof("wrote escalation packet %s", path)
	return path, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
