// Package report renders a markdown summary of one supervised run.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sentinel/internal/evidence"
	"sentinel/internal/intervention"
	"sentinel/internal/trace"
)

// Input collects everything the renderer needs about a run.
type Input struct {
	RunID         string
	Repo          string
	Milestone     string
	Events        []trace.Event
	Graph         *evidence.Graph
	Interventions []intervention.Intervention
	Artifacts     map[string]string // name -> path
	PacketsDir    string
}

// Render produces the run report as markdown.
func Render(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run Report: %s\n\n", in.RunID)
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	b.WriteString("## Run\n\n")
	fmt.Fprintf(&b, "- **Repository**: %s\n", orDash(in.Repo))
	fmt.Fprintf(&b, "- **Milestone**: %s\n", orDash(in.Milestone))
	fmt.Fprintf(&b, "- **Events**: %d\n", len(in.Events))
	fmt.Fprintf(&b, "- **Interventions**: %d\n\n", len(in.Interventions))

	b.WriteString("## Event Counts\n\n")
	for _, tc := range countByType(in.Events) {
		fmt.Fprintf(&b, "- %s: %d\n", tc.Type, tc.Count)
	}
	b.WriteString("\n")

	if in.Graph != nil {
		renderCoverage(&b, in.Graph)
	}

	b.WriteString("## Interventions\n\n")
	if len(in.Interventions) == 0 {
		b.WriteString("None. The run completed without supervision stepping in.\n\n")
	}
	for i, iv := range in.Interventions {
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, iv.Type)
		fmt.Fprintf(&b, "%s\n\n", iv.Rationale)
		for _, step := range iv.SuggestedNextSteps {
			fmt.Fprintf(&b, "- %s\n", step)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Artifacts\n\n")
	if len(in.Artifacts) == 0 {
		b.WriteString("None.\n\n")
	} else {
		names := make([]string, 0, len(in.Artifacts))
		for name := range in.Artifacts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s (%s)\n", name, in.Artifacts[name])
		}
		b.WriteString("\n")
	}

	if in.PacketsDir != "" {
		b.WriteString("## Escalation Packets\n\n")
		packets, _ := filepath.Glob(filepath.Join(in.PacketsDir, "packet_*.md"))
		if len(packets) == 0 {
			b.WriteString("None.\n\n")
		} else {
			sort.Strings(packets)
			for _, p := range packets {
				fmt.Fprintf(&b, "- %s\n", p)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// WriteFile renders and writes the report, creating parent directories.
func WriteFile(path string, in Input) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Render(in)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func renderCoverage(b *strings.Builder, g *evidence.Graph) {
	claims := g.Claims()
	uncoveredHigh := g.UncoveredClaims(evidence.SeverityHigh)

	b.WriteString("## Claim Coverage\n\n")
	fmt.Fprintf(b, "- **Claims**: %d\n", len(claims))
	fmt.Fprintf(b, "- **Evidence items bound**: %d\n", g.BoundItemCount())
	fmt.Fprintf(b, "- **Uncovered HIGH claims**: %d\n\n", len(uncoveredHigh))

	if len(uncoveredHigh) > 0 {
		b.WriteString("### Uncovered HIGH Claims\n\n")
		for _, c := range uncoveredHigh {
			fmt.Fprintf(b, "- `%s` [%s] %s\n", c.ID, c.Section, truncate(c.Text, 120))
		}
		b.WriteString("\n")
	}
}

type typeCount struct {
	Type  trace.Type
	Count int
}

func countByType(events []trace.Event) []typeCount {
	counts := make(map[trace.Type]int)
	for _, ev := range events {
		counts[ev.Type]++
	}
	out := make([]typeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, typeCount{Type: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
