package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sentinel/internal/github"
	"sentinel/internal/logging"
	"sentinel/internal/trace"
)

const prdSystemPrompt = `You write Product Requirements Documents from GitHub milestone data.
Produce a markdown PRD with these sections: Goals, Non-goals, Scope, Metrics, Risks.
Ground every statement in the milestone and issues you are given. Be specific and measurable.`

const launchSystemPrompt = `You write launch plans from GitHub milestone data.
Produce a markdown launch plan with Rollout, Tradeoffs, and Risks sections.
Ground every statement in the milestone and issues you are given.`

// Writer drafts a PRD and launch plan from a milestone bundle, recording
// every model call, tool call, and artifact on the trace. With no LLM client
// it falls back to a deterministic offline draft, which keeps runs and tests
// reproducible without credentials.
type Writer struct {
	bundle    *github.Bundle
	outputDir string
	emitter   *trace.Emitter
	llm       LLMClient // nil selects the offline writer
}

// NewWriter creates a writer. llm may be nil.
func NewWriter(bundle *github.Bundle, outputDir string, emitter *trace.Emitter, llm LLMClient) *Writer {
	return &Writer{
		bundle:    bundle,
		outputDir: outputDir,
		emitter:   emitter,
		llm:       llm,
	}
}

// Run drafts both documents and returns artifact name to path.
func (w *Writer) Run(ctx context.Context) (map[string]string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts directory: %w", err)
	}

	w.surveyIssues()

	artifacts := make(map[string]string)
	for _, doc := range []struct {
		name, system string
		offline      func() string
	}{
		{"PRD", prdSystemPrompt, w.offlinePRD},
		{"LAUNCH_PLAN", launchSystemPrompt, w.offlineLaunchPlan},
	} {
		content := w.draft(ctx, doc.system, doc.offline)
		path, err := w.writeArtifact(doc.name+".md", content)
		if err != nil {
			return nil, err
		}
		artifacts[doc.name] = path
	}
	return artifacts, nil
}

// surveyIssues walks the bundle the way an interactive agent would, so the
// trace carries tool calls and observations for the binder to consume.
func (w *Writer) surveyIssues() {
	if w.emitter == nil {
		return
	}
	if err := w.emitter.EmitToolCall("search_issues", map[string]any{"query": w.bundle.Milestone.Title}, ""); err != nil {
		logging.Agent("record search: %v", err)
	}
	for _, is := range w.bundle.Issues {
		if err := w.emitter.EmitObservation(map[string]any{"title": is.Title, "body": is.Body}, ""); err != nil {
			logging.Agent("record observation for issue %d: %v", is.Number, err)
		}
	}
}

// draft asks the model for a document, falling back to the offline writer
// when no client is configured or the call fails.
func (w *Writer) draft(ctx context.Context, system string, offline func() string) string {
	if w.llm == nil {
		return offline()
	}

	if w.emitter != nil {
		if err := w.emitter.EmitLLMCall(w.llm.Model(), map[string]any{"milestone": w.bundle.Milestone.Title}); err != nil {
			logging.Agent("record llm call: %v", err)
		}
	}
	content, err := w.llm.CompleteWithSystem(ctx, system, w.prompt())
	if err != nil {
		logging.Agent("llm draft failed, using offline writer: %v", err)
		return offline()
	}
	return content
}

func (w *Writer) prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Milestone: %s\n", w.bundle.Milestone.Title)
	if w.bundle.Milestone.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", w.bundle.Milestone.Description)
	}
	fmt.Fprintf(&b, "Repository: %s\n\nIssues (%d):\n", w.bundle.Repo, len(w.bundle.Issues))
	for _, is := range w.bundle.Issues {
		fmt.Fprintf(&b, "- #%d %s [%s]\n", is.Number, is.Title, is.State)
		if is.Body != "" {
			fmt.Fprintf(&b, "  %s\n", firstLine(is.Body))
		}
	}
	return b.String()
}

func (w *Writer) writeArtifact(filename, content string) (string, error) {
	path := filepath.Join(w.outputDir, filename)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", filename, err)
	}
	if w.emitter != nil {
		name := strings.TrimSuffix(filename, filepath.Ext(filename))
		if err := w.emitter.EmitArtifact(path, "document", name); err != nil {
			logging.Agent("record artifact %s: %v", filename, err)
		}
	}
	return path, nil
}

// offlinePRD renders a PRD directly from the bundle. Section statements
// quote issue titles so evidence binding can cover them.
func (w *Writer) offlinePRD() string {
	m := w.bundle.Milestone
	var b strings.Builder

	fmt.Fprintf(&b, "# PRD: %s\n\n", m.Title)

	b.WriteString("## Goals\n\n")
	fmt.Fprintf(&b, "Deliver the %s milestone for %s.\n", m.Title, w.bundle.Repo)
	if m.Description != "" {
		fmt.Fprintf(&b, "%s\n", m.Description)
	}
	b.WriteString("\n")

	b.WriteString("## Non-goals\n\n")
	b.WriteString("Work outside this milestone's issues is out of scope for this release.\n\n")

	b.WriteString("## Scope\n\n")
	for _, is := range w.bundle.Issues {
		fmt.Fprintf(&b, "- #%d %s\n", is.Number, is.Title)
	}
	b.WriteString("\n")

	b.WriteString("## Metrics\n\n")
	fmt.Fprintf(&b, "- 100%% of the %d milestone issues closed before release.\n", len(w.bundle.Issues))
	b.WriteString("- Zero regressions reported in the first week after rollout.\n\n")

	b.WriteString("## Risks\n\n")
	open := 0
	for _, is := range w.bundle.Issues {
		if is.State == "open" {
			open++
		}
	}
	fmt.Fprintf(&b, "- %d issues remain open and must land before the milestone closes.\n", open)
	b.WriteString("- Dependencies between issues may serialize work late in the cycle.\n")

	return b.String()
}

func (w *Writer) offlineLaunchPlan() string {
	m := w.bundle.Milestone
	var b strings.Builder

	fmt.Fprintf(&b, "# Launch Plan: %s\n\n", m.Title)

	b.WriteString("## Rollout\n\n")
	b.WriteString("1. Land all milestone issues behind a flag.\n")
	b.WriteString("2. Enable for internal users and watch error rates for 48 hours.\n")
	b.WriteString("3. Ramp to 100% of users over one week.\n\n")

	b.WriteString("## Tradeoffs\n\n")
	b.WriteString("A staged ramp delays full availability but bounds the blast radius of defects.\n\n")

	b.WriteString("## Risks\n\n")
	b.WriteString("- Rollback requires a config change only; no data migration is involved.\n")

	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}
