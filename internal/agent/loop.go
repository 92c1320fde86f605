package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"

	"sentinel/internal/config"
	"sentinel/internal/github"
	"sentinel/internal/logging"
	"sentinel/internal/packet"
	"sentinel/internal/report"
	"sentinel/internal/supervisor"
	"sentinel/internal/trace"
)

// RunResult summarizes one supervised run.
type RunResult struct {
	RunID             string            `json:"run_id"`
	TracePath         string            `json:"trace_path"`
	ReportPath        string            `json:"report_path"`
	PacketsDir        string            `json:"packets_dir"`
	Artifacts         map[string]string `json:"artifacts"`
	EventCount        int               `json:"event_count"`
	InterventionCount int               `json:"intervention_count"`
	UncoveredClaims   int               `json:"uncovered_claims"`
}

// Loop wires one supervised run end to end: fetch the milestone bundle, let
// the writer draft artifacts, feed them to the supervisor hook, and render
// the final report. Run directories follow runs/<run_id>/{trace,artifacts,
// packets,reports}.
type Loop struct {
	cfg     *config.Config
	runsDir string
	llm     LLMClient // nil selects the offline writer
}

// NewLoop creates a run loop.
func NewLoop(cfg *config.Config, runsDir string, llm LLMClient) *Loop {
	return &Loop{cfg: cfg, runsDir: runsDir, llm: llm}
}

// Run executes one supervised run against repo's milestone.
func (l *Loop) Run(ctx context.Context, repo string, milestone int, runID string) (*RunResult, error) {
	runDir := filepath.Join(l.runsDir, runID)
	artifactsDir := filepath.Join(runDir, "artifacts")
	packetsDir := filepath.Join(runDir, "packets")
	reportPath := filepath.Join(runDir, "reports", "report.md")

	store, tracePath, err := l.openStore(runDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	emitter := trace.NewEmitter(store)

	if err := emitter.EmitDecision("run_start", map[string]any{
		"repo":      repo,
		"milestone": strconv.Itoa(milestone),
		"run_id":    runID,
	}); err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}

	fetcher := github.NewFetcher(
		github.NewClient(l.cfg.GitHub.BaseURL, l.cfg.GitHub.Token),
		github.NewFileCache(l.cfg.GitHub.CacheDir),
		emitter,
	)
	bundle, err := fetcher.FetchBundle(ctx, repo, milestone)
	if err != nil {
		return nil, err
	}

	hook := supervisor.NewHook(store, supervisor.Options{
		RunID:             runID,
		CoverageThreshold: l.cfg.Evidence.CoverageThreshold,
		MaxBindings:       l.cfg.Evidence.MaxBindingsPerClaim,
		WindowSize:        l.cfg.Trace.WindowSize,
		EscalateUncovered: l.cfg.Policy.EscalateUncoveredHigh,
		ToolCallLimit:     l.cfg.Policy.ToolCallLimit,
		MinEvidence:       l.cfg.Policy.MinEvidenceCount,
		Source:            github.NewBundleEvidenceSource(bundle),
		PacketsDir:        packetsDir,
		PacketContext: packet.Context{
			Repo:       repo,
			Milestone:  bundle.Milestone.Title,
			IssueCount: len(bundle.Issues),
		},
	})

	writer := NewWriter(bundle, artifactsDir, emitter, l.llm)
	artifacts, err := writer.Run(ctx)
	if err != nil {
		return nil, err
	}

	// Feed artifacts in a stable order so claim ordinals are reproducible.
	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := hook.OnArtifactCreated(artifacts[name]); err != nil {
			return nil, err
		}
	}

	if _, err := hook.OnStep(nil); err != nil {
		return nil, err
	}

	events, err := store.Events()
	if err != nil {
		return nil, fmt.Errorf("read final trace: %w", err)
	}
	if err := report.WriteFile(reportPath, report.Input{
		RunID:         runID,
		Repo:          repo,
		Milestone:     bundle.Milestone.Title,
		Events:        events,
		Graph:         hook.Graph(),
		Interventions: hook.Interventions(),
		Artifacts:     artifacts,
		PacketsDir:    packetsDir,
	}); err != nil {
		return nil, err
	}

	summary := hook.GetSummary()
	logging.Agent("run %s complete: %d events, %d interventions", runID, summary.EventCount, summary.InterventionCount)

	return &RunResult{
		RunID:             runID,
		TracePath:         tracePath,
		ReportPath:        reportPath,
		PacketsDir:        packetsDir,
		Artifacts:         artifacts,
		EventCount:        summary.EventCount,
		InterventionCount: summary.InterventionCount,
		UncoveredClaims:   summary.UncoveredClaimCount,
	}, nil
}

func (l *Loop) openStore(runDir string) (trace.Store, string, error) {
	switch l.cfg.Trace.Backend {
	case "sqlite":
		path := filepath.Join(runDir, "trace", "trace.db")
		store, err := trace.NewSQLiteStore(path)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite trace store: %w", err)
		}
		return store, path, nil
	default:
		path := filepath.Join(runDir, "trace", "trace.jsonl")
		store, err := trace.NewJSONLStore(path)
		if err != nil {
			return nil, "", fmt.Errorf("open jsonl trace store: %w", err)
		}
		return store, path, nil
	}
}
