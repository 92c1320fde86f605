package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sentinel/internal/agent"
	"sentinel/internal/config"
	"sentinel/internal/evidence"
	"sentinel/internal/github"
	"sentinel/internal/logging"
	"sentinel/internal/report"
	"sentinel/internal/supervisor"
	"sentinel/internal/trace"
)

var (
	// Global flags
	verbose    bool
	configPath string
	runsDir    string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "sentinel - evidence-driven supervision for document-writing agents",
	Long: `sentinel runs a PRD-writing agent against a GitHub milestone and supervises
it: every claim the agent writes is bound to evidence from the milestone's
issues, and runs that drift (unsupported claims, missing metrics, runaway
tool use) are interrupted or escalated to a human with a decision packet.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Debug = true
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [owner/repo] [milestone-number]",
	Short: "Fetch and cache a milestone bundle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		milestone, err := parseMilestone(args[1])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		fetcher := github.NewFetcher(
			github.NewClient(cfg.GitHub.BaseURL, cfg.GitHub.Token),
			github.NewFileCache(cfg.GitHub.CacheDir),
			nil,
		)
		bundle, err := fetcher.FetchBundle(ctx, args[0], milestone)
		if err != nil {
			return err
		}

		logger.Info("bundle fetched",
			zap.String("repo", bundle.Repo),
			zap.String("milestone", bundle.Milestone.Title),
			zap.Int("issues", len(bundle.Issues)))
		return json.NewEncoder(os.Stdout).Encode(bundle)
	},
}

var runCmd = &cobra.Command{
	Use:   "run [owner/repo] [milestone-number]",
	Short: "Run the supervised PRD agent against a milestone",
	Long: `Fetches the milestone bundle, drafts PRD.md and LAUNCH_PLAN.md, and runs
supervision over the resulting trace. Outputs land under
<runs-dir>/<run-id>/{trace,artifacts,packets,reports}.

Without GEMINI_API_KEY the deterministic offline writer is used.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		milestone, err := parseMilestone(args[1])
		if err != nil {
			return err
		}

		runID := newRunID()
		if err := logging.Initialize(filepath.Join(runsDir, runID), cfg.Logging.Debug); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		var llm agent.LLMClient
		if cfg.LLM.APIKey != "" {
			gc, err := agent.NewGeminiClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
			if err != nil {
				return err
			}
			llm = gc
		} else {
			logger.Info("no LLM API key configured, using offline writer")
		}

		result, err := agent.NewLoop(cfg, runsDir, llm).Run(ctx, args[0], milestone, runID)
		if err != nil {
			return err
		}

		logger.Info("run complete",
			zap.String("run_id", result.RunID),
			zap.Int("events", result.EventCount),
			zap.Int("interventions", result.InterventionCount),
			zap.Int("uncovered_claims", result.UncoveredClaims),
			zap.String("report", result.ReportPath))
		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Re-render the report for a completed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		runDir := filepath.Join(runsDir, runID)

		events, artifacts, err := loadRun(runDir)
		if err != nil {
			return err
		}

		hook, err := replayIntoHook(runDir, events, artifacts)
		if err != nil {
			return err
		}

		reportPath := filepath.Join(runDir, "reports", "report.md")
		if err := report.WriteFile(reportPath, report.Input{
			RunID:         runID,
			Events:        events,
			Graph:         hook.Graph(),
			Interventions: hook.Interventions(),
			Artifacts:     artifacts,
			PacketsDir:    filepath.Join(runDir, "packets"),
		}); err != nil {
			return err
		}

		logger.Info("report written", zap.String("path", reportPath))
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay [run-id]",
	Short: "Replay a recorded trace through supervision",
	Long: `Rebuilds the evidence graph from a run's trace and artifacts, then
re-evaluates the intervention policy. Useful for testing policy or binder
changes against recorded runs without spending API calls.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID := args[0]
		runDir := filepath.Join(runsDir, runID)

		events, artifacts, err := loadRun(runDir)
		if err != nil {
			return err
		}

		hook, err := replayIntoHook(runDir, events, artifacts)
		if err != nil {
			return err
		}

		summary := hook.GetSummary()
		uncovered := hook.Graph().UncoveredClaims(evidence.SeverityHigh)

		logger.Info("replay complete",
			zap.String("run_id", runID),
			zap.Int("events", len(events)),
			zap.Int("claims", summary.TotalClaims),
			zap.Int("uncovered_high", len(uncovered)))
		for _, c := range uncovered {
			fmt.Printf("uncovered %s [%s] %s\n", c.ID, c.Section, c.Text)
		}
		for _, iv := range hook.Interventions() {
			fmt.Printf("intervention %s: %s\n", iv.Type, iv.Rationale)
		}
		return nil
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary [run-id]",
	Short: "Print the supervision summary for a completed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := summarizeRun(filepath.Join(runsDir, args[0]))
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(summary)
	},
}

// loadRun reads a completed run's trace and discovers its artifacts. The
// trace backend is detected from what is on disk, so replay and report work
// on sqlite runs and jsonl runs alike.
func loadRun(runDir string) ([]trace.Event, map[string]string, error) {
	events, err := loadTrace(runDir)
	if err != nil {
		return nil, nil, err
	}

	artifacts := make(map[string]string)
	paths, _ := filepath.Glob(filepath.Join(runDir, "artifacts", "*.md"))
	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), ".md")
		artifacts[name] = p
	}
	return events, artifacts, nil
}

func loadTrace(runDir string) ([]trace.Event, error) {
	dbPath := filepath.Join(runDir, "trace", "trace.db")
	if _, err := os.Stat(dbPath); err == nil {
		store, err := trace.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("load trace %s: %w", dbPath, err)
		}
		defer store.Close()
		return store.Events()
	}

	jsonlPath := filepath.Join(runDir, "trace", "trace.jsonl")
	if _, err := os.Stat(jsonlPath); err != nil {
		return nil, fmt.Errorf("no trace found under %s", filepath.Join(runDir, "trace"))
	}
	events, err := trace.LoadEvents(jsonlPath)
	if err != nil {
		return nil, fmt.Errorf("load trace %s: %w", jsonlPath, err)
	}
	return events, nil
}

// rebuildHook reconstructs the evidence graph from recorded events and
// artifacts on a memory copy of the trace, so the recorded run is never
// mutated and no packets are written.
func rebuildHook(runDir string, events []trace.Event, artifacts map[string]string) (*supervisor.Hook, error) {
	store := trace.NewMemoryStore(events)

	hook := supervisor.NewHook(store, supervisor.Options{
		RunID:             filepath.Base(runDir),
		CoverageThreshold: cfg.Evidence.CoverageThreshold,
		MaxBindings:       cfg.Evidence.MaxBindingsPerClaim,
		WindowSize:        cfg.Trace.WindowSize,
		EscalateUncovered: cfg.Policy.EscalateUncoveredHigh,
		ToolCallLimit:     cfg.Policy.ToolCallLimit,
		MinEvidence:       cfg.Policy.MinEvidenceCount,
	})

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
	return hook, nil
}

// replayIntoHook rebuilds supervision state and re-evaluates the policy
// against the recorded events.
func replayIntoHook(runDir string, events []trace.Event, artifacts map[string]string) (*supervisor.Hook, error) {
	hook, err := rebuildHook(runDir, events, artifacts)
	if err != nil {
		return nil, err
	}
	if _, err := hook.OnStep(events); err != nil {
		return nil, err
	}
	return hook, nil
}

// summarizeRun rebuilds the graph for a completed run and reports its
// counts. The intervention count comes from the recorded trace, not from
// the rebuilt hook, which has issued none.
func summarizeRun(runDir string) (supervisor.Summary, error) {
	events, artifacts, err := loadRun(runDir)
	if err != nil {
		return supervisor.Summary{}, err
	}
	hook, err := rebuildHook(runDir, events, artifacts)
	if err != nil {
		return supervisor.Summary{}, err
	}

	s := hook.GetSummary()
	s.InterventionCount = 0
	for _, ev := range events {
		if ev.Type == trace.TypeIntervention {
			s.InterventionCount++
		}
	}
	return s, nil
}

func parseMilestone(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("milestone must be a positive number, got %q", s)
	}
	return n, nil
}

// newRunID is a timestamp plus a short uuid suffix, sortable and unique.
func newRunID() string {
	return time.Now().UTC().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "sentinel.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&runsDir, "runs-dir", "runs", "Directory for run outputs")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(summaryCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
