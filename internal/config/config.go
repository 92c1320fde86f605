// Package config loads sentinel configuration from YAML with environment
// variable overrides. Environment always wins over file values so secrets
// never need to live on disk.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full sentinel configuration tree.
type Config struct {
	Trace    TraceConfig    `yaml:"trace"`
	Evidence EvidenceConfig `yaml:"evidence"`
	Policy   PolicyConfig   `yaml:"policy"`
	GitHub   GitHubConfig   `yaml:"github"`
	LLM      LLMConfig      `yaml:"llm"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TraceConfig selects the trace store backend.
type TraceConfig struct {
	// Backend is "jsonl" or "sqlite".
	Backend string `yaml:"backend"`
	// WindowSize is how many trailing events a supervision step examines.
	WindowSize int `yaml:"window_size"`
}

// EvidenceConfig tunes claim-to-evidence binding.
type EvidenceConfig struct {
	CoverageThreshold   float64 `yaml:"coverage_threshold"`
	MaxBindingsPerClaim int     `yaml:"max_bindings_per_claim"`
}

// PolicyConfig tunes the intervention decision table.
type PolicyConfig struct {
	EscalateUncoveredHigh int `yaml:"escalate_uncovered_high"`
	ToolCallLimit         int `yaml:"tool_call_limit"`
	MinEvidenceCount      int `yaml:"min_evidence_count"`
}

// GitHubConfig configures the evidence fetcher.
type GitHubConfig struct {
	Token    string `yaml:"token"`
	BaseURL  string `yaml:"base_url"`
	CacheDir string `yaml:"cache_dir"`
}

// LLMConfig configures the PRD-writing agent.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// LoggingConfig controls debug logging.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Trace: TraceConfig{
			Backend:    "jsonl",
			WindowSize: 20,
		},
		Evidence: EvidenceConfig{
			CoverageThreshold:   0.2,
			MaxBindingsPerClaim: 3,
		},
		Policy: PolicyConfig{
			EscalateUncoveredHigh: 3,
			ToolCallLimit:         50,
			MinEvidenceCount:      5,
		},
		GitHub: GitHubConfig{
			BaseURL:  "https://api.github.com",
			CacheDir: ".sentinel/cache",
		},
		LLM: LLMConfig{
			Model: "gemini-2.0-flash",
		},
	}
}

// Load reads path into a Config on top of the defaults, then applies
// environment overrides. A missing file is not an error; the defaults (plus
// environment) are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("SENTINEL_DEBUG"); v == "1" || v == "true" {
		c.Logging.Debug = true
	}
}

func (c *Config) validate() error {
	if c.Trace.Backend != "jsonl" && c.Trace.Backend != "sqlite" {
		return fmt.Errorf("unknown trace backend %q (want jsonl or sqlite)", c.Trace.Backend)
	}
	if c.Evidence.CoverageThreshold <= 0 || c.Evidence.CoverageThreshold > 1 {
		return fmt.Errorf("coverage_threshold %v out of range (0, 1]", c.Evidence.CoverageThreshold)
	}
	if c.Evidence.MaxBindingsPerClaim <= 0 {
		return fmt.Errorf("max_bindings_per_claim must be positive, got %d", c.Evidence.MaxBindingsPerClaim)
	}
	return nil
}
