package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "jsonl", cfg.Trace.Backend)
	assert.Equal(t, 0.2, cfg.Evidence.CoverageThreshold)
	assert.Equal(t, 3, cfg.Evidence.MaxBindingsPerClaim)
	assert.Equal(t, 3, cfg.Policy.EscalateUncoveredHigh)
	assert.Equal(t, 50, cfg.Policy.ToolCallLimit)
	assert.Equal(t, 5, cfg.Policy.MinEvidenceCount)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.BaseURL)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Policy, cfg.Policy)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trace:
  backend: sqlite
  window_size: 50
evidence:
  coverage_threshold: 0.35
policy:
  tool_call_limit: 10
logging:
  debug: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Trace.Backend)
	assert.Equal(t, 50, cfg.Trace.WindowSize)
	assert.Equal(t, 0.35, cfg.Evidence.CoverageThreshold)
	assert.Equal(t, 10, cfg.Policy.ToolCallLimit)
	assert.True(t, cfg.Logging.Debug)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Evidence.MaxBindingsPerClaim)
	assert.Equal(t, 3, cfg.Policy.EscalateUncoveredHigh)
}

func TestEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
github:
  token: file-token
llm:
  api_key: file-key
`), 0o644))

	t.Setenv("GITHUB_TOKEN", "env-token")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("SENTINEL_DEBUG", "1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.GitHub.Token)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.True(t, cfg.Logging.Debug)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	write := func(body string) string {
		path := filepath.Join(t.TempDir(), "sentinel.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	t.Run("unknown backend", func(t *testing.T) {
		_, err := Load(write("trace:\n  backend: csv\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown trace backend")
	})

	t.Run("threshold out of range", func(t *testing.T) {
		_, err := Load(write("evidence:\n  coverage_threshold: 1.5\n"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(write("trace: [unclosed"))
		require.Error(t, err)
	})
}
