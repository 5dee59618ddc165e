package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Builder.FoldConstants)
	assert.Equal(t, "auto", cfg.Diff.Strategy)
	assert.Equal(t, "shared", cfg.Engine.GradientCache)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
builder:
  max_nodes: 5000
diff:
  strategy: reverse
engine:
  gradient_cache: none
observability:
  log_level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Builder.MaxNodes)
	assert.True(t, cfg.Builder.FoldConstants, "unset fields keep defaults")
	assert.Equal(t, "reverse", cfg.Diff.Strategy)
	assert.Equal(t, "none", cfg.Engine.GradientCache)
	assert.Equal(t, slog.LevelDebug, cfg.Observability.Level())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative max nodes", "builder:\n  max_nodes: -1\n"},
		{"unknown strategy", "diff:\n  strategy: sideways\n"},
		{"unknown cache", "engine:\n  gradient_cache: per_row\n"},
		{"unknown level", "observability:\n  log_level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gosymopt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("builder:\n  max_nodes: 10\n"), 0o600))

	t.Setenv("GOSYMOPT_MAX_NODES", "20")
	t.Setenv("GOSYMOPT_DIFF_STRATEGY", "FORWARD")
	t.Setenv("GOSYMOPT_FOLD_CONSTANTS", "0")
	t.Setenv("GOSYMOPT_METRICS_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Builder.MaxNodes)
	assert.Equal(t, "forward", cfg.Diff.Strategy)
	assert.False(t, cfg.Builder.FoldConstants)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("GOSYMOPT_GRADIENT_CACHE", "sometimes")
	_, err := Load("")
	assert.Error(t, err)
}
