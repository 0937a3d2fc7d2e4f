package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qw4990/online_index_advisor/interaction"
)

func writeConfig(t *testing.T, content string) string {
	p := filepath.Join(t.TempDir(), "advisor.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
	cmp, err := cfg.Tuning.Comparison()
	require.NoError(t, err)
	require.Equal(t, interaction.Strict, cmp)
	require.Equal(t, "forward", cfg.Tuning.DecisionPolicy)
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
log_level: debug
tuning:
  max_hot_set_size: 12
  interaction_threshold: 0.5
  threshold_comparison: inclusive
  drop_cost_policy: modeled
  decision_policy: amortized
profiler:
  parallelism: 8
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 12, cfg.Tuning.MaxHotSetSize)
	require.Equal(t, 2000, cfg.Tuning.MaxNumStates) // untouched default
	require.Equal(t, 0.5, cfg.Tuning.InteractionThreshold)
	cmp, err := cfg.Tuning.Comparison()
	require.NoError(t, err)
	require.Equal(t, interaction.Inclusive, cmp)
	require.Equal(t, "modeled", cfg.Tuning.DropCostPolicy)
	require.Equal(t, "amortized", cfg.Tuning.DecisionPolicy)
	require.Equal(t, 8, cfg.Profiler.Parallelism)
	require.Equal(t, 2, cfg.Profiler.MaxIndexWidth)
}

func TestLoadInvalid(t *testing.T) {
	cases := []string{
		"tuning:\n  max_num_states: 1\n",
		"tuning:\n  max_num_states: 1073741825\n",
		"tuning:\n  decision_policy: backward\n",
		"tuning:\n  threshold_comparison: '>='\n",
		"tuning:\n  drop_cost_policy: free\n",
		"profiler:\n  max_index_width: 9\n",
		"log_level: verbose\n",
		"tuning: [",
	}
	for _, c := range cases {
		_, err := Load(writeConfig(t, c))
		require.Error(t, err, c)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	cfg, err := Load(writeConfig(t, "tuning:\n  max_num_states: 1073741824\n"))
	require.NoError(t, err)
	require.Equal(t, MaxNumStatesLimit, cfg.Tuning.MaxNumStates)
}

func TestComparisonRejectsUnknownNames(t *testing.T) {
	tuning := DefaultTuning()
	tuning.ThresholdComparison = ">="
	_, err := tuning.Comparison()
	require.Error(t, err)
}
