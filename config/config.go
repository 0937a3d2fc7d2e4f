// Package config loads the settings of the online index advisor.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/qw4990/online_index_advisor/interaction"
	"github.com/qw4990/online_index_advisor/utils"
)

// Config is the root configuration.
type Config struct {
	LogLevel string   `yaml:"log_level" validate:"omitempty,oneof=debug info warning error"`
	Tuning   Tuning   `yaml:"tuning"`
	Profiler Profiler `yaml:"profiler"`
}

// MaxNumStatesLimit bounds max_num_states, so that no group is wider than 30 indexes.
const MaxNumStatesLimit = 1 << 30

// Tuning configures the online recommendation engine.
// MaxHotSetSize is a soft ceiling, raised when required indexes overflow it.
// MaxNumStates bounds the sum of 2^|group| over all partitions.
// StatsWindow is the number of measurements kept per index.
type Tuning struct {
	MaxHotSetSize        int     `yaml:"max_hot_set_size" validate:"min=1"`
	MaxNumStates         int     `yaml:"max_num_states" validate:"min=2,max=1073741824"`
	InteractionThreshold float64 `yaml:"interaction_threshold" validate:"gte=0"`
	ThresholdComparison  string  `yaml:"threshold_comparison" validate:"oneof=strict inclusive"`
	DropCostPolicy       string  `yaml:"drop_cost_policy" validate:"oneof=zero modeled"`
	DecisionPolicy       string  `yaml:"decision_policy" validate:"oneof=forward amortized"`
	StatsWindow          int     `yaml:"stats_window" validate:"min=1"`
	Ranking              string  `yaml:"ranking" validate:"oneof=benefit benefit_per_storage"`
}

// Profiler configures how queries are turned into candidates and benefit graphs.
type Profiler struct {
	MaxIndexWidth    int     `yaml:"max_index_width" validate:"min=1,max=5"`
	CreateCostFactor float64 `yaml:"create_cost_factor" validate:"gt=0"`
	Parallelism      int     `yaml:"parallelism" validate:"min=1,max=64"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Tuning:   DefaultTuning(),
		Profiler: Profiler{
			MaxIndexWidth:    2,
			CreateCostFactor: 1,
			Parallelism:      4,
		},
	}
}

// DefaultTuning returns the default engine settings.
func DefaultTuning() Tuning {
	return Tuning{
		MaxHotSetSize:        40,
		MaxNumStates:         2000,
		InteractionThreshold: 0.01,
		ThresholdComparison:  "strict",
		DropCostPolicy:       "zero",
		DecisionPolicy:       "forward",
		StatsWindow:          100,
		Ranking:              "benefit",
	}
}

// Comparison returns the configured threshold comparison.
func (t Tuning) Comparison() (interaction.Comparison, error) {
	return interaction.ParseComparison(t.ThresholdComparison)
}

// Load reads the configuration file on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	utils.Debugf("load config from %v: %+v", path, cfg)
	return cfg, nil
}

var validate = validator.New()

// Validate checks all fields of the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}
