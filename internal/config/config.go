package config

import (
	"github.com/3leaps/spirvoptreduce/pkg/interesting"
	"github.com/3leaps/spirvoptreduce/pkg/shaderjob"
)

// EnvPrefix prefixes every environment override, e.g.
// SPIRVREDUCE_REDUCER_BINARY or SPIRVREDUCE_LOGGING_LEVEL.
const EnvPrefix = "SPIRVREDUCE"

// Config is the runtime configuration of spirv-opt-reduce.
type Config struct {
	Tools   interesting.Tools `mapstructure:"tools"`
	Reducer ReducerConfig     `mapstructure:"reducer"`
	Layout  LayoutConfig      `mapstructure:"layout"`
	Script  ScriptConfig      `mapstructure:"script"`
	Logging LoggingConfig     `mapstructure:"logging"`
}

// ReducerConfig selects the external reducer.
type ReducerConfig struct {
	Binary    string   `mapstructure:"binary"`
	ExtraArgs []string `mapstructure:"extra_args"`
}

// LayoutConfig parameterizes the server working directory layout.
type LayoutConfig struct {
	Levels      int    `mapstructure:"levels"`
	FamiliesDir string `mapstructure:"families_dir"`
}

// Mapping returns the path mapping described by c.
func (c LayoutConfig) Mapping() shaderjob.WorkDirLayout {
	return shaderjob.WorkDirLayout{Levels: c.Levels, FamiliesDir: c.FamiliesDir}
}

// ScriptConfig controls the generated interestingness test.
type ScriptConfig struct {
	Name string `mapstructure:"name"`
}

// LoggingConfig controls the CLI logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}
