package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/3leaps/spirvoptreduce/pkg/interesting"
	"github.com/3leaps/spirvoptreduce/pkg/reducer"
	"github.com/3leaps/spirvoptreduce/pkg/shaderjob"
)

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tools.compiler", interesting.DefaultTools.Compiler)
	v.SetDefault("tools.optimizer", interesting.DefaultTools.Optimizer)
	v.SetDefault("tools.validator", interesting.DefaultTools.Validator)

	v.SetDefault("reducer.binary", reducer.DefaultBinary)
	v.SetDefault("reducer.extra_args", []string{})

	v.SetDefault("layout.levels", shaderjob.DefaultLayout.Levels)
	v.SetDefault("layout.families_dir", shaderjob.DefaultLayout.FamiliesDir)

	v.SetDefault("script.name", interesting.DefaultScriptName)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "console")
}

// Load builds the configuration from defaults, an optional YAML config
// file, SPIRVREDUCE_* environment variables, and runtime overrides, in
// increasing order of precedence.
func Load(ctx context.Context, configFile string, overrides ...map[string]any) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	for _, o := range overrides {
		applyOverrides(v, "", o)
	}

	var cfg Config
	// SPIRVREDUCE_REDUCER_EXTRA_ARGS arrives as one space-separated string.
	hook := mapstructure.StringToSliceHookFunc(" ")
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyOverrides sets every leaf of a nested override map so that it takes
// precedence over the environment and the config file.
func applyOverrides(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			applyOverrides(v, key, nested)
			continue
		}
		v.Set(key, val)
	}
}

// Validate rejects configurations the driver cannot run with.
func (c *Config) Validate() error {
	if c.Layout.Levels < 1 {
		return fmt.Errorf("layout.levels must be at least 1, got %d", c.Layout.Levels)
	}
	if strings.TrimSpace(c.Layout.FamiliesDir) == "" {
		return fmt.Errorf("layout.families_dir must not be empty")
	}
	if strings.TrimSpace(c.Reducer.Binary) == "" {
		return fmt.Errorf("reducer.binary must not be empty")
	}
	if strings.ContainsAny(c.Script.Name, `/\`) {
		return fmt.Errorf("script.name must be a file name, got %q", c.Script.Name)
	}
	switch strings.ToLower(c.Logging.Profile) {
	case "console", "structured":
	default:
		return fmt.Errorf("logging.profile must be console or structured, got %q", c.Logging.Profile)
	}
	return nil
}
