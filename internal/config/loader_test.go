package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/spirvoptreduce/pkg/shaderjob"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	// Test basic config loading with defaults
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "glslangValidator", cfg.Tools.Compiler)
		assert.Equal(t, "spirv-opt", cfg.Tools.Optimizer)
		assert.Equal(t, "spirv-val", cfg.Tools.Validator)

		assert.Equal(t, "glsl-reduce", cfg.Reducer.Binary)
		assert.Empty(t, cfg.Reducer.ExtraArgs)

		assert.Equal(t, 4, cfg.Layout.Levels)
		assert.Equal(t, "shaderfamilies", cfg.Layout.FamiliesDir)
		assert.Equal(t, shaderjob.DefaultLayout, cfg.Layout.Mapping())

		assert.Equal(t, "interesting.sh", cfg.Script.Name)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "console", cfg.Logging.Profile)
	})

	// Test runtime overrides
	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"reducer": map[string]any{
				"binary": "/opt/graphicsfuzz/bin/glsl-reduce",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, "", overrides)
		require.NoError(t, err)

		assert.Equal(t, "/opt/graphicsfuzz/bin/glsl-reduce", cfg.Reducer.Binary)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, "console", cfg.Logging.Profile)
		assert.Equal(t, 4, cfg.Layout.Levels)
	})

	// Test environment variable overrides
	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("SPIRVREDUCE_REDUCER_BINARY", "my-reduce")
		t.Setenv("SPIRVREDUCE_REDUCER_EXTRA_ARGS", "--max-steps 50")
		t.Setenv("SPIRVREDUCE_LAYOUT_LEVELS", "3")
		t.Setenv("SPIRVREDUCE_TOOLS_VALIDATOR", "/usr/local/bin/spirv-val")

		cfg, err := Load(ctx, "")
		require.NoError(t, err)

		assert.Equal(t, "my-reduce", cfg.Reducer.Binary)
		assert.Equal(t, []string{"--max-steps", "50"}, cfg.Reducer.ExtraArgs)
		assert.Equal(t, 3, cfg.Layout.Levels)
		assert.Equal(t, "/usr/local/bin/spirv-val", cfg.Tools.Validator)
	})

	t.Run("OverridesBeatEnv", func(t *testing.T) {
		t.Setenv("SPIRVREDUCE_LOGGING_LEVEL", "warn")

		cfg, err := Load(ctx, "", map[string]any{"logging": map[string]any{"level": "debug"}})
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "spirv-opt-reduce.yaml")
		content := `
reducer:
  binary: glsl-reduce-nightly
  extra_args: ["--verbose", "--seed", "1"]
layout:
  families_dir: families
script:
  name: check.sh
logging:
  profile: structured
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "glsl-reduce-nightly", cfg.Reducer.Binary)
		assert.Equal(t, []string{"--verbose", "--seed", "1"}, cfg.Reducer.ExtraArgs)
		assert.Equal(t, "families", cfg.Layout.FamiliesDir)
		assert.Equal(t, "check.sh", cfg.Script.Name)
		assert.Equal(t, "structured", cfg.Logging.Profile)
	})

	t.Run("MissingConfigFile", func(t *testing.T) {
		_, err := Load(ctx, filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("InvalidValues", func(t *testing.T) {
		cases := []map[string]any{
			{"layout": map[string]any{"levels": 0}},
			{"layout": map[string]any{"families_dir": " "}},
			{"reducer": map[string]any{"binary": ""}},
			{"script": map[string]any{"name": "sub/dir.sh"}},
			{"logging": map[string]any{"profile": "fancy"}},
		}
		for _, o := range cases {
			_, err := Load(ctx, "", o)
			assert.Error(t, err, "overrides %v", o)
		}
	})
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	assert.Equal(t, "glsl-reduce", v.GetString("reducer.binary"))
	assert.Equal(t, 4, v.GetInt("layout.levels"))
	assert.Equal(t, "shaderfamilies", v.GetString("layout.families_dir"))
	assert.Equal(t, "info", v.GetString("logging.level"))
}
