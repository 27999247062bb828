package cmd

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/spirvoptreduce/internal/config"
	"github.com/3leaps/spirvoptreduce/internal/observability"
)

var lookPath = exec.LookPath

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Check that the tools a reduction depends on can be found.

The interestingness test runs the shader compiler, optimizer, and validator on
every candidate, and the reducer must be launchable. All four are looked up on
PATH unless configured as absolute paths.

Examples:
  spirv-opt-reduce doctor
  SPIRVREDUCE_TOOLS_VALIDATOR=/opt/vulkan/bin/spirv-val spirv-opt-reduce doctor`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type toolCheck struct {
	role string
	name string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if cfg == nil {
		var err error
		if cfg, err = config.Load(cmd.Context(), cfgFile); err != nil {
			return exitError(exitCodeConfig, "Invalid configuration", err)
		}
	}
	log := observability.CLILogger
	out := cmd.OutOrStdout()

	checks := []toolCheck{
		{role: "shader compiler", name: cfg.Tools.Compiler},
		{role: "optimizer", name: cfg.Tools.Optimizer},
		{role: "validator", name: cfg.Tools.Validator},
		{role: "reducer", name: cfg.Reducer.Binary},
	}
	total := len(checks) + 1

	_, _ = fmt.Fprintf(out, "=== %s doctor ===\n\n", binaryName)
	_, _ = fmt.Fprintf(out, "[1/%d] Checking environment... ✅ %s %s/%s\n", total, runtime.Version(), runtime.GOOS, runtime.GOARCH)

	var missing []string
	for i, c := range checks {
		path, err := lookPath(c.name)
		if err != nil {
			_, _ = fmt.Fprintf(out, "[%d/%d] Checking %s... ❌ %s not found\n", i+2, total, c.role, c.name)
			log.Warn("Tool not found", zap.String("role", c.role), zap.String("name", c.name), zap.Error(err))
			missing = append(missing, c.name)
			continue
		}
		_, _ = fmt.Fprintf(out, "[%d/%d] Checking %s... ✅ %s\n", i+2, total, c.role, path)
		log.Debug("Tool found", zap.String("role", c.role), zap.String("path", path))
	}

	_, _ = fmt.Fprintln(out)
	if len(missing) > 0 {
		_, _ = fmt.Fprintln(out, "⚠️  Some checks failed. Install the missing tools or configure their paths.")
		return exitError(foundry.ExitExternalServiceUnavailable, "Missing tools", fmt.Errorf("not found: %v", missing))
	}
	_, _ = fmt.Fprintln(out, "✅ All checks passed!")
	return nil
}
