package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/spirvoptreduce/internal/config"
	"github.com/3leaps/spirvoptreduce/internal/observability"
	"github.com/3leaps/spirvoptreduce/pkg/shaderjob"
)

const binaryName = "spirv-opt-reduce"

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata, typically injected via -ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	cfgFile     string
	logLevel    string
	prepareOnly bool

	// appConfig is populated by the root PersistentPreRunE.
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   binaryName + " <result-file> <output-dir>",
	Short: "Reduce a shader for which spirv-opt generates invalid SPIR-V",
	Long: `Reduce a GLSL fragment shader for which glslang + spirv-opt produce SPIR-V
that spirv-val rejects.

Point the command at a shader job result (<job>.info.json) in a server working
directory. It reads the job's error log to recover the spirv-opt flags and the
spirv-val error, copies the original shader job into the output directory as
shader.frag and shader.json, writes an interestingness test, and runs the
reducer on it.

Expected layout:
  <work>/processing/<device>/<family>/<job>.info.json
  <work>/processing/<device>/<family>/<job>.txt
  <work>/shaderfamilies/<family>/<job>.frag
  <work>/shaderfamilies/<family>/<job>.json

Examples:
  spirv-opt-reduce /data/work/processing/pixel3/frag_squares/variant_185.info.json ./reduction
  spirv-opt-reduce --prepare-only result.info.json ./reduction
  SPIRVREDUCE_REDUCER_BINARY=/opt/gf/glsl-reduce spirv-opt-reduce result.info.json ./out`,
	Args:              requireResultAndOutput,
	PersistentPreRunE: initRuntime,
	RunE:              runReduce,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.Flags().BoolVar(&prepareOnly, "prepare-only", false, "Populate the output directory without launching the reducer")
}

func requireResultAndOutput(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return &shaderjob.InvalidInputError{
			Reason: fmt.Sprintf("expected <result-file> and <output-dir>, got %d argument(s)", len(args)),
		}
	}
	return nil
}

func initRuntime(cmd *cobra.Command, args []string) error {
	var overrides map[string]any
	if logLevel != "" {
		overrides = map[string]any{"logging": map[string]any{"level": logLevel}}
	}
	cfg, err := config.Load(cmd.Context(), cfgFile, overrides)
	if err != nil {
		return exitError(exitCodeConfig, "Invalid configuration", err)
	}
	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return exitError(exitCodeConfig, "Invalid logging configuration", err)
	}
	appConfig = cfg
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return ExecuteContext(context.Background(), os.Args[1:])
}

// ExecuteContext runs the root command with args and returns the process
// exit code.
func ExecuteContext(ctx context.Context, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	code := exitCodeFor(err)
	observability.CLILogger.Error("Command failed", zap.Error(err), zap.Int("exit_code", code))
	_, _ = fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
	var ece *exitCodeError
	if !errors.As(err, &ece) {
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), "Run '"+binaryName+" --help' for usage.")
	}
	return code
}
