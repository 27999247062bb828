package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/spirvoptreduce/internal/config"
	"github.com/3leaps/spirvoptreduce/internal/observability"
	"github.com/3leaps/spirvoptreduce/pkg/interesting"
	"github.com/3leaps/spirvoptreduce/pkg/reducer"
	"github.com/3leaps/spirvoptreduce/pkg/reduction"
	"github.com/3leaps/spirvoptreduce/pkg/shaderjob"
)

// newReducerRunner is swapped out in tests.
var newReducerRunner = func() reducer.Runner { return reducer.ExecRunner{} }

func runReduce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := appConfig
	if cfg == nil {
		var err error
		if cfg, err = config.Load(ctx, cfgFile); err != nil {
			return exitError(exitCodeConfig, "Invalid configuration", err)
		}
	}
	resultFile, outputDir := args[0], args[1]
	logger := observability.CLILogger

	launcher := reducer.NewLauncher(cfg.Reducer.Binary, cfg.Reducer.ExtraArgs, logger)
	launcher.Runner = newReducerRunner()
	launcher.Stdout = cmd.OutOrStdout()
	launcher.Stderr = cmd.ErrOrStderr()

	o := reduction.New(
		shaderjob.NewResolver(cfg.Layout.Mapping()),
		interesting.NewGenerator(cfg.Tools, cfg.Script.Name),
		launcher,
		logger,
	)
	o.PrepareOnly = prepareOnly

	res, err := o.Run(ctx, resultFile, outputDir)
	if err != nil {
		logger.Error("Reduction failed",
			zap.String("result_file", resultFile),
			zap.String("output_dir", outputDir),
			zap.Error(err))
		return classify(err)
	}

	fields := []zap.Field{
		zap.String("run_id", res.RunID),
		zap.String("output_dir", res.OutputDir),
		zap.String("record", res.RecordPath),
	}
	if res.Outcome != nil {
		fields = append(fields, zap.Int("reducer_exit_code", res.Outcome.ExitCode))
	}
	logger.Info("Done", fields...)
	return nil
}
