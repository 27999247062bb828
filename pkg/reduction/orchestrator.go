// Package reduction prepares a shader job for reduction and hands it to the
// external reducer.
package reduction

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/spirvoptreduce/pkg/interesting"
	"github.com/3leaps/spirvoptreduce/pkg/reducer"
	"github.com/3leaps/spirvoptreduce/pkg/runrecord"
	"github.com/3leaps/spirvoptreduce/pkg/shaderjob"
)

// Canonical names of the copied shader job inside the output directory.
const (
	ShaderFile   = "shader" + shaderjob.ShaderExt
	MetadataFile = "shader" + shaderjob.MetadataExt
)

// Orchestrator wires the resolver, log parser, test generator, and reducer
// launcher together.
type Orchestrator struct {
	Resolver  *shaderjob.Resolver
	Generator *interesting.Generator
	Launcher  *reducer.Launcher
	Logger    *zap.Logger

	// PrepareOnly stops after the output directory is populated.
	PrepareOnly bool

	now func() time.Time
}

// Result summarizes one run.
type Result struct {
	RunID      string
	Location   *shaderjob.Location
	Report     *shaderjob.ErrorReport
	OutputDir  string
	ShaderPath string
	Metadata   string
	ScriptPath string
	RecordPath string

	// Outcome is nil when the reducer was not launched.
	Outcome *reducer.Outcome
}

// New returns an Orchestrator with default collaborators for any nil one.
func New(resolver *shaderjob.Resolver, gen *interesting.Generator, launcher *reducer.Launcher, logger *zap.Logger) *Orchestrator {
	if resolver == nil {
		resolver = shaderjob.NewResolver(nil)
	}
	if gen == nil {
		gen = interesting.NewGenerator(interesting.Tools{}, "")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if launcher == nil {
		launcher = reducer.NewLauncher("", nil, logger)
	}
	return &Orchestrator{
		Resolver:  resolver,
		Generator: gen,
		Launcher:  launcher,
		Logger:    logger,
		now:       time.Now,
	}
}

// Run resolves resultFile, populates outputDir, and launches the reducer
// once. The reducer's exit status is recorded but never turned into an
// error. Output already written is left in place when a later step fails.
func (o *Orchestrator) Run(ctx context.Context, resultFile, outputDir string) (*Result, error) {
	now := o.now
	if now == nil {
		now = time.Now
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := o.Resolver
	if resolver == nil {
		resolver = shaderjob.NewResolver(nil)
	}
	gen := o.Generator
	if gen == nil {
		gen = interesting.NewGenerator(interesting.Tools{}, "")
	}
	launcher := o.Launcher
	if launcher == nil {
		launcher = reducer.NewLauncher("", nil, logger)
	}

	loc, err := resolver.Resolve(resultFile)
	if err != nil {
		return nil, err
	}
	logger.Info("Resolved shader job",
		zap.String("job", loc.JobName),
		zap.String("family", loc.FamilyName),
		zap.String("shader", loc.ShaderPath))

	report, err := shaderjob.ParseErrorLog(loc.LogPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Parsed error log",
		zap.Strings("spirv_opt_flags", report.Flags),
		zap.String("error_signature", report.Signature))

	outDir, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	res := &Result{
		Location:   loc,
		Report:     report,
		OutputDir:  outDir,
		ShaderPath: filepath.Join(outDir, ShaderFile),
		Metadata:   filepath.Join(outDir, MetadataFile),
	}
	if err := copyFile(loc.ShaderPath, res.ShaderPath); err != nil {
		return nil, err
	}
	if err := copyFile(loc.MetadataPath, res.Metadata); err != nil {
		return nil, err
	}

	res.ScriptPath, err = gen.Write(outDir, report)
	if err != nil {
		return nil, err
	}
	logger.Debug("Wrote interestingness test", zap.String("path", res.ScriptPath))

	store := runrecord.NewStore(outDir)
	rec := runrecord.New(now())
	rec.JobName = loc.JobName
	rec.Family = loc.FamilyName
	rec.Inputs = runrecord.Inputs{
		ResultPath:   loc.ResultPath,
		LogPath:      loc.LogPath,
		ShaderPath:   loc.ShaderPath,
		MetadataPath: loc.MetadataPath,
	}
	if resolver.Mapping != nil {
		rec.Inputs.Layout = resolver.Mapping.Name()
	}
	rec.Flags = report.Flags
	rec.Signature = report.Signature
	rec.Script = res.ScriptPath
	if err := store.Write(rec); err != nil {
		return nil, err
	}
	res.RunID = rec.RunID
	res.RecordPath = store.Path()

	if o.PrepareOnly {
		logger.Info("Prepared reduction; reducer not launched",
			zap.String("output_dir", outDir),
			zap.Strings("reducer_command", launcher.Command(res.Metadata, res.ScriptPath, outDir)))
		return res, nil
	}

	if err := store.MarkRunning(rec, launcher.Command(res.Metadata, res.ScriptPath, outDir), now()); err != nil {
		return nil, err
	}
	outcome, runErr := launcher.Launch(ctx, res.Metadata, res.ScriptPath, outDir)
	exitCode := -1
	if outcome != nil {
		exitCode = outcome.ExitCode
	}
	if err := store.MarkFinished(rec, exitCode, runErr, now()); err != nil {
		logger.Warn("Failed to update run record", zap.Error(err))
	}
	if runErr != nil {
		return res, runErr
	}
	res.Outcome = outcome
	return res, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
