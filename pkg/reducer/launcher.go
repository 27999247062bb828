// Package reducer launches the external shader reducer.
package reducer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBinary is the reducer invoked when none is configured.
const DefaultBinary = "glsl-reduce"

// Runner runs an external program to completion. A program that ran and
// exited non-zero is reported through exitCode with a nil error; err is
// reserved for programs that could not be run.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) (exitCode int, err error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = os.Environ()

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Launcher runs the reducer once against a prepared output directory.
type Launcher struct {
	Binary    string
	ExtraArgs []string
	Runner    Runner
	Stdout    io.Writer
	Stderr    io.Writer
	Logger    *zap.Logger
}

// NewLauncher returns a Launcher for binary (DefaultBinary when empty)
// that runs through os/exec and shares the process's stdout and stderr.
func NewLauncher(binary string, extraArgs []string, logger *zap.Logger) *Launcher {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		Binary:    binary,
		ExtraArgs: extraArgs,
		Runner:    ExecRunner{},
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Logger:    logger,
	}
}

// Outcome describes a finished reducer run. Its exit code is informational.
type Outcome struct {
	Command  []string
	ExitCode int
	Duration time.Duration
}

// Args returns the reducer arguments:
//
//	<metadata> <script> --output <outputDir> [extra...]
func (l *Launcher) Args(metadataPath, scriptPath, outputDir string) []string {
	args := []string{metadataPath, scriptPath, "--output", outputDir}
	return append(args, l.ExtraArgs...)
}

// Command returns the full reducer command line.
func (l *Launcher) Command(metadataPath, scriptPath, outputDir string) []string {
	return append([]string{l.Binary}, l.Args(metadataPath, scriptPath, outputDir)...)
}

// Launch runs the reducer and waits for it to exit.
func (l *Launcher) Launch(ctx context.Context, metadataPath, scriptPath, outputDir string) (*Outcome, error) {
	runner := l.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	args := l.Args(metadataPath, scriptPath, outputDir)
	logger.Info("Launching reducer",
		zap.String("binary", l.Binary),
		zap.Strings("args", args))

	start := time.Now()
	code, err := runner.Run(ctx, l.Binary, args, l.Stdout, l.Stderr)
	elapsed := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("run reducer %s: %w", l.Binary, err)
	}

	logger.Info("Reducer exited",
		zap.Int("exit_code", code),
		zap.Duration("duration", elapsed))
	return &Outcome{
		Command:  append([]string{l.Binary}, args...),
		ExitCode: code,
		Duration: elapsed,
	}, nil
}
