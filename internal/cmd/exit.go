package cmd

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/3leaps/spirvoptreduce/pkg/shaderjob"
)

const exitCodeConfig = foundry.ExitInvalidArgument

// exitCodeError carries the process exit code for a failed command.
type exitCodeError struct {
	code    int
	message string
	err     error
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.message, e.err, e.code)
}

func (e *exitCodeError) Unwrap() error { return e.err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &exitCodeError{code: code, message: message, err: err}
}

// exitCodeFor maps an error to a process exit code. Explicit exit errors win;
// otherwise the error taxonomy decides.
func exitCodeFor(err error) int {
	var ece *exitCodeError
	if errors.As(err, &ece) {
		return ece.code
	}
	switch {
	case errors.Is(err, shaderjob.ErrInvalidInput), errors.Is(err, shaderjob.ErrUnsupportedShaderJob):
		return foundry.ExitInvalidArgument
	case errors.Is(err, shaderjob.ErrNotFound):
		return foundry.ExitFileNotFound
	case errors.Is(err, shaderjob.ErrMalformedLog):
		return foundry.ExitFileReadError
	case errors.Is(err, exec.ErrNotFound):
		return foundry.ExitExternalServiceUnavailable
	default:
		return 1
	}
}

// classify wraps err from the reduction pipeline with a message and exit code.
func classify(err error) error {
	code := exitCodeFor(err)
	switch {
	case errors.Is(err, shaderjob.ErrInvalidInput):
		return exitError(code, "Invalid input", err)
	case errors.Is(err, shaderjob.ErrUnsupportedShaderJob):
		return exitError(code, "Unsupported shader job", err)
	case errors.Is(err, shaderjob.ErrNotFound):
		return exitError(code, "Missing input file", err)
	case errors.Is(err, shaderjob.ErrMalformedLog):
		return exitError(code, "Malformed error log", err)
	case errors.Is(err, exec.ErrNotFound):
		return exitError(code, "Reducer not available", err)
	default:
		return exitError(foundry.ExitFileWriteError, "Failed to prepare reduction", err)
	}
}
