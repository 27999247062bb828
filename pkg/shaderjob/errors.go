package shaderjob

import (
	"errors"
	"fmt"
)

// Sentinel errors for shader job resolution and log parsing.
var (
	// ErrInvalidInput indicates a bad argument, such as a result file with
	// the wrong extension.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a result, log, shader, or metadata file is missing.
	ErrNotFound = errors.New("file not found")

	// ErrMalformedLog indicates an expected marker is absent from an error log.
	ErrMalformedLog = errors.New("malformed error log")

	// ErrUnsupportedShaderJob indicates a shader job that is not a single
	// fragment shader.
	ErrUnsupportedShaderJob = errors.New("unsupported shader job")
)

// InvalidInputError reports an argument that cannot be used.
type InvalidInputError struct {
	// Path is the offending path, if any.
	Path string

	// Reason describes what is wrong with the input.
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid input %q: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// NotFoundError reports a file that was expected on disk but is missing.
type NotFoundError struct {
	// What names the kind of file (e.g. "result file", "original shader").
	What string

	// Path is the expected location.
	Path string

	// Err is the underlying filesystem error, if any.
	Err error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("did not find %s %q: %v", e.What, e.Path, e.Err)
	}
	return fmt.Sprintf("did not find %s %q", e.What, e.Path)
}

// Is reports ErrNotFound as well as the wrapped filesystem error.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// MalformedLogError reports a log that lacks an expected marker or whose
// marker line is not followed by the expected content.
type MalformedLogError struct {
	// Marker is the marker string that was searched for.
	Marker string

	// Path is the log file, when known.
	Path string

	// Detail optionally narrows down what was wrong.
	Detail string
}

func (e *MalformedLogError) Error() string {
	msg := fmt.Sprintf("no line containing %q", e.Marker)
	if e.Detail != "" {
		msg = fmt.Sprintf("line after %q: %s", e.Marker, e.Detail)
	}
	if e.Path != "" {
		return fmt.Sprintf("malformed error log %q: %s", e.Path, msg)
	}
	return "malformed error log: " + msg
}

func (e *MalformedLogError) Unwrap() error { return ErrMalformedLog }

// UnsupportedShaderJobError reports a shader job with stages other than a
// lone fragment shader.
type UnsupportedShaderJobError struct {
	JobBase string
	Stages  []string
}

func (e *UnsupportedShaderJobError) Error() string {
	return fmt.Sprintf("shader job %q has additional stages %v; only single fragment shader jobs are supported", e.JobBase, e.Stages)
}

func (e *UnsupportedShaderJobError) Unwrap() error { return ErrUnsupportedShaderJob }
