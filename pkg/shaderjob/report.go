package shaderjob

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const (
	// MarkerRunningOptimizer precedes the line holding the spirv-opt invocation.
	MarkerRunningOptimizer = "Running optimizer"

	// MarkerInvalidShader prefixes the spirv-val error message.
	MarkerInvalidShader = "Invalid shader: "

	// SignaturePlaceholder replaces every run of digits in an error signature.
	SignaturePlaceholder = "_"

	// optimizerPreambleArgs counts the tokens ahead of the flags in the
	// recorded invocation: binary, input, -o, output.
	optimizerPreambleArgs = 4
)

var digitRun = regexp.MustCompile(`[0-9]+`)

// ErrorReport is what a failing job's error log says about the failure.
type ErrorReport struct {
	// Flags are the spirv-opt flags of the failing invocation, in order.
	Flags []string `json:"flags" yaml:"flags"`

	// Signature is the spirv-val message with digit runs abstracted.
	Signature string `json:"signature" yaml:"signature"`
}

// AbstractDigits replaces every maximal run of ASCII digits in s with
// SignaturePlaceholder, so messages that differ only in ids or line numbers
// compare equal. Applying it twice is the same as applying it once.
func AbstractDigits(s string) string {
	return digitRun.ReplaceAllString(s, SignaturePlaceholder)
}

// ParseErrorLog reads the log at path and extracts both the optimizer flags
// and the validator error signature.
func ParseErrorLog(path string) (*ErrorReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{What: "error log", Path: path}
		}
		return nil, fmt.Errorf("read error log %s: %w", path, err)
	}

	flags, err := ExtractFlags(strings.NewReader(string(data)))
	if err != nil {
		return nil, withLogPath(err, path)
	}
	sig, err := ExtractErrorSignature(strings.NewReader(string(data)))
	if err != nil {
		return nil, withLogPath(err, path)
	}
	return &ErrorReport{Flags: flags, Signature: sig}, nil
}

func withLogPath(err error, path string) error {
	var mle *MalformedLogError
	if errors.As(err, &mle) && mle.Path == "" {
		mle.Path = path
	}
	return err
}

// ExtractFlags finds the first line containing MarkerRunningOptimizer and
// parses the invocation on the line after it, e.g.
//
//	Exec:['/path/spirv-opt', '/path/in.spv', '-o', '/path/out.spv', '-O', '--merge-blocks']
//
// The leading binary, input, -o, and output tokens are dropped and the
// remaining flags returned in order.
func ExtractFlags(r io.Reader) ([]string, error) {
	sc := newLineScanner(r)
	for sc.Scan() {
		if !strings.Contains(sc.Text(), MarkerRunningOptimizer) {
			continue
		}
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("scan error log: %w", err)
			}
			return nil, &MalformedLogError{Marker: MarkerRunningOptimizer, Detail: "log ends after marker"}
		}
		tokens, err := parseQuotedList(sc.Text())
		if err != nil {
			return nil, &MalformedLogError{Marker: MarkerRunningOptimizer, Detail: err.Error()}
		}
		if len(tokens) < optimizerPreambleArgs {
			return nil, &MalformedLogError{
				Marker: MarkerRunningOptimizer,
				Detail: fmt.Sprintf("expected at least %d arguments, got %d", optimizerPreambleArgs, len(tokens)),
			}
		}
		return tokens[optimizerPreambleArgs:], nil
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan error log: %w", err)
	}
	return nil, &MalformedLogError{Marker: MarkerRunningOptimizer}
}

// ExtractErrorSignature finds the first line containing MarkerInvalidShader
// and returns the rest of that line with digit runs abstracted.
func ExtractErrorSignature(r io.Reader) (string, error) {
	sc := newLineScanner(r)
	for sc.Scan() {
		line := sc.Text()
		_, msg, ok := strings.Cut(line, MarkerInvalidShader)
		if !ok {
			continue
		}
		return AbstractDigits(strings.TrimSuffix(msg, "\r")), nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("scan error log: %w", err)
	}
	return "", &MalformedLogError{Marker: MarkerInvalidShader}
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	// spirv-opt invocations with long pass lists easily exceed 64KiB.
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return sc
}

// parseQuotedList parses a bracketed list of quoted strings such as
// Exec:['a', "b", 'c\'d']. Text before the opening bracket is ignored.
func parseQuotedList(line string) ([]string, error) {
	start := strings.IndexByte(line, '[')
	end := strings.LastIndexByte(line, ']')
	if start < 0 || end < start {
		return nil, errors.New("expected a bracketed argument list")
	}
	body := line[start+1 : end]

	var tokens []string
	for i := 0; i < len(body); {
		c := body[i]
		switch {
		case c == ' ' || c == '\t' || c == ',':
			i++
		case c == '\'' || c == '"':
			tok, next, err := readQuoted(body, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, start+1+i)
		}
	}
	return tokens, nil
}

func readQuoted(s string, i int) (string, int, error) {
	quote := s[i]
	var b strings.Builder
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if j+1 < len(s) {
				j++
				b.WriteByte(unescape(s[j]))
			}
		case quote:
			return b.String(), j + 1, nil
		default:
			b.WriteByte(s[j])
		}
	}
	return "", 0, fmt.Errorf("unterminated quoted argument starting at offset %d", i)
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	default:
		return c
	}
}
