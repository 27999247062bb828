// Package interesting renders the interestingness test a reducer runs
// against every candidate shader it produces.
package interesting

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"mvdan.cc/sh/v3/syntax"

	"github.com/3leaps/spirvoptreduce/pkg/shaderjob"
)

// DefaultScriptName is the file name of the generated test.
const DefaultScriptName = "interesting.sh"

// Exit statuses of the generated test. They are the contract with the
// reducer: only StatusInteresting keeps a candidate.
const (
	StatusInteresting     = 0
	StatusCompileFailed   = 1
	StatusOptimizeFailed  = 2
	StatusValidatorPassed = 3
	StatusErrorMismatch   = 4
	StatusUsage           = 64
)

//go:embed script.sh.tmpl
var scriptTemplate string

var tmpl = template.Must(template.New("interesting").
	Funcs(template.FuncMap{"quote": shellQuote}).
	Parse(scriptTemplate))

// Tools names the external executables the test invokes.
type Tools struct {
	Compiler  string `mapstructure:"compiler" yaml:"compiler"`
	Optimizer string `mapstructure:"optimizer" yaml:"optimizer"`
	Validator string `mapstructure:"validator" yaml:"validator"`
}

// DefaultTools resolves the tools from PATH at test time.
var DefaultTools = Tools{
	Compiler:  "glslangValidator",
	Optimizer: "spirv-opt",
	Validator: "spirv-val",
}

// Generator writes interestingness tests.
type Generator struct {
	Tools      Tools
	ScriptName string
}

// NewGenerator returns a Generator for tools; empty fields fall back to
// DefaultTools.
func NewGenerator(tools Tools, scriptName string) *Generator {
	if tools.Compiler == "" {
		tools.Compiler = DefaultTools.Compiler
	}
	if tools.Optimizer == "" {
		tools.Optimizer = DefaultTools.Optimizer
	}
	if tools.Validator == "" {
		tools.Validator = DefaultTools.Validator
	}
	if strings.TrimSpace(scriptName) == "" {
		scriptName = DefaultScriptName
	}
	return &Generator{Tools: tools, ScriptName: scriptName}
}

type scriptData struct {
	Tools
	ScriptName    string
	CompilerName  string
	OptimizerName string
	ValidatorName string
	Flags         []string
	Signature     string
	Placeholder   string
}

// Render produces the test script for report. The output is checked to
// parse as a POSIX shell program.
func (g *Generator) Render(report *shaderjob.ErrorReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("error report is nil")
	}
	if strings.ContainsAny(report.Signature, "\n\r") {
		return nil, fmt.Errorf("error signature spans multiple lines: %q", report.Signature)
	}
	data := scriptData{
		Tools:         g.Tools,
		ScriptName:    g.ScriptName,
		CompilerName:  filepath.Base(g.Tools.Compiler),
		OptimizerName: filepath.Base(g.Tools.Optimizer),
		ValidatorName: filepath.Base(g.Tools.Validator),
		Flags:         report.Flags,
		Signature:     report.Signature,
		Placeholder:   shaderjob.SignaturePlaceholder,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render interestingness test: %w", err)
	}
	if _, err := syntax.NewParser(syntax.Variant(syntax.LangPOSIX)).Parse(bytes.NewReader(buf.Bytes()), g.ScriptName); err != nil {
		return nil, fmt.Errorf("rendered interestingness test does not parse: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders the test into dir and marks it executable by its owner.
// It returns the script path.
func (g *Generator) Write(dir string, report *shaderjob.ErrorReport) (string, error) {
	script, err := g.Render(report)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, g.ScriptName)
	if err := os.WriteFile(path, script, 0644); err != nil {
		return "", fmt.Errorf("write interestingness test: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat interestingness test: %w", err)
	}
	if err := os.Chmod(path, info.Mode()|0100); err != nil {
		return "", fmt.Errorf("make interestingness test executable: %w", err)
	}
	return path, nil
}

func shellQuote(s string) (string, error) {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("cannot quote %q for the shell: %w", s, err)
	}
	return q, nil
}
