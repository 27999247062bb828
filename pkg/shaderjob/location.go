package shaderjob

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// ResultExt is the compound extension of a shader job result file.
	ResultExt = ".info.json"

	// LogExt is the extension of the error log written next to a result.
	LogExt = ".txt"

	// ShaderExt is the extension of the (only supported) fragment source.
	ShaderExt = ".frag"

	// MetadataExt is the extension of the shader job metadata sidecar.
	MetadataExt = ".json"
)

// otherStagesGlob matches stage sources that would make a job multi-shader.
const otherStagesGlob = "{vert,comp,geom,tesc,tese}"

// Location is where the inputs of one failing shader job live on disk.
type Location struct {
	ResultPath   string `json:"result_path" yaml:"result_path"`
	LogPath      string `json:"log_path" yaml:"log_path"`
	ShaderPath   string `json:"shader_path" yaml:"shader_path"`
	MetadataPath string `json:"metadata_path" yaml:"metadata_path"`
	JobName      string `json:"job_name" yaml:"job_name"`
	FamilyName   string `json:"family_name" yaml:"family_name"`
}

// PathMapping maps a result file to the original shader job it was produced
// from. ShaderJobBase returns the job path without extension.
type PathMapping interface {
	Name() string
	ShaderJobBase(resultPath, family, job string) (string, error)
}

// WorkDirLayout is the GraphicsFuzz server working directory convention:
//
//	<work>/processing/<device>/<family>/<job>.info.json
//	<work>/shaderfamilies/<family>/<job>.frag
//
// Levels is how many directories to climb from the result file to reach
// <work>; FamiliesDir is the sibling tree holding shader families.
type WorkDirLayout struct {
	Levels      int
	FamiliesDir string
}

// DefaultLayout is the layout of a stock server working directory.
var DefaultLayout = WorkDirLayout{Levels: 4, FamiliesDir: "shaderfamilies"}

func (l WorkDirLayout) Name() string {
	return fmt.Sprintf("workdir(levels=%d,families=%s)", l.Levels, l.FamiliesDir)
}

func (l WorkDirLayout) ShaderJobBase(resultPath, family, job string) (string, error) {
	if l.Levels < 1 {
		return "", &InvalidInputError{Reason: fmt.Sprintf("layout levels must be positive, got %d", l.Levels)}
	}
	if strings.TrimSpace(l.FamiliesDir) == "" {
		return "", &InvalidInputError{Reason: "layout families dir is empty"}
	}
	root := resultPath
	for i := 0; i < l.Levels; i++ {
		parent := filepath.Dir(root)
		if parent == root {
			return "", &InvalidInputError{
				Path:   resultPath,
				Reason: fmt.Sprintf("fewer than %d parent directories", l.Levels),
			}
		}
		root = parent
	}
	return filepath.Join(root, l.FamiliesDir, family, job), nil
}

// Resolver locates the inputs of a shader job from its result file.
type Resolver struct {
	Mapping PathMapping
}

// NewResolver returns a Resolver using mapping, or DefaultLayout when nil.
func NewResolver(mapping PathMapping) *Resolver {
	if mapping == nil {
		mapping = DefaultLayout
	}
	return &Resolver{Mapping: mapping}
}

// Resolve validates resultPath and derives the companion log, shader, and
// metadata paths. Only single fragment shader jobs are accepted.
func (r *Resolver) Resolve(resultPath string) (*Location, error) {
	if strings.TrimSpace(resultPath) == "" {
		return nil, &InvalidInputError{Reason: "result file path is empty"}
	}
	abs, err := filepath.Abs(resultPath)
	if err != nil {
		return nil, fmt.Errorf("resolve result path: %w", err)
	}
	if err := requireFile("result file", abs); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(abs, ResultExt) {
		return nil, &InvalidInputError{Path: abs, Reason: fmt.Sprintf("result file must have extension %q", ResultExt)}
	}

	dir := filepath.Dir(abs)
	job := strings.TrimSuffix(filepath.Base(abs), ResultExt)
	if job == "" {
		return nil, &InvalidInputError{Path: abs, Reason: "result file has no shader job name"}
	}
	loc := &Location{
		ResultPath: abs,
		LogPath:    filepath.Join(dir, job+LogExt),
		JobName:    job,
		FamilyName: filepath.Base(dir),
	}
	if err := requireFile("error log", loc.LogPath); err != nil {
		return nil, err
	}

	mapping := r.Mapping
	if mapping == nil {
		mapping = DefaultLayout
	}
	base, err := mapping.ShaderJobBase(abs, loc.FamilyName, job)
	if err != nil {
		return nil, err
	}
	loc.ShaderPath = base + ShaderExt
	loc.MetadataPath = base + MetadataExt

	if err := requireFile("original shader", loc.ShaderPath); err != nil {
		return nil, err
	}
	if err := requireFile("shader job metadata", loc.MetadataPath); err != nil {
		return nil, err
	}
	if err := rejectOtherStages(base); err != nil {
		return nil, err
	}
	return loc, nil
}

func requireFile(what, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &NotFoundError{What: what, Path: path}
		}
		return &NotFoundError{What: what, Path: path, Err: err}
	}
	if info.IsDir() {
		return &NotFoundError{What: what, Path: path, Err: errors.New("is a directory")}
	}
	return nil
}

func rejectOtherStages(base string) error {
	dir := filepath.Dir(base)
	pattern := escapeGlob(filepath.Base(base)) + "." + otherStagesGlob
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("scan shader family %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return nil
	}
	stages := make([]string, 0, len(matches))
	for _, m := range matches {
		stages = append(stages, strings.TrimPrefix(filepath.Ext(m), "."))
	}
	sort.Strings(stages)
	return &UnsupportedShaderJobError{JobBase: base, Stages: stages}
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
