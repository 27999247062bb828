package runrecord

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileName is the record file written into a reduction output directory.
const FileName = "reduction.yaml"

// Store persists the Record of a single output directory.
//
// Directory layout:
//
//	<dir>/reduction.yaml
//	<dir>/shader.frag
//	<dir>/shader.json
//	<dir>/interesting.sh
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: strings.TrimSpace(dir)}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// New returns a prepared record with a fresh run ID.
func New(now time.Time) *Record {
	return &Record{
		RunID:     uuid.New().String(),
		State:     StatePrepared,
		CreatedAt: now.UTC(),
	}
}

func (s *Store) Write(record *Record) error {
	if record == nil {
		return fmt.Errorf("run record is nil")
	}
	if strings.TrimSpace(record.RunID) == "" {
		return fmt.Errorf("run_id is required")
	}
	if s.dir == "" {
		return fmt.Errorf("run record dir is empty")
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create run record dir: %w", err)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, FileName+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp run record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp run record: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("rename run record: %w", err)
	}
	return nil
}

func (s *Store) Get() (*Record, error) {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errors.New(FileName + " is empty")
	}

	var record Record
	if err := yaml.Unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FileName, err)
	}
	return &record, nil
}

// MarkRunning stamps the start of the reducer and persists the record.
func (s *Store) MarkRunning(record *Record, command []string, now time.Time) error {
	t := now.UTC()
	record.State = StateRunning
	record.ReducerCommand = append([]string(nil), command...)
	record.StartedAt = &t
	return s.Write(record)
}

// MarkFinished stamps the end of the reducer. runErr is set when the
// reducer could not be run at all; a non-zero exit code is not a failure.
func (s *Store) MarkFinished(record *Record, exitCode int, runErr error, now time.Time) error {
	t := now.UTC()
	record.EndedAt = &t
	if runErr != nil {
		record.State = StateFailed
		record.Error = runErr.Error()
		return s.Write(record)
	}
	record.State = StateFinished
	record.ReducerExit = &exitCode
	return s.Write(record)
}
