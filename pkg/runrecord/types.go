package runrecord

import "time"

// State is the lifecycle state of a reduction run.
//
// NOTE: These values are persisted in reduction.yaml and are part of the
// on-disk contract.
type State string

const (
	StatePrepared State = "prepared"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// Inputs are the files a run was prepared from.
type Inputs struct {
	ResultPath   string `yaml:"result_path"`
	LogPath      string `yaml:"log_path"`
	ShaderPath   string `yaml:"shader_path"`
	MetadataPath string `yaml:"metadata_path"`
	Layout       string `yaml:"layout,omitempty"`
}

// Record is the persistent record of one reduction run.
//
// The schema is designed for backward-compatible extension (additive fields).
type Record struct {
	RunID     string    `yaml:"run_id"`
	State     State     `yaml:"state"`
	JobName   string    `yaml:"job_name"`
	Family    string    `yaml:"family"`
	Inputs    Inputs    `yaml:"inputs"`
	Flags     []string  `yaml:"spirv_opt_flags"`
	Signature string    `yaml:"error_signature"`
	Script    string    `yaml:"interestingness_test"`
	CreatedAt time.Time `yaml:"created_at"`

	ReducerCommand []string   `yaml:"reducer_command,omitempty"`
	ReducerExit    *int       `yaml:"reducer_exit_code,omitempty"`
	Error          string     `yaml:"error,omitempty"`
	StartedAt      *time.Time `yaml:"started_at,omitempty"`
	EndedAt        *time.Time `yaml:"ended_at,omitempty"`
}
