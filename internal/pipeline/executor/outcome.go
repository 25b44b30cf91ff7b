package executor

import (
	"time"

	"github.com/rowanhale/conveyor/internal/artifact"
	"github.com/rowanhale/conveyor/internal/task"
)

// Status is the terminal state of a pipeline run that produced an outcome.
// Fatal errors produce no outcome at all.
type Status string

const (
	// StatusCompleted means every step ran (or was skipped by its guard).
	StatusCompleted Status = "completed"
	// StatusRejected means a reviewer declined a checkpoint; remaining steps
	// never executed.
	StatusRejected Status = "rejected"
)

// Rejection identifies which checkpoint terminated a run and why.
type Rejection struct {
	CheckpointID string `json:"checkpoint_id"`
	Note         string `json:"note,omitempty"`
}

// Outcome is the final structured result of a pipeline run.
type Outcome struct {
	RunID      string                 `json:"run_id"`
	PipelineID string                 `json:"pipeline_id"`
	Status     Status                 `json:"status"`
	Rejection  *Rejection             `json:"rejection,omitempty"`
	Results    map[string]task.Result `json:"results,omitempty"`
	Artifacts  []artifact.Artifact    `json:"artifacts,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Duration reports wall-clock time between start and finish.
func (o Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}
