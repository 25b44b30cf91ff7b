// Package checkpoint models the human-review pause points a pipeline can
// declare. A checkpoint presents a question plus the artifacts and summary
// accumulated so far, then blocks the run until an external decision arrives.
// Checkpoints observe; they never mutate task results.
package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"github.com/rowanhale/conveyor/internal/artifact"
	"github.com/rowanhale/conveyor/internal/task"
)

// Summarizer builds the free-form summary object presented to a reviewer
// from the current run context.
type Summarizer func(view task.ContextView) map[string]any

// Descriptor declares a checkpoint inside a pipeline definition.
type Descriptor struct {
	ID       string
	Title    string
	Question string
	// Summarize is optional; nil produces an empty summary.
	Summarize Summarizer
}

// Validate ensures the descriptor is usable.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("checkpoint: id is required")
	}
	if strings.TrimSpace(d.Question) == "" {
		return fmt.Errorf("checkpoint: question is required for %s", d.ID)
	}
	return nil
}

// ReviewContext carries everything a reviewer sees alongside the question.
type ReviewContext struct {
	RunID     string              `json:"run_id"`
	Artifacts []artifact.Artifact `json:"artifacts,omitempty"`
	Summary   map[string]any      `json:"summary,omitempty"`
}

// Request is the payload handed to the checkpoint collaborator.
type Request struct {
	CheckpointID string        `json:"checkpoint_id"`
	Title        string        `json:"title,omitempty"`
	Question     string        `json:"question"`
	Context      ReviewContext `json:"context"`
}

// Decision resolves a checkpoint: approve continues the run, reject
// terminates it cleanly without completing remaining steps.
type Decision struct {
	Approved bool   `json:"approved"`
	Note     string `json:"note,omitempty"`
}

// Decider is the checkpoint collaborator contract. Decide blocks until a
// decision is available or the context is done.
type Decider interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, req Request) (Decision, error)

// Decide implements Decider.
func (f DeciderFunc) Decide(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// AutoApprover approves every checkpoint. Used for unattended runs and tests.
type AutoApprover struct {
	Note string
}

// Decide implements Decider.
func (a AutoApprover) Decide(_ context.Context, _ Request) (Decision, error) {
	return Decision{Approved: true, Note: a.Note}, nil
}
