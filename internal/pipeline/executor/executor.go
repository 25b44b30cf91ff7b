// Package executor runs a pipeline definition: steps execute in declared
// order, parallel groups fan out and join, and checkpoints suspend the run
// until an external decision arrives. The executor sequences and aggregates;
// it performs no retries and no partial-result recovery; those belong to the
// collaborators it is constructed with.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rowanhale/conveyor/internal/artifact"
	"github.com/rowanhale/conveyor/internal/checkpoint"
	"github.com/rowanhale/conveyor/internal/logbook"
	"github.com/rowanhale/conveyor/internal/pipeline"
	"github.com/rowanhale/conveyor/internal/task"
)

// Executor drives pipeline runs through its injected collaborators.
type Executor struct {
	runner  task.Runner
	decider checkpoint.Decider
	log     *logbook.Logbook
	clock   func() time.Time
	runID   func(pipelineID string) string
}

// Option customizes the executor instance.
type Option func(*Executor)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogbook attaches a run log. A nil logbook stays silent.
func WithLogbook(log *logbook.Logbook) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// WithRunIDFunc overrides run ID generation (primarily for tests).
func WithRunIDFunc(fn func(pipelineID string) string) Option {
	return func(e *Executor) {
		if fn != nil {
			e.runID = fn
		}
	}
}

// New wires an executor to its task and checkpoint collaborators.
func New(runner task.Runner, decider checkpoint.Decider, opts ...Option) (*Executor, error) {
	if runner == nil {
		return nil, fmt.Errorf("executor: task runner is required")
	}
	if decider == nil {
		return nil, fmt.Errorf("executor: checkpoint decider is required")
	}
	e := &Executor{
		runner:  runner,
		decider: decider,
		clock:   time.Now,
		runID:   generateRunID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunRequest seeds a pipeline run.
type RunRequest struct {
	// Initial is the input bundle available to every input builder.
	Initial map[string]any
	// Flags overrides the pipeline's declared guard flag defaults.
	Flags map[string]bool
}

// Run executes the pipeline from its first step. On success the outcome is
// StatusCompleted; a checkpoint rejection yields StatusRejected with no
// error, since rejection is a defined terminal outcome rather than a crash.
// Any task failure or schema violation aborts the run with no outcome.
func (e *Executor) Run(ctx context.Context, def pipeline.Definition, req RunRequest) (Outcome, error) {
	normalized, err := def.Normalized()
	if err != nil {
		return Outcome{}, err
	}
	flags := resolveFlags(normalized.Flags, req.Flags)
	runID := e.runID(normalized.ID)
	startedAt := e.clock()
	rc := pipeline.NewRunContext(req.Initial, flags, artifact.NewManifest(artifact.WithClock(e.clock)))
	e.log.Append(logbook.LevelInfo, fmt.Sprintf("run %s: pipeline %s started (%d steps)", runID, normalized.ID, len(normalized.Steps)))

	for idx, step := range normalized.Steps {
		switch step.Kind {
		case pipeline.StepTask:
			if err := e.runStep(ctx, rc, *step.Task); err != nil {
				e.log.Append(logbook.LevelError, fmt.Sprintf("run %s: step[%d] failed: %v", runID, idx, err))
				return Outcome{}, err
			}
		case pipeline.StepParallel:
			if err := e.runParallelGroup(ctx, rc, step.Group); err != nil {
				e.log.Append(logbook.LevelError, fmt.Sprintf("run %s: step[%d] parallel group failed: %v", runID, idx, err))
				return Outcome{}, err
			}
		case pipeline.StepCheckpoint:
			decision, err := e.runCheckpoint(ctx, rc, runID, *step.Checkpoint)
			if err != nil {
				e.log.Append(logbook.LevelError, fmt.Sprintf("run %s: checkpoint %s failed: %v", runID, step.Checkpoint.ID, err))
				return Outcome{}, err
			}
			if !decision.Approved {
				e.log.Append(logbook.LevelWarn, fmt.Sprintf("run %s: checkpoint %s rejected, terminating", runID, step.Checkpoint.ID))
				return e.outcome(runID, normalized.ID, rc, startedAt, &Rejection{
					CheckpointID: step.Checkpoint.ID,
					Note:         decision.Note,
				}), nil
			}
			e.log.Append(logbook.LevelInfo, fmt.Sprintf("run %s: checkpoint %s approved", runID, step.Checkpoint.ID))
		}
	}
	e.log.Append(logbook.LevelInfo, fmt.Sprintf("run %s: completed with %d artifacts", runID, rc.Manifest().Len()))
	return e.outcome(runID, normalized.ID, rc, startedAt, nil), nil
}

// runStep invokes one delegated task: build input, run, validate against the
// declared schema, merge into the context. A false guard records the skipped
// sentinel instead.
func (e *Executor) runStep(ctx context.Context, rc *pipeline.RunContext, step pipeline.TaskStep) error {
	if step.Guard != "" && !rc.Flag(step.Guard) {
		e.log.Append(logbook.LevelInfo, fmt.Sprintf("task %s skipped (flag %s unset)", step.Task.ID, step.Guard))
		return rc.RecordSkipped(step.SlotID())
	}
	result, err := e.invoke(ctx, rc, step.Task)
	if err != nil {
		return err
	}
	return rc.Record(step.SlotID(), result)
}

// runParallelGroup dispatches every unguarded member concurrently and joins.
// Siblings of a failed member are awaited to completion, never cancelled; the
// error reported is the first failure in declared slot order. On success,
// results merge back positionally in declared order.
func (e *Executor) runParallelGroup(ctx context.Context, rc *pipeline.RunContext, group []pipeline.TaskStep) error {
	results := make([]task.Result, len(group))
	errs := make([]error, len(group))
	skipped := make([]bool, len(group))

	var g errgroup.Group
	for i, member := range group {
		if member.Guard != "" && !rc.Flag(member.Guard) {
			skipped[i] = true
			continue
		}
		i, member := i, member
		g.Go(func() error {
			result, err := e.invoke(ctx, rc, member.Task)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	for i, member := range group {
		if skipped[i] {
			if err := rc.RecordSkipped(member.SlotID()); err != nil {
				return err
			}
			continue
		}
		if err := rc.Record(member.SlotID(), results[i]); err != nil {
			return err
		}
	}
	return nil
}

// runCheckpoint assembles the review request and blocks on the decider.
// Checkpoints are observation points: nothing in the context changes here.
func (e *Executor) runCheckpoint(ctx context.Context, rc *pipeline.RunContext, runID string, desc checkpoint.Descriptor) (checkpoint.Decision, error) {
	var summary map[string]any
	if desc.Summarize != nil {
		summary = desc.Summarize(rc)
	}
	req := checkpoint.Request{
		CheckpointID: desc.ID,
		Title:        desc.Title,
		Question:     desc.Question,
		Context: checkpoint.ReviewContext{
			RunID:     runID,
			Artifacts: rc.Manifest().Artifacts(),
			Summary:   summary,
		},
	}
	decision, err := e.decider.Decide(ctx, req)
	if err != nil {
		return checkpoint.Decision{}, fmt.Errorf("executor: checkpoint %s: %w", desc.ID, err)
	}
	return decision, nil
}

func (e *Executor) invoke(ctx context.Context, rc *pipeline.RunContext, def task.Definition) (task.Result, error) {
	input, err := buildInput(rc, def)
	if err != nil {
		return task.Result{}, fmt.Errorf("executor: build input for %s: %w", def.ID, err)
	}
	started := e.clock()
	result, err := e.runner.Run(ctx, def, input)
	if err != nil {
		return task.Result{}, &task.ExecutionError{TaskID: def.ID, Err: err}
	}
	if err := def.Schema.Validate(def.ID, result); err != nil {
		return task.Result{}, err
	}
	e.log.Append(logbook.LevelInfo, fmt.Sprintf("task %s completed in %s", def.ID, e.clock().Sub(started)))
	return result, nil
}

func buildInput(rc *pipeline.RunContext, def task.Definition) (map[string]any, error) {
	if def.Build == nil {
		return rc.Initial(), nil
	}
	return def.Build(rc)
}

func (e *Executor) outcome(runID, pipelineID string, rc *pipeline.RunContext, startedAt time.Time, rejection *Rejection) Outcome {
	status := StatusCompleted
	if rejection != nil {
		status = StatusRejected
	}
	return Outcome{
		RunID:      runID,
		PipelineID: pipelineID,
		Status:     status,
		Rejection:  rejection,
		Results:    rc.Results(),
		Artifacts:  rc.Manifest().Artifacts(),
		StartedAt:  startedAt,
		FinishedAt: e.clock(),
	}
}

func resolveFlags(declared, overrides map[string]bool) map[string]bool {
	if len(declared) == 0 && len(overrides) == 0 {
		return nil
	}
	flags := make(map[string]bool, len(declared))
	for name, value := range declared {
		flags[name] = value
	}
	for name, value := range overrides {
		flags[name] = value
	}
	return flags
}

func generateRunID(pipelineID string) string {
	if pipelineID == "" {
		pipelineID = "pipeline"
	}
	return fmt.Sprintf("%s-%s", pipelineID, uuid.NewString())
}
