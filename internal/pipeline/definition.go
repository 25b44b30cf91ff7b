// Package pipeline declares the ordered step list a run executes: delegated
// task steps, parallel groups, and human-review checkpoints, plus the guard
// flags that make individual task steps conditional.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/rowanhale/conveyor/internal/checkpoint"
	"github.com/rowanhale/conveyor/internal/task"
)

// StepKind discriminates the step variants.
type StepKind string

const (
	StepTask       StepKind = "task"
	StepParallel   StepKind = "parallel"
	StepCheckpoint StepKind = "checkpoint"
)

// TaskStep binds a task definition to a result slot, optionally guarded by a
// flag. A false guard skips the step: no invocation, no artifacts, and the
// slot holds the explicit skipped sentinel.
type TaskStep struct {
	Slot  string
	Task  task.Definition
	Guard string
}

// SlotID returns the result slot, defaulting to the task ID.
func (s TaskStep) SlotID() string {
	if s.Slot != "" {
		return s.Slot
	}
	return s.Task.ID
}

// Step is one entry in a pipeline's ordered step list. Exactly one of the
// variant fields is set, matching Kind.
type Step struct {
	Kind       StepKind
	Task       *TaskStep
	Group      []TaskStep
	Checkpoint *checkpoint.Descriptor
}

// Task builds a sequential task step.
func Task(def task.Definition) Step {
	return Step{Kind: StepTask, Task: &TaskStep{Task: def}}
}

// TaskInto builds a sequential task step recording into an explicit slot.
func TaskInto(slot string, def task.Definition) Step {
	return Step{Kind: StepTask, Task: &TaskStep{Slot: slot, Task: def}}
}

// TaskIf builds a task step guarded by a flag.
func TaskIf(guard string, def task.Definition) Step {
	return Step{Kind: StepTask, Task: &TaskStep{Task: def, Guard: guard}}
}

// Parallel builds a parallel group from its member task steps.
func Parallel(members ...TaskStep) Step {
	return Step{Kind: StepParallel, Group: members}
}

// Checkpoint builds a human-review pause point.
func Checkpoint(desc checkpoint.Descriptor) Step {
	return Step{Kind: StepCheckpoint, Checkpoint: &desc}
}

// Definition declares an executable pipeline: identity, guard flags with
// their defaults, and the ordered step list.
type Definition struct {
	ID          string
	Name        string
	Description string
	Flags       map[string]bool
	Steps       []Step
}

// Clone returns a deep copy of the definition. Task definitions are value
// types and copy with the step.
func (def Definition) Clone() Definition {
	clone := Definition{
		ID:          def.ID,
		Name:        def.Name,
		Description: def.Description,
	}
	if len(def.Flags) > 0 {
		clone.Flags = make(map[string]bool, len(def.Flags))
		for name, value := range def.Flags {
			clone.Flags[name] = value
		}
	}
	if len(def.Steps) > 0 {
		clone.Steps = make([]Step, len(def.Steps))
		for i, step := range def.Steps {
			clone.Steps[i] = step.clone()
		}
	}
	return clone
}

func (s Step) clone() Step {
	clone := Step{Kind: s.Kind}
	if s.Task != nil {
		taskCopy := *s.Task
		clone.Task = &taskCopy
	}
	if len(s.Group) > 0 {
		clone.Group = make([]TaskStep, len(s.Group))
		copy(clone.Group, s.Group)
	}
	if s.Checkpoint != nil {
		descCopy := *s.Checkpoint
		clone.Checkpoint = &descCopy
	}
	return clone
}

// Validate ensures the pipeline is self-consistent: known step kinds, unique
// task IDs, result slots, and effect IDs, unique checkpoint IDs, guards
// referencing declared flags, and non-empty parallel groups.
func (def Definition) Validate() error {
	if strings.TrimSpace(def.ID) == "" {
		return fmt.Errorf("pipeline: id is required")
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("pipeline %s: at least one step is required", def.ID)
	}
	taskIDs := map[string]struct{}{}
	slots := map[string]struct{}{}
	effects := map[string]struct{}{}
	checkpoints := map[string]struct{}{}
	for idx, step := range def.Steps {
		switch step.Kind {
		case StepTask:
			if step.Task == nil {
				return fmt.Errorf("pipeline %s step[%d]: task step missing its task", def.ID, idx)
			}
			if err := def.validateTaskStep(*step.Task, taskIDs, slots, effects); err != nil {
				return fmt.Errorf("pipeline %s step[%d]: %w", def.ID, idx, err)
			}
		case StepParallel:
			if len(step.Group) == 0 {
				return fmt.Errorf("pipeline %s step[%d]: parallel group is empty", def.ID, idx)
			}
			for mi, member := range step.Group {
				if err := def.validateTaskStep(member, taskIDs, slots, effects); err != nil {
					return fmt.Errorf("pipeline %s step[%d] member[%d]: %w", def.ID, idx, mi, err)
				}
			}
		case StepCheckpoint:
			if step.Checkpoint == nil {
				return fmt.Errorf("pipeline %s step[%d]: checkpoint step missing its descriptor", def.ID, idx)
			}
			if err := step.Checkpoint.Validate(); err != nil {
				return fmt.Errorf("pipeline %s step[%d]: %w", def.ID, idx, err)
			}
			if _, dup := checkpoints[step.Checkpoint.ID]; dup {
				return fmt.Errorf("pipeline %s step[%d]: duplicate checkpoint id %s", def.ID, idx, step.Checkpoint.ID)
			}
			checkpoints[step.Checkpoint.ID] = struct{}{}
		default:
			return fmt.Errorf("pipeline %s step[%d]: unknown step kind %q", def.ID, idx, step.Kind)
		}
	}
	return nil
}

func (def Definition) validateTaskStep(step TaskStep, taskIDs, slots, effects map[string]struct{}) error {
	if err := step.Task.Validate(); err != nil {
		return err
	}
	if _, dup := taskIDs[step.Task.ID]; dup {
		return fmt.Errorf("pipeline: duplicate task id %s", step.Task.ID)
	}
	taskIDs[step.Task.ID] = struct{}{}
	slot := step.SlotID()
	if _, dup := slots[slot]; dup {
		return fmt.Errorf("pipeline: duplicate result slot %s", slot)
	}
	slots[slot] = struct{}{}
	// Effect IDs namespace the recorded input/result of each invocation; a
	// collision would let two tasks write into the same run directory.
	effect := step.Task.EffectID()
	if _, dup := effects[effect]; dup {
		return fmt.Errorf("pipeline: duplicate effect id %s", effect)
	}
	effects[effect] = struct{}{}
	if step.Guard != "" {
		if _, declared := def.Flags[step.Guard]; !declared {
			return fmt.Errorf("pipeline: task %s guarded by undeclared flag %s", step.Task.ID, step.Guard)
		}
	}
	return nil
}

// Normalized clones the definition, trims identity fields, and validates the
// result.
func (def Definition) Normalized() (Definition, error) {
	clone := def.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	clone.Name = strings.TrimSpace(clone.Name)
	clone.Description = strings.TrimSpace(clone.Description)
	if err := clone.Validate(); err != nil {
		return Definition{}, err
	}
	return clone, nil
}

// TaskIDs returns every task identifier in declaration order, including
// parallel group members.
func (def Definition) TaskIDs() []string {
	var ids []string
	for _, step := range def.Steps {
		switch step.Kind {
		case StepTask:
			if step.Task != nil {
				ids = append(ids, step.Task.Task.ID)
			}
		case StepParallel:
			for _, member := range step.Group {
				ids = append(ids, member.Task.ID)
			}
		}
	}
	return ids
}
