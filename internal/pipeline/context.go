package pipeline

import (
	"fmt"

	"github.com/rowanhale/conveyor/internal/artifact"
	"github.com/rowanhale/conveyor/internal/task"
)

// RunContext is the mutable accumulator a run threads through its steps. It
// grows monotonically: result slots are written once, artifacts only append.
// Only the executor writes; steps see it through the read-only
// task.ContextView interface.
type RunContext struct {
	initial  map[string]any
	flags    map[string]bool
	slots    map[string]task.Result
	order    []string
	manifest *artifact.Manifest
}

// NewRunContext builds a context seeded with the initial input bundle and
// resolved guard flags.
func NewRunContext(initial map[string]any, flags map[string]bool, manifest *artifact.Manifest) *RunContext {
	if manifest == nil {
		manifest = artifact.NewManifest()
	}
	rc := &RunContext{
		slots:    map[string]task.Result{},
		manifest: manifest,
	}
	if len(initial) > 0 {
		rc.initial = make(map[string]any, len(initial))
		for key, value := range initial {
			rc.initial[key] = value
		}
	}
	if len(flags) > 0 {
		rc.flags = make(map[string]bool, len(flags))
		for name, value := range flags {
			rc.flags[name] = value
		}
	}
	return rc
}

// Initial implements task.ContextView. Callers receive a copy.
func (rc *RunContext) Initial() map[string]any {
	if len(rc.initial) == 0 {
		return nil
	}
	out := make(map[string]any, len(rc.initial))
	for key, value := range rc.initial {
		out[key] = value
	}
	return out
}

// Result implements task.ContextView. Skipped steps yield their sentinel
// with ok=true, so downstream code can distinguish skipped from undeclared.
func (rc *RunContext) Result(slot string) (task.Result, bool) {
	result, ok := rc.slots[slot]
	return result, ok
}

// Flag implements task.ContextView. Undeclared flags read false.
func (rc *RunContext) Flag(name string) bool {
	return rc.flags[name]
}

// Record stores a completed step's result and appends its artifacts. Slots
// are write-once; a second write is a programming error surfaced as one.
func (rc *RunContext) Record(slot string, result task.Result) error {
	if slot == "" {
		return fmt.Errorf("pipeline: result slot is required")
	}
	if _, exists := rc.slots[slot]; exists {
		return fmt.Errorf("pipeline: result slot %s already written", slot)
	}
	rc.slots[slot] = result.Clone()
	rc.order = append(rc.order, slot)
	if !result.Skipped && len(result.Artifacts) > 0 {
		if err := rc.manifest.Append(slot, result.Artifacts...); err != nil {
			return err
		}
	}
	return nil
}

// RecordSkipped stores the explicit absent sentinel for a guarded step whose
// flag was false.
func (rc *RunContext) RecordSkipped(slot string) error {
	return rc.Record(slot, task.SkippedResult)
}

// Results returns a copy of every recorded slot.
func (rc *RunContext) Results() map[string]task.Result {
	out := make(map[string]task.Result, len(rc.slots))
	for slot, result := range rc.slots {
		out[slot] = result.Clone()
	}
	return out
}

// SlotOrder returns slot names in completion order.
func (rc *RunContext) SlotOrder() []string {
	if len(rc.order) == 0 {
		return nil
	}
	out := make([]string, len(rc.order))
	copy(out, rc.order)
	return out
}

// Manifest exposes the append-only artifact manifest.
func (rc *RunContext) Manifest() *artifact.Manifest {
	return rc.manifest
}
