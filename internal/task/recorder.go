package task

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RecordingRunner persists each invocation's input and result as JSON under
// a run directory, namespaced by the task's effect ID, then delegates to the
// wrapped runner. The storage format is plain indented JSON; the layout is
// runDir/<effect>/input.json and runDir/<effect>/result.json.
type RecordingRunner struct {
	inner  Runner
	runDir string
}

// NewRecordingRunner decorates inner with invocation persistence.
func NewRecordingRunner(inner Runner, runDir string) (*RecordingRunner, error) {
	if runDir == "" {
		return nil, fmt.Errorf("task: recording runner requires a run directory")
	}
	return &RecordingRunner{inner: inner, runDir: runDir}, nil
}

// Run persists the input, delegates, and persists the result on success.
// A failed delegate leaves only the input on disk.
func (r *RecordingRunner) Run(ctx context.Context, def Definition, input map[string]any) (Result, error) {
	effectDir := filepath.Join(r.runDir, def.EffectID())
	if err := writeJSON(filepath.Join(effectDir, "input.json"), input); err != nil {
		return Result{}, fmt.Errorf("task %s: persist input: %w", def.ID, err)
	}
	result, err := r.inner.Run(ctx, def, input)
	if err != nil {
		return Result{}, err
	}
	if err := writeJSON(filepath.Join(effectDir, "result.json"), result); err != nil {
		return Result{}, fmt.Errorf("task %s: persist result: %w", def.ID, err)
	}
	return result, nil
}

// LoadRecordedResult reads a previously persisted result for an effect ID.
func LoadRecordedResult(runDir, effect string) (Result, error) {
	path := filepath.Join(runDir, effect, "result.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("task: parse recorded result %s: %w", path, err)
	}
	return result, nil
}

func writeJSON(path string, payload any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
