package task

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
)

// ExecRunner delegates task work to an external agent command. Each
// invocation receives a JSON envelope on stdin (task descriptor, prompt,
// input payload) and must print a Result object as JSON on stdout. The
// command owns its own timeouts beyond context cancellation.
type ExecRunner struct {
	command []string
}

// execEnvelope is the stdin payload handed to the agent command.
type execEnvelope struct {
	TaskID string         `json:"task_id"`
	Name   string         `json:"name"`
	Effect string         `json:"effect"`
	Prompt string         `json:"prompt"`
	Schema Schema         `json:"schema"`
	Input  map[string]any `json:"input,omitempty"`
}

// NewExecRunner builds a runner around an agent command line.
func NewExecRunner(command []string) (*ExecRunner, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("task: exec runner requires a command")
	}
	return &ExecRunner{command: append([]string{}, command...)}, nil
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, def Definition, input map[string]any) (Result, error) {
	envelope := execEnvelope{
		TaskID: def.ID,
		Name:   def.Name,
		Effect: def.EffectID(),
		Prompt: def.Prompt,
		Schema: def.Schema,
		Input:  input,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return Result{}, fmt.Errorf("task %s: encode envelope: %w", def.ID, err)
	}
	cmd := exec.CommandContext(ctx, r.command[0], r.command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return Result{}, fmt.Errorf("task %s: agent command: %w: %s", def.ID, err, stderr.String())
		}
		return Result{}, fmt.Errorf("task %s: agent command: %w", def.ID, err)
	}
	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, fmt.Errorf("task %s: parse agent output: %w", def.ID, err)
	}
	return result, nil
}
