package task

import (
	"fmt"
	"strings"
)

// SchemaViolationError reports required output fields absent from a task
// result. It is fatal to the pipeline run that observes it.
type SchemaViolationError struct {
	TaskID  string
	Missing []string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("task %s: result missing required fields: %s", e.TaskID, strings.Join(e.Missing, ", "))
}

// ExecutionError wraps a failure from the task collaborator itself. The
// executor propagates it unchanged; any retry policy lives in a Runner
// decorator, never in the executor.
type ExecutionError struct {
	TaskID string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %s: execution failed: %v", e.TaskID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
