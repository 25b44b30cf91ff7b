// Package task defines the unit of delegated work a pipeline dispatches: a
// definition with an input builder and a declared output schema, the result
// record a collaborator returns, and the Runner contract that performs the
// actual work outside this repository.
package task

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rowanhale/conveyor/internal/artifact"
)

// ContextView is the read-only window a task's input builder gets into the
// pipeline run: the initial input bundle, prior results by slot, and guard
// flags. Builders must never mutate anything reachable through it.
type ContextView interface {
	Initial() map[string]any
	Result(slot string) (Result, bool)
	Flag(name string) bool
}

// InputBuilder produces the JSON-serializable input payload for a task
// invocation from the current run context.
type InputBuilder func(view ContextView) (map[string]any, error)

// Definition describes a delegated task: identity, persistence namespace,
// prompt template handed to the collaborator, input builder, and the schema
// its result must satisfy.
type Definition struct {
	ID          string
	Name        string
	Description string
	Version     string
	// Effect namespaces the persisted input/result of each invocation. Empty
	// defaults to the task ID.
	Effect string
	// Prompt is the template forwarded verbatim to the task collaborator.
	Prompt string
	Schema Schema
	Build  InputBuilder
}

// EffectID returns the persistence namespace for this task's invocations.
func (d Definition) EffectID() string {
	if d.Effect != "" {
		return d.Effect
	}
	return d.ID
}

// Validate ensures the definition is well-formed.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("task: id is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("task: name is required for %s", d.ID)
	}
	if err := d.Schema.validate(d.ID); err != nil {
		return err
	}
	return nil
}

// Schema declares the contract a task result must honor. Fields are flat
// names; required fields must be present and non-nil before downstream steps
// may consume the result.
type Schema struct {
	Required []string `json:"required,omitempty" yaml:"required,omitempty"`
	Optional []string `json:"optional,omitempty" yaml:"optional,omitempty"`
}

func (s Schema) validate(taskID string) error {
	seen := map[string]struct{}{}
	for _, group := range [][]string{s.Required, s.Optional} {
		for _, field := range group {
			if strings.TrimSpace(field) == "" {
				return fmt.Errorf("task: %s schema declares an empty field name", taskID)
			}
			if _, dup := seen[field]; dup {
				return fmt.Errorf("task: %s schema declares %s twice", taskID, field)
			}
			seen[field] = struct{}{}
		}
	}
	return nil
}

// Validate checks a result against the schema and reports every missing
// required field at once.
func (s Schema) Validate(taskID string, result Result) error {
	var missing []string
	for _, field := range s.Required {
		value, ok := result.Field(field)
		if !ok || value == nil {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &SchemaViolationError{TaskID: taskID, Missing: missing}
}

// Result is the structured object a task collaborator returns. Fields hold
// the schema-constrained payload; Artifacts list every file the invocation
// produced, in emission order.
type Result struct {
	Fields    map[string]any      `json:"fields,omitempty"`
	Artifacts []artifact.Artifact `json:"artifacts,omitempty"`
	// Skipped marks the sentinel stored for conditional steps whose guard
	// flag was false. Skipped results carry no fields and no artifacts.
	Skipped bool `json:"skipped,omitempty"`
}

// SkippedResult is the explicit absent sentinel for steps that never ran.
var SkippedResult = Result{Skipped: true}

// Field looks up a payload field by name.
func (r Result) Field(name string) (any, bool) {
	if r.Skipped || r.Fields == nil {
		return nil, false
	}
	value, ok := r.Fields[name]
	return value, ok
}

// String returns a field as a string when present and of that type.
func (r Result) String(name string) (string, bool) {
	value, ok := r.Field(name)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// Float returns a numeric field. JSON decoding yields float64, but results
// assembled in-process may carry int values, so both are accepted.
func (r Result) Float(name string) (float64, bool) {
	value, ok := r.Field(name)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Clone deep-copies the result's field map and artifact list.
func (r Result) Clone() Result {
	clone := Result{Skipped: r.Skipped, Artifacts: artifact.CloneSlice(r.Artifacts)}
	if len(r.Fields) > 0 {
		clone.Fields = make(map[string]any, len(r.Fields))
		for key, value := range r.Fields {
			clone.Fields[key] = value
		}
	}
	return clone
}
