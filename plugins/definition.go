// Package plugins loads task definitions from a project's .conveyor/tasks
// directory. Definitions come as plain YAML files or as Go files interpreted
// with yaegi; both converge on the same TaskDefinition shape before being
// registered with the task registry.
package plugins

import (
	"fmt"
	"strings"

	"github.com/rowanhale/conveyor/internal/task"
)

// TaskDefinition describes a pluggable task loaded from disk.
//
// The struct mirrors the on-disk schema under .conveyor/tasks/*.yaml and is
// intentionally narrow so definitions can be validated before wiring into a
// pipeline.
type TaskDefinition struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name,omitempty" yaml:"name,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string           `json:"version" yaml:"version"`
	Effect      string           `json:"effect,omitempty" yaml:"effect,omitempty"`
	Prompt      string           `json:"prompt" yaml:"prompt"`
	Schema      SchemaDefinition `json:"schema,omitempty" yaml:"schema,omitempty"`
	// Inputs names keys copied from the run's initial bundle into the task
	// input payload.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	// Uses names prior result slots whose fields are included in the input
	// payload under the slot name. A skipped slot contributes nil.
	Uses []string `json:"uses,omitempty" yaml:"uses,omitempty"`
}

// SchemaDefinition mirrors task.Schema for YAML decoding.
type SchemaDefinition struct {
	Required []string `json:"required,omitempty" yaml:"required,omitempty"`
	Optional []string `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Normalized returns a trimmed copy of the definition.
func (def TaskDefinition) Normalized() TaskDefinition {
	clone := TaskDefinition{
		ID:          strings.TrimSpace(def.ID),
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Version:     strings.TrimSpace(def.Version),
		Effect:      strings.TrimSpace(def.Effect),
		Prompt:      def.Prompt,
		Schema:      def.Schema,
	}
	clone.Inputs = trimAll(def.Inputs)
	clone.Uses = trimAll(def.Uses)
	return clone
}

// Validate ensures the plugin definition is well-formed.
func (def TaskDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("plugin: id is required")
	}
	if normalized.Version == "" {
		return fmt.Errorf("plugin %s: version is required", normalized.ID)
	}
	if strings.TrimSpace(normalized.Prompt) == "" {
		return fmt.Errorf("plugin %s: prompt is required", normalized.ID)
	}
	return normalized.Task().Validate()
}

// Task converts the plugin definition into a runtime task definition with an
// input builder assembled from the declared inputs and uses lists.
func (def TaskDefinition) Task() task.Definition {
	normalized := def.Normalized()
	name := normalized.Name
	if name == "" {
		name = normalized.ID
	}
	inputs := normalized.Inputs
	uses := normalized.Uses
	prompt := normalized.Prompt
	return task.Definition{
		ID:          normalized.ID,
		Name:        name,
		Description: normalized.Description,
		Version:     normalized.Version,
		Effect:      normalized.Effect,
		Prompt:      prompt,
		Schema: task.Schema{
			Required: normalized.Schema.Required,
			Optional: normalized.Schema.Optional,
		},
		Build: func(view task.ContextView) (map[string]any, error) {
			payload := map[string]any{}
			initial := view.Initial()
			for _, key := range inputs {
				value, ok := initial[key]
				if !ok {
					return nil, fmt.Errorf("plugin: input %s missing from initial bundle", key)
				}
				payload[key] = value
			}
			for _, slot := range uses {
				result, ok := view.Result(slot)
				if !ok {
					return nil, fmt.Errorf("plugin: result slot %s not yet produced", slot)
				}
				if result.Skipped {
					payload[slot] = nil
					continue
				}
				payload[slot] = result.Fields
			}
			return payload, nil
		},
	}
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
