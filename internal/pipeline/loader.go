package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rowanhale/conveyor/internal/checkpoint"
	"github.com/rowanhale/conveyor/internal/task"
)

// DefaultPipelineDir points to the conventional location for YAML pipeline
// definitions inside a .conveyor tree.
const DefaultPipelineDir = "pipelines"

// pipelineFile mirrors the on-disk YAML schema for a pipeline definition.
// Steps reference task IDs resolved against a registry at load time.
type pipelineFile struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Flags       map[string]bool `yaml:"flags,omitempty"`
	Steps       []stepFile      `yaml:"steps"`
}

type stepFile struct {
	Task       string          `yaml:"task,omitempty"`
	Slot       string          `yaml:"slot,omitempty"`
	When       string          `yaml:"when,omitempty"`
	Parallel   []memberFile    `yaml:"parallel,omitempty"`
	Checkpoint *checkpointFile `yaml:"checkpoint,omitempty"`
}

type memberFile struct {
	Task string `yaml:"task"`
	Slot string `yaml:"slot,omitempty"`
	When string `yaml:"when,omitempty"`
}

type checkpointFile struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title,omitempty"`
	Question string `yaml:"question"`
}

// ParseDefinitionYAML decodes a pipeline definition, resolving task
// references through the registry, and returns the normalized result.
func ParseDefinitionYAML(data []byte, registry *task.Registry) (Definition, error) {
	if registry == nil {
		return Definition{}, fmt.Errorf("pipeline: task registry is required")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("pipeline: definition payload is empty")
	}
	var file pipelineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Definition{}, fmt.Errorf("pipeline: decode definition: %w", err)
	}
	def := Definition{
		ID:          file.ID,
		Name:        file.Name,
		Description: file.Description,
		Flags:       file.Flags,
	}
	for idx, step := range file.Steps {
		built, err := buildStep(step, registry)
		if err != nil {
			return Definition{}, fmt.Errorf("pipeline %s step[%d]: %w", file.ID, idx, err)
		}
		def.Steps = append(def.Steps, built)
	}
	return def.Normalized()
}

func buildStep(step stepFile, registry *task.Registry) (Step, error) {
	declared := 0
	if step.Task != "" {
		declared++
	}
	if len(step.Parallel) > 0 {
		declared++
	}
	if step.Checkpoint != nil {
		declared++
	}
	if declared != 1 {
		return Step{}, fmt.Errorf("exactly one of task, parallel, or checkpoint is required")
	}
	switch {
	case step.Task != "":
		def, err := registry.Resolve(step.Task)
		if err != nil {
			return Step{}, err
		}
		return Step{Kind: StepTask, Task: &TaskStep{Slot: step.Slot, Task: def, Guard: step.When}}, nil
	case len(step.Parallel) > 0:
		members := make([]TaskStep, 0, len(step.Parallel))
		for _, member := range step.Parallel {
			def, err := registry.Resolve(member.Task)
			if err != nil {
				return Step{}, err
			}
			members = append(members, TaskStep{Slot: member.Slot, Task: def, Guard: member.When})
		}
		return Step{Kind: StepParallel, Group: members}, nil
	default:
		return Step{Kind: StepCheckpoint, Checkpoint: &checkpoint.Descriptor{
			ID:       step.Checkpoint.ID,
			Title:    step.Checkpoint.Title,
			Question: step.Checkpoint.Question,
		}}, nil
	}
}

// LoadDefinitionReader reads pipeline definition data from an io.Reader.
func LoadDefinitionReader(r io.Reader, registry *task.Registry) (Definition, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Definition{}, fmt.Errorf("pipeline: read definition: %w", err)
	}
	return ParseDefinitionYAML(content, registry)
}

// LoadDefinitionFile loads a pipeline definition from an explicit file path.
func LoadDefinitionFile(path string, registry *task.Registry) (Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("pipeline: read %s: %w", path, err)
	}
	def, parseErr := ParseDefinitionYAML(content, registry)
	if parseErr != nil {
		return Definition{}, fmt.Errorf("pipeline: %s: %w", path, parseErr)
	}
	return def, nil
}

// LoadDefinitionDir loads every *.yaml definition in a directory, sorted by
// file name. A missing directory yields no definitions.
func LoadDefinitionDir(dir string, registry *task.Registry) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pipeline: read %s: %w", dir, err)
	}
	var defs []Definition
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		def, err := LoadDefinitionFile(filepath.Join(dir, entry.Name()), registry)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
