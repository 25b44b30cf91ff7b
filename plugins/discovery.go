package plugins

import (
	"fmt"

	"github.com/rowanhale/conveyor/internal/config"
	"github.com/rowanhale/conveyor/internal/task"
)

// RegisterTaskPlugins discovers YAML and Go task definitions under the
// project's tasks directory and registers them.
func RegisterTaskPlugins(reg *task.Registry, cfg *config.Config) error {
	if reg == nil || cfg == nil {
		return nil
	}
	return RegisterTaskDir(reg, cfg.TasksDir())
}

// RegisterTaskDir loads every definition in dir into the registry, rejecting
// duplicate task IDs across files.
func RegisterTaskDir(reg *task.Registry, dir string) error {
	defs, err := loadAllDefinitionFiles(dir)
	if err != nil {
		return err
	}
	seen := make(map[string]string)
	for _, file := range defs {
		def := file.Definition
		if existing, ok := seen[def.ID]; ok {
			return fmt.Errorf("plugin: duplicate task id %s (%s and %s)", def.ID, existing, file.Path)
		}
		seen[def.ID] = file.Path
		if err := reg.Register(def.Task()); err != nil {
			return fmt.Errorf("plugin: register %s from %s: %w", def.ID, file.Path, err)
		}
	}
	return nil
}

func loadAllDefinitionFiles(dir string) ([]DefinitionFile, error) {
	yamlDefs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	goDefs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	return append(yamlDefs, goDefs...), nil
}
