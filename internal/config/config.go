// Package config handles the .conveyor directory every project gets and the
// config.yaml inside it: where pipeline and task definitions live, how the
// decision bridge listens, and which guard flags default on.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ConveyorDir is the directory created in each project root.
	ConveyorDir = ".conveyor"

	configFileName = "config.yaml"
)

const defaultProjectConfigYAML = `# conveyor project configuration
version: 1

# Directories (relative to .conveyor/) holding definitions.
pipelines_dir: pipelines
tasks_dir: tasks

# Decision bridge for resolving checkpoints over HTTP.
# Port 0 picks a free loopback port; enabled: false disables the bridge.
decision:
  enabled: true
  port: 0

# External agent command invoked per task. Receives the task descriptor and
# input payload as JSON on stdin and must print a result JSON object.
agent:
  command: []

# Guard flag defaults applied to every run unless overridden per run.
flags: {}
`

// AgentConfig names the external command that performs delegated task work.
type AgentConfig struct {
	Command []string `yaml:"command,omitempty"`
}

// DecisionConfig controls the checkpoint decision HTTP bridge.
type DecisionConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ProjectConfig models .conveyor/config.yaml.
type ProjectConfig struct {
	Version      int             `yaml:"version"`
	PipelinesDir string          `yaml:"pipelines_dir"`
	TasksDir     string          `yaml:"tasks_dir"`
	Decision     DecisionConfig  `yaml:"decision"`
	Agent        AgentConfig     `yaml:"agent,omitempty"`
	Flags        map[string]bool `yaml:"flags,omitempty"`
}

// Config couples a parsed project config to the project root it came from.
type Config struct {
	ProjectDir string
	Project    ProjectConfig
}

// Dir returns the .conveyor directory path.
func (c *Config) Dir() string {
	return filepath.Join(c.ProjectDir, ConveyorDir)
}

// PipelinesDir returns the absolute pipelines directory.
func (c *Config) PipelinesDir() string {
	return filepath.Join(c.Dir(), c.Project.PipelinesDir)
}

// TasksDir returns the absolute task definitions directory.
func (c *Config) TasksDir() string {
	return filepath.Join(c.Dir(), c.Project.TasksDir)
}

// RunsDir returns the directory holding per-run persisted state.
func (c *Config) RunsDir() string {
	return filepath.Join(c.Dir(), "runs")
}

// RunDir returns the persisted-state directory for one run.
func (c *Config) RunDir(runID string) string {
	return filepath.Join(c.RunsDir(), runID)
}

// LogPath returns the project log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Dir(), "logs", "conveyor.log")
}

// InitConveyorDir creates the .conveyor tree and seeds a default config.yaml
// if one does not exist yet. Existing files are left untouched.
func InitConveyorDir(projectDir string) error {
	dir := filepath.Join(projectDir, ConveyorDir)
	for _, sub := range []string{"pipelines", "tasks", "runs", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", sub, err)
		}
	}
	path := filepath.Join(dir, configFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write default config: %w", err)
	}
	return nil
}

// Load reads and normalizes .conveyor/config.yaml for a project.
func Load(projectDir string) (*Config, error) {
	path := filepath.Join(projectDir, ConveyorDir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var project ProjectConfig
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	normalized, err := project.normalized()
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &Config{ProjectDir: projectDir, Project: normalized}, nil
}

func (p ProjectConfig) normalized() (ProjectConfig, error) {
	if p.Version != 1 {
		return ProjectConfig{}, fmt.Errorf("unsupported version %d", p.Version)
	}
	p.PipelinesDir = strings.TrimSpace(p.PipelinesDir)
	if p.PipelinesDir == "" {
		p.PipelinesDir = "pipelines"
	}
	p.TasksDir = strings.TrimSpace(p.TasksDir)
	if p.TasksDir == "" {
		p.TasksDir = "tasks"
	}
	if p.Decision.Port < 0 || p.Decision.Port > 65535 {
		return ProjectConfig{}, fmt.Errorf("decision port %d out of range", p.Decision.Port)
	}
	return p, nil
}
