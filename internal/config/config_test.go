package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitConveyorDirCreatesLayout(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitConveyorDir(projectDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	for _, sub := range []string{"pipelines", "tasks", "runs", "logs"} {
		if _, err := os.Stat(filepath.Join(projectDir, ConveyorDir, sub)); err != nil {
			t.Fatalf("missing %s: %v", sub, err)
		}
	}
	cfg, err := Load(projectDir)
	if err != nil {
		t.Fatalf("load seeded config: %v", err)
	}
	if cfg.Project.Version != 1 || !cfg.Project.Decision.Enabled {
		t.Fatalf("unexpected defaults: %+v", cfg.Project)
	}
}

func TestInitConveyorDirKeepsExistingConfig(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitConveyorDir(projectDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	path := filepath.Join(projectDir, ConveyorDir, configFileName)
	custom := "version: 1\npipelines_dir: flows\n"
	if err := os.WriteFile(path, []byte(custom), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := InitConveyorDir(projectDir); err != nil {
		t.Fatalf("re-init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != custom {
		t.Fatalf("existing config overwritten: %q, %v", data, err)
	}
}

func TestLoadNormalizesPaths(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, "version: 1\npipelines_dir: '  '\ntasks_dir: ''\n")
	cfg, err := Load(projectDir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Project.PipelinesDir != "pipelines" || cfg.Project.TasksDir != "tasks" {
		t.Fatalf("blank dirs not defaulted: %+v", cfg.Project)
	}
	if cfg.PipelinesDir() != filepath.Join(projectDir, ConveyorDir, "pipelines") {
		t.Fatalf("pipelines path wrong: %s", cfg.PipelinesDir())
	}
	if cfg.RunDir("run-1") != filepath.Join(projectDir, ConveyorDir, "runs", "run-1") {
		t.Fatalf("run dir wrong: %s", cfg.RunDir("run-1"))
	}
}

func TestLoadParsesAgentAndFlags(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, `version: 1
agent:
  command: ["claude", "-p"]
flags:
  prototype: true
`)
	cfg, err := Load(projectDir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Project.Agent.Command) != 2 || cfg.Project.Agent.Command[0] != "claude" {
		t.Fatalf("agent command wrong: %+v", cfg.Project.Agent)
	}
	if !cfg.Project.Flags["prototype"] {
		t.Fatalf("flags not parsed: %+v", cfg.Project.Flags)
	}
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, "version: 2\n")
	_, err := Load(projectDir)
	if err == nil || !strings.Contains(err.Error(), "unsupported version") {
		t.Fatalf("expected version error, got %v", err)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, "version: 1\ndecision:\n  enabled: true\n  port: 70000\n")
	_, err := Load(projectDir)
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected port error, got %v", err)
	}
}

func TestLoadMissingConfig(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for missing config")
	}
}

func writeConfig(t *testing.T, projectDir, content string) {
	t.Helper()
	dir := filepath.Join(projectDir, ConveyorDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
