package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rowanhale/conveyor/internal/checkpoint"
	"github.com/rowanhale/conveyor/internal/config"
	"github.com/rowanhale/conveyor/internal/decision"
	"github.com/rowanhale/conveyor/internal/logbook"
	"github.com/rowanhale/conveyor/internal/pipeline"
	"github.com/rowanhale/conveyor/internal/pipeline/executor"
	"github.com/rowanhale/conveyor/internal/task"
	"github.com/rowanhale/conveyor/internal/tui"
	"github.com/rowanhale/conveyor/plugins"
)

var runCmd = &cobra.Command{
	Use:   "run <pipeline-id|path>",
	Short: "Execute a pipeline",
	Long: `Execute a pipeline by ID (resolved against the configured pipelines
directory) or by explicit YAML path.

Checkpoints are resolved through the decision HTTP bridge by default; use
--interactive for an in-terminal prompt or --auto-approve for unattended runs.

Examples:
  # Run with the decision bridge, overriding a guard flag
  conveyor run homepage-redesign --flag prototype=true

  # Unattended run seeded from an input bundle
  conveyor run homepage-redesign --auto-approve --input brief.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

var (
	runFlags       []string
	runInputFile   string
	runAutoApprove bool
	runInteractive bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVar(&runFlags, "flag", nil, "guard flag override, name=true|false (repeatable)")
	runCmd.Flags().StringVar(&runInputFile, "input", "", "JSON file seeding the initial input bundle")
	runCmd.Flags().BoolVar(&runAutoApprove, "auto-approve", false, "approve every checkpoint without review")
	runCmd.Flags().BoolVar(&runInteractive, "interactive", false, "resolve checkpoints in an interactive terminal view")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return err
	}
	registry := task.NewRegistry()
	if err := plugins.RegisterTaskPlugins(registry, cfg); err != nil {
		return err
	}
	def, err := resolvePipeline(cfg, registry, args[0])
	if err != nil {
		return err
	}
	flags, err := parseFlagOverrides(runFlags)
	if err != nil {
		return err
	}
	initial, err := loadInitialBundle(runInputFile)
	if err != nil {
		return err
	}

	runID := fmt.Sprintf("%s-%s", def.ID, uuid.NewString())
	log, err := logbook.New(cfg.LogPath())
	if err != nil {
		return err
	}
	runner, err := buildRunner(cfg, runID)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	req := executor.RunRequest{Initial: initial, Flags: mergeFlags(cfg.Project.Flags, flags)}

	var outcome executor.Outcome
	switch {
	case runAutoApprove:
		outcome, err = execute(ctx, runner, checkpoint.AutoApprover{Note: "auto-approved"}, log, runID, def, req)
	case runInteractive:
		outcome, err = executeInteractive(ctx, runner, log, runID, def, req)
	default:
		outcome, err = executeWithBridge(ctx, cfg, runner, log, runID, def, req)
	}
	if err != nil {
		return err
	}
	if err := persistOutcome(cfg, outcome); err != nil {
		return err
	}
	return printJSON(cmd, outcome)
}

func execute(ctx context.Context, runner task.Runner, decider checkpoint.Decider, log *logbook.Logbook, runID string, def pipeline.Definition, req executor.RunRequest) (executor.Outcome, error) {
	exec, err := executor.New(runner, decider,
		executor.WithLogbook(log),
		executor.WithRunIDFunc(func(string) string { return runID }),
	)
	if err != nil {
		return executor.Outcome{}, err
	}
	return exec.Run(ctx, def, req)
}

func executeWithBridge(ctx context.Context, cfg *config.Config, runner task.Runner, log *logbook.Logbook, runID string, def pipeline.Definition, req executor.RunRequest) (executor.Outcome, error) {
	gate := checkpoint.NewGate()
	settings := decision.SettingsFromConfig(cfg)
	server, err := decision.NewServer(settings, gate)
	if err != nil {
		return executor.Outcome{}, err
	}
	if err := server.Start(ctx); err != nil {
		if errors.Is(err, decision.ErrDisabled) {
			return executor.Outcome{}, fmt.Errorf("decision bridge disabled; use --interactive or --auto-approve")
		}
		return executor.Outcome{}, err
	}
	defer func() { _ = server.Shutdown(nil) }()
	fmt.Fprintf(os.Stderr, "decision bridge: %s\n", server.BaseURL())
	return execute(ctx, runner, gate, log, runID, def, req)
}

func executeInteractive(ctx context.Context, runner task.Runner, log *logbook.Logbook, runID string, def pipeline.Definition, req executor.RunRequest, opts ...tea.ProgramOption) (executor.Outcome, error) {
	gate := checkpoint.NewGate()
	name := def.Name
	if name == "" {
		name = def.ID
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	program := tea.NewProgram(tui.NewRunView(name, gate, log), opts...)

	type runResult struct {
		outcome executor.Outcome
		err     error
	}
	done := make(chan runResult, 1)
	go func() {
		outcome, err := execute(ctx, runner, gate, log, runID, def, req)
		program.Send(tui.RunFinishedMsg{Outcome: outcome, Err: err})
		done <- runResult{outcome: outcome, err: err}
	}()
	_, viewErr := program.Run()
	// Quitting mid-run aborts the executor; a parked gate or a running agent
	// must not outlive the view.
	cancel()
	result := <-done
	if viewErr != nil {
		return executor.Outcome{}, fmt.Errorf("run view: %w", viewErr)
	}
	return result.outcome, result.err
}

func buildRunner(cfg *config.Config, runID string) (task.Runner, error) {
	if len(cfg.Project.Agent.Command) == 0 {
		return nil, fmt.Errorf("no agent command configured; set agent.command in %s/config.yaml", config.ConveyorDir)
	}
	execRunner, err := task.NewExecRunner(cfg.Project.Agent.Command)
	if err != nil {
		return nil, err
	}
	retrying := task.NewRetryRunner(execRunner)
	return task.NewRecordingRunner(retrying, cfg.RunDir(runID))
}

func resolvePipeline(cfg *config.Config, registry *task.Registry, ref string) (pipeline.Definition, error) {
	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") {
		return pipeline.LoadDefinitionFile(ref, registry)
	}
	defs, err := pipeline.LoadDefinitionDir(cfg.PipelinesDir(), registry)
	if err != nil {
		return pipeline.Definition{}, err
	}
	for _, def := range defs {
		if def.ID == ref {
			return def, nil
		}
	}
	return pipeline.Definition{}, fmt.Errorf("pipeline %s not found in %s", ref, cfg.PipelinesDir())
}

func parseFlagOverrides(values []string) (map[string]bool, error) {
	if len(values) == 0 {
		return nil, nil
	}
	flags := make(map[string]bool, len(values))
	for _, raw := range values {
		name, value, found := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid flag override %q", raw)
		}
		if !found {
			flags[name] = true
			continue
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid flag override %q: %w", raw, err)
		}
		flags[name] = parsed
	}
	return flags, nil
}

func mergeFlags(defaults, overrides map[string]bool) map[string]bool {
	if len(defaults) == 0 {
		return overrides
	}
	merged := make(map[string]bool, len(defaults)+len(overrides))
	for name, value := range defaults {
		merged[name] = value
	}
	for name, value := range overrides {
		merged[name] = value
	}
	return merged
}

func loadInitialBundle(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input bundle %s: %w", path, err)
	}
	var bundle map[string]any
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parse input bundle %s: %w", path, err)
	}
	return bundle, nil
}

func persistOutcome(cfg *config.Config, outcome executor.Outcome) error {
	path := filepath.Join(cfg.RunDir(outcome.RunID), "outcome.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printJSON(cmd *cobra.Command, payload any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
