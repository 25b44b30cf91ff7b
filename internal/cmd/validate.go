package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowanhale/conveyor/internal/config"
	"github.com/rowanhale/conveyor/internal/pipeline"
	"github.com/rowanhale/conveyor/internal/task"
	"github.com/rowanhale/conveyor/plugins"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate task plugins and pipeline definitions",
	Long: `Validate loads every task plugin and pipeline definition in the project
and reports the first structural problem: malformed YAML, duplicate task IDs,
steps referencing unregistered tasks, or guards referencing undeclared flags.`,
	Args: cobra.NoArgs,
	RunE: validateProject,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateProject(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return err
	}
	registry := task.NewRegistry()
	if err := plugins.RegisterTaskPlugins(registry, cfg); err != nil {
		return err
	}
	defs, err := pipeline.LoadDefinitionDir(cfg.PipelinesDir(), registry)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d task(s), %d pipeline(s)\n", len(registry.IDs()), len(defs))
	return nil
}
