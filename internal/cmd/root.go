// Package cmd wires the conveyor command-line surface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conveyor",
	Short: "Task/checkpoint pipeline executor",
	Long: `Conveyor runs declarative pipelines of delegated tasks, parallel task
groups, and human-review checkpoints. Task work is performed by an external
agent command; conveyor sequences the steps, validates results against each
task's declared schema, and aggregates artifacts into a final run outcome.`,
	SilenceUsage: true,
}

var projectDir string

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "p", cwd, "project directory containing .conveyor")
}
