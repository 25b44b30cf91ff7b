package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rowanhale/conveyor/internal/config"
	"github.com/rowanhale/conveyor/internal/pipeline"
	"github.com/rowanhale/conveyor/internal/task"
	"github.com/rowanhale/conveyor/plugins"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tasks and pipelines",
	Args:  cobra.NoArgs,
	RunE:  listProject,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func listProject(cmd *cobra.Command, _ []string) error {
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

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tNAME\tVERSION")
	for _, id := range registry.IDs() {
		def, err := registry.Resolve(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", def.ID, def.Name, def.Version)
	}
	fmt.Fprintln(w, "\nPIPELINE\tNAME\tSTEPS")
	for _, def := range defs {
		fmt.Fprintf(w, "%s\t%s\t%d\n", def.ID, def.Name, len(def.Steps))
	}
	return w.Flush()
}
