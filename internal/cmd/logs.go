package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowanhale/conveyor/internal/config"
	"github.com/rowanhale/conveyor/internal/logbook"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent logbook entries",
	Args:  cobra.NoArgs,
	RunE:  showLogs,
}

var logsTail int

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 40, "number of trailing entries to show")
}

func showLogs(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return err
	}
	log, err := logbook.New(cfg.LogPath())
	if err != nil {
		return err
	}
	for _, line := range log.Tail(logsTail) {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
