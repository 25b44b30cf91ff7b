package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rowanhale/conveyor/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .conveyor directory and a default config",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitConveyorDir(projectDir); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "initialized %s/%s\n", projectDir, config.ConveyorDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
