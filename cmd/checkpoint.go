package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/rent-cli/internal/checkpoint"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect or discard the checkpoint of an interrupted run",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved stage, progress and run settings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cps := checkpointStoreFromFlags(cmd)
		cp, err := cps.Load()
		if err != nil {
			return err
		}
		if cp == nil {
			fmt.Fprintf(os.Stderr, "No checkpoint at %s.\n", cps.Path())
			return nil
		}
		formatCheckpoint(os.Stdout, cps.Path(), cp)
		return nil
	},
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the checkpoint so the next scrape starts fresh",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cps := checkpointStoreFromFlags(cmd)
		if !cps.Exists() {
			fmt.Fprintf(os.Stderr, "No checkpoint at %s.\n", cps.Path())
			return nil
		}
		if err := cps.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Removed %s\n", cps.Path())
		return nil
	},
}

func checkpointStoreFromFlags(cmd *cobra.Command) *checkpoint.FileStore {
	outputDir, _ := cmd.Flags().GetString("output-dir")
	return checkpoint.NewFileStore(checkpointPath(cfg, firstNonEmpty(outputDir, cfg.Export.OutputDir)))
}

func init() {
	checkpointCmd.PersistentFlags().String("output-dir", "", "directory holding the checkpoint")
	checkpointCmd.AddCommand(checkpointShowCmd, checkpointClearCmd)
	rootCmd.AddCommand(checkpointCmd)
}
