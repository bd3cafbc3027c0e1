package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var dbInfoCmd = &cobra.Command{
	Use:   "db-info",
	Short: "Show how many listings are stored, per site",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		outputDir, _ := cmd.Flags().GetString("output-dir")

		st, err := storeOpener(cfg, firstNonEmpty(outputDir, cfg.Export.OutputDir))(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		total, err := st.Count(ctx)
		if err != nil {
			return eris.Wrap(err, "db-info: count")
		}
		bySite, err := st.SourceSummary(ctx)
		if err != nil {
			return eris.Wrap(err, "db-info: summary")
		}
		formatSourceSummary(os.Stdout, total, bySite)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <listing-url>",
	Short: "Remove one listing from the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		outputDir, _ := cmd.Flags().GetString("output-dir")

		st, err := storeOpener(cfg, firstNonEmpty(outputDir, cfg.Export.OutputDir))(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deleted, err := st.Delete(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "delete listing")
		}
		if !deleted {
			return eris.Errorf("no listing with url %s", args[0])
		}
		fmt.Fprintf(os.Stdout, "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	dbInfoCmd.Flags().String("output-dir", "", "directory holding the database")
	deleteCmd.Flags().String("output-dir", "", "directory holding the database")
	rootCmd.AddCommand(dbInfoCmd, deleteCmd)
}
