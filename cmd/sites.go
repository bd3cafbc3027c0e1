package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/rent-cli/internal/config"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the rental sites known for a city",
	RunE: func(cmd *cobra.Command, _ []string) error {
		city, _ := cmd.Flags().GetString("city")
		profile, err := config.ProfileFor(firstNonEmpty(city, cfg.Search.City))
		if err != nil {
			return err
		}
		reg := siteRegistry(cfg, cfg.Export.OutputDir)
		formatSites(os.Stdout, profile, reg.Has)
		return nil
	},
}

func init() {
	sitesCmd.Flags().String("city", "", "city profile (amsterdam, helsinki, stockholm)")
	rootCmd.AddCommand(sitesCmd)
}
