package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored listings without scraping",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		city, _ := cmd.Flags().GetString("city")
		city = firstNonEmpty(city, cfg.Search.City)
		outputDir, _ := cmd.Flags().GetString("output-dir")
		outputDir = firstNonEmpty(outputDir, cfg.Export.OutputDir)

		filter, err := listingFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := storeOpener(cfg, outputDir)(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rows, err := st.Query(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "export: query listings")
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No listings match.")
			return nil
		}

		listings := listingsOf(rows)
		for _, e := range exporters(cfg, city) {
			paths, err := e.Export(ctx, listings, outputDir)
			if err != nil {
				zap.L().Error("export failed", zap.String("exporter", e.Name()), zap.Error(err))
				continue
			}
			for _, p := range paths {
				fmt.Fprintln(os.Stdout, p)
			}
		}
		return nil
	},
}

// listingFilterFromFlags reads the store query filters. Unset flags leave
// the bound open.
func listingFilterFromFlags(cmd *cobra.Command) (model.ListingFilter, error) {
	var f model.ListingFilter
	fs := cmd.Flags()
	if fs.Changed("min-price") {
		v, _ := fs.GetFloat64("min-price")
		f.MinPrice = &v
	}
	if fs.Changed("max-price") {
		v, _ := fs.GetFloat64("max-price")
		f.MaxPrice = &v
	}
	if fs.Changed("min-surface") {
		v, _ := fs.GetFloat64("min-surface")
		f.MinSurface = &v
	}
	if fs.Changed("min-rooms") {
		v, _ := fs.GetInt("min-rooms")
		f.MinRooms = &v
	}
	if fs.Changed("min-score") {
		v, _ := fs.GetFloat64("min-score")
		f.MinNeighborhoodScore = &v
	}
	f.SourceSite, _ = fs.GetString("site")

	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return f, eris.Errorf("min price %.0f exceeds max price %.0f", *f.MinPrice, *f.MaxPrice)
	}
	return f, nil
}

// listingsOf returns the listings of a stored set.
func listingsOf(rows []model.StoredListing) []*model.Listing {
	out := make([]*model.Listing, len(rows))
	for i := range rows {
		out[i] = &rows[i].Listing
	}
	return out
}

func init() {
	fs := exportCmd.Flags()
	fs.String("city", "", "city used to name the report files")
	fs.String("output-dir", "", "directory holding the database and reports")
	fs.Float64("min-price", 0, "minimum price in EUR")
	fs.Float64("max-price", 0, "maximum price in EUR")
	fs.Float64("min-surface", 0, "minimum surface in m²")
	fs.Int("min-rooms", 0, "minimum number of rooms")
	fs.Float64("min-score", 0, "minimum neighborhood score")
	fs.String("site", "", "only listings from this site")
	rootCmd.AddCommand(exportCmd)
}
