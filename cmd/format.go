package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sells-group/rent-cli/internal/config"
	"github.com/sells-group/rent-cli/internal/model"
	"github.com/sells-group/rent-cli/internal/pipeline"
)

func formatRunSummary(out io.Writer, res *pipeline.Result) {
	c := res.Counters
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run\t%s\n", res.RunID)
	if res.ResumedFrom != "" {
		_, _ = fmt.Fprintf(w, "Resumed from\t%s\n", res.ResumedFrom)
	}
	_, _ = fmt.Fprintf(w, "Scraped\t%d (%d sites failed)\n", c.Scraped, c.SiteFailures)
	_, _ = fmt.Fprintf(w, "Extracted\t%d (%d failed)\n", c.Extracted, c.ExtractFailures)
	_, _ = fmt.Fprintf(w, "Filtered\tprice %d, rooms/shared %d, surface %d, min rooms %d\n",
		c.FilteredPrice, c.FilteredRooms, c.FilteredSurface, c.FilteredMinRooms)
	_, _ = fmt.Fprintf(w, "Enriched\t%d (%d failed)\n", c.Enriched, c.EnrichFailures)
	_, _ = fmt.Fprintf(w, "Stored\t%d new, %d updated\n", c.New, c.Updated)
	_, _ = fmt.Fprintf(w, "Listings\t%d\n", len(res.Listings))
	for _, p := range res.Exported {
		_, _ = fmt.Fprintf(w, "Exported\t%s\n", p)
	}
	if c.ExportFailures > 0 {
		_, _ = fmt.Fprintf(w, "Export failures\t%d\n", c.ExportFailures)
	}
	_ = w.Flush()
}

func formatSourceSummary(out io.Writer, total int, bySite map[string]int) {
	sites := make([]string, 0, len(bySite))
	for s := range bySite {
		sites = append(sites, s)
	}
	slices.Sort(sites)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SITE\tLISTINGS")
	_, _ = fmt.Fprintln(w, "----\t--------")
	for _, s := range sites {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", s, bySite[s])
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t%d\n", total)
	_ = w.Flush()
}

func formatCheckpoint(out io.Writer, path string, cp *model.Checkpoint) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Path\t%s\n", path)
	if cp.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run\t%s\n", cp.RunID)
	}
	_, _ = fmt.Fprintf(w, "Stage\t%s\n", cp.Stage)
	_, _ = fmt.Fprintf(w, "Listings\t%d\n", len(cp.Listings))
	if cp.Stage == model.StageEnrichment {
		_, _ = fmt.Fprintf(w, "Enriched\t%d/%d\n", cp.Cursor, len(cp.Listings))
	}
	_, _ = fmt.Fprintf(w, "City\t%s\n", cp.Config.City)
	_, _ = fmt.Fprintf(w, "Sites\t%s\n", strings.Join(cp.Config.Sites, ", "))
	_, _ = fmt.Fprintf(w, "Price\t%.0f - %.0f EUR\n", cp.Config.MinPrice, cp.Config.MaxPrice)
	_, _ = fmt.Fprintf(w, "Saved\t%s\n", cp.SavedAt.Local().Format(time.DateTime))
	_ = w.Flush()
}

// formatSites lists the city's sites in scrape order and marks which have
// a scraper.
func formatSites(out io.Writer, profile config.CityProfile, implemented func(string) bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "SITE\tSTATUS\t(%s, %s)\n", profile.Name, profile.Country)
	_, _ = fmt.Fprintln(w, "----\t------\t")
	for _, s := range profile.Sites {
		status := "not implemented"
		if implemented(s) {
			status = "ok"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t\n", s, status)
	}
	_ = w.Flush()
}
