package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/model"
)

// Issue categories reported by IssuesExporter.
const (
	IssueMissingPrice       = "missing_price"
	IssueMissingCoordinates = "missing_coordinates"
	IssueMissingAddress     = "missing_address"
	IssueMissingSurface     = "missing_surface"
	IssueMissingRooms       = "missing_rooms"
)

// IssueListing identifies a listing in the issues report.
type IssueListing struct {
	URL        string  `json:"url"`
	Title      *string `json:"title"`
	Source     string  `json:"source"`
	City       *string `json:"city"`
	Address    *string `json:"address"`
	PostalCode *string `json:"postal_code"`
}

// IssuesReport is the JSON document IssuesExporter writes.
type IssuesReport struct {
	GeneratedAt   time.Time                 `json:"generated_at"`
	City          string                    `json:"city"`
	TotalListings int                       `json:"total_listings"`
	Summary       map[string]int            `json:"summary"`
	Issues        map[string][]IssueListing `json:"issues"`
}

// IssuesExporter reports listings with missing key fields so the scrapers
// for their sites can be reviewed. Nothing is written when every listing
// is complete.
type IssuesExporter struct {
	City string
	Now  func() time.Time
}

// NewIssuesExporter creates an IssuesExporter for city.
func NewIssuesExporter(city string) *IssuesExporter {
	return &IssuesExporter{City: city}
}

func (*IssuesExporter) Name() string { return "issues" }

// BuildIssuesReport groups listings by the fields they lack. It returns
// nil when there are no issues.
func BuildIssuesReport(city string, listings []*model.Listing, now time.Time) *IssuesReport {
	issues := make(map[string][]IssueListing)
	for _, l := range listings {
		item := IssueListing{
			URL:        l.ListingURL,
			Title:      l.Title,
			Source:     l.SourceSite,
			City:       l.City,
			Address:    l.Address,
			PostalCode: l.PostalCode,
		}
		if l.PriceEUR == nil {
			issues[IssueMissingPrice] = append(issues[IssueMissingPrice], item)
		}
		if !l.HasCoordinates() {
			issues[IssueMissingCoordinates] = append(issues[IssueMissingCoordinates], item)
		}
		if model.Deref(l.Address) == "" {
			issues[IssueMissingAddress] = append(issues[IssueMissingAddress], item)
		}
		if l.SurfaceM2 == nil {
			issues[IssueMissingSurface] = append(issues[IssueMissingSurface], item)
		}
		if l.Rooms == nil {
			issues[IssueMissingRooms] = append(issues[IssueMissingRooms], item)
		}
	}
	if len(issues) == 0 {
		return nil
	}

	summary := make(map[string]int, len(issues))
	for k, v := range issues {
		summary[k] = len(v)
	}
	return &IssuesReport{
		GeneratedAt:   now,
		City:          city,
		TotalListings: len(listings),
		Summary:       summary,
		Issues:        issues,
	}
}

// Export implements Exporter.
func (e *IssuesExporter) Export(_ context.Context, listings []*model.Listing, dir string) ([]string, error) {
	now := nowOrDefault(e.Now)()
	report := BuildIssuesReport(e.City, listings, now)
	if report == nil {
		zap.L().Debug("no listing issues to export")
		return nil, nil
	}
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_failed_listings_%s.json", citySlug(e.City), now.Format(timestampLayout)))
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: create %s", path)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		_ = f.Close()
		return nil, eris.Wrapf(err, "export: write %s", path)
	}
	if err := f.Close(); err != nil {
		return nil, eris.Wrapf(err, "export: close %s", path)
	}

	keys := make([]string, 0, len(report.Summary))
	for k := range report.Summary {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	fields := []zap.Field{zap.String("path", path)}
	for _, k := range keys {
		fields = append(fields, zap.Int(k, report.Summary[k]))
	}
	zap.L().Warn("listings with missing data exported", fields...)
	return []string{path}, nil
}
