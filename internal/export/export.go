// Package export writes listings out for people to read: an Excel sheet
// and a JSON report of listings with missing data.
package export

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-cli/internal/model"
)

// Exporter writes listings into dir and returns the paths it created.
type Exporter interface {
	Name() string
	Export(ctx context.Context, listings []*model.Listing, dir string) ([]string, error)
}

// timestampLayout names timestamped output files.
const timestampLayout = "20060102_150405"

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "export: create %s", dir)
	}
	return nil
}

func citySlug(city string) string {
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		return "listings"
	}
	return strings.ReplaceAll(city, " ", "_")
}

func nowOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
