package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/model"
)

const (
	sheetName     = "Rental Listings"
	maxColWidth   = 50.0
	headerFillRGB = "FF4472C4"
)

type column struct {
	header string
	value  func(l *model.Listing) any
}

var columns = []column{
	{"Source", func(l *model.Listing) any { return l.SourceSite }},
	{"Title", func(l *model.Listing) any { return l.Title }},
	{"Price (EUR)", func(l *model.Listing) any { return l.PriceEUR }},
	{"Address", func(l *model.Listing) any { return l.Address }},
	{"City", func(l *model.Listing) any { return l.City }},
	{"Postal Code", func(l *model.Listing) any { return l.PostalCode }},
	{"Area (m²)", func(l *model.Listing) any { return l.SurfaceM2 }},
	{"Rooms", func(l *model.Listing) any { return l.Rooms }},
	{"Bedrooms", func(l *model.Listing) any { return l.Bedrooms }},
	{"Bathrooms", func(l *model.Listing) any { return l.Bathrooms }},
	{"Furnished", func(l *model.Listing) any { return l.Furnished }},
	{"Available", func(l *model.Listing) any { return l.AvailableDate }},
	{"Deposit (EUR)", func(l *model.Listing) any { return l.DepositEUR }},
	{"Energy", func(l *model.Listing) any { return l.EnergyLabel }},
	{"Pets", func(l *model.Listing) any { return l.PetsAllowed }},
	{"Distance (km)", func(l *model.Listing) any { return l.DistanceKM }},
	{"Bike (min)", func(l *model.Listing) any { return l.CommuteTimeBikeMin }},
	{"Transit (min)", func(l *model.Listing) any { return l.CommuteTimeTransitMin }},
	{"Neighborhood", func(l *model.Listing) any { return l.NeighborhoodName }},
	{"Neighborhood Score", func(l *model.Listing) any { return l.NeighborhoodOverall }},
	{"Summary", func(l *model.Listing) any { return l.DescriptionSummary }},
	{"Pros", func(l *model.Listing) any { return l.Pros }},
	{"Cons", func(l *model.Listing) any { return l.Cons }},
	{"Agency", func(l *model.Listing) any { return l.Agency }},
	{"URL", func(l *model.Listing) any { return l.ListingURL }},
	{"Scraped At", func(l *model.Listing) any { return l.ScrapedAt }},
}

// ExcelExporter writes one sheet with a header row and a row per listing.
// Each export produces a timestamped workbook and refreshes a stable copy
// named <city>_rentals.xlsx.
type ExcelExporter struct {
	City string
	Now  func() time.Time
}

// NewExcelExporter creates an ExcelExporter for city.
func NewExcelExporter(city string) *ExcelExporter {
	return &ExcelExporter{City: city}
}

func (*ExcelExporter) Name() string { return "excel" }

// Export implements Exporter.
func (e *ExcelExporter) Export(ctx context.Context, listings []*model.Listing, dir string) ([]string, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	file, err := buildWorkbook(ctx, listings)
	if err != nil {
		return nil, err
	}

	slug := citySlug(e.City)
	stamp := nowOrDefault(e.Now)().Format(timestampLayout)
	paths := []string{
		filepath.Join(dir, fmt.Sprintf("%s_rentals_%s.xlsx", slug, stamp)),
		filepath.Join(dir, slug+"_rentals.xlsx"),
	}
	for _, p := range paths {
		if err := file.Save(p); err != nil {
			return nil, eris.Wrapf(err, "export: save %s", p)
		}
	}
	zap.L().Info("excel export written", zap.String("path", paths[0]), zap.Int("listings", len(listings)))
	return paths, nil
}

func buildWorkbook(ctx context.Context, listings []*model.Listing) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(sheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	header := xlsx.NewStyle()
	header.Font.Bold = true
	header.Font.Color = "FFFFFFFF"
	header.Fill = *xlsx.NewFill("solid", headerFillRGB, headerFillRGB)
	header.Alignment.Horizontal = "center"
	header.Alignment.WrapText = true
	header.ApplyFont = true
	header.ApplyFill = true
	header.ApplyAlignment = true

	widths := make([]int, len(columns))
	row := sheet.AddRow()
	for i, c := range columns {
		cell := row.AddCell()
		cell.SetString(c.header)
		cell.SetStyle(header)
		widths[i] = utf8.RuneCountInString(c.header)
	}

	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := sheet.AddRow()
		for i, c := range columns {
			n := setCell(row.AddCell(), c.value(l))
			widths[i] = max(widths[i], n)
		}
	}

	// Spreadsheet columns are numbered from 1.
	for i, w := range widths {
		sheet.SetColWidth(i+1, i+1, min(float64(w+2), maxColWidth))
	}
	return file, nil
}

// setCell writes v and returns the rendered width. Absent values leave the
// cell blank.
func setCell(cell *xlsx.Cell, v any) int {
	switch t := v.(type) {
	case string:
		cell.SetString(t)
		return utf8.RuneCountInString(t)
	case *string:
		if t != nil {
			cell.SetString(*t)
			return utf8.RuneCountInString(*t)
		}
	case *float64:
		if t != nil {
			cell.SetFloat(*t)
			return len(fmt.Sprint(*t))
		}
	case *int:
		if t != nil {
			cell.SetInt(*t)
			return len(fmt.Sprint(*t))
		}
	case time.Time:
		if !t.IsZero() {
			s := t.UTC().Format("2006-01-02 15:04:05")
			cell.SetString(s)
			return len(s)
		}
	}
	return 0
}
