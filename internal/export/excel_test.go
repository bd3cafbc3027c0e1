package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/rent-cli/internal/model"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func sampleListings() []*model.Listing {
	return []*model.Listing{
		{
			SourceSite:         "pararius",
			ListingURL:         "https://www.pararius.com/apartment-for-rent/amsterdam/1/a",
			ScrapedAt:          fixedNow,
			Title:              model.Ptr("Flat Keizersgracht"),
			PriceEUR:           model.Ptr(1650.0),
			Address:            model.Ptr("Keizersgracht 1"),
			PostalCode:         model.Ptr("1015 CJ"),
			Latitude:           model.Ptr(52.37),
			Longitude:          model.Ptr(4.89),
			SurfaceM2:          model.Ptr(65.0),
			Rooms:              model.Ptr(3),
			CommuteTimeBikeMin: model.Ptr(24),
		},
		{
			SourceSite: "huurwoningen",
			ListingURL: "https://www.huurwoningen.nl/huren/amsterdam/ab12/damrak/",
		},
	}
}

func TestExcelExporter_Export(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	e := &ExcelExporter{City: "Amsterdam", Now: func() time.Time { return fixedNow }}
	assert.Equal(t, "excel", e.Name())

	paths, err := e.Export(context.Background(), sampleListings(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "amsterdam_rentals_20260314_150926.xlsx"),
		filepath.Join(dir, "amsterdam_rentals.xlsx"),
	}, paths)
	for _, p := range paths {
		assert.FileExists(t, p)
	}

	file, err := xlsx.OpenFile(paths[1])
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	sheet := file.Sheets[0]
	assert.Equal(t, sheetName, sheet.Name)
	require.Len(t, sheet.Rows, 3)

	header := sheet.Rows[0].Cells
	assert.Equal(t, "Source", header[0].Value)
	assert.Equal(t, "Price (EUR)", header[2].Value)
	assert.Equal(t, "URL", header[len(columns)-2].Value)

	first := sheet.Rows[1].Cells
	assert.Equal(t, "pararius", first[0].Value)
	assert.Equal(t, "Flat Keizersgracht", first[1].Value)
	price, err := first[2].Float()
	require.NoError(t, err)
	assert.Equal(t, 1650.0, price)
	rooms, err := first[7].Int()
	require.NoError(t, err)
	assert.Equal(t, 3, rooms)
	assert.Equal(t, "2026-03-14 15:09:26", first[len(columns)-1].Value)

	second := sheet.Rows[2].Cells
	require.GreaterOrEqual(t, len(second), 2)
	assert.Equal(t, "huurwoningen", second[0].Value)
	assert.Empty(t, second[1].Value)
}

func TestExcelExporter_Empty(t *testing.T) {
	dir := t.TempDir()
	paths, err := NewExcelExporter("").Export(context.Background(), nil, dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "listings_rentals.xlsx"), paths[1])
}

func TestExcelExporter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()
	_, err := NewExcelExporter("amsterdam").Export(ctx, sampleListings(), dir)
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuildWorkbook_ColumnWidths(t *testing.T) {
	file, err := buildWorkbook(context.Background(), sampleListings())
	require.NoError(t, err)
	sheet := file.Sheets[0]

	first := sheet.Col(0)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.Min)
	assert.Equal(t, 1, first.Max)
	assert.Equal(t, float64(len("huurwoningen")+2), first.Width)

	sheet.Cols.ForEach(func(idx int, col *xlsx.Col) {
		assert.GreaterOrEqual(t, col.Min, 1, "column %d", idx)
		assert.LessOrEqual(t, col.Width, maxColWidth)
	})
}
