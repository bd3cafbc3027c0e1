package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_NullNeverOverwrites(t *testing.T) {
	t.Parallel()

	dst := &Listing{
		ListingURL: "https://a/1",
		SourceSite: "pararius",
		PriceEUR:   Ptr(100.0),
		Title:      Ptr("Canal view"),
	}
	src := &Listing{
		ListingURL: "https://a/1",
		Rooms:      Ptr(2),
	}

	Merge(dst, src)

	assert.Equal(t, 100.0, *dst.PriceEUR)
	assert.Equal(t, "Canal view", *dst.Title)
	assert.Equal(t, 2, *dst.Rooms)
	assert.Equal(t, "pararius", dst.SourceSite)
}

func TestMerge_PresentOverwrites(t *testing.T) {
	t.Parallel()

	dst := &Listing{PriceEUR: Ptr(100.0), SurfaceM2: Ptr(40.0)}
	src := &Listing{PriceEUR: Ptr(1500.0)}

	Merge(dst, src)

	assert.Equal(t, 1500.0, *dst.PriceEUR)
	assert.Equal(t, 40.0, *dst.SurfaceM2)
}

func TestMerge_CopiesPointers(t *testing.T) {
	t.Parallel()

	dst := &Listing{}
	src := &Listing{PriceEUR: Ptr(900.0), BikeRouteCoords: RouteCoords{{4.8, 52.3}}}

	Merge(dst, src)
	*src.PriceEUR = 1
	src.BikeRouteCoords[0][0] = 0

	assert.Equal(t, 900.0, *dst.PriceEUR)
	assert.Equal(t, 4.8, dst.BikeRouteCoords[0][0])
}

func TestMerge_Nil(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { Merge(nil, &Listing{}) })
	assert.NotPanics(t, func() { Merge(&Listing{}, nil) })
}

func TestFillMissing(t *testing.T) {
	t.Parallel()

	dst := &Listing{PriceEUR: Ptr(1200.0)}
	src := &Listing{PriceEUR: Ptr(999.0), Rooms: Ptr(3), PostalCode: Ptr("1017 AB")}

	FillMissing(dst, src)

	assert.Equal(t, 1200.0, *dst.PriceEUR)
	assert.Equal(t, 3, *dst.Rooms)
	assert.Equal(t, "1017 AB", *dst.PostalCode)
}

func TestClone_Independent(t *testing.T) {
	t.Parallel()

	orig := &Listing{
		ListingURL: "https://a/1",
		ScrapedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		City:       Ptr("Amsterdam"),
	}
	c := orig.Clone()
	*c.City = "Diemen"

	assert.Equal(t, "Amsterdam", *orig.City)
	assert.Equal(t, orig.ScrapedAt, c.ScrapedAt)
	assert.Nil(t, (*Listing)(nil).Clone())
}

func TestColumnsAndValues(t *testing.T) {
	t.Parallel()

	cols := Columns()
	require.NotEmpty(t, cols)
	assert.Equal(t, "source_site", cols[0])
	assert.Equal(t, "listing_url", cols[1])
	assert.Contains(t, cols, "bike_route_coords")
	assert.NotContains(t, cols, "last_seen_at")

	l := &Listing{ListingURL: "https://a/1", PriceEUR: Ptr(1500.0)}
	vals := l.Values()
	require.Len(t, vals, len(cols))

	byName := make(map[string]any, len(cols))
	for i, c := range cols {
		byName[c] = vals[i]
	}
	assert.Equal(t, "https://a/1", byName["listing_url"])
	assert.Equal(t, 1500.0, byName["price_eur"])
	assert.Nil(t, byName["rooms"])
	assert.Nil(t, byName["scraped_at"])
	assert.Len(t, l.ScanRefs(), len(cols))
}

func TestPresentFields(t *testing.T) {
	t.Parallel()

	l := &Listing{ListingURL: "https://a/1", Rooms: Ptr(2)}
	assert.Equal(t, []string{"listing_url", "rooms"}, l.PresentFields())
}

func TestRouteCoords_ValueScan(t *testing.T) {
	t.Parallel()

	r := RouteCoords{{4.88, 52.37}, {4.84, 52.30}}
	v, err := r.Value()
	require.NoError(t, err)

	var back RouteCoords
	require.NoError(t, back.Scan(v))
	assert.Equal(t, r, back)

	require.NoError(t, back.Scan([]byte("not json")))
	assert.Nil(t, back)

	require.NoError(t, back.Scan(nil))
	assert.Nil(t, back)

	nilVal, err := RouteCoords(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, nilVal)
}

func TestStageOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b Stage
		want bool
	}{
		{StageScraping, StageExtraction, true},
		{StageExtraction, StageFiltering, true},
		{StageFiltering, StageEnrichment, true},
		{StageEnrichment, StagePersisted, true},
		{StagePersisted, StageScraping, false},
		{StageFiltering, StageFiltering, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.a)+"_"+string(tt.b), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.a.Before(tt.b))
		})
	}

	assert.True(t, StageEnrichment.Resumable())
	assert.False(t, StagePersisted.Resumable())
	assert.False(t, Stage("geocoding").Valid())
}

func TestCheckpoint_JSONShape(t *testing.T) {
	t.Parallel()

	cp := Checkpoint{
		Stage:    StageEnrichment,
		Cursor:   7,
		Listings: []*Listing{{ListingURL: "https://a/1"}},
		Config:   RunConfig{City: "amsterdam", MinPrice: 1000, MaxPrice: 2000},
		SavedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(cp)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "enrichment", raw["stage"])
	assert.Equal(t, 7.0, raw["geocoding_index"])
	assert.Equal(t, "2026-03-01T12:00:00Z", raw["saved_at"])
	assert.Contains(t, raw, "listings")
	assert.Contains(t, raw, "config")
}

func TestNormalizePrice(t *testing.T) {
	t.Parallel()

	l := &Listing{PriceSEK: Ptr(11500.0)}
	l.NormalizePrice()
	require.NotNil(t, l.PriceEUR)
	assert.InDelta(t, 1000.0, *l.PriceEUR, 0.001)

	kept := &Listing{PriceEUR: Ptr(950.0), PriceSEK: Ptr(11500.0)}
	kept.NormalizePrice()
	assert.Equal(t, 950.0, *kept.PriceEUR)

	none := &Listing{}
	none.NormalizePrice()
	assert.Nil(t, none.PriceEUR)
}
