package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/rent-cli/internal/db"
	"github.com/sells-group/rent-cli/internal/model"
)

const listingsTable = "listings"

// writeColumns lists every column an upsert binds, in argument order.
func writeColumns() []string {
	return append(model.Columns(), "last_seen_at")
}

// writeArgs returns the bind values for l in writeColumns order. The write
// time is bound as last_seen_at.
func writeArgs(l *model.Listing, now time.Time) []any {
	return append(l.Values(), now)
}

// upsertConfig describes the listing upsert. A new listing without
// scraped_at takes the write time; an existing one keeps its stored value.
func upsertConfig(d db.Dialect, returning string) db.UpsertConfig {
	cols := writeColumns()
	writeTime := db.Placeholder(d, len(cols))
	if d == db.Postgres {
		writeTime += "::timestamptz"
	}
	return db.UpsertConfig{
		Table:          listingsTable,
		Columns:        cols,
		ConflictKeys:   []string{"listing_url"},
		Returning:      returning,
		InsertDefaults: map[string]string{"scraped_at": writeTime},
	}
}

func selectColumns() string {
	return "id, " + strings.Join(model.Columns(), ", ") + ", last_seen_at"
}

type scannable interface {
	Scan(dest ...any) error
}

func scanListing(row scannable) (*model.StoredListing, error) {
	var sl model.StoredListing
	dest := make([]any, 0, len(model.Columns())+2)
	dest = append(dest, &sl.ID)
	dest = append(dest, sl.ScanRefs()...)
	dest = append(dest, &sl.LastSeenAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &sl, nil
}

// buildListingQuery renders the filtered listing query. Every numeric bound
// admits rows where the column is NULL.
func buildListingQuery(d db.Dialect, f model.ListingFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	bind := func(v any) string {
		args = append(args, v)
		if d == db.SQLite {
			return "?"
		}
		return fmt.Sprintf("$%d", len(args))
	}
	nullOr := func(col, op string, v any) {
		where = append(where, fmt.Sprintf("(%s IS NULL OR %s %s %s)", col, col, op, bind(v)))
	}

	if f.MinPrice != nil {
		nullOr("price_eur", ">=", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		nullOr("price_eur", "<=", *f.MaxPrice)
	}
	if f.MinSurface != nil {
		nullOr("surface_m2", ">=", *f.MinSurface)
	}
	if f.MinRooms != nil {
		nullOr("rooms", ">=", *f.MinRooms)
	}
	if f.MinNeighborhoodScore != nil {
		nullOr("neighborhood_overall", ">=", *f.MinNeighborhoodScore)
	}
	if f.SourceSite != "" {
		where = append(where, "source_site = "+bind(f.SourceSite))
	}

	q := "SELECT " + selectColumns() + " FROM " + listingsTable
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY scraped_at DESC, id DESC"
	return q, args
}
