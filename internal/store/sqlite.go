package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/rent-cli/internal/db"
	"github.com/sells-group/rent-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db        *sql.DB
	upsertSQL string
	nowFunc   func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	upsertSQL, err := db.UpsertSQL(db.SQLite, upsertConfig(db.SQLite, "id"))
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, err
	}
	return &SQLiteStore{db: conn, upsertSQL: upsertSQL, nowFunc: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id                           INTEGER PRIMARY KEY AUTOINCREMENT,
	listing_url                  TEXT NOT NULL UNIQUE,
	source_site                  TEXT NOT NULL,
	raw_page_path                TEXT,
	scraped_at                   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_seen_at                 TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	title                        TEXT,
	price_eur                    REAL,
	price_sek                    REAL,
	address                      TEXT,
	city                         TEXT,
	neighborhood                 TEXT,
	postal_code                  TEXT,
	latitude                     REAL,
	longitude                    REAL,
	surface_m2                   REAL,
	rooms                        INTEGER,
	bedrooms                     INTEGER,
	bathrooms                    INTEGER,
	floor                        TEXT,
	furnished                    TEXT,
	property_type                TEXT,
	deposit_eur                  REAL,
	available_date               TEXT,
	minimum_contract_months      INTEGER,
	pets_allowed                 TEXT,
	smoking_allowed              TEXT,
	energy_label                 TEXT,
	building_year                INTEGER,
	landlord_name                TEXT,
	landlord_phone               TEXT,
	agency                       TEXT,
	description                  TEXT,
	description_summary          TEXT,
	pros                         TEXT,
	cons                         TEXT,
	distance_km                  REAL,
	commute_time_bike_min        INTEGER,
	commute_time_transit_min     INTEGER,
	commute_time_driving_min     INTEGER,
	transit_transfers            INTEGER,
	bike_route_coords            TEXT,
	neighborhood_name            TEXT,
	neighborhood_safety          INTEGER,
	neighborhood_green_space     INTEGER,
	neighborhood_amenities       INTEGER,
	neighborhood_restaurants     INTEGER,
	neighborhood_family_friendly INTEGER,
	neighborhood_expat_friendly  INTEGER,
	neighborhood_overall         REAL
);

CREATE INDEX IF NOT EXISTS idx_listings_source_site ON listings(source_site);
CREATE INDEX IF NOT EXISTS idx_listings_price_eur ON listings(price_eur);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, l *model.Listing) (int64, bool, error) {
	if err := validate(l); err != nil {
		return 0, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM listings WHERE listing_url = ?`, l.ListingURL).Scan(&existing)
	isNew := errors.Is(err, sql.ErrNoRows)
	if err != nil && !isNew {
		return 0, false, eris.Wrapf(err, "sqlite: lookup %s", l.ListingURL)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, s.upsertSQL, writeArgs(l, s.nowFunc().UTC())...).Scan(&id); err != nil {
		return 0, false, eris.Wrapf(err, "sqlite: upsert %s", l.ListingURL)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, eris.Wrap(err, "sqlite: commit upsert")
	}
	return id, isNew, nil
}

func (s *SQLiteStore) BulkUpsert(ctx context.Context, listings []*model.Listing) (int, int, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return 0, 0, eris.Wrap(err, "sqlite: bulk upsert")
	}
	return upsertEach(ctx, s, listings)
}

func (s *SQLiteStore) Query(ctx context.Context, filter model.ListingFilter) ([]model.StoredListing, error) {
	q, args := buildListingQuery(db.SQLite, filter)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query listings")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.StoredListing
	for rows.Next() {
		sl, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		out = append(out, *sl)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate listings")
}

func (s *SQLiteStore) Get(ctx context.Context, listingURL string) (*model.StoredListing, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns()+" FROM listings WHERE listing_url = ?", listingURL)
	sl, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s", listingURL)
	}
	return sl, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count listings")
}

func (s *SQLiteStore) SourceSummary(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_site, COUNT(*) FROM listings GROUP BY source_site ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: source summary")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]int)
	for rows.Next() {
		var site string
		var n int
		if err := rows.Scan(&site, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source summary")
		}
		out[site] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate source summary")
}

func (s *SQLiteStore) Delete(ctx context.Context, listingURL string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE listing_url = ?`, listingURL)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete %s", listingURL)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

// upsertEach runs Upsert per listing, logging and skipping failures. It
// stops only when the context is done.
func upsertEach(ctx context.Context, st Store, listings []*model.Listing) (newCount, updatedCount int, err error) {
	var failed int
	for _, l := range listings {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return newCount, updatedCount, eris.Wrap(ctxErr, "store: bulk upsert interrupted")
		}
		_, isNew, upErr := st.Upsert(ctx, l)
		if upErr != nil {
			failed++
			fields := []zap.Field{zap.Error(upErr)}
			if l != nil {
				fields = append(fields, zap.String("url", l.ListingURL), zap.String("site", l.SourceSite))
			}
			zap.L().Warn("store: skipping listing", fields...)
			continue
		}
		if isNew {
			newCount++
		} else {
			updatedCount++
		}
	}
	zap.L().Info("store: bulk upsert complete",
		zap.Int("new", newCount),
		zap.Int("updated", updatedCount),
		zap.Int("failed", failed),
	)
	return newCount, updatedCount, nil
}
