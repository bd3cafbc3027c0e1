package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/db"
	"github.com/sells-group/rent-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	nowFunc func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, nowFunc: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id                           BIGSERIAL PRIMARY KEY,
	listing_url                  TEXT NOT NULL UNIQUE,
	source_site                  TEXT NOT NULL,
	raw_page_path                TEXT,
	scraped_at                   TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen_at                 TIMESTAMPTZ NOT NULL DEFAULT now(),
	title                        TEXT,
	price_eur                    DOUBLE PRECISION,
	price_sek                    DOUBLE PRECISION,
	address                      TEXT,
	city                         TEXT,
	neighborhood                 TEXT,
	postal_code                  TEXT,
	latitude                     DOUBLE PRECISION,
	longitude                    DOUBLE PRECISION,
	surface_m2                   DOUBLE PRECISION,
	rooms                        INTEGER,
	bedrooms                     INTEGER,
	bathrooms                    INTEGER,
	floor                        TEXT,
	furnished                    TEXT,
	property_type                TEXT,
	deposit_eur                  DOUBLE PRECISION,
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
	distance_km                  DOUBLE PRECISION,
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
	neighborhood_overall         DOUBLE PRECISION
);

CREATE INDEX IF NOT EXISTS idx_listings_source_site ON listings(source_site);
CREATE INDEX IF NOT EXISTS idx_listings_price_eur ON listings(price_eur);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) now() time.Time {
	if s.nowFunc == nil {
		return time.Now().UTC()
	}
	return s.nowFunc().UTC()
}

func (s *PostgresStore) Upsert(ctx context.Context, l *model.Listing) (int64, bool, error) {
	if err := validate(l); err != nil {
		return 0, false, err
	}
	sql, err := db.UpsertSQL(db.Postgres, upsertConfig(db.Postgres, "id, (xmax = 0)"))
	if err != nil {
		return 0, false, err
	}

	var id int64
	var isNew bool
	if err := s.pool.QueryRow(ctx, sql, writeArgs(l, s.now())...).Scan(&id, &isNew); err != nil {
		return 0, false, eris.Wrapf(err, "postgres: upsert %s", l.ListingURL)
	}
	return id, isNew, nil
}

// BulkUpsert merges the batch in one COPY-staged statement when every
// listing is valid, carries scraped_at and has a unique URL, and falls back to per-listing
// upserts otherwise or when the fast path fails.
func (s *PostgresStore) BulkUpsert(ctx context.Context, listings []*model.Listing) (int, int, error) {
	if len(listings) == 0 {
		return 0, 0, nil
	}
	if bulkEligible(listings) {
		now := s.now()
		rows := make([][]any, len(listings))
		for i, l := range listings {
			rows[i] = writeArgs(l, now)
		}
		inserted, updated, err := db.BulkUpsert(ctx, s.pool, upsertConfig(db.Postgres, ""), rows)
		if err == nil {
			zap.L().Info("store: bulk upsert complete",
				zap.Int("new", inserted),
				zap.Int("updated", updated),
			)
			return inserted, updated, nil
		}
		if ctx.Err() != nil {
			return 0, 0, eris.Wrap(err, "postgres: bulk upsert")
		}
		zap.L().Warn("store: bulk merge failed, upserting one by one", zap.Error(err))
	}
	return upsertEach(ctx, s, listings)
}

func bulkEligible(listings []*model.Listing) bool {
	seen := make(map[string]bool, len(listings))
	for _, l := range listings {
		if validate(l) != nil || l.ScrapedAt.IsZero() || seen[l.ListingURL] {
			return false
		}
		seen[l.ListingURL] = true
	}
	return true
}

func (s *PostgresStore) Query(ctx context.Context, filter model.ListingFilter) ([]model.StoredListing, error) {
	q, args := buildListingQuery(db.Postgres, filter)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query listings")
	}
	defer rows.Close()

	var out []model.StoredListing
	for rows.Next() {
		sl, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		out = append(out, *sl)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate listings")
}

func (s *PostgresStore) Get(ctx context.Context, listingURL string) (*model.StoredListing, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+selectColumns()+" FROM listings WHERE listing_url = $1", listingURL)
	sl, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get %s", listingURL)
	}
	return sl, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count listings")
}

func (s *PostgresStore) SourceSummary(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_site, COUNT(*) FROM listings GROUP BY source_site ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: source summary")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var site string
		var n int
		if err := rows.Scan(&site, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source summary")
		}
		out[site] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate source summary")
}

func (s *PostgresStore) Delete(ctx context.Context, listingURL string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE listing_url = $1`, listingURL)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete %s", listingURL)
	}
	return tag.RowsAffected() > 0, nil
}
