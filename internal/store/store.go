// Package store persists rental listings keyed by listing URL.
package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-cli/internal/model"
)

// ErrValidation is returned when a listing cannot be stored as given.
var ErrValidation = eris.New("store: invalid listing")

// IsValidation reports whether err is (or wraps) ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// Store is the URL-keyed listing repository. Upserts never replace a stored
// value with an absent one.
type Store interface {
	// Upsert inserts l, or merges its present fields into the existing row
	// with the same URL and refreshes last_seen_at.
	Upsert(ctx context.Context, l *model.Listing) (id int64, isNew bool, err error)

	// BulkUpsert upserts every listing. Per-record failures are logged and
	// skipped; an error means the batch could not run at all.
	BulkUpsert(ctx context.Context, listings []*model.Listing) (newCount, updatedCount int, err error)

	Query(ctx context.Context, filter model.ListingFilter) ([]model.StoredListing, error)
	Get(ctx context.Context, listingURL string) (*model.StoredListing, error)
	Count(ctx context.Context) (int, error)
	SourceSummary(ctx context.Context) (map[string]int, error)
	Delete(ctx context.Context, listingURL string) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Opener acquires a migrated Store. The caller owns the result and must
// Close it; the pipeline holds a store only for the duration of a write.
type Opener func(ctx context.Context) (Store, error)

// NewOpener returns an Opener for the given driver and DSN.
func NewOpener(driver, dsn string) Opener {
	return func(ctx context.Context) (Store, error) {
		var (
			st  Store
			err error
		)
		switch driver {
		case "sqlite", "":
			if dsn == "" {
				dsn = "listings.db"
			}
			st, err = NewSQLite(dsn)
		case "postgres":
			st, err = NewPostgres(ctx, dsn, nil)
		default:
			return nil, eris.Errorf("store: unsupported driver %q", driver)
		}
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	}
}

func validate(l *model.Listing) error {
	if l == nil {
		return eris.Wrap(ErrValidation, "listing is nil")
	}
	if l.ListingURL == "" {
		return eris.Wrap(ErrValidation, "listing_url is required")
	}
	return nil
}
