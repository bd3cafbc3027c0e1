// Package enrich adds location data to listings: coordinates, distance and
// commute times to the work location, and neighborhood ratings.
package enrich

import (
	"context"
	"errors"

	"github.com/sells-group/rent-cli/internal/model"
)

// Enricher adds data to a listing in place.
type Enricher interface {
	Enrich(ctx context.Context, l *model.Listing) error
}

// Chain runs enrichers in order. Every enricher runs even when an earlier
// one fails; the errors are joined.
type Chain []Enricher

// Enrich implements Enricher.
func (c Chain) Enrich(ctx context.Context, l *model.Listing) error {
	var errs []error
	for _, e := range c {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.Enrich(ctx, l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
