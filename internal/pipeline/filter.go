package pipeline

import (
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/model"
)

// filterStage applies the run's filters in a fixed order: price range,
// apartments only, minimum surface, minimum rooms. A listing whose value
// for a filter is unknown always passes that filter.
func (p *Pipeline) filterStage(r *run) {
	kept, counts := applyFilters(r.listings, r.cfg)
	c := &r.result.Counters
	c.FilteredPrice = counts.price
	c.FilteredRooms = counts.rooms
	c.FilteredSurface = counts.surface
	c.FilteredMinRooms = counts.minRooms
	r.listings = kept
	p.advance(r, model.StageEnrichment)
}

type filterCounts struct {
	price, rooms, surface, minRooms int
}

func applyFilters(listings []*model.Listing, cfg model.RunConfig) ([]*model.Listing, filterCounts) {
	var counts filterCounts
	log := zap.L()

	if cfg.MinPrice > 0 || cfg.MaxPrice > 0 {
		listings, counts.price = drop(listings, func(l *model.Listing) bool {
			return !inPriceRange(l.PriceEUR, cfg.MinPrice, cfg.MaxPrice)
		})
		if counts.price > 0 {
			log.Info("pipeline: filtered listings outside price range",
				zap.Int("removed", counts.price),
				zap.Float64("min_price", cfg.MinPrice),
				zap.Float64("max_price", cfg.MaxPrice),
			)
		}
	}

	if cfg.ApartmentsOnly {
		listings, counts.rooms = drop(listings, isRoomListing)
		if counts.rooms > 0 {
			log.Info("pipeline: filtered room and shared listings", zap.Int("removed", counts.rooms))
		}
	}

	if cfg.MinSurface != nil {
		minSurface := *cfg.MinSurface
		listings, counts.surface = drop(listings, func(l *model.Listing) bool {
			return l.SurfaceM2 != nil && *l.SurfaceM2 < minSurface
		})
		if counts.surface > 0 {
			log.Info("pipeline: filtered listings below minimum surface",
				zap.Int("removed", counts.surface), zap.Float64("min_surface", minSurface))
		}
	}

	if cfg.MinRooms != nil {
		minRooms := *cfg.MinRooms
		listings, counts.minRooms = drop(listings, func(l *model.Listing) bool {
			return l.Rooms != nil && *l.Rooms < minRooms
		})
		if counts.minRooms > 0 {
			log.Info("pipeline: filtered listings below minimum rooms",
				zap.Int("removed", counts.minRooms), zap.Int("min_rooms", minRooms))
		}
	}

	return listings, counts
}

// drop returns listings without those matching remove, and how many it
// removed. The input slice is not modified.
func drop(listings []*model.Listing, remove func(*model.Listing) bool) ([]*model.Listing, int) {
	kept := slices.DeleteFunc(slices.Clone(listings), remove)
	return kept, len(listings) - len(kept)
}

// inPriceRange reports whether price lies in [minPrice, maxPrice]. A zero
// maxPrice leaves the range open above; an unknown price is in range.
func inPriceRange(price *float64, minPrice, maxPrice float64) bool {
	if price == nil {
		return true
	}
	if *price < minPrice {
		return false
	}
	return maxPrice <= 0 || *price <= maxPrice
}

var roomTypes = []string{"room", "kamer", "shared"}

// isRoomListing recognises rooms in shared housing from the property type,
// title or URL.
func isRoomListing(l *model.Listing) bool {
	propertyType := strings.ToLower(strings.TrimSpace(model.Deref(l.PropertyType)))
	title := strings.ToLower(model.Deref(l.Title))
	u := strings.ToLower(l.ListingURL)
	return slices.Contains(roomTypes, propertyType) ||
		strings.Contains(u, "/kamer-") ||
		strings.Contains(u, "/room-") ||
		strings.Contains(title, "kamer ") ||
		strings.Contains(title, "shared")
}
