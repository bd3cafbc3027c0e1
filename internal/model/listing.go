package model

import (
	"math"
	"time"
)

// Listing is a single rental listing as it flows through the pipeline.
// Optional content fields are pointers: nil means "not found", never zero.
// The db tag names the storage column; the json tag is the checkpoint key.
type Listing struct {
	// Identity
	SourceSite  string    `json:"source_site" db:"source_site"`
	ListingURL  string    `json:"listing_url" db:"listing_url"`
	RawPagePath *string   `json:"raw_page_path,omitempty" db:"raw_page_path"`
	ScrapedAt   time.Time `json:"scraped_at,omitzero" db:"scraped_at"`
	LastSeenAt  time.Time `json:"last_seen_at,omitzero" db:"-"`

	// Core details
	Title        *string  `json:"title,omitempty" db:"title"`
	PriceEUR     *float64 `json:"price_eur,omitempty" db:"price_eur"`
	PriceSEK     *float64 `json:"price_sek,omitempty" db:"price_sek"`
	Address      *string  `json:"address,omitempty" db:"address"`
	City         *string  `json:"city,omitempty" db:"city"`
	Neighborhood *string  `json:"neighborhood,omitempty" db:"neighborhood"`
	PostalCode   *string  `json:"postal_code,omitempty" db:"postal_code"`
	Latitude     *float64 `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64 `json:"longitude,omitempty" db:"longitude"`

	// Property details
	SurfaceM2    *float64 `json:"surface_m2,omitempty" db:"surface_m2"`
	Rooms        *int     `json:"rooms,omitempty" db:"rooms"`
	Bedrooms     *int     `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms    *int     `json:"bathrooms,omitempty" db:"bathrooms"`
	Floor        *string  `json:"floor,omitempty" db:"floor"`
	Furnished    *string  `json:"furnished,omitempty" db:"furnished"`
	PropertyType *string  `json:"property_type,omitempty" db:"property_type"`

	// Conditions
	DepositEUR            *float64 `json:"deposit_eur,omitempty" db:"deposit_eur"`
	AvailableDate         *string  `json:"available_date,omitempty" db:"available_date"`
	MinimumContractMonths *int     `json:"minimum_contract_months,omitempty" db:"minimum_contract_months"`
	PetsAllowed           *string  `json:"pets_allowed,omitempty" db:"pets_allowed"`
	SmokingAllowed        *string  `json:"smoking_allowed,omitempty" db:"smoking_allowed"`
	EnergyLabel           *string  `json:"energy_label,omitempty" db:"energy_label"`
	BuildingYear          *int     `json:"building_year,omitempty" db:"building_year"`

	// Landlord
	LandlordName  *string `json:"landlord_name,omitempty" db:"landlord_name"`
	LandlordPhone *string `json:"landlord_phone,omitempty" db:"landlord_phone"`
	Agency        *string `json:"agency,omitempty" db:"agency"`

	// Text analysis
	Description        *string `json:"description,omitempty" db:"description"`
	DescriptionSummary *string `json:"description_summary,omitempty" db:"description_summary"`
	Pros               *string `json:"pros,omitempty" db:"pros"`
	Cons               *string `json:"cons,omitempty" db:"cons"`

	// Commute
	DistanceKM            *float64    `json:"distance_km,omitempty" db:"distance_km"`
	CommuteTimeBikeMin    *int        `json:"commute_time_bike_min,omitempty" db:"commute_time_bike_min"`
	CommuteTimeTransitMin *int        `json:"commute_time_transit_min,omitempty" db:"commute_time_transit_min"`
	CommuteTimeDrivingMin *int        `json:"commute_time_driving_min,omitempty" db:"commute_time_driving_min"`
	TransitTransfers      *int        `json:"transit_transfers,omitempty" db:"transit_transfers"`
	BikeRouteCoords       RouteCoords `json:"bike_route_coords,omitempty" db:"bike_route_coords"`

	// Neighborhood
	NeighborhoodName           *string  `json:"neighborhood_name,omitempty" db:"neighborhood_name"`
	NeighborhoodSafety         *int     `json:"neighborhood_safety,omitempty" db:"neighborhood_safety"`
	NeighborhoodGreenSpace     *int     `json:"neighborhood_green_space,omitempty" db:"neighborhood_green_space"`
	NeighborhoodAmenities      *int     `json:"neighborhood_amenities,omitempty" db:"neighborhood_amenities"`
	NeighborhoodRestaurants    *int     `json:"neighborhood_restaurants,omitempty" db:"neighborhood_restaurants"`
	NeighborhoodFamilyFriendly *int     `json:"neighborhood_family_friendly,omitempty" db:"neighborhood_family_friendly"`
	NeighborhoodExpatFriendly  *int     `json:"neighborhood_expat_friendly,omitempty" db:"neighborhood_expat_friendly"`
	NeighborhoodOverall        *float64 `json:"neighborhood_overall,omitempty" db:"neighborhood_overall"`
}

// StoredListing is a Listing with its storage-assigned row id.
type StoredListing struct {
	ID int64 `json:"id"`
	Listing
}

// HasCoordinates reports whether both latitude and longitude are known.
func (l *Listing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Clone returns a deep copy of l. Pointer fields are re-allocated so the
// copy can be mutated without touching the original.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := &Listing{
		SourceSite: l.SourceSite,
		ListingURL: l.ListingURL,
		ScrapedAt:  l.ScrapedAt,
		LastSeenAt: l.LastSeenAt,
	}
	Merge(c, l)
	return c
}

// Ptr returns a pointer to v. Handy for building listings in parsers and tests.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the value behind p, or the zero value when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T
		return zero
	}
	return *p
}

// SEKPerEUR is the fixed rate used to compare Swedish rents in euros.
const SEKPerEUR = 11.5

// NormalizePrice derives price_eur from price_sek when only the latter is known.
func (l *Listing) NormalizePrice() {
	if l.PriceEUR == nil && l.PriceSEK != nil {
		eur := math.Round(*l.PriceSEK/SEKPerEUR*100) / 100
		l.PriceEUR = &eur
	}
}
