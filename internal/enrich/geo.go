package enrich

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/model"
	"github.com/sells-group/rent-cli/internal/resilience"
	"github.com/sells-group/rent-cli/pkg/geocode"
	"github.com/sells-group/rent-cli/pkg/routing"
)

const (
	earthRadiusKM = 6371.0

	bikeSpeedKMH    = 18.0
	transitSpeedKMH = 25.0
	// transitOverheadMin covers walking to and waiting at stops.
	transitOverheadMin = 10
)

// GeoOptions configures a GeoEnricher.
type GeoOptions struct {
	// Country is appended to geocoding queries that do not mention it.
	Country string
	WorkLat float64
	WorkLon float64

	Geocoder geocode.Client
	// Router computes real bike routes. Nil keeps the speed estimate.
	Router routing.Client
	// Breaker guards the geocoder. Nil creates a default breaker.
	Breaker *resilience.Breaker
}

// GeoEnricher geocodes listings without coordinates and computes the
// distance and commute times to the work location.
type GeoEnricher struct {
	opts    GeoOptions
	breaker *resilience.Breaker
	routes  *resilience.Breaker
}

// NewGeoEnricher creates a GeoEnricher.
func NewGeoEnricher(opts GeoOptions) *GeoEnricher {
	b := opts.Breaker
	if b == nil {
		b = resilience.NewBreaker(resilience.BreakerConfig{Name: "geocode"})
	}
	return &GeoEnricher{
		opts:    opts,
		breaker: b,
		routes: resilience.NewBreaker(resilience.BreakerConfig{
			Name: "routing",
			Trips: func(err error) bool {
				return !errors.Is(err, routing.ErrNoRoute) && !errors.Is(err, context.Canceled)
			},
		}),
	}
}

// Enrich implements Enricher. A listing that cannot be located is left
// without distance data; geocoder failures are returned.
func (g *GeoEnricher) Enrich(ctx context.Context, l *model.Listing) error {
	if !l.HasCoordinates() {
		if err := g.locate(ctx, l); err != nil {
			return err
		}
	}
	if !l.HasCoordinates() {
		return nil
	}

	dist := Haversine(*l.Latitude, *l.Longitude, g.opts.WorkLat, g.opts.WorkLon)
	l.DistanceKM = model.Ptr(math.Round(dist*100) / 100)
	bike, transit := EstimateCommute(dist)
	l.CommuteTimeBikeMin = &bike
	l.CommuteTimeTransitMin = &transit

	if g.opts.Router != nil {
		g.route(ctx, l)
	}
	return nil
}

func (g *GeoEnricher) locate(ctx context.Context, l *model.Listing) error {
	query := g.Query(l)
	if query == "" || g.opts.Geocoder == nil {
		return nil
	}

	res, err := resilience.Call(ctx, g.breaker, func(ctx context.Context) (*geocode.Result, error) {
		return g.opts.Geocoder.Geocode(ctx, query)
	})
	if err != nil {
		return eris.Wrapf(err, "enrich: geocode %q", query)
	}
	if !res.Matched {
		zap.L().Debug("enrich: no geocoding match", zap.String("query", query), zap.String("url", l.ListingURL))
		return nil
	}
	l.Latitude = model.Ptr(res.Latitude)
	l.Longitude = model.Ptr(res.Longitude)
	return nil
}

// Query builds the geocoding query: address (or title), postal code, and
// the country when the address does not already name it.
func (g *GeoEnricher) Query(l *model.Listing) string {
	q := strings.TrimSpace(model.Deref(l.Address))
	if q == "" {
		q = strings.TrimSpace(model.Deref(l.Title))
	}
	if q == "" {
		return ""
	}
	if pc := model.Deref(l.PostalCode); pc != "" && !strings.Contains(q, pc) {
		q += ", " + pc
	}
	if c := g.opts.Country; c != "" && !strings.Contains(strings.ToLower(q), strings.ToLower(c)) {
		q += ", " + c
	}
	return q
}

// route replaces the bike estimate with a routed duration and stores the
// route geometry. Routing failures keep the estimate.
func (g *GeoEnricher) route(ctx context.Context, l *model.Listing) {
	from := routing.Point{Lat: *l.Latitude, Lon: *l.Longitude}
	to := routing.Point{Lat: g.opts.WorkLat, Lon: g.opts.WorkLon}

	r, err := resilience.Call(ctx, g.routes, func(ctx context.Context) (*routing.Route, error) {
		return g.opts.Router.BikeRoute(ctx, from, to)
	})
	switch {
	case errors.Is(err, routing.ErrNoRoute):
		zap.L().Debug("enrich: no bike route", zap.String("url", l.ListingURL))
		return
	case err != nil:
		zap.L().Warn("enrich: bike routing failed", zap.String("url", l.ListingURL), zap.Error(err))
		return
	}
	l.CommuteTimeBikeMin = model.Ptr(r.DurationMinutes())
	l.BikeRouteCoords = model.RouteCoords(r.Coords())
}

// Haversine returns the great-circle distance in kilometers.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// EstimateCommute converts a distance to bike and transit minutes.
func EstimateCommute(distKM float64) (bikeMin, transitMin int) {
	bikeMin = int(distKM / bikeSpeedKMH * 60)
	transitMin = int(distKM/transitSpeedKMH*60) + transitOverheadMin
	return bikeMin, transitMin
}
