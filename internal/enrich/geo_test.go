package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/rent-cli/internal/model"
	"github.com/sells-group/rent-cli/internal/resilience"
	"github.com/sells-group/rent-cli/pkg/geocode"
	"github.com/sells-group/rent-cli/pkg/routing"
)

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, query string) (*geocode.Result, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*geocode.Result), args.Error(1)
}

type mockRouter struct {
	mock.Mock
}

func (m *mockRouter) BikeRoute(ctx context.Context, from, to routing.Point) (*routing.Route, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*routing.Route), args.Error(1)
}

// Work location used by the tests: Stroombaan 4, Amstelveen.
const workLat, workLon = 52.2958, 4.8374

func newTestGeo(g geocode.Client, r routing.Client) *GeoEnricher {
	return NewGeoEnricher(GeoOptions{
		Country:  "Netherlands",
		WorkLat:  workLat,
		WorkLon:  workLon,
		Geocoder: g,
		Router:   r,
	})
}

func TestHaversine(t *testing.T) {
	assert.InDelta(t, 0, Haversine(52.37, 4.89, 52.37, 4.89), 1e-9)
	// Amsterdam Centraal to Utrecht Centraal is about 35 km.
	assert.InDelta(t, 35.0, Haversine(52.3791, 4.9003, 52.0894, 5.1100), 1.0)
}

func TestEstimateCommute(t *testing.T) {
	bike, transit := EstimateCommute(9)
	assert.Equal(t, 30, bike)
	assert.Equal(t, 31, transit)

	bike, transit = EstimateCommute(0)
	assert.Equal(t, 0, bike)
	assert.Equal(t, 10, transit)
}

func TestGeoEnricher_Query(t *testing.T) {
	g := newTestGeo(nil, nil)

	assert.Equal(t, "Damrak 1, 1012 LG, Netherlands", g.Query(&model.Listing{
		Address: model.Ptr("Damrak 1"), PostalCode: model.Ptr("1012 LG"),
	}))
	assert.Equal(t, "Damrak 1, 1012 LG Amsterdam, Netherlands", g.Query(&model.Listing{
		Address: model.Ptr("Damrak 1, 1012 LG Amsterdam"), PostalCode: model.Ptr("1012 LG"),
	}))
	assert.Equal(t, "Flat in Oost, Netherlands", g.Query(&model.Listing{Title: model.Ptr("Flat in Oost")}))
	assert.Equal(t, "Keizersgracht 1, the Netherlands", g.Query(&model.Listing{Address: model.Ptr("Keizersgracht 1, the Netherlands")}))
	assert.Empty(t, g.Query(&model.Listing{}))
}

func TestGeoEnricher_GeocodesAndEstimates(t *testing.T) {
	gc := &mockGeocoder{}
	gc.On("Geocode", mock.Anything, "Damrak 1, Netherlands").
		Return(&geocode.Result{Latitude: 52.3745, Longitude: 4.8979, Matched: true}, nil)

	l := &model.Listing{ListingURL: "u1", Address: model.Ptr("Damrak 1")}
	require.NoError(t, newTestGeo(gc, nil).Enrich(context.Background(), l))

	assert.Equal(t, 52.3745, *l.Latitude)
	assert.Equal(t, 4.8979, *l.Longitude)
	want := Haversine(52.3745, 4.8979, workLat, workLon)
	assert.InDelta(t, want, *l.DistanceKM, 0.006)
	bike, transit := EstimateCommute(want)
	assert.Equal(t, bike, *l.CommuteTimeBikeMin)
	assert.Equal(t, transit, *l.CommuteTimeTransitMin)
	assert.Nil(t, l.BikeRouteCoords)
	gc.AssertExpectations(t)
}

func TestGeoEnricher_KnownCoordinatesSkipGeocoding(t *testing.T) {
	gc := &mockGeocoder{}
	l := &model.Listing{Latitude: model.Ptr(workLat), Longitude: model.Ptr(workLon), Address: model.Ptr("Stroombaan 4")}

	require.NoError(t, newTestGeo(gc, nil).Enrich(context.Background(), l))
	assert.Equal(t, 0.0, *l.DistanceKM)
	assert.Equal(t, 0, *l.CommuteTimeBikeMin)
	gc.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestGeoEnricher_NoMatch(t *testing.T) {
	gc := &mockGeocoder{}
	gc.On("Geocode", mock.Anything, mock.Anything).Return(&geocode.Result{}, nil)

	l := &model.Listing{Address: model.Ptr("Nowhere 99")}
	require.NoError(t, newTestGeo(gc, nil).Enrich(context.Background(), l))
	assert.Nil(t, l.Latitude)
	assert.Nil(t, l.DistanceKM)
}

func TestGeoEnricher_NoAddress(t *testing.T) {
	gc := &mockGeocoder{}
	l := &model.Listing{}
	require.NoError(t, newTestGeo(gc, nil).Enrich(context.Background(), l))
	gc.AssertNotCalled(t, "Geocode", mock.Anything, mock.Anything)
}

func TestGeoEnricher_BreakerOpensOnFailures(t *testing.T) {
	gc := &mockGeocoder{}
	gc.On("Geocode", mock.Anything, mock.Anything).Return(nil, errors.New("403 forbidden"))

	g := NewGeoEnricher(GeoOptions{
		Geocoder: gc,
		Breaker:  resilience.NewBreaker(resilience.BreakerConfig{Name: "geocode", FailureThreshold: 2}),
	})
	for range 2 {
		err := g.Enrich(context.Background(), &model.Listing{Address: model.Ptr("Damrak 1")})
		assert.ErrorContains(t, err, "403")
	}
	err := g.Enrich(context.Background(), &model.Listing{Address: model.Ptr("Damrak 2")})
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	gc.AssertNumberOfCalls(t, "Geocode", 2)
}

func TestGeoEnricher_BikeRoute(t *testing.T) {
	r := &mockRouter{}
	r.On("BikeRoute", mock.Anything,
		routing.Point{Lat: 52.3745, Lon: 4.8979},
		routing.Point{Lat: workLat, Lon: workLon},
	).Return(&routing.Route{
		DurationSec: 1530,
		Line:        geom.NewLineStringFlat(geom.XY, []float64{4.8979, 52.3745, 4.8700, 52.3300, 4.8374, 52.2958}),
	}, nil)

	l := &model.Listing{Latitude: model.Ptr(52.3745), Longitude: model.Ptr(4.8979)}
	require.NoError(t, newTestGeo(nil, r).Enrich(context.Background(), l))

	assert.Equal(t, 26, *l.CommuteTimeBikeMin)
	assert.Equal(t, model.RouteCoords{{4.8979, 52.3745}, {4.8700, 52.3300}, {4.8374, 52.2958}}, l.BikeRouteCoords)
	assert.NotNil(t, l.CommuteTimeTransitMin)
	r.AssertExpectations(t)
}

func TestGeoEnricher_RoutingFailureKeepsEstimate(t *testing.T) {
	for _, routeErr := range []error{routing.ErrNoRoute, errors.New("osrm down")} {
		r := &mockRouter{}
		r.On("BikeRoute", mock.Anything, mock.Anything, mock.Anything).Return(nil, routeErr)

		l := &model.Listing{Latitude: model.Ptr(52.3745), Longitude: model.Ptr(4.8979)}
		require.NoError(t, newTestGeo(nil, r).Enrich(context.Background(), l))

		bike, _ := EstimateCommute(Haversine(52.3745, 4.8979, workLat, workLon))
		assert.Equal(t, bike, *l.CommuteTimeBikeMin)
		assert.Nil(t, l.BikeRouteCoords)
	}
}

type recordingEnricher struct {
	name  string
	calls *[]string
	err   error
}

func (r recordingEnricher) Enrich(context.Context, *model.Listing) error {
	*r.calls = append(*r.calls, r.name)
	return r.err
}

func TestChain(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	c := Chain{
		recordingEnricher{name: "geo", calls: &calls, err: boom},
		recordingEnricher{name: "neighborhood", calls: &calls},
	}

	err := c.Enrich(context.Background(), &model.Listing{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"geo", "neighborhood"}, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = nil
	assert.ErrorIs(t, c.Enrich(ctx, &model.Listing{}), context.Canceled)
	assert.Empty(t, calls)
}
