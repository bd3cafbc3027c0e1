// Package routing queries an OSRM server for bike routes between two points.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/rent-cli/internal/resilience"
)

// DefaultBaseURL is the public OSRM demo server.
const DefaultBaseURL = "https://router.project-osrm.org"

// ErrNoRoute is returned when OSRM finds no route between the points.
var ErrNoRoute = eris.New("routing: no route found")

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// Route is a computed route.
type Route struct {
	DurationSec float64
	DistanceM   float64
	Line        *geom.LineString
}

// DurationMinutes rounds the travel time to whole minutes.
func (r *Route) DurationMinutes() int {
	return int(r.DurationSec/60 + 0.5)
}

// Coords returns the route as [lon, lat] pairs.
func (r *Route) Coords() [][2]float64 {
	if r.Line == nil {
		return nil
	}
	out := make([][2]float64, 0, r.Line.NumCoords())
	for _, c := range r.Line.Coords() {
		out = append(out, [2]float64{c.X(), c.Y()})
	}
	return out
}

// Client computes routes.
type Client interface {
	BikeRoute(ctx context.Context, from, to Point) (*Route, error)
}

// Option configures the router.
type Option func(*router)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(r *router) { r.httpClient = hc }
}

// WithBaseURL points the client at another OSRM server.
func WithBaseURL(u string) Option {
	return func(r *router) { r.baseURL = strings.TrimRight(u, "/") }
}

// WithProfile overrides the OSRM profile name. Self-hosted servers often
// expose "bicycle" instead of "bike".
func WithProfile(p string) Option {
	return func(r *router) { r.profile = p }
}

type router struct {
	httpClient *http.Client
	baseURL    string
	profile    string
}

// NewClient creates an OSRM routing Client.
func NewClient(opts ...Option) Client {
	r := &router{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    DefaultBaseURL,
		profile:    "bike",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Duration float64           `json:"duration"`
		Distance float64           `json:"distance"`
		Geometry *geojson.Geometry `json:"geometry"`
	} `json:"routes"`
}

func (r *router) BikeRoute(ctx context.Context, from, to Point) (*Route, error) {
	u := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		r.baseURL, r.profile, from.Lon, from.Lat, to.Lon, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "routing: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "routing: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Wrap(&resilience.StatusError{StatusCode: resp.StatusCode, URL: r.baseURL}, "routing")
		}
		return nil, eris.Wrap(err, "routing: decode response")
	}

	switch {
	case body.Code == "NoRoute" || (body.Code == "Ok" && len(body.Routes) == 0):
		return nil, ErrNoRoute
	case body.Code != "Ok":
		return nil, eris.Errorf("routing: osrm %s: %s", body.Code, body.Message)
	}

	best := body.Routes[0]
	route := &Route{DurationSec: best.Duration, DistanceM: best.Distance}
	if best.Geometry != nil {
		g, err := best.Geometry.Decode()
		if err != nil {
			return nil, eris.Wrap(err, "routing: decode geometry")
		}
		ls, ok := g.(*geom.LineString)
		if !ok {
			return nil, eris.Errorf("routing: unexpected geometry %T", g)
		}
		route.Line = ls
	}
	return route, nil
}
