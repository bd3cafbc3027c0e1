package geocode

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const damrakResponse = `[{"lat":"52.3745","lon":"4.8970","display_name":"Damrak, Amsterdam, Nederland"}]`

func TestGeocode_Match(t *testing.T) {
	var gotQuery, gotUA, gotEmail string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotEmail = r.URL.Query().Get("email")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, damrakResponse)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/"), WithRateLimit(1000), WithUserAgent("rent-test"), WithEmail("ops@example.com"))
	res, err := c.Geocode(context.Background(), "Damrak 1, Amsterdam, Netherlands")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.InDelta(t, 52.3745, res.Latitude, 1e-6)
	assert.InDelta(t, 4.8970, res.Longitude, 1e-6)
	assert.Equal(t, "Damrak 1, Amsterdam, Netherlands", gotQuery)
	assert.Equal(t, "rent-test", gotUA)
	assert.Equal(t, "ops@example.com", gotEmail)
}

func TestGeocode_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	res, err := c.Geocode(context.Background(), "Nowhere 99")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestGeocode_EmptyQuerySkipsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	res, err := c.Geocode(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, int32(0), calls.Load())
}

func TestGeocode_CachesNormalizedQuery(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, damrakResponse)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	_, err := c.Geocode(context.Background(), "Damrak 1, Amsterdam")
	require.NoError(t, err)
	res, err := c.Geocode(context.Background(), "  damrak 1,   AMSTERDAM ")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocode_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	_, err := c.Geocode(context.Background(), "Damrak 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGeocode_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	_, err := c.Geocode(context.Background(), "Damrak 1")
	assert.Error(t, err)
}

func TestGeocode_ContextCancelled(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1"), WithRateLimit(0.001))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Geocode(ctx, "Damrak 1")
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, cacheKey("Damrak 1, Amsterdam"), cacheKey(" damrak  1,  amsterdam "))
	assert.NotEqual(t, cacheKey("Damrak 1"), cacheKey("Damrak 2"))
	assert.Len(t, cacheKey("x"), 64)
}
