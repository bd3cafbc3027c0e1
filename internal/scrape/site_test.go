package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rent-cli/internal/fetcher"
)

const parariusDetail = `<html><body>
<h1 class="listing-detail-summary__title">Flat for rent %s</h1>
<div class="listing-detail-summary__price">€1,650 per month</div>
<div class="listing-detail-summary__location">1017 AB Amsterdam (Grachtengordel-Zuid)</div>
<ul class="listing-features__main-description">
  <li>65 m²</li><li>3 rooms</li><li>Furnished</li>
</ul>
</body></html>`

// parariusSite serves two search pages with three listings, one of which
// is gone, and a robots.txt that hides a private listing.
func parariusSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /apartment-for-rent/amsterdam/private/\n"))
	})
	mux.HandleFunc("/apartments/amsterdam/1000-2000", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<a class="listing-search-item__link" href="/apartment-for-rent/amsterdam/a1/keizersgracht">A</a>
<a class="listing-search-item__link" href="/apartment-for-rent/amsterdam/a1/keizersgracht">A again</a>
<a class="listing-search-item__link" href="/apartment-for-rent/amsterdam/gone/damrak">Gone</a>
<a href="/about">About</a>
<a rel="next" href="/apartments/amsterdam/1000-2000/page-2">Next</a>
</body></html>`))
	})
	mux.HandleFunc("/apartments/amsterdam/1000-2000/page-2", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<a class="listing-search-item__link" href="/apartment-for-rent/amsterdam/b2/prinsengracht">B</a>
<a class="listing-search-item__link" href="/apartment-for-rent/amsterdam/private/x">Hidden</a>
</body></html>`))
	})
	mux.HandleFunc("/apartment-for-rent/amsterdam/a1/keizersgracht", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, parariusDetail, "Keizersgracht")
	})
	mux.HandleFunc("/apartment-for-rent/amsterdam/b2/prinsengracht", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, parariusDetail, "Prinsengracht")
	})
	mux.HandleFunc("/apartment-for-rent/amsterdam/private/x", func(w http.ResponseWriter, _ *http.Request) {
		t.Error("robots-disallowed listing must not be fetched")
	})
	return httptest.NewServer(mux)
}

func newTestSiteScraper(t *testing.T, srv *httptest.Server, robots bool) (*SiteScraper, string) {
	t.Helper()
	dir := t.TempDir()
	deps := Deps{
		Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second, MaxRetries: 1}),
		Archive: NewRawArchive(dir),
		Now:     func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) },
	}
	if robots {
		deps.Robots = NewRobotsGate(srv.Client(), "rent-cli")
	}
	return NewSiteScraper(Pararius{Base: srv.URL}, deps), dir
}

var amsterdamSearch = SearchParams{City: "amsterdam", MinPrice: 1000, MaxPrice: 2000}

func TestSiteScraper_DiscoverURLs(t *testing.T) {
	srv := parariusSite(t)
	defer srv.Close()

	s, _ := newTestSiteScraper(t, srv, false)
	urls, err := s.DiscoverURLs(context.Background(), amsterdamSearch)
	require.NoError(t, err)
	assert.Equal(t, []string{
		srv.URL + "/apartment-for-rent/amsterdam/a1/keizersgracht",
		srv.URL + "/apartment-for-rent/amsterdam/gone/damrak",
		srv.URL + "/apartment-for-rent/amsterdam/b2/prinsengracht",
		srv.URL + "/apartment-for-rent/amsterdam/private/x",
	}, urls)
}

func TestSiteScraper_ScrapeAll(t *testing.T) {
	srv := parariusSite(t)
	defer srv.Close()

	s, dir := newTestSiteScraper(t, srv, true)
	listings, err := s.ScrapeAll(context.Background(), amsterdamSearch)
	require.NoError(t, err)

	// The 404 and the robots-disallowed listing are skipped.
	require.Len(t, listings, 2)
	first := listings[0]
	assert.Equal(t, "pararius", first.SourceSite)
	assert.Equal(t, srv.URL+"/apartment-for-rent/amsterdam/a1/keizersgracht", first.ListingURL)
	assert.Equal(t, time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), first.ScrapedAt)
	assert.Equal(t, "Flat for rent Keizersgracht", *first.Title)
	assert.Equal(t, 1650.0, *first.PriceEUR)
	assert.Equal(t, 65.0, *first.SurfaceM2)
	assert.Equal(t, 3, *first.Rooms)
	assert.Equal(t, "Furnished", *first.Furnished)
	assert.Equal(t, "1017 AB", *first.PostalCode)

	require.NotNil(t, first.RawPagePath)
	assert.Equal(t, dir, filepath.Dir(*first.RawPagePath))
	body, err := os.ReadFile(*first.RawPagePath)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Keizersgracht")
}

func TestSiteScraper_Limit(t *testing.T) {
	srv := parariusSite(t)
	defer srv.Close()

	s, _ := newTestSiteScraper(t, srv, false)
	params := amsterdamSearch
	params.MaxListings = 1
	listings, err := s.ScrapeAll(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Contains(t, listings[0].ListingURL, "keizersgracht")
}

func TestSiteScraper_SearchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, _ := newTestSiteScraper(t, srv, false)
	_, err := s.ScrapeAll(context.Background(), amsterdamSearch)
	assert.Error(t, err)
}

func TestSiteScraper_NoListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>Geen resultaten</body></html>"))
	}))
	defer srv.Close()

	s, _ := newTestSiteScraper(t, srv, false)
	listings, err := s.ScrapeAll(context.Background(), amsterdamSearch)
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestSiteScraper_Cancelled(t *testing.T) {
	srv := parariusSite(t)
	defer srv.Close()

	s, _ := newTestSiteScraper(t, srv, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ScrapeAll(ctx, amsterdamSearch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
