package scrape

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/fetcher"
	"github.com/sells-group/rent-cli/internal/model"
)

// ErrDisallowed is returned for listing URLs excluded by robots.txt.
var ErrDisallowed = eris.New("scrape: disallowed by robots.txt")

// Site holds the rules that differ between rental sites: where search
// results live, which links are listings, and how a detail page parses.
type Site interface {
	Name() string
	SearchURL(p SearchParams, page int) string
	// ListingLinks returns absolute detail-page URLs found on a search page.
	ListingLinks(page *goquery.Selection, pageURL *url.URL, city string) []string
	HasNextPage(page *goquery.Selection, current int) bool
	ParseListing(doc *goquery.Document, pageURL string) (*model.Listing, error)
}

// Deps are the collaborators shared by all site scrapers.
type Deps struct {
	Fetcher   fetcher.Fetcher
	Archive   *RawArchive // nil skips archiving; extraction then skips the listing
	Robots    *RobotsGate // nil disables robots.txt checks
	UserAgent string
	// DelayMin and DelayMax bound the pause between search-page requests.
	DelayMin time.Duration
	DelayMax time.Duration
	// Transport overrides the search-page transport.
	Transport http.RoundTripper
	Now       func() time.Time
}

// SiteScraper drives a Site: it walks search pages with a colly collector,
// then fetches, archives and parses each listing.
type SiteScraper struct {
	site Site
	deps Deps
}

// NewSiteScraper creates a Scraper for site.
func NewSiteScraper(site Site, deps Deps) *SiteScraper {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.UserAgent == "" {
		deps.UserAgent = fetcher.DefaultUserAgent
	}
	return &SiteScraper{site: site, deps: deps}
}

// Name returns the site name.
func (s *SiteScraper) Name() string { return s.site.Name() }

// ScrapeAll discovers listing URLs and scrapes each one. Individual listing
// failures are logged and skipped.
func (s *SiteScraper) ScrapeAll(ctx context.Context, params SearchParams) ([]*model.Listing, error) {
	log := zap.L().With(zap.String("site", s.Name()))

	urls, err := s.DiscoverURLs(ctx, params)
	if err != nil {
		return nil, err
	}
	if limit := params.Limit(); limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	if len(urls) == 0 {
		log.Warn("no listings found")
		return nil, nil
	}
	log.Info("found listing urls", zap.Int("count", len(urls)), zap.Int("limit", params.Limit()))

	listings := make([]*model.Listing, 0, len(urls))
	failed := 0
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "%s: scrape", s.Name())
		}
		l, err := s.scrapeOne(ctx, u)
		if err != nil {
			failed++
			log.Warn("listing failed", zap.String("url", u), zap.Error(err))
			continue
		}
		listings = append(listings, l)
	}

	log.Info("site scraped", zap.Int("listings", len(listings)), zap.Int("failed", failed))
	return listings, nil
}

// DiscoverURLs walks the site's search result pages and returns unique
// listing URLs in page order.
func (s *SiteScraper) DiscoverURLs(ctx context.Context, params SearchParams) ([]string, error) {
	log := zap.L().With(zap.String("site", s.Name()))

	c := colly.NewCollector(colly.UserAgent(s.deps.UserAgent))
	c.IgnoreRobotsTxt = s.deps.Robots == nil
	if s.deps.Transport != nil {
		c.WithTransport(s.deps.Transport)
	}
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       s.deps.DelayMin,
		RandomDelay: max(s.deps.DelayMax-s.deps.DelayMin, 0),
	}); err != nil {
		return nil, eris.Wrap(err, "scrape: collector limit")
	}

	limit := params.Limit()
	seen := make(map[string]bool)
	var urls []string
	var lastErr error

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		lastErr = err
		log.Warn("search page failed", zap.String("url", r.Request.URL.String()), zap.Int("status", r.StatusCode), zap.Error(err))
	})
	c.OnHTML("html", func(e *colly.HTMLElement) {
		page, _ := strconv.Atoi(e.Request.Ctx.Get("page"))
		added := 0
		for _, link := range s.site.ListingLinks(e.DOM, e.Request.URL, params.City) {
			if !seen[link] {
				seen[link] = true
				urls = append(urls, link)
				added++
			}
		}
		log.Debug("search page", zap.Int("page", page), zap.Int("new_links", added))

		if added == 0 || (limit > 0 && len(urls) >= limit) || page >= params.MaxPages() {
			return
		}
		if !s.site.HasNextPage(e.DOM, page) {
			return
		}
		next := colly.NewContext()
		next.Put("page", strconv.Itoa(page+1))
		if err := c.Request(http.MethodGet, s.site.SearchURL(params, page+1), nil, next, nil); err != nil {
			log.Debug("stop paginating", zap.Int("page", page+1), zap.Error(err))
		}
	})

	first := colly.NewContext()
	first.Put("page", "1")
	err := c.Request(http.MethodGet, s.site.SearchURL(params, 1), nil, first, nil)
	c.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, eris.Wrapf(ctxErr, "%s: discover", s.Name())
	}
	if err != nil {
		if errors.Is(err, colly.ErrRobotsTxtBlocked) {
			return nil, eris.Wrapf(ErrDisallowed, "%s: search page", s.Name())
		}
		return nil, eris.Wrapf(err, "%s: search page", s.Name())
	}
	if len(urls) == 0 && lastErr != nil {
		return nil, eris.Wrapf(lastErr, "%s: search page", s.Name())
	}
	return urls, nil
}

func (s *SiteScraper) scrapeOne(ctx context.Context, rawURL string) (*model.Listing, error) {
	if s.deps.Robots != nil && !s.deps.Robots.Allowed(ctx, rawURL) {
		return nil, ErrDisallowed
	}

	page, err := s.deps.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	var rawPath *string
	if s.deps.Archive != nil {
		p, err := s.deps.Archive.Save(s.Name(), rawURL, page.Body)
		if err != nil {
			return nil, err
		}
		rawPath = &p
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, eris.Wrap(err, "parse html")
	}
	l, err := s.site.ParseListing(doc, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse listing")
	}
	if l == nil {
		l = &model.Listing{}
	}

	l.SourceSite = s.Name()
	l.ListingURL = rawURL
	l.RawPagePath = rawPath
	l.ScrapedAt = s.deps.Now().UTC()
	l.NormalizePrice()
	return l, nil
}

// resolveLinks collects hrefs matching keep, resolved against pageURL and
// restricted to its host, in document order without duplicates.
func resolveLinks(sel *goquery.Selection, selector string, pageURL *url.URL, keep func(path string) bool) []string {
	var out []string
	seen := make(map[string]bool)
	sel.Find(selector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		u, err := pageURL.Parse(strings.TrimSpace(href))
		if err != nil || u.Host != pageURL.Host || !keep(u.Path) {
			return
		}
		u.Fragment = ""
		abs := u.String()
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	})
	return out
}
