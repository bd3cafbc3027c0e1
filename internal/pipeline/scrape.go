package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/rent-cli/internal/model"
	"github.com/sells-group/rent-cli/internal/scrape"
)

// scrapeStage runs every scraper and concatenates their listings in site
// order. A failing or panicking site is logged and counted; it never stops
// the others.
func (p *Pipeline) scrapeStage(ctx context.Context, r *run) error {
	params := scrape.SearchParams{
		City:        r.cfg.City,
		MinPrice:    r.cfg.MinPrice,
		MaxPrice:    r.cfg.MaxPrice,
		MaxListings: r.cfg.MaxListingsPerSite,
		TestMode:    r.cfg.TestMode,
	}

	perSite := make([][]*model.Listing, len(p.deps.Scrapers))
	failed := make([]bool, len(p.deps.Scrapers))

	g := new(errgroup.Group)
	g.SetLimit(p.opts.ScrapeConcurrency)
	for i, s := range p.deps.Scrapers {
		g.Go(func() error {
			log := r.log.With(zap.String("site", s.Name()))
			listings, err := scrapeSite(ctx, s, params)
			if err != nil {
				failed[i] = true
				if eris.Is(err, scrape.ErrNotImplemented) {
					log.Warn("pipeline: scraper not implemented")
				} else {
					log.Error("pipeline: site failed", zap.Error(err))
				}
				return nil
			}
			perSite[i] = listings
			log.Info("pipeline: site scraped", zap.Int("listings", len(listings)))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: scraping")
	}

	var all []*model.Listing
	for i := range perSite {
		if failed[i] {
			r.result.Counters.SiteFailures++
		}
		for _, l := range perSite[i] {
			if l != nil && l.ListingURL != "" {
				all = append(all, l)
			}
		}
	}
	r.listings = all
	r.result.Counters.Scraped = len(all)
	r.log.Info("pipeline: scraping finished",
		zap.Int("listings", len(all)),
		zap.Int("site_failures", r.result.Counters.SiteFailures),
	)

	if len(all) == 0 {
		return nil
	}
	p.advance(r, model.StageExtraction)
	return nil
}

// scrapeSite converts a panic inside a scraper into an error.
func scrapeSite(ctx context.Context, s scrape.Scraper, params scrape.SearchParams) (listings []*model.Listing, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = eris.Errorf("scraper %s panicked: %v", s.Name(), rec)
		}
	}()
	listings, err = s.ScrapeAll(ctx, params)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape %s", s.Name())
	}
	return listings, nil
}
