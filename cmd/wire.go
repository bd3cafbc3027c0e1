package main

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rent-cli/internal/checkpoint"
	"github.com/sells-group/rent-cli/internal/config"
	"github.com/sells-group/rent-cli/internal/enrich"
	"github.com/sells-group/rent-cli/internal/export"
	"github.com/sells-group/rent-cli/internal/extract"
	"github.com/sells-group/rent-cli/internal/fetcher"
	"github.com/sells-group/rent-cli/internal/model"
	"github.com/sells-group/rent-cli/internal/pipeline"
	"github.com/sells-group/rent-cli/internal/scrape"
	"github.com/sells-group/rent-cli/internal/store"
	anthropicpkg "github.com/sells-group/rent-cli/pkg/anthropic"
	"github.com/sells-group/rent-cli/pkg/geocode"
	"github.com/sells-group/rent-cli/pkg/routing"
)

// runFlags are the command-line overrides for a pipeline run.
type runFlags struct {
	city           string
	sites          []string
	minPrice       float64
	maxPrice       float64
	maxListings    int
	testMode       bool
	skipLLM        bool
	apartmentsOnly bool
	minSurface     float64
	minRooms       int
	outputDir      string
}

// buildRunConfig resolves flags against the config file and the city
// profile. Prices end up in euros, the currency listings are filtered in.
func buildRunConfig(c *config.Config, f runFlags) (model.RunConfig, error) {
	city := firstNonEmpty(f.city, c.Search.City)
	profile, err := config.ProfileFor(city)
	if err != nil {
		return model.RunConfig{}, err
	}

	sites := f.sites
	if len(sites) == 0 {
		sites = c.Search.Sites
	}
	if len(sites) == 0 {
		sites = profile.Sites
	}

	minPrice, maxPrice := profile.PriceRange(
		firstPositive(f.minPrice, c.Search.MinPrice),
		firstPositive(f.maxPrice, c.Search.MaxPrice),
	)
	if minPrice > maxPrice {
		return model.RunConfig{}, eris.Errorf("min price %.0f exceeds max price %.0f", minPrice, maxPrice)
	}

	maxListings := f.maxListings
	if maxListings <= 0 && f.testMode {
		maxListings = c.Scrape.TestModeLimit
	}

	rc := model.RunConfig{
		City:               profile.Name,
		Sites:              normalizeSites(sites),
		MinPrice:           profile.ToEUR(minPrice),
		MaxPrice:           profile.ToEUR(maxPrice),
		MaxListingsPerSite: maxListings,
		TestMode:           f.testMode,
		SkipLLM:            f.skipLLM,
		ApartmentsOnly:     f.apartmentsOnly,
		OutputDir:          firstNonEmpty(f.outputDir, c.Export.OutputDir),
	}
	if f.minSurface > 0 {
		rc.MinSurface = model.Ptr(f.minSurface)
	}
	if f.minRooms > 0 {
		rc.MinRooms = model.Ptr(f.minRooms)
	}
	return rc, nil
}

func normalizeSites(sites []string) []string {
	out := make([]string, 0, len(sites))
	for _, s := range sites {
		for _, part := range strings.Split(s, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func checkpointPath(c *config.Config, outputDir string) string {
	if c.Pipeline.CheckpointFile != "" {
		return c.Pipeline.CheckpointFile
	}
	return filepath.Join(outputDir, checkpoint.DefaultFileName)
}

func rawPagesDir(c *config.Config, outputDir string) string {
	if c.Scrape.RawPagesDir != "" {
		return c.Scrape.RawPagesDir
	}
	return filepath.Join(outputDir, "raw_pages")
}

// storeOpener keeps the SQLite database next to the reports unless a DSN
// is configured.
func storeOpener(c *config.Config, outputDir string) store.Opener {
	dsn := c.Store.DatabaseURL
	if dsn == "" && (c.Store.Driver == "" || c.Store.Driver == "sqlite") {
		dsn = filepath.Join(outputDir, "listings.db")
	}
	return store.NewOpener(c.Store.Driver, dsn)
}

func pipelineOptions(c *config.Config) pipeline.Options {
	return pipeline.Options{
		CheckpointEvery:   c.Pipeline.CheckpointEvery,
		EnrichWorkers:     c.Pipeline.EnrichWorkers,
		ScrapeConcurrency: c.Pipeline.ScrapeConcurrency,
	}
}

// siteRegistry builds the scrapers' shared fetcher, archive and robots gate.
func siteRegistry(c *config.Config, outputDir string) *scrape.Registry {
	timeout := time.Duration(c.Scrape.TimeoutSecs) * time.Second
	minDelay := time.Duration(c.Scrape.DelayMinMs) * time.Millisecond
	maxDelay := time.Duration(c.Scrape.DelayMaxMs) * time.Millisecond

	deps := scrape.Deps{
		Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  c.Scrape.UserAgent,
			Timeout:    timeout,
			MaxRetries: c.Scrape.MaxRetries,
			MinDelay:   minDelay,
			MaxDelay:   maxDelay,
		}),
		Archive:   scrape.NewRawArchive(rawPagesDir(c, outputDir)),
		UserAgent: c.Scrape.UserAgent,
		DelayMin:  minDelay,
		DelayMax:  maxDelay,
	}
	if c.Scrape.RespectRobots {
		deps.Robots = scrape.NewRobotsGate(&http.Client{Timeout: timeout}, firstNonEmpty(c.Scrape.UserAgent, fetcher.DefaultUserAgent))
	}
	return scrape.DefaultRegistry(deps)
}

// enricher chains geo and neighborhood enrichment for the run's city.
func enricher(c *config.Config, profile config.CityProfile) (enrich.Enricher, error) {
	geoOpts := enrich.GeoOptions{
		Country: profile.Country,
		WorkLat: profile.WorkLat,
		WorkLon: profile.WorkLon,
		Geocoder: geocode.NewClient(
			geocode.WithBaseURL(c.Geocode.BaseURL),
			geocode.WithRateLimit(c.Geocode.RatePerSec),
			geocode.WithEmail(c.Geocode.Email),
		),
	}
	if c.Routing.Enabled {
		geoOpts.Router = routing.NewClient(routing.WithBaseURL(c.Routing.BaseURL))
	}

	table, err := enrich.DefaultTable()
	if err != nil {
		return nil, eris.Wrap(err, "load neighborhood table")
	}
	return enrich.Chain{
		enrich.NewGeoEnricher(geoOpts),
		enrich.NewNeighborhoodEnricher(table, profile.Name),
	}, nil
}

func exporters(c *config.Config, city string) []export.Exporter {
	var out []export.Exporter
	for _, f := range c.Export.Formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "excel", "xlsx":
			out = append(out, export.NewExcelExporter(city))
		case "issues":
			out = append(out, export.NewIssuesExporter(city))
		default:
			zap.L().Warn("unknown export format", zap.String("format", f))
		}
	}
	return out
}

// buildPipeline wires every collaborator for a run of rc.
func buildPipeline(c *config.Config, rc model.RunConfig, cps checkpoint.Store) (*pipeline.Pipeline, error) {
	profile, err := config.ProfileFor(rc.City)
	if err != nil {
		return nil, err
	}
	enr, err := enricher(c, profile)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Scrapers:    siteRegistry(c, rc.OutputDir).Resolve(rc.Sites),
		Fallback:    extract.NewRegexExtractor(),
		Enricher:    enr,
		Exporters:   exporters(c, rc.City),
		Checkpoints: cps,
		OpenStore:   storeOpener(c, rc.OutputDir),
	}
	if c.Anthropic.Key != "" {
		deps.Extractor = extract.NewLLMExtractor(anthropicpkg.NewClient(c.Anthropic.Key), extract.LLMOptions{
			Model:         c.Anthropic.Model,
			MaxTokens:     int64(c.Anthropic.MaxTokens),
			MaxInputChars: c.Anthropic.MaxInputChars,
		})
	}
	return pipeline.New(pipelineOptions(c), deps), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstPositive(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
