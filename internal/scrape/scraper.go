// Package scrape discovers and downloads listing pages from rental sites.
package scrape

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-cli/internal/model"
)

// ErrNotImplemented is returned by scrapers for sites that are known but
// have no parser yet.
var ErrNotImplemented = eris.New("scrape: site not implemented")

// SearchParams describes one search across a site.
type SearchParams struct {
	City        string
	MinPrice    float64
	MaxPrice    float64
	MaxListings int // 0 means no limit
	TestMode    bool
}

// testModeLimit caps listings per site when TestMode is set and no explicit
// MaxListings was given.
const testModeLimit = 3

// Limit returns the effective per-site listing cap, 0 meaning unlimited.
func (p SearchParams) Limit() int {
	if p.MaxListings > 0 {
		return p.MaxListings
	}
	if p.TestMode {
		return testModeLimit
	}
	return 0
}

// MaxPages bounds search-result pagination.
func (p SearchParams) MaxPages() int {
	if p.TestMode {
		return 2
	}
	return 50
}

// Scraper returns all listings a site currently offers for a search.
type Scraper interface {
	Name() string
	ScrapeAll(ctx context.Context, params SearchParams) ([]*model.Listing, error)
}

// Factory builds a Scraper.
type Factory func() Scraper

// Registry maps site names to scraper factories.
type Registry struct {
	factories map[string]Factory
	order     []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name. Registering a name twice replaces
// the factory but keeps its original position.
func (r *Registry) Register(name string, f Factory) {
	name = strings.ToLower(name)
	if _, ok := r.factories[name]; !ok {
		r.order = append(r.order, name)
	}
	r.factories[name] = f
}

// Has reports whether name has an implementation.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[strings.ToLower(name)]
	return ok
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Resolve builds scrapers for names in the given order. Unknown names
// resolve to a scraper that fails with ErrNotImplemented, so the caller
// sees one failure per unsupported site instead of a silent skip.
func (r *Registry) Resolve(names []string) []Scraper {
	out := make([]Scraper, 0, len(names))
	for _, name := range names {
		f, ok := r.factories[strings.ToLower(name)]
		if !ok {
			out = append(out, notImplemented{name: name})
			continue
		}
		out = append(out, f())
	}
	return out
}

type notImplemented struct{ name string }

func (n notImplemented) Name() string { return n.name }

func (n notImplemented) ScrapeAll(context.Context, SearchParams) ([]*model.Listing, error) {
	return nil, eris.Wrapf(ErrNotImplemented, "site %s", n.name)
}

// DefaultRegistry registers the built-in site scrapers.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	for _, site := range []Site{Pararius{}, Huurwoningen{}, Wonen123{}} {
		r.Register(site.Name(), func() Scraper { return NewSiteScraper(site, deps) })
	}
	return r
}
