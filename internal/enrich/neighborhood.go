package enrich

import (
	"context"
	_ "embed"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/rent-cli/internal/model"
)

//go:embed neighborhoods.yaml
var defaultNeighborhoods []byte

// Scores rates a neighborhood from 1 to 10 on each dimension.
type Scores struct {
	Key            string `yaml:"key"`
	Name           string `yaml:"name"`
	Safety         int    `yaml:"safety"`
	GreenSpace     int    `yaml:"green_space"`
	Amenities      int    `yaml:"amenities"`
	Restaurants    int    `yaml:"restaurants"`
	FamilyFriendly int    `yaml:"family_friendly"`
	ExpatFriendly  int    `yaml:"expat_friendly"`
}

// Overall is the weighted mean of the scores, rounded to one decimal.
// Safety weighs 1.5, amenities 1.2, restaurants 0.8, the rest 1.0.
func (s Scores) Overall() float64 {
	sum := float64(s.Safety)*1.5 +
		float64(s.GreenSpace)*1.0 +
		float64(s.Amenities)*1.2 +
		float64(s.Restaurants)*0.8 +
		float64(s.FamilyFriendly)*1.0 +
		float64(s.ExpatFriendly)*1.0
	return math.Round(sum/6.5*10) / 10
}

type alias struct {
	Alias string `yaml:"alias"`
	Key   string `yaml:"key"`
}

type postalRange struct {
	From int    `yaml:"from"`
	To   int    `yaml:"to"`
	Key  string `yaml:"key"`
}

type cityTable struct {
	Municipalities []string      `yaml:"municipalities"`
	Neighborhoods  []Scores      `yaml:"neighborhoods"`
	Aliases        []alias       `yaml:"aliases"`
	PostalRanges   []postalRange `yaml:"postal_ranges"`

	byKey map[string]Scores
	// byLength holds non-municipality neighborhoods, longest key first, so
	// "zuidoost" is tried before "zuid" and "oost".
	byLength []Scores
}

// Table holds neighborhood ratings per city.
type Table struct {
	cities map[string]*cityTable
}

// ParseTable decodes a YAML neighborhood table keyed by lowercase city name.
func ParseTable(data []byte) (*Table, error) {
	var raw map[string]*cityTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "enrich: parse neighborhood table")
	}
	t := &Table{cities: make(map[string]*cityTable, len(raw))}
	for city, ct := range raw {
		if ct == nil {
			continue
		}
		ct.byKey = make(map[string]Scores, len(ct.Neighborhoods))
		for _, n := range ct.Neighborhoods {
			ct.byKey[n.Key] = n
			if !slices.Contains(ct.Municipalities, n.Key) {
				ct.byLength = append(ct.byLength, n)
			}
		}
		for _, a := range ct.Aliases {
			if _, ok := ct.byKey[a.Key]; !ok {
				return nil, eris.Errorf("enrich: %s alias %q points to unknown neighborhood %q", city, a.Alias, a.Key)
			}
		}
		for _, r := range ct.PostalRanges {
			if _, ok := ct.byKey[r.Key]; !ok {
				return nil, eris.Errorf("enrich: %s postal range %d-%d points to unknown neighborhood %q", city, r.From, r.To, r.Key)
			}
		}
		slices.SortStableFunc(ct.byLength, func(a, b Scores) int { return len(b.Key) - len(a.Key) })
		slices.SortStableFunc(ct.Aliases, func(a, b alias) int { return len(b.Alias) - len(a.Alias) })
		t.cities[fold(city)] = ct
	}
	return t, nil
}

// DefaultTable returns the built-in table.
var DefaultTable = sync.OnceValues(func() (*Table, error) {
	return ParseTable(defaultNeighborhoods)
})

// Cities lists the cities with ratings.
func (t *Table) Cities() []string {
	out := make([]string, 0, len(t.cities))
	for c := range t.cities {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Identify finds the neighborhood of a listing in city. Municipalities are
// matched on the listing's city first, then aliases, then neighborhood
// names, then postal code ranges. Longer aliases and names win over the
// shorter ones they contain.
func (t *Table) Identify(city string, l *model.Listing) (Scores, bool) {
	ct, ok := t.cities[fold(city)]
	if !ok {
		return Scores{}, false
	}

	listingCity := fold(model.Deref(l.City))
	if listingCity != "" {
		for _, m := range ct.Municipalities {
			if strings.Contains(listingCity, m) {
				if s, ok := ct.byKey[m]; ok {
					return s, true
				}
			}
		}
	}

	var parts []string
	for _, p := range []*string{l.Neighborhood, l.City, l.Address} {
		if v := fold(model.Deref(p)); v != "" {
			parts = append(parts, v)
		}
	}
	text := strings.Join(parts, " ")

	if text != "" {
		for _, a := range ct.Aliases {
			if strings.Contains(text, a.Alias) {
				return ct.byKey[a.Key], true
			}
		}
		for _, n := range ct.byLength {
			if strings.Contains(text, n.Key) || strings.Contains(text, strings.ReplaceAll(n.Key, "-", " ")) {
				return n, true
			}
		}
	}

	if num, ok := postalNumber(model.Deref(l.PostalCode)); ok {
		for _, r := range ct.PostalRanges {
			if num >= r.From && num <= r.To {
				return ct.byKey[r.Key], true
			}
		}
	}
	return Scores{}, false
}

// postalNumber reads the four leading digits of a Dutch postal code.
func postalNumber(pc string) (int, bool) {
	pc = strings.ReplaceAll(strings.TrimSpace(pc), " ", "")
	if len(pc) < 4 {
		return 0, false
	}
	n, err := strconv.Atoi(pc[:4])
	return n, err == nil
}

// fold lowercases s and strips diacritics, so "Södermalm" matches "sodermalm".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// NeighborhoodEnricher copies neighborhood ratings onto listings.
type NeighborhoodEnricher struct {
	table *Table
	city  string
}

// NewNeighborhoodEnricher creates an enricher for listings in city.
func NewNeighborhoodEnricher(table *Table, city string) *NeighborhoodEnricher {
	return &NeighborhoodEnricher{table: table, city: city}
}

// Enrich implements Enricher. Unidentified listings are left unchanged.
func (e *NeighborhoodEnricher) Enrich(_ context.Context, l *model.Listing) error {
	s, ok := e.table.Identify(e.city, l)
	if !ok {
		return nil
	}
	l.NeighborhoodName = model.Ptr(s.Name)
	l.NeighborhoodSafety = model.Ptr(s.Safety)
	l.NeighborhoodGreenSpace = model.Ptr(s.GreenSpace)
	l.NeighborhoodAmenities = model.Ptr(s.Amenities)
	l.NeighborhoodRestaurants = model.Ptr(s.Restaurants)
	l.NeighborhoodFamilyFriendly = model.Ptr(s.FamilyFriendly)
	l.NeighborhoodExpatFriendly = model.Ptr(s.ExpatFriendly)
	l.NeighborhoodOverall = model.Ptr(s.Overall())
	return nil
}
