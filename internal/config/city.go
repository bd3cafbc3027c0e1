package config

import (
	"slices"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-cli/internal/model"
)

// CityProfile describes one supported search area.
type CityProfile struct {
	Name     string
	Country  string
	Currency string
	WorkName string
	WorkLat  float64
	WorkLon  float64
	MinPrice float64
	MaxPrice float64
	// Sites lists every known site for the city in scrape order.
	Sites []string
}

var profiles = map[string]CityProfile{
	"amsterdam": {
		Name:     "amsterdam",
		Country:  "Netherlands",
		Currency: "EUR",
		WorkName: "Stroombaan 4, 1181 VX Amstelveen",
		WorkLat:  52.2958,
		WorkLon:  4.8374,
		MinPrice: 1000,
		MaxPrice: 2000,
		Sites: []string{
			"pararius", "huurwoningen", "123wonen", "funda", "kamernet",
			"rentslam", "housinganywhere", "directwonen", "huurstunt", "roofz",
		},
	},
	"helsinki": {
		Name:     "helsinki",
		Country:  "Finland",
		Currency: "EUR",
		WorkName: "Helsinki Central Station",
		WorkLat:  60.1719,
		WorkLon:  24.9414,
		MinPrice: 800,
		MaxPrice: 1800,
		Sites:    []string{"oikotie", "vuokraovi", "sato", "lumo", "keva", "avara", "retta", "ta"},
	},
	"stockholm": {
		Name:     "stockholm",
		Country:  "Sweden",
		Currency: "SEK",
		WorkName: "Stockholm Central Station",
		WorkLat:  59.3300,
		WorkLon:  18.0586,
		MinPrice: 8000,
		MaxPrice: 20000,
		Sites: []string{
			"blocket", "qasa", "homeq", "bostadslistan", "svenskabostader",
			"residensportalen", "bostadsportal",
		},
	},
}

// ProfileFor returns the profile for city, case-insensitively.
func ProfileFor(city string) (CityProfile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(city))]
	if !ok {
		return CityProfile{}, eris.Errorf("config: unknown city %q (known: %s)",
			city, strings.Join(Cities(), ", "))
	}
	p.Sites = slices.Clone(p.Sites)
	return p, nil
}

// Cities lists the supported city names.
func Cities() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToEUR converts a price in the profile's currency to euros.
func (p CityProfile) ToEUR(amount float64) float64 {
	if p.Currency == "SEK" {
		return amount / model.SEKPerEUR
	}
	return amount
}

// PriceRange resolves configured bounds against the profile defaults.
func (p CityProfile) PriceRange(minPrice, maxPrice float64) (float64, float64) {
	if minPrice <= 0 {
		minPrice = p.MinPrice
	}
	if maxPrice <= 0 {
		maxPrice = p.MaxPrice
	}
	return minPrice, maxPrice
}
