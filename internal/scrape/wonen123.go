package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/rent-cli/internal/model"
)

// Wonen123 parses 123wonen.nl, a rental agency chain.
type Wonen123 struct {
	Base string // overrides https://www.123wonen.nl
}

var (
	re123Price    = regexp.MustCompile(`€\s*([\d.]+)(?:,-)?`)
	re123Surface  = regexp.MustCompile(`(?i)(?:woonoppervlakte|oppervlakte)?\s*(\d+)\s*m[²2]`)
	re123Rooms    = regexp.MustCompile(`(?i)(?:(\d+)\s*kamers|kamers\s*(\d+))`)
	re123Bedrooms = regexp.MustCompile(`(?i)(?:(\d+)\s*slaapkamer|slaapkamers?\s*(\d+))`)
	re123Deposit  = regexp.MustCompile(`(?i)(?:borg|waarborgsom|deposit)\s*€?\s*([\d.]+)`)
	re123Direct   = regexp.MustCompile(`(?i)per\s*direct|direct\s*beschikbaar`)
	re123Postal   = regexp.MustCompile(`(\d{4}\s?[A-Z]{2})\s*(Amsterdam|Amstelveen|Diemen)`)
	re123Listing  = regexp.MustCompile(`-\d+-14/?$`)
)

func (Wonen123) Name() string { return "123wonen" }

func (w Wonen123) baseURL() string {
	if w.Base != "" {
		return strings.TrimRight(w.Base, "/")
	}
	return "https://www.123wonen.nl"
}

func (w Wonen123) SearchURL(params SearchParams, page int) string {
	u := fmt.Sprintf("%s/huurwoningen/in/%s?minprice=%.0f&maxprice=%.0f", w.baseURL(),
		url.PathEscape(strings.ToLower(params.City)), params.MinPrice, params.MaxPrice)
	if page > 1 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

func (Wonen123) ListingLinks(page *goquery.Selection, pageURL *url.URL, city string) []string {
	prefix := "/huur/" + strings.ToLower(city) + "/"
	links := resolveLinks(page, `a[href*="/huur/"]`, pageURL, func(path string) bool {
		return strings.HasPrefix(path, prefix) && re123Listing.MatchString(path)
	})
	if len(links) > 0 {
		return links
	}
	// Some agencies use /huur/<city>/<type>/<slug> without the id suffix.
	return resolveLinks(page, `a[href*="/huur/"]`, pageURL, func(path string) bool {
		return strings.HasPrefix(path, "/huur/") && strings.Count(strings.Trim(path, "/"), "/") >= 3
	})
}

func (Wonen123) HasNextPage(page *goquery.Selection, current int) bool {
	return page.Find(fmt.Sprintf(`a[href*="page=%d"], a.volgende, a[rel="next"]`, current+1)).Length() > 0
}

func (Wonen123) ParseListing(doc *goquery.Document, _ string) (*model.Listing, error) {
	l := &model.Listing{}
	sel := doc.Selection

	for _, obj := range jsonLDObjects(sel) {
		if ldHasType(obj, "Residence", "House", "Apartment", "Product") {
			applyLDListing(l, obj)
			break
		}
	}

	text := VisibleText(sel)

	if l.Title == nil {
		l.Title = textPtr(sel.Find("h1").First().Text(), 0)
	}
	if l.PriceEUR == nil {
		if m := re123Price.FindStringSubmatch(text); m != nil {
			if v, ok := ParseAmount(m[1]); ok {
				l.PriceEUR = &v
			}
		}
	}
	if l.SurfaceM2 == nil {
		if m := re123Surface.FindStringSubmatch(text); m != nil {
			if n, ok := firstInt(m[1]); ok {
				l.SurfaceM2 = model.Ptr(float64(n))
			}
		}
	}
	if l.Rooms == nil {
		if n, ok := eitherGroup(re123Rooms, text); ok {
			l.Rooms = &n
		}
	}
	if n, ok := eitherGroup(re123Bedrooms, text); ok {
		l.Bedrooms = &n
	}
	if m := reEnergyLabel.FindStringSubmatch(text); m != nil {
		l.EnergyLabel = model.Ptr(strings.ToUpper(m[1]))
	}
	l.Furnished = Furnishing(text)

	if re123Direct.MatchString(text) {
		l.AvailableDate = model.Ptr("Immediately")
	} else if m := reAvailable.FindStringSubmatch(text); m != nil {
		l.AvailableDate = model.Ptr(m[1])
	}

	if m := re123Deposit.FindStringSubmatch(text); m != nil {
		if v, ok := ParseAmount(m[1]); ok {
			l.DepositEUR = &v
		}
	}

	if l.Address == nil {
		if m := re123Postal.FindStringSubmatch(text); m != nil {
			l.PostalCode = postalCode(m[1])
			l.Address = model.Ptr(m[1] + " " + m[2])
		}
	}
	if l.PostalCode == nil && l.Address != nil {
		l.PostalCode = postalCode(*l.Address)
	}
	if strings.Contains(strings.ToLower(text), "123wonen") {
		l.Agency = model.Ptr("123Wonen")
	}
	return l, nil
}

// eitherGroup returns the first non-empty numeric capture group.
func eitherGroup(re *regexp.Regexp, text string) (int, bool) {
	m := re.FindStringSubmatch(text)
	for _, g := range m[min(1, len(m)):] {
		if g != "" {
			return firstInt(g)
		}
	}
	return 0, false
}
