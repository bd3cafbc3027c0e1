package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/rent-cli/internal/model"
)

// Huurwoningen parses huurwoningen.nl, which publishes schema.org JSON-LD
// on both search and detail pages.
type Huurwoningen struct {
	Base string // overrides https://www.huurwoningen.nl
}

var (
	reHWPrice     = regexp.MustCompile(`€\s*([\d.,]+)\s*(?:per|/)`)
	reSurface     = regexp.MustCompile(`(\d+)\s*m[²2]`)
	reRooms       = regexp.MustCompile(`(?i)(\d+)\s*(?:kamer|room)`)
	reEnergyLabel = regexp.MustCompile(`(?i)(?:energielabel|energie|energy)[^\w]*([A-G]\+*)(?:[^\w+]|$)`)
	reAvailable   = regexp.MustCompile(`(?i)(?:beschikbaar|available)[^\d]*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/]\d{1,2}[-/]\d{1,2})`)
)

func (Huurwoningen) Name() string { return "huurwoningen" }

func (h Huurwoningen) baseURL() string {
	if h.Base != "" {
		return strings.TrimRight(h.Base, "/")
	}
	return "https://www.huurwoningen.nl"
}

func (h Huurwoningen) SearchURL(params SearchParams, page int) string {
	u := fmt.Sprintf("%s/in/%s/?prijs=%.0f-%.0f", h.baseURL(), url.PathEscape(strings.ToLower(params.City)),
		params.MinPrice, params.MaxPrice)
	if page > 1 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

func (Huurwoningen) ListingLinks(page *goquery.Selection, pageURL *url.URL, city string) []string {
	var links []string
	seen := make(map[string]bool)
	for _, obj := range jsonLDObjects(page) {
		if !ldHasType(obj, "ItemList") {
			continue
		}
		elems, _ := obj["itemListElement"].([]any)
		for _, e := range elems {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			raw := ldString(m, "url")
			if raw == "" {
				if item, ok := m["item"].(map[string]any); ok {
					raw = ldString(item, "url")
				}
			}
			if u, err := pageURL.Parse(raw); err == nil && raw != "" && !seen[u.String()] {
				seen[u.String()] = true
				links = append(links, u.String())
			}
		}
	}
	if len(links) > 0 {
		return links
	}

	re := regexp.MustCompile(`/huren/` + regexp.QuoteMeta(strings.ToLower(city)) + `/[a-f0-9]+/`)
	return resolveLinks(page, `a[href*="/huren/"]`, pageURL, re.MatchString)
}

func (Huurwoningen) HasNextPage(page *goquery.Selection, current int) bool {
	return page.Find(fmt.Sprintf(`a[href*="page=%d"]`, current+1)).Length() > 0
}

func (Huurwoningen) ParseListing(doc *goquery.Document, _ string) (*model.Listing, error) {
	l := &model.Listing{}
	sel := doc.Selection

	for _, obj := range jsonLDObjects(sel) {
		if !ldHasType(obj, "House", "Apartment", "Product", "Residence", "SingleFamilyResidence", "Accommodation") {
			continue
		}
		applyLDListing(l, obj)
		break
	}

	text := VisibleText(sel)

	if l.Title == nil {
		l.Title = textPtr(sel.Find("h1").First().Text(), 0)
	}
	if l.PriceEUR == nil {
		if m := reHWPrice.FindStringSubmatch(text); m != nil {
			if v, ok := ParseAmount(m[1]); ok {
				l.PriceEUR = &v
			}
		}
	}
	if l.SurfaceM2 == nil {
		if m := reSurface.FindStringSubmatch(text); m != nil {
			if n, ok := firstInt(m[1]); ok {
				l.SurfaceM2 = model.Ptr(float64(n))
			}
		}
	}
	if l.Rooms == nil {
		if m := reRooms.FindStringSubmatch(text); m != nil {
			if n, ok := firstInt(m[1]); ok {
				l.Rooms = &n
			}
		}
	}
	if m := reEnergyLabel.FindStringSubmatch(text); m != nil {
		l.EnergyLabel = model.Ptr(strings.ToUpper(m[1]))
	}
	l.Furnished = Furnishing(text)
	if m := reAvailable.FindStringSubmatch(text); m != nil {
		l.AvailableDate = model.Ptr(m[1])
	}
	if l.PostalCode == nil && l.Address != nil {
		l.PostalCode = postalCode(*l.Address)
	}
	return l, nil
}

// applyLDListing copies the schema.org fields both Dutch sites publish.
func applyLDListing(l *model.Listing, obj map[string]any) {
	l.Title = textPtr(ldString(obj, "name"), 0)
	l.Description = textPtr(ldString(obj, "description"), maxDescriptionChars)

	if line, pc := ldAddress(obj["address"]); line != "" {
		l.Address = textPtr(line, 0)
		if pc != "" {
			l.PostalCode = postalCode(strings.ToUpper(pc))
		}
	}
	if v, ok := ldNumber(obj["numberOfRooms"]); ok {
		l.Rooms = model.Ptr(int(v))
	}
	if v, ok := ldNumber(obj["floorSize"]); ok {
		l.SurfaceM2 = &v
	}
	if offers, ok := obj["offers"].(map[string]any); ok {
		if v, ok := ldNumber(offers["price"]); ok {
			l.PriceEUR = &v
		}
	}
	if geo, ok := obj["geo"].(map[string]any); ok {
		lat, okLat := ldCoord(geo["latitude"])
		lon, okLon := ldCoord(geo["longitude"])
		if okLat && okLon {
			l.Latitude, l.Longitude = &lat, &lon
		}
	}
}
