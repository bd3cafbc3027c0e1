package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/rent-cli/internal/model"
)

// Pararius parses pararius.com, whose pages carry stable BEM class names.
type Pararius struct {
	Base string // overrides https://www.pararius.com
}

func (Pararius) Name() string { return "pararius" }

func (p Pararius) baseURL() string {
	if p.Base != "" {
		return strings.TrimRight(p.Base, "/")
	}
	return "https://www.pararius.com"
}

func (p Pararius) SearchURL(params SearchParams, page int) string {
	u := fmt.Sprintf("%s/apartments/%s/%.0f-%.0f", p.baseURL(), url.PathEscape(strings.ToLower(params.City)),
		params.MinPrice, params.MaxPrice)
	if page > 1 {
		u += fmt.Sprintf("/page-%d", page)
	}
	return u
}

func (Pararius) ListingLinks(page *goquery.Selection, pageURL *url.URL, _ string) []string {
	isListing := func(path string) bool { return strings.Contains(path, "/apartment-for-rent/") }
	links := resolveLinks(page, "a.listing-search-item__link", pageURL, isListing)
	if len(links) == 0 {
		links = resolveLinks(page, `a[href*="/apartment-for-rent/"]`, pageURL, isListing)
	}
	return links
}

func (Pararius) HasNextPage(page *goquery.Selection, _ int) bool {
	return page.Find(`a[rel="next"], .pagination__link--next`).Length() > 0
}

func (Pararius) ParseListing(doc *goquery.Document, _ string) (*model.Listing, error) {
	l := &model.Listing{}
	sel := doc.Selection

	l.Title = textPtr(sel.Find("h1.listing-detail-summary__title").First().Text(), 0)
	if v, ok := ParseAmount(sel.Find(".listing-detail-summary__price").First().Text()); ok {
		l.PriceEUR = &v
	}
	l.Address = textPtr(sel.Find(".listing-detail-summary__location").First().Text(), 0)

	sel.Find(".listing-features__main-description li").Each(func(_ int, li *goquery.Selection) {
		text := strings.ToLower(cleanText(li.Text()))
		switch {
		case strings.Contains(text, "m²") || strings.Contains(text, "m2"):
			if n, ok := firstInt(text); ok {
				l.SurfaceM2 = model.Ptr(float64(n))
			}
		case strings.Contains(text, "room"):
			if n, ok := firstInt(text); ok {
				l.Rooms = &n
			}
		case strings.Contains(text, "furnished") || strings.Contains(text, "upholstered"):
			l.Furnished = Furnishing(text)
		}
	})

	// Detail table: <dt class="listing-features__term"> followed by its
	// <dd class="listing-features__description">.
	sel.Find("dt.listing-features__term").Each(func(_ int, dt *goquery.Selection) {
		term := strings.ToLower(cleanText(dt.Text()))
		value := cleanText(dt.NextFiltered(".listing-features__description").Text())
		if value == "" {
			return
		}
		switch {
		case strings.Contains(term, "bedroom"):
			if n, ok := firstInt(value); ok {
				l.Bedrooms = &n
			}
		case strings.Contains(term, "bathroom"):
			if n, ok := firstInt(value); ok {
				l.Bathrooms = &n
			}
		case strings.Contains(term, "available"):
			l.AvailableDate = &value
		case strings.Contains(term, "deposit"):
			if v, ok := ParseAmount(value); ok {
				l.DepositEUR = &v
			}
		case strings.Contains(term, "energy"):
			l.EnergyLabel = model.Ptr(strings.ToUpper(value))
		case strings.Contains(term, "floor") || strings.Contains(term, "storey"):
			l.Floor = &value
		case strings.Contains(term, "type of house") || strings.Contains(term, "dwelling type"):
			l.PropertyType = &value
		case strings.Contains(term, "construction") || strings.Contains(term, "year"):
			if n, ok := firstInt(value); ok && n >= 1800 && n <= 2100 {
				l.BuildingYear = &n
			}
		}
	})

	l.Description = textPtr(sel.Find(".listing-detail-description__content").First().Text(), maxDescriptionChars)
	l.Agency = textPtr(sel.Find(".agent-summary__title-link").First().Text(), 0)

	if l.Address != nil {
		l.PostalCode = postalCode(*l.Address)
	}
	return l, nil
}

var (
	reUnfurnished = regexp.MustCompile(`(?i)\b(?:unfurnished|ongemeubileerd|kaal)\b`)
	reUpholstered = regexp.MustCompile(`(?i)\b(?:upholstered|gestoffeerd)\b`)
	reFurnished   = regexp.MustCompile(`(?i)\b(?:furnished|gemeubileerd)\b`)
)

// Furnishing maps English and Dutch wording to Furnished, Upholstered or
// Unfurnished. Negated forms are checked first.
func Furnishing(text string) *string {
	switch {
	case reUnfurnished.MatchString(text):
		return model.Ptr("Unfurnished")
	case reUpholstered.MatchString(text):
		return model.Ptr("Upholstered")
	case reFurnished.MatchString(text):
		return model.Ptr("Furnished")
	}
	return nil
}
