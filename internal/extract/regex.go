package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rent-cli/internal/model"
	"github.com/sells-group/rent-cli/internal/scrape"
)

// amount matches "1.500", "1,500" or a bare three or four digit number.
const amount = `(\d{1,2}[.,]\d{3}|\d{3,4})`

var (
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:€|eur)\s*` + amount),
		regexp.MustCompile(`(?i)` + amount + `\s*(?:€|eur|euro)`),
		regexp.MustCompile(`(?i)(?:huur(?:prijs)?|rent|price)[:\s]*(?:€|eur)?\s*` + amount),
	}
	surfacePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d{2,4})\s*(?:m²|m2|vierkante meter|sqm)`),
		regexp.MustCompile(`(?i)(?:opp(?:ervlakte)?|woon(?:oppervlakte)?|living\s*area|surface)[:\s]*(\d{2,4})`),
	}
	roomPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d)\s*-?\s*kamers?`),
		regexp.MustCompile(`(?i)(\d)\s*rooms?`),
		regexp.MustCompile(`(?i)(?:kamers?|rooms?)[:\s]*(\d)`),
	}
	bedroomPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d)\s*slaapkamers?`),
		regexp.MustCompile(`(?i)(\d)\s*bedrooms?`),
		regexp.MustCompile(`(?i)(?:slaapkamers?|bedrooms?)[:\s]*(\d)`),
	}
	floorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)e?\s*verdieping`),
		regexp.MustCompile(`(?i)(\d+)(?:st|nd|rd|th)\s*floor`),
		regexp.MustCompile(`(?i)(?:etage|verdieping|floor)[:\s]*(\d+)`),
		regexp.MustCompile(`(?i)(begane\s*grond|ground\s*floor)`),
	}
	energyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:energie\s*label|energy\s*label)[:\s]*([A-G](?:\+{1,3})?)(?:[^\w+]|$)`),
		regexp.MustCompile(`(?i)\blabel[:\s]*([A-G](?:\+{1,3})?)(?:[^\w+]|$)`),
	}
	depositPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:borg|deposit|waarborgsom)[:\s]*(?:€|eur)?\s*` + amount),
		regexp.MustCompile(`(?i)(?:€|eur)\s*` + amount + `\s*(?:borg|deposit)`),
	}
	availablePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:beschikbaar|available|per)[:\s]*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
		regexp.MustCompile(`(?i)(?:beschikbaar|available|per)[:\s]*(\d{4}[-/]\d{1,2}[-/]\d{1,2})`),
		regexp.MustCompile(`(?i)(?:from|vanaf|per)\s*(\d{1,2}[-/]\d{1,2}[-/]\d{2,4})`),
	}
	yearPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:bouwjaar|built|construction|year)[:\s]*(\d{4})`),
		regexp.MustCompile(`(?i)uit\s+(\d{4})`),
	}

	reImmediately = regexp.MustCompile(`(?i)per direct|immediately|direct beschikbaar|nu beschikbaar`)
	rePostal      = regexp.MustCompile(`\b(\d{4})\s*([A-Za-z]{2})\b`)

	propertyTypes = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"Studio", regexp.MustCompile(`(?i)\bstudio`)},
		{"Apartment", regexp.MustCompile(`(?i)\b(?:appartement|apartment|flat)\b`)},
		{"House", regexp.MustCompile(`(?i)(?:woning|\bhuis\b|\bhouse\b)`)},
		{"Room", regexp.MustCompile(`(?i)\b(?:kamer|room)\b`)},
	}
)

// RegexExtractor fills missing fields with Dutch and English text patterns.
// It never calls the network and never overrides a present field.
type RegexExtractor struct{}

// NewRegexExtractor creates a RegexExtractor.
func NewRegexExtractor() *RegexExtractor { return &RegexExtractor{} }

func (*RegexExtractor) Name() string { return "regex" }

func (*RegexExtractor) Available(context.Context) bool { return true }

// Extract parses html and fills the fields existing lacks. Malformed HTML
// yields whatever text the parser recovers.
func (r *RegexExtractor) Extract(_ context.Context, html string, existing *model.Listing) (*model.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	text := scrape.VisibleText(doc.Selection, "nav", "footer")
	return fillFrom(existing, FieldsFromText(text)), nil
}

// FieldsFromText runs every field pattern over page text.
func FieldsFromText(text string) *model.Listing {
	l := &model.Listing{
		PriceEUR:      matchFloat(pricePatterns, text, 300, 10000),
		SurfaceM2:     matchFloat(surfacePatterns, text, 10, 1000),
		Rooms:         matchInt(roomPatterns, text, 1, 20),
		Bedrooms:      matchInt(bedroomPatterns, text, 0, 20),
		PostalCode:    NormalizePostalCode(text),
		Floor:         matchFloor(text),
		DepositEUR:    matchFloat(depositPatterns, text, 100, 20000),
		Furnished:     scrape.Furnishing(text),
		AvailableDate: matchAvailable(text),
		BuildingYear:  matchInt(yearPatterns, text, 1800, 2030),
		PropertyType:  matchPropertyType(text),
	}
	if s := matchString(energyPatterns, text); s != "" {
		l.EnergyLabel = model.Ptr(strings.ToUpper(s))
	}
	return l
}

// NormalizePostalCode finds a Dutch postal code and formats it "1234 AB".
func NormalizePostalCode(text string) *string {
	m := rePostal.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return model.Ptr(m[1] + " " + strings.ToUpper(m[2]))
}

// matchString returns the first capture of the first pattern that matches.
func matchString(patterns []*regexp.Regexp, text string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// matchFloat tries each pattern in turn and keeps the first value in range.
func matchFloat(patterns []*regexp.Regexp, text string, lo, hi float64) *float64 {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		digits := strings.NewReplacer(".", "", ",", "").Replace(m[1])
		v, err := strconv.ParseFloat(digits, 64)
		if err == nil && v >= lo && v <= hi {
			return &v
		}
	}
	return nil
}

func matchInt(patterns []*regexp.Regexp, text string, lo, hi int) *int {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err == nil && v >= lo && v <= hi {
			return &v
		}
	}
	return nil
}

func matchFloor(text string) *string {
	s := matchString(floorPatterns, text)
	switch {
	case s == "":
		return nil
	case s[0] < '0' || s[0] > '9':
		return model.Ptr("Ground floor")
	}
	return model.Ptr("Floor " + s)
}

func matchAvailable(text string) *string {
	if reImmediately.MatchString(text) {
		return model.Ptr("Immediately")
	}
	if s := matchString(availablePatterns, text); s != "" {
		return &s
	}
	return nil
}

func matchPropertyType(text string) *string {
	for _, pt := range propertyTypes {
		if pt.re.MatchString(text) {
			return model.Ptr(pt.name)
		}
	}
	return nil
}
