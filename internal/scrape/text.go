package scrape

import (
	"html"
	"maps"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"
)

const maxDescriptionChars = 2000

var (
	strictPolicy = bluemonday.StrictPolicy()

	reSpace      = regexp.MustCompile(`\s+`)
	reAmount     = regexp.MustCompile(`\d[\d.,]*`)
	reFirstInt   = regexp.MustCompile(`\d+`)
	rePostalCode = regexp.MustCompile(`\b(\d{4})\s?([A-Z]{2})\b`)
)

// cleanText strips markup from scraped free text and collapses whitespace.
func cleanText(s string) string {
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

// textPtr returns a cleaned, optionally truncated pointer, or nil when empty.
func textPtr(s string, limit int) *string {
	s = cleanText(s)
	if s == "" {
		return nil
	}
	if limit > 0 {
		if r := []rune(s); len(r) > limit {
			s = string(r[:limit])
		}
	}
	return &s
}

// ParseAmount reads an amount written Dutch or English style ("1.500",
// "1.500,-", "1,500", "1.500,50" or "1,850.00").
func ParseAmount(s string) (float64, bool) {
	m := reAmount.FindString(s)
	if m == "" {
		return 0, false
	}
	m = strings.TrimRight(m, ".,")
	// The last separator is a decimal point only when exactly two digits follow.
	intPart, frac := m, ""
	if i := strings.LastIndexAny(m, ".,"); i >= 0 && len(m)-i == 3 {
		intPart, frac = m[:i], m[i+1:]
	}
	m = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if frac != "" {
		m += "." + frac
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func firstInt(s string) (int, bool) {
	m := reFirstInt.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	return v, err == nil
}

// postalCode finds a Dutch postal code and normalizes it to "1234 AB".
func postalCode(s string) *string {
	m := rePostalCode.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	pc := m[1] + " " + m[2]
	return &pc
}

// skipTextElements never contribute visible text.
var skipTextElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true, "svg": true,
}

// VisibleText returns the text of sel with one space between text nodes,
// so adjacent cells such as "Rooms" and "3" do not run together.
func VisibleText(sel *goquery.Selection, skip ...string) string {
	drop := maps.Clone(skipTextElements)
	for _, tag := range skip {
		drop[tag] = true
	}

	var b strings.Builder
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && drop[n.Data] {
			return
		}
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.TrimSpace(reSpace.ReplaceAllString(b.String(), " "))
}
