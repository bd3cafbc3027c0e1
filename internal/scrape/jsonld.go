package scrape

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// jsonLDObjects returns every JSON-LD object on the page, flattening
// top-level arrays and @graph containers. Malformed blocks are skipped.
func jsonLDObjects(sel *goquery.Selection) []map[string]any {
	var out []map[string]any
	sel.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return
		}
		out = append(out, flattenLD(v)...)
	})
	return out
}

func flattenLD(v any) []map[string]any {
	switch t := v.(type) {
	case []any:
		var out []map[string]any
		for _, item := range t {
			out = append(out, flattenLD(item)...)
		}
		return out
	case map[string]any:
		out := []map[string]any{t}
		if g, ok := t["@graph"]; ok {
			out = append(out, flattenLD(g)...)
		}
		return out
	}
	return nil
}

// ldHasType reports whether obj's @type (string or list) is one of types.
func ldHasType(obj map[string]any, types ...string) bool {
	var have []string
	switch t := obj["@type"].(type) {
	case string:
		have = []string{t}
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok {
				have = append(have, s)
			}
		}
	}
	for _, h := range have {
		for _, want := range types {
			if strings.EqualFold(h, want) {
				return true
			}
		}
	}
	return false
}

func ldString(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// ldNumber reads a number given as a JSON number, a numeric string, or a
// QuantitativeValue object with a "value" key.
func ldNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, t > 0
	case string:
		return ParseAmount(t)
	case map[string]any:
		return ldNumber(t["value"])
	}
	return 0, false
}

// ldCoord reads a latitude or longitude, which may be negative and carry
// more than two decimals.
func ldCoord(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// ldAddress joins a PostalAddress into one line and returns its postal code.
func ldAddress(v any) (line string, postal string) {
	switch a := v.(type) {
	case string:
		return strings.TrimSpace(a), ""
	case map[string]any:
		var parts []string
		for _, key := range []string{"streetAddress", "postalCode", "addressLocality"} {
			if s := ldString(a, key); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), ldString(a, "postalCode")
	}
	return "", ""
}
