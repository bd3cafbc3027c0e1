package scrape

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"€ 1.850 per maand", 1850, true},
		{"€1,500 per month", 1500, true},
		{"€ 1.500,-", 1500, true},
		{"1.500,50", 1500.5, true},
		{"€ 1,850.00", 1850, true},
		{"950", 950, true},
		{"op aanvraag", 0, false},
		{"0", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseAmount(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.want, got, 0.001)
		})
	}
}

func TestPostalCode(t *testing.T) {
	assert.Equal(t, "1017 AB", *postalCode("Keizersgracht 1, 1017AB Amsterdam"))
	assert.Equal(t, "1181 VX", *postalCode("1181 VX Amstelveen"))
	assert.Nil(t, postalCode("Amsterdam Centrum"))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Bright flat & balcony", cleanText("  <p>Bright <b>flat</b> &amp; balcony</p>\n "))
	assert.Equal(t, "", cleanText("<script>alert(1)</script>"))
}

func TestTextPtr(t *testing.T) {
	assert.Nil(t, textPtr("   ", 0))
	got := textPtr(strings.Repeat("é", 10), 4)
	require.NotNil(t, got)
	assert.Equal(t, "éééé", *got)
}

func TestVisibleText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><head><style>.x{}</style></head><body><dl><dt>Kamers</dt><dd>3</dd></dl>` +
			`<nav>Menu</nav><script>var a=1;</script></body></html>`))
	require.NoError(t, err)

	assert.Equal(t, "Kamers 3 Menu", VisibleText(doc.Selection))
	assert.Equal(t, "Kamers 3", VisibleText(doc.Selection, "nav"))
}

func TestFurnishing(t *testing.T) {
	assert.Equal(t, "Unfurnished", *Furnishing("Interieur: ongemeubileerd"))
	assert.Equal(t, "Upholstered", *Furnishing("Gestoffeerd opgeleverd"))
	assert.Equal(t, "Furnished", *Furnishing("Fully furnished"))
	assert.Equal(t, "Unfurnished", *Furnishing("Oplevering: kaal"))
	assert.Nil(t, Furnishing("Lokaal vervoer dichtbij"))
}
