package extract

import (
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/sells-group/rent-cli/internal/scrape"
)

// minArticleChars is the shortest readability result worth keeping. Listing
// pages are mostly feature tables, which readability tends to discard.
const minArticleChars = 500

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// PrepareText turns a listing page into compact text for a language model:
// the readability article as markdown, else the whole page as markdown,
// else its visible text. The result is cut to maxChars runes.
func PrepareText(rawHTML, pageURL string, maxChars int) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}

	var text string
	if article, err := readability.FromReader(strings.NewReader(rawHTML), u); err == nil {
		text = toMarkdown(article.Content, pageURL)
	}
	if len(text) < minArticleChars {
		if md := toMarkdown(rawHTML, pageURL); len(md) > len(text) {
			text = md
		}
	}
	if text == "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML)); err == nil {
			text = scrape.VisibleText(doc.Selection, "nav", "footer", "header")
		}
	}
	return truncate(text, maxChars)
}

func toMarkdown(html, pageURL string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	opts := []converter.ConvertOptionFunc{}
	if pageURL != "" {
		opts = append(opts, converter.WithDomain(pageURL))
	}
	md, err := mdConverter.ConvertString(html, opts...)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(md)
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars])
}
