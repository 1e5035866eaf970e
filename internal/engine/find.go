package engine

import (
	"strings"

	"github.com/antchfx/htmlquery"
)

const textNodes = "//body//text()[not(ancestor::script) and not(ancestor::style)]"

// countMatches counts case-insensitive occurrences of query in the visible
// text of html.
func countMatches(html, query string) int {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return 0
	}
	doc, err := htmlquery.Parse(strings.NewReader(html))
	if err != nil {
		return 0
	}
	nodes, err := htmlquery.QueryAll(doc, textNodes)
	if err != nil {
		return 0
	}

	// Join so matches spanning inline elements still count.
	var text strings.Builder
	for _, n := range nodes {
		text.WriteString(htmlquery.InnerText(n))
	}
	return strings.Count(strings.ToLower(text.String()), query)
}
