package mail

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockSelectors end a line of text when converting HTML
const blockSelectors = "p, div, tr, li, h1, h2, h3, h4, h5, h6, table, blockquote"

// HTMLToText converts an HTML mail body into plain text.
// Markup that fails to parse is returned with whitespace cleaned.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return cleanWhitespace(html)
	}

	doc.Find("head, script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return cleanWhitespace(doc.Text())
}

// cleanWhitespace collapses runs of spaces and drops blank lines
func cleanWhitespace(text string) string {
	lines := strings.Split(normalizeNewlines(text), "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
