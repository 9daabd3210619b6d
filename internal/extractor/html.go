package extractor

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var digitsRe = regexp.MustCompile(`-?\d+`)

// parseDocument loads an HTML payload into a queryable document
func parseDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// firstText returns the trimmed text of the first selector that matches a
// non-empty node. Selectors are ordered by reliability; later entries are
// fallbacks for older page layouts.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr returns the named attribute of the first selector that matches
func firstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if val, ok := doc.Find(sel).First().Attr(attr); ok && strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

// intFromText extracts the first integer from a text blob, defaulting to 0
func intFromText(s string) int {
	m := digitsRe.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}

// scriptText concatenates the contents of every script block on the page
func scriptText(doc *goquery.Document) string {
	var sb strings.Builder
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
		sb.WriteByte('\n')
	})
	return sb.String()
}
