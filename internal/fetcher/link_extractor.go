package fetcher

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// GoqueryLinkExtractor is the default LinkExtractor, grounded on the
// teacher's internal/services/crawler/link_extractor.go: parse with
// goquery, resolve hrefs against the base URL, skip non-content schemes,
// dedupe.
type GoqueryLinkExtractor struct{}

// NewGoqueryLinkExtractor constructs a GoqueryLinkExtractor.
func NewGoqueryLinkExtractor() *GoqueryLinkExtractor { return &GoqueryLinkExtractor{} }

// ExtractLinks parses html and returns absolute, deduplicated outbound
// links resolved against baseURL. domain is accepted to satisfy the
// ExtractLinks(html, baseURL, domain) interface; filtering by domain is
// the Frontier's job, not the extractor's.
func (g *GoqueryLinkExtractor) ExtractLinks(html, baseURL, domain string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, _ := url.Parse(baseURL)

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || shouldSkipHref(href) {
			return
		}
		resolved := resolveHref(href, base)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})
	return links, nil
}

func shouldSkipHref(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	if h == "" || strings.HasPrefix(h, "#") {
		return true
	}
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "sms:", "ftp:", "data:"} {
		if strings.HasPrefix(h, prefix) {
			return true
		}
	}
	return false
}

func resolveHref(href string, base *url.URL) string {
	if base == nil {
		if u, err := url.Parse(href); err == nil && u.IsAbs() {
			return u.String()
		}
		return ""
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return resolved.String()
}
