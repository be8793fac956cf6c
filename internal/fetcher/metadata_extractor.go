package fetcher

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// GoqueryMetadataExtractor is the default MetadataExtractor, grounded on
// the same goquery parse pass as GoqueryLinkExtractor.
type GoqueryMetadataExtractor struct{}

// NewGoqueryMetadataExtractor constructs a GoqueryMetadataExtractor.
func NewGoqueryMetadataExtractor() *GoqueryMetadataExtractor { return &GoqueryMetadataExtractor{} }

// ExtractMetadata pulls the title and description out of html (falling
// back to og:description). ContentType is always reported as "text/html";
// it is not read from the document.
func (g *GoqueryMetadataExtractor) ExtractMetadata(html string) (PageMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageMetadata{}, fmt.Errorf("parse html: %w", err)
	}

	meta := PageMetadata{ContentType: "text/html"}
	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(`meta[name="description"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if content, ok := sel.Attr("content"); ok {
			meta.Description = strings.TrimSpace(content)
			return false
		}
		return true
	})
	if meta.Description == "" {
		doc.Find(`meta[property="og:description"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if content, ok := sel.Attr("content"); ok {
				meta.Description = strings.TrimSpace(content)
				return false
			}
			return true
		})
	}

	return meta, nil
}
