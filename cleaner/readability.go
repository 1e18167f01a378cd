package cleaner

import (
	nurl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// pageTitle returns the best title readability can find for rawHTML, falling
// back to the document's <title> element. Failures yield "".
func pageTitle(rawHTML, sourceURL string) string {
	if parsedURL, err := nurl.Parse(sourceURL); err == nil {
		article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
		if err == nil {
			if title := strings.TrimSpace(article.Title); title != "" {
				return title
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
