// Package cleaner turns the page a run failed on into something worth putting
// in a log line: its title, its content and a structural fingerprint.
package cleaner

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/use-agent/bibharvest/simhash"
)

// Dump formats accepted by Take.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

var (
	convOnce sync.Once
	conv     *converter.Converter
)

func markdownConverter() *converter.Converter {
	convOnce.Do(func() { conv = newMarkdownConverter() })
	return conv
}

// Snapshot is a summary of one page state.
type Snapshot struct {
	URL         string
	Title       string
	Format      string
	Content     string
	Fingerprint uint64
}

// Take summarises rawHTML. With FormatMarkdown the content is converted to
// Markdown; conversion failures and unknown formats fall back to the raw HTML.
func Take(rawHTML, sourceURL, format string) Snapshot {
	s := Snapshot{
		URL:         sourceURL,
		Title:       pageTitle(rawHTML, sourceURL),
		Format:      FormatHTML,
		Content:     rawHTML,
		Fingerprint: simhash.OfDOM(rawHTML),
	}

	if format == FormatMarkdown {
		md, err := toMarkdown(markdownConverter(), rawHTML, sourceURL)
		if err != nil {
			slog.Warn("markdown conversion failed, dumping raw HTML", "url", sourceURL, "error", err)
		} else {
			s.Format = FormatMarkdown
			s.Content = md
		}
	}
	return s
}

// FingerprintHex renders the structural fingerprint for logs.
func (s Snapshot) FingerprintHex() string {
	return fmt.Sprintf("%016x", s.Fingerprint)
}

// LogValue groups the snapshot under one slog attribute.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", s.URL),
		slog.String("title", s.Title),
		slog.String("fingerprint", s.FingerprintHex()),
		slog.String("format", s.Format),
		slog.String("content", s.Content),
	)
}
