package cleaner

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

const homePage = `<html><head><title>dblp: computer science bibliography</title><script>var x = 1;</script></head>
<body><header><nav><a href="/search">search</a></nav></header>
<ul id="browsable"><li><a href="/db/conf">conferences</a></li></ul></body></html>`

func TestTake_HTML(t *testing.T) {
	s := Take(homePage, "https://dblp.org/", FormatHTML)

	if s.Format != FormatHTML {
		t.Errorf("Format = %q, want html", s.Format)
	}
	if s.Content != homePage {
		t.Error("html dump should carry the page source unchanged")
	}
	if !strings.Contains(s.Title, "computer science bibliography") {
		t.Errorf("Title = %q", s.Title)
	}
	if s.Fingerprint == 0 {
		t.Error("fingerprint should be non-zero for a real page")
	}
	if len(s.FingerprintHex()) != 16 {
		t.Errorf("FingerprintHex = %q, want 16 hex digits", s.FingerprintHex())
	}
}

func TestTake_Markdown(t *testing.T) {
	s := Take(homePage, "https://dblp.org/", FormatMarkdown)

	if s.Format != FormatMarkdown {
		t.Fatalf("Format = %q, want markdown", s.Format)
	}
	if strings.Contains(s.Content, "<ul") || strings.Contains(s.Content, "var x") {
		t.Errorf("markdown dump still contains markup or scripts:\n%s", s.Content)
	}
	if !strings.Contains(s.Content, "https://dblp.org/db/conf") {
		t.Errorf("relative links should be resolved against the page URL:\n%s", s.Content)
	}
}

func TestTake_UnknownFormatFallsBackToHTML(t *testing.T) {
	s := Take(homePage, "https://dblp.org/", "pdf")
	if s.Format != FormatHTML || s.Content != homePage {
		t.Errorf("unknown format should dump raw HTML, got format %q", s.Format)
	}
}

func TestTake_EmptyPage(t *testing.T) {
	s := Take("", "https://dblp.org/", FormatHTML)
	if s.Title != "" || s.Fingerprint != 0 {
		t.Errorf("empty page: title %q fingerprint %d", s.Title, s.Fingerprint)
	}
}

func TestSnapshot_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("page", "page", Take(homePage, "https://dblp.org/", FormatHTML))

	out := buf.String()
	for _, want := range []string{"page.url=https://dblp.org/", "page.fingerprint=", "page.content="} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
