package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/bibharvest/config"
)

// maxBody caps a fetched document to prevent unbounded memory use.
const maxBody = 10 << 20

// HTTPEngine is a static engine for server-rendered sites. It fetches pages
// over plain HTTP with a Chrome-like TLS fingerprint, queries them with
// goquery and implements Click by following the element's href. Pages that
// need JavaScript to render their landmarks will never satisfy a wait.
type HTTPEngine struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
	page      *httpPage
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine that presents cfg.UserAgent and
// cfg.ExtraHeaders on every request.
func NewHTTPEngine(cfg config.BrowserConfig) *HTTPEngine {
	transport := &http.Transport{
		DialTLSContext:    dialChromeTLS,
		ForceAttemptHTTP2: false,
	}
	if cfg.Proxy != "" {
		if proxyURL, err := url.Parse(cfg.Proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			slog.Warn("http engine: unsupported proxy, connecting directly", "proxy", cfg.Proxy)
		}
	}

	e := &HTTPEngine{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		headers:   cfg.ExtraHeaders,
	}
	e.page = &httpPage{engine: e}
	return e
}

func dialChromeTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("http engine: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Page() Page { return e.page }

func (e *HTTPEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// fetch GETs target and parses the body. It returns the final URL after
// redirects.
func (e *HTTPEngine) fetch(ctx context.Context, target string) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("http engine: build request: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http engine: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, nil, fmt.Errorf("http engine: HTTP %d for %s", resp.StatusCode, target)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, nil, fmt.Errorf("http engine: parse body: %w", err)
	}
	return doc, resp.Request.URL, nil
}

// httpPage holds the last successfully loaded document. A failed navigation
// keeps the previous document, like a browser whose load was aborted.
type httpPage struct {
	engine *HTTPEngine
	url    *url.URL
	doc    *goquery.Document
}

func (p *httpPage) Navigate(ctx context.Context, rawURL string) error {
	target, err := p.resolve(rawURL)
	if err != nil {
		return err
	}
	doc, final, err := p.engine.fetch(ctx, target)
	if err != nil {
		return err
	}
	p.doc = doc
	p.url = final
	return nil
}

// resolve makes rawURL absolute against the current document.
func (p *httpPage) resolve(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("http engine: invalid url %q: %w", rawURL, err)
	}
	if p.url != nil {
		u = p.url.ResolveReference(u)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("http engine: cannot resolve relative url %q without a loaded page", rawURL)
	}
	return u.String(), nil
}

func (p *httpPage) Has(_ context.Context, selector string) (bool, error) {
	if p.doc == nil {
		return false, nil
	}
	return p.doc.Find(selector).Length() > 0, nil
}

func (p *httpPage) Elements(_ context.Context, selector string) ([]Element, error) {
	if p.doc == nil {
		return nil, nil
	}
	return p.wrap(p.doc.Find(selector)), nil
}

func (p *httpPage) HTML(_ context.Context) (string, error) {
	if p.doc == nil {
		return "", nil
	}
	return p.doc.Html()
}

func (p *httpPage) URL() string {
	if p.url == nil {
		return ""
	}
	return p.url.String()
}

func (p *httpPage) wrap(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &httpElement{page: p, sel: s})
	})
	return out
}

type httpElement struct {
	page *httpPage
	sel  *goquery.Selection
}

func (e *httpElement) Text(_ context.Context) (string, error) {
	return strings.TrimSpace(e.sel.Text()), nil
}

func (e *httpElement) Attribute(_ context.Context, name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *httpElement) Elements(_ context.Context, selector string) ([]Element, error) {
	return e.page.wrap(e.sel.Find(selector)), nil
}

// Click follows the element's href, or the href of its closest enclosing
// link, which is what a browser click on the element would do.
func (e *httpElement) Click(ctx context.Context) error {
	link := e.sel
	if !link.Is("a[href]") {
		link = e.sel.Closest("a[href]")
	}
	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return fmt.Errorf("http engine: element is not a link")
	}
	return e.page.Navigate(ctx, href)
}
