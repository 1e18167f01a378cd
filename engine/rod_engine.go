package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/bibharvest/config"
	"github.com/use-agent/bibharvest/models"
	"github.com/ysmood/gson"
)

// RodEngine is the browser session: one Chromium process driving one tab.
type RodEngine struct {
	browser *rod.Browser
	page    *rodPage
}

// LaunchRod starts Chromium with the configured identification string and
// opens the tab the harvest runs in. There is no retry: a launch failure is
// returned as ErrCodeBrowserLaunch and is meant to end the process.
func LaunchRod(cfg config.BrowserConfig) (*RodEngine, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}
	if cfg.UserAgent != "" {
		l.Set(flags.Flag("user-agent"), cfg.UserAgent)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "TranslateUI")
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserLaunch, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserLaunch, "failed to connect to browser", err)
	}

	p := &rodPage{browser: browser, cfg: cfg}
	if err := p.openTab(); err != nil {
		_ = browser.Close()
		return nil, models.NewHarvestError(models.ErrCodeBrowserLaunch, "failed to open page", err)
	}

	return &RodEngine{browser: browser, page: p}, nil
}

// configurePage applies the identification string, extra headers and stealth
// script. All of it must happen before the first navigation.
func configurePage(page *rod.Page, cfg config.BrowserConfig) error {
	if cfg.UserAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}).Call(page); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	if len(cfg.ExtraHeaders) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(cfg.ExtraHeaders)}).Call(page); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}
	if cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	return nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func (e *RodEngine) Name() string { return "rod" }

func (e *RodEngine) Page() Page { return e.page }

// Close stops request interception, closes the tab and kills the browser.
// Call this on every exit path to prevent zombie Chrome processes.
func (e *RodEngine) Close() error {
	slog.Info("browser session shutting down")
	e.page.closeTab()
	return e.browser.Close()
}

// rodPage adapts *rod.Page to Page. Each call binds the caller's context so
// that cancellation and per-call deadlines reach the CDP layer.
//
// The underlying tab is replaced when its health says so; the replacement
// happens only at Navigate, so elements handed out earlier stay valid until
// the walk returns to the entry page.
type rodPage struct {
	browser *rod.Browser
	cfg     config.BrowserConfig

	page   *rod.Page
	router *rod.HijackRouter
	health *tabHealth
}

// openTab creates and configures a fresh tab.
func (p *rodPage) openTab() error {
	page, err := p.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return err
	}
	if err := configurePage(page, p.cfg); err != nil {
		_ = page.Close()
		return fmt.Errorf("configure page: %w", err)
	}
	p.page = page
	p.router = setupHijack(page, p.cfg.BlockedResourceTypes)
	p.health = newTabHealth(nil)
	return nil
}

func (p *rodPage) closeTab() {
	if p.router != nil {
		_ = p.router.Stop()
	}
	if err := p.page.Close(); err != nil {
		slog.Debug("closing page failed", "error", err)
	}
}

// recycle swaps the current tab for a new one. If the new tab cannot be
// opened the old one is kept.
func (p *rodPage) recycle() {
	old, oldRouter, health := p.page, p.router, p.health
	if err := p.openTab(); err != nil {
		slog.Warn("tab recycle failed, keeping current tab", "error", err)
		p.page, p.router, p.health = old, oldRouter, health
		return
	}
	slog.Info("tab recycled",
		"navigations", health.navigations,
		"errScore", health.errScore,
	)
	if oldRouter != nil {
		_ = oldRouter.Stop()
	}
	_ = old.Close()
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	if p.health.shouldRetire() {
		p.recycle()
	}
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		p.health.recordFailure()
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	p.health.recordSuccess()
	return nil
}

func (p *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, err
}

func (p *rodPage) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

type rodElement struct {
	el *rod.Element
}

func wrapElements(els rod.Elements) []Element {
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	return e.el.Context(ctx).Text()
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Elements(ctx context.Context, selector string) ([]Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}
