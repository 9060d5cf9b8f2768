package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"

	"github.com/badgecollector/badgecollector/pkg/engine"
)

const siteURL = "https://www.kaggle.com"

// Browser opens pages. Implementations must be safe to Close more than once.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is the subset of page operations the browser handlers use. Click and
// Fill act on the first element matching a CSS selector and report whether
// one was found; they do not wait for it to appear.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) (bool, error)
	ClickText(ctx context.Context, selector, text string) (bool, error)
	Fill(ctx context.Context, selector, text string) (bool, error)
	Close() error
}

// BrowserHandlers returns the phase 4 handlers that drive a browser.
func BrowserHandlers(env Env) []engine.Handler {
	browser := []string{engine.CapabilityBrowser}
	return []engine.Handler{
		{
			Name:         "Fill profile",
			Phase:        4,
			Targets:      []string{"stylish"},
			Requires:     browser,
			Instructions: "Go to https://www.kaggle.com/settings and fill out your bio, location, occupation, and organization fields.",
			Run:          env.fillProfile,
		},
		{
			Name:         "Dark theme",
			Phase:        4,
			Targets:      []string{"vampire"},
			Requires:     browser,
			Instructions: "Go to https://www.kaggle.com/settings and switch to dark theme.",
			Run:          env.clickOn(siteURL, `[data-testid="theme-toggle"], .theme-toggle`, "dark theme via browser", "theme toggle not found"),
		},
		{
			Name:         "Bookmark",
			Phase:        4,
			Targets:      []string{"bookmarker"},
			Requires:     browser,
			Instructions: "Go to any Kaggle notebook/dataset/competition and click the bookmark icon.",
			Run: env.clickOn(siteURL+"/code/alexisbcook/titanic-tutorial",
				`[aria-label="Bookmark"], .bookmark-button`, "bookmarked via browser", "bookmark button not found"),
		},
	}
}

// withPage opens a page, runs fn and closes the page.
func (e Env) withPage(ctx context.Context, fn func(Page) (engine.Outcome, error)) (engine.Outcome, error) {
	if e.Browser == nil {
		return engine.Outcome{}, engine.NewUnavailableError("browser automation is disabled", nil)
	}
	page, err := e.Browser.NewPage(ctx)
	if err != nil {
		return engine.Outcome{}, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()
	return fn(page)
}

func (e Env) fillProfile(ctx context.Context, req engine.Request) (engine.Outcome, error) {
	return e.withPage(ctx, func(p Page) (engine.Outcome, error) {
		if err := p.Navigate(ctx, siteURL+"/"+req.Account+"/account"); err != nil {
			return engine.Outcome{}, err
		}

		bio, err := p.Fill(ctx, `textarea[name="bio"]`, e.Profile.Bio)
		if err != nil {
			return engine.Outcome{}, err
		}
		loc, err := p.Fill(ctx, `input[name="location"]`, e.Profile.Location)
		if err != nil {
			return engine.Outcome{}, err
		}
		if !bio && !loc {
			return skip(ctx, req, "profile fields not found")
		}

		if _, err := p.ClickText(ctx, "button", "Save"); err != nil {
			return engine.Outcome{}, err
		}
		return earn(ctx, req, "profile filled via browser")
	})
}

// clickOn navigates to url and clicks selector. A missing element skips the
// targets with notFound.
func (e Env) clickOn(url, selector, earned, notFound string) engine.HandlerFunc {
	return func(ctx context.Context, req engine.Request) (engine.Outcome, error) {
		return e.withPage(ctx, func(p Page) (engine.Outcome, error) {
			if err := p.Navigate(ctx, url); err != nil {
				return engine.Outcome{}, err
			}
			found, err := p.Click(ctx, selector)
			if err != nil {
				return engine.Outcome{}, err
			}
			if !found {
				req.Logger.Warn().Str("selector", selector).Msg("Element not found")
				return skip(ctx, req, notFound)
			}
			return earn(ctx, req, earned)
		})
	}
}

// BrowserOptions configures the rod browser.
type BrowserOptions struct {
	// Bin is the Chrome binary. Empty means look it up.
	Bin string

	Headless bool

	// UserDataDir reuses a Chrome profile, for example one already signed in.
	UserDataDir string

	// NavigationTimeout bounds each navigation.
	NavigationTimeout time.Duration
}

// RodBrowser is a Browser backed by go-rod. Chrome is launched lazily on
// the first NewPage so that runs without browser handlers never start it.
type RodBrowser struct {
	opts   BrowserOptions
	logger zerolog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	closed  bool
}

var _ Browser = (*RodBrowser)(nil)

// NewRodBrowser creates a lazily started browser.
func NewRodBrowser(opts BrowserOptions, logger zerolog.Logger) *RodBrowser {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	return &RodBrowser{
		opts:   opts,
		logger: logger.With().Str("component", "browser").Logger(),
	}
}

// LookBrowser reports whether a Chrome binary can be found.
func LookBrowser(bin string) (string, bool) {
	if bin != "" {
		if path, err := lookPath(bin); err == nil {
			return path, true
		}
		return "", false
	}
	return launcher.LookPath()
}

func (b *RodBrowser) start(ctx context.Context) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New("browser closed")
	}
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().Headless(b.opts.Headless)
	if b.opts.Bin != "" {
		l = l.Bin(b.opts.Bin)
	}
	if b.opts.UserDataDir != "" {
		l = l.UserDataDir(b.opts.UserDataDir)
	}

	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	b.logger.Debug().Bool("headless", b.opts.Headless).Msg("Browser started")
	b.browser = browser
	return browser, nil
}

// NewPage opens a blank page, starting Chrome if needed.
func (b *RodBrowser) NewPage(ctx context.Context) (Page, error) {
	browser, err := b.start(ctx)
	if err != nil {
		return nil, err
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &rodPage{page: page, timeout: b.opts.NavigationTimeout}, nil
}

// Close stops Chrome if it was started.
func (b *RodBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	return err
}

type rodPage struct {
	page    *rod.Page
	timeout time.Duration
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx).Timeout(p.timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, selector string) (bool, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil || !has {
		return false, err
	}
	return true, el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) ClickText(ctx context.Context, selector, text string) (bool, error) {
	has, el, err := p.page.Context(ctx).HasR(selector, text)
	if err != nil || !has {
		return false, err
	}
	return true, el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Fill(ctx context.Context, selector, text string) (bool, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil || !has {
		return false, err
	}
	if err := el.SelectAllText(); err != nil {
		return true, err
	}
	return true, el.Input(text)
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
