// Package browser wraps playwright-go behind the small session surface the
// acquisition layer needs: navigate, dismiss consent, wait for content,
// scroll out lazy loading, read markup.
package browser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string

	// WaitSelector is the content the fetcher waits for after navigation.
	WaitSelector string
	// ScrollPause is the settle time between scroll steps; MaxScrolls caps
	// the loop when page height never stabilizes.
	ScrollPause time.Duration
	MaxScrolls  int
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "en-GB",
		WaitSelector:   "table#datatable-1, table.rankings-table, table.data-table, .profile-header",
		ScrollPause:    2 * time.Second,
		MaxScrolls:     30,
	}
}

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-gpu",
			"--window-size=1920,1080",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: &opts.UserAgent,
		Locale:    &opts.Locale,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// NewSession opens a fresh page. The returned session satisfies the
// acquisition layer's Session interface.
func (b *Browser) NewSession() (*PageSession, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return &PageSession{
		page:   page,
		opts:   b.opts,
		logger: b.logger,
	}, nil
}

func (b *Browser) Close() error {
	var errs []error
	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}

// PageSession is one live page inside the shared browser context.
type PageSession struct {
	page   playwright.Page
	opts   *Options
	logger *slog.Logger
}

func (s *PageSession) Navigate(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.opts.Timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

// DismissConsent clicks the first matching cookie-consent button, if any.
// Failures are logged at debug and otherwise ignored.
func (s *PageSession) DismissConsent() {
	selectors := []string{
		"#onetrust-accept-btn-handler",
		".cookie-consent-accept",
		".accept-cookies",
		`[data-cookieconsent="accept"]`,
		`button:has-text("Accept")`,
	}

	for _, selector := range selectors {
		button := s.page.Locator(selector).First()
		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}
		if err := button.Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(3000),
		}); err != nil {
			s.logger.Debug("consent click failed", "selector", selector, "error", err)
			continue
		}
		s.logger.Debug("dismissed consent dialog", "selector", selector)
		time.Sleep(time.Second)
		return
	}
}

func (s *PageSession) WaitForContent(timeout time.Duration) error {
	_, err := s.page.WaitForSelector(s.opts.WaitSelector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

// ScrollToBottom repeats scroll+wait until page height stabilizes or the
// iteration cap is hit, forcing lazy-loaded rows to render.
func (s *PageSession) ScrollToBottom() {
	lastHeight := s.pageHeight()

	for i := 0; i < s.opts.MaxScrolls; i++ {
		if _, err := s.page.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			s.logger.Warn("scroll failed", "error", err)
			return
		}
		time.Sleep(s.opts.ScrollPause)

		height := s.pageHeight()
		if height == lastHeight {
			return
		}
		lastHeight = height
	}
	s.logger.Warn("page height never stabilized", "scrolls", s.opts.MaxScrolls)
}

func (s *PageSession) pageHeight() int {
	v, err := s.page.Evaluate(`document.body.scrollHeight`)
	if err != nil {
		return 0
	}
	switch h := v.(type) {
	case int:
		return h
	case float64:
		return int(h)
	default:
		return 0
	}
}

func (s *PageSession) Content() (string, error) {
	return s.page.Content()
}

func (s *PageSession) Close() error {
	return s.page.Close()
}
