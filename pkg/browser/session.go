package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/fetch"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

const scriptTimeout = 30 * time.Second

// ChromeSession implements Session with chromedp
type ChromeSession struct {
	*chrome
	cfg    config.BrowserConfig
	policy fetch.RetryPolicy
}

// sessionFlags are the Chrome command-line switches of the scraping browser
func sessionFlags(cfg config.BrowserConfig) map[string]any {
	return map[string]any{
		"headless":               cfg.Headless,
		"disable-blink-features": "AutomationControlled",
		"disable-infobars":       true,
		"disable-dev-shm-usage":  true,
	}
}

// NewChromeSession launches the scraping browser. Navigation failures are
// retried under policy with a reconnect between attempts, up to
// cfg.ReconnectAttempts additional tries.
func NewChromeSession(ctx context.Context, cfg config.BrowserConfig, policy fetch.RetryPolicy, logger *logrus.Entry) (*ChromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	for name, value := range sessionFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	logger.WithFields(logrus.Fields{"headless": cfg.Headless, "window": fmt.Sprintf("%dx%d", cfg.WindowWidth, cfg.WindowHeight)}).Info("Starting browser session")
	c, err := newChrome(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: starting browser: %w", utils.ErrBrowser, err)
	}
	return &ChromeSession{
		chrome: c,
		cfg:    cfg,
		policy: policy.WithAttempts(1 + cfg.ReconnectAttempts),
	}, nil
}

// Open implements Session
func (s *ChromeSession) Open(ctx context.Context, url string) error {
	openLog := s.log.WithField("url", url)
	err := s.policy.Do(ctx, openLog, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			if err := s.Reconnect(ctx); err != nil {
				return err
			}
		}
		return s.run(ctx, s.cfg.NavigateTimeout,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: open %s: %w", utils.ErrBrowser, url, err)
	}
	return nil
}

// CurrentURL implements Session
func (s *ChromeSession) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, scriptTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("%w: reading location: %w", utils.ErrBrowser, err)
	}
	return loc, nil
}

// PageSource implements Session
func (s *ChromeSession) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, scriptTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: reading page source: %w", utils.ErrBrowser, err)
	}
	return html, nil
}

// IsVisible implements Session
func (s *ChromeSession) IsVisible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	if err := s.run(ctx, scriptTimeout, chromedp.Evaluate(VisibleScript(selector), &visible)); err != nil {
		return false, fmt.Errorf("%w: visibility of %q: %w", utils.ErrBrowser, selector, err)
	}
	return visible, nil
}

// Execute implements Session
func (s *ChromeSession) Execute(ctx context.Context, script string) error {
	if err := s.run(ctx, scriptTimeout, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("%w: script: %w", utils.ErrBrowser, err)
	}
	return nil
}

// Reconnect implements Session
func (s *ChromeSession) Reconnect(ctx context.Context) error {
	s.log.Warn("Reconnecting browser session")
	if err := s.restart(ctx); err != nil {
		return fmt.Errorf("%w: reconnect: %w", utils.ErrBrowser, err)
	}
	return nil
}

// Close implements Session
func (s *ChromeSession) Close() error {
	s.close()
	s.log.Info("Browser session closed")
	return nil
}
