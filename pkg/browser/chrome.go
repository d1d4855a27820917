package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/log"
)

// stealthScript masks the most common automation fingerprints
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = window.chrome || { runtime: {} };
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
`

// chrome owns one exec allocator and the browser context built on it.
// The tab context can be replaced (reconnect) while the allocator lives on.
type chrome struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu        sync.Mutex
	tabCtx    context.Context
	tabCancel context.CancelFunc

	log *logrus.Entry
}

func newChrome(ctx context.Context, opts []chromedp.ExecAllocatorOption, logger *logrus.Entry) (*chrome, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	c := &chrome{allocCtx: allocCtx, allocCancel: allocCancel, log: logger}
	if err := c.start(ctx); err != nil {
		allocCancel()
		return nil, err
	}
	return c, nil
}

// start launches a browser on a new context and installs the stealth script.
// The first Run on a context allocates the browser, so it must not carry a
// timeout or the browser dies with it.
func (c *chrome) start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx,
		chromedp.WithErrorf(log.ChromeLogf(c.log, logrus.DebugLevel)),
		chromedp.WithLogf(log.ChromeLogf(c.log, logrus.TraceLevel)),
	)

	c.mu.Lock()
	c.tabCtx, c.tabCancel = tabCtx, tabCancel
	c.mu.Unlock()

	return chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	}))
}

// run executes actions on the current tab bounded by timeout and by ctx.
// Cancelling ctx aborts the actions without closing the tab.
func (c *chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	tab := c.tabCtx
	c.mu.Unlock()

	runCtx, cancel := context.WithTimeout(tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// restart closes the current browser and starts another on the same allocator
func (c *chrome) restart(ctx context.Context) error {
	c.mu.Lock()
	if c.tabCancel != nil {
		c.tabCancel()
	}
	c.mu.Unlock()
	return c.start(ctx)
}

func (c *chrome) close() {
	c.mu.Lock()
	if c.tabCancel != nil {
		c.tabCancel()
		c.tabCancel = nil
	}
	c.mu.Unlock()
	c.allocCancel()
}
