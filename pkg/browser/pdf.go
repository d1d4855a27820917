package browser

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// ChromePDF implements PDFPage with a dedicated headless chromedp browser
type ChromePDF struct {
	*chrome
	timeout time.Duration
}

// NewChromePDF launches a headless browser for printing. timeout bounds each
// Load and ExportPDF call.
func NewChromePDF(ctx context.Context, execPath string, timeout time.Duration, logger *logrus.Entry) (*ChromePDF, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("allow-file-access-from-files", true),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	c, err := newChrome(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: starting print browser: %w", utils.ErrBrowser, err)
	}
	return &ChromePDF{chrome: c, timeout: timeout}, nil
}

// Load implements PDFPage
func (p *ChromePDF) Load(ctx context.Context, fileURL string) error {
	err := p.run(ctx, p.timeout,
		chromedp.Navigate(fileURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: loading %s: %w", utils.ErrBrowser, fileURL, err)
	}
	return nil
}

// Execute implements PDFPage
func (p *ChromePDF) Execute(ctx context.Context, script string) error {
	if err := p.run(ctx, scriptTimeout, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("%w: script: %w", utils.ErrBrowser, err)
	}
	return nil
}

// ExportPDF implements PDFPage
func (p *ChromePDF) ExportPDF(ctx context.Context, path string, opts PDFOptions) error {
	var buf []byte
	err := p.run(ctx, p.timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(opts.PrintBackground).
			WithPaperWidth(opts.PaperWidth).
			WithPaperHeight(opts.PaperHeight).
			WithMarginTop(opts.MarginTop).
			WithMarginBottom(opts.MarginBottom).
			WithMarginLeft(opts.MarginLeft).
			WithMarginRight(opts.MarginRight).
			Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		return fmt.Errorf("%w: print to pdf: %w", utils.ErrBrowser, err)
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", utils.ErrFilesystem, path, err)
	}
	p.log.Debugf("Printed %d bytes to %s", len(buf), path)
	return nil
}

// Close implements PDFPage
func (p *ChromePDF) Close() error {
	p.close()
	return nil
}
