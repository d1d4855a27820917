// Package browser is the boundary to the automated browser: a scraping
// session driving the live site and a headless page used for PDF export.
package browser

import (
	"context"
	"encoding/json"
)

// Session drives one browser tab on the quiz site
type Session interface {
	// Open navigates to url and waits for the body to be ready
	Open(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// PageSource returns the rendered DOM as HTML
	PageSource(ctx context.Context) (string, error)
	// IsVisible reports whether any element matching the CSS selector is displayed
	IsVisible(ctx context.Context, selector string) (bool, error)
	Execute(ctx context.Context, script string) error
	// Reconnect discards the current browser and starts a fresh one
	Reconnect(ctx context.Context) error
	Close() error
}

// PDFOptions controls page geometry of an exported PDF. Sizes are in inches.
type PDFOptions struct {
	PaperWidth      float64
	PaperHeight     float64
	MarginTop       float64
	MarginBottom    float64
	MarginLeft      float64
	MarginRight     float64
	PrintBackground bool
}

// A4 returns A4 portrait options with equal margins given in millimetres
func A4(marginMM float64) PDFOptions {
	m := marginMM / 25.4
	return PDFOptions{
		PaperWidth:      8.27,
		PaperHeight:     11.69,
		MarginTop:       m,
		MarginBottom:    m,
		MarginLeft:      m,
		MarginRight:     m,
		PrintBackground: true,
	}
}

// PDFPage loads a local document and prints it
type PDFPage interface {
	Load(ctx context.Context, fileURL string) error
	Execute(ctx context.Context, script string) error
	ExportPDF(ctx context.Context, path string, opts PDFOptions) error
	Close() error
}

// ScrollToBottomScript scrolls the window to the end of the document to trigger lazy loading
const ScrollToBottomScript = `window.scrollTo(0, document.body.scrollHeight);`

// ClickAllScript returns a script clicking every element matching selector
func ClickAllScript(selector string) string {
	return `document.querySelectorAll(` + jsString(selector) + `).forEach(function (el) { try { el.click(); } catch (e) {} });`
}

// VisibleScript returns a script evaluating to true when any element matching
// selector has a non-empty box and is not hidden by CSS
func VisibleScript(selector string) string {
	return `(function () {
	var els = document.querySelectorAll(` + jsString(selector) + `);
	for (var i = 0; i < els.length; i++) {
		var st = window.getComputedStyle(els[i]);
		var r = els[i].getBoundingClientRect();
		if (st.display !== 'none' && st.visibility !== 'hidden' && r.width > 0 && r.height > 0) {
			return true;
		}
	}
	return false;
})()`
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
