// Package browsertest provides in-memory browser fakes for tests.
package browsertest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/Sriram-PR/quiz-scraper/pkg/browser"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// Session is a scripted browser.Session serving fixed HTML per URL
type Session struct {
	mu sync.Mutex

	Pages   map[string]string  // url -> page source
	OpenErr map[string][]error // url -> errors returned by successive Open calls
	// Visible reports selector visibility; nil means nothing is visible
	Visible func(currentURL, selector string) bool
	// OnOpen runs after every successful Open
	OnOpen func(url string)

	url        string
	opened     []string
	scripts    []string
	reconnects int
	closed     bool
}

var _ browser.Session = (*Session)(nil)

// NewSession returns a Session serving pages
func NewSession(pages map[string]string) *Session {
	return &Session{Pages: pages, OpenErr: map[string][]error{}}
}

// Open implements browser.Session
func (s *Session) Open(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if errs := s.OpenErr[target]; len(errs) > 0 {
		s.OpenErr[target] = errs[1:]
		if errs[0] != nil {
			s.mu.Unlock()
			return errs[0]
		}
	}
	if _, ok := s.Pages[target]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: no fake page for %s", utils.ErrBrowser, target)
	}
	s.url = target
	s.opened = append(s.opened, target)
	onOpen := s.OnOpen
	s.mu.Unlock()

	if onOpen != nil {
		onOpen(target)
	}
	return nil
}

// SetURL changes the current URL without loading, e.g. to simulate a redirect
func (s *Session) SetURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = u
}

// CurrentURL implements browser.Session
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, ctx.Err()
}

// PageSource implements browser.Session
func (s *Session) PageSource(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.url
	if i := strings.Index(key, "#"); i >= 0 {
		if _, ok := s.Pages[key]; !ok {
			key = key[:i]
		}
	}
	return s.Pages[key], nil
}

// IsVisible implements browser.Session
func (s *Session) IsVisible(ctx context.Context, selector string) (bool, error) {
	s.mu.Lock()
	visible, cur := s.Visible, s.url
	s.mu.Unlock()
	if visible == nil {
		return false, ctx.Err()
	}
	return visible(cur, selector), ctx.Err()
}

// Execute implements browser.Session
func (s *Session) Execute(ctx context.Context, script string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, script)
	return nil
}

// Reconnect implements browser.Session. Like a fresh browser, the new session starts on about:blank.
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	s.url = "about:blank"
	return ctx.Err()
}

// Close implements browser.Session
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Opened returns every URL successfully opened, in order
func (s *Session) Opened() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opened...)
}

// Scripts returns every executed script, in order
func (s *Session) Scripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.scripts...)
}

// Reconnects returns how many times Reconnect was called
func (s *Session) Reconnects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

// Closed reports whether Close was called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// PDFPage is a browser.PDFPage that writes fixed bytes instead of printing
type PDFPage struct {
	mu sync.Mutex

	Output    []byte // Written by ExportPDF; a stub header when nil
	ExportErr error
	LoadErr   error

	loadedURL  string
	loadedHTML string
	scripts    []string
	options    browser.PDFOptions
	exports    int
	closed     bool
}

var _ browser.PDFPage = (*PDFPage)(nil)

// Load implements browser.PDFPage; file URLs are read so tests can inspect the document
func (p *PDFPage) Load(ctx context.Context, fileURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.LoadErr != nil {
		return p.LoadErr
	}
	u, err := url.Parse(fileURL)
	if err != nil {
		return err
	}
	var html []byte
	if u.Scheme == "file" {
		if html, err = os.ReadFile(u.Path); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadedURL = fileURL
	p.loadedHTML = string(html)
	return nil
}

// Execute implements browser.PDFPage
func (p *PDFPage) Execute(ctx context.Context, script string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, script)
	return ctx.Err()
}

// ExportPDF implements browser.PDFPage
func (p *PDFPage) ExportPDF(ctx context.Context, path string, opts browser.PDFOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ExportErr != nil {
		return p.ExportErr
	}
	out := p.Output
	if out == nil {
		out = []byte("%PDF-1.4\n% fake\n%%EOF\n")
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.options = opts
	p.exports++
	return nil
}

// Close implements browser.PDFPage
func (p *PDFPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// LoadedHTML returns the document passed to the last Load
func (p *PDFPage) LoadedHTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadedHTML
}

// LoadedURL returns the URL passed to the last Load
func (p *PDFPage) LoadedURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadedURL
}

// Options returns the options of the last export
func (p *PDFPage) Options() browser.PDFOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.options
}

// Exports returns how many PDFs were written
func (p *PDFPage) Exports() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exports
}

// Scripts returns every executed script
func (p *PDFPage) Scripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.scripts...)
}
