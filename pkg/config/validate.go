package config

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// DefaultUserAgent is the desktop Chrome UA used for the browser and image requests
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultDiagramThreshold is the data URI length above which an image renders as a diagram
const DefaultDiagramThreshold = 4500

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	seed, err := c.validateTarget(&warnings)
	if err != nil {
		return warnings, err
	}
	if err := c.validateSite(seed, &warnings); err != nil {
		return warnings, err
	}
	c.validateBrowser()
	c.validateAdGuard()
	c.validateImages(&warnings)
	c.validateRetry(&warnings)
	c.validateOutput(&warnings)
	c.validateHTTPClientSettings()

	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './scraper_state'")
		c.StateDir = "./scraper_state"
	}
	if c.TopicDelay < 0 {
		warnings = append(warnings, "topic_delay cannot be negative, disabling delay")
		c.TopicDelay = 0
	}

	return warnings, nil
}

func (c *AppConfig) validateTarget(warnings *[]string) (*url.URL, error) {
	t := &c.Target
	t.SeedURL = strings.TrimSpace(t.SeedURL)
	if t.SeedURL == "" {
		return nil, fmt.Errorf("%w: target.seed_url cannot be empty", utils.ErrConfigValidation)
	}
	seed, err := url.Parse(t.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: target.seed_url '%s' is not a valid URL: %v", utils.ErrConfigValidation, t.SeedURL, err)
	}
	if (seed.Scheme != "http" && seed.Scheme != "https") || seed.Host == "" {
		return nil, fmt.Errorf("%w: target.seed_url '%s' must be an absolute http(s) URL", utils.ErrConfigValidation, t.SeedURL)
	}

	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		t.Title = titleFromPath(seed.Path)
		*warnings = append(*warnings, fmt.Sprintf("target.title is empty, defaulting to '%s'", t.Title))
	}

	if t.StartChapter < 0 || t.EndChapter < 0 {
		return nil, fmt.Errorf("%w: chapter bounds cannot be negative (start=%d, end=%d)", utils.ErrConfigValidation, t.StartChapter, t.EndChapter)
	}
	if t.EndChapter > 0 && t.StartChapter > t.EndChapter {
		return nil, fmt.Errorf("%w: start_chapter (%d) > end_chapter (%d)", utils.ErrConfigValidation, t.StartChapter, t.EndChapter)
	}
	return seed, nil
}

// titleFromPath derives a subject title from the last path segment of the seed URL.
func titleFromPath(p string) string {
	base := path.Base(strings.TrimRight(p, "/"))
	if base == "" || base == "." || base == "/" {
		return "session_buffer"
	}
	return base
}

func (c *AppConfig) validateSite(seed *url.URL, warnings *[]string) error {
	s := &c.Site
	if s.Root == "" {
		s.Root = seed.Scheme + "://" + seed.Host
	}
	s.Root = strings.TrimRight(s.Root, "/")
	if s.ContentSelector == "" {
		s.ContentSelector = "div.entry-content"
	}
	if s.ChapterHeadingSelector == "" {
		s.ChapterHeadingSelector = "h2"
	}
	if s.LinkContainerSelector == "" {
		s.LinkContainerSelector = "table, ul, ol"
	}
	if s.SubjectPathPattern == "" {
		s.SubjectPathPattern = `questions-answers/?$`
	}
	if s.TopicTitleSelector == "" {
		s.TopicTitleSelector = "h1.entry-title"
	}
	if len(s.SegmentTags) == 0 {
		s.SegmentTags = []string{"p", "div", "center", "table"}
	}
	if s.NoiseMarkers == nil {
		s.NoiseMarkers = []string{"Enroll", "Certification", "advertisement"}
	}
	if s.AnswerClass == "" {
		s.AnswerClass = "collapseomatic_content"
	}
	if s.ToggleClassPattern == "" {
		s.ToggleClassPattern = "collapseomatic"
	}
	if s.ExpandSelector == "" {
		s.ExpandSelector = ".collapseomatic"
	}
	if s.UploadsPattern == "" {
		s.UploadsPattern = "wp-content/uploads"
	}
	if len(s.ImageExtensions) == 0 {
		s.ImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif"}
	}

	patterns := map[string]string{
		"chapter_title":   s.ChapterTitle(),
		"subject_path":    s.SubjectPathPattern,
		"toggle_class":    s.ToggleClassPattern,
		"uploads_pattern": s.UploadsPattern,
	}
	for name, p := range patterns {
		if _, err := utils.CompileOptionalRegex(name, p); err != nil {
			return err
		}
	}
	if s.ChapterTitle() == "" && (c.Target.StartChapter > 0 || c.Target.EndChapter > 0) {
		*warnings = append(*warnings, "chapter range set with an empty chapter_title_pattern; every heading in the content region counts as a chapter")
	}
	return nil
}

func (c *AppConfig) validateBrowser() {
	b := &c.Browser
	if b.UserAgent == "" {
		b.UserAgent = DefaultUserAgent
	}
	if b.WindowWidth <= 0 || b.WindowHeight <= 0 {
		b.WindowWidth, b.WindowHeight = 1366, 900
	}
	if b.NavigateTimeout <= 0 {
		b.NavigateTimeout = 60 * time.Second
	}
	if b.ReconnectAttempts <= 0 {
		b.ReconnectAttempts = 3
	}
	if b.ScrollSettle <= 0 {
		b.ScrollSettle = 1500 * time.Millisecond
	}
	if b.ExpandSettle <= 0 {
		b.ExpandSettle = 2 * time.Second
	}
}

func (c *AppConfig) validateAdGuard() {
	a := &c.AdGuard
	if a.URLFragments == nil {
		a.URLFragments = []string{"#google_vignette"}
	}
	if a.Selectors == nil {
		a.Selectors = []string{
			`ins.adsbygoogle[data-vignette-loaded="true"]`,
			`div[id^="google_vignette"]`,
		}
	}
}

func (c *AppConfig) validateImages(warnings *[]string) {
	im := &c.Images
	if im.Timeout <= 0 {
		im.Timeout = 12 * time.Second
	}
	if im.UserAgent == "" {
		im.UserAgent = c.Browser.UserAgent
	}
	if im.Referer == "" {
		im.Referer = c.Site.Root + "/"
	}
	if im.DiagramThreshold <= 0 {
		im.DiagramThreshold = DefaultDiagramThreshold
	}
	if im.MaxRetries < 0 {
		*warnings = append(*warnings, "images.max_retries cannot be negative, setting to 0")
		im.MaxRetries = 0
	}
	if im.MaxBytes < 0 {
		*warnings = append(*warnings, "images.max_bytes cannot be negative, setting to 0 (unlimited)")
		im.MaxBytes = 0
	}
	if im.Workers <= 0 {
		im.Workers = 4
	}
}

func (c *AppConfig) validateRetry(warnings *[]string) {
	r := &c.Retry
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 5 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = 30 * time.Second
	}
	if r.Multiplier < 1 {
		r.Multiplier = 1
	}
	if r.InitialDelay > r.MaxDelay {
		*warnings = append(*warnings, fmt.Sprintf(
			"retry.initial_delay (%v) > retry.max_delay (%v), using max_delay for initial",
			r.InitialDelay, r.MaxDelay))
		r.InitialDelay = r.MaxDelay
	}
}

func (c *AppConfig) validateOutput(warnings *[]string) {
	o := &c.Output
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.MarginMM <= 0 {
		o.MarginMM = 10
	}
	if o.RenderSettle < 0 {
		*warnings = append(*warnings, "output.render_settle cannot be negative, setting to 0")
		o.RenderSettle = 0
	} else if o.RenderSettle == 0 {
		o.RenderSettle = 6 * time.Second
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = 2 * time.Minute
	}
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 4
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// PDFOutputPath returns where the rendered PDF is written.
func (c AppConfig) PDFOutputPath() string {
	if c.Output.PDFPath != "" {
		return c.Output.PDFPath
	}
	return filepath.Join(c.Output.Dir, utils.TitleFilename(c.Target.Title, ".pdf"))
}

// SidecarPath returns <output dir>/<title><suffix>, used for the Markdown export and run report.
func (c AppConfig) SidecarPath(suffix string) string {
	pdf := c.PDFOutputPath()
	return strings.TrimSuffix(pdf, filepath.Ext(pdf)) + suffix
}
