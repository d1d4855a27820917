package config

import "time"

// TargetConfig selects what a run harvests
type TargetConfig struct {
	SeedURL      string `yaml:"seed_url"`
	Title        string `yaml:"title"`                   // Subject title; names the PDF and progress file
	StartChapter int    `yaml:"start_chapter,omitempty"` // 1-based, inclusive (0 = from the first chapter)
	EndChapter   int    `yaml:"end_chapter,omitempty"`   // 1-based, inclusive (0 = through the last chapter)
}

// SiteConfig describes the markup conventions of the quiz site
type SiteConfig struct {
	Root                   string   `yaml:"root,omitempty"` // scheme://host, derived from the seed URL when empty
	ContentSelector        string   `yaml:"content_selector,omitempty"`
	ChapterHeadingSelector string   `yaml:"chapter_heading_selector,omitempty"`
	ChapterTitlePattern    *string  `yaml:"chapter_title_pattern,omitempty"` // Regex a chapter heading must match; "" counts every heading
	LinkContainerSelector  string   `yaml:"link_container_selector,omitempty"`
	SubjectPathPattern     string   `yaml:"subject_path_pattern,omitempty"`
	TopicTitleSelector     string   `yaml:"topic_title_selector,omitempty"`
	SegmentTags            []string `yaml:"segment_tags,omitempty"`
	NoiseMarkers           []string `yaml:"noise_markers,omitempty"`
	AnswerClass            string   `yaml:"answer_class,omitempty"`
	ToggleClassPattern     string   `yaml:"toggle_class_pattern,omitempty"`
	ExpandSelector         string   `yaml:"expand_selector,omitempty"`
	UploadsPattern         string   `yaml:"uploads_pattern,omitempty"`
	ImageExtensions        []string `yaml:"image_extensions,omitempty"`
}

// DefaultChapterTitlePattern matches numbered chapter headings such as "3. Torsion"
const DefaultChapterTitlePattern = `^\d+\.`

// ChapterTitle returns the chapter heading pattern, defaulting to numbered headings
func (c SiteConfig) ChapterTitle() string {
	if c.ChapterTitlePattern == nil {
		return DefaultChapterTitlePattern
	}
	return *c.ChapterTitlePattern
}

// BrowserConfig holds settings for the scraping browser session
type BrowserConfig struct {
	Headless          bool          `yaml:"headless"`
	ExecPath          string        `yaml:"exec_path,omitempty"` // Chrome binary; autodetected when empty
	UserAgent         string        `yaml:"user_agent,omitempty"`
	WindowWidth       int           `yaml:"window_width,omitempty"`
	WindowHeight      int           `yaml:"window_height,omitempty"`
	NavigateTimeout   time.Duration `yaml:"navigate_timeout,omitempty"`
	ReconnectAttempts int           `yaml:"reconnect_attempts,omitempty"`
	ScrollSettle      time.Duration `yaml:"scroll_settle,omitempty"`
	ExpandSettle      time.Duration `yaml:"expand_settle,omitempty"`
}

// AdGuardConfig configures ad-interstitial detection
type AdGuardConfig struct {
	Disabled     bool     `yaml:"disabled,omitempty"`
	URLFragments []string `yaml:"url_fragments,omitempty"`
	Selectors    []string `yaml:"selectors,omitempty"`
}

// ImageConfig configures image inlining
type ImageConfig struct {
	Timeout          time.Duration `yaml:"timeout,omitempty"`
	UserAgent        string        `yaml:"user_agent,omitempty"`
	Referer          string        `yaml:"referer,omitempty"`
	DiagramThreshold int           `yaml:"diagram_threshold,omitempty"` // Data URI length above which an image is a diagram
	MaxRetries       int           `yaml:"max_retries,omitempty"`
	MaxBytes         int64         `yaml:"max_bytes,omitempty"` // 0 = unlimited
	Workers          int           `yaml:"workers,omitempty"`
	Cache            *bool         `yaml:"cache,omitempty"` // Cross-run badger cache (nil = enabled)
}

// RetryConfig is the shared retry policy for topics and network calls
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `yaml:"max_delay,omitempty"`
	Multiplier   float64       `yaml:"multiplier,omitempty"` // 1 = fixed backoff
	Jitter       bool          `yaml:"jitter,omitempty"`
}

// OutputConfig controls the produced artifacts
type OutputConfig struct {
	Dir           string        `yaml:"dir,omitempty"`
	PDFPath       string        `yaml:"pdf_path,omitempty"` // Overrides <dir>/<title>.pdf
	MarginMM      float64       `yaml:"margin_mm,omitempty"`
	RenderSettle  time.Duration `yaml:"render_settle,omitempty"`
	RenderTimeout time.Duration `yaml:"render_timeout,omitempty"`
	KeepHTML      bool          `yaml:"keep_html,omitempty"`
	Markdown      bool          `yaml:"markdown,omitempty"`
	Report        *bool         `yaml:"report,omitempty"`     // nil = enabled
	VerifyPDF     *bool         `yaml:"verify_pdf,omitempty"` // nil = enabled
}

// AppConfig holds the application configuration.
// It is validated once and then passed by value; nothing mutates it during a run.
type AppConfig struct {
	Target             TargetConfig     `yaml:"target"`
	Site               SiteConfig       `yaml:"site,omitempty"`
	Browser            BrowserConfig    `yaml:"browser,omitempty"`
	AdGuard            AdGuardConfig    `yaml:"ad_guard,omitempty"`
	Images             ImageConfig      `yaml:"images,omitempty"`
	Retry              RetryConfig      `yaml:"retry,omitempty"`
	Output             OutputConfig     `yaml:"output,omitempty"`
	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	StateDir           string           `yaml:"state_dir,omitempty"`
	TopicDelay         time.Duration    `yaml:"topic_delay,omitempty"` // Minimum gap between topic navigations
	RespectRobots      bool             `yaml:"respect_robots,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// CacheEnabled reports whether the cross-run image cache is on
func (c ImageConfig) CacheEnabled() bool {
	return c.Cache == nil || *c.Cache
}

// ReportEnabled reports whether a YAML run report is written
func (c OutputConfig) ReportEnabled() bool {
	return c.Report == nil || *c.Report
}

// VerifyEnabled reports whether the exported PDF is validated
func (c OutputConfig) VerifyEnabled() bool {
	return c.VerifyPDF == nil || *c.VerifyPDF
}
