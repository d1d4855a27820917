package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/quiz-scraper/pkg/browser"
	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/crawler"
	"github.com/Sriram-PR/quiz-scraper/pkg/fetch"
	"github.com/Sriram-PR/quiz-scraper/pkg/guard"
	"github.com/Sriram-PR/quiz-scraper/pkg/resolve"
	"github.com/Sriram-PR/quiz-scraper/pkg/storage"
)

// scrapeFlags override values from the config file
type scrapeFlags struct {
	seed         string
	title        string
	startChapter int
	endChapter   int
	headless     bool
	pdfPath      string
	outputDir    string
	markdown     bool
	fresh        bool
}

func newScrapeCmd(g *globalFlags, stdin io.Reader, stderr io.Writer, exitCode *int) *cobra.Command {
	f := &scrapeFlags{}
	cmd := &cobra.Command{
		Use:   "scrape [seed-url]",
		Short: "Harvest a subject, chapter or topic into a PDF",
		Example: `  quiz-scraper scrape --config sm.yaml
  quiz-scraper scrape https://www.sanfoundry.com/1000-strength-materials-questions-answers/ --title "Strength of Materials"
  quiz-scraper scrape --start-chapter 3 --end-chapter 5 --headless`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) > 0 {
				f.seed = args[0]
			}
			log := setupLogger(g.logLevel, stderr)
			appCfg, err := scrapeConfig(g.configFile, cmd.Flags().Changed("config"), f, cmd, log)
			if err != nil {
				log.Errorf("Config error: %v", err)
				*exitCode = 1
				return
			}
			*exitCode = executeScrape(appCfg, f.fresh, stdin, stderr, log)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.seed, "seed", "", "Seed URL: subject index, chapter (#fragment) or single topic")
	fl.StringVar(&f.title, "title", "", "Subject title; names the PDF and progress file")
	fl.IntVar(&f.startChapter, "start-chapter", 0, "First chapter to harvest (1-based)")
	fl.IntVar(&f.endChapter, "end-chapter", 0, "Last chapter to harvest (1-based, inclusive)")
	fl.BoolVar(&f.headless, "headless", false, "Run the scraping browser headless")
	fl.StringVar(&f.pdfPath, "pdf", "", "Output PDF path (default <output dir>/<title>.pdf)")
	fl.StringVar(&f.outputDir, "output-dir", "", "Output directory")
	fl.BoolVar(&f.markdown, "markdown", false, "Also export the harvest as Markdown")
	fl.BoolVar(&f.fresh, "fresh", false, "Discard saved progress and start over")
	return cmd
}

// scrapeConfig loads the config file and applies flag overrides. A missing
// default config file is tolerated when the target is given on the command line.
func scrapeConfig(path string, explicit bool, f *scrapeFlags, cmd *cobra.Command, log *logrus.Logger) (*config.AppConfig, error) {
	appCfg, err := loadConfig(path)
	if err != nil {
		if explicit || f.seed == "" || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		log.Infof("No config file at %s, using defaults", path)
		appCfg = &config.AppConfig{}
	} else {
		log.Infof("Loaded configuration from %s", path)
	}

	applyOverrides(appCfg, f, cmd.Flags().Changed)

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// applyOverrides copies explicitly set flags into cfg
func applyOverrides(cfg *config.AppConfig, f *scrapeFlags, changed func(name string) bool) {
	if f.seed != "" {
		cfg.Target.SeedURL = f.seed
	}
	if f.title != "" {
		cfg.Target.Title = f.title
	}
	if changed("start-chapter") {
		cfg.Target.StartChapter = f.startChapter
	}
	if changed("end-chapter") {
		cfg.Target.EndChapter = f.endChapter
	}
	if changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if f.pdfPath != "" {
		cfg.Output.PDFPath = f.pdfPath
	}
	if f.outputDir != "" {
		cfg.Output.Dir = f.outputDir
	}
	if changed("markdown") {
		cfg.Output.Markdown = f.markdown
	}
}

func executeScrape(appCfg *config.AppConfig, fresh bool, stdin io.Reader, stderr io.Writer, log *logrus.Logger) int {
	logAppConfig(appCfg, log)

	// ===========================================================
	// == Setup Context & Signal Handling ==
	// ===========================================================
	crawlCtx, cancelCrawl := context.WithCancel(context.Background())
	defer cancelCrawl()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("PANIC in signal handler: %v", r)
			}
		}()
		sig := <-sigChan
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancelCrawl()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()
	defer signal.Stop(sigChan)

	// ===========================================================
	// == Initialize Components ==
	// ===========================================================
	log.Info("Initializing components...")
	logEntry := log.WithField("component", "scrape")
	policy := fetch.PolicyFromConfig(appCfg.Retry)

	// --- Storage ---
	progress := storage.NewProgressStore(appCfg.StateDir, resolve.ProgressStem(appCfg.Target.Title, appCfg.Target.SeedURL),
		appCfg.Target.SeedURL, log.WithField("component", "progress"))
	if fresh {
		if err := progress.Delete(); err != nil {
			log.Errorf("Failed to discard saved progress: %v", err)
			return 1
		}
		log.Info("Saved progress discarded (--fresh)")
	}

	deps := crawler.Deps{Progress: progress}
	if appCfg.Images.CacheEnabled() {
		cache, err := storage.OpenImageCache(appCfg.StateDir, log.WithField("component", "image_cache"))
		if err != nil {
			log.Warnf("Image cache unavailable, continuing without it: %v", err)
		} else {
			defer cache.Close()
			deps.Cache = cache
		}
	}

	// --- HTTP Fetching Components ---
	imageClient := fetch.NewClient(appCfg.HTTPClientSettings, appCfg.Images.Timeout, logEntry)
	deps.Images = fetch.NewImageFetcher(imageClient, appCfg.Images, appCfg.Site.Root, policy,
		log.WithField("component", "image_fetch"))

	if appCfg.RespectRobots {
		httpClient := fetch.NewClient(appCfg.HTTPClientSettings, appCfg.HTTPClientSettings.Timeout, logEntry)
		fetcher := fetch.NewFetcher(httpClient, policy, log.WithField("component", "fetch"))
		deps.Robots = fetch.NewRobotsHandler(fetcher, fetch.NewRateLimiter(appCfg.TopicDelay, logEntry),
			appCfg.Browser.UserAgent, log.WithField("component", "robots"))
	}

	// --- Browsers ---
	// Browsers outlive crawlCtx and are shut down by Close.
	session, err := browser.NewChromeSession(context.Background(), appCfg.Browser, policy, log.WithField("component", "browser"))
	if err != nil {
		log.Errorf("Failed to start browser: %v", err)
		return 1
	}
	defer session.Close()
	deps.Session = session

	pdfPage, err := browser.NewChromePDF(context.Background(), appCfg.Browser.ExecPath, appCfg.Output.RenderTimeout,
		log.WithField("component", "pdf"))
	if err != nil {
		log.Errorf("Failed to start print browser: %v", err)
		return 1
	}
	defer pdfPage.Close()
	deps.PDF = pdfPage

	// --- Operator acknowledgment ---
	ack := guard.NewRendezvous()
	deps.Ack = ack
	go pumpAcknowledgments(crawlCtx, stdin, ack, logEntry)
	deps.OnBlocked = func(currentURL string) {
		fmt.Fprintf(stderr, "\n>>> Ad interstitial on %s\n>>> Close it in the browser window, then press Enter to continue.\n", currentURL)
	}

	progressSpinner := newRenderSpinner(stderr)
	deps.OnStage = func(stage crawler.Stage) {
		switch stage {
		case crawler.StageRender:
			progressSpinner.Start()
		case crawler.StageDone:
			progressSpinner.Stop()
		}
	}

	// --- Crawler Instance ---
	crawlerInstance, err := crawler.New(*appCfg, deps, log.WithField("component", "crawler"))
	if err != nil {
		log.Errorf("Failed to initialize crawler: %v", err)
		return 1
	}

	// ===========================================================
	// == Run ==
	// ===========================================================
	report, err := crawlerInstance.Run(crawlCtx)
	progressSpinner.Stop()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warnf("Harvest cancelled gracefully. Progress kept at %s; run again to resume.", progress.Path())
			return 0
		}
		log.Errorf("Harvest finished with error: %v", err)
		return 1
	}

	if report.TopicsFailed > 0 {
		log.Warnf("Harvest completed with %d failed topic(s); see the run report.", report.TopicsFailed)
	} else {
		log.Info("Harvest completed successfully.")
	}
	return 0
}

// renderSpinner shows activity while the PDF is printed. It is a no-op when
// the output is not a terminal.
type renderSpinner struct {
	s       *spinner.Spinner
	running bool
}

func newRenderSpinner(out io.Writer) *renderSpinner {
	f, ok := out.(*os.File)
	if !ok {
		return &renderSpinner{}
	}
	info, err := f.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return &renderSpinner{}
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " Rendering PDF..."
	return &renderSpinner{s: s}
}

func (r *renderSpinner) Start() {
	if r.s != nil && !r.running {
		r.s.Start()
		r.running = true
	}
}

func (r *renderSpinner) Stop() {
	if r.s != nil && r.running {
		r.s.Stop()
		r.running = false
	}
}
