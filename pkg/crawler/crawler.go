// Package crawler drives a harvest: resolve the seed, walk its topics through
// the browser, checkpoint progress and render the collected quiz as a PDF.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/browser"
	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/fetch"
	"github.com/Sriram-PR/quiz-scraper/pkg/guard"
	"github.com/Sriram-PR/quiz-scraper/pkg/models"
	"github.com/Sriram-PR/quiz-scraper/pkg/process"
	"github.com/Sriram-PR/quiz-scraper/pkg/render"
	"github.com/Sriram-PR/quiz-scraper/pkg/resolve"
	"github.com/Sriram-PR/quiz-scraper/pkg/storage"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

const cacheGCInterval = 10 * time.Minute

// Stage names the phase a run is in, reported through Deps.OnStage
type Stage string

const (
	StageResolve Stage = "resolve"
	StageHarvest Stage = "harvest"
	StageRender  Stage = "render"
	StageDone    Stage = "done"
)

// Deps are the collaborators a Crawler drives. Session, PDF, Images, Progress
// and Ack are required; the rest are optional.
type Deps struct {
	Session  browser.Session
	PDF      browser.PDFPage
	Images   process.ImageSource
	Cache    storage.ImageStoreAdmin // nil disables the cross-run image cache
	Progress storage.StateStore
	Ack      guard.Acknowledger
	Robots   resolve.RobotsChecker // nil keeps every resolved topic

	// OnBlocked is called when an ad interstitial holds the run
	OnBlocked func(currentURL string)
	// OnStage is called as the run moves between phases
	OnStage func(stage Stage)
}

// Crawler runs one harvest for a validated configuration
type Crawler struct {
	cfg  config.AppConfig
	deps Deps
	log  *logrus.Entry

	guard       *guard.Guard
	resolver    *resolve.Resolver
	images      *process.ImageProcessor
	segmenter   *process.Segmenter
	renderer    *render.Renderer
	policy      fetch.RetryPolicy
	rateLimiter *fetch.RateLimiter
}

// New wires a Crawler. cfg must already be validated.
func New(cfg config.AppConfig, deps Deps, baseLogger *logrus.Entry) (*Crawler, error) {
	switch {
	case deps.Session == nil:
		return nil, errors.New("crawler: browser session is required")
	case deps.PDF == nil:
		return nil, errors.New("crawler: PDF page is required")
	case deps.Images == nil:
		return nil, errors.New("crawler: image source is required")
	case deps.Progress == nil:
		return nil, errors.New("crawler: progress store is required")
	case deps.Ack == nil:
		return nil, errors.New("crawler: acknowledger is required")
	}

	logger := baseLogger.WithField("title", cfg.Target.Title)

	var store storage.ImageStore
	if deps.Cache != nil {
		store = deps.Cache
	}
	images, err := process.NewImageProcessor(deps.Images, store, cfg.Images, cfg.Site, logger.WithField("component", "images"))
	if err != nil {
		return nil, err
	}
	sanitizer, err := process.NewSanitizer(images, cfg.Site, logger.WithField("component", "sanitizer"))
	if err != nil {
		return nil, err
	}
	resolver, err := resolve.NewResolver(cfg.Site, cfg.Target, deps.Robots, logger.WithField("component", "resolver"))
	if err != nil {
		return nil, err
	}

	return &Crawler{
		cfg:  cfg,
		deps: deps,
		log:  logger,
		guard: guard.New(deps.Session, cfg.AdGuard, deps.Ack, deps.OnBlocked,
			logger.WithField("component", "guard")),
		resolver:    resolver,
		images:      images,
		segmenter:   process.NewSegmenter(cfg.Site, cfg.Browser, sanitizer, images, logger.WithField("component", "segmenter")),
		renderer:    render.NewRenderer(deps.PDF, cfg.Output, logger.WithField("component", "render")),
		policy:      fetch.PolicyFromConfig(cfg.Retry),
		rateLimiter: fetch.NewRateLimiter(cfg.TopicDelay, logger.WithField("component", "ratelimit")),
	}, nil
}

func (c *Crawler) stage(s Stage) {
	if c.deps.OnStage != nil {
		c.deps.OnStage(s)
	}
}

// Run performs the harvest. The returned report is non-nil whenever progress
// was loaded, including on failure and cancellation. Cancellation keeps the
// progress file and returns an error wrapping ctx.Err().
func (c *Crawler) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	seed := c.cfg.Target.SeedURL

	state, resumed, err := c.deps.Progress.Load(uuid.NewString(), c.cfg.Target.Title)
	if err != nil {
		return nil, err
	}
	runLog := c.log.WithFields(logrus.Fields{"run_id": state.RunID, "resume": resumed})
	runLog.Infof("Harvest starting from %s", seed)

	report := &RunReport{
		RunID:        state.RunID,
		SeedURL:      seed,
		Title:        c.cfg.Target.Title,
		Resumed:      resumed,
		StartedAt:    start,
		ProgressPath: c.deps.Progress.Path(),
	}
	defer c.finalize(report, state)

	if c.deps.Cache != nil {
		gcCtx, stopGC := context.WithCancel(ctx)
		defer stopGC()
		go c.deps.Cache.RunGC(gcCtx, cacheGCInterval)
	}

	// --- Resolve ---
	c.stage(StageResolve)
	if _, err := c.guard.Check(ctx); err != nil {
		return report, c.interrupted(ctx, err, report)
	}
	topics, kind, err := c.resolver.Resolve(ctx, seed, c.loadIndex)
	report.Mode = kind
	if err != nil {
		if ctx.Err() != nil {
			return report, c.interrupted(ctx, err, report)
		}
		return report, err
	}
	report.TopicsResolved = len(topics)
	runLog.WithField("mode", kind).Infof("Resolved %d topics", len(topics))

	// --- Harvest ---
	c.stage(StageHarvest)
	chapterURLs := make(map[string][]string)
	for _, t := range topics {
		if t.Chapter != "" {
			chapterURLs[t.Chapter] = append(chapterURLs[t.Chapter], t.URL)
		}
	}

	// A topic that failed before the last harvested one stays out of the
	// buffer; appending it now would break discovery order.
	frontier := -1
	for i, t := range topics {
		if state.IsCompleted(t.URL) {
			frontier = i
		}
	}

	for i, topic := range topics {
		if err := ctx.Err(); err != nil {
			return report, c.interrupted(ctx, err, report)
		}
		topicLog := runLog.WithFields(logrus.Fields{"topic": topic.Title, "url": topic.URL})
		if state.IsCompleted(topic.URL) {
			report.TopicsSkipped++
			topicLog.Debug("Already harvested, skipping")
			continue
		}
		if i < frontier && state.IsFailed(topic.URL) {
			topicLog.Warn("Failed in an earlier run and later topics are already harvested, not retrying")
			continue
		}
		topicLog.Infof("Topic %d/%d", i+1, len(topics))

		var attempts int
		var doc *goquery.Document
		var fragments []models.Fragment
		err := c.policy.Do(ctx, topicLog, func(ctx context.Context, attempt int) error {
			attempts = attempt
			var err error
			doc, fragments, err = c.harvestTopic(ctx, topic)
			return err
		})
		if ctx.Err() != nil {
			return report, c.interrupted(ctx, err, report)
		}
		if err != nil {
			category := utils.CategorizeError(err)
			topicLog.WithField("error_type", category).Errorf("Topic failed after %d attempt(s): %v", attempts, err)
			state.RecordFailure(models.FailedTopic{
				Title:       topic.Title,
				URL:         topic.URL,
				Error:       err.Error(),
				ErrorType:   category,
				Attempts:    attempts,
				LastAttempt: time.Now(),
			})
			if err := c.deps.Progress.Save(state); err != nil {
				return report, err
			}
			continue
		}

		var entry []models.Fragment
		if topic.Chapter != "" && !state.AnyCompleted(chapterURLs[topic.Chapter]) {
			entry = append(entry, process.ChapterHeader(topic.Chapter))
		}
		entry = append(entry, process.TopicHeader(c.topicTitle(kind, topic, doc)))
		entry = append(entry, fragments...)

		state.MarkCompleted(topic.URL, process.JoinFragments(entry))
		report.TopicsProcessed++
		if err := c.deps.Progress.Save(state); err != nil {
			return report, err
		}
		topicLog.WithField("fragments", len(fragments)).Info("Topic harvested")
	}

	if state.IsEmpty() {
		return report, fmt.Errorf("%w: %d topics resolved, %d failed", utils.ErrEmptyHarvest, len(topics), len(state.Failed))
	}

	// --- Render ---
	c.stage(StageRender)
	renderCtx, cancelRender := context.WithTimeout(ctx, c.cfg.Output.RenderTimeout)
	defer cancelRender()
	pdf, err := c.renderer.Render(renderCtx, c.cfg.Target.Title, state.HTMLBuffer, c.cfg.PDFOutputPath())
	if err != nil {
		if ctx.Err() != nil {
			return report, c.interrupted(ctx, err, report)
		}
		return report, err
	}
	report.PDF = pdf

	if c.cfg.Output.Markdown {
		mdPath := c.cfg.SidecarPath(".md")
		if err := process.WriteMarkdown(mdPath, state.HTMLBuffer); err != nil {
			runLog.Warnf("Markdown export failed: %v", err)
		} else {
			report.MarkdownPath = mdPath
			runLog.Infof("Successfully wrote Markdown export to %s", mdPath)
		}
	}
	if c.cfg.Output.ReportEnabled() {
		c.finalize(report, state)
		if err := WriteReport(c.cfg.SidecarPath("_report.yaml"), report, runLog); err != nil {
			runLog.Warnf("Run report not written: %v", err)
		}
	}

	if err := c.deps.Progress.Delete(); err != nil {
		runLog.Warnf("Failed to remove progress file: %v", err)
	}
	c.stage(StageDone)
	c.finalize(report, state)
	c.logSummary(runLog, report)
	return report, nil
}

// finalize copies the run's closing figures into report
func (c *Crawler) finalize(report *RunReport, state *models.CrawlState) {
	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	report.Images = c.images.Stats()
	report.Interstitials = c.guard.Blocked()
	report.Failed = append([]models.FailedTopic(nil), state.Failed...)
	report.TopicsFailed = len(state.Failed)
}

// harvestTopic loads one topic page and segments it.
// Returns the captured document so the caller can read the page title.
func (c *Crawler) harvestTopic(ctx context.Context, topic models.TopicRef) (*goquery.Document, []models.Fragment, error) {
	if err := c.openPage(ctx, topic.URL); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	doc, pageURL, err := c.segmenter.Capture(ctx, c.deps.Session)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	fragments, err := c.segmenter.Segment(ctx, doc, pageURL)
	if err != nil {
		return nil, nil, err
	}
	return doc, fragments, nil
}

// openPage navigates to pageURL behind the ad guard. The guard runs before the
// navigation and again after it; a reconnect discards the tab, so the page is reopened.
func (c *Crawler) openPage(ctx context.Context, pageURL string) error {
	if _, err := c.guard.Check(ctx); err != nil {
		return err
	}
	host := hostOf(pageURL)
	for {
		if err := c.rateLimiter.Wait(ctx, host); err != nil {
			return err
		}
		err := c.deps.Session.Open(ctx, pageURL)
		c.rateLimiter.UpdateLastRequestTime(host)
		if err != nil {
			return err
		}
		reconnected, err := c.guard.Check(ctx)
		if err != nil {
			return err
		}
		if !reconnected {
			return nil
		}
		c.log.WithField("url", pageURL).Info("Session reconnected, reopening page")
	}
}

// loadIndex is the resolver's Loader for subject and chapter seeds
func (c *Crawler) loadIndex(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := c.policy.Do(ctx, c.log.WithField("url", pageURL), func(ctx context.Context, attempt int) error {
		if err := c.openPage(ctx, pageURL); err != nil {
			return err
		}
		d, _, err := c.segmenter.Capture(ctx, c.deps.Session)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	return doc, err
}

// topicTitle prefers the page heading for single-topic seeds, whose resolved
// title is only the configured subject title
func (c *Crawler) topicTitle(kind models.LinkKind, topic models.TopicRef, doc *goquery.Document) string {
	if kind == models.LinkKindTopic && doc != nil {
		if h := c.segmenter.TopicTitle(doc); h != "" {
			return h
		}
	}
	return topic.Title
}

func (c *Crawler) interrupted(ctx context.Context, err error, report *RunReport) error {
	c.log.Warnf("Harvest interrupted after %d new topic(s); progress kept at %s", report.TopicsProcessed, report.ProgressPath)
	if err == nil || !errors.Is(err, ctx.Err()) {
		err = ctx.Err()
	}
	return fmt.Errorf("harvest interrupted: %w", err)
}

func (c *Crawler) logSummary(log *logrus.Entry, r *RunReport) {
	log.Info("========================================================================")
	log.Info("HARVEST FINISHED")
	log.Infof("Duration:         %v", r.Duration)
	log.Infof("Topics: resolved %d, harvested %d, skipped %d, failed %d",
		r.TopicsResolved, r.TopicsProcessed, r.TopicsSkipped, r.TopicsFailed)
	log.Infof("Images: fetched %d, cached %d, failed %d", r.Images.Fetched, r.Images.Cached, r.Images.Failed)
	if r.PDF != nil {
		log.Infof("PDF:              %s (%d pages)", r.PDF.Path, r.PDF.Pages)
	}
	for _, f := range r.Failed {
		log.Warnf("Failed topic: %s (%s) [%s] %s", f.Title, f.URL, f.ErrorType, f.Error)
	}
	log.Info("========================================================================")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
