package process

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/models"
	"github.com/Sriram-PR/quiz-scraper/pkg/parse"
	"github.com/Sriram-PR/quiz-scraper/pkg/storage"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// ImageSource turns image references into data URIs. Implemented by fetch.ImageFetcher.
type ImageSource interface {
	Resolve(raw, pageURL string) string
	Fetch(ctx context.Context, imageURL string) (string, error)
}

// ImageStats counts how image references were satisfied during a run
type ImageStats struct {
	Fetched int64 `yaml:"fetched"`
	Cached  int64 `yaml:"cached"`
	Failed  int64 `yaml:"failed"`
}

// ImageProcessor inlines images as data URIs.
// Results are memoized per normalized URL for the lifetime of the processor (one run);
// failures are memoized too so a broken image is requested once per run.
type ImageProcessor struct {
	source    ImageSource
	store     storage.ImageStore // nil disables the cross-run cache
	workers   int
	threshold int
	uploads   *regexp.Regexp
	log       *logrus.Entry

	memoMu sync.RWMutex
	memo   map[string]string
	group  singleflight.Group

	fetched atomic.Int64
	cached  atomic.Int64
	failed  atomic.Int64
}

// NewImageProcessor creates an ImageProcessor. store may be nil.
func NewImageProcessor(
	source ImageSource,
	store storage.ImageStore,
	imgCfg config.ImageConfig,
	siteCfg config.SiteConfig,
	log *logrus.Entry,
) (*ImageProcessor, error) {
	uploads, err := utils.CompileOptionalRegex("uploads_pattern", siteCfg.UploadsPattern)
	if err != nil {
		return nil, err
	}
	workers := imgCfg.Workers
	if workers <= 0 {
		workers = 1
	}
	threshold := imgCfg.DiagramThreshold
	if threshold <= 0 {
		threshold = config.DefaultDiagramThreshold
	}
	return &ImageProcessor{
		source:    source,
		store:     store,
		workers:   workers,
		threshold: threshold,
		uploads:   uploads,
		log:       log,
		memo:      make(map[string]string),
	}, nil
}

// Resolve turns a raw src/href into an absolute image URL ("" when unusable)
func (ip *ImageProcessor) Resolve(raw, pageURL string) string {
	return ip.source.Resolve(raw, pageURL)
}

// IsUpload reports whether a source points into the site's upload area
func (ip *ImageProcessor) IsUpload(src string) bool {
	return ip.uploads != nil && ip.uploads.MatchString(src)
}

// Classify decides how an inlined image is rendered
func (ip *ImageProcessor) Classify(src, dataURI string) models.ImageClass {
	return ClassifyImage(src, dataURI, ip.uploads, ip.threshold)
}

// ClassifyImage returns DIAGRAM when src matches the uploads pattern or the
// data URI is longer than threshold, MATH-INLINE otherwise.
func ClassifyImage(src, dataURI string, uploads *regexp.Regexp, threshold int) models.ImageClass {
	if uploads != nil && uploads.MatchString(src) {
		return models.ImageClassDiagram
	}
	if len(dataURI) > threshold {
		return models.ImageClassDiagram
	}
	return models.ImageClassMathInline
}

// Inline returns the data URI for an absolute image URL, or "" when the image
// cannot be obtained. Lookup order: run memo, cross-run cache, network.
func (ip *ImageProcessor) Inline(ctx context.Context, imageURL string) string {
	if imageURL == "" {
		return ""
	}
	key := parse.NormalizeKey(imageURL)

	ip.memoMu.RLock()
	uri, ok := ip.memo[key]
	ip.memoMu.RUnlock()
	if ok {
		return uri
	}

	v, _, _ := ip.group.Do(key, func() (interface{}, error) {
		ip.memoMu.RLock()
		uri, ok := ip.memo[key]
		ip.memoMu.RUnlock()
		if ok {
			return uri, nil
		}

		uri, final := ip.load(ctx, key, imageURL)
		if final {
			ip.memoMu.Lock()
			ip.memo[key] = uri
			ip.memoMu.Unlock()
		}
		return uri, nil
	})
	return v.(string)
}

// load resolves one image from the cache or the network.
// final is false when the lookup was cut short by cancellation and must not be memoized.
func (ip *ImageProcessor) load(ctx context.Context, key, imageURL string) (dataURI string, final bool) {
	imgLog := ip.log.WithField("image_url", imageURL)

	if ip.store != nil {
		status, entry, err := ip.store.CheckImageStatus(key)
		switch {
		case err != nil:
			imgLog.Warnf("Image cache lookup failed, fetching: %v", err)
		case status == models.ImageStatusSuccess && entry != nil:
			ip.cached.Add(1)
			return entry.DataURI, true
		}
	}

	uri, err := ip.source.Fetch(ctx, imageURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", false
		}
		ip.failed.Add(1)
		imgLog.Debugf("Image unavailable: %v", err)
		return "", true
	}
	ip.fetched.Add(1)

	if ip.store != nil {
		entry := &models.ImageDBEntry{
			Status:      models.ImageStatusSuccess,
			DataURI:     uri,
			ContentType: dataURIMediaType(uri),
			FetchedAt:   time.Now(),
		}
		if err := ip.store.UpdateImageStatus(key, entry); err != nil {
			imgLog.Warnf("Failed to cache image: %v", err)
		}
	}
	return uri, true
}

// Prefetch inlines urls concurrently, bounded by the configured worker count.
// Results land in the memo; Inline calls afterwards are served from it.
func (ip *ImageProcessor) Prefetch(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ip.workers)
	for _, u := range urls {
		g.Go(func() error {
			ip.Inline(gctx, u)
			return nil
		})
	}
	_ = g.Wait()
}

// Stats returns the counters accumulated so far
func (ip *ImageProcessor) Stats() ImageStats {
	return ImageStats{
		Fetched: ip.fetched.Load(),
		Cached:  ip.cached.Load(),
		Failed:  ip.failed.Load(),
	}
}

func dataURIMediaType(uri string) string {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return ""
	}
	mediaType, _, _ := strings.Cut(rest, ";")
	return mediaType
}
