// Package resolve turns a seed URL into the ordered list of quiz topics to harvest.
package resolve

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/models"
	"github.com/Sriram-PR/quiz-scraper/pkg/parse"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// Loader opens a page and returns its rendered DOM
type Loader func(ctx context.Context, pageURL string) (*goquery.Document, error)

// RobotsChecker filters topics by robots.txt. Implemented by fetch.RobotsHandler.
type RobotsChecker interface {
	Allowed(ctx context.Context, targetURL *url.URL) bool
}

// Resolver discovers topics from a seed URL
type Resolver struct {
	site      config.SiteConfig
	target    config.TargetConfig
	subjectRe *regexp.Regexp
	chapterRe *regexp.Regexp
	robots    RobotsChecker // nil disables the robots filter
	log       *logrus.Entry
}

// chapter is one heading of a subject index with its position among chapter headings
type chapter struct {
	heading *goquery.Selection
	title   string
	index   int // 1-based; 0 when the heading fails the title pattern
}

// NewResolver creates a Resolver. robots may be nil.
func NewResolver(site config.SiteConfig, target config.TargetConfig, robots RobotsChecker, log *logrus.Entry) (*Resolver, error) {
	subjectRe, err := utils.CompileOptionalRegex("subject_path", site.SubjectPathPattern)
	if err != nil {
		return nil, err
	}
	chapterRe, err := utils.CompileOptionalRegex("chapter_title", site.ChapterTitle())
	if err != nil {
		return nil, err
	}
	return &Resolver{
		site:      site,
		target:    target,
		subjectRe: subjectRe,
		chapterRe: chapterRe,
		robots:    robots,
		log:       log,
	}, nil
}

// Classify reports whether seed names a single topic, a subject index, or one
// chapter of a subject index
func (r *Resolver) Classify(seed string) (models.LinkKind, error) {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return "", fmt.Errorf("%w: seed URL '%s': %w", utils.ErrParsing, seed, err)
	}
	switch {
	case u.Fragment != "":
		return models.LinkKindChapter, nil
	case r.subjectRe != nil && r.subjectRe.MatchString(u.Path):
		return models.LinkKindSubject, nil
	default:
		return models.LinkKindTopic, nil
	}
}

// Resolve returns the topics named by seed in discovery order.
// load is only called for subject and chapter seeds.
func (r *Resolver) Resolve(ctx context.Context, seed string, load Loader) ([]models.TopicRef, models.LinkKind, error) {
	kind, err := r.Classify(seed)
	if err != nil {
		return nil, "", err
	}
	if kind == models.LinkKindTopic {
		topics, err := r.ResolveDocument(ctx, kind, seed, nil)
		return topics, kind, err
	}

	doc, err := load(ctx, seed)
	if err != nil {
		return nil, kind, err
	}
	topics, err := r.ResolveDocument(ctx, kind, seed, doc)
	return topics, kind, err
}

// ResolveDocument extracts topics from an already loaded index page
func (r *Resolver) ResolveDocument(ctx context.Context, kind models.LinkKind, seed string, doc *goquery.Document) ([]models.TopicRef, error) {
	seedURL, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return nil, fmt.Errorf("%w: seed URL '%s': %w", utils.ErrParsing, seed, err)
	}
	resolveLog := r.log.WithFields(logrus.Fields{"seed": seed, "kind": kind})

	var topics []models.TopicRef
	switch kind {
	case models.LinkKindTopic:
		topicURL := *seedURL
		topicURL.Fragment = ""
		topicURL.RawFragment = ""
		topics = []models.TopicRef{{Title: r.target.Title, URL: topicURL.String()}}

	case models.LinkKindSubject, models.LinkKindChapter:
		if doc == nil {
			return nil, fmt.Errorf("%w: no document for %s seed", utils.ErrParsing, kind)
		}
		region := doc.Find(r.site.ContentSelector).First()
		if region.Length() == 0 {
			return nil, fmt.Errorf("%w: '%s' on '%s'", utils.ErrContentSelector, r.site.ContentSelector, seed)
		}
		chapters := r.chapters(region)

		var selected []chapter
		if kind == models.LinkKindSubject {
			selected = r.inRange(chapters)
		} else {
			ch, ok := r.matchFragment(chapters, seedURL.Fragment)
			if !ok {
				return nil, fmt.Errorf("%w: no chapter heading matches '#%s'", utils.ErrNoTopics, seedURL.Fragment)
			}
			selected = []chapter{ch}
		}
		resolveLog.Debugf("Scanning %d of %d chapter headings", len(selected), len(chapters))
		topics = r.collectTopics(selected, seedURL)

	default:
		return nil, fmt.Errorf("%w: unknown link kind '%s'", utils.ErrParsing, kind)
	}

	topics = r.filterRobots(ctx, topics, resolveLog)
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: %s", utils.ErrNoTopics, seed)
	}
	resolveLog.Infof("Resolved %d topics", len(topics))
	return topics, nil
}

// chapters lists every heading in the content region; headings failing the
// title pattern keep index 0 but still bound the forward scan of their neighbours
func (r *Resolver) chapters(region *goquery.Selection) []chapter {
	var out []chapter
	index := 0
	region.Find(r.site.ChapterHeadingSelector).Each(func(_ int, h *goquery.Selection) {
		title := strings.Join(strings.Fields(h.Text()), " ")
		ch := chapter{heading: h, title: title}
		if r.chapterRe == nil || r.chapterRe.MatchString(title) {
			index++
			ch.index = index
		}
		out = append(out, ch)
	})
	return out
}

func (r *Resolver) inRange(chapters []chapter) []chapter {
	var out []chapter
	for _, ch := range chapters {
		if ch.index == 0 {
			continue
		}
		if r.target.StartChapter > 0 && ch.index < r.target.StartChapter {
			continue
		}
		if r.target.EndChapter > 0 && ch.index > r.target.EndChapter {
			continue
		}
		out = append(out, ch)
	}
	return out
}

func (r *Resolver) matchFragment(chapters []chapter, fragment string) (chapter, bool) {
	for _, ch := range chapters {
		if id, ok := ch.heading.Attr("id"); ok && id == fragment {
			return ch, true
		}
		if ch.heading.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.AttrOr("id", "") == fragment
		}).Length() > 0 {
			return ch, true
		}
	}
	for _, ch := range chapters {
		if SlugMatches(ch.title, fragment) {
			return ch, true
		}
	}
	return chapter{}, false
}

// collectTopics scans forward from each heading to the next one, gathering
// same-host anchors with text inside link containers. Duplicate URLs keep their first position.
func (r *Resolver) collectTopics(chapters []chapter, base *url.URL) []models.TopicRef {
	seen := make(map[string]struct{})
	var topics []models.TopicRef

	for _, ch := range chapters {
		before := len(topics)
		for sib := ch.heading.Next(); sib.Length() > 0; sib = sib.Next() {
			if sib.Is(r.site.ChapterHeadingSelector) {
				break
			}
			containers := sib.Filter(r.site.LinkContainerSelector).AddSelection(sib.Find(r.site.LinkContainerSelector))
			containers.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
				title := strings.Join(strings.Fields(a.Text()), " ")
				if title == "" {
					return
				}
				abs, ok := parse.ResolveHref(base, a.AttrOr("href", ""))
				if !ok || !parse.SameHost(abs, base) {
					return
				}
				key := parse.NormalizeURL(abs)
				if _, dup := seen[key]; dup {
					return
				}
				seen[key] = struct{}{}
				topics = append(topics, models.TopicRef{
					Title:        title,
					URL:          abs.String(),
					Chapter:      ch.title,
					ChapterIndex: ch.index,
				})
			})
			if sib.Find(r.site.ChapterHeadingSelector).Length() > 0 {
				break
			}
		}
		r.log.WithField("chapter", ch.title).Debugf("Found %d topics", len(topics)-before)
	}
	return topics
}

func (r *Resolver) filterRobots(ctx context.Context, topics []models.TopicRef, log *logrus.Entry) []models.TopicRef {
	if r.robots == nil {
		return topics
	}
	kept := topics[:0]
	for _, t := range topics {
		u, err := url.Parse(t.URL)
		if err == nil && !r.robots.Allowed(ctx, u) {
			log.WithField("url", t.URL).Warnf("Skipping topic: %v", utils.ErrRobotsDisallowed)
			continue
		}
		kept = append(kept, t)
	}
	return kept
}
