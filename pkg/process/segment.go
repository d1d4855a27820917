package process

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/Sriram-PR/quiz-scraper/pkg/browser"
	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/models"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

const explanationMarker = "Explanation:"

var (
	questionRe = regexp.MustCompile(`^\d+\.`)
	optionRe   = regexp.MustCompile(`^[a-zA-Z]\)\s`)
	answerRe   = regexp.MustCompile(`Answer:\s*([a-zA-Z])`)
)

// Segmenter captures a rendered quiz page and splits its content region into
// classified fragments
type Segmenter struct {
	site         config.SiteConfig
	segmentSel   string
	scrollSettle time.Duration
	expandSettle time.Duration
	sanitizer    *Sanitizer
	images       *ImageProcessor
	log          *logrus.Entry
}

// NewSegmenter creates a Segmenter
func NewSegmenter(
	siteCfg config.SiteConfig,
	browserCfg config.BrowserConfig,
	sanitizer *Sanitizer,
	images *ImageProcessor,
	log *logrus.Entry,
) *Segmenter {
	return &Segmenter{
		site:         siteCfg,
		segmentSel:   strings.Join(siteCfg.SegmentTags, ", "),
		scrollSettle: browserCfg.ScrollSettle,
		expandSettle: browserCfg.ExpandSettle,
		sanitizer:    sanitizer,
		images:       images,
		log:          log,
	}
}

// Capture triggers lazy loading and answer expansion on the live page, then
// parses the rendered DOM. Returns the document and the page's current URL.
func (s *Segmenter) Capture(ctx context.Context, session browser.Session) (*goquery.Document, string, error) {
	if err := session.Execute(ctx, browser.ScrollToBottomScript); err != nil {
		return nil, "", err
	}
	if err := utils.SleepContext(ctx, s.scrollSettle); err != nil {
		return nil, "", err
	}
	if s.site.ExpandSelector != "" {
		if err := session.Execute(ctx, browser.ClickAllScript(s.site.ExpandSelector)); err != nil {
			return nil, "", err
		}
		if err := utils.SleepContext(ctx, s.expandSettle); err != nil {
			return nil, "", err
		}
	}

	source, err := session.PageSource(ctx)
	if err != nil {
		return nil, "", err
	}
	pageURL, err := session.CurrentURL(ctx)
	if err != nil {
		return nil, "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, "", fmt.Errorf("%w: parse HTML of '%s': %w", utils.ErrParsing, pageURL, err)
	}
	return doc, pageURL, nil
}

// ContentRegion returns the configured main content region of doc
func (s *Segmenter) ContentRegion(doc *goquery.Document, pageURL string) (*goquery.Selection, error) {
	region := doc.Find(s.site.ContentSelector).First()
	if region.Length() == 0 {
		return nil, fmt.Errorf("%w: '%s' on '%s'", utils.ErrContentSelector, s.site.ContentSelector, pageURL)
	}
	return region, nil
}

// TopicTitle returns the page heading, or "" when the page has none
func (s *Segmenter) TopicTitle(doc *goquery.Document) string {
	return strings.Join(strings.Fields(doc.Find(s.site.TopicTitleSelector).First().Text()), " ")
}

// Segment classifies the direct children of the content region.
// doc is not modified; calling Segment twice on the same document gives the same fragments.
func (s *Segmenter) Segment(ctx context.Context, doc *goquery.Document, pageURL string) ([]models.Fragment, error) {
	region, err := s.ContentRegion(doc, pageURL)
	if err != nil {
		return nil, err
	}
	region = region.Clone()

	s.sanitizer.ExpandNoscript(region, pageURL)
	nodes := region.ChildrenFiltered(s.segmentSel).FilterFunction(func(_ int, node *goquery.Selection) bool {
		return !s.isNoise(StrippedText(node))
	})
	s.images.Prefetch(ctx, s.sanitizer.ImageSources(nodes, pageURL))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var fragments []models.Fragment
	var segErr error
	nodes.EachWithBreak(func(_ int, node *goquery.Selection) bool {
		frag, ok, err := s.classify(ctx, node, pageURL)
		if err != nil {
			segErr = err
			return false
		}
		if ok {
			fragments = append(fragments, frag)
		}
		return true
	})
	if segErr != nil {
		return nil, segErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.log.WithField("url", pageURL).Debugf("Segmented %d fragments", len(fragments))
	return fragments, nil
}

func (s *Segmenter) isNoise(text string) bool {
	for _, marker := range s.site.NoiseMarkers {
		if marker != "" && strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// classify turns one non-noise segment node into a fragment
func (s *Segmenter) classify(ctx context.Context, node *goquery.Selection, pageURL string) (models.Fragment, bool, error) {
	text := StrippedText(node)

	switch {
	case questionRe.MatchString(text):
		inner, err := s.sanitizer.Sanitize(ctx, node, pageURL)
		if err != nil {
			return models.Fragment{}, false, err
		}
		return models.Fragment{
			Kind: models.FragmentQuestion,
			HTML: "<div class='question'>Q. " + inner + "</div>",
		}, true, nil

	case s.site.AnswerClass != "" && node.HasClass(s.site.AnswerClass):
		return s.answerBlock(ctx, node, text, pageURL)

	case optionRe.MatchString(text) || (utf8.RuneCountInString(text) < 100 && strings.Contains(text, "a)")):
		inner, err := s.sanitizer.Sanitize(ctx, node, pageURL)
		if err != nil {
			return models.Fragment{}, false, err
		}
		return models.Fragment{
			Kind: models.FragmentOption,
			HTML: "<div class='option'>" + inner + "</div>",
		}, true, nil
	}

	inner, err := s.sanitizer.Sanitize(ctx, node, pageURL)
	if err != nil {
		return models.Fragment{}, false, err
	}
	if !strings.Contains(inner, "<img") {
		return models.Fragment{}, false, nil
	}
	return models.Fragment{
		Kind: models.FragmentStandingImage,
		HTML: "<div class='standing-img'>" + inner + "</div>",
	}, true, nil
}

func (s *Segmenter) answerBlock(ctx context.Context, node *goquery.Selection, text, pageURL string) (models.Fragment, bool, error) {
	letter := "?"
	if m := answerRe.FindStringSubmatch(text); m != nil {
		letter = m[1]
	}

	raw, err := node.Html()
	if err != nil {
		return models.Fragment{}, false, fmt.Errorf("%w: render answer block: %w", utils.ErrParsing, err)
	}
	if i := strings.LastIndex(raw, explanationMarker); i >= 0 {
		raw = raw[i+len(explanationMarker):]
	}

	wrapper, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + raw + "</div>"))
	if err != nil {
		return models.Fragment{}, false, fmt.Errorf("%w: parse explanation HTML: %w", utils.ErrParsing, err)
	}
	expl, err := s.sanitizer.Sanitize(ctx, wrapper.Find("body > div").First(), pageURL)
	if err != nil {
		return models.Fragment{}, false, err
	}

	return models.Fragment{
		Kind: models.FragmentAnswerBlock,
		HTML: "<div class='ans-block'><span class='ans-label'>Ans: " + html.EscapeString(letter) +
			"</span> | <span class='expl'>" + expl + "</span></div>",
	}, true, nil
}

// StrippedText concatenates the trimmed text nodes under sel, skipping
// script, style, template and noscript contents
func StrippedText(sel *goquery.Selection) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(strings.TrimSpace(n.Data))
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "template", "noscript":
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return sb.String()
}
