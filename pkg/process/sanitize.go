package process

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/models"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// lazySourceAttrs are checked in order before falling back to src
var lazySourceAttrs = []string{"data-src", "data-lazy-src"}

// Sanitizer rewrites a content subtree into print-ready HTML: images inlined
// and classified, links flattened, answer toggles removed.
type Sanitizer struct {
	images    *ImageProcessor
	toggle    *regexp.Regexp
	imageExts []string
	log       *logrus.Entry
}

// NewSanitizer creates a Sanitizer for the site's markup conventions
func NewSanitizer(images *ImageProcessor, siteCfg config.SiteConfig, log *logrus.Entry) (*Sanitizer, error) {
	toggle, err := utils.CompileOptionalRegex("toggle_class", siteCfg.ToggleClassPattern)
	if err != nil {
		return nil, err
	}
	exts := make([]string, 0, len(siteCfg.ImageExtensions))
	for _, ext := range siteCfg.ImageExtensions {
		exts = append(exts, strings.ToLower(ext))
	}
	return &Sanitizer{
		images:    images,
		toggle:    toggle,
		imageExts: exts,
		log:       log,
	}, nil
}

// Sanitize rewrites sel in place and returns its inner HTML.
// Callers pass a clone; the live document is never touched.
func (s *Sanitizer) Sanitize(ctx context.Context, sel *goquery.Selection, pageURL string) (string, error) {
	s.ExpandNoscript(sel, pageURL)
	s.inlineImages(ctx, sel, pageURL)
	s.flattenLinks(ctx, sel, pageURL)
	s.removeToggles(sel)

	out, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("%w: render sanitized HTML: %w", utils.ErrParsing, err)
	}
	return out, nil
}

// ExpandNoscript replaces every noscript element under sel with its parsed
// contents. A noscript repeating the lazy image right before it is dropped.
func (s *Sanitizer) ExpandNoscript(sel *goquery.Selection, pageURL string) {
	sel.Find("noscript").Each(func(_ int, ns *goquery.Selection) {
		// Parsed with scripting disabled the contents are already elements
		if ns.Children().Length() > 0 {
			if s.duplicatesLazyImage(ns, ns.Find("img"), pageURL) {
				ns.Remove()
				return
			}
			ns.Contents().Unwrap()
			return
		}

		raw := ns.Text()
		if strings.TrimSpace(raw) == "" {
			ns.Remove()
			return
		}
		inner, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
		if err == nil && s.duplicatesLazyImage(ns, inner.Find("img"), pageURL) {
			ns.Remove()
			return
		}
		ns.ReplaceWithHtml(raw)
	})
}

func (s *Sanitizer) duplicatesLazyImage(ns, imgs *goquery.Selection, pageURL string) bool {
	if imgs.Length() != 1 {
		return false
	}
	prev := ns.Prev()
	if goquery.NodeName(prev) != "img" || !hasLazySource(prev) {
		return false
	}
	lazy := s.images.Resolve(EffectiveSource(prev), pageURL)
	return lazy != "" && lazy == s.images.Resolve(EffectiveSource(imgs), pageURL)
}

// ImageSources lists the absolute URLs the sanitizer would fetch for sel
func (s *Sanitizer) ImageSources(sel *goquery.Selection, pageURL string) []string {
	seen := make(map[string]struct{})
	var urls []string
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}

	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := EffectiveSource(img)
		if !strings.HasPrefix(src, "data:") {
			add(s.images.Resolve(src, pageURL))
		}
	})
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if s.isUploadImageLink(href) {
			add(s.images.Resolve(href, pageURL))
		}
	})
	return urls
}

// EffectiveSource returns data-src, then data-lazy-src, then src
func EffectiveSource(img *goquery.Selection) string {
	for _, attr := range lazySourceAttrs {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return strings.TrimSpace(img.AttrOr("src", ""))
}

func hasLazySource(img *goquery.Selection) bool {
	for _, attr := range lazySourceAttrs {
		if strings.TrimSpace(img.AttrOr(attr, "")) != "" {
			return true
		}
	}
	return false
}

func (s *Sanitizer) inlineImages(ctx context.Context, sel *goquery.Selection, pageURL string) {
	sel.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := EffectiveSource(img)
		if strings.HasPrefix(src, "data:") {
			setImageAttrs(img.Get(0), src, s.images.Classify(src, src))
			return
		}

		abs := s.images.Resolve(src, pageURL)
		dataURI := s.images.Inline(ctx, abs)
		if dataURI == "" {
			img.Remove()
			return
		}
		setImageAttrs(img.Get(0), dataURI, s.images.Classify(abs, dataURI))
	})
}

func (s *Sanitizer) flattenLinks(ctx context.Context, sel *goquery.Selection, pageURL string) {
	sel.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !s.isUploadImageLink(href) {
			unwrapOrRemove(a)
			return
		}

		dataURI := s.images.Inline(ctx, s.images.Resolve(href, pageURL))
		if dataURI == "" {
			if strings.TrimSpace(a.Text()) != "" {
				unwrapOrRemove(a)
			} else {
				a.Remove()
			}
			return
		}
		a.ReplaceWithNodes(&html.Node{
			Type:     html.ElementNode,
			Data:     "img",
			DataAtom: atom.Img,
			Attr: []html.Attribute{
				{Key: "src", Val: dataURI},
				{Key: "class", Val: string(models.ImageClassDiagram)},
			},
		})
	})
}

func (s *Sanitizer) removeToggles(sel *goquery.Selection) {
	if s.toggle == nil {
		return
	}
	sel.Find("[class]").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return s.toggle.MatchString(el.AttrOr("class", ""))
	}).Remove()
}

func (s *Sanitizer) isUploadImageLink(href string) bool {
	if href == "" || !s.images.IsUpload(href) {
		return false
	}
	lower := strings.ToLower(href)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range s.imageExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// unwrapOrRemove replaces a with its children, or removes it when it has none
func unwrapOrRemove(a *goquery.Selection) {
	contents := a.Contents()
	if contents.Length() == 0 {
		a.Remove()
		return
	}
	contents.Unwrap()
}

// setImageAttrs keeps only src, class and an existing style attribute
func setImageAttrs(n *html.Node, src string, class models.ImageClass) {
	attrs := []html.Attribute{
		{Key: "src", Val: src},
		{Key: "class", Val: string(class)},
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "style" {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}
