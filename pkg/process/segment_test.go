package process

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/quiz-scraper/pkg/browser"
	"github.com/Sriram-PR/quiz-scraper/pkg/browser/browsertest"
	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/models"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

const pageURL = testRoot + "/mcq/beams/"

const quizPage = `<html><head><title>Beams</title></head><body>
<h1 class="entry-title">Beams   Multiple Choice Questions</h1>
<div class="entry-content">
<p>1. What is the unit of stress?</p>
<p>a) N<br/>b) N/m<sup>2</sup><br/>c) m<br/>d) kg</p>
<div class="collapseomatic" id="id1">View Answer</div>
<div class="collapseomatic_content" id="target-id1">Answer: b<br/>Explanation: Stress is force per unit area <img src="/wp-content/uploads/2020/eq.png"/>.</div>
<p>Enroll in our Certification program on Strength of Materials</p>
<center><img data-src="/sym/alpha.png" src="data:image/gif;base64,UExBQ0U=" alt="alpha" title="t" width="10" style="vertical-align:middle"/></center>
<p>Just prose without images.</p>
<p>2. <a href="https://quiz.example/other/">Which</a> beam is shown <a href="/wp-content/uploads/fig.png">here</a>?</p>
<ul><li>not a segment tag</li></ul>
</div>
</body></html>`

func quizImages() map[string]string {
	return map[string]string{
		testRoot + "/wp-content/uploads/2020/eq.png": smallURI,
		testRoot + "/sym/alpha.png":                  tinyURI,
		testRoot + "/wp-content/uploads/fig.png":     smallURI,
	}
}

func testSegmenter(t *testing.T, source ImageSource) *Segmenter {
	t.Helper()
	site := testSite(t)
	images := testImageProcessor(t, source, nil)
	sanitizer, err := NewSanitizer(images, site, testLogger())
	require.NoError(t, err)
	return NewSegmenter(site, config.BrowserConfig{}, sanitizer, images, testLogger())
}

func parseDoc(t *testing.T, s string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func kinds(fragments []models.Fragment) []models.FragmentKind {
	out := make([]models.FragmentKind, 0, len(fragments))
	for _, f := range fragments {
		out = append(out, f.Kind)
	}
	return out
}

func TestSegment_Classification(t *testing.T) {
	seg := testSegmenter(t, newFakeSource(quizImages()))
	fragments, err := seg.Segment(context.Background(), parseDoc(t, quizPage), pageURL)
	require.NoError(t, err)

	require.Equal(t, []models.FragmentKind{
		models.FragmentQuestion,
		models.FragmentOption,
		models.FragmentAnswerBlock,
		models.FragmentStandingImage,
		models.FragmentQuestion,
	}, kinds(fragments))

	t.Run("question", func(t *testing.T) {
		assert.Equal(t, "<div class='question'>Q. 1. What is the unit of stress?</div>", fragments[0].HTML)
	})

	t.Run("option keeps markup", func(t *testing.T) {
		assert.Equal(t, "<div class='option'>a) N<br/>b) N/m<sup>2</sup><br/>c) m<br/>d) kg</div>", fragments[1].HTML)
	})

	t.Run("answer block", func(t *testing.T) {
		html := fragments[2].HTML
		assert.True(t, strings.HasPrefix(html, "<div class='ans-block'><span class='ans-label'>Ans: b</span> | <span class='expl'>"), html)
		assert.Contains(t, html, "Stress is force per unit area")
		assert.NotContains(t, html, "Answer:")
		assert.Contains(t, html, `<img src="`+smallURI+`" class="diagram-scaled"/>`)
	})

	t.Run("standing image strips attributes", func(t *testing.T) {
		assert.Equal(t,
			`<div class='standing-img'><img src="`+tinyURI+`" class="math-inline" style="vertical-align:middle"/></div>`,
			fragments[3].HTML)
	})

	t.Run("links flattened and upload link embedded", func(t *testing.T) {
		html := fragments[4].HTML
		assert.NotContains(t, html, "<a")
		assert.Contains(t, html, "Which beam is shown")
		assert.Contains(t, html, `<img src="`+smallURI+`" class="diagram-scaled"/>`)
		assert.NotContains(t, html, ">here<")
	})
}

func TestSegment_Deterministic(t *testing.T) {
	src := newFakeSource(quizImages())
	seg := testSegmenter(t, src)
	doc := parseDoc(t, quizPage)
	before, err := doc.Html()
	require.NoError(t, err)

	first, err := seg.Segment(context.Background(), doc, pageURL)
	require.NoError(t, err)
	second, err := seg.Segment(context.Background(), doc, pageURL)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	after, err := doc.Html()
	require.NoError(t, err)
	assert.Equal(t, before, after, "the captured document is not modified")

	for u := range quizImages() {
		assert.Equal(t, 1, src.Calls(u), u)
	}
}

func TestSegment_DiscardedNodesFetchNothing(t *testing.T) {
	const page = `<html><body><div class="entry-content">
<p>1. Which beam is shown? <img src="/wp-content/uploads/beam.png"/></p>
<p>Enroll in our Certification program <img src="/ads/banner.png"/></p>
<ul><li><img src="/side/widget.png"/></li></ul>
<aside><img src="/side/aside.png"/></aside>
</div></body></html>`
	src := newFakeSource(map[string]string{
		testRoot + "/wp-content/uploads/beam.png": smallURI,
		testRoot + "/ads/banner.png":              smallURI,
		testRoot + "/side/widget.png":             smallURI,
		testRoot + "/side/aside.png":              smallURI,
	})
	seg := testSegmenter(t, src)

	fragments, err := seg.Segment(context.Background(), parseDoc(t, page), pageURL)
	require.NoError(t, err)
	assert.Equal(t, []models.FragmentKind{models.FragmentQuestion}, kinds(fragments))

	assert.Equal(t, 1, src.Calls(testRoot+"/wp-content/uploads/beam.png"))
	for _, u := range []string{"/ads/banner.png", "/side/widget.png", "/side/aside.png"} {
		assert.Zero(t, src.Calls(testRoot+u), u)
	}
	assert.Equal(t, int64(1), seg.images.Stats().Fetched)
}

func TestSegment_MissingContentRegion(t *testing.T) {
	seg := testSegmenter(t, newFakeSource(nil))
	_, err := seg.Segment(context.Background(), parseDoc(t, `<html><body><p>1. Lost</p></body></html>`), pageURL)
	assert.ErrorIs(t, err, utils.ErrContentSelector)
}

func TestSegment_Cancelled(t *testing.T) {
	seg := testSegmenter(t, newFakeSource(quizImages()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := seg.Segment(ctx, parseDoc(t, quizPage), pageURL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSegment_EdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantKinds []models.FragmentKind
		check     func(t *testing.T, fragments []models.Fragment)
	}{
		{
			name:      "question number at start",
			body:      `<p>12. What is the bending moment?</p>`,
			wantKinds: []models.FragmentKind{models.FragmentQuestion},
		},
		{
			name:      "answer letter extracted",
			body:      `<div class="collapseomatic_content">Answer: d<br/>Explanation: Because.</div>`,
			wantKinds: []models.FragmentKind{models.FragmentAnswerBlock},
			check: func(t *testing.T, f []models.Fragment) {
				assert.Equal(t, "<div class='ans-block'><span class='ans-label'>Ans: d</span> | <span class='expl'> Because.</span></div>", f[0].HTML)
			},
		},
		{
			name:      "answer without letter or explanation",
			body:      `<div class="collapseomatic_content">See the figure</div>`,
			wantKinds: []models.FragmentKind{models.FragmentAnswerBlock},
			check: func(t *testing.T, f []models.Fragment) {
				assert.Contains(t, f[0].HTML, "Ans: ?")
				assert.Contains(t, f[0].HTML, "See the figure")
			},
		},
		{
			name:      "last explanation marker wins",
			body:      `<div class="collapseomatic_content">Answer: a<br/>Explanation: first. Explanation: second.</div>`,
			wantKinds: []models.FragmentKind{models.FragmentAnswerBlock},
			check: func(t *testing.T, f []models.Fragment) {
				assert.NotContains(t, f[0].HTML, "first.")
				assert.Contains(t, f[0].HTML, "second.")
			},
		},
		{
			name:      "option pattern",
			body:      `<p>a) steel</p><p>B) iron</p>`,
			wantKinds: []models.FragmentKind{models.FragmentOption, models.FragmentOption},
		},
		{
			name:      "short text with option marker",
			body:      `<div>(a) and (b)</div>`,
			wantKinds: []models.FragmentKind{models.FragmentOption},
		},
		{
			name:      "noise dropped",
			body:      `<p>1. Enroll now</p><div>advertisement</div>`,
			wantKinds: []models.FragmentKind{},
		},
		{
			name:      "failed image removed",
			body:      `<center><img src="/missing.png"/></center>`,
			wantKinds: []models.FragmentKind{},
		},
		{
			name:      "data source kept without fetching",
			body:      `<center><img src="` + tinyURI + `" alt="x"/></center>`,
			wantKinds: []models.FragmentKind{models.FragmentStandingImage},
			check: func(t *testing.T, f []models.Fragment) {
				assert.Contains(t, f[0].HTML, `<img src="`+tinyURI+`" class="math-inline"/>`)
			},
		},
		{
			name:      "toggle inside question removed",
			body:      `<p>3. Which? <span class="collapseomatic">View Answer</span></p>`,
			wantKinds: []models.FragmentKind{models.FragmentQuestion},
			check: func(t *testing.T, f []models.Fragment) {
				assert.NotContains(t, f[0].HTML, "View Answer")
			},
		},
		{
			name:      "dead image link without text removed",
			body:      `<p>4. Identify <a href="/wp-content/uploads/gone.png"></a></p>`,
			wantKinds: []models.FragmentKind{models.FragmentQuestion},
			check: func(t *testing.T, f []models.Fragment) {
				assert.Equal(t, "<div class='question'>Q. 4. Identify </div>", f[0].HTML)
			},
		},
		{
			name:      "dead image link with text unwrapped",
			body:      `<p>5. See <a href="/wp-content/uploads/gone.jpg">figure</a></p>`,
			wantKinds: []models.FragmentKind{models.FragmentQuestion},
			check: func(t *testing.T, f []models.Fragment) {
				assert.Equal(t, "<div class='question'>Q. 5. See figure</div>", f[0].HTML)
			},
		},
		{
			name:      "noscript duplicate of lazy image dropped",
			body:      `<p><img data-src="/sym/alpha.png" src="data:image/gif;base64,UExBQ0U="/><noscript><img src="/sym/alpha.png"/></noscript></p>`,
			wantKinds: []models.FragmentKind{models.FragmentStandingImage},
			check: func(t *testing.T, f []models.Fragment) {
				assert.Equal(t, 1, strings.Count(f[0].HTML, "<img"))
				assert.Contains(t, f[0].HTML, tinyURI)
			},
		},
		{
			name:      "noscript unwrapped",
			body:      `<center><noscript><img src="/sym/alpha.png"/></noscript></center>`,
			wantKinds: []models.FragmentKind{models.FragmentStandingImage},
			check: func(t *testing.T, f []models.Fragment) {
				assert.NotContains(t, f[0].HTML, "noscript")
				assert.Contains(t, f[0].HTML, tinyURI)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := testSegmenter(t, newFakeSource(quizImages()))
			doc := parseDoc(t, `<html><body><div class="entry-content">`+tt.body+`</div></body></html>`)
			fragments, err := seg.Segment(context.Background(), doc, pageURL)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKinds, kinds(fragments))
			if tt.check != nil && len(fragments) == len(tt.wantKinds) {
				tt.check(t, fragments)
			}
		})
	}
}

func TestStrippedText(t *testing.T) {
	doc := parseDoc(t, `<div id="x">  12. What <b> is </b>
	<script>var advertisement = 1;</script><!-- Enroll -->stress? </div>`)
	assert.Equal(t, "12. Whatisstress?", StrippedText(doc.Find("#x")))
}

func TestSegmenter_Capture(t *testing.T) {
	session := browsertest.NewSession(map[string]string{pageURL: quizPage})
	require.NoError(t, session.Open(context.Background(), pageURL))

	seg := testSegmenter(t, newFakeSource(quizImages()))
	doc, gotURL, err := seg.Capture(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, pageURL, gotURL)
	assert.Equal(t, "Beams Multiple Choice Questions", seg.TopicTitle(doc))
	assert.Equal(t, []string{
		browser.ScrollToBottomScript,
		browser.ClickAllScript(".collapseomatic"),
	}, session.Scripts())
}

func TestSegmenter_CaptureCancelledDuringSettle(t *testing.T) {
	session := browsertest.NewSession(map[string]string{pageURL: quizPage})
	require.NoError(t, session.Open(context.Background(), pageURL))

	site := testSite(t)
	images := testImageProcessor(t, newFakeSource(nil), nil)
	sanitizer, err := NewSanitizer(images, site, testLogger())
	require.NoError(t, err)
	seg := NewSegmenter(site, config.BrowserConfig{ScrollSettle: time.Hour}, sanitizer, images, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, _, err = seg.Capture(ctx, session)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, session.Scripts(), 1)
}

func TestHeaders(t *testing.T) {
	assert.Equal(t, models.Fragment{
		Kind: models.FragmentChapterHeader,
		HTML: "<div class='chapter-header'>1. Stress &amp; Strain</div>",
	}, ChapterHeader("1. Stress & Strain"))
	assert.Equal(t, models.Fragment{
		Kind: models.FragmentTopicHeader,
		HTML: "<h2 class='topic-header'>Beams</h2>",
	}, TopicHeader("Beams"))
	assert.Equal(t, "<p>a</p>\n<p>b</p>\n", JoinFragments([]models.Fragment{{HTML: "<p>a</p>"}, {HTML: "<p>b</p>"}}))
}
