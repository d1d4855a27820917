package resolve

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/models"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

const subjectURL = "https://www.quiz.example/1000-strength-materials-questions-answers/"

const subjectPage = `<html><body>
<div class="entry-content">
<p>Our 1000+ MCQs focus on all topics.</p>
<h2 id="chap-1">1. Simple Stress and Strain</h2>
<table><tr>
<td><a href="https://www.quiz.example/stress-mcq/">Stress</a></td>
<td><a href="/strain-mcq/">Strain</a></td>
<td><a href="https://www.quiz.example/stress-mcq/#top">Stress again</a></td>
</tr></table>
<p><a href="https://www.quiz.example/not-in-a-list/">Loose link</a></p>
<h2><span id="chap-2"></span>2. Strength of Materials &amp; Structures</h2>
<ul>
<li><a href="https://quiz.example/beams-mcq/">Beams</a></li>
<li><a href="https://other.example/ads/">Sponsored</a></li>
<li><a href="https://www.quiz.example/empty/">  </a></li>
<li><a href="javascript:void(0)">Script</a></li>
</ul>
<div><ol><li><a href="https://www.quiz.example/columns-mcq/">Columns</a></li></ol></div>
<h2>3. Torsion</h2>
<ol><li><a href="https://www.quiz.example/torsion-mcq/">Shafts</a></li></ol>
<h2>Related Posts</h2>
<ul><li><a href="https://www.quiz.example/unrelated/">Unrelated</a></li></ul>
</div>
</body></html>`

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testConfig(t *testing.T, mutate func(*config.AppConfig)) config.AppConfig {
	t.Helper()
	cfg := config.AppConfig{Target: config.TargetConfig{SeedURL: subjectURL, Title: "Strength of Materials"}}
	if mutate != nil {
		mutate(&cfg)
	}
	_, err := cfg.Validate()
	require.NoError(t, err)
	return cfg
}

func testResolver(t *testing.T, cfg config.AppConfig, robots RobotsChecker) *Resolver {
	t.Helper()
	r, err := NewResolver(cfg.Site, cfg.Target, robots, testLogger())
	require.NoError(t, err)
	return r
}

func staticLoader(t *testing.T, page string) (Loader, *[]string) {
	var loaded []string
	return func(ctx context.Context, pageURL string) (*goquery.Document, error) {
		loaded = append(loaded, pageURL)
		return goquery.NewDocumentFromReader(strings.NewReader(page))
	}, &loaded
}

func urls(topics []models.TopicRef) []string {
	out := make([]string, 0, len(topics))
	for _, tp := range topics {
		out = append(out, tp.URL)
	}
	return out
}

func TestClassify(t *testing.T) {
	r := testResolver(t, testConfig(t, nil), nil)
	tests := []struct {
		seed string
		want models.LinkKind
	}{
		{subjectURL, models.LinkKindSubject},
		{"https://www.quiz.example/1000-strength-materials-questions-answers", models.LinkKindSubject},
		{subjectURL + "#chap-2", models.LinkKindChapter},
		{"https://www.quiz.example/stress-mcq/", models.LinkKindTopic},
		{"https://www.quiz.example/questions-answers-stress/", models.LinkKindTopic},
	}
	for _, tt := range tests {
		t.Run(tt.seed, func(t *testing.T) {
			got, err := r.Classify(tt.seed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := r.Classify("http://[::1")
	assert.ErrorIs(t, err, utils.ErrParsing)
}

func TestResolve_Topic(t *testing.T) {
	r := testResolver(t, testConfig(t, nil), nil)
	load, loaded := staticLoader(t, "")

	topics, kind, err := r.Resolve(context.Background(), "https://www.quiz.example/stress-mcq/", load)
	require.NoError(t, err)
	assert.Equal(t, models.LinkKindTopic, kind)
	assert.Equal(t, []models.TopicRef{{Title: "Strength of Materials", URL: "https://www.quiz.example/stress-mcq/"}}, topics)
	assert.Empty(t, *loaded, "a topic seed is not loaded")
}

func TestResolve_Subject(t *testing.T) {
	r := testResolver(t, testConfig(t, nil), nil)
	load, loaded := staticLoader(t, subjectPage)

	topics, kind, err := r.Resolve(context.Background(), subjectURL, load)
	require.NoError(t, err)
	assert.Equal(t, models.LinkKindSubject, kind)
	assert.Equal(t, []string{subjectURL}, *loaded)

	assert.Equal(t, []string{
		"https://www.quiz.example/stress-mcq/",
		"https://www.quiz.example/strain-mcq/",
		"https://quiz.example/beams-mcq/",
		"https://www.quiz.example/columns-mcq/",
		"https://www.quiz.example/torsion-mcq/",
	}, urls(topics), "unnumbered headings are not chapters")

	assert.Equal(t, "Stress", topics[0].Title)
	assert.Equal(t, "1. Simple Stress and Strain", topics[0].Chapter)
	assert.Equal(t, 1, topics[0].ChapterIndex)
	assert.Equal(t, "2. Strength of Materials & Structures", topics[2].Chapter)
	assert.Equal(t, 2, topics[3].ChapterIndex)
}

func TestResolve_SubjectEveryHeadingWhenPatternCleared(t *testing.T) {
	cfg := testConfig(t, func(c *config.AppConfig) {
		empty := ""
		c.Site.ChapterTitlePattern = &empty
	})
	r := testResolver(t, cfg, nil)
	load, _ := staticLoader(t, subjectPage)

	topics, _, err := r.Resolve(context.Background(), subjectURL, load)
	require.NoError(t, err)
	require.Len(t, topics, 6)
	last := topics[5]
	assert.Equal(t, "https://www.quiz.example/unrelated/", last.URL)
	assert.Equal(t, "Related Posts", last.Chapter)
	assert.Equal(t, 4, last.ChapterIndex)
}

func TestResolve_SubjectChapterRange(t *testing.T) {
	cfg := testConfig(t, func(c *config.AppConfig) {
		c.Target.StartChapter = 2
		c.Target.EndChapter = 3
	})
	r := testResolver(t, cfg, nil)
	load, _ := staticLoader(t, subjectPage)

	topics, _, err := r.Resolve(context.Background(), subjectURL, load)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://quiz.example/beams-mcq/",
		"https://www.quiz.example/columns-mcq/",
		"https://www.quiz.example/torsion-mcq/",
	}, urls(topics), "unmatched headings bound the scan but are not chapters")
	assert.Equal(t, 3, topics[2].ChapterIndex)
}

func TestResolve_Chapter(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     []string
	}{
		{"heading id", "chap-1", []string{"https://www.quiz.example/stress-mcq/", "https://www.quiz.example/strain-mcq/"}},
		{"descendant id", "chap-2", []string{"https://quiz.example/beams-mcq/", "https://www.quiz.example/columns-mcq/"}},
		{"slug", "3-torsion", []string{"https://www.quiz.example/torsion-mcq/"}},
		{"slug without connectors", "2-strength-materials-structures", []string{"https://quiz.example/beams-mcq/", "https://www.quiz.example/columns-mcq/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testResolver(t, testConfig(t, nil), nil)
			load, _ := staticLoader(t, subjectPage)
			topics, kind, err := r.Resolve(context.Background(), subjectURL+"#"+tt.fragment, load)
			require.NoError(t, err)
			assert.Equal(t, models.LinkKindChapter, kind)
			assert.Equal(t, tt.want, urls(topics))
		})
	}

	t.Run("unknown fragment", func(t *testing.T) {
		r := testResolver(t, testConfig(t, nil), nil)
		load, _ := staticLoader(t, subjectPage)
		_, _, err := r.Resolve(context.Background(), subjectURL+"#no-such-chapter", load)
		assert.ErrorIs(t, err, utils.ErrNoTopics)
	})
}

func TestResolve_Errors(t *testing.T) {
	r := testResolver(t, testConfig(t, nil), nil)

	t.Run("missing content region", func(t *testing.T) {
		load, _ := staticLoader(t, `<html><body><h2>1. Stress</h2></body></html>`)
		_, _, err := r.Resolve(context.Background(), subjectURL, load)
		assert.ErrorIs(t, err, utils.ErrContentSelector)
	})

	t.Run("no topics", func(t *testing.T) {
		load, _ := staticLoader(t, `<html><body><div class="entry-content"><h2>1. Stress</h2><p>Coming soon</p></div></body></html>`)
		_, _, err := r.Resolve(context.Background(), subjectURL, load)
		assert.ErrorIs(t, err, utils.ErrNoTopics)
	})

	t.Run("loader failure", func(t *testing.T) {
		boom := errors.New("navigation failed")
		_, _, err := r.Resolve(context.Background(), subjectURL, func(ctx context.Context, pageURL string) (*goquery.Document, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
	})
}

type denyRobots struct{ prefix string }

func (d denyRobots) Allowed(ctx context.Context, u *url.URL) bool {
	return !strings.HasPrefix(u.Path, d.prefix)
}

func TestResolve_RobotsFilter(t *testing.T) {
	r := testResolver(t, testConfig(t, nil), denyRobots{prefix: "/st"})
	load, _ := staticLoader(t, subjectPage)

	topics, _, err := r.Resolve(context.Background(), subjectURL+"#chap-1", load)
	assert.Nil(t, topics)
	assert.ErrorIs(t, err, utils.ErrNoTopics)

	topics, _, err = r.Resolve(context.Background(), subjectURL+"#chap-2", load)
	require.NoError(t, err)
	assert.Len(t, topics, 2)
}
