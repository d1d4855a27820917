package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sriram-PR/quiz-scraper/pkg/config"
)

func TestA4(t *testing.T) {
	opts := A4(25.4)
	assert.Equal(t, 8.27, opts.PaperWidth)
	assert.Equal(t, 11.69, opts.PaperHeight)
	assert.True(t, opts.PrintBackground)
	for _, m := range []float64{opts.MarginTop, opts.MarginBottom, opts.MarginLeft, opts.MarginRight} {
		assert.InDelta(t, 1.0, m, 1e-9)
	}
	assert.InDelta(t, 10/25.4, A4(10).MarginTop, 1e-9)
}

func TestScripts_QuoteSelector(t *testing.T) {
	sel := `ins.adsbygoogle[data-vignette-loaded="true"]`

	click := ClickAllScript(sel)
	assert.Contains(t, click, `document.querySelectorAll("ins.adsbygoogle[data-vignette-loaded=\"true\"]")`)

	vis := VisibleScript(sel)
	assert.Contains(t, vis, `"ins.adsbygoogle[data-vignette-loaded=\"true\"]"`)
	assert.True(t, strings.HasSuffix(vis, "})()"))
}

func TestSessionFlags(t *testing.T) {
	flags := sessionFlags(config.BrowserConfig{Headless: true})
	assert.Equal(t, true, flags["headless"])
	assert.Equal(t, "AutomationControlled", flags["disable-blink-features"])
	assert.NotContains(t, flags, "exclude-switches", "not a Chrome switch")

	assert.Equal(t, false, sessionFlags(config.BrowserConfig{})["headless"])
}
