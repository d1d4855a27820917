// Package guard detects full-page ad interstitials and holds the scrape until
// an operator has dismissed them.
package guard

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/browser"
	"github.com/Sriram-PR/quiz-scraper/pkg/config"
)

// Guard checks the live browser session for ad interstitials
type Guard struct {
	session   browser.Session
	cfg       config.AdGuardConfig
	ack       Acknowledger
	onBlocked func(currentURL string)
	log       *logrus.Entry

	blocked atomic.Int64
}

// New creates a Guard. onBlocked is optional and is called each time an
// interstitial is detected, before blocking.
func New(session browser.Session, cfg config.AdGuardConfig, ack Acknowledger, onBlocked func(currentURL string), log *logrus.Entry) *Guard {
	return &Guard{
		session:   session,
		cfg:       cfg,
		ack:       ack,
		onBlocked: onBlocked,
		log:       log,
	}
}

// Detect reports whether an interstitial is showing, and the URL it was seen on
func (g *Guard) Detect(ctx context.Context) (bool, string, error) {
	current, err := g.session.CurrentURL(ctx)
	if err != nil {
		return false, "", err
	}
	for _, frag := range g.cfg.URLFragments {
		if frag != "" && strings.Contains(current, frag) {
			return true, current, nil
		}
	}
	for _, sel := range g.cfg.Selectors {
		visible, err := g.session.IsVisible(ctx, sel)
		if err != nil {
			return false, current, err
		}
		if visible {
			return true, current, nil
		}
	}
	return false, current, nil
}

// Check blocks while an interstitial is present. Each detection waits for an
// acknowledgment, reconnects the session and checks again. Returns whether the
// session was reconnected, in which case the caller must reload its page.
func (g *Guard) Check(ctx context.Context) (bool, error) {
	if g.cfg.Disabled {
		return false, nil
	}

	reconnected := false
	for {
		if err := ctx.Err(); err != nil {
			return reconnected, err
		}
		blocked, where, err := g.Detect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return reconnected, ctx.Err()
			}
			g.log.Warnf("Ad interstitial check failed, continuing: %v", err)
			return reconnected, nil
		}
		if !blocked {
			return reconnected, nil
		}

		g.blocked.Add(1)
		g.ack.Reset()
		g.log.WithField("url", where).Warn("Ad interstitial detected. Close it in the browser, then acknowledge to continue.")
		if g.onBlocked != nil {
			g.onBlocked(where)
		}

		if err := g.ack.Wait(ctx); err != nil {
			return reconnected, err
		}
		g.log.Info("Acknowledged, reconnecting browser session")
		if err := g.session.Reconnect(ctx); err != nil {
			return reconnected, err
		}
		reconnected = true
	}
}

// Blocked returns how many interstitials have been detected
func (g *Guard) Blocked() int {
	return int(g.blocked.Load())
}
