package guard

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/quiz-scraper/pkg/browser/browsertest"
	"github.com/Sriram-PR/quiz-scraper/pkg/config"
)

const quizURL = "https://www.sanfoundry.com/strength-materials-questions-answers-stress/"

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testConfig() config.AdGuardConfig {
	return config.AdGuardConfig{
		URLFragments: []string{"#google_vignette"},
		Selectors:    []string{`div[id^="google_vignette"]`},
	}
}

func newSession(t *testing.T) *browsertest.Session {
	t.Helper()
	s := browsertest.NewSession(map[string]string{quizURL: "<html><body></body></html>"})
	require.NoError(t, s.Open(context.Background(), quizURL))
	return s
}

func TestCheck_NoInterstitial(t *testing.T) {
	session := newSession(t)
	g := New(session, testConfig(), NewRendezvous(), nil, testLogger())

	reconnected, err := g.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, reconnected)
	assert.Equal(t, 0, session.Reconnects())
	assert.Equal(t, 0, g.Blocked())
}

func TestCheck_BlocksUntilAcknowledged(t *testing.T) {
	session := newSession(t)
	session.SetURL(quizURL + "#google_vignette")

	ack := NewRendezvous()
	notified := make(chan string, 1)
	g := New(session, testConfig(), ack, func(u string) { notified <- u }, testLogger())

	type result struct {
		reconnected bool
		err         error
	}
	done := make(chan result, 1)
	go func() {
		r, err := g.Check(context.Background())
		done <- result{r, err}
	}()

	select {
	case u := <-notified:
		assert.True(t, strings.HasSuffix(u, "#google_vignette"))
	case <-time.After(2 * time.Second):
		t.Fatal("onBlocked was not called")
	}

	select {
	case <-done:
		t.Fatal("Check returned before acknowledgment")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 0, session.Reconnects())

	ack.Acknowledge()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.True(t, r.reconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("Check did not return after acknowledgment")
	}
	assert.Equal(t, 1, session.Reconnects())
	assert.Equal(t, 1, g.Blocked())
}

func TestCheck_StaleAcknowledgmentIgnored(t *testing.T) {
	session := newSession(t)
	session.SetURL(quizURL + "#google_vignette")

	ack := NewRendezvous()
	ack.Acknowledge() // pressed before anything was blocked
	g := New(session, testConfig(), ack, nil, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := g.Check(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, session.Reconnects())
}

func TestCheck_CancelWhileBlocked(t *testing.T) {
	session := newSession(t)
	session.SetURL(quizURL + "#google_vignette")
	g := New(session, testConfig(), NewRendezvous(), nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Check(ctx)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Check did not honor cancellation")
	}
}

func TestCheck_VisibleSelectorRechecksAfterReconnect(t *testing.T) {
	session := newSession(t)
	var shows atomic.Int32
	shows.Store(2)
	session.Visible = func(_, selector string) bool {
		if selector != `div[id^="google_vignette"]` {
			return false
		}
		return shows.Add(-1) >= 0
	}

	ack := NewRendezvous()
	g := New(session, testConfig(), ack, func(string) { ack.Acknowledge() }, testLogger())

	reconnected, err := g.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, reconnected)
	assert.Equal(t, 2, session.Reconnects())
	assert.Equal(t, 2, g.Blocked())
}

func TestCheck_Disabled(t *testing.T) {
	session := newSession(t)
	session.SetURL(quizURL + "#google_vignette")
	cfg := testConfig()
	cfg.Disabled = true

	reconnected, err := New(session, cfg, NewRendezvous(), nil, testLogger()).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, reconnected)
}

func TestRendezvous(t *testing.T) {
	t.Run("acknowledgments coalesce", func(t *testing.T) {
		r := NewRendezvous()
		r.Acknowledge()
		r.Acknowledge()
		r.Acknowledge()

		require.NoError(t, r.Wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
	})

	t.Run("reset drains", func(t *testing.T) {
		r := NewRendezvous()
		r.Acknowledge()
		r.Reset()
		r.Reset() // empty reset does not block

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
	})
}
