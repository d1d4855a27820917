package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrawlState_MarkCompleted(t *testing.T) {
	s := NewCrawlState("run-1", "https://example.com/x-questions-answers/", "X")

	assert.False(t, s.IsCompleted("https://example.com/a/"))
	assert.True(t, s.MarkCompleted("https://example.com/a/", "<p>A</p>"))
	assert.True(t, s.MarkCompleted("https://example.com/b/", "<p>B</p>"))

	assert.True(t, s.IsCompleted("https://example.com/a/"))
	assert.Equal(t, "<p>A</p><p>B</p>", s.HTMLBuffer)
	assert.Equal(t, []string{"https://example.com/a/", "https://example.com/b/"}, s.CompletedURLs)

	// Re-marking is a no-op: the buffer stays append-only without duplicates
	assert.False(t, s.MarkCompleted("https://example.com/a/", "<p>A again</p>"))
	assert.Equal(t, "<p>A</p><p>B</p>", s.HTMLBuffer)
}

func TestCrawlState_IndexRebuiltAfterDecode(t *testing.T) {
	s := NewCrawlState("run-1", "seed", "T")
	s.MarkCompleted("u1", "<p>1</p>")

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded CrawlState
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.True(t, decoded.IsCompleted("u1"))
	assert.False(t, decoded.IsCompleted("u2"))
	assert.True(t, decoded.AnyCompleted([]string{"u0", "u1"}))
	assert.False(t, decoded.AnyCompleted([]string{"u2", "u3"}))
}

func TestCrawlState_Failures(t *testing.T) {
	s := NewCrawlState("run-1", "seed", "T")

	s.RecordFailure(FailedTopic{Title: "Beams", URL: "u1", Error: "timeout", Attempts: 3})
	s.RecordFailure(FailedTopic{Title: "Shafts", URL: "u2", Error: "boom", Attempts: 3})
	s.RecordFailure(FailedTopic{Title: "Beams", URL: "u1", Error: "selector", Attempts: 3})

	require.Len(t, s.Failed, 2)
	assert.Equal(t, "selector", s.Failed[0].Error)
	assert.True(t, s.IsFailed("u1"))
	assert.False(t, s.IsFailed("u3"))

	// A later success removes the stale failure
	s.MarkCompleted("u1", "<p>ok</p>")
	require.Len(t, s.Failed, 1)
	assert.Equal(t, "u2", s.Failed[0].URL)
	assert.False(t, s.IsFailed("u1"))
}

func TestCrawlState_IsEmpty(t *testing.T) {
	s := NewCrawlState("run-1", "seed", "T")
	assert.True(t, s.IsEmpty())
	s.MarkCompleted("u1", "  \n ")
	assert.True(t, s.IsEmpty())
	s.MarkCompleted("u2", "<div class='question'>Q. 1.</div>")
	assert.False(t, s.IsEmpty())
}
