package models

import (
	"strings"
	"time"
)

// CrawlState is the resumable record of a harvest.
// The HTML buffer is append-only; CompletedURLs is the idempotency key set.
type CrawlState struct {
	RunID         string        `json:"run_id"`
	SeedURL       string        `json:"seed_url"`
	Title         string        `json:"title"`
	CompletedURLs []string      `json:"completed_urls"`
	HTMLBuffer    string        `json:"html_buffer"`
	Failed        []FailedTopic `json:"failed"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	completed map[string]struct{}
}

// NewCrawlState returns an empty state for a fresh run
func NewCrawlState(runID, seedURL, title string) *CrawlState {
	return &CrawlState{
		RunID:         runID,
		SeedURL:       seedURL,
		Title:         title,
		CompletedURLs: []string{},
		Failed:        []FailedTopic{},
		CreatedAt:     time.Now(),
	}
}

func (s *CrawlState) index() {
	if s.completed != nil {
		return
	}
	s.completed = make(map[string]struct{}, len(s.CompletedURLs))
	for _, u := range s.CompletedURLs {
		s.completed[u] = struct{}{}
	}
}

// IsCompleted reports whether the topic URL was already harvested
func (s *CrawlState) IsCompleted(url string) bool {
	s.index()
	_, ok := s.completed[url]
	return ok
}

// AnyCompleted reports whether at least one of urls was already harvested
func (s *CrawlState) AnyCompleted(urls []string) bool {
	for _, u := range urls {
		if s.IsCompleted(u) {
			return true
		}
	}
	return false
}

// MarkCompleted appends the topic's HTML to the buffer and records its URL.
// A URL already completed is ignored, keeping the buffer free of duplicates.
func (s *CrawlState) MarkCompleted(url, html string) bool {
	if s.IsCompleted(url) {
		return false
	}
	s.HTMLBuffer += html
	s.CompletedURLs = append(s.CompletedURLs, url)
	s.completed[url] = struct{}{}
	s.clearFailure(url)
	return true
}

// RecordFailure stores or replaces the failure entry for a topic
func (s *CrawlState) RecordFailure(f FailedTopic) {
	for i := range s.Failed {
		if s.Failed[i].URL == f.URL {
			s.Failed[i] = f
			return
		}
	}
	s.Failed = append(s.Failed, f)
}

// IsFailed reports whether the topic URL has a recorded failure
func (s *CrawlState) IsFailed(url string) bool {
	for _, f := range s.Failed {
		if f.URL == url {
			return true
		}
	}
	return false
}

func (s *CrawlState) clearFailure(url string) {
	kept := s.Failed[:0]
	for _, f := range s.Failed {
		if f.URL != url {
			kept = append(kept, f)
		}
	}
	s.Failed = kept
}

// IsEmpty reports whether no content has been accumulated
func (s *CrawlState) IsEmpty() bool {
	return strings.TrimSpace(s.HTMLBuffer) == ""
}
