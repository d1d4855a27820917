package models

import "time"

// TopicRef identifies one quiz page to harvest. URL is the identity.
type TopicRef struct {
	Title        string `json:"title" yaml:"title"`
	URL          string `json:"url" yaml:"url"`
	Chapter      string `json:"chapter,omitempty" yaml:"chapter,omitempty"`             // Chapter heading text (empty for single-topic runs)
	ChapterIndex int    `json:"chapter_index,omitempty" yaml:"chapter_index,omitempty"` // 1-based position of the chapter on the subject page
}

// Fragment is one classified piece of output HTML. Never mutated after creation.
type Fragment struct {
	Kind FragmentKind
	HTML string
}

// FailedTopic records a topic that exhausted its retries
type FailedTopic struct {
	Title       string    `json:"title" yaml:"title"`
	URL         string    `json:"url" yaml:"url"`
	Error       string    `json:"error" yaml:"error"`
	ErrorType   string    `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	Attempts    int       `json:"attempts" yaml:"attempts"`
	LastAttempt time.Time `json:"last_attempt" yaml:"last_attempt"`
}

// ImageRecord is an inlined image: source URL -> data URI plus its render class
type ImageRecord struct {
	SourceURL string
	DataURI   string
	Class     ImageClass
}

// ImageDBEntry stores a fetched image in the cross-run cache
type ImageDBEntry struct {
	Status      ImageStatus `json:"status"`
	DataURI     string      `json:"data_uri,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	FetchedAt   time.Time   `json:"fetched_at"`
}
