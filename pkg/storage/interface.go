package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/quiz-scraper/pkg/models"
)

// ImageStore caches inlined images across runs
type ImageStore interface {
	// CheckImageStatus retrieves the cached entry for a normalized image URL.
	// Returns ImageStatusSuccess with the entry, ImageStatusNotFound, or ImageStatusDBError with the error
	CheckImageStatus(normalizedImgURL string) (status models.ImageStatus, entry *models.ImageDBEntry, err error)

	// UpdateImageStatus stores the entry for a normalized image URL
	UpdateImageStatus(normalizedImgURL string, entry *models.ImageDBEntry) error
}

// ImageStoreAdmin handles lifecycle of the image cache
type ImageStoreAdmin interface {
	ImageStore

	// Count returns the number of cached images
	Count() (int, error)

	// RunGC runs periodic garbage collection. Should be run in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database connection
	Close() error
}

// StateStore persists the crawl state between runs
type StateStore interface {
	// Load returns the saved state, or a fresh one when none exists.
	// resumed reports whether saved state was found and accepted
	Load(runID, title string) (state *models.CrawlState, resumed bool, err error)

	// Save checkpoints the state
	Save(state *models.CrawlState) error

	// Delete removes the saved state. A missing file is not an error
	Delete() error

	// Path returns where the state is stored
	Path() string
}

var (
	_ ImageStoreAdmin = (*ImageCache)(nil)
	_ StateStore      = (*ProgressStore)(nil)
)
