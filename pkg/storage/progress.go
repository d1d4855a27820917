package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/models"
	"github.com/Sriram-PR/quiz-scraper/pkg/parse"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

const progressSuffix = ".progress.json"

// ProgressStore persists a CrawlState as a JSON file so an interrupted harvest can resume
type ProgressStore struct {
	stateDir string
	path     string
	seedURL  string
	log      *logrus.Entry
	mu       sync.Mutex
}

// ProgressPath returns <stateDir>/<stem>.progress.json
func ProgressPath(stateDir, stem string) string {
	return filepath.Join(stateDir, stem+progressSuffix)
}

// NewProgressStore creates a store for the run identified by stem (the slugified
// subject title). seedURL guards against resuming a different harvest.
func NewProgressStore(stateDir, stem, seedURL string, log *logrus.Entry) *ProgressStore {
	return &ProgressStore{
		stateDir: stateDir,
		path:     ProgressPath(stateDir, stem),
		seedURL:  seedURL,
		log:      log,
	}
}

// Path returns the progress file location
func (p *ProgressStore) Path() string {
	return p.path
}

// Exists reports whether a progress file is present
func (p *ProgressStore) Exists() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

// Peek reads the saved state without applying any resume policy.
// Returns nil, nil when no progress file exists.
func (p *ProgressStore) Peek() (*models.CrawlState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.read()
}

func (p *ProgressStore) read() (*models.CrawlState, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: failed to read progress file %s: %w", utils.ErrProgress, p.path, err)
	}

	var state models.CrawlState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: failed to parse progress file %s: %w", utils.ErrProgress, p.path, err)
	}
	if state.CompletedURLs == nil {
		state.CompletedURLs = []string{}
	}
	if state.Failed == nil {
		state.Failed = []models.FailedTopic{}
	}
	return &state, nil
}

// Load implements StateStore. An absent file yields a fresh state; a file
// recorded for a different seed URL is ignored with a warning.
func (p *ProgressStore) Load(runID, title string) (*models.CrawlState, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	saved, err := p.read()
	if err != nil {
		return nil, false, err
	}
	if saved == nil {
		p.log.Infof("No progress file at %s, starting fresh", p.path)
		return models.NewCrawlState(runID, p.seedURL, title), false, nil
	}

	if saved.SeedURL != "" && parse.NormalizeKey(saved.SeedURL) != parse.NormalizeKey(p.seedURL) {
		p.log.Warnf("Progress file %s belongs to seed %s, not %s. Starting fresh; it will be overwritten.",
			p.path, saved.SeedURL, p.seedURL)
		return models.NewCrawlState(runID, p.seedURL, title), false, nil
	}

	if saved.RunID == "" {
		saved.RunID = runID
	}
	if saved.SeedURL == "" {
		saved.SeedURL = p.seedURL
	}
	if saved.Title == "" {
		saved.Title = title
	}
	p.log.WithFields(logrus.Fields{
		"run_id":    saved.RunID,
		"completed": len(saved.CompletedURLs),
		"failed":    len(saved.Failed),
	}).Info("Resuming from progress file")
	return saved, true, nil
}

// Save implements StateStore. The file is replaced atomically so a crash
// mid-write never leaves a truncated checkpoint.
func (p *ProgressStore) Save(state *models.CrawlState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state.UpdatedAt = time.Now()

	if err := os.MkdirAll(p.stateDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create state directory: %w", utils.ErrFilesystem, err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal state: %w", utils.ErrProgress, err)
	}

	tmp, err := os.CreateTemp(p.stateDir, ".progress-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp progress file: %w", utils.ErrFilesystem, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: failed to write progress file: %w", utils.ErrFilesystem, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: failed to sync progress file: %w", utils.ErrFilesystem, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: failed to close progress file: %w", utils.ErrFilesystem, err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		cleanup()
		return fmt.Errorf("%w: failed to replace progress file: %w", utils.ErrFilesystem, err)
	}

	p.log.Debugf("Checkpoint saved: %d completed, %d failed", len(state.CompletedURLs), len(state.Failed))
	return nil
}

// Delete implements StateStore
func (p *ProgressStore) Delete() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to delete progress file: %w", utils.ErrFilesystem, err)
	}
	return nil
}
