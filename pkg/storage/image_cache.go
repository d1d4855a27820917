package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/log"
	"github.com/Sriram-PR/quiz-scraper/pkg/models"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

const (
	imageKeyPrefix = "img:"        // Prefix for image URL keys in DB
	imageCacheDir  = "image_cache" // Subdirectory name within stateDir for Badger DB files
)

// ImageCache implements ImageStore using BadgerDB
type ImageCache struct {
	db  *badger.DB
	log *logrus.Entry
}

// ImageCachePath returns the badger directory used under stateDir
func ImageCachePath(stateDir string) string {
	return filepath.Join(stateDir, imageCacheDir)
}

// OpenImageCache opens (or creates) the image cache under stateDir
func OpenImageCache(stateDir string, logger *logrus.Entry) (*ImageCache, error) {
	dbPath := ImageCachePath(stateDir)
	logger.Infof("Opening image cache at: %s", dbPath)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create image cache directory %s: %w", utils.ErrFilesystem, dbPath, err)
	}

	badgerLogger := log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))
	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open badger database at %s: %w", utils.ErrDatabase, dbPath, err)
	}
	return &ImageCache{db: db, log: logger}, nil
}

// RemoveImageCache deletes the cache directory under stateDir. The cache must not be open.
func RemoveImageCache(stateDir string) error {
	if err := os.RemoveAll(ImageCachePath(stateDir)); err != nil {
		return fmt.Errorf("%w: removing image cache: %w", utils.ErrFilesystem, err)
	}
	return nil
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent prefetch workers can write overlapping keys; conflicts resolve in microseconds.
func (c *ImageCache) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		c.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// CheckImageStatus implements ImageStore
func (c *ImageCache) CheckImageStatus(normalizedImgURL string) (models.ImageStatus, *models.ImageDBEntry, error) {
	status := models.ImageStatusNotFound
	var entry *models.ImageDBEntry
	key := []byte(imageKeyPrefix + normalizedImgURL)

	errView := c.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting image key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			var decoded models.ImageDBEntry
			if len(val) == 0 {
				c.log.Warnf("Image key '%s' found with empty value. Treating as 'not_found'.", string(key))
				return nil
			}
			if errJson := json.Unmarshal(val, &decoded); errJson != nil {
				c.log.Warnf("Failed to unmarshal ImageDBEntry for key '%s': %v. Treating as 'not_found'.", string(key), errJson)
				return nil
			}
			if decoded.Status != models.ImageStatusSuccess || decoded.DataURI == "" {
				return nil
			}
			entry = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		c.log.Errorf("DB View error in CheckImageStatus for key '%s': %v", string(key), errView)
		return models.ImageStatusDBError, nil, errView
	}
	return status, entry, nil
}

// UpdateImageStatus implements ImageStore. Only successful fetches are worth storing.
func (c *ImageCache) UpdateImageStatus(normalizedImgURL string, entry *models.ImageDBEntry) error {
	if entry == nil || entry.Status != models.ImageStatusSuccess || entry.DataURI == "" {
		return nil
	}
	key := []byte(imageKeyPrefix + normalizedImgURL)

	entryBytes, errJson := json.Marshal(entry)
	if errJson != nil {
		return fmt.Errorf("%w: failed to marshal ImageDBEntry for key '%s': %w", utils.ErrParsing, string(key), errJson)
	}

	err := c.dbUpdate(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key, entryBytes))
	})
	if err != nil {
		c.log.WithField("key", string(key)).Errorf("DB Update error in UpdateImageStatus: %v", err)
		return fmt.Errorf("%w: failed setting image entry for key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	return nil
}

// Count returns the number of cached images
func (c *ImageCache) Count() (int, error) {
	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(imageKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting image keys: %w", utils.ErrDatabase, err)
	}
	return count, nil
}

// RunGC runs BadgerDB's value log garbage collection until ctx is done
func (c *ImageCache) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.log.Debug("Image cache GC goroutine started.")
	for {
		select {
		case <-ticker.C:
			if c.db == nil || c.db.IsClosed() {
				continue
			}
			var err error
			for err == nil {
				err = c.db.RunValueLogGC(0.5)
			}
			if !errors.Is(err, badger.ErrNoRewrite) {
				c.log.Errorf("Image cache GC error: %v", err)
			}
		case <-ctx.Done():
			c.log.Debugf("Stopping image cache GC: %v", ctx.Err())
			return
		}
	}
}

// Close implements ImageStoreAdmin
func (c *ImageCache) Close() error {
	if c.db == nil || c.db.IsClosed() {
		return nil
	}
	if err := c.db.Close(); err != nil {
		c.log.Errorf("Error closing image cache: %v", err)
		return fmt.Errorf("%w: closing image cache: %w", utils.ErrDatabase, err)
	}
	return nil
}
