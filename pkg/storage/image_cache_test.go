package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/quiz-scraper/pkg/models"
)

func newTestCache(t *testing.T) (*ImageCache, string) {
	t.Helper()
	dir := t.TempDir()
	cache, err := OpenImageCache(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache, dir
}

func TestImageCache_CheckImageStatus(t *testing.T) {
	cache, _ := newTestCache(t)

	t.Run("not found", func(t *testing.T) {
		status, entry, err := cache.CheckImageStatus("https://example.com/missing.png")
		require.NoError(t, err)
		assert.Equal(t, models.ImageStatusNotFound, status)
		assert.Nil(t, entry)
	})

	t.Run("success entry", func(t *testing.T) {
		url := "https://example.com/wp-content/uploads/q1.png"
		require.NoError(t, cache.UpdateImageStatus(url, &models.ImageDBEntry{
			Status:      models.ImageStatusSuccess,
			DataURI:     "data:image/png;base64,AAAA",
			ContentType: "image/png",
			FetchedAt:   time.Now(),
		}))

		status, entry, err := cache.CheckImageStatus(url)
		require.NoError(t, err)
		assert.Equal(t, models.ImageStatusSuccess, status)
		require.NotNil(t, entry)
		assert.Equal(t, "data:image/png;base64,AAAA", entry.DataURI)
		assert.Equal(t, "image/png", entry.ContentType)
	})
}

func TestImageCache_UpdateSkipsUnsuccessful(t *testing.T) {
	cache, _ := newTestCache(t)
	url := "https://example.com/broken.png"

	require.NoError(t, cache.UpdateImageStatus(url, nil))
	require.NoError(t, cache.UpdateImageStatus(url, &models.ImageDBEntry{Status: models.ImageStatusNotFound}))
	require.NoError(t, cache.UpdateImageStatus(url, &models.ImageDBEntry{Status: models.ImageStatusSuccess}))

	status, _, err := cache.CheckImageStatus(url)
	require.NoError(t, err)
	assert.Equal(t, models.ImageStatusNotFound, status)

	count, err := cache.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestImageCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	url := "https://example.com/a.png"

	first, err := OpenImageCache(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, first.UpdateImageStatus(url, &models.ImageDBEntry{Status: models.ImageStatusSuccess, DataURI: "data:image/png;base64,AA=="}))
	require.NoError(t, first.Close())

	second, err := OpenImageCache(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	status, entry, err := second.CheckImageStatus(url)
	require.NoError(t, err)
	assert.Equal(t, models.ImageStatusSuccess, status)
	assert.Equal(t, "data:image/png;base64,AA==", entry.DataURI)

	count, err := second.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRemoveImageCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenImageCache(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, cache.Close())
	assert.DirExists(t, ImageCachePath(dir))

	require.NoError(t, RemoveImageCache(dir))
	assert.NoDirExists(t, ImageCachePath(dir))
}

func TestImageCache_RunGCStopsOnCancel(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cache.RunGC(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunGC did not stop after cancellation")
	}
}

func TestImageCache_CloseTwice(t *testing.T) {
	cache, _ := newTestCache(t)
	require.NoError(t, cache.Close())
	assert.NoError(t, cache.Close())
}
