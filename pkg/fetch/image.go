package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/config"
	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

const defaultImageType = "image/png"

// ImageFetcher downloads images and encodes them as data URIs
type ImageFetcher struct {
	client   *http.Client
	policy   RetryPolicy
	cfg      config.ImageConfig
	siteRoot string
	log      *logrus.Entry
}

// NewImageFetcher creates an ImageFetcher. The client should carry the short image timeout.
// policy's attempt budget is replaced by 1 + cfg.MaxRetries.
func NewImageFetcher(client *http.Client, cfg config.ImageConfig, siteRoot string, policy RetryPolicy, log *logrus.Entry) *ImageFetcher {
	return &ImageFetcher{
		client:   client,
		policy:   policy.WithAttempts(1 + cfg.MaxRetries),
		cfg:      cfg,
		siteRoot: strings.TrimRight(siteRoot, "/"),
		log:      log,
	}
}

// ResolveImageURL turns an image reference into an absolute URL without query,
// fragment, or srcset-style descriptors. A leading "/" is resolved
// against siteRoot, other relative references against pageURL.
// Returns "" when raw cannot be resolved.
func ResolveImageURL(raw, pageURL, siteRoot string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}

	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.Index(raw, ","); i >= 0 {
		raw = raw[:i]
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	raw = fields[0]

	switch {
	case strings.HasPrefix(raw, "//"):
		raw = "https:" + raw
	case strings.HasPrefix(raw, "/"):
		raw = strings.TrimRight(siteRoot, "/") + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		base, err := url.Parse(pageURL)
		if err != nil || !base.IsAbs() {
			return ""
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// Resolve applies ResolveImageURL with the fetcher's site root
func (f *ImageFetcher) Resolve(raw, pageURL string) string {
	return ResolveImageURL(raw, pageURL, f.siteRoot)
}

// Fetch downloads an absolute image URL and returns it as a data URI.
// On any failure the data URI is empty and err says why; callers drop the image.
func (f *ImageFetcher) Fetch(ctx context.Context, imageURL string) (string, error) {
	imgLog := f.log.WithField("image_url", imageURL)

	var dataURI string
	err := f.policy.Do(ctx, imgLog, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
		if err != nil {
			return Permanent(fmt.Errorf("%w: %w", utils.ErrRequestCreation, err))
		}
		req.Header.Set("User-Agent", f.cfg.UserAgent)
		req.Header.Set("Referer", f.cfg.Referer)
		req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

		resp, err := f.client.Do(req)
		if err != nil {
			drain(resp)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			statusErr := fmt.Errorf("status %d %s", resp.StatusCode, resp.Status)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("%w: %w", utils.ErrServerHTTPError, statusErr)
			}
			return Permanent(fmt.Errorf("%w: %w", utils.ErrClientHTTPError, statusErr))
		}

		body, err := f.readBody(resp.Body)
		if err != nil {
			return err
		}
		dataURI = EncodeDataURI(resp.Header.Get("Content-Type"), body)
		return nil
	})
	if err != nil {
		imgLog.Debugf("Image dropped: %v", err)
		return "", fmt.Errorf("%w: %s: %w", utils.ErrImageFetch, imageURL, err)
	}
	return dataURI, nil
}

func (f *ImageFetcher) readBody(r io.Reader) ([]byte, error) {
	if f.cfg.MaxBytes <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
		}
		return body, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if int64(len(body)) > f.cfg.MaxBytes {
		return nil, Permanent(fmt.Errorf("image exceeds max_bytes (%d)", f.cfg.MaxBytes))
	}
	return body, nil
}

// EncodeDataURI builds data:<media type>;base64,<body>. A missing or malformed
// content type falls back to image/png.
func EncodeDataURI(contentType string, body []byte) string {
	mediaType := defaultImageType
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "" {
			mediaType = mt
		}
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(body)
}
