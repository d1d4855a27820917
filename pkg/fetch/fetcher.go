package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/quiz-scraper/pkg/utils"
)

// Fetcher handles making HTTP requests with the shared retry policy, using an underlying http.Client
type Fetcher struct {
	client *http.Client
	policy RetryPolicy
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, policy RetryPolicy, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		policy: policy,
		log:    log,
	}
}

// FetchWithRetry performs an HTTP request associated with the provided context.
// Network errors, 5xx, and 429 are retried under the policy; other 4xx and
// unexpected statuses are returned at once together with the response, whose
// body the caller must close.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	reqLog := f.log.WithField("url", req.URL.String())

	var final *http.Response
	err := f.policy.Do(ctx, reqLog, func(ctx context.Context, attempt int) error {
		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			drain(resp)
			return err
		}

		statusCode := resp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Successfully fetched")
			final = resp
			return nil
		case statusCode >= 500:
			drain(resp)
			return fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, resp.Status)
		case statusCode == http.StatusTooManyRequests:
			drain(resp)
			return fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, resp.Status)
		case statusCode >= 400:
			resLog.Warn("Client error (4xx), not retrying")
			final = resp
			return Permanent(fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, resp.Status))
		default:
			resLog.Warnf("Non-retryable/unexpected status: %d", statusCode)
			final = resp
			return Permanent(fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, resp.Status))
		}
	})
	if err != nil {
		return final, err
	}
	return final, nil
}

// drain discards and closes a response body so the connection can be reused
func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
