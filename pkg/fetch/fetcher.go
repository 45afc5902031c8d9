package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Fetcher performs HTTP requests with the configured retry policy
type Fetcher struct {
	client *http.Client
	cfg    *config.AppConfig // Retry settings
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// WithClient returns a Fetcher sharing the retry policy but sending through client,
// e.g. an OAuth2-authenticated one.
func (f *Fetcher) WithClient(client *http.Client) *Fetcher {
	clone := *f
	clone.client = client
	return &clone
}

// Client returns the underlying HTTP client
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// backoff returns initial * 2^(attempt-1) capped at max, with +/- 10% jitter
func backoff(attempt int, initial, max time.Duration) time.Duration {
	delay := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || delay > max {
		delay = max
	}
	if delay <= 0 {
		return 0
	}
	var jitter time.Duration
	if spread := int64(delay) / 5; spread > 0 {
		jitter = time.Duration(rand.Int63n(spread)) - delay/10
	}
	if final := delay + jitter; final > 0 {
		return final
	}
	return 0
}

func drain(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}

// FetchWithRetry sends req, retrying network errors, 5xx and 429 with exponential backoff.
// A 2xx response is returned as-is. Other statuses return the response together with a
// *utils.HTTPStatusError; the caller must close the body in both cases.
// Requests with a body are rewound through GetBody before each retry.
func (f *Fetcher) FetchWithRetry(req *http.Request, ctx context.Context) (*http.Response, error) {
	var lastErr error
	reqLog := f.log.WithFields(logrus.Fields{"method": req.Method, "url": req.URL.String()})

	maxRetries := f.cfg.MaxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled during retry backoff: %w (last error: %w)", err, lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", err)
		}

		if attempt > 0 {
			delay := backoff(attempt, f.cfg.InitialRetryDelay, f.cfg.MaxRetryDelay)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("context cancelled during retry delay: %w (last error: %w)", ctx.Err(), lastErr)
			}
		}

		attemptReq := req.WithContext(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("%w: rewind body: %w", utils.ErrRequestCreation, err)
			}
			attemptReq.Body = body
		}

		resp, err := f.client.Do(attemptReq)
		if err != nil {
			drain(resp)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				reqLog.Warnf("Context cancelled/timed out during request: %v", err)
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", err)
			lastErr = err
			continue
		}

		resLog := reqLog.WithFields(logrus.Fields{"status_code": resp.StatusCode, "attempt": attempt})
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			resLog.Debug("Request succeeded")
			return resp, nil
		case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
			resLog.Warn("Transient status, retrying...")
			lastErr = utils.NewHTTPStatusError(resp)
			drain(resp)
			continue
		default:
			resLog.Warn("Non-retryable status")
			return resp, utils.NewHTTPStatusError(resp)
		}
	}

	reqLog.Errorf("All %d attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}
