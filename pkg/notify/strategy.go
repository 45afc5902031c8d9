package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sriram-PR/site-indexer/pkg/fetch"
	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Outcome tells walkChain whether to stop
type Outcome int

const (
	OutcomeSuccess   Outcome = iota // Stop, target done
	OutcomeRetryable                // Fall through to the next strategy
	OutcomeFatal                    // Stop, nothing else will work (cancelled run)
)

// Attempt is the result of one strategy against one target
type Attempt struct {
	Outcome Outcome
	Status  models.NotificationStatus
	Code    int
	Err     error
	Message string
}

// Target is what a chain is walked for: a sitemap URL, a page, or a batch of pages
type Target struct {
	Label string
	URLs  []string
}

// Strategy is one way of delivering a notification
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, target Target) Attempt
}

// walkChain tries strategies in order until one succeeds or fails fatally.
// exhausted is true when every strategy was tried without success.
func walkChain(ctx context.Context, channel string, target Target, chain []Strategy, now func() time.Time) (results []NotificationResult, exhausted bool) {
	for _, s := range chain {
		a := s.Attempt(ctx, target)
		res := NotificationResult{
			Channel:    channel,
			Target:     target.Label,
			Strategy:   s.Name(),
			Status:     a.Status,
			StatusCode: a.Code,
			Message:    a.Message,
			Timestamp:  now().UTC(),
		}
		if a.Err != nil {
			res.Error = a.Err.Error()
			res.ErrorCategory = utils.CategorizeError(a.Err)
		}
		results = append(results, res)

		switch a.Outcome {
		case OutcomeSuccess:
			return results, false
		case OutcomeFatal:
			return results, false
		}
	}
	return results, len(chain) > 0
}

// stepKind decides how a non-2xx response is reported
type stepKind int

const (
	stepAPI    stepKind = iota // Authenticated API call
	stepDirect                 // Unauthenticated call to the same endpoint
	stepPing                   // Last resort; a failure here is an error
)

// pacer serializes and spaces requests per endpoint host
type pacer struct {
	limiter *fetch.RateLimiter
	hosts   *fetch.HostSemaphorePool
}

// httpStrategy sends one request built from the target
type httpStrategy struct {
	name    string
	kind    stepKind
	fetcher *fetch.Fetcher
	pacer   *pacer
	delay   time.Duration
	build   func(ctx context.Context, target Target) (*http.Request, error)
}

func (s *httpStrategy) Name() string { return s.name }

func (s *httpStrategy) Attempt(ctx context.Context, target Target) Attempt {
	if err := ctx.Err(); err != nil {
		return Attempt{Outcome: OutcomeFatal, Status: models.NotificationError, Err: err}
	}
	req, err := s.build(ctx, target)
	if err != nil {
		return Attempt{Outcome: OutcomeRetryable, Status: models.NotificationError, Err: fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)}
	}

	host := req.URL.Host
	var resp *http.Response
	err = s.pacer.hosts.Do(ctx, host, func() error {
		if err := s.pacer.limiter.ApplyDelay(ctx, host, s.delay); err != nil {
			return err
		}
		r, ferr := s.fetcher.FetchWithRetry(req, ctx)
		s.pacer.limiter.UpdateLastRequestTime(host)
		resp = r
		return ferr
	})
	code := 0
	if resp != nil {
		code = resp.StatusCode
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
	return s.classify(ctx, code, err)
}

func (s *httpStrategy) classify(ctx context.Context, code int, err error) Attempt {
	if err == nil {
		return Attempt{Outcome: OutcomeSuccess, Status: models.NotificationSuccess, Code: code}
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return Attempt{Outcome: OutcomeFatal, Status: models.NotificationError, Err: err}
	}
	if c := utils.StatusCode(err); c != 0 {
		status := models.NotificationWarning
		if s.kind == stepPing {
			status = models.NotificationError
		}
		return Attempt{Outcome: OutcomeRetryable, Status: status, Code: c, Err: err}
	}
	return Attempt{Outcome: OutcomeRetryable, Status: models.NotificationError, Err: err}
}

// skipStrategy records a fixed outcome without any network call
type skipStrategy struct {
	name    string
	status  models.NotificationStatus
	message string
}

func (s skipStrategy) Name() string { return s.name }

func (s skipStrategy) Attempt(context.Context, Target) Attempt {
	return Attempt{Outcome: OutcomeFatal, Status: s.status, Message: s.message}
}
