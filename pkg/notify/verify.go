package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/fetch"
	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/parse"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Verification methods
const (
	VerifySearchConsole = "search_console"
	VerifyAccessibility = "accessibility"
)

// maxVerifyBody caps how much of the live sitemap is read
const maxVerifyBody = config.MaxSitemapBytes + 1

// SitemapVerification is the check made after submission: the Search Console record of the
// sitemap when authenticated, otherwise a fetch of the live file.
type SitemapVerification struct {
	Method         string                    `json:"method"`
	Status         models.NotificationStatus `json:"status"`
	StatusCode     int                       `json:"statusCode,omitempty"`
	LastSubmitted  string                    `json:"lastSubmitted,omitempty"`
	LastDownloaded string                    `json:"lastDownloaded,omitempty"`
	IsPending      bool                      `json:"isPending,omitempty"`
	Errors         int64                     `json:"errors,omitempty"`
	Warnings       int64                     `json:"warnings,omitempty"`
	Root           string                    `json:"root,omitempty"` // urlset or sitemapindex
	URLCount       int                       `json:"urlCount,omitempty"`
	Message        string                    `json:"message,omitempty"`
	Error          string                    `json:"error,omitempty"`
}

// searchConsoleSitemap is the subset of the sitemaps.get resource we read.
// The API encodes int64 counters as JSON strings.
type searchConsoleSitemap struct {
	Path           string `json:"path"`
	LastSubmitted  string `json:"lastSubmitted"`
	LastDownloaded string `json:"lastDownloaded"`
	IsPending      bool   `json:"isPending"`
	Errors         int64  `json:"errors,string"`
	Warnings       int64  `json:"warnings,string"`
}

// verifier checks the submitted sitemap once the channels are done
type verifier struct {
	sitemapURL string
	lookupURL  string         // Search Console sitemaps.get endpoint
	fetcher    *fetch.Fetcher // For the live sitemap
	authed     *fetch.Fetcher // nil without credentials
	pacer      *pacer
	delay      time.Duration
	log        *logrus.Entry
}

func (p *planner) verifier(log *logrus.Entry) *verifier {
	return &verifier{
		sitemapURL: p.sitemapURL,
		lookupURL:  p.searchConsoleURL(),
		fetcher:    p.fetcher,
		authed:     p.authed,
		pacer:      p.pacer,
		delay:      p.cfg.PerPageDelay,
		log:        log.WithField("step", "verify"),
	}
}

// Verify asks Search Console first when authenticated and falls back to fetching the sitemap
func (v *verifier) Verify(ctx context.Context) *SitemapVerification {
	if v.authed != nil {
		res, err := v.searchConsole(ctx)
		if err == nil {
			return res
		}
		v.log.WithError(err).Warn("Search Console sitemap lookup failed, checking accessibility")
	}
	return v.accessibility(ctx)
}

func (v *verifier) searchConsole(ctx context.Context) (*SitemapVerification, error) {
	code, body, err := v.get(ctx, v.authed, v.lookupURL)
	if err != nil {
		return nil, err
	}
	var sm searchConsoleSitemap
	if err := json.Unmarshal(body, &sm); err != nil {
		return nil, fmt.Errorf("%w: sitemaps.get response: %w", utils.ErrParsing, err)
	}

	res := &SitemapVerification{
		Method:         VerifySearchConsole,
		Status:         models.NotificationSuccess,
		StatusCode:     code,
		LastSubmitted:  sm.LastSubmitted,
		LastDownloaded: sm.LastDownloaded,
		IsPending:      sm.IsPending,
		Errors:         sm.Errors,
		Warnings:       sm.Warnings,
		Message:        "OK",
	}
	if sm.Errors > 0 {
		res.Status = models.NotificationWarning
		res.Message = fmt.Sprintf("Search Console reports %d error(s)", sm.Errors)
	}
	if res.LastDownloaded == "" {
		res.LastDownloaded = "pending"
	}
	v.log.WithFields(logrus.Fields{
		"last_submitted": res.LastSubmitted, "last_downloaded": res.LastDownloaded, "errors": res.Errors,
	}).Info("Sitemap status from Search Console")
	return res, nil
}

func (v *verifier) accessibility(ctx context.Context) *SitemapVerification {
	res := &SitemapVerification{Method: VerifyAccessibility}
	code, body, err := v.get(ctx, v.fetcher, v.sitemapURL)
	res.StatusCode = code
	if err != nil {
		res.Status = models.NotificationError
		res.Error = err.Error()
		res.Message = "sitemap not accessible"
		v.log.WithError(err).Error("Sitemap not accessible")
		return res
	}

	doc, perr := parse.ParseDocument(body)
	switch {
	case perr != nil:
		res.Status = models.NotificationWarning
		res.Error = perr.Error()
		res.Message = "sitemap is accessible but may have formatting issues"
	case !parse.HasXMLDeclaration(body):
		res.Status = models.NotificationWarning
		res.Root = doc.Root
		res.Message = "sitemap is accessible but has no XML declaration"
	default:
		res.Status = models.NotificationSuccess
		res.Root = doc.Root
		res.Message = "sitemap is accessible and well-formed"
	}
	if doc != nil {
		switch {
		case doc.URLSet != nil:
			res.URLCount = len(doc.URLSet.URLs)
		case doc.Index != nil:
			res.URLCount = len(doc.Index.Sitemaps)
		}
	}
	v.log.WithFields(logrus.Fields{"status": res.Status, "root": res.Root, "entries": res.URLCount}).Info("Sitemap accessibility checked")
	return res
}

// get sends a paced GET and returns the status code and body. Non-2xx is an error.
func (v *verifier) get(ctx context.Context, f *fetch.Fetcher, target string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)
	}

	host := req.URL.Host
	var (
		code int
		body []byte
	)
	err = v.pacer.hosts.Do(ctx, host, func() error {
		if err := v.pacer.limiter.ApplyDelay(ctx, host, v.delay); err != nil {
			return err
		}
		resp, ferr := f.FetchWithRetry(req, ctx)
		v.pacer.limiter.UpdateLastRequestTime(host)
		if resp != nil {
			defer resp.Body.Close()
			code = resp.StatusCode
			if ferr == nil {
				data, rerr := io.ReadAll(io.LimitReader(resp.Body, maxVerifyBody))
				if rerr != nil {
					return fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, rerr)
				}
				body = data
			}
		}
		return ferr
	})
	if err != nil {
		if c := utils.StatusCode(err); c != 0 {
			code = c
		}
		return code, nil, err
	}
	return code, body, nil
}
