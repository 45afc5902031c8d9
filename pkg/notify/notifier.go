package notify

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/fetch"
	"github.com/Sriram-PR/site-indexer/pkg/models"
)

// Options describes one notification run
type Options struct {
	SiteURL               string   // e.g. https://eyecare.example
	SitemapURL            string   // Absolute URL submitted to engines
	URLs                  []string // Every registry URL, used when no priority pages are set
	Config                config.NotifierConfig
	ReportDir             string
	MaxConcurrentChannels int
	Now                   func() time.Time
}

// Notifier tells search engines about a site's sitemap and pages
type Notifier struct {
	opts    Options
	fetcher *fetch.Fetcher
	pacer   *pacer
	authed  *http.Client // nil when credentials did not load
	log     *logrus.Entry
}

// New creates a Notifier. Collaborators are shared across sites so per-host pacing holds globally.
func New(opts Options, fetcher *fetch.Fetcher, limiter *fetch.RateLimiter, hosts *fetch.HostSemaphorePool, log *logrus.Entry) *Notifier {
	opts.SiteURL = strings.TrimRight(opts.SiteURL, "/")
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxConcurrentChannels <= 0 {
		opts.MaxConcurrentChannels = 1
	}
	return &Notifier{
		opts:    opts,
		fetcher: fetcher,
		pacer:   &pacer{limiter: limiter, hosts: hosts},
		log:     log.WithField("component", "notifier"),
	}
}

// WithAuthClient sets the OAuth2 client used by the API strategies
func (n *Notifier) WithAuthClient(c *http.Client) *Notifier {
	n.authed = c
	return n
}

// LoadAuth tries the configured service-account credentials. A failure only removes
// the authenticated strategies from the chains.
func (n *Notifier) LoadAuth(ctx context.Context) {
	if n.opts.Config.CredentialsFile == "" {
		n.log.Info("No Google credentials configured, API strategies disabled")
		return
	}
	client, err := LoadCredentials(ctx, n.opts.Config.CredentialsFile, n.fetcher.Client())
	if err != nil {
		n.log.WithError(err).Warn("Google credentials unavailable, API strategies disabled")
		return
	}
	n.authed = client
}

// PriorityPages returns the absolute URLs notified per page
func (n *Notifier) PriorityPages() []string {
	if pages := ResolvePages(n.opts.SiteURL, n.opts.Config.PriorityPages); len(pages) > 0 {
		return pages
	}
	return n.opts.URLs
}

// Notify runs every enabled channel and writes the reports. Channel failures are recorded
// in the report; the error is only for report files that could not be written.
func (n *Notifier) Notify(ctx context.Context) (*SubmissionReport, error) {
	report := n.Run(ctx)
	if err := WriteReports(n.opts.ReportDir, report, n.opts.Config.VerificationToken, n.log); err != nil {
		return report, err
	}
	return report, nil
}

// Run dispatches the channels and returns the report without writing it
func (n *Notifier) Run(ctx context.Context) *SubmissionReport {
	cfg := n.opts.Config
	pages := n.PriorityPages()
	p := &planner{
		cfg:        cfg,
		siteURL:    n.opts.SiteURL,
		sitemapURL: n.opts.SitemapURL,
		pages:      pages,
		fetcher:    n.fetcher,
		pacer:      n.pacer,
	}
	if n.authed != nil {
		p.authed = n.fetcher.WithClient(n.authed)
	}

	report := &SubmissionReport{
		RunID:         uuid.NewString(),
		Timestamp:     n.opts.Now().UTC(),
		SiteURL:       n.opts.SiteURL,
		SitemapURL:    n.opts.SitemapURL,
		PriorityPages: pages,
		Channels:      make([]ChannelReport, len(cfg.Channels)),
	}
	n.log.WithFields(logrus.Fields{
		"run_id": report.RunID, "channels": cfg.Channels, "pages": len(pages),
	}).Info("Notifying search engines")

	var g errgroup.Group
	g.SetLimit(n.opts.MaxConcurrentChannels)
	for i, channel := range cfg.Channels {
		g.Go(func() error {
			report.Channels[i] = n.runChannel(ctx, p.plan(channel))
			return nil
		})
	}
	_ = g.Wait()

	if n.shouldVerify() && ctx.Err() == nil {
		report.Verification = p.verifier(n.log).Verify(ctx)
	}

	report.finalize(config.ChannelGoogle)
	n.log.WithFields(logrus.Fields{
		"success": report.Counts.Success, "warning": report.Counts.Warning, "error": report.Counts.Error,
		"indexing_status": report.IndexingStatus,
	}).Info("Notification run complete")
	return report
}

// shouldVerify is true when the google channel ran and verification is not disabled
func (n *Notifier) shouldVerify() bool {
	cfg := n.opts.Config
	return n.opts.SitemapURL != "" && cfg.VerifyEnabled() && slices.Contains(cfg.Channels, config.ChannelGoogle)
}

func (n *Notifier) runChannel(ctx context.Context, plan channelPlan) ChannelReport {
	chLog := n.log.WithField("channel", plan.name)
	if len(plan.targets) == 0 {
		plan.targets = []Target{{Label: plan.name}}
		plan.chain = []Strategy{skipStrategy{name: plan.name, status: models.NotificationWarning, message: "no URLs to submit"}}
	}

	var all []NotificationResult
	outcomes := make([]TargetOutcome, 0, len(plan.targets))
	for _, target := range plan.targets {
		results, exhausted := walkChain(ctx, plan.name, target, plan.chain, n.opts.Now)
		outcome := summarizeTarget(target.Label, results, exhausted)
		outcomes = append(outcomes, outcome)
		all = append(all, results...)

		entry := chLog.WithFields(logrus.Fields{"target": target.Label, "status": outcome.Status, "attempts": outcome.Attempts})
		switch outcome.Status {
		case models.NotificationSuccess:
			entry.Debug("Target notified")
		case models.NotificationWarning:
			entry.Warn("Target not notified")
		default:
			entry.Error("Target failed")
		}
		if ctx.Err() != nil {
			break
		}
	}

	rep := buildChannelReport(plan.name, outcomes, all)
	chLog.WithField("status", rep.Status).Info("Channel finished")
	return rep
}
