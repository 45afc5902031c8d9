package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/fetch"
	"github.com/Sriram-PR/site-indexer/pkg/notify"
	"github.com/Sriram-PR/site-indexer/pkg/sitemap"
	"github.com/Sriram-PR/site-indexer/pkg/validate"
)

// Options tune an orchestrated run
type Options struct {
	SkipNotify       bool
	SkipValidate     bool
	MaxParallelSites int              // 0 = all sites at once
	Now              func() time.Time // Generation time; nil = time.Now
}

// SiteResult contains the result of one site's pipeline
type SiteResult struct {
	SiteKey    string
	Success    bool
	Error      error
	URLCount   int
	Files      []sitemap.WrittenFile
	RobotsPath string
	Submission *notify.SubmissionReport
	Validation *validate.Report
	Duration   time.Duration
}

// Ready reports whether the site validated without failures. A skipped validation is not ready.
func (r SiteResult) Ready() bool {
	return r.Success && r.Validation != nil && r.Validation.Ready
}

// Orchestrator runs the pipeline for several sites in parallel
type Orchestrator struct {
	appCfg   *config.AppConfig
	log      *logrus.Entry
	siteKeys []string
	opts     Options

	// Shared resources
	fetcher     *fetch.Fetcher
	rateLimiter *fetch.RateLimiter
	hosts       *fetch.HostSemaphorePool
	siteSem     *semaphore.Weighted

	fetchersMu sync.Mutex
	fetchers   map[string]*fetch.Fetcher // Keyed by user agent

	cancelMu sync.Mutex
	cancel   context.CancelFunc
}

// NewOrchestrator creates an orchestrator. appCfg and its sites must already be validated.
func NewOrchestrator(appCfg *config.AppConfig, siteKeys []string, opts Options, log *logrus.Entry) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	parallel := opts.MaxParallelSites
	if parallel <= 0 || parallel > len(siteKeys) {
		parallel = max(len(siteKeys), 1)
	}

	client := fetch.NewClient(appCfg.HTTPClientSettings, appCfg.DefaultUserAgent, log)
	fetcher := fetch.NewFetcher(client, appCfg, log)

	return &Orchestrator{
		appCfg:      appCfg,
		log:         log,
		siteKeys:    siteKeys,
		opts:        opts,
		fetcher:     fetcher,
		rateLimiter: fetch.NewRateLimiter(appCfg.Notifier.PerPageDelay, log),
		hosts:       fetch.NewHostSemaphorePool(appCfg.MaxRequestsPerHost, log),
		siteSem:     semaphore.NewWeighted(int64(parallel)),
		fetchers:    map[string]*fetch.Fetcher{appCfg.DefaultUserAgent: fetcher},
	}
}

// Hosts exposes the shared per-host pool so long-running callers can evict idle hosts
func (o *Orchestrator) Hosts() *fetch.HostSemaphorePool {
	return o.hosts
}

// Run executes every configured site and waits for completion. Results follow siteKeys order.
func (o *Orchestrator) Run(ctx context.Context) []SiteResult {
	return o.RunKeys(ctx, o.siteKeys)
}

// RunKeys executes the given sites in parallel, reusing the shared pacing and clients
func (o *Orchestrator) RunKeys(ctx context.Context, siteKeys []string) []SiteResult {
	var cancel context.CancelFunc
	if o.appCfg.GlobalRunTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.appCfg.GlobalRunTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	o.cancelMu.Lock()
	o.cancel = cancel
	o.cancelMu.Unlock()
	defer cancel()

	startTime := time.Now()
	o.log.Infof("Starting pipeline for %d site(s): %v", len(siteKeys), siteKeys)

	var (
		wg        sync.WaitGroup
		resultsMu sync.Mutex
		results   = make([]SiteResult, 0, len(siteKeys))
	)
	for _, siteKey := range siteKeys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			var result SiteResult
			if err := o.siteSem.Acquire(ctx, 1); err != nil {
				result = SiteResult{SiteKey: key, Error: fmt.Errorf("site '%s' not started: %w", key, err)}
			} else {
				result = o.RunSite(ctx, key)
				o.siteSem.Release(1)
			}
			resultsMu.Lock()
			results = append(results, result)
			resultsMu.Unlock()
		}(siteKey)
	}
	wg.Wait()

	order := make(map[string]int, len(siteKeys))
	for i, k := range siteKeys {
		order[k] = i
	}
	sort.SliceStable(results, func(i, j int) bool { return order[results[i].SiteKey] < order[results[j].SiteKey] })

	o.logSummary(results, time.Since(startTime))
	return results
}

// Cancel stops a running Run
func (o *Orchestrator) Cancel() {
	o.log.Info("Cancelling pipeline...")
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// RunSite executes load, build, write, robots, notify and validate for one site
func (o *Orchestrator) RunSite(ctx context.Context, siteKey string) (result SiteResult) {
	startTime := time.Now()
	result.SiteKey = siteKey
	defer func() { result.Duration = time.Since(startTime) }()
	siteLog := o.log.WithField("site", siteKey)

	site, err := o.Site(siteKey)
	if err != nil {
		result.Error = err
		siteLog.Error(err)
		return result
	}

	pages, err := site.LoadRegistry()
	if err != nil {
		result.Error = err
		siteLog.WithError(err).Error("Registry rejected")
		return result
	}
	result.URLCount = len(pages)

	set, err := site.Build(pages, o.opts.Now())
	if err != nil {
		result.Error = err
		siteLog.WithError(err).Error("Sitemap build failed")
		return result
	}

	written := site.Write(set)
	result.Files = written.Written
	var errs []error
	if written.Err != nil {
		errs = append(errs, written.Err)
	}
	if !mainWritten(set, written) {
		result.Error = errors.Join(errs...)
		siteLog.WithError(result.Error).Error("Main sitemap not written, stopping")
		return result
	}

	result.RobotsPath, err = site.WriteRobots(set)
	if err != nil {
		errs = append(errs, err)
		siteLog.WithError(err).Error("robots.txt not written")
	}

	if !o.opts.SkipNotify {
		result.Submission, err = site.Notify(ctx, set, pages)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !o.opts.SkipValidate {
		result.Validation, err = site.Validate(len(pages))
		if err != nil {
			errs = append(errs, err)
		}
	}

	result.Error = errors.Join(errs...)
	result.Success = result.Error == nil
	return result
}

func mainWritten(set *sitemap.Set, res sitemap.WriteResult) bool {
	done := make(map[string]bool, len(res.Written))
	for _, f := range res.Written {
		done[f.Name] = true
	}
	for _, d := range set.Main {
		if !done[d.Filename] {
			return false
		}
	}
	return true
}

// fetcherFor returns a fetcher sending ua, sharing the retry policy of the default one
func (o *Orchestrator) fetcherFor(ua string) *fetch.Fetcher {
	o.fetchersMu.Lock()
	defer o.fetchersMu.Unlock()
	if f, ok := o.fetchers[ua]; ok {
		return f
	}
	f := o.fetcher.WithClient(fetch.NewClient(o.appCfg.HTTPClientSettings, ua, o.log))
	o.fetchers[ua] = f
	return f
}

// logSummary logs a banner of all site results
func (o *Orchestrator) logSummary(results []SiteResult, totalDuration time.Duration) {
	o.log.Info("============================================")
	o.log.Infof("Pipeline completed in %v", totalDuration)
	o.log.Info("Site Results:")

	totalURLs := 0
	successCount, failCount, readyCount := 0, 0, 0
	for _, r := range results {
		status := "SUCCESS"
		if !r.Success {
			status = "FAILED"
			failCount++
		} else {
			successCount++
		}
		totalURLs += r.URLCount

		verdict := "not validated"
		if r.Validation != nil {
			verdict = r.Validation.Verdict
			if r.Validation.Ready {
				readyCount++
			}
		}
		indexing := "not notified"
		if r.Submission != nil {
			indexing = r.Submission.IndexingStatus
		}
		o.log.Infof("  %s: %s - %d URLs, %d files, indexing %s, %s in %v",
			r.SiteKey, status, r.URLCount, len(r.Files), indexing, verdict, r.Duration.Round(time.Millisecond))
		if r.Error != nil {
			o.log.Infof("    Error: %v", r.Error)
		}
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d sites (%d success, %d failed, %d ready), %d URLs",
		len(results), successCount, failCount, readyCount, totalURLs)
	o.log.Info("============================================")
}

// ValidateSiteKeys checks that all provided site keys exist in the config
func ValidateSiteKeys(appCfg *config.AppConfig, siteKeys []string) error {
	for _, key := range siteKeys {
		if _, exists := appCfg.Sites[key]; !exists {
			available := GetAllSiteKeys(appCfg)
			return fmt.Errorf("site '%s' not found. Available sites: %v", key, available)
		}
	}
	return nil
}

// GetAllSiteKeys returns all site keys from the config, sorted
func GetAllSiteKeys(appCfg *config.AppConfig) []string {
	keys := make([]string, 0, len(appCfg.Sites))
	for k := range appCfg.Sites {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
