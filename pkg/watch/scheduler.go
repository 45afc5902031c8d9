package watch

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/pipeline"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Scheduler reruns the pipeline for sites whose interval elapsed or whose registry changed
type Scheduler struct {
	appCfg       *config.AppConfig
	siteKeys     []string
	interval     time.Duration
	log          *logrus.Entry
	stateManager *StateManager
	orch         *pipeline.Orchestrator
	running      atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a watch scheduler. One orchestrator is kept for the scheduler's
// lifetime so per-host pacing carries over between runs.
func NewScheduler(appCfg *config.AppConfig, siteKeys []string, interval time.Duration, opts pipeline.Options, log *logrus.Entry) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		appCfg:       appCfg,
		siteKeys:     siteKeys,
		interval:     interval,
		log:          log,
		stateManager: NewStateManager(appCfg.StateDir),
		orch:         pipeline.NewOrchestrator(appCfg, siteKeys, opts, log),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Run starts the watch scheduler and blocks until stopped
func (s *Scheduler) Run() error {
	if err := s.stateManager.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}

	s.log.Infof("Starting watch mode for %d sites with interval %v", len(s.siteKeys), FormatInterval(s.interval))
	s.logSchedule()

	tick := s.calculateTickInterval()
	go s.orch.Hosts().RunEviction(s.ctx, tick)

	s.runDueSites()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			s.orch.Cancel()
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.runDueSites()
		}
	}
}

// Stop stops the watch scheduler
func (s *Scheduler) Stop() {
	s.log.Info("Stopping watch scheduler...")
	s.cancel()
}

// runDueSites starts a background run for due sites unless one is still in flight
func (s *Scheduler) runDueSites() {
	if s.running.Load() {
		s.log.Debug("Previous run still in progress, skipping tick")
		return
	}
	due := s.getDueSites()
	if len(due) == 0 {
		s.logNextRun()
		return
	}

	s.running.Store(true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.runSites(s.ctx, due)
	}()
}

// runSites runs the sites synchronously and records their outcome
func (s *Scheduler) runSites(ctx context.Context, siteKeys []string) []pipeline.SiteResult {
	s.log.Infof("Running pipeline for %d due sites: %v", len(siteKeys), siteKeys)
	fingerprints := make(map[string]string, len(siteKeys))
	for _, key := range siteKeys {
		fingerprints[key] = s.registryFingerprint(key)
	}

	results := s.orch.RunKeys(ctx, siteKeys)
	for _, r := range results {
		state := SiteState{
			LastRunSuccess: r.Success,
			URLCount:       r.URLCount,
			RegistrySHA256: fingerprints[r.SiteKey],
		}
		if r.Error != nil {
			state.ErrorMessage = r.Error.Error()
		}
		if r.Validation != nil {
			state.Verdict = r.Validation.Verdict
		}
		if r.Submission != nil {
			state.IndexingStatus = r.Submission.IndexingStatus
		}
		s.stateManager.UpdateSiteState(r.SiteKey, state)
	}

	if err := s.stateManager.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}
	s.logNextRun()
	return results
}

// registryFingerprint hashes the site's registry file; "" when it cannot be read
func (s *Scheduler) registryFingerprint(siteKey string) string {
	siteCfg, ok := s.appCfg.Sites[siteKey]
	if !ok || siteCfg == nil {
		return ""
	}
	sum, err := utils.FileSHA256(siteCfg.RegistryFile)
	if err != nil {
		s.log.WithError(err).WithField("site", siteKey).Debug("Registry not hashable")
		return ""
	}
	return sum
}

// getDueSites returns sites that are due for a run
func (s *Scheduler) getDueSites() []string {
	var due []string
	for _, siteKey := range s.siteKeys {
		if s.stateManager.ShouldRun(siteKey, s.interval, s.registryFingerprint(siteKey)) {
			due = append(due, siteKey)
		}
	}
	return due
}

// calculateTickInterval polls at a tenth of the interval, clamped to [1m, 10m]
func (s *Scheduler) calculateTickInterval() time.Duration {
	return min(max(s.interval/10, time.Minute), 10*time.Minute)
}

// logSchedule logs each site's last outcome and next run
func (s *Scheduler) logSchedule() {
	s.log.Info("Watch schedule:")
	for _, siteKey := range s.siteKeys {
		entry := s.log.WithField("site", siteKey)
		state, exists := s.stateManager.GetSiteState(siteKey)
		if !exists {
			entry.Info("Never run, running now")
			continue
		}
		entry.WithFields(logrus.Fields{
			"last_run": state.LastRunTime.Format(time.RFC3339),
			"success":  state.LastRunSuccess,
			"urls":     state.URLCount,
			"verdict":  state.Verdict,
			"next_run": s.stateManager.GetNextRunTime(siteKey, s.interval).Format(time.RFC3339),
		}).Info("Scheduled")
	}
}

// logNextRun logs the earliest upcoming run
func (s *Scheduler) logNextRun() {
	if len(s.siteKeys) == 0 {
		return
	}
	next := slices.MinFunc(s.siteKeys, func(a, b string) int {
		return s.stateManager.GetNextRunTime(a, s.interval).Compare(s.stateManager.GetNextRunTime(b, s.interval))
	})
	at := s.stateManager.GetNextRunTime(next, s.interval)
	wait := max(time.Until(at), 0).Round(time.Second)
	s.log.Infof("Next run: %s in %v (at %s)", next, wait, at.Format("15:04:05"))
}

// GetStatus returns the current status of all watched sites
func (s *Scheduler) GetStatus() map[string]SiteStatus {
	status := make(map[string]SiteStatus)
	for _, siteKey := range s.siteKeys {
		state, exists := s.stateManager.GetSiteState(siteKey)
		status[siteKey] = SiteStatus{
			SiteKey:        siteKey,
			LastRunTime:    state.LastRunTime,
			LastRunSuccess: state.LastRunSuccess,
			URLCount:       state.URLCount,
			Verdict:        state.Verdict,
			ErrorMessage:   state.ErrorMessage,
			NextRunTime:    s.stateManager.GetNextRunTime(siteKey, s.interval),
			NeverRun:       !exists,
		}
	}
	return status
}

// SiteStatus contains the status of a watched site
type SiteStatus struct {
	SiteKey        string
	LastRunTime    time.Time
	LastRunSuccess bool
	URLCount       int
	Verdict        string
	ErrorMessage   string
	NextRunTime    time.Time
	NeverRun       bool
}
