package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/notify"
	"github.com/Sriram-PR/site-indexer/pkg/registry"
	"github.com/Sriram-PR/site-indexer/pkg/robots"
	"github.com/Sriram-PR/site-indexer/pkg/sitemap"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
	"github.com/Sriram-PR/site-indexer/pkg/validate"
)

// Site binds one configured site to the orchestrator's shared resources.
// Each step is usable on its own, which is how the single-step commands run.
type Site struct {
	Key       string
	Config    *config.SiteConfig
	OutputDir string
	ReportDir string

	orch *Orchestrator
	log  *logrus.Entry
}

// Site resolves a configured site by key
func (o *Orchestrator) Site(siteKey string) (*Site, error) {
	siteCfg, exists := o.appCfg.Sites[siteKey]
	if !exists || siteCfg == nil {
		return nil, fmt.Errorf("site '%s' not found in configuration", siteKey)
	}
	return &Site{
		Key:       siteKey,
		Config:    siteCfg,
		OutputDir: config.GetEffectiveOutputDir(siteKey, siteCfg, o.appCfg),
		ReportDir: config.GetEffectiveReportDir(siteKey, siteCfg, o.appCfg),
		orch:      o,
		log:       o.log.WithField("site", siteKey),
	}, nil
}

// LoadRegistry reads the site's registry and rejects it when any entry is invalid
func (s *Site) LoadRegistry() ([]models.PageEntry, error) {
	pages, err := registry.Load(s.Config.RegistryFile)
	if err != nil {
		return nil, utils.WrapErrorf(err, "site %s", s.Key)
	}
	if err := registry.Validate(pages); err != nil {
		return nil, utils.WrapErrorf(err, "site %s registry %s", s.Key, s.Config.RegistryFile)
	}
	stats := registry.ComputeStats(pages)
	s.log.WithFields(logrus.Fields{
		"registry":    s.Config.RegistryFile,
		"pages":       stats.Total,
		"by_locale":   stats.ByLocale,
		"by_category": stats.ByCategory,
	}).Info("Registry loaded")
	return pages, nil
}

// Build renders the sitemap set in memory
func (s *Site) Build(pages []models.PageEntry, generatedAt time.Time) (*sitemap.Set, error) {
	b, err := sitemap.NewBuilder(sitemap.Options{
		BaseURL:         s.Config.Domain,
		GeneratedAt:     generatedAt,
		Categories:      config.GetEffectiveCategories(s.Config),
		MaxURLsPerFile:  s.Config.MaxURLsPerSitemap,
		MaxBytesPerFile: s.Config.MaxBytesPerSitemap,
	})
	if err != nil {
		return nil, err
	}
	set, err := b.Build(pages)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"urls":       set.URLCount,
		"main_files": len(set.Main),
		"categories": len(set.Categories),
		"split":      set.Split(),
	}).Info("Sitemaps built")
	return set, nil
}

// Write stores every document of set in the output directory
func (s *Site) Write(set *sitemap.Set) sitemap.WriteResult {
	return sitemap.WriteSet(s.OutputDir, set, s.log)
}

// WriteRobots emits robots.txt pointing at every sitemap of set
func (s *Site) WriteRobots(set *sitemap.Set) (string, error) {
	opts := robots.FromConfig(s.Config.Domain, config.GetEffectiveRobots(s.Config), set.URLs(s.Config.Domain))
	content, err := robots.Generate(opts)
	if err != nil {
		return "", err
	}
	path, err := robots.Write(s.OutputDir, content)
	if err != nil {
		return "", err
	}
	s.log.WithField("path", path).Info("Wrote robots.txt")
	return path, nil
}

// Notifier returns the effective notifier settings for this site
func (s *Site) Notifier() config.NotifierConfig {
	return config.GetEffectiveNotifier(s.Config, s.orch.appCfg)
}

// SubmitSitemapURL is the sitemap handed to search engines. The configured file is used when the
// set contains it; otherwise (e.g. sitemap.xml after a split) the index is submitted.
func (s *Site) SubmitSitemapURL(set *sitemap.Set) string {
	name := s.Notifier().SubmitSitemap
	if set != nil && name != "" {
		found := slices.ContainsFunc(set.All(), func(d *sitemap.Document) bool { return d.Filename == name })
		if !found && set.Index != nil {
			s.log.WithFields(logrus.Fields{"configured": name, "submitted": set.Index.Filename}).
				Info("Configured sitemap not emitted, submitting the index")
			name = set.Index.Filename
		}
	}
	if name == "" {
		name = sitemap.IndexFile
	}
	return s.Config.Domain + "/" + name
}

// Notify tells the configured channels about the sitemap and writes the notifier reports
func (s *Site) Notify(ctx context.Context, set *sitemap.Set, pages []models.PageEntry) (*notify.SubmissionReport, error) {
	cfg := s.Notifier()
	urls := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = s.Config.Domain + p.Path
	}

	o := s.orch
	n := notify.New(notify.Options{
		SiteURL:               s.Config.Domain,
		SitemapURL:            s.SubmitSitemapURL(set),
		URLs:                  urls,
		Config:                cfg,
		ReportDir:             s.ReportDir,
		MaxConcurrentChannels: o.appCfg.MaxConcurrentChannels,
		Now:                   o.opts.Now,
	}, o.fetcherFor(config.GetEffectiveUserAgent(s.Config, o.appCfg)), o.rateLimiter, o.hosts, s.log)
	n.LoadAuth(ctx)
	return n.Notify(ctx)
}

// ValidatorOptions maps the site's validation settings. A zero expected count means the registry size;
// without configured required URLs the notifier's priority pages are required.
func (s *Site) ValidatorOptions(registrySize int) validate.Options {
	v := s.Config.Validation
	expected := v.ExpectedURLCount
	if expected <= 0 {
		expected = registrySize
	}
	required := v.RequiredURLs
	if len(required) == 0 {
		required = s.Notifier().PriorityPages
	}
	return validate.Options{
		BaseURL:              s.Config.Domain,
		ExpectedURLCount:     expected,
		URLCountTolerance:    v.URLCountTolerance,
		RequiredURLs:         required,
		Priority09Min:        v.Priority09Min,
		Priority09Max:        v.Priority09Max,
		MinSpanishPages:      v.MinSpanishPages,
		ExtraPHIPatterns:     v.PHIPatterns,
		SuccessRateThreshold: v.SuccessRateThreshold,
	}
}

// Validate checks the emitted artifacts and writes the validation report
func (s *Site) Validate(registrySize int) (*validate.Report, error) {
	v, err := validate.NewValidator(s.ValidatorOptions(registrySize), s.log.WithField("component", "validator"))
	if err != nil {
		return nil, err
	}
	report := v.Validate(s.OutputDir)
	path, err := validate.WriteReport(s.ReportDir, report)
	if err != nil {
		return report, err
	}
	s.log.WithFields(logrus.Fields{"path": path, "verdict": report.Verdict}).Info("Wrote validation report")
	return report, nil
}
