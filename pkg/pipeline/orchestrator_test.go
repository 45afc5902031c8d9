package pipeline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/notify"
	"github.com/Sriram-PR/site-indexer/pkg/robots"
	"github.com/Sriram-PR/site-indexer/pkg/sitemap"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
	"github.com/Sriram-PR/site-indexer/pkg/validate"
)

const testDomain = "https://eyecare.example"

const testRegistryYAML = `pages:
  - path: /
    priority: 1.0
    changefreq: daily
    category: main
  - path: /es
    locale: es
    priority: 0.9
    changefreq: daily
    category: main
  - path: /contact
    priority: 0.8
    category: main
matrices:
  - name: services
    template: /services/{service}
    vars:
      service: [eye-exam, contact-lenses]
    priority: 0.9
    changefreq: weekly
    category: service
    locales: [en, es]
    locale_priority:
      es: 0.7
`

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// engines answers every search engine endpoint with 200 and counts hits per path
type engines struct {
	srv  *httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newEngines(t *testing.T) *engines {
	t.Helper()
	e := &engines{hits: map[string]int{}}
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		key := r.URL.Path
		if strings.HasPrefix(key, "/webmasters/") {
			key = "/webmasters"
		}
		e.mu.Lock()
		e.hits[key]++
		e.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *engines) count(path string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hits[path]
}

func testAppConfig(t *testing.T, e *engines, siteKeys ...string) *config.AppConfig {
	t.Helper()
	root := t.TempDir()
	registryPath := filepath.Join(root, "registry.yaml")
	require.NoError(t, os.WriteFile(registryPath, []byte(testRegistryYAML), 0644))

	verify := false // site domains do not resolve
	cfg := &config.AppConfig{
		OutputBaseDir: filepath.Join(root, "public"),
		ReportBaseDir: filepath.Join(root, "reports"),
		StateDir:      filepath.Join(root, "state"),
		Notifier: config.NotifierConfig{
			Channels:      []string{config.ChannelGoogle, config.ChannelBing, config.ChannelIndexNow},
			IndexNowKey:   "abc123",
			PerPageDelay:  time.Millisecond,
			PingDelay:     time.Millisecond,
			VerifySitemap: &verify,
		},
		Sites: map[string]*config.SiteConfig{},
	}
	if e != nil {
		cfg.Notifier.GooglePingURL = e.srv.URL + "/google/ping"
		cfg.Notifier.BingPingURL = e.srv.URL + "/bing/ping"
		cfg.Notifier.IndexNowEndpoint = e.srv.URL + "/indexnow"
		cfg.Notifier.SearchConsoleBaseURL = e.srv.URL + "/webmasters/v3"
	}
	for _, key := range siteKeys {
		cfg.Sites[key] = &config.SiteConfig{
			Domain:       key + ".eyecare.example",
			RegistryFile: registryPath,
			Notifier:     config.NotifierConfig{PriorityPages: []string{"/services/eye-exam", "/es"}},
			Validation: config.ValidationConfig{
				Priority09Min:   1,
				Priority09Max:   3,
				MinSpanishPages: 1,
			},
		}
	}

	_, err := cfg.Validate()
	require.NoError(t, err)
	for _, site := range cfg.Sites {
		_, err := site.Validate()
		require.NoError(t, err)
	}
	return cfg
}

func newTestOrchestrator(cfg *config.AppConfig, keys []string, opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	return NewOrchestrator(cfg, keys, opts, testLogger())
}

func TestRun_FullPipeline(t *testing.T) {
	e := newEngines(t)
	cfg := testAppConfig(t, e, "clinic")

	results := newTestOrchestrator(cfg, []string{"clinic"}, Options{}).Run(context.Background())
	require.Len(t, results, 1)
	r := results[0]

	require.NoError(t, r.Error)
	assert.True(t, r.Success)
	assert.Equal(t, 7, r.URLCount)
	assert.True(t, r.Ready())

	outDir := config.GetEffectiveOutputDir("clinic", cfg.Sites["clinic"], cfg)
	reportDir := config.GetEffectiveReportDir("clinic", cfg.Sites["clinic"], cfg)
	for _, name := range []string{"sitemap.xml", sitemap.IndexFile, "sitemap-main.xml", "sitemap-service.xml", robots.FileName} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}
	for _, name := range []string{notify.StatusFile, notify.ReportFile, notify.DashboardFile, validate.ReportFile} {
		assert.FileExists(t, filepath.Join(reportDir, name))
	}
	assert.NoFileExists(t, filepath.Join(outDir, validate.ReportFile))

	require.NotNil(t, r.Submission)
	assert.Equal(t, notify.IndexingSubmitted, r.Submission.IndexingStatus)
	assert.Equal(t, "https://clinic.eyecare.example/sitemap.xml", r.Submission.SitemapURL)
	assert.Equal(t, 1, e.count("/webmasters"))
	assert.Equal(t, 1, e.count("/bing/ping"))
	assert.Equal(t, 1, e.count("/indexnow"))
	assert.Zero(t, e.count("/google/ping"), "google stops at the first successful strategy")

	require.NotNil(t, r.Validation)
	for _, res := range r.Validation.Results {
		assert.NotEqual(t, "fail", res.Status.String(), "%s: %s", res.Name, res.Message)
	}

	robotsTxt, err := os.ReadFile(filepath.Join(outDir, robots.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(robotsTxt), "Sitemap: https://clinic.eyecare.example/sitemap-index.xml")
}

func TestRun_SkipNotify(t *testing.T) {
	cfg := testAppConfig(t, nil, "clinic")

	results := newTestOrchestrator(cfg, []string{"clinic"}, Options{SkipNotify: true}).Run(context.Background())
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Nil(t, results[0].Submission)
	require.NotNil(t, results[0].Validation)

	reportDir := config.GetEffectiveReportDir("clinic", cfg.Sites["clinic"], cfg)
	assert.NoFileExists(t, filepath.Join(reportDir, notify.StatusFile))
	assert.FileExists(t, filepath.Join(reportDir, validate.ReportFile))
}

func TestRun_InvalidRegistryWritesNothing(t *testing.T) {
	cfg := testAppConfig(t, nil, "clinic")
	bad := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("pages:\n  - path: /a\n  - path: /a\n"), 0644))
	cfg.Sites["clinic"].RegistryFile = bad

	results := newTestOrchestrator(cfg, []string{"clinic"}, Options{SkipNotify: true}).Run(context.Background())
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, results[0].Error, utils.ErrConfigValidation)
	assert.NoDirExists(t, config.GetEffectiveOutputDir("clinic", cfg.Sites["clinic"], cfg))
}

func TestRun_ResultsFollowSiteOrder(t *testing.T) {
	cfg := testAppConfig(t, nil, "alpha", "beta", "gamma")
	keys := []string{"gamma", "alpha", "beta", "missing"}

	results := newTestOrchestrator(cfg, keys, Options{SkipNotify: true, SkipValidate: true, MaxParallelSites: 2}).
		Run(context.Background())
	require.Len(t, results, len(keys))
	for i, key := range keys {
		assert.Equal(t, key, results[i].SiteKey)
	}
	assert.True(t, results[0].Success)
	assert.False(t, results[0].Ready(), "unvalidated sites are not ready")
	assert.False(t, results[3].Success)
	assert.ErrorContains(t, results[3].Error, "missing")
}

func TestRun_CancelledContext(t *testing.T) {
	cfg := testAppConfig(t, nil, "clinic")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := newTestOrchestrator(cfg, []string{"clinic"}, Options{}).Run(ctx)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.ErrorIs(t, results[0].Error, context.Canceled)
}

func TestSubmitSitemapURL_SplitUsesIndex(t *testing.T) {
	cfg := testAppConfig(t, nil, "clinic")
	cfg.Sites["clinic"].MaxURLsPerSitemap = 3
	o := newTestOrchestrator(cfg, []string{"clinic"}, Options{})

	site, err := o.Site("clinic")
	require.NoError(t, err)
	pages, err := site.LoadRegistry()
	require.NoError(t, err)
	set, err := site.Build(pages, testNow)
	require.NoError(t, err)
	require.True(t, set.Split())

	assert.Equal(t, "https://clinic.eyecare.example/"+sitemap.IndexFile, site.SubmitSitemapURL(set))

	cfg.Sites["clinic"].MaxURLsPerSitemap = 0
	o = newTestOrchestrator(cfg, []string{"clinic"}, Options{})
	site, err = o.Site("clinic")
	require.NoError(t, err)
	set, err = site.Build(pages, testNow)
	require.NoError(t, err)
	assert.Equal(t, "https://clinic.eyecare.example/sitemap.xml", site.SubmitSitemapURL(set))
}

func TestSiteWrite_LogsEachFileOnce(t *testing.T) {
	cfg := testAppConfig(t, nil, "clinic")
	logger, hook := logtest.NewNullLogger()
	o := NewOrchestrator(cfg, []string{"clinic"}, Options{Now: func() time.Time { return testNow }}, logrus.NewEntry(logger))

	site, err := o.Site("clinic")
	require.NoError(t, err)
	pages, err := site.LoadRegistry()
	require.NoError(t, err)
	set, err := site.Build(pages, testNow)
	require.NoError(t, err)

	res := site.Write(set)
	require.NoError(t, res.Err)
	require.NotEmpty(t, res.Written)

	wrote := 0
	for _, entry := range hook.AllEntries() {
		if entry.Message == "Wrote sitemap" {
			wrote++
		}
	}
	assert.Equal(t, len(res.Written), wrote)
}

func TestValidatorOptions(t *testing.T) {
	cfg := testAppConfig(t, nil, "clinic")
	site, err := newTestOrchestrator(cfg, []string{"clinic"}, Options{}).Site("clinic")
	require.NoError(t, err)

	opts := site.ValidatorOptions(42)
	assert.Equal(t, 42, opts.ExpectedURLCount)
	assert.Equal(t, []string{"/services/eye-exam", "/es"}, opts.RequiredURLs)

	cfg.Sites["clinic"].Validation.ExpectedURLCount = 10
	cfg.Sites["clinic"].Validation.RequiredURLs = []string{"/contact"}
	opts = site.ValidatorOptions(42)
	assert.Equal(t, 10, opts.ExpectedURLCount)
	assert.Equal(t, []string{"/contact"}, opts.RequiredURLs)
}

func TestValidateSiteKeys(t *testing.T) {
	cfg := &config.AppConfig{Sites: map[string]*config.SiteConfig{"docs": {}, "blog": {}}}

	t.Run("all valid", func(t *testing.T) {
		assert.NoError(t, ValidateSiteKeys(cfg, []string{"docs", "blog"}))
	})

	t.Run("one invalid", func(t *testing.T) {
		err := ValidateSiteKeys(cfg, []string{"docs", "missing"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing")
		assert.Contains(t, err.Error(), "[blog docs]")
	})

	t.Run("empty keys no error", func(t *testing.T) {
		assert.NoError(t, ValidateSiteKeys(cfg, []string{}))
	})

	t.Run("empty config", func(t *testing.T) {
		err := ValidateSiteKeys(&config.AppConfig{}, []string{"anything"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anything")
	})
}

func TestGetAllSiteKeys(t *testing.T) {
	cfg := &config.AppConfig{Sites: map[string]*config.SiteConfig{"gamma": {}, "alpha": {}, "beta": {}}}
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, GetAllSiteKeys(cfg))
	assert.Empty(t, GetAllSiteKeys(&config.AppConfig{}))
}
