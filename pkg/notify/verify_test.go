package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/fetch"
	"github.com/Sriram-PR/site-indexer/pkg/models"
)

const liveURLSet = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://eyecare.example/</loc></url>
  <url><loc>https://eyecare.example/es</loc></url>
</urlset>
`

const liveIndex = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://eyecare.example/sitemap-1.xml</loc></sitemap>
  <sitemap><loc>https://eyecare.example/sitemap-2.xml</loc></sitemap>
  <sitemap><loc>https://eyecare.example/sitemap-3.xml</loc></sitemap>
</sitemapindex>
`

// liveSite serves a deployed sitemap with the given status and body
func liveSite(t *testing.T, code int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/sitemap.xml"
}

func verifyingConfig(engines *fakeEngines) config.NotifierConfig {
	cfg := engines.config(config.ChannelGoogle)
	cfg.VerifySitemap = nil
	return cfg
}

func newVerifyingNotifier(t *testing.T, cfg config.NotifierConfig, liveSitemap string) *Notifier {
	t.Helper()
	log := testLogger()
	fetcher := fetch.NewFetcher(&http.Client{Timeout: 5 * time.Second}, &config.AppConfig{MaxRetries: 0}, log)
	return New(Options{
		SiteURL:    siteURL,
		SitemapURL: liveSitemap,
		Config:     cfg,
		ReportDir:  t.TempDir(),
	}, fetcher, fetch.NewRateLimiter(time.Millisecond, log), fetch.NewHostSemaphorePool(1, log), log)
}

func TestVerify_Accessibility(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		wantStatus models.NotificationStatus
		wantRoot   string
		wantCount  int
	}{
		{"urlset", http.StatusOK, liveURLSet, models.NotificationSuccess, "urlset", 2},
		{"sitemap index", http.StatusOK, liveIndex, models.NotificationSuccess, "sitemapindex", 3},
		{"no declaration", http.StatusOK, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"><url><loc>https://eyecare.example/</loc></url></urlset>`,
			models.NotificationWarning, "urlset", 1},
		{"html instead of xml", http.StatusOK, "<!DOCTYPE html><html><body>Not here</body></html>", models.NotificationWarning, "", 0},
		{"not deployed", http.StatusNotFound, "missing", models.NotificationError, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engines := newFakeEngines(t)
			n := newVerifyingNotifier(t, verifyingConfig(engines), liveSite(t, tt.code, tt.body))

			report := n.Run(context.Background())
			v := report.Verification
			require.NotNil(t, v)
			assert.Equal(t, VerifyAccessibility, v.Method)
			assert.Equal(t, tt.wantStatus, v.Status, v.Message)
			assert.Equal(t, tt.code, v.StatusCode)
			assert.Equal(t, tt.wantRoot, v.Root)
			assert.Equal(t, tt.wantCount, v.URLCount)
		})
	}
}

func TestVerify_DoesNotChangeIndexingStatus(t *testing.T) {
	engines := newFakeEngines(t)
	n := newVerifyingNotifier(t, verifyingConfig(engines), liveSite(t, http.StatusNotFound, ""))

	report := n.Run(context.Background())
	require.NotNil(t, report.Verification)
	assert.Equal(t, models.NotificationError, report.Verification.Status)
	assert.Equal(t, IndexingSubmitted, report.IndexingStatus)
	assert.Equal(t, 1, report.Counts.Success)
}

// searchConsole accepts sitemap submissions and answers sitemaps.get with body
func searchConsole(t *testing.T, getCode int, body string) (*httptest.Server, *[]string) {
	t.Helper()
	var authHeaders []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			authHeaders = append(authHeaders, r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(getCode)
			_, _ = io.WriteString(w, body)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &authHeaders
}

func TestVerify_SearchConsole(t *testing.T) {
	engines := newFakeEngines(t)
	sc, authHeaders := searchConsole(t, http.StatusOK,
		`{"path":"https://eyecare.example/sitemap.xml","lastSubmitted":"2024-05-01T12:00:00Z","isPending":true,"errors":"2","warnings":"1"}`)
	cfg := verifyingConfig(engines)
	cfg.SearchConsoleBaseURL = sc.URL + "/webmasters/v3"
	cfg.CredentialsFile = writeServiceAccount(t, tokenServer(t).URL)

	n := newVerifyingNotifier(t, cfg, liveSite(t, http.StatusOK, liveURLSet))
	n.LoadAuth(context.Background())
	require.NotNil(t, n.authed)

	report := n.Run(context.Background())
	v := report.Verification
	require.NotNil(t, v)
	assert.Equal(t, VerifySearchConsole, v.Method)
	assert.Equal(t, models.NotificationWarning, v.Status)
	assert.Equal(t, int64(2), v.Errors)
	assert.Equal(t, int64(1), v.Warnings)
	assert.Equal(t, "2024-05-01T12:00:00Z", v.LastSubmitted)
	assert.Equal(t, "pending", v.LastDownloaded)
	assert.True(t, v.IsPending)
	require.Len(t, *authHeaders, 1)
	assert.Equal(t, "Bearer test-token", (*authHeaders)[0])
}

func TestVerify_SearchConsoleFailureFallsBackToAccessibility(t *testing.T) {
	engines := newFakeEngines(t)
	sc, _ := searchConsole(t, http.StatusForbidden, `{"error":{"code":403}}`)
	cfg := verifyingConfig(engines)
	cfg.SearchConsoleBaseURL = sc.URL + "/webmasters/v3"
	cfg.CredentialsFile = writeServiceAccount(t, tokenServer(t).URL)

	n := newVerifyingNotifier(t, cfg, liveSite(t, http.StatusOK, liveURLSet))
	n.LoadAuth(context.Background())

	v := n.Run(context.Background()).Verification
	require.NotNil(t, v)
	assert.Equal(t, VerifyAccessibility, v.Method)
	assert.Equal(t, models.NotificationSuccess, v.Status)
	assert.Equal(t, 2, v.URLCount)
}

func TestVerify_Skipped(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		engines := newFakeEngines(t)
		n := newVerifyingNotifier(t, engines.config(config.ChannelGoogle), liveSite(t, http.StatusOK, liveURLSet))
		assert.Nil(t, n.Run(context.Background()).Verification)
	})

	t.Run("google channel not enabled", func(t *testing.T) {
		engines := newFakeEngines(t)
		cfg := engines.config(config.ChannelBing)
		cfg.VerifySitemap = nil
		n := newVerifyingNotifier(t, cfg, liveSite(t, http.StatusOK, liveURLSet))
		assert.Nil(t, n.Run(context.Background()).Verification)
	})
}

func TestVerify_ShownOnDashboard(t *testing.T) {
	engines := newFakeEngines(t)
	n := newVerifyingNotifier(t, verifyingConfig(engines), liveSite(t, http.StatusOK, liveURLSet))

	report, err := n.Notify(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Verification)

	html, err := os.ReadFile(filepath.Join(n.opts.ReportDir, DashboardFile))
	require.NoError(t, err)
	assert.Contains(t, string(html), "Sitemap verification")
	assert.Contains(t, string(html), "sitemap is accessible and well-formed")
	assert.Contains(t, string(html), "2 entries")

	data, err := os.ReadFile(filepath.Join(n.opts.ReportDir, ReportFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"method": "accessibility"`)
}
