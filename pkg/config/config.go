package config

import (
	"path/filepath"
	"time"

	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Channel names understood by the notifier
const (
	ChannelGoogle         = "google"
	ChannelBing           = "bing"
	ChannelYandex         = "yandex"
	ChannelIndexNow       = "indexnow"
	ChannelGoogleIndexing = "google_indexing"
)

// KnownChannels lists every channel the notifier can drive, in dispatch order
var KnownChannels = []string{ChannelGoogle, ChannelBing, ChannelYandex, ChannelIndexNow, ChannelGoogleIndexing}

// SiteConfig holds configuration specific to a single website
type SiteConfig struct {
	Domain                 string            `yaml:"domain"`        // Base URL, e.g. https://example.com
	RegistryFile           string            `yaml:"registry_file"` // YAML page registry
	OutputDir              string            `yaml:"output_dir,omitempty"`
	ReportDir              string            `yaml:"report_dir,omitempty"`
	UserAgent              string            `yaml:"user_agent,omitempty"`
	EnableCategorySitemaps *bool             `yaml:"enable_category_sitemaps,omitempty"`
	Categories             []models.Category `yaml:"categories,omitempty"`
	MaxURLsPerSitemap      int               `yaml:"max_urls_per_sitemap,omitempty"`
	MaxBytesPerSitemap     int64             `yaml:"max_bytes_per_sitemap,omitempty"`
	Robots                 RobotsConfig      `yaml:"robots,omitempty"`
	Notifier               NotifierConfig    `yaml:"notifier,omitempty"`
	Validation             ValidationConfig  `yaml:"validation,omitempty"`
}

// CrawlDelayRule is a named bot group with its own Crawl-delay
type CrawlDelayRule struct {
	UserAgent string `yaml:"user_agent"`
	Delay     int    `yaml:"delay"` // Seconds
}

// RobotsConfig describes the emitted robots.txt. Nil slices take the defaults; empty lists disable them.
type RobotsConfig struct {
	CrawlDelays []CrawlDelayRule `yaml:"crawl_delays,omitempty"`
	Disallow    []string         `yaml:"disallow,omitempty"`
	Allow       []string         `yaml:"allow,omitempty"`
}

// NotifierConfig holds search engine notification settings. Site values override global ones field by field.
type NotifierConfig struct {
	Channels             []string      `yaml:"channels,omitempty"`
	SubmitSitemap        string        `yaml:"submit_sitemap,omitempty"` // File name relative to domain
	PriorityPages        []string      `yaml:"priority_pages,omitempty"`
	IndexNowKey          string        `yaml:"indexnow_key,omitempty"`
	IndexNowKeyLocation  string        `yaml:"indexnow_key_location,omitempty"`
	IndexNowEndpoint     string        `yaml:"indexnow_endpoint,omitempty"`
	CredentialsFile      string        `yaml:"credentials_file,omitempty"`
	GooglePingURL        string        `yaml:"google_ping_url,omitempty"`
	BingPingURL          string        `yaml:"bing_ping_url,omitempty"`
	YandexPingURL        string        `yaml:"yandex_ping_url,omitempty"`
	SearchConsoleBaseURL string        `yaml:"search_console_base_url,omitempty"`
	IndexingAPIURL       string        `yaml:"indexing_api_url,omitempty"`
	PerPageDelay         time.Duration `yaml:"per_page_delay,omitempty"`
	PingDelay            time.Duration `yaml:"ping_delay,omitempty"`
	VerificationToken    string        `yaml:"verification_token,omitempty"`
	VerifySitemap        *bool         `yaml:"verify_sitemap,omitempty"` // nil = true
}

// VerifyEnabled reports whether the submitted sitemap is checked after the google channel ran
func (n NotifierConfig) VerifyEnabled() bool {
	return n.VerifySitemap == nil || *n.VerifySitemap
}

// ValidationConfig drives the deployment validator
type ValidationConfig struct {
	ExpectedURLCount     int      `yaml:"expected_url_count,omitempty"` // 0 = registry size
	URLCountTolerance    int      `yaml:"url_count_tolerance,omitempty"`
	RequiredURLs         []string `yaml:"required_urls,omitempty"`
	Priority09Min        int      `yaml:"priority_09_min,omitempty"`
	Priority09Max        int      `yaml:"priority_09_max,omitempty"`
	MinSpanishPages      int      `yaml:"min_spanish_pages,omitempty"`
	PHIPatterns          []string `yaml:"phi_patterns,omitempty"`
	SuccessRateThreshold float64  `yaml:"success_rate_threshold,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DefaultUserAgent      string                 `yaml:"default_user_agent"`
	OutputBaseDir         string                 `yaml:"output_base_dir"`
	ReportBaseDir         string                 `yaml:"report_base_dir"`
	StateDir              string                 `yaml:"state_dir"`
	MaxRetries            int                    `yaml:"max_retries,omitempty"`
	InitialRetryDelay     time.Duration          `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay         time.Duration          `yaml:"max_retry_delay,omitempty"`
	MaxConcurrentChannels int                    `yaml:"max_concurrent_channels,omitempty"`
	MaxRequestsPerHost    int                    `yaml:"max_requests_per_host,omitempty"`
	GlobalRunTimeout      time.Duration          `yaml:"global_run_timeout,omitempty"`
	HTTPClientSettings    HTTPClientConfig       `yaml:"http_client_settings,omitempty"`
	Notifier              NotifierConfig         `yaml:"notifier,omitempty"`
	Sites                 map[string]*SiteConfig `yaml:"sites"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// Default endpoints
const (
	DefaultGooglePingURL        = "https://www.google.com/ping"
	DefaultBingPingURL          = "https://www.bing.com/ping"
	DefaultYandexPingURL        = "https://webmaster.yandex.com/ping"
	DefaultIndexNowEndpoint     = "https://api.indexnow.org/indexnow"
	DefaultSearchConsoleBaseURL = "https://www.googleapis.com/webmasters/v3"
	DefaultIndexingAPIURL       = "https://indexing.googleapis.com/v3/urlNotifications:publish"
)

// DefaultCategories are the sub-sitemaps emitted when none are configured
var DefaultCategories = []models.Category{models.CategoryMain, models.CategoryCondition, models.CategoryService}

// DefaultCrawlDelays mirror the bot groups historically served by the site
var DefaultCrawlDelays = []CrawlDelayRule{
	{UserAgent: "YandexBot", Delay: 5},
	{UserAgent: "BingBot", Delay: 3},
}

// DefaultDisallow are internal path prefixes never offered to crawlers
var DefaultDisallow = []string{"/admin/", "/api/", "/_next/"}

// GetEffectiveUserAgent returns the site user agent, falling back to the global one
func GetEffectiveUserAgent(siteCfg *SiteConfig, appCfg *AppConfig) string {
	if siteCfg.UserAgent != "" {
		return siteCfg.UserAgent
	}
	return appCfg.DefaultUserAgent
}

// GetEffectiveOutputDir returns where sitemaps and robots.txt are written for a site
func GetEffectiveOutputDir(siteKey string, siteCfg *SiteConfig, appCfg *AppConfig) string {
	if siteCfg.OutputDir != "" {
		return siteCfg.OutputDir
	}
	return filepath.Join(appCfg.OutputBaseDir, utils.SanitizeDirName(siteKey))
}

// GetEffectiveReportDir returns where notification and validation reports are written for a site
func GetEffectiveReportDir(siteKey string, siteCfg *SiteConfig, appCfg *AppConfig) string {
	if siteCfg.ReportDir != "" {
		return siteCfg.ReportDir
	}
	return filepath.Join(appCfg.ReportBaseDir, utils.SanitizeDirName(siteKey))
}

// GetEffectiveCategories returns the sub-sitemap categories, or nil when they are disabled
func GetEffectiveCategories(siteCfg *SiteConfig) []models.Category {
	if siteCfg.EnableCategorySitemaps != nil && !*siteCfg.EnableCategorySitemaps {
		return nil
	}
	if len(siteCfg.Categories) > 0 {
		return siteCfg.Categories
	}
	return DefaultCategories
}

// GetEffectiveRobots resolves nil robots lists to their defaults
func GetEffectiveRobots(siteCfg *SiteConfig) RobotsConfig {
	r := siteCfg.Robots
	if r.CrawlDelays == nil {
		r.CrawlDelays = DefaultCrawlDelays
	}
	if r.Disallow == nil {
		r.Disallow = DefaultDisallow
	}
	return r
}

// GetEffectiveNotifier merges site notifier settings over the global ones
func GetEffectiveNotifier(siteCfg *SiteConfig, appCfg *AppConfig) NotifierConfig {
	g, s := appCfg.Notifier, siteCfg.Notifier
	out := g

	if len(s.Channels) > 0 {
		out.Channels = s.Channels
	}
	if len(s.PriorityPages) > 0 {
		out.PriorityPages = s.PriorityPages
	}
	out.SubmitSitemap = firstNonEmpty(s.SubmitSitemap, g.SubmitSitemap)
	out.IndexNowKey = firstNonEmpty(s.IndexNowKey, g.IndexNowKey)
	out.IndexNowKeyLocation = firstNonEmpty(s.IndexNowKeyLocation, g.IndexNowKeyLocation)
	out.IndexNowEndpoint = firstNonEmpty(s.IndexNowEndpoint, g.IndexNowEndpoint)
	out.CredentialsFile = firstNonEmpty(s.CredentialsFile, g.CredentialsFile)
	out.GooglePingURL = firstNonEmpty(s.GooglePingURL, g.GooglePingURL)
	out.BingPingURL = firstNonEmpty(s.BingPingURL, g.BingPingURL)
	out.YandexPingURL = firstNonEmpty(s.YandexPingURL, g.YandexPingURL)
	out.SearchConsoleBaseURL = firstNonEmpty(s.SearchConsoleBaseURL, g.SearchConsoleBaseURL)
	out.IndexingAPIURL = firstNonEmpty(s.IndexingAPIURL, g.IndexingAPIURL)
	out.VerificationToken = firstNonEmpty(s.VerificationToken, g.VerificationToken)
	if s.PerPageDelay > 0 {
		out.PerPageDelay = s.PerPageDelay
	}
	if s.PingDelay > 0 {
		out.PingDelay = s.PingDelay
	}
	if s.VerifySitemap != nil {
		out.VerifySitemap = s.VerifySitemap
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
