package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Protocol ceilings for a single sitemap file
const (
	MaxSitemapURLs  = 50000
	MaxSitemapBytes = 50 * 1024 * 1024
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.DefaultUserAgent == "" {
		c.DefaultUserAgent = "site-indexer/1.0"
	}

	if c.OutputBaseDir == "" {
		warnings = append(warnings, "output_base_dir is empty, defaulting to './public'")
		c.OutputBaseDir = "./public"
	}
	if c.ReportBaseDir == "" {
		c.ReportBaseDir = "./seo-reports"
	}
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './indexer_state'")
		c.StateDir = "./indexer_state"
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 2
	}
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 10 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.MaxConcurrentChannels <= 0 {
		c.MaxConcurrentChannels = 2
	}
	if c.MaxRequestsPerHost <= 0 {
		c.MaxRequestsPerHost = 1
	}
	if c.GlobalRunTimeout < 0 {
		warnings = append(warnings, "global_run_timeout cannot be negative, disabling timeout")
		c.GlobalRunTimeout = 0
	}

	c.validateHTTPClientSettings()

	notifierWarnings, err := c.Notifier.applyDefaults()
	warnings = append(warnings, notifierWarnings...)
	if err != nil {
		return warnings, err
	}

	return warnings, nil
}

// applyDefaults fills notifier endpoints and pacing. Unknown channel names are fatal.
func (n *NotifierConfig) applyDefaults() (warnings []string, err error) {
	if len(n.Channels) == 0 {
		n.Channels = []string{ChannelGoogle, ChannelBing, ChannelIndexNow, ChannelGoogleIndexing}
	}
	if err := checkChannels(n.Channels); err != nil {
		return nil, err
	}
	if n.SubmitSitemap == "" {
		n.SubmitSitemap = "sitemap.xml"
	}
	if n.IndexNowEndpoint == "" {
		n.IndexNowEndpoint = DefaultIndexNowEndpoint
	}
	if n.GooglePingURL == "" {
		n.GooglePingURL = DefaultGooglePingURL
	}
	if n.BingPingURL == "" {
		n.BingPingURL = DefaultBingPingURL
	}
	if n.YandexPingURL == "" {
		n.YandexPingURL = DefaultYandexPingURL
	}
	if n.SearchConsoleBaseURL == "" {
		n.SearchConsoleBaseURL = DefaultSearchConsoleBaseURL
	}
	if n.IndexingAPIURL == "" {
		n.IndexingAPIURL = DefaultIndexingAPIURL
	}
	if n.PerPageDelay <= 0 {
		n.PerPageDelay = 100 * time.Millisecond
	}
	if n.PingDelay <= 0 {
		n.PingDelay = 1 * time.Second
	}
	if n.IndexNowKey == "" && slices.Contains(n.Channels, ChannelIndexNow) {
		warnings = append(warnings, "indexnow channel enabled but no indexnow_key (INDEXNOW_API_KEY) set; it will be skipped")
	}
	return warnings, nil
}

func checkChannels(channels []string) error {
	for _, ch := range channels {
		if !slices.Contains(KnownChannels, ch) {
			return fmt.Errorf("%w: unknown notifier channel '%s' (known: %s)",
				utils.ErrConfigValidation, ch, strings.Join(KnownChannels, ", "))
		}
	}
	return nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 20
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SiteConfig fields and applies defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place (e.g., domain normalization).
func (c *SiteConfig) Validate() (warnings []string, err error) {
	// Required: Domain
	if strings.TrimSpace(c.Domain) == "" {
		return nil, fmt.Errorf("%w: site needs domain (or SITE_DOMAIN)", utils.ErrConfigValidation)
	}
	domain := strings.TrimSpace(c.Domain)
	if !strings.Contains(domain, "://") {
		warnings = append(warnings, fmt.Sprintf("domain '%s' has no scheme, assuming https", domain))
		domain = "https://" + domain
	}
	u, perr := url.Parse(domain)
	if perr != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: domain '%s' is not an absolute http(s) URL", utils.ErrConfigValidation, c.Domain)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, fmt.Errorf("%w: domain '%s' must not carry a path", utils.ErrConfigValidation, c.Domain)
	}
	c.Domain = u.Scheme + "://" + u.Host

	if c.RegistryFile == "" {
		warnings = append(warnings, "registry_file is empty, defaulting to 'registry.yaml'")
		c.RegistryFile = "registry.yaml"
	}

	for _, cat := range c.Categories {
		if !cat.IsValid() {
			return nil, fmt.Errorf("%w: unknown sitemap category '%s'", utils.ErrConfigValidation, cat)
		}
	}

	if c.MaxURLsPerSitemap <= 0 || c.MaxURLsPerSitemap > MaxSitemapURLs {
		if c.MaxURLsPerSitemap > MaxSitemapURLs {
			warnings = append(warnings, fmt.Sprintf("max_urls_per_sitemap above protocol limit, capping at %d", MaxSitemapURLs))
		}
		c.MaxURLsPerSitemap = MaxSitemapURLs
	}
	if c.MaxBytesPerSitemap <= 0 || c.MaxBytesPerSitemap > MaxSitemapBytes {
		if c.MaxBytesPerSitemap > MaxSitemapBytes {
			warnings = append(warnings, "max_bytes_per_sitemap above protocol limit, capping at 50MB")
		}
		c.MaxBytesPerSitemap = MaxSitemapBytes
	}

	for _, rule := range c.Robots.CrawlDelays {
		if rule.UserAgent == "" {
			return nil, fmt.Errorf("%w: robots crawl_delays entry without user_agent", utils.ErrConfigValidation)
		}
		if rule.Delay < 0 {
			return nil, fmt.Errorf("%w: negative crawl delay for '%s'", utils.ErrConfigValidation, rule.UserAgent)
		}
	}

	if len(c.Notifier.Channels) > 0 {
		if err := checkChannels(c.Notifier.Channels); err != nil {
			return nil, err
		}
	}

	v := &c.Validation
	if v.ExpectedURLCount < 0 {
		warnings = append(warnings, "expected_url_count cannot be negative, using registry size")
		v.ExpectedURLCount = 0
	}
	if v.URLCountTolerance <= 0 {
		v.URLCountTolerance = 10
	}
	if v.Priority09Min <= 0 && v.Priority09Max <= 0 {
		v.Priority09Min, v.Priority09Max = 5, 10
	}
	if v.Priority09Max < v.Priority09Min {
		warnings = append(warnings, fmt.Sprintf("priority_09_max (%d) < priority_09_min (%d), swapping", v.Priority09Max, v.Priority09Min))
		v.Priority09Min, v.Priority09Max = v.Priority09Max, v.Priority09Min
	}
	if v.MinSpanishPages <= 0 {
		v.MinSpanishPages = 20
	}
	if v.SuccessRateThreshold <= 0 || v.SuccessRateThreshold > 1 {
		v.SuccessRateThreshold = 0.9
	}
	if _, err := utils.CompileRegexPatterns(v.PHIPatterns, true); err != nil {
		return nil, err
	}

	return warnings, nil
}
