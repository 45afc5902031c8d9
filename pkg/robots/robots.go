package robots

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// FileName is the emitted file
const FileName = "robots.txt"

// Group is a named crawler with its own Crawl-delay in seconds
type Group struct {
	UserAgent  string
	CrawlDelay int
}

// Options describes robots.txt content
type Options struct {
	BaseURL     string
	Groups      []Group
	Disallow    []string
	Allow       []string // nil = "/"
	SitemapURLs []string // Index first
}

// FromConfig converts the site's effective robots settings
func FromConfig(baseURL string, rc config.RobotsConfig, sitemapURLs []string) Options {
	opts := Options{
		BaseURL:     baseURL,
		Disallow:    rc.Disallow,
		Allow:       rc.Allow,
		SitemapURLs: sitemapURLs,
	}
	for _, r := range rc.CrawlDelays {
		opts.Groups = append(opts.Groups, Group{UserAgent: r.UserAgent, CrawlDelay: r.Delay})
	}
	return opts
}

// Generate renders robots.txt. A crawler that matches a named group ignores the "*" group,
// so each named group repeats the allow and disallow rules.
func Generate(opts Options) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return "", fmt.Errorf("%w: robots.txt needs a base URL", utils.ErrConfigValidation)
	}
	allow := opts.Allow
	if allow == nil {
		allow = []string{"/"}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# robots.txt for %s\n", base)
	b.WriteString("User-agent: *\n")
	writeRules(&b, allow, opts.Disallow)

	for _, g := range opts.Groups {
		fmt.Fprintf(&b, "\nUser-agent: %s\n", g.UserAgent)
		if g.CrawlDelay > 0 {
			fmt.Fprintf(&b, "Crawl-delay: %d\n", g.CrawlDelay)
		}
		writeRules(&b, allow, opts.Disallow)
	}

	if len(opts.SitemapURLs) > 0 {
		b.WriteString("\n")
		for _, u := range opts.SitemapURLs {
			fmt.Fprintf(&b, "Sitemap: %s\n", u)
		}
	}
	return b.String(), nil
}

func writeRules(b *strings.Builder, allow, disallow []string) {
	for _, a := range allow {
		fmt.Fprintf(b, "Allow: %s\n", a)
	}
	for _, d := range disallow {
		fmt.Fprintf(b, "Disallow: %s\n", d)
	}
}

// Write stores content as dir/robots.txt and returns the path
func Write(dir, content string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", utils.ErrFilesystem, dir, err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("%w: write %s: %w", utils.ErrFilesystem, path, err)
	}
	return path, nil
}
