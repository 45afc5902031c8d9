package robots

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/robotstxt"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

func defaultOptions() Options {
	return FromConfig("https://eyecare.example/",
		config.GetEffectiveRobots(&config.SiteConfig{}),
		[]string{"https://eyecare.example/sitemap-index.xml", "https://eyecare.example/sitemap.xml"})
}

func TestGenerate_Defaults(t *testing.T) {
	out, err := Generate(defaultOptions())
	require.NoError(t, err)

	want := `# robots.txt for https://eyecare.example
User-agent: *
Allow: /
Disallow: /admin/
Disallow: /api/
Disallow: /_next/

User-agent: YandexBot
Crawl-delay: 5
Allow: /
Disallow: /admin/
Disallow: /api/
Disallow: /_next/

User-agent: BingBot
Crawl-delay: 3
Allow: /
Disallow: /admin/
Disallow: /api/
Disallow: /_next/

Sitemap: https://eyecare.example/sitemap-index.xml
Sitemap: https://eyecare.example/sitemap.xml
`
	assert.Equal(t, want, out)
}

func TestGenerate_ParsesAsRobots(t *testing.T) {
	out, err := Generate(defaultOptions())
	require.NoError(t, err)

	data, err := robotstxt.FromString(out)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://eyecare.example/sitemap-index.xml", "https://eyecare.example/sitemap.xml"}, data.Sitemaps)
	assert.True(t, data.TestAgent("/services/dry-eye", "Googlebot"))
	assert.False(t, data.TestAgent("/admin/login", "Googlebot"))
	assert.False(t, data.TestAgent("/_next/static/x.js", "YandexBot"))

	yandex := data.FindGroup("YandexBot")
	require.NotNil(t, yandex)
	assert.Equal(t, "5s", yandex.CrawlDelay.String())
}

func TestGenerate_Options(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    []string
		notWant []string
	}{
		{
			name:    "no groups no sitemaps",
			opts:    Options{BaseURL: "https://a.example", Disallow: []string{"/private/"}},
			want:    []string{"User-agent: *\nAllow: /\nDisallow: /private/\n"},
			notWant: []string{"Sitemap:", "Crawl-delay"},
		},
		{
			name:    "explicit empty allow",
			opts:    Options{BaseURL: "https://a.example", Allow: []string{}},
			notWant: []string{"Allow:"},
		},
		{
			name:    "zero delay group",
			opts:    Options{BaseURL: "https://a.example", Groups: []Group{{UserAgent: "DuckDuckBot"}}},
			want:    []string{"User-agent: DuckDuckBot\nAllow: /\n"},
			notWant: []string{"Crawl-delay"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Generate(tt.opts)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, nw := range tt.notWant {
				assert.NotContains(t, out, nw)
			}
		})
	}
}

func TestGenerate_RequiresBaseURL(t *testing.T) {
	_, err := Generate(Options{})
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := Write(dir, "User-agent: *\n")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "User-agent: *\n", string(data))

	// A file where the directory should be
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	_, err = Write(blocker, "x")
	assert.ErrorIs(t, err, utils.ErrFilesystem)
}
