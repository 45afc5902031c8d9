package discover

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/registry"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

const testBase = "https://eyecare.example"

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func htmlDoc(lang, head string) string {
	return `<!DOCTYPE html><html lang="` + lang + `"><head>` + head + `</head><body><h1>Page</h1></body></html>`
}

func buildDist(t *testing.T) string {
	t.Helper()
	dist := t.TempDir()
	files := map[string]string{
		"index.html":                     htmlDoc("en", `<title> Home </title><link rel="canonical" href="https://eyecare.example/">`),
		"es/index.html":                  htmlDoc("es", `<title>Inicio</title>`),
		"services/eye-exam/index.html":   htmlDoc("en", `<link rel="canonical" href="https://www.eyecare.example/services/eye-exam/">`),
		"es/services/eye-exam.html":      htmlDoc("es-US", ``),
		"contact.html":                   htmlDoc("en", ``),
		"about.html":                     htmlDoc("en", `<link rel="canonical" href="https://other.example/about-us">`),
		"conditions/glaucoma/index.html": htmlDoc("en", `<link rel="canonical" href="/conditions/glaucoma">`),
		"conditions/glaucoma.html":       htmlDoc("en", `<link rel="canonical" href="/conditions/glaucoma">`),
		"admin/index.html":               htmlDoc("en", `<meta name="robots" content="NoIndex, nofollow">`),
		"404.html":                       htmlDoc("en", `<title>Not found</title>`),
		"assets/site.css":                "body{}",
	}
	for name, content := range files {
		path := filepath.Join(dist, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dist
}

func TestScan(t *testing.T) {
	pages, err := Scan(context.Background(), buildDist(t), testBase, testLogger())
	require.NoError(t, err)

	type row struct {
		path     string
		locale   models.Locale
		category models.Category
		priority float64
		freq     models.ChangeFreq
	}
	want := []row{
		{"/", models.LocaleEN, models.CategoryMain, 1.0, models.ChangeFreqDaily},
		{"/about", models.LocaleEN, models.CategoryMain, 0.8, models.ChangeFreqWeekly},
		{"/contact", models.LocaleEN, models.CategoryMain, 0.8, models.ChangeFreqWeekly},
		{"/conditions/glaucoma", models.LocaleEN, models.CategoryCondition, 0.7, models.ChangeFreqMonthly},
		{"/services/eye-exam", models.LocaleEN, models.CategoryService, 0.7, models.ChangeFreqMonthly},
		{"/es", models.LocaleES, models.CategoryMain, 0.9, models.ChangeFreqDaily},
		{"/es/services/eye-exam", models.LocaleES, models.CategoryService, 0.6, models.ChangeFreqMonthly},
	}
	require.Len(t, pages, len(want))
	for i, w := range want {
		got := pages[i]
		assert.Equal(t, w.path, got.Path, "entry %d", i)
		assert.Equal(t, w.locale, got.Locale, w.path)
		assert.Equal(t, w.category, got.Category, w.path)
		assert.InDelta(t, w.priority, got.Priority, 1e-9, w.path)
		assert.Equal(t, w.freq, got.ChangeFreq, w.path)
		assert.False(t, got.LastModified.IsZero(), w.path)
	}
	assert.Equal(t, "Home", pages[0].Title)
	assert.NoError(t, registry.Validate(pages))
}

func TestScan_Errors(t *testing.T) {
	_, err := Scan(context.Background(), t.TempDir(), "eyecare.example", testLogger())
	assert.ErrorIs(t, err, utils.ErrConfigValidation)

	_, err = Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), testBase, testLogger())
	assert.ErrorIs(t, err, utils.ErrFilesystem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Scan(ctx, buildDist(t), testBase, testLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilePath(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"index.html", "/"},
		{"about.html", "/about"},
		{"about/index.html", "/about"},
		{"es/index.html", "/es"},
		{"blog/reindex.html", "/blog/reindex"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, filePath("/dist", filepath.Join("/dist", filepath.FromSlash(tt.file))))
		})
	}
}

func TestWriteRegistry_LoadsBack(t *testing.T) {
	pages, err := Scan(context.Background(), buildDist(t), testBase, testLogger())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "site", "registry.yaml")
	require.NoError(t, WriteRegistry(path, pages))

	loaded, err := registry.Load(path)
	require.NoError(t, err)
	require.Len(t, loaded, len(pages))
	for i := range pages {
		assert.Equal(t, pages[i].Path, loaded[i].Path)
		assert.Equal(t, pages[i].Locale, loaded[i].Locale)
		assert.Equal(t, pages[i].Category, loaded[i].Category)
		assert.Equal(t, pages[i].ChangeFreq, loaded[i].ChangeFreq)
		assert.InDelta(t, pages[i].Priority, loaded[i].Priority, 1e-9)
		assert.True(t, pages[i].LastModified.Equal(loaded[i].LastModified), pages[i].Path)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Generated by site-indexer discover")
}
