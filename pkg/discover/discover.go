package discover

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/parse"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// parseWorkers bounds concurrent HTML parsing
const parseWorkers = 8

// skipFiles are error pages a static build emits that never belong in a sitemap
var skipFiles = map[string]bool{"404.html": true, "500.html": true}

// categoryPrefixes maps the first path segment (after the locale prefix) to a category
var categoryPrefixes = map[string]models.Category{
	"conditions": models.CategoryCondition,
	"condition":  models.CategoryCondition,
	"services":   models.CategoryService,
	"service":    models.CategoryService,
	"locations":  models.CategoryLocation,
	"location":   models.CategoryLocation,
}

// htmlPage is what a single built page tells us about itself
type htmlPage struct {
	file      string
	canonical string
	lang      string
	noindex   bool
	title     string
	modTime   time.Time
}

// Scan walks distDir for built HTML pages and infers a registry entry for each indexable one.
// Entries are ordered en before es, then by depth and path.
func Scan(ctx context.Context, distDir, baseURL string, log *logrus.Entry) ([]models.PageEntry, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: discovery needs an absolute base URL, got '%s'", utils.ErrConfigValidation, baseURL)
	}

	var files []string
	err = filepath.WalkDir(distDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") || skipFiles[d.Name()] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", utils.ErrFilesystem, distDir, err)
	}

	pages := make([]*htmlPage, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseWorkers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := readPage(file)
			if err != nil {
				return err
			}
			pages[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]string)
	var entries []models.PageEntry
	for _, p := range pages {
		fileLog := log.WithField("file", p.file)
		if p.noindex {
			fileLog.Debug("Skipping noindex page")
			continue
		}
		path := filePath(distDir, p.file)
		if p.canonical != "" {
			if cp, ok := parse.SitePath(p.canonical, base); ok {
				path = cp
			} else {
				fileLog.WithField("canonical", p.canonical).Warn("Canonical URL is off-site, using file path")
			}
		}
		if first, dup := seen[path]; dup {
			fileLog.WithFields(logrus.Fields{"path": path, "first": first}).Warn("Duplicate page path, keeping first")
			continue
		}
		seen[path] = p.file
		entries = append(entries, infer(path, p))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Locale != b.Locale {
			return a.Locale == models.LocaleEN
		}
		if da, db := depth(a.Path), depth(b.Path); da != db {
			return da < db
		}
		return a.Path < b.Path
	})
	log.WithFields(logrus.Fields{"files": len(files), "pages": len(entries)}).Info("Discovery finished")
	return entries, nil
}

func readPage(file string) (*htmlPage, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrFilesystem, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrFilesystem, err)
	}
	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: HTML %s: %w", utils.ErrParsing, file, err)
	}

	p := &htmlPage{file: file, modTime: info.ModTime().UTC()}
	p.canonical, _ = doc.Find(`link[rel="canonical"]`).First().Attr("href")
	p.lang, _ = doc.Find("html").First().Attr("lang")
	doc.Find(`meta[name="robots"], meta[name="ROBOTS"]`).Each(func(_ int, s *goquery.Selection) {
		if content, ok := s.Attr("content"); ok && strings.Contains(strings.ToLower(content), "noindex") {
			p.noindex = true
		}
	})
	p.title = strings.TrimSpace(doc.Find("title").First().Text())
	return p, nil
}

// filePath maps dist/about/index.html to /about and dist/about.html to /about
func filePath(distDir, file string) string {
	rel, err := filepath.Rel(distDir, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	if rel == "index" || strings.HasSuffix(rel, "/index") {
		rel = strings.TrimSuffix(rel, "index")
	}
	return parse.NormalizePath("/" + rel)
}

// localeTree splits a path into its locale and the locale-relative path
func localeTree(path string) (models.Locale, string) {
	switch {
	case path == "/es":
		return models.LocaleES, "/"
	case strings.HasPrefix(path, "/es/"):
		return models.LocaleES, strings.TrimPrefix(path, "/es")
	}
	return models.LocaleEN, path
}

func depth(path string) int {
	_, rel := localeTree(path)
	return len(strings.FieldsFunc(rel, func(r rune) bool { return r == '/' }))
}

func infer(path string, p *htmlPage) models.PageEntry {
	locale, rel := localeTree(path)
	if strings.HasPrefix(strings.ToLower(p.lang), "es") {
		locale = models.LocaleES
	}
	d := depth(path)

	category := models.CategoryOther
	segments := strings.FieldsFunc(rel, func(r rune) bool { return r == '/' })
	switch {
	case len(segments) == 0:
		category = models.CategoryMain
	case categoryPrefixes[segments[0]] != "":
		category = categoryPrefixes[segments[0]]
	case len(segments) == 1:
		category = models.CategoryMain
	}

	priority := 1.0 - 0.1*float64(min(d, 4))
	if d > 0 {
		priority -= 0.1
	}
	if locale == models.LocaleES {
		priority -= 0.1
	}
	priority = math.Round(priority*10) / 10

	changeFreq := models.ChangeFreqMonthly
	switch d {
	case 0:
		changeFreq = models.ChangeFreqDaily
	case 1:
		changeFreq = models.ChangeFreqWeekly
	}

	return models.PageEntry{
		Path:         path,
		Priority:     priority,
		ChangeFreq:   changeFreq,
		Locale:       locale,
		Category:     category,
		LastModified: p.modTime.Truncate(24 * time.Hour),
		Title:        p.title,
	}
}
