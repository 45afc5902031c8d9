package validate

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/parse"
	"github.com/Sriram-PR/site-indexer/pkg/robots"
	"github.com/Sriram-PR/site-indexer/pkg/sitemap"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// DefaultSuccessRate is the pass ratio a clean READY verdict needs
const DefaultSuccessRate = 0.9

// Options configure a Validator. Zero values disable the optional bounds.
type Options struct {
	BaseURL              string
	ExpectedURLCount     int // 0 = not checked
	URLCountTolerance    int
	RequiredURLs         []string // Absolute URLs or site paths
	Priority09Min        int
	Priority09Max        int // 0 = no band
	MinSpanishPages      int
	ExtraPHIPatterns     []string
	SuccessRateThreshold float64
}

// Validator reads emitted artifacts back and checks them. It never writes to the inspected directory.
type Validator struct {
	opts   Options
	base   *url.URL
	phi    []*regexp.Regexp
	checks []check
	log    *logrus.Entry
}

// NewValidator compiles the PHI patterns and resolves the base URL
func NewValidator(opts Options, log *logrus.Entry) (*Validator, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("%w: validator needs an absolute base URL, got '%s'", utils.ErrConfigValidation, opts.BaseURL)
	}
	phi, err := utils.CompileRegexPatterns(append(append([]string{}, PHIPatterns...), opts.ExtraPHIPatterns...), true)
	if err != nil {
		return nil, err
	}
	if opts.SuccessRateThreshold <= 0 || opts.SuccessRateThreshold > 1 {
		opts.SuccessRateThreshold = DefaultSuccessRate
	}
	if opts.URLCountTolerance < 0 {
		opts.URLCountTolerance = 0
	}
	v := &Validator{opts: opts, base: base, phi: phi, log: log}
	v.checks = v.checkTable()
	return v, nil
}

// sitemapFile is one sitemap document read from disk
type sitemapFile struct {
	Name string
	Data []byte
	Doc  *parse.Document
	Err  error
}

// artifacts is everything read from an output directory
type artifacts struct {
	Main       []*sitemapFile
	Index      *sitemapFile
	Categories []*sitemapFile
	URLs       []parse.XMLURL // URLs of the main series, in file order
	Robots     *robotstxt.RobotsData
	RobotsErr  error
}

func (a *artifacts) all() []*sitemapFile {
	files := append([]*sitemapFile{}, a.Main...)
	if a.Index != nil {
		files = append(files, a.Index)
	}
	return append(files, a.Categories...)
}

var mainPartRe = regexp.MustCompile(`^` + sitemap.MainName + `-(\d+)\.xml$`)

// load reads sitemap.xml (or its numbered parts), the index, the category files and robots.txt from dir
func (v *Validator) load(dir string) (*artifacts, []string) {
	a := &artifacts{}
	var errs []string

	names, err := filepath.Glob(filepath.Join(dir, sitemap.MainName+"*.xml"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("list sitemaps: %v", err))
	}
	var parts []string
	for _, path := range names {
		name := filepath.Base(path)
		switch {
		case name == sitemap.MainName+".xml":
			a.Main = []*sitemapFile{readSitemap(path)}
		case name == sitemap.IndexFile:
			a.Index = readSitemap(path)
		case mainPartRe.MatchString(name):
			parts = append(parts, path)
		default:
			a.Categories = append(a.Categories, readSitemap(path))
		}
	}
	if len(a.Main) == 0 {
		sort.Slice(parts, func(i, j int) bool { return partNumber(parts[i]) < partNumber(parts[j]) })
		for _, path := range parts {
			a.Main = append(a.Main, readSitemap(path))
		}
	}
	if len(a.Main) == 0 {
		errs = append(errs, fmt.Sprintf("no %s.xml (or numbered parts) in %s", sitemap.MainName, dir))
	}

	for _, f := range a.all() {
		if f.Err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", f.Name, f.Err))
		}
	}
	for _, f := range a.Main {
		if f.Doc != nil && f.Doc.URLSet != nil {
			a.URLs = append(a.URLs, f.Doc.URLSet.URLs...)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, robots.FileName))
	switch {
	case err == nil:
		a.Robots, a.RobotsErr = robotstxt.FromBytes(data)
		if a.RobotsErr != nil {
			a.RobotsErr = fmt.Errorf("%w: robots.txt: %w", utils.ErrParsing, a.RobotsErr)
		}
	case errors.Is(err, os.ErrNotExist):
		a.RobotsErr = fmt.Errorf("%w: %s not found", utils.ErrFilesystem, robots.FileName)
	default:
		a.RobotsErr = fmt.Errorf("%w: read %s: %w", utils.ErrFilesystem, robots.FileName, err)
	}
	if a.RobotsErr != nil {
		errs = append(errs, a.RobotsErr.Error())
	}
	return a, errs
}

func readSitemap(path string) *sitemapFile {
	f := &sitemapFile{Name: filepath.Base(path)}
	f.Data, f.Err = os.ReadFile(path)
	if f.Err != nil {
		f.Err = fmt.Errorf("%w: %w", utils.ErrFilesystem, f.Err)
		return f
	}
	f.Doc, f.Err = parse.ParseDocument(f.Data)
	return f
}

func partNumber(path string) int {
	m := mainPartRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// Validate runs every check against the artifacts in dir and aggregates a report
func (v *Validator) Validate(dir string) *Report {
	a, loadErrs := v.load(dir)
	report := &Report{
		Timestamp: time.Now().UTC(),
		SiteURL:   v.base.String(),
		Directory: dir,
		Errors:    loadErrs,
	}

	for _, c := range v.checks {
		res := c.fn(a)
		res.Name = c.name
		report.add(res)

		entry := v.log.WithFields(logrus.Fields{"check": res.Name, "status": res.Status})
		switch res.Status {
		case models.CheckPass:
			entry.Info(res.Message)
		case models.CheckWarning:
			entry.Warn(res.Message)
		default:
			entry.Error(res.Message)
		}
	}
	report.finalize(v.opts.SuccessRateThreshold)

	v.log.WithFields(logrus.Fields{
		"passed":  report.Passed,
		"warned":  report.Warned,
		"failed":  report.Failed,
		"verdict": report.Verdict,
	}).Info("Deployment validation finished")
	return report
}
