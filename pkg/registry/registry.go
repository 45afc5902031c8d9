package registry

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Defaults applied to fields a registry entry leaves out
const (
	DefaultPriority   = 0.5
	DefaultChangeFreq = models.ChangeFreqMonthly
	DefaultLocale     = models.LocaleEN
	DefaultCategory   = models.CategoryOther
)

// File is the on-disk registry layout
type File struct {
	Pages    []PageSpec   `yaml:"pages"`
	Matrices []MatrixSpec `yaml:"matrices,omitempty"`
}

// PageSpec is one hand-authored registry row
type PageSpec struct {
	Path       string   `yaml:"path"`
	Priority   *float64 `yaml:"priority,omitempty"`
	ChangeFreq string   `yaml:"changefreq,omitempty"`
	Locale     string   `yaml:"locale,omitempty"`
	Category   string   `yaml:"category,omitempty"`
	LastMod    string   `yaml:"lastmod,omitempty"`
	Title      string   `yaml:"title,omitempty"`
}

// MatrixSpec expands a path template over the cartesian product of its variables, once per locale.
type MatrixSpec struct {
	Name           string              `yaml:"name,omitempty"`
	Template       string              `yaml:"template"` // e.g. /services/{service}/{city}
	Vars           map[string][]string `yaml:"vars"`
	Priority       *float64            `yaml:"priority,omitempty"`
	ChangeFreq     string              `yaml:"changefreq,omitempty"`
	Category       string              `yaml:"category,omitempty"`
	Locales        []string            `yaml:"locales,omitempty"`
	LocalePriority map[string]float64  `yaml:"locale_priority,omitempty"`
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Load reads and expands a registry file. It does not validate; call Validate before building.
func Load(path string) ([]models.PageEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read registry %s: %w", utils.ErrFilesystem, path, err)
	}
	return Parse(data)
}

// Parse decodes registry YAML and expands its matrices
func Parse(data []byte) ([]models.PageEntry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: registry YAML: %w", utils.ErrConfigValidation, err)
	}
	return f.Entries()
}

// Entries converts the file into page entries, pages first and then each matrix in order
func (f *File) Entries() ([]models.PageEntry, error) {
	entries := make([]models.PageEntry, 0, len(f.Pages))
	for i, p := range f.Pages {
		entry, err := p.toEntry()
		if err != nil {
			return nil, fmt.Errorf("%w: pages[%d] (%s): %w", utils.ErrConfigValidation, i, p.Path, err)
		}
		entries = append(entries, entry)
	}
	for i, m := range f.Matrices {
		expanded, err := m.Expand()
		if err != nil {
			return nil, fmt.Errorf("%w: matrices[%d] (%s): %w", utils.ErrConfigValidation, i, m.label(), err)
		}
		entries = append(entries, expanded...)
	}
	return entries, nil
}

func (p PageSpec) toEntry() (models.PageEntry, error) {
	entry := models.PageEntry{
		Path:       p.Path,
		Priority:   DefaultPriority,
		ChangeFreq: DefaultChangeFreq,
		Locale:     DefaultLocale,
		Category:   DefaultCategory,
		Title:      p.Title,
	}
	if p.Priority != nil {
		entry.Priority = *p.Priority
	}
	if p.ChangeFreq != "" {
		entry.ChangeFreq = models.ChangeFreq(p.ChangeFreq)
	}
	if p.Locale != "" {
		entry.Locale = models.Locale(p.Locale)
	}
	if p.Category != "" {
		entry.Category = models.Category(p.Category)
	}
	if p.LastMod != "" {
		t, err := parseDate(p.LastMod)
		if err != nil {
			return entry, err
		}
		entry.LastModified = t
	}
	return entry, nil
}

// ApplyDefaults returns a copy of pages with an empty locale, category or changefreq
// set to the registry defaults. Priority is kept as is since 0.0 is a valid value.
func ApplyDefaults(pages []models.PageEntry) []models.PageEntry {
	out := make([]models.PageEntry, len(pages))
	for i, p := range pages {
		if p.Locale == "" {
			p.Locale = DefaultLocale
		}
		if p.Category == "" {
			p.Category = DefaultCategory
		}
		if p.ChangeFreq == "" {
			p.ChangeFreq = DefaultChangeFreq
		}
		out[i] = p
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("lastmod '%s' is neither YYYY-MM-DD nor RFC3339", s)
	}
	return t, nil
}

func (m MatrixSpec) label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Template
}

// Expand produces one entry per (locale, combination). Locales are the outer loop and
// the first placeholder in the template varies slowest.
func (m MatrixSpec) Expand() ([]models.PageEntry, error) {
	if m.Template == "" {
		return nil, fmt.Errorf("template is empty")
	}
	var names []string
	for _, match := range placeholderRe.FindAllStringSubmatch(m.Template, -1) {
		names = append(names, match[1])
	}
	for _, name := range names {
		if len(m.Vars[name]) == 0 {
			return nil, fmt.Errorf("placeholder {%s} has no values", name)
		}
	}

	paths := []string{m.Template}
	for _, name := range names {
		next := make([]string, 0, len(paths)*len(m.Vars[name]))
		for _, p := range paths {
			for _, value := range m.Vars[name] {
				next = append(next, strings.Replace(p, "{"+name+"}", value, 1))
			}
		}
		paths = next
	}

	locales := m.Locales
	if len(locales) == 0 {
		locales = []string{string(DefaultLocale)}
	}

	base := PageSpec{Priority: m.Priority, ChangeFreq: m.ChangeFreq, Category: m.Category}
	entries := make([]models.PageEntry, 0, len(paths)*len(locales))
	for _, loc := range locales {
		spec := base
		spec.Locale = loc
		if p, ok := m.LocalePriority[loc]; ok {
			spec.Priority = &p
		}
		for _, p := range paths {
			spec.Path = LocalePath(models.Locale(loc), p)
			entry, err := spec.toEntry()
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// LocalePath maps an English path into the given locale's tree ("/x" -> "/es/x", "/" -> "/es")
func LocalePath(locale models.Locale, path string) string {
	if locale != models.LocaleES {
		return path
	}
	if path == "/" {
		return "/es"
	}
	return "/es" + path
}
