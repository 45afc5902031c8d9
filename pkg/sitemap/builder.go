package sitemap

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/parse"
	"github.com/Sriram-PR/site-indexer/pkg/registry"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// File names of the generated documents
const (
	MainName  = "sitemap"
	IndexFile = "sitemap-index.xml"
)

const dateLayout = "2006-01-02"

// Kind distinguishes urlset documents from the index
type Kind string

const (
	KindURLSet Kind = "urlset"
	KindIndex  Kind = "sitemapindex"
)

// Options configures a Builder
type Options struct {
	BaseURL         string            // Required, e.g. https://eyecare.example
	GeneratedAt     time.Time         // Zero = now; fix it for reproducible output
	Categories      []models.Category // Category sub-sitemaps to emit; nil disables them
	MaxURLsPerFile  int               // 0 = protocol limit
	MaxBytesPerFile int64             // 0 = protocol limit
}

// Document is one serialized sitemap file
type Document struct {
	Filename string
	Kind     Kind
	Category models.Category // Empty for the main series and the index
	Pages    []models.PageEntry
	Content  []byte
}

// Set is the full output of a build
type Set struct {
	Main       []*Document // sitemap.xml, or sitemap-1.xml.. when split
	Categories []*Document
	Index      *Document
	URLCount   int
}

// All returns every document, index last
func (s *Set) All() []*Document {
	docs := make([]*Document, 0, len(s.Main)+len(s.Categories)+1)
	docs = append(docs, s.Main...)
	docs = append(docs, s.Categories...)
	if s.Index != nil {
		docs = append(docs, s.Index)
	}
	return docs
}

// Split reports whether the main sitemap had to be split into parts
func (s *Set) Split() bool {
	return len(s.Main) > 1
}

// URLs returns the absolute URL of every document, index first
func (s *Set) URLs(baseURL string) []string {
	base := strings.TrimRight(baseURL, "/")
	urls := make([]string, 0, len(s.Main)+len(s.Categories)+1)
	if s.Index != nil {
		urls = append(urls, base+"/"+s.Index.Filename)
	}
	for _, d := range s.Main {
		urls = append(urls, base+"/"+d.Filename)
	}
	for _, d := range s.Categories {
		urls = append(urls, base+"/"+d.Filename)
	}
	return urls
}

// Builder turns a page registry into sitemap documents
type Builder struct {
	opts Options
	base string
}

// NewBuilder validates options and fills protocol limits
func NewBuilder(opts Options) (*Builder, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: sitemap builder needs a base URL", utils.ErrConfigValidation)
	}
	if opts.MaxURLsPerFile <= 0 || opts.MaxURLsPerFile > config.MaxSitemapURLs {
		opts.MaxURLsPerFile = config.MaxSitemapURLs
	}
	if opts.MaxBytesPerFile <= 0 || opts.MaxBytesPerFile > config.MaxSitemapBytes {
		opts.MaxBytesPerFile = config.MaxSitemapBytes
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	opts.GeneratedAt = opts.GeneratedAt.UTC()
	return &Builder{opts: opts, base: base}, nil
}

// Loc returns the absolute URL of a site path
func (b *Builder) Loc(path string) string {
	return b.base + path
}

// Build defaults unset locale, category and changefreq, validates pages and renders
// the full document set. Nothing is written.
func (b *Builder) Build(pages []models.PageEntry) (*Set, error) {
	pages = registry.ApplyDefaults(pages)
	if err := registry.Validate(pages); err != nil {
		return nil, err
	}

	byPath := make(map[string]models.PageEntry, len(pages))
	for _, p := range pages {
		byPath[p.Path] = p
	}

	urls := make([]xmlURL, len(pages))
	for i, p := range pages {
		urls[i] = b.urlFor(p, byPath)
	}

	set := &Set{URLCount: len(pages)}
	main, err := b.splitURLSet(MainName, "", pages, urls)
	if err != nil {
		return nil, err
	}
	set.Main = main

	for _, cat := range b.opts.Categories {
		var catPages []models.PageEntry
		var catURLs []xmlURL
		for i, p := range pages {
			if p.Category == cat {
				catPages = append(catPages, p)
				catURLs = append(catURLs, urls[i])
			}
		}
		if len(catPages) == 0 {
			continue
		}
		docs, err := b.splitURLSet(MainName+"-"+string(cat), cat, catPages, catURLs)
		if err != nil {
			return nil, err
		}
		set.Categories = append(set.Categories, docs...)
	}

	index, err := b.buildIndex(append(append([]*Document{}, set.Main...), set.Categories...))
	if err != nil {
		return nil, err
	}
	set.Index = index
	return set, nil
}

func (b *Builder) urlFor(p models.PageEntry, byPath map[string]models.PageEntry) xmlURL {
	lastMod := p.LastModified
	if lastMod.IsZero() {
		lastMod = b.opts.GeneratedAt
	}
	u := xmlURL{
		Loc:        b.Loc(p.Path),
		LastMod:    lastMod.UTC().Format(dateLayout),
		ChangeFreq: string(p.ChangeFreq),
		Priority:   models.FormatPriority(p.Priority),
	}

	mirror, ok := findMirror(p, byPath)
	if !ok {
		return u
	}
	en, es := p, mirror
	if p.IsSpanish() {
		en, es = mirror, p
	}
	u.Links = []xmlLink{
		{Rel: "alternate", Hreflang: string(models.LocaleEN), Href: b.Loc(en.Path)},
		{Rel: "alternate", Hreflang: string(models.LocaleES), Href: b.Loc(es.Path)},
	}
	if en.IsRoot() && es.IsRoot() {
		u.Links = append(u.Links, xmlLink{Rel: "alternate", Hreflang: "x-default", Href: b.base + "/"})
	}
	return u
}

// findMirror returns the other-locale counterpart of p when the registry has it
func findMirror(p models.PageEntry, byPath map[string]models.PageEntry) (models.PageEntry, bool) {
	for _, candidate := range MirrorPaths(p) {
		if m, ok := byPath[candidate]; ok && m.Locale == p.Locale.Other() {
			return m, true
		}
	}
	return models.PageEntry{}, false
}

// MirrorPaths lists the paths that may hold p's translation, most likely first
func MirrorPaths(p models.PageEntry) []string {
	switch p.Locale {
	case models.LocaleEN:
		if p.Path == "/" {
			return []string{"/es", "/es/"}
		}
		return []string{"/es" + p.Path}
	case models.LocaleES:
		switch {
		case p.Path == "/es" || p.Path == "/es/":
			return []string{"/"}
		case strings.HasPrefix(p.Path, "/es/"):
			return []string{strings.TrimPrefix(p.Path, "/es")}
		}
	}
	return nil
}

// splitURLSet renders pages as name.xml, or as name-1.xml.. when a single file would exceed a limit
func (b *Builder) splitURLSet(name string, cat models.Category, pages []models.PageEntry, urls []xmlURL) ([]*Document, error) {
	comment := ""
	if cat != "" {
		comment = "category: " + string(cat)
	}

	if len(urls) <= b.opts.MaxURLsPerFile {
		content, err := render(newURLSet(comment, urls))
		if err != nil {
			return nil, err
		}
		if b.fits(content) {
			return []*Document{{Filename: name + ".xml", Kind: KindURLSet, Category: cat, Pages: pages, Content: content}}, nil
		}
	}

	var parts []*Document
	for start := 0; start < len(urls); start += b.opts.MaxURLsPerFile {
		end := min(start+b.opts.MaxURLsPerFile, len(urls))
		chunk, err := b.fitBytes(comment, cat, pages[start:end], urls[start:end])
		if err != nil {
			return nil, err
		}
		parts = append(parts, chunk...)
	}
	for i, part := range parts {
		part.Filename = fmt.Sprintf("%s-%d.xml", name, i+1)
	}
	return parts, nil
}

// fits reports whether content stays strictly under the byte limit, the bound the validator enforces
func (b *Builder) fits(content []byte) bool {
	return int64(len(content)) < b.opts.MaxBytesPerFile
}

// fitBytes halves a chunk until every half serializes under the byte limit
func (b *Builder) fitBytes(comment string, cat models.Category, pages []models.PageEntry, urls []xmlURL) ([]*Document, error) {
	content, err := render(newURLSet(comment, urls))
	if err != nil {
		return nil, err
	}
	if b.fits(content) {
		return []*Document{{Kind: KindURLSet, Category: cat, Pages: pages, Content: content}}, nil
	}
	if len(urls) == 1 {
		return nil, fmt.Errorf("%w: URL %s alone reaches %d bytes", utils.ErrConfigValidation, urls[0].Loc, b.opts.MaxBytesPerFile)
	}
	mid := len(urls) / 2
	left, err := b.fitBytes(comment, cat, pages[:mid], urls[:mid])
	if err != nil {
		return nil, err
	}
	right, err := b.fitBytes(comment, cat, pages[mid:], urls[mid:])
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

func (b *Builder) buildIndex(docs []*Document) (*Document, error) {
	date := b.opts.GeneratedAt.Format(dateLayout)
	index := &xmlSitemapIndex{XMLNS: parse.SitemapNamespace}
	for _, d := range docs {
		index.Sitemaps = append(index.Sitemaps, xmlSitemap{Loc: b.base + "/" + d.Filename, LastMod: date})
	}
	content, err := render(index)
	if err != nil {
		return nil, err
	}
	return &Document{Filename: IndexFile, Kind: KindIndex, Content: content}, nil
}
