package validate

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sriram-PR/site-indexer/pkg/config"
	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/parse"
)

// PHIPatterns match path segments shaped like patient identifiers
var PHIPatterns = []string{
	`patient[-_]?\d+`,
	`\d{3}-\d{2}-\d{4}`,
	`appointment[-_]?\d+`,
	`record[-_]?\d+`,
	`mrn[-_]?\d+`,
}

// nameTokens are personal-name tokens that must not appear as a whole path token
var nameTokens = map[string]bool{"john": true, "jane": true, "smith": true, "doe": true}

// maxListed caps how many offenders a message names
const maxListed = 5

type check struct {
	name string
	fn   func(a *artifacts) CheckResult
}

func (v *Validator) checkTable() []check {
	return []check{
		{"xml_declaration", v.checkXMLDeclaration},
		{"sitemap_namespace", v.checkNamespace},
		{"url_count", v.checkURLCount},
		{"required_urls", v.checkRequiredURLs},
		{"priority_distribution", v.checkPriorityDistribution},
		{"file_size", v.checkFileSize},
		{"no_phi_paths", v.checkPHI},
		{"robots_sitemap_directive", v.checkRobotsSitemap},
		{"robots_global_group", v.checkRobotsGlobalGroup},
		{"robots_admin_disallowed", v.checkRobotsAdmin},
		{"duplicate_urls", v.checkDuplicates},
		{"hreflang_reciprocity", v.checkHreflang},
		{"spanish_coverage", v.checkSpanishCoverage},
	}
}

func pass(format string, args ...any) CheckResult {
	return CheckResult{Status: models.CheckPass, Message: fmt.Sprintf(format, args...)}
}

func warn(format string, args ...any) CheckResult {
	return CheckResult{Status: models.CheckWarning, Message: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) CheckResult {
	return CheckResult{Status: models.CheckFail, Message: fmt.Sprintf(format, args...)}
}

func listed(items []string) string {
	if len(items) <= maxListed {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:maxListed], ", "), len(items)-maxListed)
}

var noSitemap = fail("no readable main sitemap")

func (v *Validator) checkXMLDeclaration(a *artifacts) CheckResult {
	files := a.all()
	if len(a.Main) == 0 {
		return noSitemap
	}
	var missing []string
	for _, f := range files {
		if f.Data != nil && !parse.HasXMLDeclaration(f.Data) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return fail("missing <?xml ...?> declaration: %s", listed(missing))
	}
	return pass("%d file(s) start with an XML declaration", len(files))
}

func (v *Validator) checkNamespace(a *artifacts) CheckResult {
	if len(a.Main) == 0 {
		return noSitemap
	}
	var bad []string
	for _, f := range a.all() {
		switch {
		case f.Doc == nil:
			bad = append(bad, f.Name+" (unparsable)")
		case f.Doc.Namespace != parse.SitemapNamespace:
			bad = append(bad, fmt.Sprintf("%s (<%s> xmlns=%q)", f.Name, f.Doc.Root, f.Doc.Namespace))
		}
	}
	if len(bad) > 0 {
		return fail("wrong or missing sitemaps.org namespace: %s", listed(bad))
	}
	return pass("root elements carry %s", parse.SitemapNamespace)
}

func (v *Validator) checkURLCount(a *artifacts) CheckResult {
	got, want := len(a.URLs), v.opts.ExpectedURLCount
	if want <= 0 {
		return warn("found %d URLs, no expected count configured", got)
	}
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return pass("found %d URLs as expected", got)
	case diff <= v.opts.URLCountTolerance:
		return warn("found %d URLs, expected %d (within tolerance %d)", got, want, v.opts.URLCountTolerance)
	default:
		return fail("found %d URLs, expected %d", got, want)
	}
}

// sitePaths returns the normalized on-site path of every loc
func (v *Validator) sitePaths(a *artifacts) map[string]bool {
	paths := make(map[string]bool, len(a.URLs))
	for _, u := range a.URLs {
		if p, ok := parse.SitePath(u.Loc, v.base); ok {
			paths[p] = true
		}
	}
	return paths
}

func (v *Validator) checkRequiredURLs(a *artifacts) CheckResult {
	if len(v.opts.RequiredURLs) == 0 {
		return pass("no required URLs configured")
	}
	paths := v.sitePaths(a)
	var missing []string
	for _, ref := range v.opts.RequiredURLs {
		p, ok := parse.SitePath(ref, v.base)
		if !ok || !paths[p] {
			missing = append(missing, ref)
		}
	}
	if len(missing) > 0 {
		return fail("%d required URL(s) missing: %s", len(missing), listed(missing))
	}
	return pass("all %d required URLs present", len(v.opts.RequiredURLs))
}

func (v *Validator) checkPriorityDistribution(a *artifacts) CheckResult {
	var top, high, bad int
	for _, u := range a.URLs {
		p, err := u.PriorityValue()
		switch {
		case err != nil || p < 0 || p > 1:
			bad++
		case p == 1.0:
			top++
		case p == 0.9:
			high++
		}
	}
	var problems []string
	if bad > 0 {
		problems = append(problems, fmt.Sprintf("%d unparsable or out-of-range priorities", bad))
	}
	if top != 1 {
		problems = append(problems, fmt.Sprintf("%d page(s) at 1.0, expected exactly one", top))
	}
	if v.opts.Priority09Max > 0 && (high < v.opts.Priority09Min || high > v.opts.Priority09Max) {
		problems = append(problems, fmt.Sprintf("%d page(s) at 0.9, expected %d-%d",
			high, v.opts.Priority09Min, v.opts.Priority09Max))
	}
	if len(problems) > 0 {
		return warn("%s", strings.Join(problems, "; "))
	}
	return pass("one page at 1.0, %d at 0.9", high)
}

func (v *Validator) checkFileSize(a *artifacts) CheckResult {
	if len(a.Main) == 0 {
		return noSitemap
	}
	var over []string
	for _, f := range a.all() {
		if len(f.Data) >= config.MaxSitemapBytes {
			over = append(over, fmt.Sprintf("%s (%d bytes)", f.Name, len(f.Data)))
		}
		if n := f.entries(); n > config.MaxSitemapURLs {
			over = append(over, fmt.Sprintf("%s (%d entries)", f.Name, n))
		}
	}
	if len(over) > 0 {
		return fail("over protocol limits: %s", listed(over))
	}
	return pass("every file under 50MB and %d entries", config.MaxSitemapURLs)
}

func (f *sitemapFile) entries() int {
	switch {
	case f.Doc == nil:
		return 0
	case f.Doc.URLSet != nil:
		return len(f.Doc.URLSet.URLs)
	case f.Doc.Index != nil:
		return len(f.Doc.Index.Sitemaps)
	}
	return 0
}

// phiSegment reports whether a decoded path segment looks like personal health information
func (v *Validator) phiSegment(seg string) bool {
	for _, re := range v.phi {
		if re.MatchString(seg) {
			return true
		}
	}
	tokens := strings.FieldsFunc(strings.ToLower(seg), func(r rune) bool {
		return r == '-' || r == '_' || r == '.'
	})
	for _, t := range tokens {
		if nameTokens[t] {
			return true
		}
	}
	return false
}

func (v *Validator) checkPHI(a *artifacts) CheckResult {
	var hits []string
	for _, u := range a.URLs {
		parsed, err := url.Parse(u.Loc)
		if err != nil {
			continue
		}
		for _, seg := range strings.Split(parsed.Path, "/") {
			if seg != "" && v.phiSegment(seg) {
				hits = append(hits, parsed.Path)
				break
			}
		}
	}
	if len(hits) > 0 {
		return fail("%d URL(s) with PHI-shaped segments: %s", len(hits), listed(hits))
	}
	return pass("no PHI-shaped path segments in %d URLs", len(a.URLs))
}

// emittedURLs are the absolute URLs of every sitemap file found
func (v *Validator) emittedURLs(a *artifacts) map[string]bool {
	urls := make(map[string]bool)
	for _, f := range a.all() {
		urls[v.base.String()+"/"+f.Name] = true
	}
	return urls
}

func (v *Validator) checkRobotsSitemap(a *artifacts) CheckResult {
	if a.Robots == nil {
		return fail("robots.txt unavailable: %v", a.RobotsErr)
	}
	if len(a.Robots.Sitemaps) == 0 {
		return fail("robots.txt has no Sitemap: directive")
	}
	emitted := v.emittedURLs(a)
	for _, s := range a.Robots.Sitemaps {
		if emitted[strings.TrimSpace(s)] {
			return pass("Sitemap: %s matches an emitted sitemap", s)
		}
	}
	return fail("no Sitemap: directive matches an emitted sitemap (%s)", listed(a.Robots.Sitemaps))
}

func (v *Validator) checkRobotsGlobalGroup(a *artifacts) CheckResult {
	if a.Robots == nil {
		return warn("robots.txt unavailable: %v", a.RobotsErr)
	}
	if a.Robots.FindGroup("*") == nil {
		return warn("robots.txt has no 'User-agent: *' group")
	}
	return pass("robots.txt has a 'User-agent: *' group")
}

func (v *Validator) checkRobotsAdmin(a *artifacts) CheckResult {
	if a.Robots == nil {
		return warn("robots.txt unavailable: %v", a.RobotsErr)
	}
	if a.Robots.TestAgent("/admin/", "*") {
		return warn("/admin/ is crawlable by '*'")
	}
	return pass("/admin/ is disallowed for '*'")
}

func (v *Validator) checkDuplicates(a *artifacts) CheckResult {
	seen := make(map[string]int, len(a.URLs))
	var dups []string
	for _, u := range a.URLs {
		seen[u.Loc]++
		if seen[u.Loc] == 2 {
			dups = append(dups, u.Loc)
		}
	}
	if len(dups) > 0 {
		return fail("%d duplicated <loc>: %s", len(dups), listed(dups))
	}
	return pass("%d unique URLs", len(a.URLs))
}

func (v *Validator) checkHreflang(a *artifacts) CheckResult {
	links := make(map[string]map[string]bool, len(a.URLs))
	for _, u := range a.URLs {
		hrefs := make(map[string]bool, len(u.Links))
		for _, l := range u.Links {
			hrefs[l.Href] = true
		}
		links[u.Loc] = hrefs
	}

	var broken []string
	pairs := 0
	for _, u := range a.URLs {
		for _, l := range u.Links {
			if l.Hreflang == "x-default" || l.Href == u.Loc {
				continue
			}
			pairs++
			back, ok := links[l.Href]
			switch {
			case !ok:
				broken = append(broken, fmt.Sprintf("%s -> %s (not in sitemap)", u.Loc, l.Href))
			case !back[u.Loc]:
				broken = append(broken, fmt.Sprintf("%s -> %s (no return link)", u.Loc, l.Href))
			}
		}
	}
	if len(broken) > 0 {
		return fail("%d non-reciprocal alternate(s): %s", len(broken), listed(broken))
	}
	return pass("%d alternate link(s), all reciprocal", pairs)
}

func (v *Validator) checkSpanishCoverage(a *artifacts) CheckResult {
	es := 0
	for _, u := range a.URLs {
		p, ok := parse.SitePath(u.Loc, v.base)
		if ok && (p == "/es" || strings.HasPrefix(p, "/es/")) {
			es++
		}
	}
	switch {
	case es == 0:
		return warn("no Spanish URLs")
	case es > v.opts.MinSpanishPages:
		return pass("%d Spanish URLs", es)
	default:
		return warn("only %d Spanish URLs, want more than %d", es, v.opts.MinSpanishPages)
	}
}
