package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Validate checks every registry invariant and reports all violations in one error.
// Duplicate paths are rejected outright, never merged.
func Validate(pages []models.PageEntry) error {
	var problems []string
	seen := make(map[string]int, len(pages))

	for i, p := range pages {
		where := fmt.Sprintf("entry %d (%q)", i, p.Path)
		switch {
		case p.Path == "":
			problems = append(problems, fmt.Sprintf("entry %d: path is empty", i))
		case !strings.HasPrefix(p.Path, "/"):
			problems = append(problems, where+": path must start with '/'")
		case strings.Contains(p.Path, "//"):
			problems = append(problems, where+": path contains '//'")
		}
		if p.Path != "" {
			if first, dup := seen[p.Path]; dup {
				problems = append(problems, fmt.Sprintf("%s: duplicate path, first defined at entry %d", where, first))
			} else {
				seen[p.Path] = i
			}
		}
		if !(p.Priority >= 0 && p.Priority <= 1) { // also rejects NaN
			problems = append(problems, fmt.Sprintf("%s: priority %v outside [0.0, 1.0]", where, p.Priority))
		}
		if !p.ChangeFreq.IsValid() {
			problems = append(problems, fmt.Sprintf("%s: invalid changefreq '%s'", where, p.ChangeFreq))
		}
		if !p.Locale.IsValid() {
			problems = append(problems, fmt.Sprintf("%s: invalid locale '%s'", where, p.Locale))
		}
		if !p.Category.IsValid() {
			problems = append(problems, fmt.Sprintf("%s: invalid category '%s'", where, p.Category))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: registry has %d problem(s): %s",
			utils.ErrConfigValidation, len(problems), strings.Join(problems, "; "))
	}
	return nil
}

// Stats summarizes a registry for logs and inspection
type Stats struct {
	Total      int                     `json:"total"`
	ByCategory map[models.Category]int `json:"by_category"`
	ByLocale   map[models.Locale]int   `json:"by_locale"`
	ByPriority map[string]int          `json:"by_priority"` // Keyed by formatted priority
}

// ComputeStats counts entries per category, locale and priority
func ComputeStats(pages []models.PageEntry) Stats {
	s := Stats{
		Total:      len(pages),
		ByCategory: make(map[models.Category]int),
		ByLocale:   make(map[models.Locale]int),
		ByPriority: make(map[string]int),
	}
	for _, p := range pages {
		s.ByCategory[p.Category]++
		s.ByLocale[p.Locale]++
		s.ByPriority[models.FormatPriority(p.Priority)]++
	}
	return s
}

// PriorityKeys returns the priority buckets highest first
func (s Stats) PriorityKeys() []string {
	keys := make([]string, 0, len(s.ByPriority))
	for k := range s.ByPriority {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}
