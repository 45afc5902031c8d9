package models

import (
	"strconv"
	"strings"
	"time"
)

// PageEntry is one logical page of a site's registry
type PageEntry struct {
	Path         string     `json:"path" yaml:"path"`
	Priority     float64    `json:"priority" yaml:"priority"`
	ChangeFreq   ChangeFreq `json:"changefreq" yaml:"changefreq"`
	Locale       Locale     `json:"locale" yaml:"locale"`
	Category     Category   `json:"category" yaml:"category"`
	LastModified time.Time  `json:"lastmod,omitempty" yaml:"-"` // Zero = use generation time
	Title        string     `json:"title,omitempty" yaml:"title,omitempty"`
}

// IsSpanish reports whether the entry belongs to the es locale tree
func (p PageEntry) IsSpanish() bool {
	return p.Locale == LocaleES
}

// IsRoot reports whether the entry is a locale home page ("/", "/es" or "/es/")
func (p PageEntry) IsRoot() bool {
	switch p.Path {
	case "/", "/es", "/es/":
		return true
	}
	return false
}

// FormatPriority renders a priority with at least one decimal (1 -> "1.0", 0.85 -> "0.85")
func FormatPriority(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
