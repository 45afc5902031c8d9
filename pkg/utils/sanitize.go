package utils

import (
	"regexp"
	"strings"
)

var unsafeDirChars = regexp.MustCompile(`[^a-z0-9._-]+`)

const maxDirNameLength = 100

// SanitizeDirName turns a site key or domain into a single lowercase path component.
// "https://Example.com/" becomes "example.com".
func SanitizeDirName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = unsafeDirChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_.")

	if len(name) > maxDirNameLength {
		name = strings.Trim(name[:maxDirNameLength], "_.")
	}
	if name == "" {
		return "site"
	}
	return name
}
