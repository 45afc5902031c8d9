package utils

import (
	"regexp"
)

// CompileRegexPatterns compiles regex strings into usable *regexp.Regexp objects.
// Empty strings are skipped. When foldCase is set every pattern is compiled case-insensitively.
func CompileRegexPatterns(patterns []string, foldCase bool) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if foldCase {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, WrapErrorf(ErrConfigValidation, "invalid regex pattern #%d ('%s')", i+1, patterns[i])
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
