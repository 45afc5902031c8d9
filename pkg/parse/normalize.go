package parse

import (
	"net"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL for comparison.
// It lowercases scheme and host, drops default ports, the fragment and the query,
// trims a trailing slash (except on "/") and turns an empty path into "/".
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = strings.ToLower(normalized.Host)

	if host, port, err := net.SplitHostPort(normalized.Host); err == nil {
		if (normalized.Scheme == "http" && port == "80") ||
			(normalized.Scheme == "https" && port == "443") {
			normalized.Host = host
		}
	}

	normalized.Path = NormalizePath(normalized.Path)
	normalized.RawPath = ""
	normalized.Fragment = ""
	normalized.RawQuery = ""

	return normalized.String()
}

// NormalizePath trims a trailing slash (except on root) and turns "" into "/"
func NormalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		return strings.TrimRight(p, "/")
	}
	return p
}

// SitePath resolves ref against base and returns its normalized path when it stays on base's host.
// ok is false for unparsable references and off-site URLs.
func SitePath(ref string, base *url.URL) (path string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
		if !strings.EqualFold(hostOnly(u), hostOnly(base)) {
			return "", false
		}
	} else if u.Host != "" {
		return "", false
	}
	return NormalizePath(u.Path), true
}

func hostOnly(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
