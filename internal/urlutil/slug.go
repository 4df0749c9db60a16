package urlutil

import (
	"net/url"
	"strings"
)

// Slugify turns an arbitrary string into a filesystem-safe slug:
// lowercase, with every run of non-alphanumeric characters collapsed
// into a single hyphen. Returns "root" for strings with no usable
// characters so callers always get a valid directory name.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // swallow leading hyphens
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "root"
	}
	return slug
}

// SiteSlug derives the snapshot directory name for a website URL from
// its hostname, e.g. "https://www.example.com/x" -> "www-example-com".
func SiteSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Slugify(rawURL)
	}
	return Slugify(u.Hostname())
}

// PageSlug derives the snapshot file-group name for a page URL from its
// path, e.g. "https://example.com/about/team" -> "about-team". The site
// root maps to "home".
func PageSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Slugify(rawURL)
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return "home"
	}
	return Slugify(p)
}
