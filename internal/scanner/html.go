package scanner

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sitewatch/internal/urlutil"
)

var reWhitespace = regexp.MustCompile(`\s+`)

// CanonicalText reduces an HTML document to its visible text: script and
// style blocks are dropped, remaining tags stripped, and whitespace
// collapsed. Malformed markup degrades to whatever text can be extracted;
// it never errors.
func CanonicalText(htmlStr string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return reWhitespace.ReplaceAllString(strings.TrimSpace(doc.Text()), " ")
}

// navLinks extracts up to max same-domain navigation links from the
// document's <nav> anchors, resolved to absolute URLs, deduplicated, with
// the page itself excluded.
func navLinks(htmlStr, pageURL string, max int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	selfCanonical, _ := urlutil.Canonicalize(pageURL)

	seen := make(map[string]struct{})
	var links []string
	doc.Find("nav a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		abs := resolveRef(base, href)
		if abs == "" || !urlutil.SameHost(abs, pageURL) {
			return true
		}
		canonical, err := urlutil.Canonicalize(abs)
		if err != nil || canonical == selfCanonical {
			return true
		}
		if _, dup := seen[canonical]; dup {
			return true
		}
		seen[canonical] = struct{}{}
		links = append(links, canonical)
		return len(links) < max
	})
	return links
}

// assetRef is a CSS or JS resource referenced by a page.
type assetRef struct {
	URL  string
	Type string // "css" or "js"
}

// assetRefs extracts up to max same-domain stylesheet and script references.
func assetRefs(htmlStr, pageURL string, max int) []assetRef {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var refs []assetRef
	add := func(rawRef, assetType string) bool {
		abs := resolveRef(base, rawRef)
		if abs == "" || !urlutil.SameHost(abs, pageURL) {
			return true
		}
		if _, dup := seen[abs]; dup {
			return true
		}
		seen[abs] = struct{}{}
		refs = append(refs, assetRef{URL: abs, Type: assetType})
		return len(refs) < max
	}

	doc.Find(`link[rel="stylesheet"][href]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		return add(href, "css")
	})
	if len(refs) < max {
		doc.Find("script[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			src, _ := sel.Attr("src")
			return add(src, "js")
		})
	}
	return refs
}

// resolveRef resolves href against base, returning "" for unusable refs.
func resolveRef(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}
