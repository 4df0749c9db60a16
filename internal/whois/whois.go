// Package whois performs best-effort domain expiry lookups over the WHOIS
// protocol. It is deliberately not a general WHOIS client: server resolution
// and expiry parsing are ordered-fallback heuristics, and every failure mode
// yields "no data" rather than an error surfaced to the check.
package whois

import (
	"context"
	"io"
	"log"
	"math"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultQueryTimeout = 10 * time.Second
	ianaQueryTimeout    = 5 * time.Second
	whoisPort           = "43"
)

// whoisServers maps a TLD to its registry WHOIS server.
var whoisServers = map[string]string{
	"com":  "whois.verisign-grs.com",
	"net":  "whois.verisign-grs.com",
	"org":  "whois.pir.org",
	"info": "whois.afilias.net",
	"biz":  "whois.biz",
	"io":   "whois.nic.io",
	"co":   "whois.nic.co",
	"us":   "whois.nic.us",
	"uk":   "whois.nic.uk",
	"au":   "whois.auda.org.au",
	"de":   "whois.denic.de",
	"fr":   "whois.nic.fr",
	"nl":   "whois.domain-registry.nl",
	"ca":   "whois.cira.ca",
	"app":  "whois.nic.google",
	"dev":  "whois.nic.google",
	"id":   "whois.id",
	"me":   "whois.nic.me",
	"tv":   "whois.nic.tv",
	"cc":   "whois.nic.cc",
	"mobi": "whois.dotmobiregistry.net",
	"name": "whois.nic.name",
	"pro":  "whois.registry.pro",
}

// secondLevelDomains lists public second-level registrations where the
// registrable domain spans three labels (example.co.uk, not co.uk).
var secondLevelDomains = map[string]struct{}{
	"co.uk": {}, "org.uk": {}, "ac.uk": {}, "gov.uk": {},
	"co.id": {}, "or.id": {}, "ac.id": {}, "web.id": {},
	"com.au": {}, "net.au": {}, "org.au": {},
	"co.nz": {}, "co.jp": {}, "co.kr": {}, "co.za": {},
	"com.br": {}, "com.mx": {}, "com.tr": {}, "com.cn": {}, "com.sg": {},
}

// expiryPatterns is the ordered list of expiry labels seen across registry
// formats; the first match in the response wins.
var expiryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Registry Expiry Date:\s*(.+)`),
	regexp.MustCompile(`(?i)Expiry Date:\s*(.+)`),
	regexp.MustCompile(`(?i)Expiration Date:\s*(.+)`),
	regexp.MustCompile(`(?i)Expires On:\s*(.+)`),
	regexp.MustCompile(`(?i)expires:\s*(.+)`),
	regexp.MustCompile(`(?i)paid-till:\s*(.+)`),
	regexp.MustCompile(`(?i)expire:\s*(.+)`),
	regexp.MustCompile(`(?i)Registrar Registration Expiration Date:\s*(.+)`),
}

var trailingParen = regexp.MustCompile(`\s*\(.*\)\s*$`)

var ianaReferral = regexp.MustCompile(`(?i)whois:\s+(\S+)`)

// expiryLayouts covers the date formats registries actually emit.
var expiryLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"02.01.2006",
	"2006/01/02",
	"January 2, 2006",
	"2006-01-02 15:04:05-07",
}

// DomainExpiry is the result of a successful lookup.
type DomainExpiry struct {
	ExpiresAt       time.Time
	DaysUntilExpiry int
}

// Resolver resolves and queries WHOIS servers. The zero value is not usable;
// construct with NewResolver.
type Resolver struct {
	servers      map[string]string
	ianaAddr     string // host:port of the IANA referral server
	port         string
	queryTimeout time.Duration
	ianaTimeout  time.Duration
	now          func() time.Time
}

// NewResolver creates a Resolver with the built-in server table and timeouts.
func NewResolver() *Resolver {
	return &Resolver{
		servers:      whoisServers,
		ianaAddr:     net.JoinHostPort("whois.iana.org", whoisPort),
		port:         whoisPort,
		queryTimeout: defaultQueryTimeout,
		ianaTimeout:  ianaQueryTimeout,
		now:          time.Now,
	}
}

// Lookup extracts the registrable domain from rawURL, queries its WHOIS
// server, and parses an expiry date. Any failure at any stage returns nil.
func (r *Resolver) Lookup(ctx context.Context, rawURL string) *DomainExpiry {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	// IP literals have no registrable domain.
	if net.ParseIP(u.Hostname()) != nil {
		return nil
	}

	domain, tld, ok := RegistrableDomain(u.Hostname())
	if !ok {
		return nil
	}

	server := r.servers[tld]
	if server == "" {
		server = r.ianaLookup(ctx, tld)
	}
	if server == "" {
		return nil
	}

	response, err := r.query(ctx, net.JoinHostPort(server, r.port), domain, r.queryTimeout)
	if err != nil {
		log.Printf("whois query to %s for %s failed: %v", server, domain, err)
		return nil
	}

	expiry, ok := ParseExpiry(response)
	if !ok {
		return nil
	}
	days := int(math.Floor(expiry.Sub(r.now()).Hours() / 24))
	return &DomainExpiry{ExpiresAt: expiry, DaysUntilExpiry: days}
}

// RegistrableDomain computes the likely registrable domain for a hostname,
// using the second-level-domain table for 3-label registrations. It returns
// the domain, the TLD used for server resolution, and whether extraction
// succeeded.
func RegistrableDomain(host string) (domain, tld string, ok bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return "", "", false
	}
	tld = labels[len(labels)-1]

	if len(labels) >= 3 {
		lastTwo := strings.Join(labels[len(labels)-2:], ".")
		if _, isSLD := secondLevelDomains[lastTwo]; isSLD {
			return strings.Join(labels[len(labels)-3:], "."), tld, true
		}
	}
	return strings.Join(labels[len(labels)-2:], "."), tld, true
}

// ianaLookup asks the IANA WHOIS server which server handles a TLD.
func (r *Resolver) ianaLookup(ctx context.Context, tld string) string {
	response, err := r.query(ctx, r.ianaAddr, tld, r.ianaTimeout)
	if err != nil {
		log.Printf("iana whois referral for .%s failed: %v", tld, err)
		return ""
	}
	if m := ianaReferral.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// query opens a raw TCP connection, sends "<query>\r\n", and reads to EOF.
func (r *Resolver) query(ctx context.Context, addr, q string, timeout time.Duration) (string, error) {
	dialer := &net.Dialer{Timeout: timeout}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte(q + "\r\n")); err != nil {
		return "", err
	}
	data, err := io.ReadAll(conn)
	if err != nil && len(data) == 0 {
		return "", err
	}
	return string(data), nil
}

// ParseExpiry scans a raw WHOIS response for an expiry date using the
// ordered pattern list, strips trailing parenthetical annotations, and
// tries the known date layouts.
func ParseExpiry(response string) (time.Time, bool) {
	for _, pattern := range expiryPatterns {
		m := pattern.FindStringSubmatch(response)
		if m == nil {
			continue
		}
		raw := strings.TrimSpace(m[1])
		raw = strings.TrimSpace(trailingParen.ReplaceAllString(raw, ""))
		if raw == "" {
			continue
		}
		for _, layout := range expiryLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
