// Package monitor sequences one full check of a website: HTTP probe, then —
// when the server responded — SSL inspection, domain expiry lookup, DNS
// resolution, content scan, and an optional screenshot, each failure-isolated
// so enrichment problems never change the check status.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sitewatch/internal/dnsinfo"
	"sitewatch/internal/models"
	"sitewatch/internal/probe"
	"sitewatch/internal/scanner"
	"sitewatch/internal/screenshot"
	"sitewatch/internal/storage"
	"sitewatch/internal/whois"
)

// Monitor runs the per-website check pipeline and persists results.
type Monitor struct {
	store       storage.Storer
	prober      *probe.Prober
	whois       *whois.Resolver
	dns         *dnsinfo.Resolver
	scanner     *scanner.Scanner
	screenshots screenshot.Screenshotter
	notifiers   []Notifier
	now         func() time.Time
}

// Options configures optional collaborators of a Monitor.
type Options struct {
	Screenshots screenshot.Screenshotter // nil disables screenshots
	Notifiers   []Notifier
}

// New assembles a Monitor.
func New(store storage.Storer, prober *probe.Prober, whoisResolver *whois.Resolver,
	dnsResolver *dnsinfo.Resolver, contentScanner *scanner.Scanner, opts Options) *Monitor {
	return &Monitor{
		store:       store,
		prober:      prober,
		whois:       whoisResolver,
		dns:         dnsResolver,
		scanner:     contentScanner,
		screenshots: opts.Screenshots,
		notifiers:   opts.Notifiers,
		now:         time.Now,
	}
}

// Run executes one full check of website and persists the result. The
// returned error covers persistence only; check failures are encoded in the
// result itself.
func (m *Monitor) Run(ctx context.Context, website models.Website) (*models.MonitoringResult, error) {
	checkedAt := m.now().UTC()

	previous, err := m.store.LatestResultForWebsite(ctx, website.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.Printf("monitor %s: could not load previous result: %v", website.URL, err)
	}

	probeResult := m.prober.Fetch(ctx, website.URL, website.Headers)

	result := &models.MonitoringResult{
		WebsiteID:      website.ID,
		CheckedAt:      checkedAt,
		Status:         probeResult.Status,
		StatusCode:     probeResult.StatusCode,
		ErrorMessage:   probeResult.ErrorMessage,
		Headers:        probeResult.Headers,
		ContentHash:    probeResult.ContentHash,
		ResponseTimeMS: &probeResult.ResponseTimeMS,
	}
	result.ContentChanged = contentChanged(previous, result)

	// Transport failure: the server never answered, so enrichment would
	// only repeat the same failure.
	if result.Status != models.StatusError {
		m.enrich(ctx, website, probeResult, result)
	}

	if err := m.store.CreateResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to persist result for %s: %w", website.URL, err)
	}

	emit(m.notifiers, website, previous, result)
	return result, nil
}

// enrich runs the best-effort collection steps. Each nulls out only its own
// fields on failure.
func (m *Monitor) enrich(ctx context.Context, website models.Website, probeResult probe.Result, result *models.MonitoringResult) {
	result.SSLInfo = probe.InspectSSL(ctx, website.URL)

	if expiry := m.whois.Lookup(ctx, website.URL); expiry != nil {
		expiresAt := expiry.ExpiresAt
		days := expiry.DaysUntilExpiry
		result.DomainExpiresAt = &expiresAt
		result.DomainDaysUntilExpiry = &days
	}

	if website.Host != "" {
		result.ResolvedIPs = m.dns.ResolvedIPs(ctx, website.Host)
	}

	if probeResult.BodyText != "" {
		result.ScanResults = m.scanner.Scan(ctx, website, probeResult.BodyText)
	}

	// Error pages make useless screenshots, so only healthy sites are
	// captured.
	if m.screenshots != nil && result.Status == models.StatusUp {
		path, err := m.screenshots.Capture(ctx, website.URL)
		if err != nil {
			log.Printf("monitor %s: screenshot failed: %v", website.URL, err)
		} else {
			result.ScreenshotPath = &path
		}
	}
}

// contentChanged is the coarse legacy signal: the body hash differs from the
// previous check's hash. Scan results supersede it where present.
func contentChanged(previous, current *models.MonitoringResult) bool {
	if previous == nil || previous.ContentHash == nil || current.ContentHash == nil {
		return false
	}
	return *previous.ContentHash != *current.ContentHash
}
