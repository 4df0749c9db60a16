// Package scanner performs the content deep scan of a website: it snapshots
// the visible text of the main page and a sample of navigation pages, diffs
// each against its previous snapshot, and HEAD-checks same-domain CSS/JS
// assets for 404s. The whole scan is best-effort enrichment; a result of nil
// means nothing at all could be collected.
package scanner

import (
	"context"
	"crypto/tls"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"sitewatch/internal/models"
	"sitewatch/internal/snapshot"
	"sitewatch/internal/urlutil"
)

const (
	maxNavPages    = 3
	maxAssetChecks = 20

	// Pages that changed by more than this percentage are flagged.
	significantChangeThreshold = 10.0

	navFetchTimeout   = 15 * time.Second
	assetCheckTimeout = 5 * time.Second
	maxPageReadBytes  = 2 << 20
)

// Scanner runs content scans against monitored websites.
type Scanner struct {
	snapshots   *snapshot.Store
	pageClient  *http.Client
	assetClient *http.Client
	limiter     *rate.Limiter
	now         func() time.Time
}

// New creates a Scanner storing snapshots in store and pacing outbound
// requests at requestsPerSecond.
func New(store *snapshot.Store, requestsPerSecond float64) *Scanner {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 2.0
	}
	return &Scanner{
		snapshots:  store,
		pageClient: &http.Client{Timeout: navFetchTimeout},
		assetClient: &http.Client{
			Timeout: assetCheckTimeout,
			// A broken certificate is a different problem than a missing
			// file; asset checks only care about 404s.
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		now:     time.Now,
	}
}

// Scan runs the full content scan for website using mainHTML, the body
// already fetched by the probe. It returns nil only when nothing could be
// scanned at all; individual page or asset failures degrade to partial
// results.
func (s *Scanner) Scan(ctx context.Context, website models.Website, mainHTML string) *models.ScanResults {
	siteSlug := urlutil.SiteSlug(website.URL)
	scannedAt := s.now().UTC()

	results := &models.ScanResults{ScannedAt: scannedAt}

	if page, ok := s.scanPage(siteSlug, website.URL, mainHTML, scannedAt); ok {
		results.Pages = append(results.Pages, page)
	}

	for _, link := range navLinks(mainHTML, website.URL, maxNavPages) {
		body, err := s.fetchPage(ctx, link, website.Headers)
		if err != nil {
			log.Printf("scan: fetch of nav page %s failed: %v", link, err)
			continue
		}
		if page, ok := s.scanPage(siteSlug, link, body, scannedAt); ok {
			results.Pages = append(results.Pages, page)
		}
	}

	results.BrokenAssets = s.checkAssets(ctx, website.URL, mainHTML)

	if len(results.Pages) == 0 && len(results.BrokenAssets) == 0 {
		return nil
	}

	for _, page := range results.Pages {
		if page.Significant {
			results.AnySignificantChange = true
			break
		}
	}
	results.HasBrokenAssets = len(results.BrokenAssets) > 0
	return results
}

// scanPage snapshots one page's canonical text and diffs it against the
// previous snapshot. ok is false when the page could not be recorded.
func (s *Scanner) scanPage(siteSlug, pageURL, htmlStr string, ts time.Time) (models.PageScan, bool) {
	pageSlug := urlutil.PageSlug(pageURL)
	text := CanonicalText(htmlStr)

	prevText, _, found, err := s.snapshots.LatestBefore(siteSlug, pageSlug, ts)
	if err != nil {
		log.Printf("scan: reading previous snapshot for %s/%s failed: %v", siteSlug, pageSlug, err)
		found = false
	}

	path, err := s.snapshots.Save(siteSlug, pageSlug, ts, text)
	if err != nil {
		log.Printf("scan: saving snapshot for %s/%s failed: %v", siteSlug, pageSlug, err)
		return models.PageScan{}, false
	}

	page := models.PageScan{
		URL:               pageURL,
		Slug:              pageSlug,
		PreviousFileFound: found,
		Snapshot:          path,
	}
	if found {
		page.ChangePercent = ChangePercent(prevText, text)
		page.Significant = page.ChangePercent > significantChangeThreshold
	}
	return page, true
}

// fetchPage GETs a navigation page, honoring the website's custom headers.
func (s *Scanner) fetchPage(ctx context.Context, pageURL string, headers map[string]string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.pageClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageReadBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// checkAssets HEAD-requests the page's same-domain CSS/JS references and
// collects those that return 404. Other failures (timeouts, 5xx) are not
// reported as broken: only a definite "not there" counts.
func (s *Scanner) checkAssets(ctx context.Context, pageURL, htmlStr string) []models.BrokenAsset {
	var broken []models.BrokenAsset
	for _, ref := range assetRefs(htmlStr, pageURL, maxAssetChecks) {
		if err := s.limiter.Wait(ctx); err != nil {
			return broken
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, ref.URL, nil)
		if err != nil {
			continue
		}
		resp, err := s.assetClient.Do(req)
		if err != nil {
			log.Printf("scan: asset check for %s failed: %v", ref.URL, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			broken = append(broken, models.BrokenAsset{
				URL:    ref.URL,
				Type:   ref.Type,
				Status: resp.StatusCode,
			})
		}
	}
	return broken
}
