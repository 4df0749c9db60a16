package models

import "time"

// Website statuses assigned by a monitoring run. Exactly one of these is
// set on every MonitoringResult.
const (
	StatusUnknown = "unknown"
	StatusUp      = "up"
	StatusDown    = "down"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Report lifecycle states.
const (
	ReportPending = "pending"
	ReportSent    = "sent"
	ReportFailed  = "failed"
)

// Website represents a site to be monitored.
// It contains both the original URL and its canonical form.
type Website struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	CanonicalURL  string            `json:"-"` // Internal field, not exposed in API responses
	Host          string            `json:"-"` // Internal field for the scheduler's per-host limiter
	Description   string            `json:"description,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"` // Custom request headers sent with every probe
	Active        bool              `json:"active"`
	CheckInterval int               `json:"check_interval,omitempty"` // Minutes; informational, the scheduler runs on a global cadence
	CreatedAt     time.Time         `json:"created_at"`
}

// SSLInfo holds the leaf-certificate details collected for HTTPS targets.
// Informational only: it never influences the check status.
type SSLInfo struct {
	Issuer        string    `json:"issuer"`
	Subject       string    `json:"subject"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidTo       time.Time `json:"valid_to"`
	ExpiresInDays int       `json:"expires_in_days"`
}

// PageScan is the deep-scan outcome for a single page.
type PageScan struct {
	URL               string  `json:"url"`
	Slug              string  `json:"slug"`
	ChangePercent     float64 `json:"change_percent"`
	Significant       bool    `json:"significant"`
	PreviousFileFound bool    `json:"previous_file_found"`
	Snapshot          string  `json:"snapshot"`
}

// BrokenAsset is a same-domain CSS/JS resource that returned HTTP 404.
type BrokenAsset struct {
	URL    string `json:"url"`
	Type   string `json:"type"` // "css" or "js"
	Status int    `json:"status"`
}

// ScanResults aggregates the content scan of a website's main page and
// its sampled navigation pages.
type ScanResults struct {
	Pages                []PageScan    `json:"pages"`
	BrokenAssets         []BrokenAsset `json:"broken_assets"`
	AnySignificantChange bool          `json:"any_significant_change"`
	HasBrokenAssets      bool          `json:"has_broken_assets"`
	ScannedAt            time.Time     `json:"scanned_at"`
}

// MonitoringResult stores the outcome of one probe of a website.
// Pointer fields are nullable: absence means collection failed or was not
// applicable, never that the value is zero.
type MonitoringResult struct {
	ID                    string              `json:"id"`
	WebsiteID             string              `json:"-"`
	CheckedAt             time.Time           `json:"checked_at"`
	Status                string              `json:"status"`
	StatusCode            *int                `json:"status_code"`
	ResponseTimeMS        *int64              `json:"response_time_ms"`
	ErrorMessage          *string             `json:"error_message"`
	Headers               map[string][]string `json:"headers,omitempty"`
	ContentHash           *string             `json:"content_hash"`
	ContentChanged        bool                `json:"content_changed"`
	SSLInfo               *SSLInfo            `json:"ssl_info"`
	DomainExpiresAt       *time.Time          `json:"domain_expires_at"`
	DomainDaysUntilExpiry *int                `json:"domain_days_until_expiry"`
	ResolvedIPs           []string            `json:"resolved_ips,omitempty"`
	ScanResults           *ScanResults        `json:"scan_results"`
	ScreenshotPath        *string             `json:"screenshot_path"`
}

// IsUp reports whether the check concluded the website is up.
func (r *MonitoringResult) IsUp() bool { return r.Status == StatusUp }

// IsDown reports whether the check concluded the website is down or errored.
func (r *MonitoringResult) IsDown() bool {
	return r.Status == StatusDown || r.Status == StatusError
}

// DownEntry is one down/errored website in a report summary.
type DownEntry struct {
	URL        string  `json:"url"`
	StatusCode *int    `json:"status_code"`
	Error      *string `json:"error"`
}

// ExpiringEntry is one website whose domain expires within the alert window.
type ExpiringEntry struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
	Days      int    `json:"days"`
}

// ChangedPage names a page flagged for significant content change.
type ChangedPage struct {
	Slug          string  `json:"slug"`
	ChangePercent float64 `json:"change_percent"`
}

// ChangedEntry is one website with significant content changes.
type ChangedEntry struct {
	URL   string        `json:"url"`
	Pages []ChangedPage `json:"pages"`
}

// AssetsEntry is one website with broken CSS/JS assets.
type AssetsEntry struct {
	URL    string        `json:"url"`
	Assets []BrokenAsset `json:"assets"`
}

// ReportSummary classifies a batch of results into issue buckets. One
// result can appear in several buckets.
type ReportSummary struct {
	Down           []DownEntry     `json:"down"`
	Expiring       []ExpiringEntry `json:"expiring"`
	ContentChanged []ChangedEntry  `json:"content_changed"`
	BrokenAssets   []AssetsEntry   `json:"broken_assets"`
}

// FlaggedCount is the total flagged website count across all issue types.
func (s ReportSummary) FlaggedCount() int {
	return len(s.Down) + len(s.Expiring) + len(s.ContentChanged) + len(s.BrokenAssets)
}

// AllClear reports whether every bucket is empty.
func (s ReportSummary) AllClear() bool { return s.FlaggedCount() == 0 }

// MonitoringReport is one aggregation run over a batch of results.
type MonitoringReport struct {
	ID           string        `json:"id"`
	Recipient    string        `json:"recipient"`
	Subject      string        `json:"subject"`
	BodyHTML     string        `json:"-"`
	Summary      ReportSummary `json:"summary"`
	Status       string        `json:"status"`
	ErrorMessage *string       `json:"error_message"`
	SentAt       *time.Time    `json:"sent_at"`
	TriggeredBy  string        `json:"triggered_by"`
	CreatedAt    time.Time     `json:"created_at"`
}

// IsSent reports whether the report was delivered.
func (r *MonitoringReport) IsSent() bool { return r.Status == ReportSent }

// HasFailed reports whether the last delivery attempt failed.
func (r *MonitoringReport) HasFailed() bool { return r.Status == ReportFailed }
