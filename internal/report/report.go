// Package report classifies a batch of monitoring results into issue buckets
// and renders and delivers the resulting summary email.
package report

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"sitewatch/internal/mailer"
	"sitewatch/internal/models"
	"sitewatch/internal/storage"
)

// domainExpiryAlertDays is the window within which an upcoming (or past)
// domain expiry is flagged.
const domainExpiryAlertDays = 7

// Item pairs a website with its result from the batch being reported on.
type Item struct {
	Website models.Website
	Result  models.MonitoringResult
}

// BuildSummary classifies items into the report's issue buckets. The rules
// are independent, so one website can appear in several buckets.
func BuildSummary(items []Item) models.ReportSummary {
	var summary models.ReportSummary
	for _, item := range items {
		r := item.Result
		url := item.Website.URL

		if r.IsDown() {
			summary.Down = append(summary.Down, models.DownEntry{
				URL:        url,
				StatusCode: r.StatusCode,
				Error:      r.ErrorMessage,
			})
		}

		if r.DomainDaysUntilExpiry != nil && *r.DomainDaysUntilExpiry <= domainExpiryAlertDays {
			entry := models.ExpiringEntry{URL: url, Days: *r.DomainDaysUntilExpiry}
			if r.DomainExpiresAt != nil {
				entry.ExpiresAt = r.DomainExpiresAt.UTC().Format("2006-01-02")
			}
			summary.Expiring = append(summary.Expiring, entry)
		}

		if entry, flagged := changedEntry(url, r); flagged {
			summary.ContentChanged = append(summary.ContentChanged, entry)
		}

		if entry, flagged := brokenAssetsEntry(url, r); flagged {
			summary.BrokenAssets = append(summary.BrokenAssets, entry)
		}
	}
	return summary
}

// changedEntry flags significant content change. Scan data wins over the
// legacy content_changed hash comparison. When the aggregate flag is set but
// no individual page crossed the threshold, the highest-change page stands
// in so the bucket is never empty for a flagged site.
func changedEntry(url string, r models.MonitoringResult) (models.ChangedEntry, bool) {
	if r.ScanResults == nil {
		if r.ContentChanged {
			return models.ChangedEntry{URL: url}, true
		}
		return models.ChangedEntry{}, false
	}
	if !r.ScanResults.AnySignificantChange {
		return models.ChangedEntry{}, false
	}

	entry := models.ChangedEntry{URL: url}
	for _, page := range r.ScanResults.Pages {
		if page.Significant {
			entry.Pages = append(entry.Pages, models.ChangedPage{
				Slug:          page.Slug,
				ChangePercent: page.ChangePercent,
			})
		}
	}
	if len(entry.Pages) == 0 && len(r.ScanResults.Pages) > 0 {
		pages := r.ScanResults.Pages
		top := pages[0]
		for _, page := range pages[1:] {
			if page.ChangePercent > top.ChangePercent {
				top = page
			}
		}
		entry.Pages = []models.ChangedPage{{Slug: top.Slug, ChangePercent: top.ChangePercent}}
	}
	sort.Slice(entry.Pages, func(i, j int) bool {
		return entry.Pages[i].ChangePercent > entry.Pages[j].ChangePercent
	})
	return entry, true
}

// brokenAssetsEntry flags broken assets; a placeholder entry stands in when
// the flag is set but no asset detail survived.
func brokenAssetsEntry(url string, r models.MonitoringResult) (models.AssetsEntry, bool) {
	if r.ScanResults == nil {
		return models.AssetsEntry{}, false
	}
	if len(r.ScanResults.BrokenAssets) == 0 && !r.ScanResults.HasBrokenAssets {
		return models.AssetsEntry{}, false
	}
	entry := models.AssetsEntry{URL: url, Assets: r.ScanResults.BrokenAssets}
	if len(entry.Assets) == 0 {
		entry.Assets = []models.BrokenAsset{{URL: url, Type: "unknown", Status: 0}}
	}
	return entry, true
}

// Subject builds the report subject line, omitting zero-count issue types.
func Subject(summary models.ReportSummary, at time.Time) string {
	var terms []string
	if n := len(summary.Down); n > 0 {
		terms = append(terms, fmt.Sprintf("%d down", n))
	}
	if n := len(summary.Expiring); n > 0 {
		terms = append(terms, fmt.Sprintf("%d expiring", n))
	}
	if n := len(summary.ContentChanged); n > 0 {
		terms = append(terms, fmt.Sprintf("%d changed", n))
	}
	if n := len(summary.BrokenAssets); n > 0 {
		terms = append(terms, fmt.Sprintf("%d broken assets", n))
	}

	stamp := at.UTC().Format("2006-01-02 15:04")
	if len(terms) == 0 {
		return fmt.Sprintf("Monitoring Report [All Clear] – %s", stamp)
	}
	return fmt.Sprintf("Monitoring Report [%s] – %s", strings.Join(terms, ", "), stamp)
}

// Service builds, persists, and delivers monitoring reports.
type Service struct {
	store     storage.Storer
	sender    mailer.Sender
	recipient string
	now       func() time.Time
}

// NewService creates a report service. An empty recipient disables report
// generation entirely.
func NewService(store storage.Storer, sender mailer.Sender, recipient string) *Service {
	return &Service{store: store, sender: sender, recipient: recipient, now: time.Now}
}

// Generate aggregates a batch into a report, persists it as pending, and
// attempts delivery. With no recipient configured it is a no-op and returns
// (nil, nil).
func (s *Service) Generate(ctx context.Context, items []Item, triggeredBy string) (*models.MonitoringReport, error) {
	if s.recipient == "" {
		log.Printf("report: no recipient configured, skipping")
		return nil, nil
	}

	now := s.now().UTC()
	summary := BuildSummary(items)
	body, err := renderBody(summary, now)
	if err != nil {
		// A broken template should not suppress the alert itself.
		log.Printf("report: body render failed, sending fallback: %v", err)
		body = fallbackBody(summary)
	}

	rep := &models.MonitoringReport{
		Recipient:   s.recipient,
		Subject:     Subject(summary, now),
		BodyHTML:    body,
		Summary:     summary,
		Status:      models.ReportPending,
		TriggeredBy: triggeredBy,
		CreatedAt:   now,
	}
	if err := s.store.CreateReport(ctx, rep); err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	s.deliver(ctx, rep)
	return rep, nil
}

// Resend re-attempts delivery of an existing report. The record transitions
// status in place; no duplicate is created.
func (s *Service) Resend(ctx context.Context, reportID string) (*models.MonitoringReport, error) {
	rep, err := s.store.GetReportByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	s.deliver(ctx, rep)
	return rep, nil
}

// deliver sends the report and records the outcome on the same record.
func (s *Service) deliver(ctx context.Context, rep *models.MonitoringReport) {
	if err := s.sender.Send(rep.Recipient, rep.Subject, rep.BodyHTML); err != nil {
		log.Printf("report %s: delivery to %s failed: %v", rep.ID, rep.Recipient, err)
		msg := err.Error()
		rep.Status = models.ReportFailed
		rep.ErrorMessage = &msg
	} else {
		sentAt := s.now().UTC()
		rep.Status = models.ReportSent
		rep.SentAt = &sentAt
		rep.ErrorMessage = nil
	}
	if err := s.store.UpdateReport(ctx, rep); err != nil {
		log.Printf("report %s: failed to record delivery outcome: %v", rep.ID, err)
	}
}
