package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sitewatch/internal/models"
	"sitewatch/internal/storage/storetest"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func site(url string) models.Website { return models.Website{URL: url} }

func TestBuildSummaryDownOnly(t *testing.T) {
	items := []Item{
		{
			Website: site("https://a.example"),
			Result: models.MonitoringResult{
				Status:       models.StatusDown,
				StatusCode:   intPtr(503),
				ErrorMessage: strPtr("HTTP 503 error"),
			},
		},
		{
			Website: site("https://b.example"),
			Result:  models.MonitoringResult{Status: models.StatusUp},
		},
	}

	summary := BuildSummary(items)
	if len(summary.Down) != 1 {
		t.Fatalf("down = %d, want 1", len(summary.Down))
	}
	if summary.Down[0].URL != "https://a.example" {
		t.Errorf("down URL = %q", summary.Down[0].URL)
	}
	if len(summary.Expiring)+len(summary.ContentChanged)+len(summary.BrokenAssets) != 0 {
		t.Errorf("unexpected extra buckets: %+v", summary)
	}

	subject := Subject(summary, time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC))
	if !strings.Contains(subject, "1 down") {
		t.Errorf("subject = %q, want it to mention 1 down", subject)
	}
	if strings.Contains(subject, "expiring") || strings.Contains(subject, "All Clear") {
		t.Errorf("subject = %q includes zero-count terms", subject)
	}
}

func TestBuildSummaryErrorCountsAsDown(t *testing.T) {
	items := []Item{{
		Website: site("https://a.example"),
		Result: models.MonitoringResult{
			Status:       models.StatusError,
			ErrorMessage: strPtr("dial tcp: connection refused"),
		},
	}}
	if summary := BuildSummary(items); len(summary.Down) != 1 {
		t.Errorf("error status must land in the down bucket: %+v", summary)
	}
}

func TestBuildSummaryExpiring(t *testing.T) {
	expires := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	items := []Item{
		{
			Website: site("https://soon.example"),
			Result: models.MonitoringResult{
				Status:                models.StatusUp,
				DomainExpiresAt:       timePtr(expires),
				DomainDaysUntilExpiry: intPtr(5),
			},
		},
		{
			Website: site("https://expired.example"),
			Result: models.MonitoringResult{
				Status:                models.StatusUp,
				DomainDaysUntilExpiry: intPtr(-2),
			},
		},
		{
			Website: site("https://fine.example"),
			Result: models.MonitoringResult{
				Status:                models.StatusUp,
				DomainDaysUntilExpiry: intPtr(8),
			},
		},
	}

	summary := BuildSummary(items)
	if len(summary.Expiring) != 2 {
		t.Fatalf("expiring = %d, want 2 (5 days and already expired)", len(summary.Expiring))
	}
	if summary.Expiring[0].ExpiresAt != "2026-09-03" {
		t.Errorf("ExpiresAt = %q", summary.Expiring[0].ExpiresAt)
	}
}

func TestBuildSummaryContentChanged(t *testing.T) {
	items := []Item{{
		Website: site("https://a.example"),
		Result: models.MonitoringResult{
			Status: models.StatusUp,
			ScanResults: &models.ScanResults{
				AnySignificantChange: true,
				Pages: []models.PageScan{
					{Slug: "home", ChangePercent: 3.0},
					{Slug: "about", ChangePercent: 42.5, Significant: true},
				},
			},
		},
	}}

	summary := BuildSummary(items)
	if len(summary.ContentChanged) != 1 {
		t.Fatalf("content changed = %d, want 1", len(summary.ContentChanged))
	}
	pages := summary.ContentChanged[0].Pages
	if len(pages) != 1 || pages[0].Slug != "about" {
		t.Errorf("pages = %+v, want only the significant page", pages)
	}
}

func TestBuildSummaryContentChangedFallbackPage(t *testing.T) {
	// Aggregate flag set but no page individually significant: the
	// highest-change page stands in.
	items := []Item{{
		Website: site("https://a.example"),
		Result: models.MonitoringResult{
			Status: models.StatusUp,
			ScanResults: &models.ScanResults{
				AnySignificantChange: true,
				Pages: []models.PageScan{
					{Slug: "home", ChangePercent: 4.0},
					{Slug: "about", ChangePercent: 9.5},
				},
			},
		},
	}}

	summary := BuildSummary(items)
	if len(summary.ContentChanged) != 1 {
		t.Fatal("expected a content-changed entry")
	}
	pages := summary.ContentChanged[0].Pages
	if len(pages) != 1 || pages[0].Slug != "about" || pages[0].ChangePercent != 9.5 {
		t.Errorf("fallback pages = %+v", pages)
	}
}

func TestBuildSummaryLegacyContentChanged(t *testing.T) {
	items := []Item{{
		Website: site("https://a.example"),
		Result: models.MonitoringResult{
			Status:         models.StatusUp,
			ContentChanged: true,
		},
	}}
	if summary := BuildSummary(items); len(summary.ContentChanged) != 1 {
		t.Error("legacy content_changed flag must populate the bucket when scan data is absent")
	}
}

func TestBuildSummaryBrokenAssetsPlaceholder(t *testing.T) {
	items := []Item{{
		Website: site("https://a.example"),
		Result: models.MonitoringResult{
			Status: models.StatusUp,
			ScanResults: &models.ScanResults{
				HasBrokenAssets: true, // flag survived, detail lost
			},
		},
	}}

	summary := BuildSummary(items)
	if len(summary.BrokenAssets) != 1 {
		t.Fatal("expected a broken-assets entry")
	}
	if len(summary.BrokenAssets[0].Assets) != 1 {
		t.Error("placeholder asset entry missing")
	}
}

func TestSubjectAllClear(t *testing.T) {
	subject := Subject(models.ReportSummary{}, time.Date(2026, 8, 29, 6, 0, 0, 0, time.UTC))
	if !strings.Contains(subject, "[All Clear]") {
		t.Errorf("subject = %q", subject)
	}
}

func TestSubjectMultipleBuckets(t *testing.T) {
	summary := models.ReportSummary{
		Down:         []models.DownEntry{{}, {}},
		BrokenAssets: []models.AssetsEntry{{}},
	}
	subject := Subject(summary, time.Now())
	if !strings.Contains(subject, "2 down, 1 broken assets") {
		t.Errorf("subject = %q", subject)
	}
}

type fakeSender struct {
	err  error
	sent []string // subjects, in order
}

func (f *fakeSender) Send(to, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, subject)
	return nil
}

func TestGenerateSends(t *testing.T) {
	store := storetest.New()
	sender := &fakeSender{}
	svc := NewService(store, sender, "ops@example.com")

	items := []Item{{
		Website: site("https://a.example"),
		Result:  models.MonitoringResult{Status: models.StatusDown, ErrorMessage: strPtr("HTTP 500 error")},
	}}

	rep, err := svc.Generate(context.Background(), items, "schedule")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.Status != models.ReportSent {
		t.Errorf("status = %q, want sent", rep.Status)
	}
	if rep.SentAt == nil {
		t.Error("SentAt not recorded")
	}
	if rep.TriggeredBy != "schedule" {
		t.Errorf("TriggeredBy = %q", rep.TriggeredBy)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(sender.sent))
	}

	stored, err := store.GetReportByID(context.Background(), rep.ID)
	if err != nil {
		t.Fatalf("stored report missing: %v", err)
	}
	if stored.Status != models.ReportSent {
		t.Errorf("persisted status = %q", stored.Status)
	}
}

func TestGenerateNoRecipientIsNoop(t *testing.T) {
	store := storetest.New()
	svc := NewService(store, &fakeSender{}, "")

	rep, err := svc.Generate(context.Background(), nil, "schedule")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep != nil {
		t.Error("expected no report without a recipient")
	}
	if reports, _ := store.ListReports(context.Background(), 10); len(reports) != 0 {
		t.Error("no report record should be persisted")
	}
}

func TestGenerateDeliveryFailure(t *testing.T) {
	store := storetest.New()
	sender := &fakeSender{err: errors.New("relay unreachable")}
	svc := NewService(store, sender, "ops@example.com")

	rep, err := svc.Generate(context.Background(), nil, "manual")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.Status != models.ReportFailed {
		t.Errorf("status = %q, want failed", rep.Status)
	}
	if rep.ErrorMessage == nil || !strings.Contains(*rep.ErrorMessage, "relay unreachable") {
		t.Errorf("error message = %v", rep.ErrorMessage)
	}
}

func TestResendAfterFailure(t *testing.T) {
	store := storetest.New()
	sender := &fakeSender{err: errors.New("relay unreachable")}
	svc := NewService(store, sender, "ops@example.com")

	rep, err := svc.Generate(context.Background(), nil, "schedule")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rep.Status != models.ReportFailed {
		t.Fatalf("setup: status = %q", rep.Status)
	}

	// The relay recovers; resending the same report must flip it to sent
	// without creating a second record.
	sender.err = nil
	resent, err := svc.Resend(context.Background(), rep.ID)
	if err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if resent.ID != rep.ID {
		t.Errorf("resend created a new record: %s vs %s", resent.ID, rep.ID)
	}
	if resent.Status != models.ReportSent {
		t.Errorf("status after resend = %q", resent.Status)
	}
	if resent.ErrorMessage != nil {
		t.Error("error message should be cleared after successful resend")
	}
	if reports, _ := store.ListReports(context.Background(), 10); len(reports) != 1 {
		t.Errorf("report count = %d, want 1", len(reports))
	}
}
