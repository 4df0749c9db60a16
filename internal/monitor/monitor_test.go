package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"sitewatch/internal/dnsinfo"
	"sitewatch/internal/models"
	"sitewatch/internal/probe"
	"sitewatch/internal/scanner"
	"sitewatch/internal/snapshot"
	"sitewatch/internal/storage/storetest"
	"sitewatch/internal/whois"
)

func newTestMonitor(t *testing.T, store *storetest.Store, notifiers ...Notifier) *Monitor {
	t.Helper()
	snapshots, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("snapshot store: %v", err)
	}
	return New(
		store,
		probe.New(5*time.Second),
		whois.NewResolver(), // IP-literal test URLs never trigger a query
		dnsinfo.New(nil),
		scanner.New(snapshots, 1000),
		Options{Notifiers: notifiers},
	)
}

func testWebsite(url string) models.Website {
	return models.Website{ID: "w_test", URL: url, Active: true}
}

func TestRunHealthySite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>all good here</p></body></html>"))
	}))
	defer srv.Close()

	store := storetest.New()
	m := newTestMonitor(t, store)

	result, err := m.Run(context.Background(), testWebsite(srv.URL))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.StatusUp {
		t.Fatalf("status = %q, want up", result.Status)
	}
	if result.ErrorMessage != nil {
		t.Errorf("error message = %q, want nil", *result.ErrorMessage)
	}
	if result.ContentHash == nil {
		t.Error("content hash missing")
	}
	if result.ResponseTimeMS == nil {
		t.Error("response time missing")
	}
	if result.ScanResults == nil {
		t.Error("scan results missing for a healthy page")
	}

	stored, err := store.LatestResultForWebsite(context.Background(), "w_test")
	if err != nil {
		t.Fatalf("result not persisted: %v", err)
	}
	if stored.Status != models.StatusUp {
		t.Errorf("persisted status = %q", stored.Status)
	}
}

func TestRunHTTPErrorStillEnriches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html><body>not found</body></html>", http.StatusNotFound)
	}))
	defer srv.Close()

	store := storetest.New()
	m := newTestMonitor(t, store)

	result, err := m.Run(context.Background(), testWebsite(srv.URL))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.StatusDown {
		t.Fatalf("status = %q, want down", result.Status)
	}
	if result.ErrorMessage == nil || *result.ErrorMessage != "HTTP 404 error" {
		t.Errorf("error message = %v", result.ErrorMessage)
	}
	// The server answered, so the content scan still runs.
	if result.ScanResults == nil {
		t.Error("scan results missing for a responding site")
	}
}

func TestRunTransportFailureSkipsEnrichment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	store := storetest.New()
	m := newTestMonitor(t, store)

	result, err := m.Run(context.Background(), testWebsite(url))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != models.StatusError {
		t.Fatalf("status = %q, want error", result.Status)
	}
	if result.ErrorMessage == nil {
		t.Error("transport failure needs an error message")
	}
	if result.ScanResults != nil || result.SSLInfo != nil || result.ScreenshotPath != nil {
		t.Error("enrichment must be skipped when the server never answered")
	}
}

func TestRunLegacyContentChanged(t *testing.T) {
	var flip atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if flip.Load() {
			w.Write([]byte("<html><body>version two</body></html>"))
		} else {
			w.Write([]byte("<html><body>version one</body></html>"))
		}
	}))
	defer srv.Close()

	store := storetest.New()
	m := newTestMonitor(t, store)
	website := testWebsite(srv.URL)

	first, err := m.Run(context.Background(), website)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.ContentChanged {
		t.Error("first check has no baseline, must not flag change")
	}

	flip.Store(true)
	second, err := m.Run(context.Background(), website)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !second.ContentChanged {
		t.Error("differing body hash must flag content_changed")
	}

	third, err := m.Run(context.Background(), website)
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if third.ContentChanged {
		t.Error("identical consecutive bodies must not flag change")
	}
}

type recordingNotifier struct {
	events []Event
}

func (n *recordingNotifier) Notify(event Event) { n.events = append(n.events, event) }

func (n *recordingNotifier) kinds() []string {
	var kinds []string
	for _, e := range n.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func TestRunEmitsStatusChanged(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	store := storetest.New()
	notifier := &recordingNotifier{}
	m := newTestMonitor(t, store, notifier)
	website := testWebsite(srv.URL)

	if _, err := m.Run(context.Background(), website); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("first run emitted %v, want nothing", notifier.kinds())
	}

	failing.Store(true)
	if _, err := m.Run(context.Background(), website); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	var sawStatusChanged bool
	for _, kind := range notifier.kinds() {
		if kind == EventStatusChanged {
			sawStatusChanged = true
		}
	}
	if !sawStatusChanged {
		t.Errorf("events = %v, want status_changed after up -> down", notifier.kinds())
	}
}
