package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sitewatch/internal/models"
)

func TestFetchUp(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Monitor-Token")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	p := New(5 * time.Second)
	result := p.Fetch(context.Background(), srv.URL, map[string]string{"X-Monitor-Token": "secret"})

	if result.Status != models.StatusUp {
		t.Fatalf("status = %q, want up", result.Status)
	}
	if result.StatusCode == nil || *result.StatusCode != http.StatusOK {
		t.Errorf("status code = %v, want 200", result.StatusCode)
	}
	if result.ErrorMessage != nil {
		t.Errorf("unexpected error message %q", *result.ErrorMessage)
	}
	if result.ContentHash == nil || *result.ContentHash == "" {
		t.Error("expected a content hash")
	}
	if result.BodyText == "" {
		t.Error("expected decoded body text")
	}
	if gotHeader != "secret" {
		t.Errorf("custom header not sent, got %q", gotHeader)
	}
}

func TestFetchDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	p := New(5 * time.Second)
	result := p.Fetch(context.Background(), srv.URL, nil)

	if result.Status != models.StatusDown {
		t.Fatalf("status = %q, want down", result.Status)
	}
	if result.ErrorMessage == nil || *result.ErrorMessage != "HTTP 404 error" {
		t.Errorf("error message = %v, want HTTP 404 error", result.ErrorMessage)
	}
	if result.StatusCode == nil || *result.StatusCode != http.StatusNotFound {
		t.Errorf("status code = %v, want 404", result.StatusCode)
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(5 * time.Second)
	result := p.Fetch(context.Background(), srv.URL, nil)

	if result.Status != models.StatusDown {
		t.Fatalf("status = %q, want down for 5xx", result.Status)
	}
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listening anymore

	p := New(2 * time.Second)
	result := p.Fetch(context.Background(), url, nil)

	if result.Status != models.StatusError {
		t.Fatalf("status = %q, want error", result.Status)
	}
	if result.ErrorMessage == nil || *result.ErrorMessage == "" {
		t.Error("expected a transport error message")
	}
	if result.StatusCode != nil {
		t.Errorf("status code should be nil on transport failure, got %d", *result.StatusCode)
	}
}

func TestFetchHashStableAcrossIdenticalBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("constant content"))
	}))
	defer srv.Close()

	p := New(5 * time.Second)
	first := p.Fetch(context.Background(), srv.URL, nil)
	second := p.Fetch(context.Background(), srv.URL, nil)

	if first.ContentHash == nil || second.ContentHash == nil {
		t.Fatal("expected content hashes")
	}
	if *first.ContentHash != *second.ContentHash {
		t.Error("identical bodies must hash identically")
	}
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{200, models.StatusUp},
		{204, models.StatusUp},
		{301, models.StatusWarning},
		{101, models.StatusWarning},
		{400, models.StatusDown},
		{404, models.StatusDown},
		{503, models.StatusDown},
	}
	for _, tc := range cases {
		if got := deriveStatus(tc.code); got != tc.want {
			t.Errorf("deriveStatus(%d) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestInspectSSL(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	info := InspectSSL(context.Background(), srv.URL)
	if info == nil {
		t.Fatal("expected certificate info from TLS server")
	}
	if !info.ValidTo.After(info.ValidFrom) {
		t.Error("certificate validity window is inverted")
	}
}

func TestInspectSSLSkipsHTTP(t *testing.T) {
	if info := InspectSSL(context.Background(), "http://example.com"); info != nil {
		t.Error("plain http URLs must not be inspected")
	}
}
