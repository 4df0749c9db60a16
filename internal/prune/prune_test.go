package prune

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sitewatch/internal/models"
	"sitewatch/internal/snapshot"
	"sitewatch/internal/storage"
	"sitewatch/internal/storage/storetest"
)

func TestRunPrunesOldData(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()

	snapDir := t.TempDir()
	snapshots, err := snapshot.NewStore(snapDir)
	if err != nil {
		t.Fatalf("snapshot store: %v", err)
	}

	// Old result with a screenshot on disk.
	shotPath := filepath.Join(t.TempDir(), "old.png")
	if err := os.WriteFile(shotPath, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	oldResult := &models.MonitoringResult{
		WebsiteID:      "w_1",
		CheckedAt:      time.Now().UTC().AddDate(0, 0, -45),
		Status:         models.StatusUp,
		ScreenshotPath: &shotPath,
	}
	freshResult := &models.MonitoringResult{
		WebsiteID: "w_1",
		CheckedAt: time.Now().UTC(),
		Status:    models.StatusUp,
	}
	if err := store.CreateResult(ctx, oldResult); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateResult(ctx, freshResult); err != nil {
		t.Fatal(err)
	}

	// Old and fresh snapshots; OlderThan keys off mtime.
	oldSnap, err := snapshots.Save("site", "home", time.Now().UTC().AddDate(0, 0, -45), "old text")
	if err != nil {
		t.Fatal(err)
	}
	aged := time.Now().AddDate(0, 0, -45)
	if err := os.Chtimes(oldSnap, aged, aged); err != nil {
		t.Fatal(err)
	}
	freshSnap, err := snapshots.Save("site", "about", time.Now().UTC(), "fresh text")
	if err != nil {
		t.Fatal(err)
	}

	stats, err := New(store, snapshots, 30).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Results != 1 {
		t.Errorf("Results = %d, want 1", stats.Results)
	}
	if stats.Screenshots != 1 {
		t.Errorf("Screenshots = %d, want 1", stats.Screenshots)
	}
	if stats.Snapshots != 1 {
		t.Errorf("Snapshots = %d, want 1", stats.Snapshots)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0", stats.Errors)
	}

	if _, err := os.Stat(shotPath); !os.IsNotExist(err) {
		t.Error("old screenshot still on disk")
	}
	if _, err := os.Stat(oldSnap); !os.IsNotExist(err) {
		t.Error("old snapshot still on disk")
	}
	if _, err := os.Stat(freshSnap); err != nil {
		t.Errorf("fresh snapshot should survive: %v", err)
	}

	remaining, err := store.ListResultsByWebsiteID(ctx, storage.ListResultsParams{WebsiteID: "w_1", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Errorf("remaining results = %d, want 1", len(remaining))
	}
}

func TestRunMissingScreenshotIsNotAnError(t *testing.T) {
	ctx := context.Background()
	store := storetest.New()
	snapshots, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	gone := "/nonexistent/screenshot.png"
	old := &models.MonitoringResult{
		WebsiteID:      "w_1",
		CheckedAt:      time.Now().UTC().AddDate(0, 0, -45),
		Status:         models.StatusUp,
		ScreenshotPath: &gone,
	}
	if err := store.CreateResult(ctx, old); err != nil {
		t.Fatal(err)
	}

	stats, err := New(store, snapshots, 30).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, a vanished screenshot is not an error", stats.Errors)
	}
	if stats.Screenshots != 0 {
		t.Errorf("Screenshots = %d, want 0", stats.Screenshots)
	}
}
