// Package prune removes monitoring data past the retention window: old
// result rows, the screenshot files they reference, and stale snapshot files.
package prune

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"sitewatch/internal/snapshot"
	"sitewatch/internal/storage"
)

// Stats summarizes one prune run.
type Stats struct {
	Results     int
	Screenshots int
	Snapshots   int
	Errors      int
}

// Pruner deletes expired monitoring data.
type Pruner struct {
	store         storage.Storer
	snapshots     *snapshot.Store
	retentionDays int
	now           func() time.Time
}

// New creates a Pruner keeping retentionDays of history.
func New(store storage.Storer, snapshots *snapshot.Store, retentionDays int) *Pruner {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Pruner{store: store, snapshots: snapshots, retentionDays: retentionDays, now: time.Now}
}

// Run deletes everything older than the retention cutoff. Per-file failures
// are counted, not fatal; the returned error covers the database delete only.
func (p *Pruner) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	cutoff := p.now().UTC().AddDate(0, 0, -p.retentionDays)

	deleted, err := p.store.DeleteResultsBefore(ctx, cutoff)
	if err != nil {
		return stats, fmt.Errorf("failed to prune results: %w", err)
	}
	stats.Results = len(deleted)

	for _, result := range deleted {
		if result.ScreenshotPath == nil {
			continue
		}
		if err := os.Remove(*result.ScreenshotPath); err != nil {
			if !os.IsNotExist(err) {
				log.Printf("prune: could not remove screenshot %s: %v", *result.ScreenshotPath, err)
				stats.Errors++
			}
			continue
		}
		stats.Screenshots++
	}

	old, err := p.snapshots.OlderThan(cutoff)
	if err != nil {
		log.Printf("prune: snapshot walk failed: %v", err)
		stats.Errors++
		return stats, nil
	}
	removed, errs := p.snapshots.Delete(old)
	stats.Snapshots = removed
	stats.Errors += errs

	log.Printf("prune: removed %d results, %d screenshots, %d snapshots (%d errors)",
		stats.Results, stats.Screenshots, stats.Snapshots, stats.Errors)
	return stats, nil
}
