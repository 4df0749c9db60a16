// Package snapshot persists plain-text renderings of scanned pages on the
// filesystem. Files live under <root>/<site-slug>/<page-slug>/ and are named
// by capture timestamp, so the most recent file before a given instant is the
// diff baseline for that page.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const fileTimeLayout = "20060102-150405"

// Store manages snapshot files under a single root directory.
type Store struct {
	root string
}

// NewStore creates a snapshot store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Save writes the text for (siteSlug, pageSlug) captured at ts and returns the
// file path. Timestamps collide at second granularity; the later write wins,
// which is acceptable because two scans of the same page within one second
// carry the same content.
func (s *Store) Save(siteSlug, pageSlug string, ts time.Time, text string) (string, error) {
	dir := filepath.Join(s.root, siteSlug, pageSlug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create page dir: %w", err)
	}
	path := filepath.Join(dir, ts.UTC().Format(fileTimeLayout)+".txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return path, nil
}

// LatestBefore returns the content and path of the most recent snapshot for
// (siteSlug, pageSlug) captured strictly before t. found is false when the
// page has never been snapshotted.
func (s *Store) LatestBefore(siteSlug, pageSlug string, t time.Time) (text string, path string, found bool, err error) {
	dir := filepath.Join(s.root, siteSlug, pageSlug)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("failed to read page dir: %w", err)
	}

	cutoff := t.UTC().Format(fileTimeLayout)
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}
		stamp := strings.TrimSuffix(name, ".txt")
		if _, perr := time.Parse(fileTimeLayout, stamp); perr != nil {
			continue
		}
		if stamp < cutoff {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", "", false, nil
	}
	sort.Strings(names)
	latest := filepath.Join(dir, names[len(names)-1])
	data, err := os.ReadFile(latest)
	if err != nil {
		return "", "", false, fmt.Errorf("failed to read snapshot %s: %w", latest, err)
	}
	return string(data), latest, true, nil
}

// OlderThan returns the paths of all snapshot files modified before cutoff.
func (s *Store) OlderThan(cutoff time.Time) ([]string, error) {
	var old []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".txt") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			old = append(old, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk snapshot dir: %w", err)
	}
	return old, nil
}

// Delete removes the given snapshot files and then any page/site directories
// left empty. It keeps going on per-file errors and reports counts.
func (s *Store) Delete(files []string) (deleted, errs int) {
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			if !os.IsNotExist(err) {
				errs++
			}
			continue
		}
		deleted++
	}
	s.removeEmptyDirs()
	return deleted, errs
}

// removeEmptyDirs prunes page directories first, then site directories.
func (s *Store) removeEmptyDirs() {
	for pass := 0; pass < 2; pass++ {
		sites, err := os.ReadDir(s.root)
		if err != nil {
			return
		}
		for _, site := range sites {
			if !site.IsDir() {
				continue
			}
			siteDir := filepath.Join(s.root, site.Name())
			pages, err := os.ReadDir(siteDir)
			if err != nil {
				continue
			}
			for _, page := range pages {
				if page.IsDir() {
					// Remove fails on non-empty dirs, which is what we want.
					os.Remove(filepath.Join(siteDir, page.Name()))
				}
			}
			os.Remove(siteDir)
		}
	}
}
