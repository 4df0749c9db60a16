// Package storetest provides an in-memory Storer for tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sitewatch/internal/models"
	"sitewatch/internal/storage"
)

// Store is a thread-safe in-memory implementation of storage.Storer.
type Store struct {
	mu          sync.RWMutex
	websites    map[string]models.Website
	results     map[string][]models.MonitoringResult
	reports     map[string]models.MonitoringReport
	idempotency map[string]string
	canonical   map[string]string
	seq         int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		websites:    make(map[string]models.Website),
		results:     make(map[string][]models.MonitoringResult),
		reports:     make(map[string]models.MonitoringReport),
		idempotency: make(map[string]string),
		canonical:   make(map[string]string),
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%06d", prefix, s.seq)
}

func (s *Store) CreateWebsite(ctx context.Context, website *models.Website, idempotencyKey *string) (*models.Website, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idempotencyKey != nil {
		if id, ok := s.idempotency[*idempotencyKey]; ok {
			w := s.websites[id]
			return &w, storage.ErrDuplicateKey
		}
	}
	if id, ok := s.canonical[website.CanonicalURL]; ok {
		w := s.websites[id]
		return &w, storage.ErrDuplicateKey
	}

	s.websites[website.ID] = *website
	s.canonical[website.CanonicalURL] = website.ID
	if idempotencyKey != nil {
		s.idempotency[*idempotencyKey] = website.ID
	}
	w := *website
	return &w, nil
}

func (s *Store) GetWebsiteByID(ctx context.Context, id string) (*models.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.websites[id]; ok {
		return &w, nil
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListWebsites(ctx context.Context, params storage.ListWebsitesParams) ([]models.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []models.Website
	for _, w := range s.websites {
		if params.Host != "" && !strings.EqualFold(w.Host, params.Host) {
			continue
		}
		all = append(all, w)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	var out []models.Website
	for _, w := range all {
		if !params.AfterTime.IsZero() {
			if w.CreatedAt.Before(params.AfterTime) {
				continue
			}
			if w.CreatedAt.Equal(params.AfterTime) && w.ID <= params.AfterID {
				continue
			}
		}
		out = append(out, w)
		if params.Limit > 0 && len(out) == params.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetActiveWebsites(ctx context.Context) ([]models.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Website
	for _, w := range s.websites {
		if w.Active {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateResult(ctx context.Context, result *models.MonitoringResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.ID == "" {
		result.ID = s.nextID("mr_")
	}
	s.results[result.WebsiteID] = append(s.results[result.WebsiteID], *result)
	return nil
}

func (s *Store) LatestResultForWebsite(ctx context.Context, websiteID string) (*models.MonitoringResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := s.results[websiteID]
	if len(results) == 0 {
		return nil, storage.ErrNotFound
	}
	latest := results[0]
	for _, r := range results[1:] {
		if r.CheckedAt.After(latest.CheckedAt) {
			latest = r
		}
	}
	return &latest, nil
}

func (s *Store) ListResultsByWebsiteID(ctx context.Context, params storage.ListResultsParams) ([]models.MonitoringResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MonitoringResult
	for _, r := range s.results[params.WebsiteID] {
		if params.Since != nil && r.CheckedAt.Before(*params.Since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckedAt.Before(out[j].CheckedAt) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *Store) DeleteResultsBefore(ctx context.Context, cutoff time.Time) ([]models.MonitoringResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []models.MonitoringResult
	for websiteID, results := range s.results {
		var kept []models.MonitoringResult
		for _, r := range results {
			if r.CheckedAt.Before(cutoff) {
				deleted = append(deleted, r)
			} else {
				kept = append(kept, r)
			}
		}
		s.results[websiteID] = kept
	}
	return deleted, nil
}

func (s *Store) CreateReport(ctx context.Context, report *models.MonitoringReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.ID == "" {
		report.ID = s.nextID("rp_")
	}
	s.reports[report.ID] = *report
	return nil
}

func (s *Store) UpdateReport(ctx context.Context, report *models.MonitoringReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[report.ID]; !ok {
		return storage.ErrNotFound
	}
	s.reports[report.ID] = *report
	return nil
}

func (s *Store) GetReportByID(ctx context.Context, id string) (*models.MonitoringReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.reports[id]; ok {
		return &r, nil
	}
	return nil, storage.ErrNotFound
}

func (s *Store) ListReports(ctx context.Context, limit int) ([]models.MonitoringReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MonitoringReport
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
