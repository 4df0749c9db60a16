package storage

import (
	"context"
	"errors"
	"time"

	"sitewatch/internal/models"
)

var (
	// ErrDuplicateKey is returned when attempting to create a duplicate resource
	ErrDuplicateKey = errors.New("duplicate")
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("not found")
)

// ListWebsitesParams contains parameters for listing websites with filtering and pagination
type ListWebsitesParams struct {
	Host      string
	AfterTime time.Time
	AfterID   string
	Limit     int
}

// ListResultsParams contains parameters for listing monitoring results with filtering and pagination
type ListResultsParams struct {
	WebsiteID string
	Since     *time.Time
	Limit     int
}

// Storer defines the interface for storage operations on websites, results and reports
type Storer interface {
	CreateWebsite(ctx context.Context, website *models.Website, idempotencyKey *string) (*models.Website, error)
	GetWebsiteByID(ctx context.Context, id string) (*models.Website, error)
	ListWebsites(ctx context.Context, params ListWebsitesParams) ([]models.Website, error)
	GetActiveWebsites(ctx context.Context) ([]models.Website, error)

	CreateResult(ctx context.Context, result *models.MonitoringResult) error
	LatestResultForWebsite(ctx context.Context, websiteID string) (*models.MonitoringResult, error)
	ListResultsByWebsiteID(ctx context.Context, params ListResultsParams) ([]models.MonitoringResult, error)
	DeleteResultsBefore(ctx context.Context, cutoff time.Time) ([]models.MonitoringResult, error)

	CreateReport(ctx context.Context, report *models.MonitoringReport) error
	UpdateReport(ctx context.Context, report *models.MonitoringReport) error
	GetReportByID(ctx context.Context, id string) (*models.MonitoringReport, error)
	ListReports(ctx context.Context, limit int) ([]models.MonitoringReport, error)
}
