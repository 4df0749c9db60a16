package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sitewatch/internal/models"
	"sitewatch/internal/storage"
)

// SQLiteStore implements the storage.Storer interface for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore and establishes a connection to the database file.
// It also runs migrations to ensure the schema is up to date.
func New(ctx context.Context, dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	store := &SQLiteStore{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// migrate ensures the database schema is created.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS websites (
	id             TEXT PRIMARY KEY,
	url            TEXT NOT NULL,
	canonical_url  TEXT NOT NULL UNIQUE,
	host           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	headers        TEXT,
	active         INTEGER NOT NULL DEFAULT 1,
	check_interval INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_websites_created_at_id ON websites (created_at, id);
CREATE INDEX IF NOT EXISTS idx_websites_host ON websites (host);

CREATE TABLE IF NOT EXISTS monitoring_results (
	id                       TEXT PRIMARY KEY,
	website_id               TEXT NOT NULL,
	checked_at               TEXT NOT NULL,
	status                   TEXT NOT NULL,
	status_code              INTEGER,
	response_time_ms         INTEGER,
	error_message            TEXT,
	headers                  TEXT,
	content_hash             TEXT,
	content_changed          INTEGER NOT NULL DEFAULT 0,
	ssl_info                 TEXT,
	domain_expires_at        TEXT,
	domain_days_until_expiry INTEGER,
	resolved_ips             TEXT,
	scan_results             TEXT,
	screenshot_path          TEXT,
	FOREIGN KEY(website_id) REFERENCES websites(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_results_website_id_checked_at ON monitoring_results (website_id, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_checked_at ON monitoring_results (checked_at);

CREATE TABLE IF NOT EXISTS monitoring_reports (
	id            TEXT PRIMARY KEY,
	recipient     TEXT NOT NULL,
	subject       TEXT NOT NULL,
	body_html     TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL,
	status        TEXT NOT NULL,
	error_message TEXT,
	sent_at       TEXT,
	triggered_by  TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON monitoring_reports (created_at DESC);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	key        TEXT PRIMARY KEY,
	website_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	FOREIGN KEY(website_id) REFERENCES websites(id)
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func randomID(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return prefix + time.Now().UTC().Format("20060102150405")
	}
	return prefix + hex.EncodeToString(b)
}

// marshalNullable serializes v to JSON, returning nil for nil interface values
// so the column stores SQL NULL rather than the string "null".
func marshalNullable(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// CreateWebsite saves a new website, handling idempotency.
func (s *SQLiteStore) CreateWebsite(ctx context.Context, website *models.Website, idempotencyKey *string) (*models.Website, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if idempotencyKey != nil {
		var existingID string
		query := `SELECT website_id FROM idempotency_keys WHERE key = ?`
		err := tx.QueryRowContext(ctx, query, *idempotencyKey).Scan(&existingID)
		if err == nil {
			return s.getWebsiteByIDTx(ctx, tx, existingID)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	headersJSON, err := marshalNullable(headersOrNil(website.Headers))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal headers: %w", err)
	}

	query := `
INSERT INTO websites (id, url, canonical_url, host, description, headers, active, check_interval, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(canonical_url) DO NOTHING`
	res, err := tx.ExecContext(ctx, query,
		website.ID, website.URL, website.CanonicalURL, website.Host, website.Description,
		headersJSON, boolToInt(website.Active), website.CheckInterval,
		website.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert website: %w", err)
	}
	rowsAffected, _ := res.RowsAffected()
	if rowsAffected == 0 {
		var existing models.Website
		findQuery := websiteSelect + ` WHERE canonical_url = ?`
		row := tx.QueryRowContext(ctx, findQuery, website.CanonicalURL)
		if err := scanWebsite(row, &existing); err != nil {
			return nil, fmt.Errorf("failed to retrieve existing website: %w", err)
		}
		return &existing, storage.ErrDuplicateKey
	}

	if idempotencyKey != nil {
		insertKeyQuery := `INSERT INTO idempotency_keys (key, website_id, created_at) VALUES (?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insertKeyQuery, *idempotencyKey, website.ID, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
			return nil, fmt.Errorf("failed to record idempotency key: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return website, nil
}

func headersOrNil(h map[string]string) interface{} {
	if len(h) == 0 {
		return nil
	}
	return h
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const websiteSelect = `SELECT id, url, canonical_url, host, description, headers, active, check_interval, created_at FROM websites`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWebsite(row rowScanner, w *models.Website) error {
	var headersStr sql.NullString
	var active int
	var createdAtStr string
	if err := row.Scan(&w.ID, &w.URL, &w.CanonicalURL, &w.Host, &w.Description, &headersStr, &active, &w.CheckInterval, &createdAtStr); err != nil {
		return err
	}
	w.Active = active != 0
	if headersStr.Valid {
		if err := json.Unmarshal([]byte(headersStr.String), &w.Headers); err != nil {
			return fmt.Errorf("failed to unmarshal website headers: %w", err)
		}
	}
	w.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return nil
}

// getWebsiteByIDTx retrieves a website within a transaction.
func (s *SQLiteStore) getWebsiteByIDTx(ctx context.Context, tx *sql.Tx, id string) (*models.Website, error) {
	var w models.Website
	row := tx.QueryRowContext(ctx, websiteSelect+` WHERE id = ?`, id)
	err := scanWebsite(row, &w)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get website by id: %w", err)
	}
	return &w, nil
}

// GetWebsiteByID retrieves a single website by its unique ID.
func (s *SQLiteStore) GetWebsiteByID(ctx context.Context, id string) (*models.Website, error) {
	var w models.Website
	row := s.db.QueryRowContext(ctx, websiteSelect+` WHERE id = ?`, id)
	err := scanWebsite(row, &w)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get website by id: %w", err)
	}
	return &w, nil
}

// ListWebsites retrieves a paginated list of websites.
func (s *SQLiteStore) ListWebsites(ctx context.Context, params storage.ListWebsitesParams) ([]models.Website, error) {
	var args []interface{}
	qb := strings.Builder{}
	qb.WriteString(websiteSelect + " WHERE 1=1")
	if params.Host != "" {
		args = append(args, params.Host)
		qb.WriteString(" AND host = ?")
	}
	if !params.AfterTime.IsZero() && params.AfterID != "" {
		args = append(args, params.AfterTime.Format(time.RFC3339Nano), params.AfterID)
		qb.WriteString(" AND (created_at, id) > (?, ?)")
	}
	qb.WriteString(" ORDER BY created_at, id LIMIT ?")
	args = append(args, params.Limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list websites: %w", err)
	}
	defer rows.Close()
	var websites []models.Website
	for rows.Next() {
		var w models.Website
		if err := scanWebsite(rows, &w); err != nil {
			return nil, fmt.Errorf("failed to scan website row: %w", err)
		}
		websites = append(websites, w)
	}
	return websites, rows.Err()
}

// GetActiveWebsites retrieves all websites with monitoring enabled.
func (s *SQLiteStore) GetActiveWebsites(ctx context.Context) ([]models.Website, error) {
	rows, err := s.db.QueryContext(ctx, websiteSelect+` WHERE active = 1 ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active websites: %w", err)
	}
	defer rows.Close()
	var websites []models.Website
	for rows.Next() {
		var w models.Website
		if err := scanWebsite(rows, &w); err != nil {
			return nil, fmt.Errorf("failed to scan website row: %w", err)
		}
		websites = append(websites, w)
	}
	return websites, rows.Err()
}

// CreateResult saves a new monitoring result to the database.
func (s *SQLiteStore) CreateResult(ctx context.Context, result *models.MonitoringResult) error {
	if result.ID == "" {
		result.ID = randomID("mr_")
	}

	headersJSON, err := marshalNullable(nilIfEmptyHeaders(result.Headers))
	if err != nil {
		return fmt.Errorf("failed to marshal result headers: %w", err)
	}
	sslJSON, err := marshalNullable(nilIfNilSSL(result.SSLInfo))
	if err != nil {
		return fmt.Errorf("failed to marshal ssl info: %w", err)
	}
	scanJSON, err := marshalNullable(nilIfNilScan(result.ScanResults))
	if err != nil {
		return fmt.Errorf("failed to marshal scan results: %w", err)
	}
	ipsJSON, err := marshalNullable(nilIfEmptyIPs(result.ResolvedIPs))
	if err != nil {
		return fmt.Errorf("failed to marshal resolved ips: %w", err)
	}

	query := `
INSERT INTO monitoring_results
	(id, website_id, checked_at, status, status_code, response_time_ms, error_message,
	 headers, content_hash, content_changed, ssl_info, domain_expires_at,
	 domain_days_until_expiry, resolved_ips, scan_results, screenshot_path)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		result.ID, result.WebsiteID, result.CheckedAt.Format(time.RFC3339Nano), result.Status,
		result.StatusCode, result.ResponseTimeMS, result.ErrorMessage,
		headersJSON, result.ContentHash, boolToInt(result.ContentChanged), sslJSON,
		formatTimePtr(result.DomainExpiresAt), result.DomainDaysUntilExpiry,
		ipsJSON, scanJSON, result.ScreenshotPath)
	if err != nil {
		return fmt.Errorf("failed to create monitoring result: %w", err)
	}
	return nil
}

func nilIfEmptyHeaders(h map[string][]string) interface{} {
	if len(h) == 0 {
		return nil
	}
	return h
}

func nilIfNilSSL(s *models.SSLInfo) interface{} {
	if s == nil {
		return nil
	}
	return s
}

func nilIfNilScan(s *models.ScanResults) interface{} {
	if s == nil {
		return nil
	}
	return s
}

func nilIfEmptyIPs(ips []string) interface{} {
	if len(ips) == 0 {
		return nil
	}
	return ips
}

const resultSelect = `SELECT id, website_id, checked_at, status, status_code, response_time_ms, error_message,
	headers, content_hash, content_changed, ssl_info, domain_expires_at,
	domain_days_until_expiry, resolved_ips, scan_results, screenshot_path FROM monitoring_results`

func scanResult(row rowScanner, r *models.MonitoringResult) error {
	var checkedAtStr string
	var contentChanged int
	var headersStr, sslStr, scanStr, ipsStr, expiresStr sql.NullString
	if err := row.Scan(&r.ID, &r.WebsiteID, &checkedAtStr, &r.Status, &r.StatusCode, &r.ResponseTimeMS,
		&r.ErrorMessage, &headersStr, &r.ContentHash, &contentChanged, &sslStr,
		&expiresStr, &r.DomainDaysUntilExpiry, &ipsStr, &scanStr, &r.ScreenshotPath); err != nil {
		return err
	}
	r.CheckedAt, _ = time.Parse(time.RFC3339Nano, checkedAtStr)
	r.ContentChanged = contentChanged != 0
	r.DomainExpiresAt = parseTimePtr(expiresStr)
	if headersStr.Valid {
		if err := json.Unmarshal([]byte(headersStr.String), &r.Headers); err != nil {
			return fmt.Errorf("failed to unmarshal result headers: %w", err)
		}
	}
	if sslStr.Valid {
		r.SSLInfo = &models.SSLInfo{}
		if err := json.Unmarshal([]byte(sslStr.String), r.SSLInfo); err != nil {
			return fmt.Errorf("failed to unmarshal ssl info: %w", err)
		}
	}
	if scanStr.Valid {
		r.ScanResults = &models.ScanResults{}
		if err := json.Unmarshal([]byte(scanStr.String), r.ScanResults); err != nil {
			return fmt.Errorf("failed to unmarshal scan results: %w", err)
		}
	}
	if ipsStr.Valid {
		if err := json.Unmarshal([]byte(ipsStr.String), &r.ResolvedIPs); err != nil {
			return fmt.Errorf("failed to unmarshal resolved ips: %w", err)
		}
	}
	return nil
}

// LatestResultForWebsite retrieves the most recent result for a website.
func (s *SQLiteStore) LatestResultForWebsite(ctx context.Context, websiteID string) (*models.MonitoringResult, error) {
	var r models.MonitoringResult
	row := s.db.QueryRowContext(ctx, resultSelect+` WHERE website_id = ? ORDER BY checked_at DESC LIMIT 1`, websiteID)
	err := scanResult(row, &r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest result: %w", err)
	}
	return &r, nil
}

// ListResultsByWebsiteID retrieves recent monitoring results for a website.
func (s *SQLiteStore) ListResultsByWebsiteID(ctx context.Context, params storage.ListResultsParams) ([]models.MonitoringResult, error) {
	args := []interface{}{params.WebsiteID}
	qb := strings.Builder{}
	qb.WriteString(resultSelect + " WHERE website_id = ?")
	if params.Since != nil {
		args = append(args, params.Since.Format(time.RFC3339Nano))
		qb.WriteString(" AND checked_at > ?")
	}
	qb.WriteString(" ORDER BY checked_at DESC LIMIT ?")
	args = append(args, params.Limit)
	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitoring results: %w", err)
	}
	defer rows.Close()
	var results []models.MonitoringResult
	for rows.Next() {
		var r models.MonitoringResult
		if err := scanResult(rows, &r); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteResultsBefore removes results checked before the cutoff and returns the
// deleted records so the caller can clean up associated files.
func (s *SQLiteStore) DeleteResultsBefore(ctx context.Context, cutoff time.Time) ([]models.MonitoringResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	cutoffStr := cutoff.UTC().Format(time.RFC3339Nano)
	rows, err := tx.QueryContext(ctx, resultSelect+` WHERE checked_at < ?`, cutoffStr)
	if err != nil {
		return nil, fmt.Errorf("failed to query old results: %w", err)
	}
	var old []models.MonitoringResult
	for rows.Next() {
		var r models.MonitoringResult
		if err := scanResult(rows, &r); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		old = append(old, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM monitoring_results WHERE checked_at < ?`, cutoffStr); err != nil {
		return nil, fmt.Errorf("failed to delete old results: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return old, nil
}

// CreateReport saves a new monitoring report.
func (s *SQLiteStore) CreateReport(ctx context.Context, report *models.MonitoringReport) error {
	if report.ID == "" {
		report.ID = randomID("rp_")
	}
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal report summary: %w", err)
	}
	query := `
INSERT INTO monitoring_reports (id, recipient, subject, body_html, summary, status, error_message, sent_at, triggered_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		report.ID, report.Recipient, report.Subject, report.BodyHTML, string(summaryJSON),
		report.Status, report.ErrorMessage, formatTimePtr(report.SentAt),
		report.TriggeredBy, report.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// UpdateReport persists the mutable fields of an existing report.
func (s *SQLiteStore) UpdateReport(ctx context.Context, report *models.MonitoringReport) error {
	query := `UPDATE monitoring_reports SET body_html = ?, status = ?, error_message = ?, sent_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		report.BodyHTML, report.Status, report.ErrorMessage, formatTimePtr(report.SentAt), report.ID)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const reportSelect = `SELECT id, recipient, subject, body_html, summary, status, error_message, sent_at, triggered_by, created_at FROM monitoring_reports`

func scanReport(row rowScanner, r *models.MonitoringReport) error {
	var summaryStr, createdAtStr string
	var sentAtStr sql.NullString
	if err := row.Scan(&r.ID, &r.Recipient, &r.Subject, &r.BodyHTML, &summaryStr,
		&r.Status, &r.ErrorMessage, &sentAtStr, &r.TriggeredBy, &createdAtStr); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(summaryStr), &r.Summary); err != nil {
		return fmt.Errorf("failed to unmarshal report summary: %w", err)
	}
	r.SentAt = parseTimePtr(sentAtStr)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
	return nil
}

// GetReportByID retrieves a single report by its unique ID.
func (s *SQLiteStore) GetReportByID(ctx context.Context, id string) (*models.MonitoringReport, error) {
	var r models.MonitoringReport
	row := s.db.QueryRowContext(ctx, reportSelect+` WHERE id = ?`, id)
	err := scanReport(row, &r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report by id: %w", err)
	}
	return &r, nil
}

// ListReports retrieves the most recent reports, newest first.
func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]models.MonitoringReport, error) {
	rows, err := s.db.QueryContext(ctx, reportSelect+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()
	var reports []models.MonitoringReport
	for rows.Next() {
		var r models.MonitoringReport
		if err := scanReport(rows, &r); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
