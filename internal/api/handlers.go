package api

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"sitewatch/internal/models"
	"sitewatch/internal/monitor"
	"sitewatch/internal/report"
	"sitewatch/internal/storage"
	"sitewatch/internal/urlutil"
)

// Handlers holds dependencies for the API handlers.
type Handlers struct {
	store   storage.Storer
	monitor *monitor.Monitor
	reports *report.Service
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(store storage.Storer, mon *monitor.Monitor, reports *report.Service) *Handlers {
	return &Handlers{store: store, monitor: mon, reports: reports}
}

func generateID(prefix string) string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return prefix + time.Now().UTC().Format("20060102150405")
	}
	return prefix + hex.EncodeToString(b)
}

// CreateWebsite handles the registration of a new website to monitor.
func (h *Handlers) CreateWebsite(w http.ResponseWriter, r *http.Request) {
	var reqBody struct {
		URL           string            `json:"url"`
		Description   string            `json:"description"`
		Headers       map[string]string `json:"headers"`
		Active        *bool             `json:"active"`
		CheckInterval int               `json:"check_interval"`
	}
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	canonicalURL, err := urlutil.Canonicalize(reqBody.URL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	parsedURL, _ := url.Parse(canonicalURL)

	active := true
	if reqBody.Active != nil {
		active = *reqBody.Active
	}

	website := &models.Website{
		ID:            generateID("w_"),
		URL:           reqBody.URL,
		CanonicalURL:  canonicalURL,
		Host:          parsedURL.Hostname(),
		Description:   reqBody.Description,
		Headers:       reqBody.Headers,
		Active:        active,
		CheckInterval: reqBody.CheckInterval,
		CreatedAt:     time.Now().UTC(),
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	var keyPtr *string
	if idempotencyKey != "" {
		keyPtr = &idempotencyKey
	}

	created, err := h.store.CreateWebsite(r.Context(), website, keyPtr)
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		log.Printf("error creating website: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	statusCode := http.StatusCreated
	if errors.Is(err, storage.ErrDuplicateKey) {
		statusCode = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(created)
}

// ListWebsites handles listing websites with pagination.
func (h *Handlers) ListWebsites(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	host := strings.ToLower(strings.TrimSpace(q.Get("host")))

	var afterTime time.Time
	var afterID string
	if token := q.Get("page_token"); token != "" {
		// token is base64 of "<rfc3339nano>|<id>"
		if decoded, err := base64.URLEncoding.DecodeString(token); err == nil {
			parts := strings.SplitN(string(decoded), "|", 2)
			if len(parts) == 2 {
				if t, err := time.Parse(time.RFC3339Nano, parts[0]); err == nil {
					afterTime = t
					afterID = parts[1]
				}
			}
		}
	}

	items, err := h.store.ListWebsites(r.Context(), storage.ListWebsitesParams{
		Host:      host,
		AfterTime: afterTime,
		AfterID:   afterID,
		Limit:     limit,
	})
	if err != nil {
		log.Printf("list websites error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := struct {
		Items         []models.Website `json:"items"`
		NextPageToken string           `json:"next_page_token"`
	}{
		Items: items,
	}

	if len(items) == limit {
		last := items[len(items)-1]
		cursor := last.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + last.ID
		resp.NextPageToken = base64.URLEncoding.EncodeToString([]byte(cursor))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListResults handles listing monitoring results for a website.
func (h *Handlers) ListResults(w http.ResponseWriter, r *http.Request) {
	websiteID := mux.Vars(r)["website_id"]

	if _, err := h.store.GetWebsiteByID(r.Context(), websiteID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "website not found", http.StatusNotFound)
			return
		}
		log.Printf("get website error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	limit := 100
	if l := q.Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	var sincePtr *time.Time
	if s := q.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			utc := t.UTC()
			sincePtr = &utc
		}
	}

	results, err := h.store.ListResultsByWebsiteID(r.Context(), storage.ListResultsParams{
		WebsiteID: websiteID,
		Since:     sincePtr,
		Limit:     limit,
	})
	if err != nil {
		log.Printf("list results error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := struct {
		Items []models.MonitoringResult `json:"items"`
	}{Items: results}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// MonitorWebsite runs the full check pipeline for one website on demand and
// returns the fresh result.
func (h *Handlers) MonitorWebsite(w http.ResponseWriter, r *http.Request) {
	websiteID := mux.Vars(r)["website_id"]

	website, err := h.store.GetWebsiteByID(r.Context(), websiteID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "website not found", http.StatusNotFound)
			return
		}
		log.Printf("get website error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	result, err := h.monitor.Run(r.Context(), *website)
	if err != nil {
		log.Printf("on-demand monitor of %s failed: %v", websiteID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ListReports handles listing the most recent monitoring reports.
func (h *Handlers) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	reports, err := h.store.ListReports(r.Context(), limit)
	if err != nil {
		log.Printf("list reports error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := struct {
		Items []models.MonitoringReport `json:"items"`
	}{Items: reports}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetReport returns a single report.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["report_id"]

	rep, err := h.store.GetReportByID(r.Context(), reportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "report not found", http.StatusNotFound)
			return
		}
		log.Printf("get report error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

// ResendReport re-attempts delivery of an existing report.
func (h *Handlers) ResendReport(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["report_id"]

	rep, err := h.reports.Resend(r.Context(), reportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "report not found", http.StatusNotFound)
			return
		}
		log.Printf("resend report error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

// Healthz is a simple health check endpoint.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
