package api

import (
	"github.com/gorilla/mux"

	"sitewatch/internal/monitor"
	"sitewatch/internal/report"
	"sitewatch/internal/storage"
)

// NewRouter creates the API router and registers all handlers.
func NewRouter(store storage.Storer, mon *monitor.Monitor, reports *report.Service) *mux.Router {
	r := mux.NewRouter()
	h := NewHandlers(store, mon, reports)

	r.HandleFunc("/v1/websites", h.CreateWebsite).Methods("POST")
	r.HandleFunc("/v1/websites", h.ListWebsites).Methods("GET")
	r.HandleFunc("/v1/websites/{website_id}/results", h.ListResults).Methods("GET")
	r.HandleFunc("/v1/websites/{website_id}/monitor", h.MonitorWebsite).Methods("POST")
	r.HandleFunc("/v1/reports", h.ListReports).Methods("GET")
	r.HandleFunc("/v1/reports/{report_id}", h.GetReport).Methods("GET")
	r.HandleFunc("/v1/reports/{report_id}/resend", h.ResendReport).Methods("POST")
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")

	return r
}
