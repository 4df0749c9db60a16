package monitor

import (
	"log"

	"sitewatch/internal/models"
)

// Event kinds emitted after a monitoring run.
const (
	EventStatusChanged     = "status_changed"
	EventErrorOccurred     = "error_occurred"
	EventContentChanged    = "content_changed"
	EventDomainExpiring    = "domain_expiring"
	EventBrokenAssetsFound = "broken_assets_found"
)

// Event describes something noteworthy a monitoring run observed.
type Event struct {
	Kind    string
	Website models.Website
	Result  *models.MonitoringResult
}

// Notifier receives events. Implementations must not block the monitoring
// pipeline; a slow subscriber should buffer internally.
type Notifier interface {
	Notify(event Event)
}

// LogNotifier writes events to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(event Event) {
	log.Printf("event %s: website=%s status=%s", event.Kind, event.Website.URL, event.Result.Status)
}

// emit derives events from a finished result and fans them out.
func emit(notifiers []Notifier, website models.Website, previous, current *models.MonitoringResult) {
	var events []Event
	add := func(kind string) {
		events = append(events, Event{Kind: kind, Website: website, Result: current})
	}

	if previous != nil && previous.Status != current.Status {
		add(EventStatusChanged)
	}
	if current.Status == models.StatusError {
		add(EventErrorOccurred)
	}
	if current.ScanResults != nil && current.ScanResults.AnySignificantChange {
		add(EventContentChanged)
	} else if current.ScanResults == nil && current.ContentChanged {
		add(EventContentChanged)
	}
	if current.DomainDaysUntilExpiry != nil && *current.DomainDaysUntilExpiry <= 7 {
		add(EventDomainExpiring)
	}
	if current.ScanResults != nil && current.ScanResults.HasBrokenAssets {
		add(EventBrokenAssetsFound)
	}

	for _, event := range events {
		for _, n := range notifiers {
			n.Notify(event)
		}
	}
}
