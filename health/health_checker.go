// Package health reports whether the interaction reference table is loaded and fresh.
package health

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/ems-interactions-api/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore interfaces.DataStore
	sessions  interfaces.SessionStore
	refreshAt string
	now       func() time.Time
}

// NewHealthChecker creates a health checker. sessions may be nil; refreshAt is
// the RULES_REFRESH_AT schedule used to announce the next update.
func NewHealthChecker(dataStore interfaces.DataStore, sessions interfaces.SessionStore, refreshAt string) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		dataStore: dataStore,
		sessions:  sessions,
		refreshAt: refreshAt,
		now:       time.Now,
	}
}

// HealthCheck returns the status, the details served on /health and the HTTP code
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	rules := h.dataStore.Rules()
	medications := h.dataStore.GetMedications()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := h.now().Sub(lastUpdate)

	switch {
	case len(rules) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"rules":          len(rules),
		"medications":    len(medications),
		"is_updating":    isUpdating,
		"next_update":    h.CalculateNextUpdate().Format(time.RFC3339),
	}

	if report := h.dataStore.GetDataQualityReport(); report != nil {
		data["invalid_rules"] = report.InvalidRules
		data["rules_with_unknown_drugs"] = report.RulesWithUnknownDrugs
	}

	if h.sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		data["active_sessions"] = h.sessions.Count(ctx)
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled refresh
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	return NextUpdate(h.now(), h.refreshAt)
}

// NextUpdate returns the first "HH:MM" time of at (";" separated) after now,
// rolling over to tomorrow's earliest time. Unparseable entries are ignored;
// with none left it falls back to 06:00 and 18:00.
func NextUpdate(now time.Time, at string) time.Time {
	var times []time.Time
	for _, part := range strings.Split(at, ";") {
		t, err := time.Parse("15:04", strings.TrimSpace(part))
		if err != nil {
			continue
		}
		times = append(times, time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()))
	}
	if len(times) == 0 {
		return NextUpdate(now, "06:00;18:00")
	}

	var next, earliest time.Time
	for _, t := range times {
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
		if t.After(now) && (next.IsZero() || t.Before(next)) {
			next = t
		}
	}
	if next.IsZero() {
		return earliest.AddDate(0, 0, 1)
	}
	return next
}
