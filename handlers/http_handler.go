// Package handlers provides the HTTP handlers of the interactions API:
// catalog lookup, the reference table, interaction checks, selection
// sessions, admin edits and health.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/ems-interactions-api/interactions"
	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/logging"
	"github.com/giygas/ems-interactions-api/metrics"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler interface
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	dataStore     interfaces.DataStore
	validator     interfaces.DataValidator
	sessions      interfaces.SessionStore
	healthChecker interfaces.HealthChecker
	ruleStore     interfaces.RuleStore
	refresh       func() error
	matcher       *interactions.Matcher
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies.
// ruleStore may be nil, the admin rule endpoints then answer 503.
func NewHTTPHandler(dataStore interfaces.DataStore, validator interfaces.DataValidator,
	sessions interfaces.SessionStore, healthChecker interfaces.HealthChecker,
	ruleStore interfaces.RuleStore, refresh func() error) interfaces.HTTPHandler {
	return &HTTPHandlerImpl{
		dataStore:     dataStore,
		validator:     validator,
		sessions:      sessions,
		healthChecker: healthChecker,
		ruleStore:     ruleStore,
		refresh:       refresh,
		matcher:       interactions.NewMatcher(dataStore),
	}
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

type checkRequest struct {
	Medications []string `json:"medications" validate:"max=100,dive,required"`
	Sort        string   `json:"sort" validate:"omitempty,oneof=pairs severity"`
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	respondWithJSON(w, code, payload)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	respondWithError(w, code, message)
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Debug("Failed to write response", "error", err)
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

// decodeJSON reads a single JSON object and rejects unknown fields
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// ServeMedications returns the catalog, optionally filtered by ?search= and ?category=
func (h *HTTPHandlerImpl) ServeMedications(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	category := strings.TrimSpace(r.URL.Query().Get("category"))

	if search != "" {
		if err := h.validator.ValidateInput(search); err != nil {
			logging.Warn("Unusual user input", "search", search)
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	medications := h.dataStore.GetMedications()
	if search == "" && category == "" {
		h.RespondWithJSON(w, http.StatusOK, medications)
		return
	}

	needle := strings.ToLower(search)
	results := make([]entities.Medication, 0)
	for _, m := range medications {
		if category != "" && !strings.EqualFold(m.Category, category) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(m.Name), needle) {
			continue
		}
		results = append(results, m)
	}

	// Always return 200 with results array (empty if no matches)
	h.RespondWithJSON(w, http.StatusOK, results)
}

// FindMedicationByID returns one catalog entry
func (h *HTTPHandlerImpl) FindMedicationByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Missing medication id")
		return
	}

	med, exists := h.dataStore.GetMedicationsMap()[id]
	if !exists {
		h.RespondWithError(w, http.StatusNotFound, "Medication not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, med)
}

// ServeInteractionRules returns the live reference table; ?severity= keeps rules at or above it
func (h *HTTPHandlerImpl) ServeInteractionRules(w http.ResponseWriter, r *http.Request) {
	rules := h.dataStore.Rules()

	if s := r.URL.Query().Get("severity"); s != "" {
		minimum, err := entities.ParseSeverity(s)
		if err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		filtered := make([]entities.InteractionRule, 0, len(rules))
		for _, rule := range rules {
			if rule.Severity.Rank() >= minimum.Rank() {
				filtered = append(filtered, rule)
			}
		}
		rules = filtered
	}

	h.RespondWithJSON(w, http.StatusOK, rules)
}

// CheckInteractions matches the posted medication names against the reference table
func (h *HTTPHandlerImpl) CheckInteractions(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	names := make([]string, len(req.Medications))
	for i, name := range req.Medications {
		names[i] = strings.TrimSpace(name)
	}
	if err := h.validator.ValidateSelection(names); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	report := h.matcher.Check(interactions.NewSelectionSet(names...))
	h.respondWithReport(w, report, req.Sort)
}

func (h *HTTPHandlerImpl) respondWithReport(w http.ResponseWriter, report interactions.Report, sortBy string) {
	metrics.RecordCheck(report)
	if sortBy == "severity" {
		interactions.SortForDisplay(report.Interactions)
	}
	h.RespondWithJSON(w, http.StatusOK, newReportView(report))
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.healthChecker.HealthCheck()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Duration(0)
	if start := h.dataStore.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	h.RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	})
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

