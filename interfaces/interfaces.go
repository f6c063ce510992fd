// Package interfaces defines core abstractions for the interactions API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/ems-interactions-api/interactions"
	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
)

// DataQualityReport provides a summary of reference table issues
type DataQualityReport struct {
	DuplicatePairs         []string // Pair keys appearing more than once
	SelfPairs              []string // Rules pairing a drug with itself
	InvalidRules           int      // Rules rejected by validation (dropped before the swap)
	InvalidRuleDetails     []string // First 10 validation errors
	RulesWithUnknownDrugs  int      // Rules naming a drug absent from the catalog
	UnknownDrugs           []string // First 10 drug names absent from the catalog
	DuplicateMedicationIDs []string
}

// DataStore defines the contract for data storage operations.
// It provides thread-safe access to the reference table and the medication catalog
// with atomic operations for zero-downtime updates.
type DataStore interface {
	// Rules returns the live reference table, so a DataStore can feed the matcher directly
	interactions.InteractionRuleSource

	GetMedications() []entities.Medication
	GetMedicationsMap() map[string]entities.Medication
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time
	GetDataQualityReport() *DataQualityReport

	// Data update methods
	UpdateData(rules []entities.InteractionRule, medications []entities.Medication,
		medicationsMap map[string]entities.Medication, report *DataQualityReport)
	BeginUpdate() bool
	EndUpdate()
}

// Parser defines the contract for loading the reference table and the catalog.
// Implementations decide where the data comes from (embedded, file, URL, database).
type Parser interface {
	ParseRules(ctx context.Context) ([]entities.InteractionRule, error)
	ParseCatalog(ctx context.Context) ([]entities.Medication, error)
}

// RuleStore is a persistent, editable home for the reference table
type RuleStore interface {
	ListActive(ctx context.Context) ([]entities.InteractionRule, error)
	Create(ctx context.Context, rule *entities.InteractionRule) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Session is a server-side selection set, alive while the checker dialog is open
type Session struct {
	ID        string                    `json:"id"`
	Selection interactions.SelectionSet `json:"medications"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// SessionStore keeps selection sessions until they are deleted or expire
type SessionStore interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	// Save overwrites an existing session; it never recreates a deleted one
	Save(ctx context.Context, session *Session) error
	// Update applies fn to the stored session atomically with respect to other
	// updates and deletes of the same ID. An error from fn aborts the write and
	// is returned as is. fn may run more than once.
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) int
}

// Scheduler defines the contract for job scheduling and health monitoring.
// It manages automated data updates and system health checks.
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()

	// Refresh reloads the reference table and catalog outside the schedule
	Refresh() error
}

// HTTPHandler defines the contract for HTTP request handlers.
// It provides a consistent interface for all API endpoints.
type HTTPHandler interface {
	// Catalog
	ServeMedications(w http.ResponseWriter, r *http.Request)
	FindMedicationByID(w http.ResponseWriter, r *http.Request)

	// Reference table and checks
	ServeInteractionRules(w http.ResponseWriter, r *http.Request)
	CheckInteractions(w http.ResponseWriter, r *http.Request)

	// Selection sessions
	CreateSession(w http.ResponseWriter, r *http.Request)
	GetSession(w http.ResponseWriter, r *http.Request)
	DeleteSession(w http.ResponseWriter, r *http.Request)
	AddSessionMedication(w http.ResponseWriter, r *http.Request)
	RemoveSessionMedication(w http.ResponseWriter, r *http.Request)
	CheckSessionInteractions(w http.ResponseWriter, r *http.Request)

	// Admin
	CreateInteractionRule(w http.ResponseWriter, r *http.Request)
	DeleteInteractionRule(w http.ResponseWriter, r *http.Request)
	RefreshData(w http.ResponseWriter, r *http.Request)

	// This will stay in all versions
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
// It provides system health monitoring and reporting.
type HealthChecker interface {
	// HealthCheck returns current system health status
	HealthCheck() (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled update time
	CalculateNextUpdate() time.Time
}

// DataValidator defines the contract for data validation operations.
// It ensures data integrity and consistency.
type DataValidator interface {
	// ValidateRule checks if an interaction rule is well formed
	ValidateRule(rule *entities.InteractionRule) error

	// ValidateMedication checks if a catalog entry is well formed
	ValidateMedication(m *entities.Medication) error

	// ValidateDataIntegrity performs comprehensive data validation
	ValidateDataIntegrity(rules []entities.InteractionRule, medications []entities.Medication) error

	// ReportDataQuality generates a data quality report with all issues found
	ReportDataQuality(rules []entities.InteractionRule, medications []entities.Medication) *DataQualityReport

	// ValidateInput validates user input strings (search terms, medication names)
	ValidateInput(input string) error

	// ValidateSelection validates the medication names of a check request
	ValidateSelection(names []string) error

	// ValidateStruct validates a request DTO against its struct tags
	ValidateStruct(s any) error
}
