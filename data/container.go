// Package data holds the live reference table and medication catalog.
// Readers never block: every update builds a new snapshot and swaps it in
// with a single atomic store.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// snapshot is one consistent generation of loaded data
type snapshot struct {
	rules          []entities.InteractionRule
	medications    []entities.Medication
	medicationsMap map[string]entities.Medication
	report         *interfaces.DataQualityReport
	lastUpdated    time.Time
}

// DataContainer serves the current snapshot to the matcher and the handlers
type DataContainer struct {
	current         atomic.Pointer[snapshot]
	updating        atomic.Bool
	serverStartTime atomic.Int64 // unix nanoseconds, 0 when unset
}

// NewDataContainer creates a container with an empty table and catalog
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.current.Store(&snapshot{
		rules:          []entities.InteractionRule{},
		medications:    []entities.Medication{},
		medicationsMap: map[string]entities.Medication{},
		report:         &interfaces.DataQualityReport{},
	})
	return dc
}

func (dc *DataContainer) load() *snapshot {
	return dc.current.Load()
}

// Rules returns the current reference table. Callers must not modify it.
func (dc *DataContainer) Rules() []entities.InteractionRule {
	return dc.load().rules
}

// GetMedications returns the catalog in display order
func (dc *DataContainer) GetMedications() []entities.Medication {
	return dc.load().medications
}

// GetMedicationsMap returns the catalog keyed by medication ID
func (dc *DataContainer) GetMedicationsMap() map[string]entities.Medication {
	return dc.load().medicationsMap
}

// GetDataQualityReport returns the report computed for the current snapshot
func (dc *DataContainer) GetDataQualityReport() *interfaces.DataQualityReport {
	return dc.load().report
}

// GetLastUpdated returns when the current snapshot was swapped in, zero before the first load
func (dc *DataContainer) GetLastUpdated() time.Time {
	return dc.load().lastUpdated
}

// IsUpdating reports whether a reload is in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime records when the server started
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime.UnixNano())
}

// GetServerStartTime returns the server start time, zero if never set
func (dc *DataContainer) GetServerStartTime() time.Time {
	ns := dc.serverStartTime.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// UpdateData swaps in a new generation. Nil arguments are stored as empty values.
func (dc *DataContainer) UpdateData(rules []entities.InteractionRule, medications []entities.Medication,
	medicationsMap map[string]entities.Medication, report *interfaces.DataQualityReport) {

	if rules == nil {
		rules = []entities.InteractionRule{}
	}
	if medications == nil {
		medications = []entities.Medication{}
	}
	if medicationsMap == nil {
		medicationsMap = make(map[string]entities.Medication, len(medications))
		for _, m := range medications {
			medicationsMap[m.ID] = m
		}
	}
	if report == nil {
		report = &interfaces.DataQualityReport{}
	}

	dc.current.Store(&snapshot{
		rules:          rules,
		medications:    medications,
		medicationsMap: medicationsMap,
		report:         report,
		lastUpdated:    time.Now(),
	})
}

// BeginUpdate claims the update slot.
// Returns false if another update is already in progress.
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate releases the update slot
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
