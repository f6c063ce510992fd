// Package scheduler loads the reference table at startup, reloads it on the
// RULES_REFRESH_AT schedule and warns when the data goes stale.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/ems-interactions-api/interactionsparser/entities"
	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/logging"
	"github.com/giygas/ems-interactions-api/metrics"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// ErrUpdateInProgress is returned by Refresh while another reload runs
var ErrUpdateInProgress = errors.New("data update already in progress")

const (
	loadTimeout    = 5 * time.Minute
	staleThreshold = 25 * time.Hour
)

// Scheduler handles data updates and health monitoring using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	parser    interfaces.Parser
	validator interfaces.DataValidator
	refreshAt string
	scheduler *gocron.Scheduler

	stopOnce sync.Once
	stop     chan struct{}
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(dataStore interfaces.DataStore, parser interfaces.Parser, validator interfaces.DataValidator, refreshAt string) *Scheduler {
	return &Scheduler{
		dataStore: dataStore,
		parser:    parser,
		validator: validator,
		refreshAt: refreshAt,
		scheduler: gocron.NewScheduler(time.Local),
		stop:      make(chan struct{}),
	}
}

// Start performs the initial load, then schedules refreshes and the staleness monitor
func (s *Scheduler) Start() error {
	if err := s.updateData(); err != nil && !errors.Is(err, ErrUpdateInProgress) {
		logging.Error("Failed to perform initial data load", "error", err)
		return fmt.Errorf("initial data load failed: %w", err)
	}

	_, err := s.scheduler.Every(1).Days().At(s.refreshAt).Do(func() {
		if err := s.updateData(); err != nil && !errors.Is(err, ErrUpdateInProgress) {
			logging.Error("Failed to update data", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule updates", "error", err)
		return fmt.Errorf("failed to schedule updates: %w", err)
	}

	s.scheduler.StartAsync()
	s.startHealthMonitoring()

	return nil
}

// Stop stops scheduled refreshes and the staleness monitor
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.scheduler.Stop()
	})
}

// Refresh reloads the table now, outside the schedule
func (s *Scheduler) Refresh() error {
	return s.updateData()
}

// updateData parses, filters and swaps in a new generation of data.
// On any error the previous generation stays live.
func (s *Scheduler) updateData() error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Update already in progress, skipping")
		return ErrUpdateInProgress
	}
	defer s.dataStore.EndUpdate()

	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	start := time.Now()
	logging.Info("Starting interaction data update")

	rules, err := s.parser.ParseRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to parse interaction rules: %w", err)
	}

	medications, err := s.parser.ParseCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to parse medication catalog: %w", err)
	}

	report := s.validator.ReportDataQuality(rules, medications)
	valid := s.dropInvalidRules(rules)
	logReport(report)

	if err := s.validator.ValidateDataIntegrity(valid, medications); err != nil {
		return fmt.Errorf("data integrity check failed: %w", err)
	}

	medicationsMap := make(map[string]entities.Medication, len(medications))
	for _, m := range medications {
		medicationsMap[m.ID] = m
	}

	s.dataStore.UpdateData(valid, medications, medicationsMap, report)
	metrics.InteractionRulesLoaded.Set(float64(len(valid)))

	logging.Info("Interaction data update completed",
		"duration", time.Since(start).String(),
		"rules", len(valid),
		"medications", len(medications),
	)
	return nil
}

func (s *Scheduler) dropInvalidRules(rules []entities.InteractionRule) []entities.InteractionRule {
	valid := make([]entities.InteractionRule, 0, len(rules))
	for i := range rules {
		if err := s.validator.ValidateRule(&rules[i]); err != nil {
			continue
		}
		valid = append(valid, rules[i])
	}
	return valid
}

func logReport(report *interfaces.DataQualityReport) {
	if report.InvalidRules > 0 {
		logging.Warn("Invalid interaction rules dropped",
			"count", report.InvalidRules,
			"details", report.InvalidRuleDetails,
		)
	}
	if len(report.SelfPairs) > 0 {
		logging.Warn("Rules pairing a drug with itself", "drugs", report.SelfPairs)
	}
	if report.RulesWithUnknownDrugs > 0 {
		logging.Info("Rules naming drugs absent from the catalog",
			"count", report.RulesWithUnknownDrugs,
			"drugs", report.UnknownDrugs,
		)
	}
	if len(report.DuplicateMedicationIDs) > 0 {
		logging.Warn("Duplicate medication ids in catalog", "ids", report.DuplicateMedicationIDs)
	}
}

// startHealthMonitoring warns hourly once the data is older than a day
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if age := time.Since(s.dataStore.GetLastUpdated()); age > staleThreshold {
					logging.Warn("Interaction data hasn't been updated in over 25 hours", "age", age.Round(time.Minute).String())
				}
			}
		}
	}()
}
