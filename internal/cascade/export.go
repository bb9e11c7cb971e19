package cascade

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoPlan is returned when exporting before the cascade completed.
var ErrNoPlan = errors.New("no execution plan: cascade has not completed")

// Export is the persisted report artifact. Its fields mirror ExecutionPlan.
type Export struct {
	ExportedAt   string             `json:"exported_at"`
	RunID        string             `json:"run_id,omitempty"`
	CompletedAt  string             `json:"completed_at,omitempty"`
	Summary      Totals             `json:"summary"`
	Orders       []OrderDetail      `json:"orders"`
	ShipPlans    []ShipPlanDetail   `json:"ship_plans"`
	Negotiations []NegotiationRound `json:"negotiations"`
	MissingParts []MissingPart      `json:"missing_parts"`
	Report       json.RawMessage    `json:"report,omitempty"`
}

// NewExport builds the export artifact for plan.
func NewExport(plan *ExecutionPlan, runID string, now time.Time) (Export, error) {
	if plan == nil {
		return Export{}, ErrNoPlan
	}
	return Export{
		ExportedAt:   now.UTC().Format(time.RFC3339),
		RunID:        runID,
		CompletedAt:  plan.CompletedAt,
		Summary:      plan.Totals,
		Orders:       nonNil(plan.Orders),
		ShipPlans:    nonNil(plan.ShipPlans),
		Negotiations: nonNil(plan.Negotiations),
		MissingParts: nonNil(plan.MissingParts),
		Report:       plan.Report,
	}, nil
}

// ExportFileName returns the timestamped file name for an export made at now.
func ExportFileName(now time.Time) string {
	return "cascade-report-" + now.Format("20060102-150405") + ".json"
}

// WriteExport writes the export for plan into dir and returns its path.
func WriteExport(dir string, plan *ExecutionPlan, runID string, now time.Time) (string, error) {
	exp, err := NewExport(plan, runID, now)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	path := filepath.Join(dir, ExportFileName(now))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}
