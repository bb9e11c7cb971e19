package cascade

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportFileName(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	assert.Equal(t, "cascade-report-20260304-050607.json", ExportFileName(now))
}

func TestNewExportWithoutPlan(t *testing.T) {
	_, err := NewExport(nil, testRun, time.Now())
	assert.ErrorIs(t, err, ErrNoPlan)

	_, err = WriteExport(t.TempDir(), nil, testRun, time.Now())
	assert.ErrorIs(t, err, ErrNoPlan)
}

func TestWriteExport(t *testing.T) {
	s := Reduce(sampleCascade(t), testRun)
	require.NotNil(t, s.ExecutionPlan)
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	dir := t.TempDir()

	path, err := WriteExport(dir, s.ExecutionPlan, testRun, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cascade-report-20260304-050607.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"exported_at", "summary", "orders", "ship_plans", "negotiations", "missing_parts", "report"} {
		assert.Contains(t, raw, key)
	}

	var exp Export
	require.NoError(t, json.Unmarshal(data, &exp))
	assert.Equal(t, "2026-03-04T05:06:07Z", exp.ExportedAt)
	assert.Equal(t, testRun, exp.RunID)
	assert.Equal(t, s.ExecutionPlan.Totals, exp.Summary)
	assert.Len(t, exp.Orders, 2)
	assert.Len(t, exp.ShipPlans, 1)
	assert.Len(t, exp.MissingParts, 1)
	assert.JSONEq(t, `{"status":"ok"}`, string(exp.Report))
}

func TestExportOmitsEmptyReport(t *testing.T) {
	exp, err := NewExport(&ExecutionPlan{}, "", time.Now())
	require.NoError(t, err)

	data, err := json.Marshal(exp)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "report")
	assert.JSONEq(t, `[]`, string(raw["orders"]))
}
