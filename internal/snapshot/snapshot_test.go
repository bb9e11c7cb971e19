package snapshot

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/daviddao/cascade_viewer/internal/cascade"
)

const testRun = "run-1"

// makeEvent creates a cascade.AgentEvent for the test run.
func makeEvent(t *testing.T, typ cascade.EventType, agentID string, seq int, data map[string]any) cascade.AgentEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return cascade.AgentEvent{
		EventType: typ,
		AgentID:   agentID,
		Timestamp: fmt.Sprintf("2026-01-01T10:00:%02dZ", seq),
		Data:      raw,
		RunID:     testRun,
	}
}

func completedRun(t *testing.T) []cascade.AgentEvent {
	t.Helper()
	return []cascade.AgentEvent{
		makeEvent(t, cascade.EventAgentRegistered, "procurement-agent", 0, map[string]any{"agent_name": "Procurement"}),
		makeEvent(t, cascade.EventAgentRegistered, "supplier-d", 1, map[string]any{"agent_name": "Brakes GmbH", "framework": "crewai"}),
		makeEvent(t, cascade.EventRFQSent, "procurement-agent", 2, map[string]any{"part": "caliper", "supplier": "supplier-d", "quantity": 4}),
		makeEvent(t, cascade.EventQuoteReceived, "procurement-agent", 3, map[string]any{"part": "caliper", "supplier": "supplier-d", "unit_price": 10, "lead_time_days": 5}),
		makeEvent(t, cascade.EventOrderPlaced, "procurement-agent", 4, map[string]any{"order_id": "o1", "part": "caliper", "supplier": "supplier-d", "quantity": 4, "unit_price": 10, "lead_time_days": 5}),
		makeEvent(t, cascade.EventCascadeComplete, "procurement-agent", 5, map[string]any{"total_cost": 40}),
	}
}

func TestBuildEmpty(t *testing.T) {
	snap := Build(nil, "")

	if snap.State == nil {
		t.Fatal("State should not be nil")
	}
	if snap.Agents != 0 {
		t.Errorf("expected 0 agents, got %d", snap.Agents)
	}
	if snap.TotalEvents != 0 {
		t.Errorf("expected 0 total events, got %d", snap.TotalEvents)
	}
	if snap.Phase != "" {
		t.Errorf("expected no phase, got %q", snap.Phase)
	}
	if snap.Risk.Bottleneck != nil {
		t.Errorf("expected no bottleneck, got %+v", snap.Risk.Bottleneck)
	}
	if snap.BuiltAt.IsZero() {
		t.Error("BuiltAt should not be zero")
	}
}

func TestBuildCompletedRun(t *testing.T) {
	events := completedRun(t)

	snap := Build(events, testRun)

	if snap.RunID != testRun {
		t.Errorf("RunID = %q, want %q", snap.RunID, testRun)
	}
	if snap.Agents != 2 {
		t.Errorf("expected 2 agents, got %d", snap.Agents)
	}
	if snap.Suppliers != 1 {
		t.Errorf("expected 1 supplier, got %d", snap.Suppliers)
	}
	if snap.Orders != 1 {
		t.Errorf("expected 1 order, got %d", snap.Orders)
	}
	if snap.Edges != 3 {
		t.Errorf("expected 3 edges, got %d", snap.Edges)
	}
	if snap.Messages != 4 {
		t.Errorf("expected 4 messages, got %d", snap.Messages)
	}
	if snap.TotalEvents != len(events) {
		t.Errorf("TotalEvents = %d, want %d", snap.TotalEvents, len(events))
	}
	if snap.Phase != cascade.PhasePlan {
		t.Errorf("Phase = %q, want %q", snap.Phase, cascade.PhasePlan)
	}
	if snap.State.ExecutionPlan == nil {
		t.Fatal("expected execution plan")
	}
	if len(snap.Risk.Suppliers) != 1 || snap.Risk.Suppliers[0].SupplierID != "supplier-d" {
		t.Errorf("unexpected risk suppliers: %+v", snap.Risk.Suppliers)
	}
}

func TestBuilderMemoizesPlan(t *testing.T) {
	events := completedRun(t)
	var b Builder

	first := b.Build(events, testRun)
	second := b.Build(events, testRun)

	if first == second {
		t.Fatal("each Build should return a new snapshot")
	}
	if first.State.ExecutionPlan != second.State.ExecutionPlan {
		t.Error("plan pointer should be reused when content is unchanged")
	}

	more := append(append([]cascade.AgentEvent{}, events...),
		makeEvent(t, cascade.EventPartMissing, "procurement-agent", 6, map[string]any{"part_id": "saddle"}))
	third := b.Build(more, testRun)
	if third.State.ExecutionPlan == second.State.ExecutionPlan {
		t.Error("plan pointer should change when content changes")
	}
	if third.State.ExecutionPlan.MissingCount != 1 {
		t.Errorf("MissingCount = %d, want 1", third.State.ExecutionPlan.MissingCount)
	}
}

func TestBuilderResetsWithoutPlan(t *testing.T) {
	events := completedRun(t)
	var b Builder

	b.Build(events, testRun)
	if snap := b.Build(events[:len(events)-1], testRun); snap.State.ExecutionPlan != nil {
		t.Fatal("expected no plan before completion")
	}
	if b.plan != nil {
		t.Error("memoized plan should be cleared")
	}
}
