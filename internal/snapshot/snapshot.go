// Package snapshot builds immutable data snapshots from the event log.
//
// A DataSnapshot captures the reduced cascade state and its risk analysis
// at a point in time. Snapshots are rebuilt on each log change and swapped
// atomically into the UI model.
package snapshot

import (
	"reflect"
	"sync"
	"time"

	"github.com/daviddao/cascade_viewer/internal/cascade"
	"github.com/daviddao/cascade_viewer/internal/metrics"
	"github.com/daviddao/cascade_viewer/internal/risk"
)

// DataSnapshot is an immutable, self-contained view of one cascade run.
type DataSnapshot struct {
	RunID string
	State *cascade.State
	Risk  risk.Report
	Phase cascade.Phase

	// Counts.
	Agents      int
	Suppliers   int
	Edges       int
	Messages    int
	Orders      int
	TotalEvents int

	// Timestamp of snapshot creation.
	BuiltAt time.Time
}

// Build reduces events for runID and returns a complete snapshot.
func Build(events []cascade.AgentEvent, runID string) *DataSnapshot {
	start := time.Now()
	st := cascade.Reduce(events, runID)
	rep := risk.Analyze(st.Nodes, st.Orders, st.Negotiations, st.ShipPlans)

	var suppliers int
	for _, n := range st.Nodes {
		if n.Role == cascade.RoleSupplier {
			suppliers++
		}
	}

	metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	metrics.SnapshotEvents.Set(float64(len(events)))

	return &DataSnapshot{
		RunID:       runID,
		State:       st,
		Risk:        rep,
		Phase:       cascade.CurrentPhase(st.Timeline),
		Agents:      len(st.Nodes),
		Suppliers:   suppliers,
		Edges:       len(st.Edges),
		Messages:    len(st.Messages),
		Orders:      len(st.Orders),
		TotalEvents: len(events),
		BuiltAt:     time.Now(),
	}
}

// Builder builds successive snapshots and keeps the execution plan pointer
// stable while its content does not change, so views holding the previous
// plan can compare by pointer.
type Builder struct {
	mu   sync.Mutex
	plan *cascade.ExecutionPlan
}

// Build is like the package-level Build with plan memoization.
func (b *Builder) Build(events []cascade.AgentEvent, runID string) *DataSnapshot {
	snap := Build(events, runID)

	b.mu.Lock()
	defer b.mu.Unlock()
	plan := snap.State.ExecutionPlan
	switch {
	case plan == nil:
		b.plan = nil
	case b.plan != nil && reflect.DeepEqual(b.plan, plan):
		snap.State.ExecutionPlan = b.plan
	default:
		b.plan = plan
	}
	return snap
}
