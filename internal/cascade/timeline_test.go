package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statuses(tl []TimelinePhase) map[Phase]PhaseStatus {
	out := make(map[Phase]PhaseStatus, len(tl))
	for _, p := range tl {
		out[p.Phase] = p.Status
	}
	return out
}

func TestTimelineBackfill(t *testing.T) {
	f := newFixture(t)
	f.add(EventDiscoveryQuery, "procurement-agent", map[string]any{"part": "x"})

	s := Reduce(f.events, testRun)

	assert.Equal(t, map[Phase]PhaseStatus{
		PhaseIntent:       PhaseCompleted,
		PhaseBOM:          PhaseCompleted,
		PhaseDiscovery:    PhaseActive,
		PhaseVerification: PhasePending,
		PhaseNegotiation:  PhasePending,
		PhaseLogistics:    PhasePending,
		PhasePlan:         PhasePending,
	}, statuses(s.Timeline))
	assert.Equal(t, PhaseDiscovery, CurrentPhase(s.Timeline))
}

func TestTimelineCompletionTimes(t *testing.T) {
	f := newFixture(t)
	f.add(EventIntentReceived, "procurement-agent", map[string]any{"intent": "x"}).
		add(EventDiscoveryQuery, "procurement-agent", map[string]any{"part": "x"}).
		add(EventRFQSent, "procurement-agent", map[string]any{"part": "x", "supplier": "s"})

	s := Reduce(f.events, testRun)
	tl := s.Timeline

	require.Len(t, tl, len(Phases))
	assert.Equal(t, f.events[0].Timestamp, tl[0].CompletedAt)
	assert.Equal(t, f.events[1].Timestamp, tl[1].CompletedAt, "bom closes when discovery starts")
	assert.Equal(t, f.events[2].Timestamp, tl[2].CompletedAt, "discovery closes when negotiation starts")
	assert.Equal(t, PhaseCompleted, tl[3].Status)
	assert.Empty(t, tl[3].StartedAt)
	assert.Equal(t, PhaseActive, tl[4].Status)
	assert.Equal(t, f.events[2].Timestamp, tl[4].StartedAt)
}

func TestTimelineMonotonic(t *testing.T) {
	events := sampleCascade(t)
	rank := map[PhaseStatus]int{PhasePending: 0, PhaseActive: 1, PhaseCompleted: 2}

	var prev []TimelinePhase
	for n := 0; n <= len(events); n++ {
		tl := Reduce(events[:n], testRun).Timeline
		require.Len(t, tl, len(Phases))

		for i := range tl {
			if tl[i].Status != PhasePending {
				continue
			}
			for j := i + 1; j < len(tl); j++ {
				assert.Equal(t, PhasePending, tl[j].Status,
					"prefix %d: %s pending but later %s is %s", n, tl[i].Phase, tl[j].Phase, tl[j].Status)
			}
		}
		for i := 0; i+1 < len(tl); i++ {
			if tl[i+1].Status != PhasePending {
				assert.Equal(t, PhaseCompleted, tl[i].Status, "prefix %d: %s", n, tl[i].Phase)
			}
		}
		if prev != nil {
			for i := range tl {
				assert.GreaterOrEqual(t, rank[tl[i].Status], rank[prev[i].Status],
					"prefix %d: %s regressed from %s", n, tl[i].Phase, prev[i].Status)
			}
		}
		prev = tl
	}
}
