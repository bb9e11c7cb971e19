package datasource

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/cascade_viewer/internal/cascade"
)

func testEvent(typ cascade.EventType, agent string, seq int, runID string) cascade.AgentEvent {
	return cascade.AgentEvent{
		EventType: typ,
		AgentID:   agent,
		Timestamp: fmt.Sprintf("2026-01-01T10:00:%02dZ", seq),
		Data:      json.RawMessage(`{}`),
		RunID:     runID,
	}
}

func TestLogAppendDedup(t *testing.T) {
	l := NewLog()
	a := testEvent(cascade.EventIntentReceived, "procurement-agent", 1, "r1")
	b := testEvent(cascade.EventBOMGenerated, "procurement-agent", 2, "r1")

	assert.Equal(t, 2, l.Append(a, b))
	assert.Equal(t, 0, l.Append(a))
	assert.Equal(t, 0, l.Append())
	assert.Equal(t, 2, l.Len())

	got := l.Events()
	require.Len(t, got, 2)
	assert.Equal(t, a.EventType, got[0].EventType)

	got[0].AgentID = "mutated"
	assert.Equal(t, "procurement-agent", l.Events()[0].AgentID, "Events must return a copy")
}

func TestLogChangesDebounced(t *testing.T) {
	l := NewLog()
	for i := range 5 {
		l.Append(testEvent(cascade.EventRFQSent, "procurement-agent", i, "r1"))
	}

	select {
	case <-l.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change signal")
	}

	select {
	case <-l.Changes():
		t.Fatal("burst of appends should produce one signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLogNoSignalForDuplicates(t *testing.T) {
	l := NewLog()
	e := testEvent(cascade.EventRFQSent, "procurement-agent", 1, "r1")
	l.Append(e)
	<-l.Changes()

	l.Append(e)
	select {
	case <-l.Changes():
		t.Fatal("duplicate append should not signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLogRuns(t *testing.T) {
	l := NewLog()
	assert.Empty(t, l.LatestRunID())
	assert.False(t, l.Completed("r1"))

	l.Append(
		testEvent(cascade.EventAgentRegistered, "supplier-a", 0, ""),
		testEvent(cascade.EventIntentReceived, "procurement-agent", 1, "r1"),
		testEvent(cascade.EventCascadeComplete, "procurement-agent", 2, "r1"),
		testEvent(cascade.EventIntentReceived, "procurement-agent", 3, "r2"),
		testEvent(cascade.EventAgentRegistered, "supplier-b", 4, ""),
	)

	assert.Equal(t, "r2", l.LatestRunID())
	assert.True(t, l.Completed("r1"))
	assert.False(t, l.Completed("r2"))
	assert.False(t, l.Completed(""))
}
