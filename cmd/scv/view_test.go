package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/daviddao/cascade_viewer/internal/cascade"
	"github.com/daviddao/cascade_viewer/internal/datasource"
	"github.com/daviddao/cascade_viewer/internal/selection"
)

const testRun = "run-1"

// testEvents builds a one-part cascade: a negotiated order for supplier-d
// and one shipment. complete adds the CASCADE_COMPLETE event.
func testEvents(t *testing.T, complete bool) []cascade.AgentEvent {
	t.Helper()
	var events []cascade.AgentEvent
	add := func(typ cascade.EventType, agent string, data map[string]any) {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		events = append(events, cascade.AgentEvent{
			EventType: typ,
			AgentID:   agent,
			Timestamp: fmt.Sprintf("2026-01-01T10:00:%02dZ", len(events)),
			Data:      raw,
			RunID:     testRun,
		})
	}

	add(cascade.EventAgentRegistered, "procurement-agent", map[string]any{"agent_name": "Procurement", "framework": "langgraph"})
	add(cascade.EventAgentRegistered, "supplier-d", map[string]any{"agent_name": "Brakes GmbH", "framework": "crewai"})
	add(cascade.EventAgentRegistered, "logistics-agent", map[string]any{"agent_name": "Logistics"})
	add(cascade.EventIntentReceived, "procurement-agent", map[string]any{"intent": "Build 4 e-bikes"})
	add(cascade.EventRFQSent, "procurement-agent", map[string]any{"rfq_id": "rfq-1", "part": "caliper", "supplier": "supplier-d", "quantity": 4})
	add(cascade.EventQuoteReceived, "procurement-agent", map[string]any{"rfq_id": "rfq-1", "part": "caliper", "supplier": "supplier-d", "unit_price": 10, "lead_time_days": 5})
	add(cascade.EventCounterSent, "procurement-agent", map[string]any{"part": "caliper", "supplier": "supplier-d", "target_price": 9})
	add(cascade.EventAcceptSent, "procurement-agent", map[string]any{"part": "caliper", "supplier": "supplier-d", "price": 9.5, "order_id": "ORD-1"})
	add(cascade.EventOrderPlaced, "procurement-agent", map[string]any{
		"order_id": "ORD-1", "part": "caliper", "supplier": "supplier-d", "supplier_name": "Brakes GmbH",
		"quantity": 4, "unit_price": 9.5, "total_price": 38, "currency": "EUR", "lead_time_days": 5,
	})
	add(cascade.EventLogisticsRequested, "procurement-agent", map[string]any{"order_id": "ORD-1", "part": "caliper", "pickup": "Stuttgart", "delivery": "Milan"})
	add(cascade.EventShipPlanReceived, "procurement-agent", map[string]any{
		"order_id": "ORD-1", "from_agent": "logistics-agent", "route": []string{"Stuttgart", "Munich", "Milan"},
		"transit_time_days": 4, "cost": 80, "estimated_arrival": "2026-01-06",
	})
	if complete {
		add(cascade.EventCascadeComplete, "procurement-agent", map[string]any{"total_cost": 38, "report": map[string]any{"status": "ok"}})
	}
	return events
}

// testSources returns sources over a preloaded log with no live feeds.
func testSources(t *testing.T, complete bool) *sources {
	t.Helper()
	log := datasource.NewLog()
	log.Append(testEvents(t, complete)...)
	return newSources(log, testRun)
}

// testModel creates a sized uiModel over a completed cascade.
func testModel(t *testing.T) uiModel {
	t.Helper()
	m := newModel(testSources(t, true), t.TempDir())
	m.width = 80
	m.height = 24
	m.help.Width = 80
	return m
}

func TestParseViewFlag(t *testing.T) {
	tests := []struct {
		input string
		want  viewID
		err   bool
	}{
		{"dashboard", viewDashboard, false},
		{"Dashboard", viewDashboard, false},
		{"d", viewDashboard, false},
		{"messages", viewMessages, false},
		{"m", viewMessages, false},
		{"timeline", viewTimeline, false},
		{"t", viewTimeline, false},
		{"negotiations", viewNegotiations, false},
		{"n", viewNegotiations, false},
		{"plan", viewPlan, false},
		{"p", viewPlan, false},
		{"RISK", viewRisk, false},
		{"x", viewRisk, false},
		{"detail", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseViewFlag(tt.input)
			if tt.err {
				if err == nil {
					t.Errorf("parseViewFlag(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("parseViewFlag(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseViewFlag(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestViewIDString(t *testing.T) {
	tests := []struct {
		v    viewID
		want string
	}{
		{viewDashboard, "Dashboard"},
		{viewMessages, "Messages"},
		{viewTimeline, "Timeline"},
		{viewNegotiations, "Negotiations"},
		{viewPlan, "Plan"},
		{viewRisk, "Risk"},
		{viewDetail, "Detail"},
		{viewID(99), "?"},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("viewID(%d).String() = %q, want %q", int(tt.v), got, tt.want)
		}
	}
}

func TestViewLoading(t *testing.T) {
	m := testModel(t)
	m.width = 0

	if out := m.View(); out != "Loading..." {
		t.Errorf("expected 'Loading...' when width=0, got %q", out)
	}
}

func TestViewTitleAndTabs(t *testing.T) {
	m := testModel(t)
	out := m.View()

	for _, want := range []string{"cascade viewer", "run-1", "Dashboard", "Risk", "offline"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() should contain %q", want)
		}
	}
	if lines := strings.Count(out, "\n") + 1; lines != m.height-1 {
		t.Errorf("View() rendered %d lines, want %d", lines, m.height-1)
	}
}

func TestRenderDashboard(t *testing.T) {
	m := testModel(t)
	out := m.renderDashboard()

	for _, want := range []string{"Agents", "procurement-agent", "supplier-d", "Interactions", "Totals", "Build 4 e-bikes"} {
		if !strings.Contains(out, want) {
			t.Errorf("dashboard should contain %q", want)
		}
	}
	if !strings.Contains(out, "> ") {
		t.Error("dashboard should show cursor '> ' for selected agent")
	}
}

func TestRenderDashboardEmpty(t *testing.T) {
	m := newModel(newSources(datasource.NewLog(), ""), "")
	out := m.renderDashboard()

	if !strings.Contains(out, "no agents registered") {
		t.Error("dashboard should show 'no agents registered' when empty")
	}
	if !strings.Contains(out, "no interactions yet") {
		t.Error("dashboard should show 'no interactions yet' when empty")
	}
}

func TestRenderMessages(t *testing.T) {
	m := testModel(t)
	out := m.renderMessages()

	if !strings.Contains(out, "rfq sent") {
		t.Error("messages view should contain the short event type")
	}
	if !strings.Contains(out, "10:00:04") {
		t.Error("messages view should format timestamps as wall-clock time")
	}
	// Newest first.
	if strings.Index(out, "cascade complete") > strings.Index(out, "rfq sent") {
		t.Error("messages view should list the newest message first")
	}
}

func TestRenderMessagesFilter(t *testing.T) {
	m := testModel(t)
	m.filterAgent = "logistics-agent"
	out := m.renderMessages()

	if !strings.Contains(out, "filter: logistics-agent") {
		t.Error("messages view should show the active filter")
	}
	if !strings.Contains(out, "no messages from logistics-agent") {
		t.Error("messages view should report an empty filter result")
	}
}

func TestRenderTimeline(t *testing.T) {
	m := testModel(t)
	out := m.renderTimeline()

	for _, p := range cascade.Phases {
		if !strings.Contains(out, strings.ToUpper(string(p))) {
			t.Errorf("timeline should list phase %s", p)
		}
	}
	if !strings.Contains(out, "completed") {
		t.Error("timeline should show completed phases")
	}
}

func TestRenderNegotiations(t *testing.T) {
	m := testModel(t)
	out := m.renderNegotiations()

	if !strings.Contains(out, "caliper") || !strings.Contains(out, "supplier-d") {
		t.Error("negotiations view should list the caliper negotiation")
	}
	if !strings.Contains(out, "> ") {
		t.Error("negotiations view should show the cursor")
	}
}

func TestRenderPlan(t *testing.T) {
	m := testModel(t)
	out := m.renderPlan()

	for _, want := range []string{"COMPLETE", "ORD-1", "Stuttgart > Munich > Milan", "€38.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan view should contain %q", want)
		}
	}
}

func TestRenderPlanInProgress(t *testing.T) {
	m := newModel(testSources(t, false), "")
	out := m.renderPlan()

	if !strings.Contains(out, "cascade in progress") {
		t.Error("plan view should say the cascade is in progress")
	}
	if !strings.Contains(out, "ORD-1") {
		t.Error("plan view should show running orders before completion")
	}
}

func TestRenderRisk(t *testing.T) {
	m := testModel(t)
	out := m.renderRisk()

	if !strings.Contains(out, "Supplier Risk") {
		t.Error("risk view should contain 'Supplier Risk' header")
	}
	if !strings.Contains(out, "Brakes GmbH") {
		t.Error("risk view should list the ordered supplier")
	}
	if !strings.Contains(out, "Bottleneck") {
		t.Error("risk view should name a bottleneck")
	}
}

func TestRenderSelectionAgent(t *testing.T) {
	m := testModel(t)
	out := m.renderSelection(selection.AgentDetail{AgentID: "supplier-d"})

	if !strings.Contains(out, "Agent supplier-d") {
		t.Error("agent detail should have a title")
	}
	if !strings.Contains(out, "Brakes GmbH") {
		t.Error("agent detail should show the agent label")
	}
	if !strings.Contains(out, "procurement-agent") {
		t.Error("agent detail should list the counterpart")
	}

	out = m.renderSelection(selection.AgentDetail{AgentID: "nobody"})
	if !strings.Contains(out, "not found") {
		t.Error("agent detail should report unknown agents")
	}
}

func TestRenderSelectionOrder(t *testing.T) {
	m := testModel(t)
	out := m.renderSelection(selection.OrderDetail{PartName: "caliper", SupplierID: "supplier-d"})

	if !strings.Contains(out, "order ORD-1") {
		t.Error("order detail should show the matching order")
	}
}

func TestRenderSelectionLogistics(t *testing.T) {
	m := testModel(t)
	idx := 0
	out := m.renderSelection(selection.LogisticsDetail{ShipPlanIndex: &idx})

	for _, stop := range []string{"Stuttgart", "Munich", "Milan"} {
		if !strings.Contains(out, stop) {
			t.Errorf("logistics detail should show stop %s", stop)
		}
	}
	if !strings.Contains(out, "plan #1 of 1") {
		t.Error("logistics detail should number the plan")
	}
}

func TestRenderRouteEmpty(t *testing.T) {
	if out := renderRoute(nil, nil); !strings.Contains(out, "no ship plans") {
		t.Errorf("renderRoute(nil) = %q", out)
	}
}

func TestSplitPane(t *testing.T) {
	m := testModel(t)
	m.width = 140
	out := m.View()

	if !strings.Contains(out, "│") {
		t.Error("wide dashboard should render a split pane")
	}
	if !strings.Contains(out, "Agent procurement-agent") {
		t.Error("split pane should show the selected agent detail")
	}
}

func TestTruncateLines(t *testing.T) {
	in := "short\n" + strings.Repeat("x", 30)
	out := truncateLines(in, 10)
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 10 {
			t.Errorf("line %q exceeds width", line)
		}
	}
	if got := truncateLines(in, 0); got != in {
		t.Error("truncateLines with width 0 should be a no-op")
	}
}

func TestFitWidth(t *testing.T) {
	if got := fitWidth("ab", 4); got != "ab  " {
		t.Errorf("fitWidth pad = %q", got)
	}
	if got := fitWidth("abcdef", 4); got != "abcd" {
		t.Errorf("fitWidth truncate = %q", got)
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  []string
	}{
		{"aaa bbb ccc", 7, []string{"aaa bbb", "ccc"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"one\ntwo", 20, []string{"one", "two"}},
		{"", 10, []string{""}},
	}
	for _, tt := range tests {
		got := wrapText(tt.in, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 5); got != "ab..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 5); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdef", 2); got != "ab" {
		t.Errorf("truncate tiny = %q", got)
	}
}

func TestClock(t *testing.T) {
	if got := clock("2026-01-01T10:00:02Z"); got != "10:00:02" {
		t.Errorf("clock = %q", got)
	}
	if got := clock("2026-01-01T10:00:02.123456"); got != "10:00:02" {
		t.Errorf("clock naive = %q", got)
	}
	if got := clock("soon"); got != "soon" {
		t.Errorf("clock fallback = %q", got)
	}
}

func TestFormatCounts(t *testing.T) {
	got := formatCounts(map[cascade.EdgeType]int{cascade.EdgeOrder: 1, cascade.EdgeRFQ: 2, cascade.EdgeQuote: 0})
	if got != "rfq:2 order:1" {
		t.Errorf("formatCounts = %q", got)
	}
}
