package selection

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/cascade_viewer/internal/cascade"
)

func abcEdges() []cascade.GraphEdge {
	return []cascade.GraphEdge{
		{ID: "e0", Source: "A", Target: "B", EdgeType: cascade.EdgeRFQ},
		{ID: "e1", Source: "B", Target: "A", EdgeType: cascade.EdgeQuote},
		{ID: "e2", Source: "A", Target: "C", EdgeType: cascade.EdgeRFQ},
	}
}

func intPtr(n int) *int { return &n }

func TestDetailEdges(t *testing.T) {
	edges := []cascade.GraphEdge{
		{ID: "e0", Source: "proc", Target: "sup-d", Label: "RFQ Brake-Caliper x10", EdgeType: cascade.EdgeRFQ},
		{ID: "e1", Source: "sup-d", Target: "proc", Label: "brake-caliper €50.00", EdgeType: cascade.EdgeQuote},
		{ID: "e2", Source: "proc", Target: "sup-d", Label: "RFQ frame x2", EdgeType: cascade.EdgeRFQ},
		{ID: "e3", Source: "proc", Target: "sup-e", Label: "RFQ brake-caliper x10", EdgeType: cascade.EdgeRFQ},
		{ID: "e4", Source: "proc", Target: "logi", Label: "ship brake-caliper", EdgeType: cascade.EdgeLogistics},
		{ID: "e5", Source: "logi", Target: "proc", Label: "plan ORD-1 4d", EdgeType: cascade.EdgeLogistics},
	}

	ids := func(es []cascade.GraphEdge) []string {
		var out []string
		for _, e := range es {
			out = append(out, e.ID)
		}
		return out
	}

	t.Run("agent detail scenario", func(t *testing.T) {
		got := DetailEdges(abcEdges(), AgentDetail{AgentID: "B"})
		assert.Equal(t, abcEdges()[:2], got)
	})

	tests := []struct {
		name string
		sel  GraphSelection
		want []string
	}{
		{"overview", Overview{}, nil},
		{"nil selection", nil, nil},
		{"agent", AgentDetail{AgentID: "logi"}, []string{"e4", "e5"}},
		{"agent empty", AgentDetail{}, nil},
		{"agent absent", AgentDetail{AgentID: "zzz"}, nil},
		{"order case insensitive", OrderDetail{PartName: "BRAKE-caliper", SupplierID: "sup-d"}, []string{"e0", "e1"}},
		{"order missing part", OrderDetail{SupplierID: "sup-d"}, nil},
		{"order missing supplier", OrderDetail{PartName: "frame"}, nil},
		{"logistics", LogisticsDetail{}, []string{"e4", "e5"}},
		{"logistics index ignored", LogisticsDetail{ShipPlanIndex: intPtr(7)}, []string{"e4", "e5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(DetailEdges(edges, tt.sel)))
		})
	}

	t.Run("input untouched", func(t *testing.T) {
		before := append([]cascade.GraphEdge(nil), edges...)
		DetailEdges(edges, AgentDetail{AgentID: "proc"})
		assert.Equal(t, before, edges)
	})
}

func TestDetailNodes(t *testing.T) {
	nodes := []cascade.GraphNode{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}}

	got := DetailNodes(nodes, abcEdges(), AgentDetail{AgentID: "B"})
	assert.Equal(t, []cascade.GraphNode{{ID: "A"}, {ID: "B"}}, got)

	got = DetailNodes(nodes, abcEdges(), AgentDetail{AgentID: "D"})
	assert.Equal(t, []cascade.GraphNode{{ID: "D"}}, got)

	assert.Nil(t, DetailNodes(nodes, abcEdges(), Overview{}))
}

func TestRouteGraph(t *testing.T) {
	plans := []cascade.ShipPlanDetail{
		{OrderID: "ORD-1", Route: []string{"Stuttgart", "Munich", "Milan"}, TransitDays: 4},
		{OrderID: "ORD-2", Route: []string{"Lyon", "Turin"}, TransitDays: 2},
		{OrderID: "ORD-3", Route: []string{"Oslo"}},
	}

	t.Run("default is first plan", func(t *testing.T) {
		r, ok := RouteGraph(plans, nil)
		require.True(t, ok)
		assert.Equal(t, 0, r.Index)
		require.Len(t, r.Stops, 3)
		require.Len(t, r.Edges, 2)
		assert.Equal(t, cascade.EdgeRoute, r.Edges[0].EdgeType)
		assert.Equal(t, "stop-0", r.Edges[0].Source)
		assert.Equal(t, "stop-1", r.Edges[0].Target)
		assert.Equal(t, "2.0d", r.Edges[0].Label)
	})

	t.Run("short transit is express", func(t *testing.T) {
		r, ok := RouteGraph(plans, intPtr(1))
		require.True(t, ok)
		require.Len(t, r.Edges, 1)
		assert.Equal(t, cascade.EdgeRouteExpress, r.Edges[0].EdgeType)
		assert.True(t, r.Edges[0].Animated)
	})

	t.Run("clamped", func(t *testing.T) {
		r, _ := RouteGraph(plans, intPtr(99))
		assert.Equal(t, 2, r.Index)
		assert.Len(t, r.Stops, 1)
		assert.Empty(t, r.Edges)

		r, _ = RouteGraph(plans, intPtr(-3))
		assert.Equal(t, 0, r.Index)
	})

	t.Run("no plans", func(t *testing.T) {
		_, ok := RouteGraph(nil, nil)
		assert.False(t, ok)
	})
}

func TestFromQuery(t *testing.T) {
	tests := []struct {
		query   string
		want    GraphSelection
		wantErr bool
	}{
		{"", Overview{}, false},
		{"mode=overview", Overview{}, false},
		{"mode=agent-detail&agent=supplier-d", AgentDetail{AgentID: "supplier-d"}, false},
		{"mode=order-detail&part=frame&supplier=s", OrderDetail{PartName: "frame", SupplierID: "s"}, false},
		{"mode=logistics-detail", LogisticsDetail{}, false},
		{"mode=logistics-detail&plan=2", LogisticsDetail{ShipPlanIndex: intPtr(2)}, false},
		{"mode=logistics-detail&plan=x", nil, true},
		{"mode=graph", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := FromQuery(q)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "overview", Describe(Overview{}))
	assert.Equal(t, "agent x", Describe(AgentDetail{AgentID: "x"}))
	assert.Equal(t, "order p @ s", Describe(OrderDetail{PartName: "p", SupplierID: "s"}))
	assert.Equal(t, "logistics #2", Describe(LogisticsDetail{ShipPlanIndex: intPtr(1)}))
}
