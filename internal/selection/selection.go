// Package selection projects a reduced cascade graph onto the drill-down
// views: agent detail, order detail and logistics detail.
package selection

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/daviddao/cascade_viewer/internal/cascade"
)

// Mode names a GraphSelection variant.
type Mode string

const (
	ModeOverview        Mode = "overview"
	ModeAgentDetail     Mode = "agent-detail"
	ModeOrderDetail     Mode = "order-detail"
	ModeLogisticsDetail Mode = "logistics-detail"
)

// GraphSelection is the UI navigation state. Exactly one of Overview,
// AgentDetail, OrderDetail or LogisticsDetail.
type GraphSelection interface {
	Mode() Mode
	selection()
}

type Overview struct{}

type AgentDetail struct {
	AgentID string
}

type OrderDetail struct {
	PartName   string
	SupplierID string
}

// LogisticsDetail selects the logistics view. ShipPlanIndex picks the route
// shown by RouteGraph; it does not filter DetailEdges.
type LogisticsDetail struct {
	ShipPlanIndex *int
}

func (Overview) Mode() Mode        { return ModeOverview }
func (AgentDetail) Mode() Mode     { return ModeAgentDetail }
func (OrderDetail) Mode() Mode     { return ModeOrderDetail }
func (LogisticsDetail) Mode() Mode { return ModeLogisticsDetail }

func (Overview) selection()        {}
func (AgentDetail) selection()     {}
func (OrderDetail) selection()     {}
func (LogisticsDetail) selection() {}

// DetailEdges returns the edges relevant to sel. Overview has no detail
// edges; it renders aggregated edges instead. The input is never modified.
func DetailEdges(edges []cascade.GraphEdge, sel GraphSelection) []cascade.GraphEdge {
	var keep func(cascade.GraphEdge) bool
	switch s := sel.(type) {
	case AgentDetail:
		if s.AgentID == "" {
			return nil
		}
		keep = func(e cascade.GraphEdge) bool {
			return e.Source == s.AgentID || e.Target == s.AgentID
		}
	case OrderDetail:
		if s.PartName == "" || s.SupplierID == "" {
			return nil
		}
		part := strings.ToLower(s.PartName)
		keep = func(e cascade.GraphEdge) bool {
			touches := e.Source == s.SupplierID || e.Target == s.SupplierID
			return touches && strings.Contains(strings.ToLower(e.Label), part)
		}
	case LogisticsDetail:
		keep = func(e cascade.GraphEdge) bool {
			return e.EdgeType == cascade.EdgeLogistics
		}
	default:
		return nil
	}

	var out []cascade.GraphEdge
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// DetailNodes returns the nodes referenced by the detail edges of sel, in
// node order. The selected agent is always included when it exists.
func DetailNodes(nodes []cascade.GraphNode, edges []cascade.GraphEdge, sel GraphSelection) []cascade.GraphNode {
	if sel == nil || sel.Mode() == ModeOverview {
		return nil
	}
	ids := make(map[string]bool)
	for _, e := range DetailEdges(edges, sel) {
		ids[e.Source] = true
		ids[e.Target] = true
	}
	switch s := sel.(type) {
	case AgentDetail:
		if s.AgentID != "" {
			ids[s.AgentID] = true
		}
	case OrderDetail:
		if s.SupplierID != "" && s.PartName != "" {
			ids[s.SupplierID] = true
		}
	}

	var out []cascade.GraphNode
	for _, n := range nodes {
		if ids[n.ID] {
			out = append(out, n)
		}
	}
	return out
}

// Describe returns a short human label for sel.
func Describe(sel GraphSelection) string {
	switch s := sel.(type) {
	case AgentDetail:
		return "agent " + s.AgentID
	case OrderDetail:
		return fmt.Sprintf("order %s @ %s", s.PartName, s.SupplierID)
	case LogisticsDetail:
		if s.ShipPlanIndex != nil {
			return fmt.Sprintf("logistics #%d", *s.ShipPlanIndex+1)
		}
		return "logistics"
	}
	return "overview"
}

// FromQuery parses a selection from URL query parameters:
//
//	mode=agent-detail&agent=ID
//	mode=order-detail&part=NAME&supplier=ID
//	mode=logistics-detail[&plan=N]
//
// An absent mode selects the overview.
func FromQuery(q url.Values) (GraphSelection, error) {
	switch Mode(q.Get("mode")) {
	case "", ModeOverview:
		return Overview{}, nil
	case ModeAgentDetail:
		return AgentDetail{AgentID: q.Get("agent")}, nil
	case ModeOrderDetail:
		return OrderDetail{PartName: q.Get("part"), SupplierID: q.Get("supplier")}, nil
	case ModeLogisticsDetail:
		sel := LogisticsDetail{}
		if v := q.Get("plan"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid plan index %q", v)
			}
			sel.ShipPlanIndex = &n
		}
		return sel, nil
	}
	return nil, fmt.Errorf("unknown selection mode %q", q.Get("mode"))
}
