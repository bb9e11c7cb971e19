package selection

import (
	"fmt"

	"github.com/daviddao/cascade_viewer/internal/cascade"
)

// expressTransitDays is the longest transit still drawn as express.
const expressTransitDays = 3

// RouteStop is one location on a shipment route.
type RouteStop struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Route is the routing sub-graph of one ship plan. Its stops are locations,
// not agents, so it is kept apart from the agent graph.
type Route struct {
	Index    int                    `json:"index"`
	ShipPlan cascade.ShipPlanDetail `json:"ship_plan"`
	Stops    []RouteStop            `json:"stops"`
	Edges    []cascade.GraphEdge    `json:"edges"`
}

// RouteGraph builds the route of plans[idx]. A nil idx selects the first
// plan and out-of-range values are clamped. ok is false when there are no
// ship plans.
func RouteGraph(plans []cascade.ShipPlanDetail, idx *int) (Route, bool) {
	if len(plans) == 0 {
		return Route{}, false
	}
	i := 0
	if idx != nil {
		i = min(max(*idx, 0), len(plans)-1)
	}
	sp := plans[i]
	r := Route{Index: i, ShipPlan: sp}

	for j, loc := range sp.Route {
		r.Stops = append(r.Stops, RouteStop{ID: fmt.Sprintf("stop-%d", j), Label: loc})
	}
	legs := len(r.Stops) - 1
	if legs < 1 {
		return r, true
	}

	et := cascade.EdgeRoute
	if sp.TransitDays > 0 && sp.TransitDays <= expressTransitDays {
		et = cascade.EdgeRouteExpress
	}
	perLeg := sp.TransitDays / float64(legs)
	for j := 0; j < legs; j++ {
		label := ""
		if perLeg > 0 {
			label = fmt.Sprintf("%.1fd", perLeg)
		}
		r.Edges = append(r.Edges, cascade.GraphEdge{
			ID:       fmt.Sprintf("r%d", j),
			Source:   r.Stops[j].ID,
			Target:   r.Stops[j+1].ID,
			Label:    label,
			EdgeType: et,
			Animated: et == cascade.EdgeRouteExpress,
		})
	}
	return r, true
}
