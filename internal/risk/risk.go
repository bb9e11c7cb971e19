// Package risk scores supplier concentration risk for a cascade and picks
// its primary bottleneck.
package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/daviddao/cascade_viewer/internal/cascade"
)

type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)

const (
	minScore   = 1
	maxScore   = 6
	MaxTotal   = 3 * maxScore
	highAt     = 12
	mediumAt   = 7
	loadPerOrd = 1.5
	loadPerNeg = 1.0
)

// SupplierRisk is the scored exposure to one supplier.
type SupplierRisk struct {
	SupplierID   string   `json:"supplier_id"`
	Label        string   `json:"label"`
	Dependency   int      `json:"dependency"`
	SingleSource int      `json:"single_source"`
	LeadTime     int      `json:"lead_time"`
	TotalScore   int      `json:"total_score"`
	Level        Level    `json:"level"`
	Orders       int      `json:"orders"`
	OrderValue   float64  `json:"order_value"`
	Parts        []string `json:"parts"`
	SoleParts    []string `json:"sole_parts,omitempty"`
	Reliability  *float64 `json:"reliability,omitempty"`
}

// BottleneckKind tells whether the bottleneck is a supplier or the
// procurement agent itself.
type BottleneckKind string

const (
	KindSupplier      BottleneckKind = "supplier"
	KindOrchestration BottleneckKind = "orchestration"
)

type Bottleneck struct {
	AgentID string         `json:"agent_id"`
	Label   string         `json:"label"`
	Kind    BottleneckKind `json:"kind"`
	Score   int            `json:"score"`
	Level   Level          `json:"level"`
	Reason  string         `json:"reason"`
}

type Report struct {
	Suppliers         []SupplierRisk `json:"suppliers"`
	Bottleneck        *Bottleneck    `json:"bottleneck,omitempty"`
	OrchestrationLoad int            `json:"orchestration_load"`
}

// LevelFor maps a total score onto a risk level.
func LevelFor(total int) Level {
	switch {
	case total >= highAt:
		return LevelHigh
	case total >= mediumAt:
		return LevelMedium
	}
	return LevelLow
}

// Analyze scores every supplier that received an order or an accepted
// negotiation. It is deterministic in its inputs.
func Analyze(nodes []cascade.GraphNode, orders []cascade.OrderDetail, negotiations []cascade.NegotiationRound, shipPlans []cascade.ShipPlanDetail) Report {
	nodeByID := make(map[string]cascade.GraphNode, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}

	type acc struct {
		orders   int
		value    float64
		parts    map[string]bool
		leadSum  float64
		leadN    int
		orderIDs map[string]bool
	}
	bySupplier := make(map[string]*acc)
	get := func(id string) *acc {
		a, ok := bySupplier[id]
		if !ok {
			a = &acc{parts: make(map[string]bool), orderIDs: make(map[string]bool)}
			bySupplier[id] = a
		}
		return a
	}

	partSuppliers := make(map[string]map[string]bool)
	index := func(part, supplier string) {
		if partSuppliers[part] == nil {
			partSuppliers[part] = make(map[string]bool)
		}
		partSuppliers[part][supplier] = true
	}

	var totalValue, globalLead float64
	for _, o := range orders {
		totalValue += o.TotalPrice
		globalLead += o.LeadTimeDays
		if o.Supplier == cascade.Unknown || o.Supplier == "" {
			continue
		}
		a := get(o.Supplier)
		a.orders++
		a.value += o.TotalPrice
		a.parts[o.Part] = true
		a.leadSum += o.LeadTimeDays
		a.leadN++
		a.orderIDs[o.OrderID] = true
		index(o.Part, o.Supplier)
	}
	for _, n := range negotiations {
		if n.Supplier == cascade.Unknown || n.Supplier == "" {
			continue
		}
		if n.Quoted() {
			index(n.Part, n.Supplier)
		}
		if n.Status == cascade.NegotiationAccepted {
			get(n.Supplier).parts[n.Part] = true
		}
	}
	if len(orders) > 0 {
		globalLead /= float64(len(orders))
	}

	transitByOrder := make(map[string][]float64)
	for _, sp := range shipPlans {
		transitByOrder[sp.OrderID] = append(transitByOrder[sp.OrderID], sp.TransitDays)
	}

	var out []SupplierRisk
	for id, a := range bySupplier {
		countShare, valueShare := 0.0, 0.0
		if len(orders) > 0 {
			countShare = float64(a.orders) / float64(len(orders))
		}
		if totalValue > 0 {
			valueShare = a.value / totalValue
		}

		parts := sortedKeys(a.parts)
		var sole []string
		for _, p := range parts {
			if len(partSuppliers[p]) <= 1 {
				sole = append(sole, p)
			}
		}
		soleRatio := 0.0
		if len(parts) > 0 {
			soleRatio = float64(len(sole)) / float64(len(parts))
		}

		avgLead := 0.0
		if a.leadN > 0 {
			avgLead = a.leadSum / float64(a.leadN)
		}
		var transitSum float64
		var transitN int
		for _, oid := range sortedKeys(a.orderIDs) {
			for _, d := range transitByOrder[oid] {
				transitSum += d
				transitN++
			}
		}
		avgTransit := 0.0
		if transitN > 0 {
			avgTransit = transitSum / float64(transitN)
		}
		leadRatio := 0.0
		if globalLead > 0 {
			leadRatio = (avgLead + avgTransit) / globalLead
		}

		r := SupplierRisk{
			SupplierID:   id,
			Label:        id,
			Dependency:   scale(math.Max(countShare, valueShare), 6),
			SingleSource: scale(soleRatio, 5),
			LeadTime:     scale(leadRatio, 3),
			Orders:       a.orders,
			OrderValue:   a.value,
			Parts:        parts,
			SoleParts:    sole,
		}
		if n, ok := nodeByID[id]; ok {
			r.Label = n.Label
			if n.ReliabilityScore != nil {
				v := *n.ReliabilityScore
				r.Reliability = &v
			}
		}
		if r.Reliability != nil {
			b := boost(*r.Reliability)
			r.Dependency = min(r.Dependency+b, maxScore)
			r.SingleSource = min(r.SingleSource+b, maxScore)
			r.LeadTime = min(r.LeadTime+b, maxScore)
		}
		r.TotalScore = r.Dependency + r.SingleSource + r.LeadTime
		r.Level = LevelFor(r.TotalScore)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].SupplierID < out[j].SupplierID
	})

	rep := Report{
		Suppliers:         out,
		OrchestrationLoad: orchestrationLoad(len(orders), len(negotiations)),
	}
	rep.Bottleneck = bottleneck(nodes, out, rep.OrchestrationLoad, len(orders), len(negotiations))
	return rep
}

// scale maps x onto round(x*factor+1), clamped to the sub-score range.
func scale(x, factor float64) int {
	return clamp(int(math.Round(x*factor + 1)))
}

func clamp(v int) int {
	return min(max(v, minScore), maxScore)
}

// boost is added to every sub-score of a supplier with poor reliability.
func boost(reliability float64) int {
	switch {
	case reliability < 0.5:
		return 2
	case reliability < 0.7:
		return 1
	}
	return 0
}

func orchestrationLoad(orders, negotiations int) int {
	load := int(math.Round(float64(orders)*loadPerOrd + float64(negotiations)*loadPerNeg))
	return min(load, MaxTotal)
}

func bottleneck(nodes []cascade.GraphNode, ranked []SupplierRisk, load, orders, negotiations int) *Bottleneck {
	top := 0
	if len(ranked) > 0 {
		top = ranked[0].TotalScore
	}
	if load > top {
		id, label := cascade.ProcurementAgentID, cascade.ProcurementAgentID
		for _, n := range nodes {
			if n.Role == cascade.RoleProcurement {
				id, label = n.ID, n.Label
				break
			}
		}
		return &Bottleneck{
			AgentID: id,
			Label:   label,
			Kind:    KindOrchestration,
			Score:   load,
			Level:   LevelFor(load),
			Reason:  fmt.Sprintf("orchestrating %d orders across %d negotiations", orders, negotiations),
		}
	}
	if len(ranked) == 0 {
		return nil
	}
	s := ranked[0]
	return &Bottleneck{
		AgentID: s.SupplierID,
		Label:   s.Label,
		Kind:    KindSupplier,
		Score:   s.TotalScore,
		Level:   s.Level,
		Reason:  fmt.Sprintf("sole source for %d of %d parts, %.0f%% of order value", len(s.SoleParts), len(s.Parts), shareOfValue(s, ranked)*100),
	}
}

func shareOfValue(s SupplierRisk, all []SupplierRisk) float64 {
	var total float64
	for _, r := range all {
		total += r.OrderValue
	}
	if total == 0 {
		return 0
	}
	return s.OrderValue / total
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
