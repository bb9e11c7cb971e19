package cascade

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Unknown is the placeholder used wherever a payload omits an identifier.
const Unknown = "Unknown"

// Payload is the typed form of AgentEvent.Data. Each event type decodes to
// exactly one concrete variant; unrecognized types decode to UnknownPayload.
type Payload interface {
	payload()
}

type Registered struct {
	AgentName string
	Framework string
	Skills    []string
}

type IntentReceived struct {
	Intent string
}

type BOMGenerated struct {
	TotalParts int
	Systems    []string
	Parts      []string
}

type DiscoveryQuery struct {
	Part  string
	Skill string
	Query string
}

// DiscoveredAgent is one candidate returned by the index.
type DiscoveredAgent struct {
	AgentID   string
	AgentName string
	Score     float64
}

type DiscoveryResult struct {
	Part           string
	Skill          string
	SuppliersFound int
	Agents         []DiscoveredAgent
}

type PartMissing struct {
	PartID   string
	PartName string
	Skill    string
	System   string
	Quantity int
	Reason   string
}

type AgentFactsFetched struct {
	AgentID   string
	AgentName string
}

type VerificationResult struct {
	AgentID     string
	AgentName   string
	Framework   string
	Passed      bool
	Reliability *float64
	ESG         string
	Reasons     []string
}

// Negotiation covers the procurement-side negotiation messages
// (RFQ_SENT, QUOTE_RECEIVED, COUNTER_SENT, REVISED_RECEIVED, ACCEPT_SENT,
// REJECT_SENT). Price holds the price relevant to Kind: the quoted unit price,
// the counter target, the revised price or the accepted price.
type Negotiation struct {
	Kind         EventType
	RFQID        string
	Part         string
	Supplier     string
	SupplierName string
	Quantity     int
	Price        float64
	LeadTimeDays float64
	Framework    string
	OrderID      string
	Reason       string
}

// SupplierEcho covers supplier-side acknowledgements of negotiation steps.
type SupplierEcho struct {
	Kind    EventType
	Part    string
	OrderID string
	Price   float64
	Detail  string
}

type OrderPlaced struct {
	OrderID      string
	Part         string
	Supplier     string
	SupplierName string
	Quantity     int
	UnitPrice    float64
	TotalPrice   float64
	Currency     string
	LeadTimeDays float64
}

type LogisticsRequested struct {
	OrderID  string
	Part     string
	Pickup   string
	Delivery string
	Cargo    string
}

type ShipPlanReceived struct {
	OrderID          string
	From             string
	Route            []string
	TransitDays      float64
	Cost             float64
	EstimatedArrival string
	Pickup           string
	Delivery         string
}

type CascadeComplete struct {
	TotalCost        float64
	PartsOrdered     int
	SuppliersEngaged int
	MissingCount     int
	Report           json.RawMessage
}

type UnknownPayload struct{}

func (Registered) payload()         {}
func (IntentReceived) payload()     {}
func (BOMGenerated) payload()       {}
func (DiscoveryQuery) payload()     {}
func (DiscoveryResult) payload()    {}
func (PartMissing) payload()        {}
func (AgentFactsFetched) payload()  {}
func (VerificationResult) payload() {}
func (Negotiation) payload()        {}
func (SupplierEcho) payload()       {}
func (OrderPlaced) payload()        {}
func (LogisticsRequested) payload() {}
func (ShipPlanReceived) payload()   {}
func (CascadeComplete) payload()    {}
func (UnknownPayload) payload()     {}

// Decode returns the typed payload of e. It never fails: absent or
// mistyped fields decode to their zero value.
func Decode(e AgentEvent) Payload {
	f := fieldsOf(e.Data)
	switch e.EventType {
	case EventAgentRegistered:
		return Registered{
			AgentName: f.str("agent_name", "name"),
			Framework: f.str("framework"),
			Skills:    f.strs("skills"),
		}
	case EventIntentReceived:
		return IntentReceived{Intent: f.str("intent")}
	case EventBOMGenerated:
		return BOMGenerated{
			TotalParts: f.int("total_parts"),
			Systems:    f.strs("systems"),
			Parts:      f.strs("parts"),
		}
	case EventDiscoveryQuery:
		return DiscoveryQuery{Part: f.str("part", "part_id"), Skill: f.str("skill"), Query: f.str("query")}
	case EventDiscoveryResult:
		return DiscoveryResult{
			Part:           f.str("part", "part_id"),
			Skill:          f.str("skill"),
			SuppliersFound: f.int("suppliers_found"),
			Agents:         f.agents(),
		}
	case EventPartMissing:
		return PartMissing{
			PartID:   f.str("part_id", "part"),
			PartName: f.str("part_name"),
			Skill:    f.str("skill_query", "skill"),
			System:   f.str("system"),
			Quantity: f.int("quantity"),
			Reason:   f.str("reason"),
		}
	case EventAgentFactsFetched:
		return AgentFactsFetched{AgentID: f.str("supplier_id", "agent_id"), AgentName: f.str("agent_name")}
	case EventVerificationResult:
		return VerificationResult{
			AgentID:     f.str("supplier_id", "agent_id"),
			AgentName:   f.str("agent_name"),
			Framework:   f.str("framework"),
			Passed:      f.bool("passed"),
			Reliability: f.optNum("reliability", "reliability_score"),
			ESG:         f.str("esg", "esg_rating"),
			Reasons:     f.strs("reasons"),
		}
	case EventRFQSent, EventQuoteReceived, EventCounterSent, EventRevisedReceived, EventAcceptSent, EventRejectSent:
		n := Negotiation{
			Kind:         e.EventType,
			RFQID:        f.str("rfq_id"),
			Part:         f.str("part", "part_id"),
			Supplier:     f.str("supplier", "supplier_id", "to_agent", "from_agent"),
			SupplierName: f.str("supplier_name"),
			Quantity:     f.int("quantity"),
			LeadTimeDays: f.num("lead_time_days"),
			Framework:    f.str("framework"),
			OrderID:      f.str("order_id"),
			Reason:       f.str("reason"),
		}
		switch e.EventType {
		case EventQuoteReceived:
			n.Price = f.num("unit_price", "price")
		case EventCounterSent:
			n.Price = f.num("target_price", "price")
		case EventRevisedReceived:
			n.Price = f.num("revised_price", "unit_price", "price")
		case EventAcceptSent:
			n.Price = f.num("price", "unit_price")
		}
		return n
	case EventRFQRejected, EventQuoteGenerated, EventCounterEvaluated, EventOrderConfirmed:
		return SupplierEcho{
			Kind:    e.EventType,
			Part:    f.str("part", "part_id"),
			OrderID: f.str("order_id"),
			Price:   f.num("unit_price", "revised_price", "price", "total_price"),
			Detail:  f.str("reason", "decision", "status", "message"),
		}
	case EventOrderPlaced:
		return OrderPlaced{
			OrderID:      f.str("order_id"),
			Part:         f.str("part", "part_id"),
			Supplier:     f.str("supplier", "supplier_id", "to_agent"),
			SupplierName: f.str("supplier_name"),
			Quantity:     f.int("quantity"),
			UnitPrice:    f.num("unit_price"),
			TotalPrice:   f.num("total_price"),
			Currency:     f.str("currency"),
			LeadTimeDays: f.num("lead_time_days"),
		}
	case EventLogisticsRequested:
		return LogisticsRequested{
			OrderID:  f.str("order_id"),
			Part:     f.str("part", "part_id"),
			Pickup:   f.str("pickup"),
			Delivery: f.str("delivery"),
			Cargo:    f.str("cargo"),
		}
	case EventShipPlanReceived:
		return ShipPlanReceived{
			OrderID:          f.str("order_id"),
			From:             f.str("from_agent", "logistics_agent"),
			Route:            f.strs("route"),
			TransitDays:      f.num("transit_time_days", "transit_days"),
			Cost:             f.num("cost"),
			EstimatedArrival: f.str("estimated_arrival"),
			Pickup:           f.str("pickup"),
			Delivery:         f.str("delivery"),
		}
	case EventCascadeComplete:
		return CascadeComplete{
			TotalCost:        f.num("total_cost"),
			PartsOrdered:     f.int("parts_ordered"),
			SuppliersEngaged: f.int("suppliers_engaged"),
			MissingCount:     f.int("missing_parts_count"),
			Report:           f.raw("report"),
		}
	}
	return UnknownPayload{}
}

// fields is a lenient view over a JSON object payload.
type fields map[string]json.RawMessage

func fieldsOf(data json.RawMessage) fields {
	var f fields
	if len(data) == 0 {
		return f
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	return f
}

// str returns the first key holding a non-empty string or number.
func (f fields) str(keys ...string) string {
	for _, k := range keys {
		raw, ok := f[k]
		if !ok {
			continue
		}
		var v any
		if json.Unmarshal(raw, &v) != nil {
			continue
		}
		switch x := v.(type) {
		case string:
			if s := strings.TrimSpace(x); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
	}
	return ""
}

// optNum returns the first key holding a number or numeric string.
func (f fields) optNum(keys ...string) *float64 {
	for _, k := range keys {
		raw, ok := f[k]
		if !ok {
			continue
		}
		var v any
		if json.Unmarshal(raw, &v) != nil {
			continue
		}
		switch x := v.(type) {
		case float64:
			if !math.IsNaN(x) && !math.IsInf(x, 0) {
				return &x
			}
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
				return &n
			}
		}
	}
	return nil
}

func (f fields) num(keys ...string) float64 {
	if n := f.optNum(keys...); n != nil {
		return *n
	}
	return 0
}

func (f fields) int(keys ...string) int {
	return int(math.Round(f.num(keys...)))
}

func (f fields) bool(key string) bool {
	var b bool
	if raw, ok := f[key]; ok {
		_ = json.Unmarshal(raw, &b)
	}
	return b
}

// strs returns a string list; list items may be strings or objects carrying
// a "name"/"id"/"location" field (route legs are sometimes objects).
func (f fields) strs(key string) []string {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	var out []string
	for _, it := range items {
		var s string
		if json.Unmarshal(it, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj fields
		if json.Unmarshal(it, &obj) == nil {
			if s := obj.str("name", "id", "location", "city"); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func (f fields) raw(key string) json.RawMessage {
	raw, ok := f[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	return raw
}

// agents reads DISCOVERY_RESULT candidates from "agents", falling back to
// the bare "supplier_ids" list.
func (f fields) agents() []DiscoveredAgent {
	var out []DiscoveredAgent
	if raw, ok := f["agents"]; ok {
		var items []fields
		if json.Unmarshal(raw, &items) == nil {
			for _, it := range items {
				id := it.str("agent_id", "id")
				if id == "" {
					continue
				}
				out = append(out, DiscoveredAgent{
					AgentID:   id,
					AgentName: it.str("agent_name", "name"),
					Score:     it.num("combined_score", "relevance_score", "score"),
				})
			}
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, id := range f.strs("supplier_ids") {
		out = append(out, DiscoveredAgent{AgentID: id})
	}
	return out
}

// orUnknown substitutes the placeholder for an empty identifier.
func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
