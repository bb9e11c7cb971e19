package cascade

import "encoding/json"

// Role is the part an agent plays in a cascade.
type Role string

const (
	RoleProcurement Role = "procurement"
	RoleSupplier    Role = "supplier"
	RoleLogistics   Role = "logistics"
	RoleIndex       Role = "index"
)

// EdgeType classifies a GraphEdge.
type EdgeType string

const (
	EdgeDiscovery    EdgeType = "discovery"
	EdgeRFQ          EdgeType = "rfq"
	EdgeQuote        EdgeType = "quote"
	EdgeCounter      EdgeType = "counter"
	EdgeAccept       EdgeType = "accept"
	EdgeOrder        EdgeType = "order"
	EdgeLogistics    EdgeType = "logistics"
	EdgeContract     EdgeType = "contract"
	EdgeRoute        EdgeType = "route"
	EdgeRouteExpress EdgeType = "route-express"
)

// EdgeTypes lists every edge type in display order.
var EdgeTypes = []EdgeType{
	EdgeDiscovery, EdgeRFQ, EdgeQuote, EdgeCounter, EdgeAccept,
	EdgeOrder, EdgeLogistics, EdgeContract, EdgeRoute, EdgeRouteExpress,
}

// Well-known agent ids used when an event does not name its counterpart.
const (
	ProcurementAgentID = "procurement-agent"
	LogisticsAgentID   = "logistics-agent"
	IndexAgentID       = "nanda-index"
)

type GraphNode struct {
	ID               string   `json:"id"`
	Label            string   `json:"label"`
	Role             Role     `json:"role"`
	Framework        string   `json:"framework,omitempty"`
	Skills           []string `json:"skills,omitempty"`
	ReliabilityScore *float64 `json:"reliability_score,omitempty"`
	ESGRating        string   `json:"esg_rating,omitempty"`
}

type GraphEdge struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Label    string   `json:"label"`
	EdgeType EdgeType `json:"edge_type"`
	Animated bool     `json:"animated,omitempty"`
}

// AggregatedEdge rolls up every GraphEdge between one ordered pair.
type AggregatedEdge struct {
	ID            string           `json:"id"`
	Source        string           `json:"source"`
	Target        string           `json:"target"`
	Counts        map[EdgeType]int `json:"counts"`
	TotalMessages int              `json:"total_messages"`
}

// Message is one entry in the cascade message log.
type Message struct {
	Seq       int       `json:"seq"`
	Timestamp string    `json:"timestamp"`
	AgentID   string    `json:"agent_id"`
	EventType EventType `json:"event_type"`
	Summary   string    `json:"summary"`
}

type OrderDetail struct {
	OrderID      string  `json:"order_id"`
	Part         string  `json:"part"`
	Supplier     string  `json:"supplier"`
	SupplierName string  `json:"supplier_name"`
	Quantity     int     `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	TotalPrice   float64 `json:"total_price"`
	Currency     string  `json:"currency"`
	LeadTimeDays float64 `json:"lead_time_days"`
	PlacedAt     string  `json:"placed_at,omitempty"`
}

type ShipPlanDetail struct {
	OrderID          string   `json:"order_id"`
	Part             string   `json:"part,omitempty"`
	Agent            string   `json:"agent"`
	Route            []string `json:"route"`
	TransitDays      float64  `json:"transit_time_days"`
	Cost             float64  `json:"cost"`
	EstimatedArrival string   `json:"estimated_arrival,omitempty"`
	Pickup           string   `json:"pickup,omitempty"`
	Delivery         string   `json:"delivery,omitempty"`
}

// NegotiationStatus is the latest step reached by a NegotiationRound.
type NegotiationStatus string

const (
	NegotiationRFQSent   NegotiationStatus = "rfq_sent"
	NegotiationQuoted    NegotiationStatus = "quoted"
	NegotiationCountered NegotiationStatus = "countered"
	NegotiationRevised   NegotiationStatus = "revised"
	NegotiationAccepted  NegotiationStatus = "accepted"
	NegotiationRejected  NegotiationStatus = "rejected"
)

// NegotiationRound tracks the RFQ exchange for one (part, supplier) pair.
type NegotiationRound struct {
	Part         string            `json:"part"`
	Supplier     string            `json:"supplier"`
	SupplierName string            `json:"supplier_name,omitempty"`
	RFQID        string            `json:"rfq_id,omitempty"`
	Quantity     int               `json:"quantity"`
	QuotedPrice  float64           `json:"quoted_price,omitempty"`
	TargetPrice  float64           `json:"target_price,omitempty"`
	RevisedPrice float64           `json:"revised_price,omitempty"`
	FinalPrice   float64           `json:"final_price,omitempty"`
	LeadTimeDays float64           `json:"lead_time_days,omitempty"`
	Rounds       int               `json:"rounds"`
	Status       NegotiationStatus `json:"status"`
	Reason       string            `json:"reason,omitempty"`
	StartedAt    string            `json:"started_at,omitempty"`
	UpdatedAt    string            `json:"updated_at,omitempty"`
}

// Quoted reports whether the supplier ever put a price on the part.
func (n NegotiationRound) Quoted() bool {
	return n.QuotedPrice > 0 || n.RevisedPrice > 0 || n.FinalPrice > 0 ||
		n.Status == NegotiationAccepted
}

type MissingPart struct {
	PartID   string `json:"part_id"`
	PartName string `json:"part_name"`
	Skill    string `json:"skill,omitempty"`
	System   string `json:"system,omitempty"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason,omitempty"`
}

// Totals are the running counters of a cascade.
type Totals struct {
	TotalCost        float64 `json:"total_cost"`
	ShippingCost     float64 `json:"shipping_cost"`
	PartsCount       int     `json:"parts_count"`
	SuppliersEngaged int     `json:"suppliers_engaged"`
	OrdersPlaced     int     `json:"orders_placed"`
	ShippingPlans    int     `json:"shipping_plans"`
	MissingCount     int     `json:"missing_count"`
}

// ExecutionPlan is the summary materialized once a cascade completes.
type ExecutionPlan struct {
	Totals
	Orders       []OrderDetail      `json:"orders"`
	ShipPlans    []ShipPlanDetail   `json:"ship_plans"`
	Negotiations []NegotiationRound `json:"negotiations"`
	MissingParts []MissingPart      `json:"missing_parts"`
	Report       json.RawMessage    `json:"report,omitempty"`
	CompletedAt  string             `json:"completed_at,omitempty"`
}

// State is everything derived from one event list. It is built by Reduce
// and must not be modified afterwards.
type State struct {
	RunID           string             `json:"run_id,omitempty"`
	Nodes           []GraphNode        `json:"nodes"`
	Edges           []GraphEdge        `json:"edges"`
	AggregatedEdges []AggregatedEdge   `json:"aggregated_edges"`
	Messages        []Message          `json:"messages"`
	Timeline        []TimelinePhase    `json:"timeline"`
	ExecutionPlan   *ExecutionPlan     `json:"execution_plan"`
	Orders          []OrderDetail      `json:"orders"`
	ShipPlans       []ShipPlanDetail   `json:"ship_plans"`
	Negotiations    []NegotiationRound `json:"negotiations"`
	MissingParts    []MissingPart      `json:"missing_parts"`
	Totals          Totals             `json:"totals"`
	Complete        bool               `json:"complete"`
	Intent          string             `json:"intent,omitempty"`
	BOMParts        []string           `json:"bom_parts,omitempty"`
	Report          json.RawMessage    `json:"report,omitempty"`
}

// Node returns the node with the given id.
func (s *State) Node(id string) (GraphNode, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return GraphNode{}, false
}

// ProcurementID returns the id of the first procurement node, or the
// well-known default when none registered.
func (s *State) ProcurementID() string {
	for _, n := range s.Nodes {
		if n.Role == RoleProcurement {
			return n.ID
		}
	}
	return ProcurementAgentID
}
