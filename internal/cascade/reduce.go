package cascade

import (
	"fmt"
	"sort"
	"strings"
)

// Reduce folds events into a State.
//
// AGENT_REGISTERED events always pass. Every other event passes only when
// runID is non-empty and matches the event's effective run id, so known
// agents are visible before a run starts without leaking other runs.
// Events repeating an already folded (timestamp, agent_id, event_type) key
// are skipped.
func Reduce(events []AgentEvent, runID string) *State {
	r := newReducer()
	seen := make(map[EventKey]struct{}, len(events))
	for _, e := range events {
		if !Passes(e, runID) {
			continue
		}
		k := e.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		r.apply(e)
	}
	return r.finish(runID)
}

// Passes reports whether e survives the run filter for runID.
func Passes(e AgentEvent, runID string) bool {
	if e.EventType == EventAgentRegistered {
		return true
	}
	return runID != "" && e.EffectiveRunID() == runID
}

type reducer struct {
	nodes        []*GraphNode
	nodeIdx      map[string]int
	edges        []GraphEdge
	messages     []Message
	timeline     timelineBuilder
	orders       []OrderDetail
	shipPlans    []ShipPlanDetail
	negotiations []*NegotiationRound
	negIdx       map[string]int
	missing      []MissingPart
	orderCost    float64
	shipCost     float64
	orderParts   map[string]string
	complete     *CascadeComplete
	completedAt  string
	intent       string
	bomParts     []string
}

func newReducer() *reducer {
	return &reducer{
		nodeIdx:    make(map[string]int),
		negIdx:     make(map[string]int),
		orderParts: make(map[string]string),
	}
}

func (r *reducer) apply(e AgentEvent) {
	p := Decode(e)
	if e.EventType != EventAgentRegistered {
		r.messages = append(r.messages, Message{
			Seq:       len(r.messages),
			Timestamp: e.Timestamp,
			AgentID:   e.AgentID,
			EventType: e.EventType,
			Summary:   describe(e.EventType, p),
		})
	}
	r.timeline.observe(e.EventType, e.Timestamp)

	ts := e.Timestamp
	switch p := p.(type) {
	case Registered:
		if e.AgentID == "" {
			return
		}
		n := r.ensureNode(e.AgentID, "")
		if p.AgentName != "" {
			n.Label = p.AgentName
		}
		if p.Framework != "" {
			n.Framework = p.Framework
		}
		n.Skills = mergeSkills(n.Skills, p.Skills)
		n.Role = inferRole(n.ID, n.Skills)

	case IntentReceived:
		r.intent = p.Intent

	case BOMGenerated:
		r.bomParts = p.Parts

	case DiscoveryQuery:
		label := firstNonEmpty(p.Skill, p.Part, "query")
		r.addEdge(r.procurementFor(e), r.indexID(), label, EdgeDiscovery, true)

	case DiscoveryResult:
		idx := r.indexID()
		found := p.SuppliersFound
		if found == 0 {
			found = len(p.Agents)
		}
		r.addEdge(idx, r.procurementFor(e), fmt.Sprintf("%d found", found), EdgeDiscovery, false)
		label := firstNonEmpty(p.Part, p.Skill, "match")
		for _, a := range p.Agents {
			n := r.ensureNode(a.AgentID, "")
			if a.AgentName != "" && n.Label == n.ID {
				n.Label = a.AgentName
			}
			r.addEdge(idx, n.ID, label, EdgeDiscovery, false)
		}

	case PartMissing:
		r.missing = append(r.missing, MissingPart{
			PartID:   orUnknown(p.PartID),
			PartName: orUnknown(firstNonEmpty(p.PartName, p.PartID)),
			Skill:    p.Skill,
			System:   p.System,
			Quantity: p.Quantity,
			Reason:   p.Reason,
		})

	case AgentFactsFetched:
		if p.AgentID == "" {
			return
		}
		n := r.ensureNode(p.AgentID, RoleSupplier)
		if p.AgentName != "" && n.Label == n.ID {
			n.Label = p.AgentName
		}

	case VerificationResult:
		if p.AgentID == "" {
			return
		}
		n := r.ensureNode(p.AgentID, RoleSupplier)
		if p.Reliability != nil {
			v := *p.Reliability
			n.ReliabilityScore = &v
		}
		if p.ESG != "" {
			n.ESGRating = p.ESG
		}
		if p.AgentName != "" && n.Label == n.ID {
			n.Label = p.AgentName
		}

	case Negotiation:
		r.applyNegotiation(e, p)

	case SupplierEcho:
		if p.Kind == EventOrderConfirmed && e.AgentID != "" {
			sup := r.ensureNode(e.AgentID, RoleSupplier)
			r.addEdge(sup.ID, r.procurementID(), "contract "+orUnknown(p.OrderID), EdgeContract, false)
		}

	case OrderPlaced:
		o := OrderDetail{
			OrderID:      orUnknown(p.OrderID),
			Part:         orUnknown(p.Part),
			Supplier:     orUnknown(p.Supplier),
			SupplierName: firstNonEmpty(p.SupplierName, p.Supplier, Unknown),
			Quantity:     p.Quantity,
			UnitPrice:    p.UnitPrice,
			TotalPrice:   p.TotalPrice,
			Currency:     firstNonEmpty(p.Currency, "EUR"),
			LeadTimeDays: p.LeadTimeDays,
			PlacedAt:     ts,
		}
		if o.TotalPrice == 0 {
			o.TotalPrice = o.UnitPrice * float64(o.Quantity)
		}
		r.orders = append(r.orders, o)
		r.orderCost += o.TotalPrice
		if p.OrderID != "" {
			r.orderParts[p.OrderID] = o.Part
		}
		if p.Supplier == "" {
			return
		}
		sup := r.ensureNode(p.Supplier, RoleSupplier)
		r.addEdge(r.procurementFor(e), sup.ID, fmt.Sprintf("%s %s", o.Part, money(o.TotalPrice)), EdgeOrder, true)
		if i, ok := r.negIdx[negotiationKey(o.Part, sup.ID)]; ok {
			n := r.negotiations[i]
			n.Status = NegotiationAccepted
			if n.FinalPrice == 0 {
				n.FinalPrice = o.UnitPrice
			}
			n.UpdatedAt = ts
		}

	case LogisticsRequested:
		if p.OrderID != "" && p.Part != "" {
			r.orderParts[p.OrderID] = p.Part
		}
		label := "ship " + orUnknown(firstNonEmpty(p.Part, p.OrderID))
		r.addEdge(r.procurementFor(e), r.logisticsID(), label, EdgeLogistics, true)

	case ShipPlanReceived:
		from := p.From
		if from == "" {
			from = r.logisticsID()
		}
		from = r.ensureNode(from, RoleLogistics).ID
		route := p.Route
		if len(route) == 0 && p.Pickup != "" && p.Delivery != "" {
			route = []string{p.Pickup, p.Delivery}
		}
		sp := ShipPlanDetail{
			OrderID:          orUnknown(p.OrderID),
			Part:             r.orderParts[p.OrderID],
			Agent:            from,
			Route:            route,
			TransitDays:      p.TransitDays,
			Cost:             p.Cost,
			EstimatedArrival: p.EstimatedArrival,
			Pickup:           p.Pickup,
			Delivery:         p.Delivery,
		}
		r.shipPlans = append(r.shipPlans, sp)
		r.shipCost += sp.Cost
		label := fmt.Sprintf("plan %s %gd", orUnknown(firstNonEmpty(sp.Part, p.OrderID)), sp.TransitDays)
		r.addEdge(from, r.procurementFor(e), label, EdgeLogistics, false)

	case CascadeComplete:
		if r.complete == nil {
			r.completedAt = ts
		}
		c := p
		r.complete = &c
	}
}

func (r *reducer) applyNegotiation(e AgentEvent, p Negotiation) {
	proc := r.procurementFor(e)
	part := orUnknown(p.Part)
	supID := orUnknown(p.Supplier)
	if p.Supplier != "" {
		supID = r.ensureNode(p.Supplier, RoleSupplier).ID
	}

	n := r.negotiation(part, supID, e.Timestamp)
	if p.SupplierName != "" {
		n.SupplierName = p.SupplierName
	}
	if p.RFQID != "" {
		n.RFQID = p.RFQID
	}
	if p.Quantity > 0 {
		n.Quantity = p.Quantity
	}
	if p.LeadTimeDays > 0 {
		n.LeadTimeDays = p.LeadTimeDays
	}
	n.UpdatedAt = e.Timestamp

	var (
		src, dst = proc, supID
		label    string
		et       EdgeType
		animated bool
	)
	switch p.Kind {
	case EventRFQSent:
		et, animated = EdgeRFQ, true
		label = "RFQ " + part
		if p.Quantity > 0 {
			label = fmt.Sprintf("RFQ %s x%d", part, p.Quantity)
		}
	case EventQuoteReceived:
		src, dst = supID, proc
		et = EdgeQuote
		label = fmt.Sprintf("%s %s", part, money(p.Price))
		n.QuotedPrice = p.Price
		n.Status = NegotiationQuoted
		n.Rounds++
	case EventCounterSent:
		et, animated = EdgeCounter, true
		label = fmt.Sprintf("%s counter %s", part, money(p.Price))
		n.TargetPrice = p.Price
		n.Status = NegotiationCountered
	case EventRevisedReceived:
		src, dst = supID, proc
		et = EdgeQuote
		label = fmt.Sprintf("%s revised %s", part, money(p.Price))
		n.RevisedPrice = p.Price
		n.Status = NegotiationRevised
		n.Rounds++
	case EventAcceptSent:
		et = EdgeAccept
		label = fmt.Sprintf("%s accept %s", part, money(p.Price))
		n.FinalPrice = firstPositive(p.Price, n.RevisedPrice, n.QuotedPrice)
		n.Status = NegotiationAccepted
	case EventRejectSent:
		et = EdgeCounter
		label = "reject " + part
		n.Status = NegotiationRejected
		n.Reason = p.Reason
	}
	if p.Supplier != "" {
		r.addEdge(src, dst, label, et, animated)
	}
}

func (r *reducer) finish(runID string) *State {
	canonicalize(r)

	s := &State{
		RunID:        runID,
		Nodes:        make([]GraphNode, 0, len(r.nodes)),
		Edges:        nonNil(r.edges),
		Messages:     nonNil(r.messages),
		Timeline:     r.timeline.build(),
		Orders:       nonNil(r.orders),
		ShipPlans:    nonNil(r.shipPlans),
		Negotiations: make([]NegotiationRound, 0, len(r.negotiations)),
		MissingParts: nonNil(r.missing),
		Intent:       r.intent,
		BOMParts:     r.bomParts,
	}
	for _, n := range r.nodes {
		s.Nodes = append(s.Nodes, *n)
	}
	for _, n := range r.negotiations {
		s.Negotiations = append(s.Negotiations, *n)
	}
	s.AggregatedEdges = Aggregate(s.Edges)

	parts := make(map[string]struct{})
	suppliers := make(map[string]struct{})
	for _, o := range s.Orders {
		parts[o.Part] = struct{}{}
		if o.Supplier != Unknown {
			suppliers[o.Supplier] = struct{}{}
		}
	}
	s.Totals = Totals{
		TotalCost:        r.orderCost,
		ShippingCost:     r.shipCost,
		PartsCount:       len(parts),
		SuppliersEngaged: len(suppliers),
		OrdersPlaced:     len(s.Orders),
		ShippingPlans:    len(s.ShipPlans),
		MissingCount:     len(s.MissingParts),
	}

	if c := r.complete; c != nil {
		s.Complete = true
		s.Report = c.Report
		if c.TotalCost > 0 {
			s.Totals.TotalCost = c.TotalCost
		}
		if c.PartsOrdered > 0 {
			s.Totals.PartsCount = c.PartsOrdered
		}
		if c.SuppliersEngaged > 0 {
			s.Totals.SuppliersEngaged = c.SuppliersEngaged
		}
		if c.MissingCount > 0 {
			s.Totals.MissingCount = c.MissingCount
		}
		s.ExecutionPlan = &ExecutionPlan{
			Totals:       s.Totals,
			Orders:       s.Orders,
			ShipPlans:    s.ShipPlans,
			Negotiations: s.Negotiations,
			MissingParts: s.MissingParts,
			Report:       s.Report,
			CompletedAt:  r.completedAt,
		}
	}
	return s
}

// ensureNode returns the node for id, creating it when absent. A new node
// takes the role inferred from its id; hint overrides an inference that
// only fell through to supplier.
func (r *reducer) ensureNode(id string, hint Role) *GraphNode {
	if i, ok := r.nodeIdx[id]; ok {
		return r.nodes[i]
	}
	role := inferRole(id, nil)
	if role == RoleSupplier && hint != "" {
		role = hint
	}
	n := &GraphNode{ID: id, Label: id, Role: role}
	r.nodeIdx[id] = len(r.nodes)
	r.nodes = append(r.nodes, n)
	return n
}

func (r *reducer) addEdge(src, dst, label string, t EdgeType, animated bool) {
	if src == "" || dst == "" {
		return
	}
	r.ensureNode(src, "")
	r.ensureNode(dst, "")
	r.edges = append(r.edges, GraphEdge{
		ID:       fmt.Sprintf("e%d", len(r.edges)),
		Source:   src,
		Target:   dst,
		Label:    label,
		EdgeType: t,
		Animated: animated,
	})
}

func (r *reducer) firstWithRole(role Role) string {
	for _, n := range r.nodes {
		if n.Role == role {
			return n.ID
		}
	}
	return ""
}

func (r *reducer) procurementID() string {
	if id := r.firstWithRole(RoleProcurement); id != "" {
		return id
	}
	return r.ensureNode(ProcurementAgentID, RoleProcurement).ID
}

// procurementFor returns the procurement-side agent of an event emitted by
// the procurement agent.
func (r *reducer) procurementFor(e AgentEvent) string {
	if e.AgentID != "" && inferRole(e.AgentID, nil) == RoleProcurement {
		return e.AgentID
	}
	if i, ok := r.nodeIdx[e.AgentID]; ok && r.nodes[i].Role == RoleProcurement {
		return e.AgentID
	}
	return r.procurementID()
}

func (r *reducer) indexID() string {
	if id := r.firstWithRole(RoleIndex); id != "" {
		return id
	}
	n := r.ensureNode(IndexAgentID, RoleIndex)
	if n.Label == n.ID {
		n.Label = "NANDA Index"
	}
	return n.ID
}

func (r *reducer) logisticsID() string {
	if id := r.firstWithRole(RoleLogistics); id != "" {
		return id
	}
	return r.ensureNode(LogisticsAgentID, RoleLogistics).ID
}

func negotiationKey(part, supplier string) string {
	return part + ":" + supplier
}

func (r *reducer) negotiation(part, supplier, ts string) *NegotiationRound {
	k := negotiationKey(part, supplier)
	if i, ok := r.negIdx[k]; ok {
		return r.negotiations[i]
	}
	n := &NegotiationRound{
		Part:      part,
		Supplier:  supplier,
		Status:    NegotiationRFQSent,
		StartedAt: ts,
	}
	r.negIdx[k] = len(r.negotiations)
	r.negotiations = append(r.negotiations, n)
	return n
}

// inferRole guesses an agent's role from its id, then its skills.
func inferRole(id string, skills []string) Role {
	if role, ok := roleOf(id); ok {
		return role
	}
	for _, s := range skills {
		if role, ok := roleOf(s); ok {
			return role
		}
	}
	return RoleSupplier
}

func roleOf(s string) (Role, bool) {
	l := strings.ToLower(s)
	switch {
	case strings.Contains(l, "procurement"):
		return RoleProcurement, true
	case strings.Contains(l, "logistic"), strings.Contains(l, "shipping"):
		return RoleLogistics, true
	case strings.Contains(l, "index"), strings.Contains(l, "registry"), strings.Contains(l, "resolver"):
		return RoleIndex, true
	}
	return "", false
}

func mergeSkills(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// describe renders a one-line summary of an event for the message log.
func describe(t EventType, p Payload) string {
	switch p := p.(type) {
	case IntentReceived:
		return "intent: " + orUnknown(p.Intent)
	case BOMGenerated:
		return fmt.Sprintf("BOM with %d parts", firstPositiveInt(p.TotalParts, len(p.Parts)))
	case DiscoveryQuery:
		return "discover " + orUnknown(firstNonEmpty(p.Skill, p.Part))
	case DiscoveryResult:
		return fmt.Sprintf("%s: %d suppliers found", orUnknown(firstNonEmpty(p.Part, p.Skill)), firstPositiveInt(p.SuppliersFound, len(p.Agents)))
	case PartMissing:
		return "missing " + orUnknown(firstNonEmpty(p.PartName, p.PartID))
	case AgentFactsFetched:
		return "facts for " + orUnknown(firstNonEmpty(p.AgentName, p.AgentID))
	case VerificationResult:
		verdict := "failed"
		if p.Passed {
			verdict = "passed"
		}
		return fmt.Sprintf("%s verification %s", orUnknown(firstNonEmpty(p.AgentName, p.AgentID)), verdict)
	case Negotiation:
		sup := orUnknown(firstNonEmpty(p.SupplierName, p.Supplier))
		part := orUnknown(p.Part)
		switch p.Kind {
		case EventRFQSent:
			return fmt.Sprintf("RFQ %s x%d to %s", part, p.Quantity, sup)
		case EventQuoteReceived:
			return fmt.Sprintf("quote %s from %s at %s", part, sup, money(p.Price))
		case EventCounterSent:
			return fmt.Sprintf("counter %s to %s at %s", part, sup, money(p.Price))
		case EventRevisedReceived:
			return fmt.Sprintf("revised %s from %s at %s", part, sup, money(p.Price))
		case EventAcceptSent:
			return fmt.Sprintf("accept %s from %s at %s", part, sup, money(p.Price))
		case EventRejectSent:
			return fmt.Sprintf("reject %s from %s", part, sup)
		}
	case SupplierEcho:
		s := t.Short() + " " + orUnknown(firstNonEmpty(p.Part, p.OrderID))
		if p.Detail != "" {
			s += " (" + p.Detail + ")"
		}
		return s
	case OrderPlaced:
		return fmt.Sprintf("order %s: %s from %s, %s", orUnknown(p.OrderID), orUnknown(p.Part),
			orUnknown(firstNonEmpty(p.SupplierName, p.Supplier)), money(firstPositive(p.TotalPrice, p.UnitPrice*float64(p.Quantity))))
	case LogisticsRequested:
		return fmt.Sprintf("ship %s: %s → %s", orUnknown(firstNonEmpty(p.Part, p.OrderID)), orUnknown(p.Pickup), orUnknown(p.Delivery))
	case ShipPlanReceived:
		return fmt.Sprintf("ship plan %s: %g days, %s", orUnknown(p.OrderID), p.TransitDays, money(p.Cost))
	case CascadeComplete:
		return fmt.Sprintf("cascade complete: %s, %d parts", money(p.TotalCost), p.PartsOrdered)
	}
	return t.Short()
}

func money(v float64) string {
	return fmt.Sprintf("€%.2f", v)
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

func firstPositive(vs ...float64) float64 {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveInt(vs ...int) int {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return 0
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
