package cascade

import (
	"strings"
	"unicode"
)

// CanonicalID folds case, surrounding whitespace and separator variants of
// an agent id, so "Supplier_D", "supplier d" and "supplier-d" compare equal.
func CanonicalID(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	return strings.Join(parts, "-")
}

// canonicalize merges supplier nodes whose ids share a CanonicalID. The
// survivor is the first variant carrying a framework (an explicit
// registration), else the first seen. Every reference to a discarded id is
// rewritten to the survivor.
func canonicalize(r *reducer) {
	groups := make(map[string][]int)
	var order []string
	for i, n := range r.nodes {
		if n.Role != RoleSupplier {
			continue
		}
		k := CanonicalID(n.ID)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	alias := make(map[string]string)
	drop := make(map[int]bool)
	for _, k := range order {
		idx := groups[k]
		if len(idx) < 2 {
			continue
		}
		survivor := idx[0]
		for _, i := range idx {
			if r.nodes[i].Framework != "" {
				survivor = i
				break
			}
		}
		keep := r.nodes[survivor]
		for _, i := range idx {
			if i == survivor {
				continue
			}
			mergeNode(keep, r.nodes[i])
			alias[r.nodes[i].ID] = keep.ID
			drop[i] = true
		}
	}
	if len(alias) == 0 {
		return
	}

	nodes := r.nodes[:0:0]
	r.nodeIdx = make(map[string]int, len(r.nodes)-len(drop))
	for i, n := range r.nodes {
		if drop[i] {
			continue
		}
		r.nodeIdx[n.ID] = len(nodes)
		nodes = append(nodes, n)
	}
	r.nodes = nodes

	canon := func(id string) string {
		if to, ok := alias[id]; ok {
			return to
		}
		return id
	}
	for i := range r.edges {
		r.edges[i].Source = canon(r.edges[i].Source)
		r.edges[i].Target = canon(r.edges[i].Target)
	}
	for i := range r.orders {
		r.orders[i].Supplier = canon(r.orders[i].Supplier)
	}
	for i := range r.shipPlans {
		r.shipPlans[i].Agent = canon(r.shipPlans[i].Agent)
	}
	for i := range r.messages {
		r.messages[i].AgentID = canon(r.messages[i].AgentID)
	}

	negs := r.negotiations[:0:0]
	r.negIdx = make(map[string]int, len(r.negotiations))
	for _, n := range r.negotiations {
		n.Supplier = canon(n.Supplier)
		k := negotiationKey(n.Part, n.Supplier)
		if i, ok := r.negIdx[k]; ok {
			mergeNegotiation(negs[i], n)
			continue
		}
		r.negIdx[k] = len(negs)
		negs = append(negs, n)
	}
	r.negotiations = negs
}

func mergeNode(dst, src *GraphNode) {
	if dst.Label == dst.ID && src.Label != src.ID {
		dst.Label = src.Label
	}
	dst.Skills = mergeSkills(dst.Skills, src.Skills)
	if dst.ReliabilityScore == nil && src.ReliabilityScore != nil {
		v := *src.ReliabilityScore
		dst.ReliabilityScore = &v
	}
	if dst.ESGRating == "" {
		dst.ESGRating = src.ESGRating
	}
}

// mergeNegotiation folds a later round for the same key into dst. Prices
// from src win when set; status follows src since it was created later.
func mergeNegotiation(dst, src *NegotiationRound) {
	if src.SupplierName != "" && dst.SupplierName == "" {
		dst.SupplierName = src.SupplierName
	}
	if src.RFQID != "" && dst.RFQID == "" {
		dst.RFQID = src.RFQID
	}
	if src.Quantity > 0 {
		dst.Quantity = src.Quantity
	}
	if src.QuotedPrice > 0 {
		dst.QuotedPrice = src.QuotedPrice
	}
	if src.TargetPrice > 0 {
		dst.TargetPrice = src.TargetPrice
	}
	if src.RevisedPrice > 0 {
		dst.RevisedPrice = src.RevisedPrice
	}
	if src.FinalPrice > 0 {
		dst.FinalPrice = src.FinalPrice
	}
	if src.LeadTimeDays > 0 {
		dst.LeadTimeDays = src.LeadTimeDays
	}
	if src.Reason != "" {
		dst.Reason = src.Reason
	}
	dst.Rounds += src.Rounds
	if dst.Status != NegotiationAccepted {
		dst.Status = src.Status
	}
	if src.UpdatedAt != "" {
		dst.UpdatedAt = src.UpdatedAt
	}
}
