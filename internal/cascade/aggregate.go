package cascade

import "sort"

// Aggregate collapses edges into one AggregatedEdge per ordered
// (source, target) pair. The result depends only on the multiset of edges
// and is sorted by source then target.
func Aggregate(edges []GraphEdge) []AggregatedEdge {
	byPair := make(map[[2]string]*AggregatedEdge)
	for _, e := range edges {
		k := [2]string{e.Source, e.Target}
		agg, ok := byPair[k]
		if !ok {
			agg = &AggregatedEdge{
				ID:     e.Source + "->" + e.Target,
				Source: e.Source,
				Target: e.Target,
				Counts: make(map[EdgeType]int),
			}
			byPair[k] = agg
		}
		agg.Counts[e.EdgeType]++
		agg.TotalMessages++
	}

	out := make([]AggregatedEdge, 0, len(byPair))
	for _, agg := range byPair {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// Dominant returns the edge type with the highest count, ties broken by
// EdgeTypes order.
func (a AggregatedEdge) Dominant() EdgeType {
	var best EdgeType
	n := 0
	for _, t := range EdgeTypes {
		if c := a.Counts[t]; c > n {
			best, n = t, c
		}
	}
	return best
}
