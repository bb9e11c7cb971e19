package cascade

// Merge appends the events of incoming whose Key is not already present in
// existing, preserving arrival order. Merging the same batch twice is a
// no-op. existing is never modified.
func Merge(existing, incoming []AgentEvent) []AgentEvent {
	seen := make(map[EventKey]struct{}, len(existing)+len(incoming))
	out := make([]AgentEvent, 0, len(existing)+len(incoming))
	for _, e := range existing {
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	for _, e := range incoming {
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
