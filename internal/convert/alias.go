package convert

import "sort"

// resolveChain follows ref through the forward map until a non-alias terminal
// is reached. A visited set guards against cycles: the source language makes
// alias graphs DAGs, so a cycle signals malformed input, and the chain then
// resolves to the last value before repetition.
func resolveChain(ref string, forward map[string]string) string {
	seen := make(map[string]bool)
	cur := ref
	for {
		next, ok := forward[cur]
		if !ok || seen[cur] {
			return cur
		}
		seen[cur] = true
		cur = next
	}
}

// invertToBases collapses every forward entry and groups aliases by their
// resolved base identifier. Alias order is deterministic (sorted keys) and
// duplicates are removed.
func invertToBases(forward map[string]string) map[string][]string {
	keys := make([]string, 0, len(forward))
	for k := range forward {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bases := make(map[string][]string)
	for _, alias := range keys {
		base := resolveChain(forward[alias], forward)
		if containsString(bases[base], alias) {
			continue
		}
		bases[base] = append(bases[base], alias)
	}
	return bases
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
