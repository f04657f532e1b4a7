package eval

// rankOf returns the 1-based rank of the first relevant path in the ranked
// list, or 0 when none appears.
func rankOf(ranked, relevant []string) int {
	set := pathSet(relevant)
	for i, p := range ranked {
		if _, ok := set[p]; ok {
			return i + 1
		}
	}
	return 0
}

// recallAt returns the fraction of relevant paths found in the first k
// ranked results.
func recallAt(ranked, relevant []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	set := pathSet(relevant)
	found := 0
	for _, p := range ranked[:k] {
		if _, ok := set[p]; ok {
			found++
			delete(set, p)
		}
	}
	return float64(found) / float64(len(relevant))
}

func pathSet(paths []string) map[string]struct{} {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set
}
