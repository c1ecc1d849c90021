package shapley

// CombinationSpace is the deduplicated set of coalitions that occur as a
// prefix (empty and full prefixes included) of some sampled permutation.
// Coalitions are kept in first-seen order so iteration is deterministic.
type CombinationSpace struct {
	players    int
	coalitions []Coalition
	index      map[string]int
}

// ExtractCombinationSpace walks every permutation, growing a running
// coalition one player at a time, and records each prefix once.
func ExtractCombinationSpace(sample Sample) (*CombinationSpace, error) {
	if sample.Len() == 0 {
		return nil, invalidInput("permutation sample is empty")
	}

	n := sample.Players
	// (N+1)*K prefixes at most, 2^N distinct sets at most.
	capHint := (n + 1) * sample.Len()
	if n < 20 && capHint > 1<<n {
		capHint = 1 << n
	}

	space := &CombinationSpace{
		players:    n,
		coalitions: make([]Coalition, 0, capHint),
		index:      make(map[string]int, capHint),
	}

	for _, perm := range sample.Permutations {
		running := emptyCoalition(n)
		space.add(running)
		for _, idx := range perm {
			running = running.With(idx)
			space.add(running)
		}
	}
	return space, nil
}

func (s *CombinationSpace) add(c Coalition) {
	key := c.Key()
	if _, seen := s.index[key]; seen {
		return
	}
	s.index[key] = len(s.coalitions)
	s.coalitions = append(s.coalitions, c)
}

// Len returns the number of distinct coalitions.
func (s *CombinationSpace) Len() int { return len(s.coalitions) }

// Coalitions returns the coalitions in first-seen order.
func (s *CombinationSpace) Coalitions() []Coalition {
	out := make([]Coalition, len(s.coalitions))
	copy(out, s.coalitions)
	return out
}

// Contains reports whether c is one of the sampled prefixes.
func (s *CombinationSpace) Contains(c Coalition) bool {
	_, ok := s.index[c.Key()]
	return ok
}
