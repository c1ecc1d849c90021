package shapley

// PlayerSet is the fixed roster of a run. The order given to NewPlayerSet is
// the canonical order used for complements and Shapley table columns.
type PlayerSet[P comparable] struct {
	order []P
	index map[P]int
}

// NewPlayerSet validates the roster: it must be non-empty and free of
// duplicate identities.
func NewPlayerSet[P comparable](players []P) (*PlayerSet[P], error) {
	if len(players) == 0 {
		return nil, invalidInput("player set is empty")
	}

	ps := &PlayerSet[P]{
		order: make([]P, len(players)),
		index: make(map[P]int, len(players)),
	}
	for i, p := range players {
		if prev, dup := ps.index[p]; dup {
			return nil, invalidInput("duplicate player %v at positions %d and %d", p, prev, i)
		}
		ps.index[p] = i
		ps.order[i] = p
	}
	return ps, nil
}

// Len returns the number of players.
func (ps *PlayerSet[P]) Len() int { return len(ps.order) }

// Index returns the canonical position of p.
func (ps *PlayerSet[P]) Index(p P) (int, bool) {
	i, ok := ps.index[p]
	return i, ok
}

// At returns the player at canonical position i.
func (ps *PlayerSet[P]) At(i int) P { return ps.order[i] }

// Players returns a copy of the canonical order.
func (ps *PlayerSet[P]) Players() []P {
	out := make([]P, len(ps.order))
	copy(out, ps.order)
	return out
}

// resolve maps canonical indices back to players.
func (ps *PlayerSet[P]) resolve(indices []int) []P {
	out := make([]P, len(indices))
	for i, idx := range indices {
		out[i] = ps.order[idx]
	}
	return out
}

// coalitionOf builds the coalition holding the given players. Unknown players
// are reported as invalid input.
func (ps *PlayerSet[P]) coalitionOf(members []P) (Coalition, error) {
	c := emptyCoalition(len(ps.order))
	for _, p := range members {
		i, ok := ps.index[p]
		if !ok {
			return Coalition{}, invalidInput("unknown player %v", p)
		}
		c.words[i/wordBits] |= 1 << (uint(i) % wordBits)
	}
	return c, nil
}
