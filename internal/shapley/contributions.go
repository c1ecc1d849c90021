package shapley

import "encoding/hex"

// Contribution is one evaluated coalition: the players kept intact, the
// players lesioned, and the objective value for that lesion.
type Contribution[P comparable] struct {
	Coalition []P     `json:"coalition"`
	Lesioned  []P     `json:"lesioned"`
	Value     float64 `json:"value"`
}

// ContributionTable maps each coalition of the combination space to its
// objective value. Slots are laid out in combination-space order and each
// slot is written exactly once, so the table reads the same whichever
// execution mode filled it.
//
// Member lists are resolved only when Entries is called; the table itself
// holds one float per coalition on top of the lesions it was built from.
type ContributionTable[P comparable] struct {
	players *PlayerSet[P]
	lesions []Lesion[P]
	values  []float64
	filled  []bool
	index   map[string]int
}

func newContributionTable[P comparable](ps *PlayerSet[P], lesions []Lesion[P]) *ContributionTable[P] {
	t := &ContributionTable[P]{
		players: ps,
		lesions: lesions,
		values:  make([]float64, len(lesions)),
		filled:  make([]bool, len(lesions)),
		index:   make(map[string]int, len(lesions)),
	}
	for i, l := range lesions {
		t.index[l.Key] = i
	}
	return t
}

// insert stores the value for key if the slot is still empty.
func (t *ContributionTable[P]) insert(key string, v float64) error {
	slot, ok := t.index[key]
	if !ok {
		return &InternalConsistencyError{Permutation: -1, Coalition: keyString(key), Detail: "result for a coalition outside the combination space"}
	}
	if t.filled[slot] {
		return &InternalConsistencyError{Permutation: -1, Coalition: keyString(key), Detail: "coalition evaluated twice"}
	}
	t.values[slot] = v
	t.filled[slot] = true
	return nil
}

// complete verifies every slot was written.
func (t *ContributionTable[P]) complete() error {
	for key, slot := range t.index {
		if !t.filled[slot] {
			return &InternalConsistencyError{Permutation: -1, Coalition: keyString(key), Detail: "coalition never evaluated"}
		}
	}
	return nil
}

func (t *ContributionTable[P]) value(c Coalition) (float64, bool) {
	slot, ok := t.index[c.Key()]
	if !ok || !t.filled[slot] {
		return 0, false
	}
	return t.values[slot], true
}

// Len returns the number of evaluated coalitions.
func (t *ContributionTable[P]) Len() int { return len(t.values) }

// Entries returns the table in combination-space order. Every call builds
// fresh slices owned by the caller.
func (t *ContributionTable[P]) Entries() []Contribution[P] {
	out := make([]Contribution[P], len(t.lesions))
	for i, l := range t.lesions {
		lesioned := make([]P, len(l.Complement))
		copy(lesioned, l.Complement)
		out[i] = Contribution[P]{
			Coalition: t.players.resolve(l.Coalition.Members()),
			Lesioned:  lesioned,
			Value:     t.values[i],
		}
	}
	return out
}

// Value looks up the objective value of the coalition holding exactly the
// given players.
func (t *ContributionTable[P]) Value(members ...P) (float64, bool) {
	c, err := t.players.coalitionOf(members)
	if err != nil {
		return 0, false
	}
	return t.value(c)
}

// LesionEffect looks up the objective value measured with exactly the given
// players lesioned and everyone else intact.
func (t *ContributionTable[P]) LesionEffect(lesioned ...P) (float64, bool) {
	removed, err := t.players.coalitionOf(lesioned)
	if err != nil {
		return 0, false
	}
	intact := emptyCoalition(t.players.Len())
	for i := 0; i < t.players.Len(); i++ {
		if !removed.Has(i) {
			intact = intact.With(i)
		}
	}
	return t.value(intact)
}

func keyString(key string) string {
	return hex.EncodeToString([]byte(key))
}
