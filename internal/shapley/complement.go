package shapley

// Lesion pairs a coalition with its complement: the players the objective
// function sees as lesioned when the coalition is intact.
type Lesion[P comparable] struct {
	Key        string
	Coalition  Coalition
	Complement []P
}

// DeriveComplements maps every coalition of the space to its complement in
// canonical player order. The empty coalition lesions everyone; the full
// coalition lesions nobody. Distinct coalitions always get distinct
// complements.
func DeriveComplements[P comparable](space *CombinationSpace, ps *PlayerSet[P]) []Lesion[P] {
	lesions := make([]Lesion[P], len(space.coalitions))
	for i, c := range space.coalitions {
		lesions[i] = Lesion[P]{
			Key:        c.Key(),
			Coalition:  c,
			Complement: complementOf(c, ps),
		}
	}
	return lesions
}

func complementOf[P comparable](c Coalition, ps *PlayerSet[P]) []P {
	out := make([]P, 0, ps.Len()-c.Size())
	for i, p := range ps.order {
		if !c.Has(i) {
			out = append(out, p)
		}
	}
	return out
}
