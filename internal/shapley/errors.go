package shapley

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds surfaced by Estimate. Callers match them with errors.Is; the
// concrete ObjectiveError and InternalConsistencyError types carry detail.
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrObjective           = errors.New("objective function failed")
	ErrInternalConsistency = errors.New("internal consistency violation")
)

func invalidInput(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}

// ObjectiveError reports a failed objective call together with the coalition
// whose complement was being evaluated. The run is aborted when one occurs.
type ObjectiveError[P comparable] struct {
	Coalition []P
	Lesioned  []P
	Err       error
}

func (e *ObjectiveError[P]) Error() string {
	return fmt.Sprintf("objective failed for coalition %v (lesioned %v): %v", e.Coalition, e.Lesioned, e.Err)
}

func (e *ObjectiveError[P]) Unwrap() error { return e.Err }

func (e *ObjectiveError[P]) Is(target error) bool { return target == ErrObjective }

// InternalConsistencyError means the combination space and the contribution
// table disagree. It is never recoverable.
type InternalConsistencyError struct {
	Permutation int // -1 when raised outside aggregation
	Coalition   string
	Detail      string
}

func (e *InternalConsistencyError) Error() string {
	if e.Permutation >= 0 {
		return fmt.Sprintf("internal consistency: permutation %d, coalition %s: %s", e.Permutation, e.Coalition, e.Detail)
	}
	return fmt.Sprintf("internal consistency: coalition %s: %s", e.Coalition, e.Detail)
}

func (e *InternalConsistencyError) Is(target error) bool { return target == ErrInternalConsistency }
