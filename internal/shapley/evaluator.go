package shapley

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Objective scores the system with the given players lesioned. It must be a
// pure function of its input and safe to call from several goroutines.
type Objective[P comparable] func(ctx context.Context, lesioned []P) (float64, error)

// Pure adapts an infallible function to an Objective.
func Pure[P comparable](f func(lesioned []P) float64) Objective[P] {
	return func(_ context.Context, lesioned []P) (float64, error) {
		return f(lesioned), nil
	}
}

// Mode selects how objective calls are scheduled.
type Mode int

const (
	Sequential Mode = iota
	Pooled
)

func (m Mode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Pooled:
		return "pooled"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// AllUnits sizes the worker pool to GOMAXPROCS.
const AllUnits = -1

// Parallelism configures the evaluator. PoolSize is ignored in Sequential
// mode; in Pooled mode 0 and AllUnits both mean "all execution units".
type Parallelism struct {
	Mode     Mode
	PoolSize int
}

func (p Parallelism) validate() error {
	switch p.Mode {
	case Sequential:
		return nil
	case Pooled:
		if p.PoolSize < AllUnits {
			return invalidInput("pool size must be positive or AllUnits, got %d", p.PoolSize)
		}
		return nil
	default:
		return invalidInput("unknown execution mode %d", int(p.Mode))
	}
}

// Workers resolves the effective number of concurrent objective calls.
func (p Parallelism) Workers() int {
	if p.Mode == Sequential {
		return 1
	}
	if p.PoolSize == AllUnits || p.PoolSize == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return p.PoolSize
}

// Evaluator calls the objective once per distinct coalition and collects the
// results into a ContributionTable.
type Evaluator[P comparable] struct {
	objective   Objective[P]
	parallelism Parallelism
	onEvaluated func(done, total int)

	calls atomic.Int64
	done  atomic.Int64
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption[P comparable] func(*Evaluator[P])

// WithProgress registers a callback invoked after every completed objective
// call. In pooled mode it is called from worker goroutines.
func WithProgress[P comparable](fn func(done, total int)) EvaluatorOption[P] {
	return func(e *Evaluator[P]) {
		e.onEvaluated = fn
	}
}

// NewEvaluator builds an evaluator for one run.
func NewEvaluator[P comparable](objective Objective[P], parallelism Parallelism, opts ...EvaluatorOption[P]) *Evaluator[P] {
	e := &Evaluator[P]{
		objective:   objective,
		parallelism: parallelism,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Calls returns how many times the objective has been invoked.
func (e *Evaluator[P]) Calls() int { return int(e.calls.Load()) }

// Evaluate fills a ContributionTable for the given lesions. The first
// objective failure aborts the whole evaluation.
func (e *Evaluator[P]) Evaluate(ctx context.Context, ps *PlayerSet[P], lesions []Lesion[P]) (*ContributionTable[P], error) {
	if e.objective == nil {
		return nil, invalidInput("objective function is nil")
	}
	if err := e.parallelism.validate(); err != nil {
		return nil, err
	}

	table := newContributionTable(ps, lesions)

	var err error
	if e.parallelism.Mode == Pooled {
		err = e.evaluatePooled(ctx, ps, lesions, table)
	} else {
		err = e.evaluateSequential(ctx, ps, lesions, table)
	}
	if err != nil {
		return nil, err
	}

	if err := table.complete(); err != nil {
		return nil, err
	}
	return table, nil
}

func (e *Evaluator[P]) evaluateSequential(ctx context.Context, ps *PlayerSet[P], lesions []Lesion[P], table *ContributionTable[P]) error {
	for _, l := range lesions {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "evaluation cancelled")
		}
		v, err := e.call(ctx, ps, l)
		if err != nil {
			return err
		}
		if err := table.insert(l.Key, v); err != nil {
			return err
		}
		e.progress(len(lesions))
	}
	return nil
}

type outcome struct {
	key   string
	value float64
}

func (e *Evaluator[P]) evaluatePooled(ctx context.Context, ps *PlayerSet[P], lesions []Lesion[P], table *ContributionTable[P]) error {
	// Sized so no worker ever blocks on send; results are drained after Wait.
	results := make(chan outcome, len(lesions))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism.Workers())

	for _, l := range lesions {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			v, err := e.call(gCtx, ps, l)
			if err != nil {
				return err
			}
			results <- outcome{key: l.Key, value: v}
			e.progress(len(lesions))
			return nil
		})
	}

	err := g.Wait()
	close(results)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "evaluation cancelled")
	}

	// Association is by coalition key; arrival order carries no meaning.
	for r := range results {
		if err := table.insert(r.key, r.value); err != nil {
			return err
		}
	}
	return nil
}

// call invokes the objective once, turning errors and panics into an
// ObjectiveError that names the coalition.
func (e *Evaluator[P]) call(ctx context.Context, ps *PlayerSet[P], l Lesion[P]) (v float64, err error) {
	e.calls.Add(1)

	defer func() {
		if r := recover(); r != nil {
			err = e.objectiveError(ps, l, fmt.Errorf("panic: %v", r))
		}
	}()

	// The objective receives its own copy so it cannot alter the table.
	lesioned := make([]P, len(l.Complement))
	copy(lesioned, l.Complement)

	v, err = e.objective(ctx, lesioned)
	if err != nil {
		// An objective that gives up because the run was cancelled has not failed.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, errors.Wrap(ctxErr, "evaluation cancelled")
		}
		return 0, e.objectiveError(ps, l, err)
	}
	return v, nil
}

func (e *Evaluator[P]) objectiveError(ps *PlayerSet[P], l Lesion[P], err error) error {
	return &ObjectiveError[P]{
		Coalition: ps.resolve(l.Coalition.Members()),
		Lesioned:  l.Complement,
		Err:       err,
	}
}

func (e *Evaluator[P]) progress(total int) {
	done := e.done.Add(1)
	if e.onEvaluated != nil {
		e.onEvaluated(int(done), total)
	}
}
