// Package saga runs a sequence of side-effecting steps and undoes the completed
// ones in reverse order when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
)

type Action func(ctx context.Context) error

// Step is one unit of work. Compensate may be nil for steps with nothing to undo.
type Step struct {
	Name       string
	Run        Action
	Compensate Action
}

// StepError reports the step that failed and any compensation that failed while unwinding.
type StepError struct {
	Step               string
	Err                error
	CompensationErrors []error
}

func (e *StepError) Error() string {
	if len(e.CompensationErrors) == 0 {
		return fmt.Sprintf("saga step %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("saga step %s: %v (compensation failed: %v)", e.Step, e.Err, errors.Join(e.CompensationErrors...))
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Saga struct {
	steps []Step
}

func New(steps ...Step) *Saga {
	return &Saga{steps: steps}
}

func (s *Saga) Add(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Execute runs the steps in order. When step N fails, the compensations of
// steps N-1..1 run in reverse. A step's own compensation is registered before
// it runs but is only invoked for steps that completed.
func (s *Saga) Execute(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))
	for _, step := range s.steps {
		if err := step.Run(ctx); err != nil {
			return &StepError{Step: step.Name, Err: err, CompensationErrors: compensate(ctx, completed)}
		}
		completed = append(completed, step)
	}
	return nil
}

func compensate(ctx context.Context, completed []Step) []error {
	var errs []error
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			continue
		}
		if err := step.Compensate(context.WithoutCancel(ctx)); err != nil {
			errs = append(errs, fmt.Errorf("compensate %s: %w", step.Name, err))
		}
	}
	return errs
}
