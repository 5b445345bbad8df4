package steps

import (
	"context"

	"github.com/tombee/trackerbridge/internal/action"
)

// Pipeline is an ordered, already-resolved list of steps for one operation
// group ("new", "existing", "comment").
type Pipeline struct {
	steps []Step
}

// NewPipeline resolves names against Registry and returns a runnable
// Pipeline, or an error if any name is unknown.
func NewPipeline(names []string) (Pipeline, error) {
	resolved, err := Resolve(names)
	if err != nil {
		return Pipeline{}, err
	}
	return Pipeline{steps: resolved}, nil
}

// NewPipelineFromSteps builds a Pipeline directly from resolved step
// functions, bypassing name lookup. Used by callers (and tests) that already
// hold Step values.
func NewPipelineFromSteps(steps []Step) (Pipeline, error) {
	return Pipeline{steps: steps}, nil
}

// Run executes each step in order, threading the returned action.Context
// into the next step. It is single-threaded and performs no internal retry:
// the first error aborts the remaining steps and is returned alongside the
// Context and the Responses accumulated from every step that completed
// before the failure plus any the failing step itself returned, so a caller
// can log partial progress. Idempotency of
// individual steps is what makes a whole-pipeline replay on the next retry
// pass safe, not any rollback performed here.
func (p Pipeline) Run(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, error) {
	for _, step := range p.steps {
		next, responses, err := step(ctx, ac, params, clients)
		ac = next.AppendResponses(responses...)
		if err != nil {
			return ac, err
		}
	}
	return ac, nil
}
