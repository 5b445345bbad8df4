package steps_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tombee/trackerbridge/internal/action"
	"github.com/tombee/trackerbridge/internal/action/steps"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
)

func TestPipeline_RunsStepsInOrderAndAccumulatesResponses(t *testing.T) {
	var order []string
	stepA := func(_ context.Context, ac action.Context, _ action.Params, _ steps.Clients) (action.Context, []steps.Response, error) {
		order = append(order, "a")
		return ac, []steps.Response{{Step: "a"}}, nil
	}
	stepB := func(_ context.Context, ac action.Context, _ action.Params, _ steps.Clients) (action.Context, []steps.Response, error) {
		order = append(order, "b")
		return ac, []steps.Response{{Step: "b"}}, nil
	}

	resolved, err := steps.NewPipelineFromSteps([]steps.Step{stepA, stepB})
	require.NoError(t, err)

	ac := action.New(sourcetracker.Bug{ID: 1}, sourcetracker.Event{}, nil)
	final, err := resolved.Run(context.Background(), ac, action.DefaultParams(), steps.Clients{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, order)
	require.Len(t, final.Responses, 2)
}

func TestPipeline_AbortsOnFirstErrorButKeepsResponses(t *testing.T) {
	failure := errors.New("boom")
	stepA := func(_ context.Context, ac action.Context, _ action.Params, _ steps.Clients) (action.Context, []steps.Response, error) {
		return ac, []steps.Response{{Step: "a"}}, nil
	}
	stepB := func(_ context.Context, ac action.Context, _ action.Params, _ steps.Clients) (action.Context, []steps.Response, error) {
		return ac, nil, failure
	}
	stepC := func(_ context.Context, ac action.Context, _ action.Params, _ steps.Clients) (action.Context, []steps.Response, error) {
		t.Fatal("step c should not run after step b fails")
		return ac, nil, nil
	}

	resolved, err := steps.NewPipelineFromSteps([]steps.Step{stepA, stepB, stepC})
	require.NoError(t, err)

	ac := action.New(sourcetracker.Bug{ID: 1}, sourcetracker.Event{}, nil)
	final, err := resolved.Run(context.Background(), ac, action.DefaultParams(), steps.Clients{})
	require.ErrorIs(t, err, failure)
	require.Len(t, final.Responses, 1)
	require.Equal(t, "a", final.Responses[0].Step)
}

func TestNewPipeline_UnknownStepName(t *testing.T) {
	_, err := steps.NewPipeline([]string{"not_a_real_step"})
	require.Error(t, err)
}

func TestNewPipeline_KnownSteps(t *testing.T) {
	_, err := steps.NewPipeline([]string{"create_issue", "add_link_to_bugzilla"})
	require.NoError(t, err)
}
