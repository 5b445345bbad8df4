// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package runner classifies a webhook request against the action registry
// and invokes the matched step pipeline, counting processed and ignored
// requests.
package runner

import (
	"context"
	"log/slog"

	"github.com/tombee/trackerbridge/internal/action"
	"github.com/tombee/trackerbridge/internal/action/steps"
	"github.com/tombee/trackerbridge/internal/metrics"
	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
)

// Details describes the outcome of one Execute call, for logging and for
// the retry worker's bookkeeping.
type Details struct {
	Operation action.Operation
	JiraIssue string
	Responses []action.Response
}

// Runner ties together the action registry, the step library's clients, and
// the target-tracker host pattern used to recognize an already-linked issue.
type Runner struct {
	Registry   *action.Registry
	Clients    steps.Clients
	TargetHost string
	Logger     *slog.Logger
}

func (r Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Execute classifies request against the action registry and, if it
// resolves to a dispatching operation, runs that operation's step pipeline.
// handled reports whether a pipeline ran (true) or not (false). With
// handled == false, err is an *errors.IgnoreInvalidRequestError when the
// request was ignored, or the step-resolution error when the matched action
// names an unknown step. With handled == true, a non-nil err means the
// pipeline ran and failed partway; the caller is responsible for enqueueing
// the request for retry.
func (r Runner) Execute(ctx context.Context, request sourcetracker.WebhookRequest) (handled bool, details Details, err error) {
	bug := request.Bug

	if bug.IsPrivate {
		refetched, fetchErr := r.Clients.Source.GetBug(ctx, bug.ID)
		if fetchErr != nil {
			metrics.IgnoredTotal.Inc()
			return false, Details{}, &trackererrors.IgnoreInvalidRequestError{
				Reason: "failed to re-fetch private bug",
				Cause:  fetchErr,
			}
		}
		bug = refetched
	}

	_, matched, ok := r.Registry.LookupAction(bug.Tags())
	if !ok {
		metrics.IgnoredTotal.Inc()
		return false, Details{}, &trackererrors.IgnoreInvalidRequestError{
			Reason: "no action matched",
			Cause:  &trackererrors.ActionNotFoundError{Tags: bug.Tags()},
		}
	}

	if bug.IsPrivate && !matched.AllowPrivate {
		metrics.IgnoredTotal.Inc()
		return false, Details{}, &trackererrors.IgnoreInvalidRequestError{Reason: "private bug not allowed by matched action"}
	}

	ac := action.New(bug, request.Event, matched)
	linkedIssue, hasLink := bug.LinkedIssueKey(r.TargetHost)
	if hasLink {
		ac = ac.WithJiraIssue(linkedIssue).WithJiraProject(matched.JiraProjectKey)
	}

	var op action.Operation
	switch {
	case request.Event.Target == sourcetracker.TargetComment:
		op = action.OpComment
	case request.Event.Target == sourcetracker.TargetBug && !hasLink:
		op = action.OpCreate
	case request.Event.Target == sourcetracker.TargetBug && hasLink:
		op = action.OpUpdate
		ac = ac.WithChangedFields(request.Event.ChangedFields())
	default:
		metrics.IgnoredTotal.Inc()
		return false, Details{}, &trackererrors.IgnoreInvalidRequestError{Reason: "unclassifiable event"}
	}
	ac = ac.WithOperation(op)

	group, _ := op.Group()
	stepNames := action.StepsForGroup(matched, group)
	pipeline, err := steps.NewPipeline(stepNames)
	if err != nil {
		return false, Details{}, err
	}

	final, err := pipeline.Run(ctx, ac, matched.Parameters, r.Clients)
	if err != nil {
		r.logger().Warn("pipeline execution failed", "bug_id", bug.ID, "operation", string(op), "error", err)
		return true, Details{Operation: op, JiraIssue: final.Jira.Issue, Responses: final.Responses}, err
	}

	metrics.ProcessedTotal.Inc()
	return true, Details{Operation: op, JiraIssue: final.Jira.Issue, Responses: final.Responses}, nil
}
