// Package steps implements the named, idempotent mutation steps that
// actions assemble into pipelines: create/update/comment issues on the
// target tracker and link the two trackers together.
package steps

import (
	"context"
	"log/slog"

	"github.com/tombee/trackerbridge/internal/action"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
	"github.com/tombee/trackerbridge/pkg/targettracker"
)

// Response is the step library's accumulated-record type; an alias onto
// action.Response so the pipeline can thread one type through both packages.
type Response = action.Response

// Clients bundles the tracker clients and supporting config a step needs,
// threaded through every Step call rather than captured in a closure so
// steps stay easy to test in isolation.
type Clients struct {
	Source sourcetracker.Client
	Target targettracker.Client

	// TargetHost is the hostname fragment used to recognize target-tracker
	// URLs in a bug's see_also list (LinkedIssueKey's host pattern).
	TargetHost string

	// FaviconURL is the source tracker's favicon, attached to remote links
	// created on the target issue.
	FaviconURL string

	Logger *slog.Logger
}

func (c Clients) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Step is the signature every step function satisfies: it receives the
// threaded Context and the action's resolved parameters, and returns the
// next Context plus any response records it produced. Steps never catch
// arbitrary errors; a returned error aborts the pipeline.
type Step func(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error)

// Registry maps configured step names to their implementations, the
// runtime counterpart to action.KnownStepNames.
var Registry = map[string]Step{
	"create_issue":                  CreateIssue,
	"add_link_to_bugzilla":          AddLinkToBugzilla,
	"add_link_to_jira":              AddLinkToJira,
	"maybe_delete_duplicate":        MaybeDeleteDuplicate,
	"update_issue_summary":          UpdateIssueSummary,
	"create_comment":                CreateComment,
	"add_jira_comments_for_changes": AddJiraCommentsForChanges,
	"maybe_assign_jira_user":        MaybeAssignJiraUser,
	"maybe_update_issue_status":     MaybeUpdateIssueStatus,
	"maybe_update_issue_resolution": MaybeUpdateIssueResolution,
}

// Resolve looks up the step functions for a list of configured step names.
// An unknown name here indicates the registry validated against a stale
// KnownStepNames table; it is a programmer error, not a runtime one.
func Resolve(names []string) ([]Step, error) {
	resolved := make([]Step, 0, len(names))
	for _, name := range names {
		fn, ok := Registry[name]
		if !ok {
			return nil, &unknownStepError{name: name}
		}
		resolved = append(resolved, fn)
	}
	return resolved, nil
}

type unknownStepError struct{ name string }

func (e *unknownStepError) Error() string {
	return "steps: unknown step name " + e.name
}
