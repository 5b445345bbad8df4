package steps

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tombee/trackerbridge/internal/action"
	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
)

const maxDescriptionLength = 32767

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func changed(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

// CreateIssue fetches the bug's first comment as description and creates
// the target issue. The new issue key is threaded into ctx.Jira.Issue.
func CreateIssue(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error) {
	comments, err := clients.Source.GetComments(ctx, ac.Bug.ID)
	if err != nil {
		return ac, nil, err
	}

	description := ""
	if len(comments) > 0 {
		description = truncate(comments[0].Text, maxDescriptionLength)
	}

	fields := map[string]any{
		"summary":     ac.Bug.Summary,
		"issuetype":   map[string]string{"name": "Bug"},
		"description": description,
		"project":     map[string]string{"key": params.JiraProjectKey},
	}
	if params.SyncWhiteboardLabels {
		fields["labels"] = ac.Bug.Tags()
	}

	result, err := clients.Target.CreateIssue(ctx, fields)
	if err != nil {
		return ac, nil, err
	}
	if result.Failed() {
		return ac, nil, &trackererrors.CreateError{
			ProjectKey:    params.JiraProjectKey,
			Errors:        result.Errors,
			ErrorMessages: result.ErrorMessages,
		}
	}

	next := ac.WithJiraIssue(result.Key).WithJiraProject(params.JiraProjectKey)
	resp := Response{Step: "create_issue", Detail: map[string]any{"issue_key": result.Key}}
	return next, []Response{resp}, nil
}

// AddLinkToBugzilla records a remote link on the target issue pointing back
// to the source bug.
func AddLinkToBugzilla(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error) {
	bugURL := fmt.Sprintf("%s/show_bug.cgi?id=%d", clients.Source.BaseURL(), ac.Bug.ID)
	if err := clients.Target.AddRemoteLink(ctx, ac.Jira.Issue, bugURL, clients.FaviconURL); err != nil {
		return ac, nil, err
	}
	resp := Response{Step: "add_link_to_bugzilla", Detail: map[string]any{"issue_key": ac.Jira.Issue, "url": bugURL}}
	return ac, []Response{resp}, nil
}

// AddLinkToJira records the target issue's URL in the source bug's see_also
// field.
func AddLinkToJira(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error) {
	issueURL := clients.Target.IssueURL(ac.Jira.Issue)
	if err := clients.Source.UpdateBug(ctx, ac.Bug.ID, sourcetracker.BugUpdate{SeeAlsoAdd: issueURL}); err != nil {
		return ac, nil, err
	}
	resp := Response{Step: "add_link_to_jira", Detail: map[string]any{"issue_key": ac.Jira.Issue, "url": issueURL}}
	return ac, []Response{resp}, nil
}

// MaybeDeleteDuplicate re-fetches the source bug and, if it is already
// linked to a *different* target issue than the one this pipeline just
// created, deletes the just-created issue to resolve the race between two
// concurrent create events for the same bug. A same-key link is a no-op.
func MaybeDeleteDuplicate(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error) {
	refetched, err := clients.Source.GetBug(ctx, ac.Bug.ID)
	if err != nil {
		return ac, nil, err
	}

	existingKey, found := refetched.LinkedIssueKey(clients.TargetHost)
	if !found || existingKey == ac.Jira.Issue {
		return ac, nil, nil
	}

	if err := clients.Target.DeleteIssue(ctx, ac.Jira.Issue); err != nil {
		return ac, nil, err
	}
	resp := Response{Step: "maybe_delete_duplicate", Detail: map[string]any{"deleted_issue_key": ac.Jira.Issue, "kept_issue_key": existingKey}}
	return ac, []Response{resp}, nil
}

// UpdateIssueSummary pushes the bug's summary (and labels, when enabled)
// onto the linked target issue.
func UpdateIssueSummary(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error) {
	fields := map[string]any{"summary": ac.Bug.Summary}
	if params.SyncWhiteboardLabels {
		fields["labels"] = ac.Bug.Tags()
	}
	if err := clients.Target.UpdateIssueFields(ctx, ac.Jira.Issue, fields); err != nil {
		return ac, nil, err
	}
	resp := Response{Step: "update_issue_summary", Detail: map[string]any{"issue_key": ac.Jira.Issue}}
	return ac, []Response{resp}, nil
}

// CreateComment posts the bug's embedded comment to the linked issue, if
// one is present on this event.
func CreateComment(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error) {
	if ac.Bug.Comment == nil || ac.Jira.Issue == "" {
		return ac, nil, nil
	}

	body := fmt.Sprintf("*(%s)* commented:\n{quote}%s{quote}", ac.Bug.Comment.Author, ac.Bug.Comment.Text)
	if err := clients.Target.AddComment(ctx, ac.Jira.Issue, body); err != nil {
		return ac, nil, err
	}
	resp := Response{Step: "create_comment", Detail: map[string]any{"issue_key": ac.Jira.Issue}}
	return ac, []Response{resp}, nil
}

// AddJiraCommentsForChanges posts one comment per changed field, rendering
// the removed/added values as JSON for a human-readable audit trail.
func AddJiraCommentsForChanges(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error) {
	if ac.Jira.Issue == "" || len(ac.Event.Changes) == 0 {
		return ac, nil, nil
	}

	var responses []Response
	for _, change := range ac.Event.Changes {
		rendered, err := json.Marshal(map[string]string{
			"field":   change.Field,
			"removed": change.Removed,
			"added":   change.Added,
		})
		if err != nil {
			return ac, responses, trackererrors.Wrap(err, "rendering change for comment")
		}

		if err := clients.Target.AddComment(ctx, ac.Jira.Issue, string(rendered)); err != nil {
			return ac, responses, err
		}
		responses = append(responses, Response{Step: "add_jira_comments_for_changes", Detail: map[string]any{"field": change.Field}})
	}
	return ac, responses, nil
}

// MaybeAssignJiraUser resolves the bug's assignee to a target-tracker
// account and assigns the linked issue's assignee. On update, an unassigned
// bug or a lookup that fails to resolve to exactly one account degrades to
// clearing the assignee rather than leaving a stale one in place; on create,
// both cases take no action at all (there is nothing to clear yet).
func MaybeAssignJiraUser(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error) {
	if ac.Operation == action.OpUpdate && !changed(ac.ChangedFields(), "assigned_to") {
		return ac, nil, nil
	}

	if ac.Bug.AssignedTo == "" {
		if ac.Operation != action.OpUpdate {
			return ac, nil, nil
		}
		if err := clients.Target.AssignUser(ctx, ac.Jira.Issue, ""); err != nil {
			return ac, nil, err
		}
		return ac, []Response{{Step: "maybe_assign_jira_user", Detail: map[string]any{"assignee": nil}}}, nil
	}

	users, err := clients.Target.FindUser(ctx, ac.Bug.AssignedTo)
	if err != nil || len(users) != 1 {
		clients.logger().Warn("assignee lookup did not resolve to exactly one user",
			"query", ac.Bug.AssignedTo, "matches", len(users), "operation", ac.Operation)
		if ac.Operation != action.OpUpdate {
			return ac, nil, nil
		}
		if clearErr := clients.Target.AssignUser(ctx, ac.Jira.Issue, ""); clearErr != nil {
			return ac, nil, clearErr
		}
		return ac, []Response{{Step: "maybe_assign_jira_user", Detail: map[string]any{"assignee": nil, "reason": "ambiguous_or_failed_lookup"}}}, nil
	}

	if err := clients.Target.AssignUser(ctx, ac.Jira.Issue, users[0].AccountID); err != nil {
		return ac, nil, err
	}
	return ac, []Response{{Step: "maybe_assign_jira_user", Detail: map[string]any{"assignee": users[0].AccountID}}}, nil
}

// MaybeUpdateIssueStatus maps the bug's resolution (or status, when no
// resolution is set) onto the configured target status, applying it on
// create unconditionally and on update only when status or resolution
// changed.
func MaybeUpdateIssueStatus(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error) {
	fields := ac.ChangedFields()
	if ac.Operation == action.OpUpdate && !(changed(fields, "status") || changed(fields, "resolution")) {
		return ac, nil, nil
	}

	key := ac.Bug.Resolution
	if key == "" {
		key = ac.Bug.Status
	}
	target, ok := params.StatusMap[key]
	if !ok {
		return ac, nil, nil
	}

	if err := clients.Target.SetStatus(ctx, ac.Jira.Issue, target); err != nil {
		return ac, nil, err
	}
	return ac, []Response{{Step: "maybe_update_issue_status", Detail: map[string]any{"status": target}}}, nil
}

// MaybeUpdateIssueResolution maps the bug's resolution onto the configured
// target resolution, applying on create unconditionally and on update only
// when resolution changed.
func MaybeUpdateIssueResolution(ctx context.Context, ac action.Context, params action.Params, clients Clients) (action.Context, []Response, error) {
	if ac.Operation == action.OpUpdate && !changed(ac.ChangedFields(), "resolution") {
		return ac, nil, nil
	}

	target, ok := params.ResolutionMap[ac.Bug.Resolution]
	if !ok {
		return ac, nil, nil
	}

	if err := clients.Target.SetResolution(ctx, ac.Jira.Issue, target); err != nil {
		return ac, nil, err
	}
	return ac, []Response{{Step: "maybe_update_issue_resolution", Detail: map[string]any{"resolution": target}}}, nil
}
