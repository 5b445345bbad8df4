package action

import "github.com/tombee/trackerbridge/pkg/sourcetracker"

// Response is an opaque record a step returns to note what it did. The
// pipeline accumulates these; nothing downstream inspects their shape, they
// exist for logging and test assertions.
type Response struct {
	Step   string
	Detail map[string]any
}

// JiraRef names which target-tracker project an action targets and, once
// resolved, which issue the current bug is linked to.
type JiraRef struct {
	Project string
	Issue   string
}

// Context is the per-invocation record threaded through every step in a
// pipeline run. It is conceptually single-owner and immutable: each step
// receives a Context value and returns a new one via the With* builders
// below rather than mutating a shared pointer. It is never shared across
// concurrent requests.
type Context struct {
	Bug       sourcetracker.Bug
	Event     sourcetracker.Event
	Operation Operation
	Jira      JiraRef
	Action    *Action
	Extra     map[string]any
	Responses []Response
}

// New builds the initial Context for a webhook request, before operation
// classification.
func New(bug sourcetracker.Bug, event sourcetracker.Event, act *Action) Context {
	return Context{
		Bug:       bug,
		Event:     event,
		Operation: OpHandle,
		Action:    act,
		Extra:     map[string]any{},
	}
}

// WithOperation returns a copy of ctx with Operation replaced.
func (c Context) WithOperation(op Operation) Context {
	c.Operation = op
	return c
}

// WithJiraIssue returns a copy of ctx with the linked issue key set.
func (c Context) WithJiraIssue(issueKey string) Context {
	c.Jira.Issue = issueKey
	return c
}

// WithJiraProject returns a copy of ctx with the target project key set.
func (c Context) WithJiraProject(projectKey string) Context {
	c.Jira.Project = projectKey
	return c
}

// WithExtra returns a copy of ctx with key set in Extra. The underlying map
// is copied so earlier Context values sharing the original map are
// unaffected.
func (c Context) WithExtra(key string, value any) Context {
	next := make(map[string]any, len(c.Extra)+1)
	for k, v := range c.Extra {
		next[k] = v
	}
	next[key] = value
	c.Extra = next
	return c
}

// AppendResponses returns a copy of ctx with rs appended to Responses.
func (c Context) AppendResponses(rs ...Response) Context {
	c.Responses = append(append([]Response(nil), c.Responses...), rs...)
	return c
}

// ChangedFields is a convenience accessor pulling the event's changed field
// set into Extra's conventional key, used by update-path steps.
func (c Context) ChangedFields() []string {
	if v, ok := c.Extra["changed_fields"].([]string); ok {
		return v
	}
	return nil
}

// WithChangedFields stamps the event's changed fields into Extra under the
// conventional key the update steps read from.
func (c Context) WithChangedFields(fields []string) Context {
	return c.WithExtra("changed_fields", fields)
}
