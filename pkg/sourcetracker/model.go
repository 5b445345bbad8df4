// Package sourcetracker models the bugzilla-style source tracker: the bug
// and event shapes carried on its webhook stream, and a typed client over
// its REST API.
package sourcetracker

// Bug is an immutable snapshot of a source-tracker record at one point in
// time. It is never mutated after construction; derived views (Tags,
// LinkedIssueKey) are computed on demand.
type Bug struct {
	ID         int
	Summary    string
	Status     string
	Resolution string
	AssignedTo string
	Whiteboard string
	SeeAlso    []string
	IsPrivate  bool
	Comment    *Comment
	Component  string
	Product    string
	Priority   string
	Severity   string
}

// Comment is the embedded comment payload carried on a comment_create event.
type Comment struct {
	ID        int
	Text      string
	Author    string
	IsPrivate bool
}

// WithSeeAlso returns a copy of the bug with SeeAlso replaced. Bugs are
// immutable snapshots; callers that need to reason about a refetched bug
// construct a new value rather than mutate this one.
func (b Bug) WithSeeAlso(seeAlso []string) Bug {
	b.SeeAlso = append([]string(nil), seeAlso...)
	return b
}
