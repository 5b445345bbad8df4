package sourcetracker

import (
	"strings"
	"time"
)

// EventTarget is the kind of record an event describes.
type EventTarget string

const (
	TargetBug     EventTarget = "bug"
	TargetComment EventTarget = "comment"
)

// Change is a single field mutation carried on a modify event.
type Change struct {
	Field   string
	Removed string
	Added   string
}

// Event describes one webhook notification's cause: what happened, when,
// to whom, and which fields changed.
type Event struct {
	Action     string
	Time       time.Time
	UserLogin  string
	Changes    []Change
	Target     EventTarget
	RoutingKey string
}

// ChangedFields unions the field names from Changes with any field name
// embedded in RoutingKey after a colon (e.g. "bug.modify:status" yields
// "status" in addition to whatever Changes lists).
func (e Event) ChangedFields() []string {
	set := make(map[string]struct{}, len(e.Changes)+1)
	for _, c := range e.Changes {
		set[c.Field] = struct{}{}
	}
	if idx := strings.LastIndex(e.RoutingKey, ":"); idx >= 0 {
		field := strings.TrimSpace(e.RoutingKey[idx+1:])
		if field != "" {
			set[field] = struct{}{}
		}
	}

	fields := make([]string, 0, len(set))
	for f := range set {
		fields = append(fields, f)
	}
	return fields
}

// HasChangedField reports whether field is present in ChangedFields().
func (e Event) HasChangedField(field string) bool {
	for _, f := range e.ChangedFields() {
		if f == field {
			return true
		}
	}
	return false
}

// WebhookRequest is the envelope the source tracker posts to the intake
// endpoint. The pair (Bug.ID, Event.Time) is the logical key for
// deduplication and ordering.
type WebhookRequest struct {
	WebhookID   int
	WebhookName string
	Bug         Bug
	Event       Event
}

// WithBug returns a copy of the request with Bug replaced, used when the
// runner re-fetches a private bug before classifying the request.
func (r WebhookRequest) WithBug(bug Bug) WebhookRequest {
	r.Bug = bug
	return r
}
