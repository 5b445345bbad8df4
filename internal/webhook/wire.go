package webhook

import (
	"encoding/json"
	"time"

	trackererrors "github.com/tombee/trackerbridge/pkg/errors"
	"github.com/tombee/trackerbridge/pkg/sourcetracker"
)

// wireRequest is the on-wire JSON envelope per spec.md §6:
// {webhook_id, webhook_name, bug:{...}, event:{action, time, user:{login},
// changes, target, routing_key}}.
type wireRequest struct {
	WebhookID   int       `json:"webhook_id"`
	WebhookName string    `json:"webhook_name"`
	Bug         wireBug   `json:"bug"`
	Event       wireEvent `json:"event"`
}

type wireBug struct {
	ID         int      `json:"id"`
	Summary    string   `json:"summary"`
	Status     string   `json:"status"`
	Resolution string   `json:"resolution"`
	AssignedTo string   `json:"assigned_to"`
	Whiteboard string   `json:"whiteboard"`
	SeeAlso    []string `json:"see_also"`
	IsPrivate  bool     `json:"is_private"`
	Comment    *wireComment `json:"comment,omitempty"`
	Component  string   `json:"component"`
	Product    string   `json:"product"`
	Priority   string   `json:"priority"`
	Severity   string   `json:"severity"`
}

type wireComment struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	IsPrivate bool   `json:"is_private"`
}

type wireChange struct {
	Field   string `json:"field"`
	Removed string `json:"removed"`
	Added   string `json:"added"`
}

type wireEvent struct {
	Action     string       `json:"action"`
	Time       time.Time    `json:"time"`
	User       wireUser     `json:"user"`
	Changes    []wireChange `json:"changes"`
	Target     string       `json:"target"`
	RoutingKey string       `json:"routing_key"`
}

type wireUser struct {
	Login string `json:"login"`
}

// decodeWireRequest parses and validates the minimal required shape of a
// webhook envelope, returning a domain sourcetracker.WebhookRequest.
func decodeWireRequest(body []byte) (sourcetracker.WebhookRequest, error) {
	var w wireRequest
	if err := json.Unmarshal(body, &w); err != nil {
		return sourcetracker.WebhookRequest{}, err
	}
	if w.Bug.ID == 0 {
		return sourcetracker.WebhookRequest{}, &trackererrors.ValidationError{
			Field:      "bug.id",
			Message:    "missing or zero",
			Suggestion: "every webhook envelope must carry a non-zero bug id",
		}
	}
	if w.Event.Action == "" {
		return sourcetracker.WebhookRequest{}, &trackererrors.ValidationError{
			Field:      "event.action",
			Message:    "missing",
			Suggestion: "every webhook envelope must name the event that triggered it",
		}
	}

	var comment *sourcetracker.Comment
	if w.Bug.Comment != nil {
		comment = &sourcetracker.Comment{
			ID:        w.Bug.Comment.ID,
			Text:      w.Bug.Comment.Text,
			Author:    w.Bug.Comment.Author,
			IsPrivate: w.Bug.Comment.IsPrivate,
		}
	}

	changes := make([]sourcetracker.Change, 0, len(w.Event.Changes))
	for _, c := range w.Event.Changes {
		changes = append(changes, sourcetracker.Change{Field: c.Field, Removed: c.Removed, Added: c.Added})
	}

	return sourcetracker.WebhookRequest{
		WebhookID:   w.WebhookID,
		WebhookName: w.WebhookName,
		Bug: sourcetracker.Bug{
			ID:         w.Bug.ID,
			Summary:    w.Bug.Summary,
			Status:     w.Bug.Status,
			Resolution: w.Bug.Resolution,
			AssignedTo: w.Bug.AssignedTo,
			Whiteboard: w.Bug.Whiteboard,
			SeeAlso:    w.Bug.SeeAlso,
			IsPrivate:  w.Bug.IsPrivate,
			Comment:    comment,
			Component:  w.Bug.Component,
			Product:    w.Bug.Product,
			Priority:   w.Bug.Priority,
			Severity:   w.Bug.Severity,
		},
		Event: sourcetracker.Event{
			Action:     w.Event.Action,
			Time:       w.Event.Time,
			UserLogin:  w.Event.User.Login,
			Changes:    changes,
			Target:     sourcetracker.EventTarget(w.Event.Target),
			RoutingKey: w.Event.RoutingKey,
		},
	}, nil
}
