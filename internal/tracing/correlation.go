// Package tracing provides correlation IDs for cross-process log
// correlation and setup of the global OpenTelemetry tracer provider. No
// pipeline or retry code in this module starts spans.
package tracing

import (
	"context"

	"github.com/google/uuid"
)

// CorrelationID identifies one webhook request (or retry pass) across the
// runner, the tracker clients, and any log lines emitted along the way.
type CorrelationID struct {
	value uuid.UUID
	set   bool
}

// NewCorrelationID generates a fresh, valid correlation ID.
func NewCorrelationID() CorrelationID {
	return CorrelationID{value: uuid.New(), set: true}
}

// ParseCorrelationID parses a correlation ID from its string form. An
// invalid or empty string yields the zero value (IsValid() == false).
func ParseCorrelationID(s string) CorrelationID {
	id, err := uuid.Parse(s)
	if err != nil {
		return CorrelationID{}
	}
	return CorrelationID{value: id, set: true}
}

// IsValid reports whether this correlation ID was actually set, as opposed
// to being the zero value.
func (c CorrelationID) IsValid() bool {
	return c.set
}

// String renders the correlation ID, or "" if unset.
func (c CorrelationID) String() string {
	if !c.set {
		return ""
	}
	return c.value.String()
}

type correlationIDKey struct{}

// ToContext attaches a correlation ID to ctx.
func ToContext(ctx context.Context, id CorrelationID) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// FromContextOrEmpty returns the correlation ID attached to ctx, or the zero
// value (IsValid() == false) if none was attached.
func FromContextOrEmpty(ctx context.Context) CorrelationID {
	id, ok := ctx.Value(correlationIDKey{}).(CorrelationID)
	if !ok {
		return CorrelationID{}
	}
	return id
}
