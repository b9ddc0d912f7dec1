package webhook

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/condgate/condgate/internal/auth"
)

// EventBuilder provides a fluent API for constructing webhook events. The
// event type is derived automatically from the before/after states.
//
// Usage:
//
//	event := webhook.NewEventBuilder(r).
//		ForRuleSet(key, env).
//		WithStates(before, after).
//		WithChanges(changes).
//		Build()
//
//	dispatcher.Dispatch(event)
type EventBuilder struct {
	event Event
}

// NewEventBuilder creates a builder initialized with request context:
// request ID, IP address, and API key ID are extracted automatically.
func NewEventBuilder(r *http.Request) *EventBuilder {
	metadata := Metadata{
		RequestID: middleware.GetReqID(r.Context()),
		IPAddress: auth.GetIPAddress(r),
	}

	if apiKeyID, ok := auth.GetAPIKeyIDFromContext(r.Context()); ok {
		metadata.APIKeyID = apiKeyID
	}

	return &EventBuilder{
		event: Event{
			Timestamp: time.Now(),
			Metadata:  metadata,
		},
	}
}

// ForRuleSet sets the resource to a rule set with the given key and environment.
func (b *EventBuilder) ForRuleSet(key, env string) *EventBuilder {
	b.event.Resource = Resource{
		Type: "ruleset",
		Key:  key,
	}
	b.event.Environment = env
	return b
}

// WithStates sets the before and after states for the event.
// The event type is determined from the states:
//   - before=nil, after!=nil → created
//   - before!=nil, after=nil → deleted
//   - both non-nil → updated
//   - both nil → no event type set (caller should set explicitly if needed)
func (b *EventBuilder) WithStates(before, after map[string]any) *EventBuilder {
	b.event.Data.Before = before
	b.event.Data.After = after

	if before == nil && after != nil {
		b.event.Type = EventRuleSetCreated
	} else if before != nil && after == nil {
		b.event.Type = EventRuleSetDeleted
	} else if before != nil && after != nil {
		b.event.Type = EventRuleSetUpdated
	}

	return b
}

// WithChanges sets the changes for the event.
func (b *EventBuilder) WithChanges(changes map[string]any) *EventBuilder {
	b.event.Data.Changes = changes
	return b
}

// Build returns the constructed Event, ready for dispatcher.Dispatch.
func (b *EventBuilder) Build() Event {
	return b.event
}
