package webhook

import (
	"time"
)

// Event types that can trigger webhooks
const (
	EventRuleSetCreated = "ruleset.created"
	EventRuleSetUpdated = "ruleset.updated"
	EventRuleSetDeleted = "ruleset.deleted"
)

// Event represents a webhook event delivered to configured endpoints
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"event"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	Resource    Resource  `json:"resource"`
	Data        EventData `json:"data"`
	Metadata    Metadata  `json:"metadata"`
}

// Resource identifies the resource that triggered the event
type Resource struct {
	Type string `json:"type"` // e.g., "ruleset"
	Key  string `json:"key"`  // e.g., rule set key
}

// EventData contains the before/after state and changes
type EventData struct {
	Before  map[string]any `json:"before,omitempty"`
	After   map[string]any `json:"after,omitempty"`
	Changes map[string]any `json:"changes,omitempty"`
}

// Metadata contains additional context about the event
type Metadata struct {
	APIKeyID  string `json:"apiKeyId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Endpoint is an outbound webhook destination. Endpoints come from config;
// empty Events or Environments filters match everything.
type Endpoint struct {
	URL          string
	Secret       string
	Events       []string
	Environments []string
	MaxRetries   int
	Timeout      time.Duration
}

const (
	defaultMaxRetries = 3
	defaultTimeout    = 10 * time.Second
)

// EndpointsFromConfig builds endpoints from the WEBHOOK_URLS list, all
// sharing the configured secret and receiving every event.
func EndpointsFromConfig(urls []string, secret string) []Endpoint {
	endpoints := make([]Endpoint, 0, len(urls))
	for _, url := range urls {
		endpoints = append(endpoints, Endpoint{
			URL:        url,
			Secret:     secret,
			MaxRetries: defaultMaxRetries,
			Timeout:    defaultTimeout,
		})
	}
	return endpoints
}
