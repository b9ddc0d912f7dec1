package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// queueSize is the buffer size for the event queue
	queueSize = 1000

	// maxResponseBodySize limits how much of the response body we log (1KB)
	maxResponseBodySize = 1024
)

// Dispatcher delivers webhook events to configured endpoints. Dispatch is
// non-blocking; a single worker drains the queue and retries failed
// deliveries with exponential backoff.
type Dispatcher struct {
	endpoints []Endpoint
	client    *http.Client
	logger    zerolog.Logger
	queue     chan Event
	done      chan struct{}
	closed    int32 // atomic flag to prevent double-close

	// backoff is the base retry delay; attempt n waits backoff * 2^n.
	backoff time.Duration
}

// NewDispatcher creates a new webhook dispatcher for the given endpoints.
func NewDispatcher(endpoints []Endpoint, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		endpoints: endpoints,
		client: &http.Client{
			// Default timeout, overridden per-endpoint via request context
			Timeout: 10 * time.Second,
		},
		logger:  logger,
		queue:   make(chan Event, queueSize),
		done:    make(chan struct{}),
		backoff: time.Second,
	}
}

// Start begins processing events from the queue
func (d *Dispatcher) Start() {
	go d.worker()
}

// Close gracefully shuts down the dispatcher. It closes the event queue
// and waits for pending deliveries to finish. Safe to call multiple times.
func (d *Dispatcher) Close() error {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return nil // Already closed
	}
	close(d.queue)
	<-d.done
	return nil
}

// Dispatch queues an event for delivery without blocking the caller.
func (d *Dispatcher) Dispatch(event Event) {
	if len(d.endpoints) == 0 {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	select {
	case d.queue <- event:
		d.logger.Debug().
			Str("event_id", event.ID).
			Str("type", event.Type).
			Str("resource", event.Resource.Type+"/"+event.Resource.Key).
			Str("env", event.Environment).
			Int("queue_size", len(d.queue)).
			Msg("webhook event queued")
	default:
		d.logger.Error().
			Str("event_id", event.ID).
			Str("type", event.Type).
			Str("resource", event.Resource.Type+"/"+event.Resource.Key).
			Msg("webhook queue full, dropping event")
	}
}

// worker processes events from the queue
func (d *Dispatcher) worker() {
	defer close(d.done)

	for event := range d.queue {
		for _, endpoint := range d.endpoints {
			if d.matches(endpoint, event) {
				d.deliverWithRetry(context.Background(), endpoint, event)
			}
		}
	}
}

// matches checks if an endpoint should receive this event. Empty filters
// match everything.
func (d *Dispatcher) matches(endpoint Endpoint, event Event) bool {
	if len(endpoint.Events) > 0 {
		eventMatches := false
		for _, e := range endpoint.Events {
			if e == event.Type {
				eventMatches = true
				break
			}
		}
		if !eventMatches {
			return false
		}
	}

	if len(endpoint.Environments) > 0 {
		envMatches := false
		for _, env := range endpoint.Environments {
			if env == event.Environment {
				envMatches = true
				break
			}
		}
		if !envMatches {
			return false
		}
	}

	return true
}

// deliverWithRetry attempts to deliver an event to one endpoint, retrying
// failures up to the endpoint's MaxRetries with exponential backoff.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, endpoint Endpoint, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error().Err(err).Str("url", endpoint.URL).Str("type", event.Type).Msg("failed to marshal webhook payload")
		return
	}

	signature := ComputeHMAC(payload, endpoint.Secret)
	deliveryID := uuid.NewString()

	for attempt := 0; attempt <= endpoint.MaxRetries; attempt++ {
		start := time.Now()

		req, err := http.NewRequest("POST", endpoint.URL, bytes.NewReader(payload))
		if err != nil {
			d.logger.Error().Err(err).Str("url", endpoint.URL).Msg("failed to create webhook request")
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Condgate-Signature", signature)
		req.Header.Set("X-Condgate-Event", event.Type)
		req.Header.Set("X-Condgate-Delivery", deliveryID)

		reqCtx, cancel := context.WithTimeout(ctx, endpoint.Timeout)

		resp, err := d.client.Do(req.WithContext(reqCtx))
		duration := time.Since(start)

		var statusCode int
		var responseBody string
		var errorMsg string

		if err != nil {
			errorMsg = err.Error()
		} else {
			statusCode = resp.StatusCode
			bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
			responseBody = string(bodyBytes)
			resp.Body.Close()
		}

		cancel()

		if err == nil && statusCode >= 200 && statusCode < 300 {
			d.logger.Info().
				Str("url", endpoint.URL).
				Str("delivery_id", deliveryID).
				Str("type", event.Type).
				Int("status", statusCode).
				Int64("duration_ms", duration.Milliseconds()).
				Int("attempt", attempt+1).
				Msg("webhook delivered")
			return
		}

		if attempt < endpoint.MaxRetries {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt))) * d.backoff
			d.logger.Warn().
				Str("url", endpoint.URL).
				Str("delivery_id", deliveryID).
				Int("status", statusCode).
				Str("error", errorMsg).
				Str("body", responseBody).
				Int("attempt", attempt+1).
				Dur("retry_in", backoffDuration).
				Msg("webhook delivery failed, retrying")
			time.Sleep(backoffDuration)
		} else {
			d.logger.Error().
				Str("url", endpoint.URL).
				Str("delivery_id", deliveryID).
				Int("status", statusCode).
				Str("error", errorMsg).
				Int("attempts", attempt+1).
				Msg("webhook delivery failed permanently")
		}
	}
}
