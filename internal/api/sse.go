package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/condgate/condgate/internal/telemetry"
)

// heartbeatInterval keeps idle stream connections alive through
// proxies that reap quiet ones.
const heartbeatInterval = 25 * time.Second

// handleSnapshotStream handles GET /v1/snapshot/stream. Clients get an
// init event with the current snapshot ETag, then an update event for
// every rebuild, until they disconnect.
func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, r, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	telemetry.SSEClients.Inc()
	defer telemetry.SSEClients.Dec()

	updates, unsubscribe := s.snapshots.Subscribe()
	defer unsubscribe()

	writeSSEEvent(w, "init", s.snapshots.Load().ETag)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case etag := <-updates:
			writeSSEEvent(w, "update", etag)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w io.Writer, event, etag string) {
	data, _ := json.Marshal(map[string]string{"etag": etag})
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
