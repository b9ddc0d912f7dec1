package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/condgate/condgate/internal/evaluation"
	"github.com/condgate/condgate/internal/snapshot"
	"github.com/condgate/condgate/internal/telemetry"
)

// evaluateRequest is the body for POST /v1/evaluate
type evaluateRequest struct {
	Subject *evaluation.Subject `json:"subject"`
	Keys    []string            `json:"keys,omitempty"`
}

// handleEvaluate handles POST /v1/evaluate
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			RequestTooLargeError(w, r, "Request body exceeds 1MB limit")
			return
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "Invalid JSON: "+err.Error())
		return
	}

	if req.Subject == nil || isEmptySubject(*req.Subject) {
		BadRequestErrorWithFields(w, r, ErrCodeMissingField, "Subject is required",
			map[string]string{"subject": "subject with a key or attributes is required"})
		return
	}

	s.evaluate(w, *req.Subject, req.Keys)
}

// handleEvaluateGET handles GET /v1/evaluate with query parameters, for
// quick checks from a browser or curl. Attribute values arrive as
// strings; rules comparing numbers should use the POST form.
func (s *Server) handleEvaluateGET(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	subject := evaluation.Subject{
		Key:        strings.TrimSpace(query.Get("subject")),
		Attributes: make(map[string]any),
	}

	var keys []string
	if keysParam := query.Get("keys"); keysParam != "" {
		keys = strings.Split(keysParam, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	for name, values := range query {
		if name == "subject" || name == "keys" {
			continue
		}
		if len(values) > 0 {
			subject.Attributes[name] = values[0]
		}
	}

	if isEmptySubject(subject) {
		BadRequestErrorWithFields(w, r, ErrCodeMissingField, "Subject is required",
			map[string]string{"subject": "subject query parameter or attributes are required"})
		return
	}

	s.evaluate(w, subject, keys)
}

// evaluate runs the decision over the current snapshot and writes the
// response. It never touches the store: a slow or failing backend does
// not affect the evaluate path.
func (s *Server) evaluate(w http.ResponseWriter, subject evaluation.Subject, keys []string) {
	snap := s.snapshots.Load()

	// Without an explicit key list, evaluate everything in key order so
	// repeated calls return identical payloads.
	if len(keys) == 0 {
		keys = sortedKeys(snap)
	}

	results := evaluation.EvaluateAll(snap, subject, s.salt, keys)
	for _, result := range results {
		telemetry.EvaluationsTotal.WithLabelValues(result.Reason).Inc()
	}

	writeJSON(w, http.StatusOK, evaluation.EvaluateResponse{
		Results:     results,
		ETag:        snap.ETag,
		EvaluatedAt: time.Now().UTC(),
	})
}

func isEmptySubject(subject evaluation.Subject) bool {
	return strings.TrimSpace(subject.Key) == "" && len(subject.Attributes) == 0
}

func sortedKeys(snap *snapshot.Snapshot) []string {
	keys := make([]string, 0, len(snap.RuleSets))
	for key := range snap.RuleSets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
