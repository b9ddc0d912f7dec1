package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/condgate/condgate/internal/validation"
)

// validateRequest is the body for POST /v1/validate, a dry run of the
// checks applied on upsert. Env defaults to the server's environment.
type validateRequest struct {
	Key         string          `json:"key"`
	Env         string          `json:"env,omitempty"`
	Description string          `json:"description"`
	Sample      *int32          `json:"sample"`
	Rule        json.RawMessage `json:"rule,omitempty"`
}

type validateResponse struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// handleValidate handles POST /v1/validate. A completed dry run always
// returns 200; only malformed requests are errors.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			RequestTooLargeError(w, r, "Request body exceeds 1MB limit")
			return
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "Invalid JSON: "+err.Error())
		return
	}

	env := req.Env
	if env == "" {
		env = s.env
	}
	sample := int32(100)
	if req.Sample != nil {
		sample = *req.Sample
	}

	result := validation.ValidateRuleSet(validation.RuleSetValidationParams{
		Key:         req.Key,
		Env:         env,
		Description: req.Description,
		Sample:      sample,
		Rule:        req.Rule,
	})

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:  result.Valid,
		Errors: result.Errors,
	})
}
