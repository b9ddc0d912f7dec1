package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/condgate/condgate/internal/audit"
	"github.com/condgate/condgate/internal/store"
	"github.com/condgate/condgate/internal/validation"
)

// upsertRequest is the body for PUT /v1/rulesets/{key}. The key comes
// from the URL; the body carries full replacement state.
type upsertRequest struct {
	Description string          `json:"description"`
	Enabled     bool            `json:"enabled"`
	Sample      *int32          `json:"sample"` // omitted means 100
	Rule        json.RawMessage `json:"rule,omitempty"`
}

type upsertResponse struct {
	OK   bool   `json:"ok"`
	ETag string `json:"etag"`
}

type listRuleSetsResponse struct {
	RuleSets []store.RuleSet `json:"rulesets"`
}

// handleListRuleSets handles GET /v1/rulesets
func (s *Server) handleListRuleSets(w http.ResponseWriter, r *http.Request) {
	rulesets, err := s.store.ListRuleSets(r.Context(), s.env)
	if err != nil {
		s.logger.Error().Err(err).Msg("list rulesets failed")
		InternalError(w, r, "Failed to list rulesets")
		return
	}

	writeJSON(w, http.StatusOK, listRuleSetsResponse{RuleSets: rulesets})
}

// handleGetRuleSet handles GET /v1/rulesets/{key}
func (s *Server) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	rs, err := s.store.GetRuleSet(r.Context(), key, s.env)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError(w, r, "Ruleset '"+key+"' not found")
			return
		}
		s.logger.Error().Err(err).Str("key", key).Msg("get ruleset failed")
		InternalError(w, r, "Failed to load ruleset")
		return
	}

	writeJSON(w, http.StatusOK, rs)
}

// handleUpsertRuleSet handles PUT /v1/rulesets/{key}. The write is
// validated, persisted, compiled into a fresh snapshot, audited, and
// announced to webhooks, in that order.
func (s *Server) handleUpsertRuleSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			RequestTooLargeError(w, r, "Request body exceeds 1MB limit")
			return
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "Invalid JSON: "+err.Error())
		return
	}

	sample := int32(100)
	if req.Sample != nil {
		sample = *req.Sample
	}

	result := validation.ValidateRuleSet(validation.RuleSetValidationParams{
		Key:         key,
		Env:         s.env,
		Description: req.Description,
		Sample:      sample,
		Rule:        req.Rule,
	})
	if !result.Valid {
		ValidationError(w, r, "Validation failed for one or more fields", result.Errors)
		return
	}

	// Capture prior state for audit diffs; a miss just means creation.
	var before map[string]any
	if prev, err := s.store.GetRuleSet(r.Context(), key, s.env); err == nil {
		before = ruleSetToMap(prev)
	}

	params := store.UpsertParams{
		Key:         key,
		Description: req.Description,
		Enabled:     req.Enabled,
		Sample:      sample,
		Rule:        req.Rule,
		Env:         s.env,
	}
	if err := s.store.UpsertRuleSet(r.Context(), params); err != nil {
		if errors.Is(err, store.ErrReadOnly) {
			ForbiddenError(w, r, "Store backend is read-only")
			return
		}
		s.logger.Error().Err(err).Str("key", key).Msg("upsert ruleset failed")
		s.auditRuleSet(r, audit.ActionUpdated, key, before, nil, "store write failed")
		InternalError(w, r, "Failed to save ruleset")
		return
	}

	if err := s.RebuildSnapshot(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("snapshot rebuild failed")
		InternalError(w, r, "Snapshot rebuild failed")
		return
	}

	after := ruleSetToMap(&store.RuleSet{
		Key:         key,
		Description: req.Description,
		Enabled:     req.Enabled,
		Sample:      sample,
		Rule:        req.Rule,
		Env:         s.env,
		UpdatedAt:   time.Now().UTC(),
	})
	action := audit.ActionUpdated
	if before == nil {
		action = audit.ActionCreated
	}
	s.auditRuleSet(r, action, key, before, after, "")
	s.notifyRuleSet(r, key, before, after)

	writeJSON(w, http.StatusOK, upsertResponse{
		OK:   true,
		ETag: s.snapshots.Load().ETag,
	})
}

// handleDeleteRuleSet handles DELETE /v1/rulesets/{key}. Deleting an
// unknown key is a 404, matching the store's contract.
func (s *Server) handleDeleteRuleSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	prev, err := s.store.GetRuleSet(r.Context(), key, s.env)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError(w, r, "Ruleset '"+key+"' not found")
			return
		}
		s.logger.Error().Err(err).Str("key", key).Msg("load ruleset before delete failed")
		InternalError(w, r, "Failed to load ruleset")
		return
	}
	before := ruleSetToMap(prev)

	if err := s.store.DeleteRuleSet(r.Context(), key, s.env); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError(w, r, "Ruleset '"+key+"' not found")
			return
		}
		if errors.Is(err, store.ErrReadOnly) {
			ForbiddenError(w, r, "Store backend is read-only")
			return
		}
		s.logger.Error().Err(err).Str("key", key).Msg("delete ruleset failed")
		s.auditRuleSet(r, audit.ActionDeleted, key, before, nil, "store delete failed")
		InternalError(w, r, "Failed to delete ruleset")
		return
	}

	if err := s.RebuildSnapshot(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("snapshot rebuild failed")
		InternalError(w, r, "Snapshot rebuild failed")
		return
	}

	s.auditRuleSet(r, audit.ActionDeleted, key, before, nil, "")
	s.notifyRuleSet(r, key, before, nil)

	writeJSON(w, http.StatusOK, upsertResponse{
		OK:   true,
		ETag: s.snapshots.Load().ETag,
	})
}
