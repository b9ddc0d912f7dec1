package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/condgate/condgate/internal/store"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// ruleSetToMap converts a store.RuleSet to a map for audit and webhook
// payloads. The rule tree is decoded so diffs read as structure, not as a
// JSON string. Returns nil if the rule set is nil.
func ruleSetToMap(rs *store.RuleSet) map[string]any {
	if rs == nil {
		return nil
	}

	m := map[string]any{
		"key":         rs.Key,
		"description": rs.Description,
		"enabled":     rs.Enabled,
		"sample":      rs.Sample,
		"env":         rs.Env,
		"updated_at":  rs.UpdatedAt.Format(time.RFC3339),
	}

	if len(rs.Rule) > 0 {
		var rule any
		if err := json.Unmarshal(rs.Rule, &rule); err == nil {
			m["rule"] = rule
		} else {
			m["rule"] = string(rs.Rule)
		}
	}

	return m
}
