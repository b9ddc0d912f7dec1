package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		wantValid   bool
		wantMessage string
	}{
		{
			name:      "valid alphanumeric",
			key:       "my_rule_123",
			wantValid: true,
		},
		{
			name:      "valid with hyphen",
			key:       "my-rule-123",
			wantValid: true,
		},
		{
			name:      "valid mixed",
			key:       "my_rule-123_test",
			wantValid: true,
		},
		{
			name:        "empty key",
			key:         "",
			wantValid:   false,
			wantMessage: "Key is required",
		},
		{
			name:        "whitespace only",
			key:         "   ",
			wantValid:   false,
			wantMessage: "Key is required",
		},
		{
			name:        "too long",
			key:         strings.Repeat("a", 65),
			wantValid:   false,
			wantMessage: "Key must not exceed 64 characters",
		},
		{
			name:      "exactly 64 chars",
			key:       strings.Repeat("a", 64),
			wantValid: true,
		},
		{
			name:        "contains spaces",
			key:         "my rule",
			wantValid:   false,
			wantMessage: "Key must contain only alphanumeric characters, underscores, and hyphens",
		},
		{
			name:        "contains @",
			key:         "beta@access",
			wantValid:   false,
			wantMessage: "Key must contain only alphanumeric characters, underscores, and hyphens",
		},
		{
			name:        "contains period",
			key:         "beta.access",
			wantValid:   false,
			wantMessage: "Key must contain only alphanumeric characters, underscores, and hyphens",
		},
		{
			name:        "contains slash",
			key:         "beta/access",
			wantValid:   false,
			wantMessage: "Key must contain only alphanumeric characters, underscores, and hyphens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateKey(tt.key)
			if result.Valid != tt.wantValid {
				t.Errorf("ValidateKey(%q) valid = %v, want %v", tt.key, result.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				if msg, ok := result.Errors["key"]; !ok || msg != tt.wantMessage {
					t.Errorf("ValidateKey(%q) message = %q, want %q", tt.key, msg, tt.wantMessage)
				}
			}
		})
	}
}

func TestValidateEnv(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		wantValid   bool
		wantMessage string
	}{
		{
			name:      "valid prod",
			env:       "prod",
			wantValid: true,
		},
		{
			name:      "valid staging",
			env:       "staging",
			wantValid: true,
		},
		{
			name:        "empty env",
			env:         "",
			wantValid:   false,
			wantMessage: "Environment is required",
		},
		{
			name:        "too long",
			env:         strings.Repeat("e", 33),
			wantValid:   false,
			wantMessage: "Environment must not exceed 32 characters",
		},
		{
			name:      "exactly 32 chars",
			env:       strings.Repeat("e", 32),
			wantValid: true,
		},
		{
			name:        "contains dot",
			env:         "prod.eu",
			wantValid:   false,
			wantMessage: "Environment must contain only alphanumeric characters, underscores, and hyphens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateEnv(tt.env)
			if result.Valid != tt.wantValid {
				t.Errorf("ValidateEnv(%q) valid = %v, want %v", tt.env, result.Valid, tt.wantValid)
			}
			if !tt.wantValid {
				if msg, ok := result.Errors["env"]; !ok || msg != tt.wantMessage {
					t.Errorf("ValidateEnv(%q) message = %q, want %q", tt.env, msg, tt.wantMessage)
				}
			}
		})
	}
}

func TestValidateDescription(t *testing.T) {
	if result := ValidateDescription(""); !result.Valid {
		t.Error("Empty description should be valid")
	}
	if result := ValidateDescription(strings.Repeat("d", 256)); !result.Valid {
		t.Error("256-char description should be valid")
	}
	result := ValidateDescription(strings.Repeat("d", 257))
	if result.Valid {
		t.Error("257-char description should be invalid")
	}
	if result.Errors["description"] != "Description must not exceed 256 characters" {
		t.Errorf("Unexpected message: %q", result.Errors["description"])
	}
}

func TestValidateSample(t *testing.T) {
	for _, sample := range []int32{0, 1, 50, 99, 100} {
		if result := ValidateSample(sample); !result.Valid {
			t.Errorf("Sample %d should be valid", sample)
		}
	}
	for _, sample := range []int32{-1, 101, 1000} {
		result := ValidateSample(sample)
		if result.Valid {
			t.Errorf("Sample %d should be invalid", sample)
		}
		if result.Errors["sample"] != "Sample must be between 0 and 100" {
			t.Errorf("Unexpected message: %q", result.Errors["sample"])
		}
	}
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name      string
		rule      string
		wantValid bool
	}{
		{
			name:      "valid condition",
			rule:      `{"type":"condition","attribute_name":"age","operator":"gte","reference_value":18}`,
			wantValid: true,
		},
		{
			name:      "valid nested list",
			rule:      `{"type":"list","combinator":"AND","children":[{"type":"condition","attribute_name":"a","operator":"eq","reference_value":1}]}`,
			wantValid: true,
		},
		{
			name:      "not JSON",
			rule:      `{`,
			wantValid: false,
		},
		{
			name:      "unknown operator",
			rule:      `{"type":"condition","attribute_name":"a","operator":"frobnicate","reference_value":1}`,
			wantValid: false,
		},
		{
			name:      "missing discriminator",
			rule:      `{"attribute_name":"a","operator":"eq","reference_value":1}`,
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateRule(json.RawMessage(tt.rule))
			if result.Valid != tt.wantValid {
				t.Errorf("ValidateRule valid = %v, want %v (errors: %v)", result.Valid, tt.wantValid, result.Errors)
			}
		})
	}
}

func TestValidateRule_SizeLimit(t *testing.T) {
	// Inflate a valid condition past 64KB with a long reference string.
	big := fmt.Sprintf(`{"type":"condition","attribute_name":"a","operator":"eq","reference_value":"%s"}`,
		strings.Repeat("x", MaxRuleSize))
	result := ValidateRule(json.RawMessage(big))
	if result.Valid {
		t.Error("Oversized rule should be invalid")
	}
	if result.Errors["rule"] != "Rule must not exceed 64KB" {
		t.Errorf("Unexpected message: %q", result.Errors["rule"])
	}
}

func TestValidateRule_DepthLimit(t *testing.T) {
	// Build a chain of nested lists deeper than the limit.
	leaf := `{"type":"condition","attribute_name":"a","operator":"eq","reference_value":1}`
	rule := leaf
	for i := 0; i < MaxRuleDepth+1; i++ {
		rule = `{"type":"list","combinator":"AND","children":[` + rule + `]}`
	}

	result := ValidateRule(json.RawMessage(rule))
	if result.Valid {
		t.Error("Over-deep rule should be invalid")
	}

	// At exactly the limit the rule passes.
	rule = leaf
	for i := 0; i < MaxRuleDepth-1; i++ {
		rule = `{"type":"list","combinator":"AND","children":[` + rule + `]}`
	}
	if result := ValidateRule(json.RawMessage(rule)); !result.Valid {
		t.Errorf("Rule at depth limit should be valid: %v", result.Errors)
	}
}

func TestValidateRule_WidthLimit(t *testing.T) {
	leaf := `{"type":"condition","attribute_name":"a","operator":"eq","reference_value":1}`

	children := make([]string, MaxListChildren+1)
	for i := range children {
		children[i] = leaf
	}
	rule := `{"type":"list","combinator":"OR","children":[` + strings.Join(children, ",") + `]}`

	result := ValidateRule(json.RawMessage(rule))
	if result.Valid {
		t.Error("Over-wide list should be invalid")
	}

	rule = `{"type":"list","combinator":"OR","children":[` + strings.Join(children[:MaxListChildren], ",") + `]}`
	if result := ValidateRule(json.RawMessage(rule)); !result.Valid {
		t.Errorf("List at width limit should be valid: %v", result.Errors)
	}
}

func TestValidateRuleSet(t *testing.T) {
	valid := RuleSetValidationParams{
		Key:         "beta-access",
		Env:         "prod",
		Description: "Early access cohort",
		Sample:      25,
		Rule:        json.RawMessage(`{"type":"condition","attribute_name":"tier","operator":"eq","reference_value":"beta"}`),
	}
	if result := ValidateRuleSet(valid); !result.Valid {
		t.Errorf("Expected valid params, got errors: %v", result.Errors)
	}

	// No rule at all is a valid match-all rule set.
	noRule := valid
	noRule.Rule = nil
	if result := ValidateRuleSet(noRule); !result.Valid {
		t.Errorf("Rule-less params should be valid, got errors: %v", result.Errors)
	}

	// All fields wrong at once: every field is reported.
	bad := RuleSetValidationParams{
		Key:         "bad key!",
		Env:         "",
		Description: strings.Repeat("d", 300),
		Sample:      200,
		Rule:        json.RawMessage(`{`),
	}
	result := ValidateRuleSet(bad)
	if result.Valid {
		t.Fatal("Expected invalid result")
	}
	for _, field := range []string{"key", "env", "description", "sample", "rule"} {
		if _, ok := result.Errors[field]; !ok {
			t.Errorf("Expected error for field %q, got %v", field, result.Errors)
		}
	}
}

func TestValidationResult_Merge(t *testing.T) {
	a := NewValidationResult()
	b := NewValidationResult()
	b.AddError("key", "bad key")

	a.Merge(b)
	if a.Valid {
		t.Error("Merge of invalid result should mark receiver invalid")
	}
	if a.Errors["key"] != "bad key" {
		t.Errorf("Expected merged error, got %v", a.Errors)
	}

	a.Merge(nil) // must not panic
}
