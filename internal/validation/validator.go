// Package validation provides validation rules for rule set data and request parameters.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	condgate "github.com/condgate/condgate"
)

const (
	// MaxKeyLength is the maximum length for rule set keys
	MaxKeyLength = 64
	// MaxEnvLength is the maximum length for environment names
	MaxEnvLength = 32
	// MaxDescriptionLength is the maximum length for rule set descriptions
	MaxDescriptionLength = 256
	// MaxRuleSize is the maximum size of the serialized rule tree in bytes
	MaxRuleSize = 64 * 1024 // 64KB
	// MaxRuleDepth is the maximum nesting depth of a rule tree
	MaxRuleDepth = 32
	// MaxListChildren is the maximum number of children in one condition list
	MaxListChildren = 128
	// MinSample is the minimum sample percentage
	MinSample = 0
	// MaxSample is the maximum sample percentage
	MaxSample = 100
)

// keyPattern matches alphanumeric characters, underscores, and hyphens
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidationResult holds the result of validation
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string]string),
	}
}

// AddError adds a field error and marks the result as invalid
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge combines another validation result into this one
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// RuleSetValidationParams contains the parameters for validating a rule set
type RuleSetValidationParams struct {
	Key         string
	Env         string
	Description string
	Sample      int32
	Rule        json.RawMessage // nil means match-all, which is valid
}

// ValidateRuleSet validates all rule set fields and returns a validation result
func ValidateRuleSet(params RuleSetValidationParams) *ValidationResult {
	result := NewValidationResult()

	result.Merge(ValidateKey(params.Key))
	result.Merge(ValidateEnv(params.Env))
	result.Merge(ValidateDescription(params.Description))
	result.Merge(ValidateSample(params.Sample))

	if len(params.Rule) > 0 {
		result.Merge(ValidateRule(params.Rule))
	}

	return result
}

// ValidateKey validates a rule set key
func ValidateKey(key string) *ValidationResult {
	result := NewValidationResult()
	key = strings.TrimSpace(key)

	if key == "" {
		result.AddError("key", "Key is required")
		return result
	}

	if utf8.RuneCountInString(key) > MaxKeyLength {
		result.AddError("key", "Key must not exceed 64 characters")
		return result
	}

	if !keyPattern.MatchString(key) {
		result.AddError("key", "Key must contain only alphanumeric characters, underscores, and hyphens")
		return result
	}

	return result
}

// ValidateEnv validates an environment name
func ValidateEnv(env string) *ValidationResult {
	result := NewValidationResult()
	env = strings.TrimSpace(env)

	if env == "" {
		result.AddError("env", "Environment is required")
		return result
	}

	if utf8.RuneCountInString(env) > MaxEnvLength {
		result.AddError("env", "Environment must not exceed 32 characters")
		return result
	}

	if !keyPattern.MatchString(env) {
		result.AddError("env", "Environment must contain only alphanumeric characters, underscores, and hyphens")
		return result
	}

	return result
}

// ValidateDescription validates a rule set description
func ValidateDescription(description string) *ValidationResult {
	result := NewValidationResult()

	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		result.AddError("description", "Description must not exceed 256 characters")
	}

	return result
}

// ValidateSample validates a sample percentage
func ValidateSample(sample int32) *ValidationResult {
	result := NewValidationResult()

	if sample < MinSample || sample > MaxSample {
		result.AddError("sample", "Sample must be between 0 and 100")
	}

	return result
}

// ValidateRule validates a serialized rule tree: size, parseability, and
// structural limits (nesting depth and list width).
func ValidateRule(rule json.RawMessage) *ValidationResult {
	result := NewValidationResult()

	if len(rule) > MaxRuleSize {
		result.AddError("rule", "Rule must not exceed 64KB")
		return result
	}

	node, err := condgate.FromJSON(rule)
	if err != nil {
		result.AddError("rule", "Rule does not parse: "+err.Error())
		return result
	}

	checkTree(node, 1, result)
	return result
}

// checkTree enforces depth and width limits on a parsed rule tree.
func checkTree(node condgate.Node, depth int, result *ValidationResult) {
	if depth > MaxRuleDepth {
		result.AddError("rule", fmt.Sprintf("Rule nesting must not exceed %d levels", MaxRuleDepth))
		return
	}
	list, ok := node.(*condgate.ConditionList)
	if !ok {
		return
	}
	if len(list.Children) > MaxListChildren {
		result.AddError("rule", fmt.Sprintf("Condition lists must not exceed %d children", MaxListChildren))
		return
	}
	for _, child := range list.Children {
		checkTree(child, depth+1, result)
	}
}
