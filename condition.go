package condgate

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Serialized form keys. Every node carries the "type" discriminator.
const (
	typeKey       = "type"
	typeCondition = "condition"
	typeList      = "list"

	keyAttribute  = "attribute_name"
	keyOperator   = "operator"
	keyReference  = "reference_value"
	keyCombinator = "combinator"
	keyChildren   = "children"
)

// Node is one node of a condition tree: either a *Condition leaf or a
// *ConditionList branch. The set is closed.
type Node interface {
	// Evaluate decides the node against host attributes.
	Evaluate(host Resolver) (bool, error)
	// Map returns the plain-data serialized form, discriminator included.
	Map() map[string]any
	// JSON returns the serialized JSON form.
	JSON() ([]byte, error)

	node()
}

// Condition compares one host attribute against a fixed reference value.
// Build with NewCondition to get operator and value validation up front;
// hand-built values are re-checked when serialized.
type Condition struct {
	AttributeName  string
	Operator       Operator
	ReferenceValue any
}

var _ Node = (*Condition)(nil)

func (*Condition) node() {}

// NewCondition builds a validated condition. The operator token must resolve
// in the registry and the reference value must sit in the serializable
// domain: nil, bool, string, finite number, or a flat slice of those.
func NewCondition(attribute string, op Operator, reference any) (*Condition, error) {
	if strings.TrimSpace(attribute) == "" {
		return nil, fmt.Errorf("%w: empty attribute name", ErrMalformedCondition)
	}
	if _, err := lookupOperator(op); err != nil {
		return nil, err
	}
	if err := checkSerializable(reference); err != nil {
		return nil, err
	}
	if err := checkReference(op, reference); err != nil {
		return nil, err
	}
	return &Condition{AttributeName: attribute, Operator: op, ReferenceValue: reference}, nil
}

// checkReference applies the per-operator reference constraints that can be
// decided without a host value.
func checkReference(op Operator, reference any) error {
	switch normalizeOperator(op) {
	case OpIn, OpNotIn:
		if _, ok := toSlice(reference); ok {
			return nil
		}
		if _, ok := toString(reference); ok {
			return nil
		}
		return fmt.Errorf("%w: operator %q needs a list or string reference, got %T", ErrMalformedCondition, op, reference)
	case OpRegex:
		pattern, ok := toString(reference)
		if !ok {
			return fmt.Errorf("%w: operator %q needs a string pattern, got %T", ErrMalformedCondition, op, reference)
		}
		if _, err := compiledRegex(pattern); err != nil {
			return fmt.Errorf("%w: invalid regex pattern %q: %v", ErrMalformedCondition, pattern, err)
		}
	}
	return nil
}

// Evaluate resolves the attribute on the host and applies the operator.
// A host the resolver cannot answer for yields ErrAttributeNotFound;
// operand types the operator cannot compare yield ErrTypeMismatch.
func (c *Condition) Evaluate(host Resolver) (bool, error) {
	fn, err := lookupOperator(c.Operator)
	if err != nil {
		return false, err
	}
	actual, ok := host.Resolve(c.AttributeName)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrAttributeNotFound, c.AttributeName)
	}
	match, err := fn(actual, c.ReferenceValue)
	if err != nil {
		return false, fmt.Errorf("attribute %q: %w", c.AttributeName, err)
	}
	return match, nil
}

// Map returns the plain-data form. The operator token is kept verbatim, so
// a condition decoded from an alias like "==" re-serializes unchanged.
func (c *Condition) Map() map[string]any {
	return map[string]any{
		typeKey:      typeCondition,
		keyAttribute: c.AttributeName,
		keyOperator:  string(c.Operator),
		keyReference: c.ReferenceValue,
	}
}

func (c *Condition) MarshalJSON() ([]byte, error) {
	if err := checkSerializable(c.ReferenceValue); err != nil {
		return nil, fmt.Errorf("condition %q: %w", c.AttributeName, err)
	}
	return json.Marshal(struct {
		Type           string   `json:"type"`
		AttributeName  string   `json:"attribute_name"`
		Operator       Operator `json:"operator"`
		ReferenceValue any      `json:"reference_value"`
	}{typeCondition, c.AttributeName, c.Operator, c.ReferenceValue})
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	m, err := decodeObject(data)
	if err != nil {
		return err
	}
	parsed, err := ConditionFromMap(m)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// JSON returns the serialized form of the condition.
func (c *Condition) JSON() ([]byte, error) {
	return json.Marshal(c)
}

// ConditionFromMap rebuilds a condition from its plain-data form. All three
// keys and the discriminator are required; an unknown operator reports both
// ErrMalformedCondition and ErrUnknownOperator.
func ConditionFromMap(m map[string]any) (*Condition, error) {
	if err := checkNodeType(m, typeCondition); err != nil {
		return nil, err
	}
	rawAttr, ok := m[keyAttribute]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedCondition, keyAttribute)
	}
	attr, ok := rawAttr.(string)
	if !ok || strings.TrimSpace(attr) == "" {
		return nil, fmt.Errorf("%w: %q must be a non-empty string", ErrMalformedCondition, keyAttribute)
	}
	rawOp, ok := m[keyOperator]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedCondition, keyOperator)
	}
	opStr, ok := rawOp.(string)
	if !ok || opStr == "" {
		return nil, fmt.Errorf("%w: %q must be a non-empty string", ErrMalformedCondition, keyOperator)
	}
	op := Operator(opStr)
	if _, err := lookupOperator(op); err != nil {
		return nil, fmt.Errorf("%w: %w: %q", ErrMalformedCondition, ErrUnknownOperator, opStr)
	}
	reference, ok := m[keyReference]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedCondition, keyReference)
	}
	if err := checkSerializable(reference); err != nil {
		return nil, err
	}
	if err := checkReference(op, reference); err != nil {
		return nil, err
	}
	return &Condition{AttributeName: attr, Operator: op, ReferenceValue: reference}, nil
}

// checkSerializable accepts the JSON-primitive value domain: nil, bools,
// strings, finite numbers, and flat slices of those. Maps, structs, nested
// lists and the rest are rejected so every storable condition is also
// serializable.
func checkSerializable(v any) error {
	if items, ok := toSlice(v); ok {
		for i, item := range items {
			if _, nested := toSlice(item); nested {
				return fmt.Errorf("%w: nested list at index %d", ErrUnserializableValue, i)
			}
			if err := checkScalar(item); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil
	}
	return checkScalar(v)
}

func checkScalar(v any) error {
	switch n := v.(type) {
	case nil, bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return nil
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return fmt.Errorf("%w: non-finite float", ErrUnserializableValue)
		}
		return nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Errorf("%w: non-finite float", ErrUnserializableValue)
		}
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnserializableValue, v)
	}
}
