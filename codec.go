package condgate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FromMap rebuilds a tree node from its plain-data form, dispatching on the
// "type" discriminator. The discriminator is required on every node.
func FromMap(m map[string]any) (Node, error) {
	raw, ok := m[typeKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q discriminator", ErrMalformedCondition, typeKey)
	}
	kind, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q discriminator must be a string", ErrMalformedCondition, typeKey)
	}
	switch kind {
	case typeCondition:
		return ConditionFromMap(m)
	case typeList:
		return ConditionListFromMap(m)
	default:
		return nil, fmt.Errorf("%w: unknown node type %q", ErrMalformedCondition, kind)
	}
}

// FromJSON decodes a serialized tree. Numbers decode as json.Number, so a
// decoded tree re-serializes without numeric drift.
func FromJSON(data []byte) (Node, error) {
	m, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	return FromMap(m)
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCondition, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedCondition)
	}
	return m, nil
}

func checkNodeType(m map[string]any, want string) error {
	raw, ok := m[typeKey]
	if !ok {
		return fmt.Errorf("%w: missing %q discriminator", ErrMalformedCondition, typeKey)
	}
	got, ok := raw.(string)
	if !ok || got != want {
		return fmt.Errorf("%w: expected a %q node, got %v", ErrMalformedCondition, want, raw)
	}
	return nil
}
