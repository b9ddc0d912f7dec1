package condgate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Combinator folds a ConditionList's children into one boolean.
type Combinator string

// The two combinators. Serialized forms accept any casing and re-serialize
// canonically uppercase.
const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

func normalizeCombinator(c Combinator) (Combinator, error) {
	switch strings.ToUpper(strings.TrimSpace(string(c))) {
	case "AND":
		return And, nil
	case "OR":
		return Or, nil
	default:
		return "", fmt.Errorf("%w: combinator must be AND or OR, got %q", ErrMalformedCondition, string(c))
	}
}

// identity is the fold seed: AND over nothing is true, OR over nothing false.
func (c Combinator) identity() bool { return c == And }

// ConditionList combines ordered child nodes with a single combinator.
// Children may be conditions or further lists; there is no per-child
// combinator, so mixed AND/OR logic is written as nested lists.
type ConditionList struct {
	Combinator Combinator
	Children   []Node
}

var _ Node = (*ConditionList)(nil)

func (*ConditionList) node() {}

// NewConditionList builds a list from a combinator and initial children.
// The combinator is accepted case-insensitively and stored uppercase.
func NewConditionList(comb Combinator, children ...Node) (*ConditionList, error) {
	canonical, err := normalizeCombinator(comb)
	if err != nil {
		return nil, err
	}
	l := &ConditionList{Combinator: canonical}
	if err := l.Add(children...); err != nil {
		return nil, err
	}
	return l, nil
}

// Add appends children in evaluation order.
func (l *ConditionList) Add(children ...Node) error {
	for _, child := range children {
		if child == nil {
			return fmt.Errorf("%w: nil child", ErrMalformedCondition)
		}
		l.Children = append(l.Children, child)
	}
	return nil
}

// Evaluate folds the children left to right and stops as soon as the result
// is decided: AND at the first false child, OR at the first true one.
// Children past the stopping point are never evaluated, so their would-be
// errors never surface. An empty list is the combinator identity and
// consults no resolver.
func (l *ConditionList) Evaluate(host Resolver) (bool, error) {
	comb, err := normalizeCombinator(l.Combinator)
	if err != nil {
		return false, err
	}
	for _, child := range l.Children {
		match, err := child.Evaluate(host)
		if err != nil {
			return false, err
		}
		if comb == And && !match {
			return false, nil
		}
		if comb == Or && match {
			return true, nil
		}
	}
	return comb.identity(), nil
}

// Map returns the plain-data form with children serialized recursively in
// order.
func (l *ConditionList) Map() map[string]any {
	comb := l.Combinator
	if canonical, err := normalizeCombinator(comb); err == nil {
		comb = canonical
	}
	children := make([]any, len(l.Children))
	for i, child := range l.Children {
		children[i] = child.Map()
	}
	return map[string]any{
		typeKey:       typeList,
		keyCombinator: string(comb),
		keyChildren:   children,
	}
}

func (l *ConditionList) MarshalJSON() ([]byte, error) {
	comb, err := normalizeCombinator(l.Combinator)
	if err != nil {
		return nil, err
	}
	children := l.Children
	if children == nil {
		children = []Node{}
	}
	return json.Marshal(struct {
		Type       string     `json:"type"`
		Combinator Combinator `json:"combinator"`
		Children   []Node     `json:"children"`
	}{typeList, comb, children})
}

func (l *ConditionList) UnmarshalJSON(data []byte) error {
	m, err := decodeObject(data)
	if err != nil {
		return err
	}
	parsed, err := ConditionListFromMap(m)
	if err != nil {
		return err
	}
	*l = *parsed
	return nil
}

// JSON returns the serialized form of the list.
func (l *ConditionList) JSON() ([]byte, error) {
	return json.Marshal(l)
}

// ConditionListFromMap rebuilds a list from its plain-data form, decoding
// children recursively. Errors name the index of the offending child.
func ConditionListFromMap(m map[string]any) (*ConditionList, error) {
	if err := checkNodeType(m, typeList); err != nil {
		return nil, err
	}
	rawComb, ok := m[keyCombinator]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedCondition, keyCombinator)
	}
	combStr, ok := rawComb.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q must be a string", ErrMalformedCondition, keyCombinator)
	}
	comb, err := normalizeCombinator(Combinator(combStr))
	if err != nil {
		return nil, err
	}
	rawChildren, ok := m[keyChildren]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedCondition, keyChildren)
	}
	items, ok := rawChildren.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q must be an array", ErrMalformedCondition, keyChildren)
	}
	list := &ConditionList{Combinator: comb, Children: make([]Node, 0, len(items))}
	for i, item := range items {
		childMap, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: child %d is not an object", ErrMalformedCondition, i)
		}
		child, err := FromMap(childMap)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		list.Children = append(list.Children, child)
	}
	return list, nil
}
