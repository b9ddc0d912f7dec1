package condgate

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

// trackingResolver counts lookups so tests can assert a child was never
// consulted.
type trackingResolver struct {
	values map[string]any
	calls  int
}

func (r *trackingResolver) Resolve(attribute string) (any, bool) {
	r.calls++
	v, ok := r.values[attribute]
	return v, ok
}

func mustCondition(t *testing.T, attribute string, op Operator, reference any) *Condition {
	t.Helper()
	cond, err := NewCondition(attribute, op, reference)
	if err != nil {
		t.Fatalf("NewCondition(%q, %q): %v", attribute, op, err)
	}
	return cond
}

func TestEmptyListIdentity(t *testing.T) {
	tests := []struct {
		comb Combinator
		want bool
	}{
		{And, true},
		{Or, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.comb), func(t *testing.T) {
			list, err := NewConditionList(tt.comb)
			if err != nil {
				t.Fatalf("NewConditionList: %v", err)
			}
			host := &trackingResolver{}
			got, err := list.Evaluate(host)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tt.want {
				t.Fatalf("empty %s = %v, want %v", tt.comb, got, tt.want)
			}
			if host.calls != 0 {
				t.Fatalf("resolver consulted %d times for an empty list", host.calls)
			}
		})
	}
}

func TestShortCircuit(t *testing.T) {
	// The second child's attribute does not resolve, so evaluating it
	// would error. Short-circuiting must decide before reaching it.
	poison := mustCondition(t, "missing", OpEq, 1)

	t.Run("and stops at first false", func(t *testing.T) {
		first := mustCondition(t, "age", OpGte, 99)
		list, err := NewConditionList(And, first, poison)
		if err != nil {
			t.Fatalf("NewConditionList: %v", err)
		}
		host := &trackingResolver{values: map[string]any{"age": 21}}
		got, err := list.Evaluate(host)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if got {
			t.Fatal("got true, want false")
		}
		if host.calls != 1 {
			t.Fatalf("resolver consulted %d times, want 1", host.calls)
		}
	})

	t.Run("or stops at first true", func(t *testing.T) {
		first := mustCondition(t, "age", OpGte, 18)
		list, err := NewConditionList(Or, first, poison)
		if err != nil {
			t.Fatalf("NewConditionList: %v", err)
		}
		host := &trackingResolver{values: map[string]any{"age": 21}}
		got, err := list.Evaluate(host)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if !got {
			t.Fatal("got false, want true")
		}
		if host.calls != 1 {
			t.Fatalf("resolver consulted %d times, want 1", host.calls)
		}
	})

	t.Run("error surfaces when not short-circuited", func(t *testing.T) {
		first := mustCondition(t, "age", OpGte, 18)
		list, err := NewConditionList(And, first, poison)
		if err != nil {
			t.Fatalf("NewConditionList: %v", err)
		}
		host := &trackingResolver{values: map[string]any{"age": 21}}
		if _, err := list.Evaluate(host); !errors.Is(err, ErrAttributeNotFound) {
			t.Fatalf("error = %v, want ErrAttributeNotFound", err)
		}
	})
}

func TestNestedTruthTable(t *testing.T) {
	// OR(AND(a, b), c) across all eight boolean assignments.
	a := mustCondition(t, "a", OpEq, true)
	b := mustCondition(t, "b", OpEq, true)
	c := mustCondition(t, "c", OpEq, true)

	inner, err := NewConditionList(And, a, b)
	if err != nil {
		t.Fatalf("NewConditionList: %v", err)
	}
	root, err := NewConditionList(Or, inner, c)
	if err != nil {
		t.Fatalf("NewConditionList: %v", err)
	}

	for i := 0; i < 8; i++ {
		va, vb, vc := i&4 != 0, i&2 != 0, i&1 != 0
		want := (va && vb) || vc
		got, err := root.Evaluate(MapResolver{"a": va, "b": vb, "c": vc})
		if err != nil {
			t.Fatalf("Evaluate(%v,%v,%v): %v", va, vb, vc, err)
		}
		if got != want {
			t.Fatalf("OR(AND(%v,%v),%v) = %v, want %v", va, vb, vc, got, want)
		}
	}
}

func TestNewConditionListValidation(t *testing.T) {
	if _, err := NewConditionList("XOR"); !errors.Is(err, ErrMalformedCondition) {
		t.Fatalf("error = %v, want ErrMalformedCondition", err)
	}
	if _, err := NewConditionList(And, nil); !errors.Is(err, ErrMalformedCondition) {
		t.Fatalf("nil child error = %v, want ErrMalformedCondition", err)
	}

	list, err := NewConditionList("and")
	if err != nil {
		t.Fatalf("lowercase combinator rejected: %v", err)
	}
	if list.Combinator != And {
		t.Fatalf("Combinator = %q, want canonical %q", list.Combinator, And)
	}
}

func TestAddPreservesOrder(t *testing.T) {
	first := mustCondition(t, "a", OpEq, 1)
	second := mustCondition(t, "b", OpEq, 2)

	list, err := NewConditionList(And)
	if err != nil {
		t.Fatalf("NewConditionList: %v", err)
	}
	if err := list.Add(first); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := list.Add(second); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(list.Children) != 2 {
		t.Fatalf("len(Children) = %d, want 2", len(list.Children))
	}
	if list.Children[0] != Node(first) || list.Children[1] != Node(second) {
		t.Fatal("children out of order")
	}
}

func TestListJSONShape(t *testing.T) {
	adult := mustCondition(t, "age", OpGte, 18)
	list, err := NewConditionList(And, adult)
	if err != nil {
		t.Fatalf("NewConditionList: %v", err)
	}

	data, err := list.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := map[string]any{
		"type":       "list",
		"combinator": "AND",
		"children": []any{
			map[string]any{
				"type":            "condition",
				"attribute_name":  "age",
				"operator":        "gte",
				"reference_value": float64(18),
			},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("serialized form = %v, want %v", got, want)
	}
}

func TestListRoundTrip(t *testing.T) {
	raw := `{
		"type": "list",
		"combinator": "or",
		"children": [
			{"type": "list", "combinator": "AND", "children": [
				{"type": "condition", "attribute_name": "age", "operator": ">=", "reference_value": 18},
				{"type": "condition", "attribute_name": "country", "operator": "eq", "reference_value": "DE"}
			]},
			{"type": "condition", "attribute_name": "tier", "operator": "eq", "reference_value": "vip"}
		]
	}`

	first, err := FromJSON([]byte(raw))
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	list, ok := first.(*ConditionList)
	if !ok {
		t.Fatalf("decoded %T, want *ConditionList", first)
	}
	if list.Combinator != Or {
		t.Fatalf("Combinator = %q, want canonical %q", list.Combinator, Or)
	}
	if len(list.Children) != 2 {
		t.Fatalf("len(Children) = %d, want 2", len(list.Children))
	}
	inner, ok := list.Children[0].(*ConditionList)
	if !ok {
		t.Fatalf("child 0 is %T, want *ConditionList", list.Children[0])
	}
	if got := inner.Children[0].(*Condition).Operator; got != ">=" {
		t.Fatalf("alias operator re-serialized as %q, want verbatim \">=\"", got)
	}

	data, err := first.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	second, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON(round-tripped): %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("round trip drifted:\nfirst  %#v\nsecond %#v", first, second)
	}
}

func TestListFromMapErrors(t *testing.T) {
	cond := map[string]any{"type": "condition", "attribute_name": "a", "operator": "eq", "reference_value": 1}

	tests := []struct {
		name string
		m    map[string]any
	}{
		{name: "missing combinator", m: map[string]any{"type": "list", "children": []any{}}},
		{name: "bad combinator", m: map[string]any{"type": "list", "combinator": "XOR", "children": []any{}}},
		{name: "missing children", m: map[string]any{"type": "list", "combinator": "AND"}},
		{name: "children not array", m: map[string]any{"type": "list", "combinator": "AND", "children": "nope"}},
		{name: "child not object", m: map[string]any{"type": "list", "combinator": "AND", "children": []any{"nope"}}},
		{name: "child missing discriminator", m: map[string]any{"type": "list", "combinator": "AND", "children": []any{map[string]any{"operator": "eq"}}}},
		{name: "nested bad child", m: map[string]any{"type": "list", "combinator": "AND", "children": []any{map[string]any{"type": "list", "combinator": "AND", "children": []any{map[string]any{"type": "condition"}}}}}},
		{name: "valid child wrong sibling", m: map[string]any{"type": "list", "combinator": "OR", "children": []any{cond, map[string]any{"type": "widget"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ConditionListFromMap(tt.m); !errors.Is(err, ErrMalformedCondition) {
				t.Fatalf("error = %v, want ErrMalformedCondition", err)
			}
		})
	}
}

func TestEvaluateDeepNesting(t *testing.T) {
	// AND(OR(AND(OR(leaf)))) — a thin five-level tree.
	leaf := mustCondition(t, "ok", OpEq, true)
	node := Node(leaf)
	for i := 0; i < 4; i++ {
		comb := And
		if i%2 == 0 {
			comb = Or
		}
		wrapped, err := NewConditionList(comb, node)
		if err != nil {
			t.Fatalf("NewConditionList: %v", err)
		}
		node = wrapped
	}

	got, err := node.Evaluate(MapResolver{"ok": true})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Fatal("got false, want true")
	}
}
