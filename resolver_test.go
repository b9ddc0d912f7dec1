package condgate

import (
	"reflect"
	"testing"
)

func TestMapResolver(t *testing.T) {
	host := MapResolver{
		"age":        21,
		"profile":    map[string]any{"active": true, "labels": map[string]string{"team": "core"}},
		"dotted.key": "literal wins",
		"dotted":     map[string]any{"key": "traversal"},
	}

	tests := []struct {
		name      string
		attribute string
		want      any
		wantOK    bool
	}{
		{name: "top level", attribute: "age", want: 21, wantOK: true},
		{name: "nested map", attribute: "profile.active", want: true, wantOK: true},
		{name: "nested string map", attribute: "profile.labels.team", want: "core", wantOK: true},
		{name: "literal key beats traversal", attribute: "dotted.key", want: "literal wins", wantOK: true},
		{name: "missing top level", attribute: "plan", wantOK: false},
		{name: "missing nested leaf", attribute: "profile.missing", wantOK: false},
		{name: "traversal through non-map", attribute: "age.nested", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := host.Resolve(tt.attribute)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJSONResolver(t *testing.T) {
	doc := []byte(`{
		"age": 21,
		"name": "ada",
		"active": true,
		"deleted_at": null,
		"profile": {"tier": "vip", "scores": [1, 2, 3]},
		"tags": ["alpha", "beta"]
	}`)
	host := NewJSONResolver(doc)

	tests := []struct {
		name      string
		attribute string
		want      any
		wantOK    bool
	}{
		{name: "number", attribute: "age", want: float64(21), wantOK: true},
		{name: "string", attribute: "name", want: "ada", wantOK: true},
		{name: "bool", attribute: "active", want: true, wantOK: true},
		{name: "null resolves to nil", attribute: "deleted_at", want: nil, wantOK: true},
		{name: "nested", attribute: "profile.tier", want: "vip", wantOK: true},
		{name: "array", attribute: "tags", want: []any{"alpha", "beta"}, wantOK: true},
		{name: "nested array", attribute: "profile.scores", want: []any{float64(1), float64(2), float64(3)}, wantOK: true},
		{name: "object", attribute: "profile", want: map[string]any{"tier": "vip", "scores": []any{float64(1), float64(2), float64(3)}}, wantOK: true},
		{name: "missing", attribute: "plan", wantOK: false},
		{name: "missing nested", attribute: "profile.plan", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := host.Resolve(tt.attribute)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestJSONResolverWithConditions(t *testing.T) {
	doc := []byte(`{"user": {"age": 21, "country": "DE"}}`)

	adult := mustCondition(t, "user.age", OpGte, 18)
	got, err := adult.Evaluate(NewJSONResolver(doc))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Fatal("got false, want true")
	}
}

func TestResolverFunc(t *testing.T) {
	type account struct {
		Age  int
		Plan string
	}
	acct := account{Age: 30, Plan: "pro"}

	host := ResolverFunc(func(attribute string) (any, bool) {
		switch attribute {
		case "age":
			return acct.Age, true
		case "plan":
			return acct.Plan, true
		}
		return nil, false
	})

	cond := mustCondition(t, "plan", OpIn, []string{"pro", "enterprise"})
	got, err := cond.Evaluate(host)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Fatal("got false, want true")
	}

	if _, err := mustCondition(t, "tier", OpEq, "x").Evaluate(host); err == nil {
		t.Fatal("expected ErrAttributeNotFound for unmapped attribute")
	}
}
