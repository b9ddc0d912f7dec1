// Package condgate evaluates boolean condition trees against arbitrary hosts.
//
// The two building blocks are Condition, a single attribute/operator/value
// predicate, and ConditionList, an ordered group of children folded with one
// AND or OR combinator. Lists nest to any depth, so mixed logic is written as
// nested lists rather than per-child combinators:
//
//	adult, _ := condgate.NewCondition("age", condgate.OpGte, 18)
//	resident, _ := condgate.NewCondition("country", condgate.OpEq, "DE")
//	vip, _ := condgate.NewCondition("tier", condgate.OpEq, "vip")
//	inner, _ := condgate.NewConditionList(condgate.And, adult, resident)
//	rule, _ := condgate.NewConditionList(condgate.Or, inner, vip)
//
//	ok, err := rule.Evaluate(condgate.MapResolver{"age": 21, "country": "DE"})
//
// Hosts are read through the Resolver interface, never by struct reflection.
// MapResolver covers map-shaped hosts with dotted paths ("profile.active"),
// JSONResolver reads raw JSON documents, and ResolverFunc adapts anything
// else.
//
// Trees serialize to a plain-data form with a "type" discriminator on every
// node and round-trip losslessly through Map/FromMap and JSON/FromJSON.
// Operators live in a registry keyed by token; Register adds custom ones.
package condgate
