// Package evaluation provides server-side rule set evaluation.
// It decides a rule set for a given subject, handling the enabled gate,
// condition trees, and deterministic sampling.
//
// All evaluation functions are pure (no I/O, no global state), so they
// test without mocks: build a snapshot.Compiled, build a Subject, call
// EvaluateRuleSet with a fixed salt, assert on the Result.
package evaluation

import (
	"time"

	condgate "github.com/condgate/condgate"
	"github.com/condgate/condgate/internal/sampling"
	"github.com/condgate/condgate/internal/snapshot"
)

// Evaluation reasons, in decision order. Exactly one is set per Result.
const (
	ReasonMatch      = "match"       // rule matched and subject is in sample
	ReasonNoMatch    = "no_match"    // rule evaluated cleanly to false
	ReasonDisabled   = "disabled"    // rule set is switched off
	ReasonSampledOut = "sampled_out" // rule matched but subject hashed outside the sample
	ReasonError      = "error"       // rule could not be evaluated
	ReasonNotFound   = "not_found"   // no such rule set in the snapshot
)

// Subject is the entity a rule set is decided for. Key identifies the
// subject for sampling; Attributes feed the condition tree.
type Subject struct {
	Key        string         `json:"key"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Result is the decision for a single rule set.
type Result struct {
	Key     string `json:"key"`
	Matched bool   `json:"matched"`
	Reason  string `json:"reason"`
	Error   string `json:"error,omitempty"`
}

// EvaluateResponse is the payload of the evaluate endpoint.
type EvaluateResponse struct {
	Results     []Result  `json:"results"`
	ETag        string    `json:"etag"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// EvaluateRuleSet decides one compiled rule set for a subject.
//
// Decision order (first applicable wins):
//  1. Enabled=false → Reason "disabled"
//  2. Stored rule failed to parse → Reason "error"
//  3. Rule evaluates with an error → Reason "error" (missing attributes
//     land here: an absent attribute is an evaluation error, not a miss)
//  4. Rule evaluates to false → Reason "no_match"
//  5. Subject outside sample → Reason "sampled_out"
//  6. Otherwise → Matched=true, Reason "match"
//
// A rule set without a rule matches every subject and goes straight to
// the sample check. Sampling only hashes when 0 < Sample < 100; an empty
// subject key is excluded from partial samples.
func EvaluateRuleSet(c snapshot.Compiled, subject Subject, salt string) Result {
	result := Result{
		Key:     c.RuleSet.Key,
		Matched: false,
	}

	if !c.RuleSet.Enabled {
		result.Reason = ReasonDisabled
		return result
	}

	if c.Err != nil {
		result.Reason = ReasonError
		result.Error = c.Err.Error()
		return result
	}

	if c.Node != nil {
		match, err := c.Node.Evaluate(subjectResolver(subject))
		if err != nil {
			result.Reason = ReasonError
			result.Error = err.Error()
			return result
		}
		if !match {
			result.Reason = ReasonNoMatch
			return result
		}
	}

	in, err := sampling.InSample(subject.Key, c.RuleSet.Key, c.RuleSet.Sample, salt)
	if err != nil {
		result.Reason = ReasonError
		result.Error = err.Error()
		return result
	}
	if !in {
		result.Reason = ReasonSampledOut
		return result
	}

	result.Matched = true
	result.Reason = ReasonMatch
	return result
}

// EvaluateAll decides rule sets from a snapshot for one subject.
//
// When keys is empty every rule set in the snapshot is evaluated; order
// follows map iteration and is non-deterministic. When keys is given,
// results come back in that order, and keys missing from the snapshot
// produce a Result with Reason "not_found" rather than being dropped, so
// callers can line responses up with requests.
func EvaluateAll(snap *snapshot.Snapshot, subject Subject, salt string, keys []string) []Result {
	var results []Result
	if len(keys) > 0 {
		results = make([]Result, 0, len(keys))
		for _, key := range keys {
			if c, ok := snap.Compiled(key); ok {
				results = append(results, EvaluateRuleSet(c, subject, salt))
			} else {
				results = append(results, Result{Key: key, Reason: ReasonNotFound})
			}
		}
	} else {
		results = make([]Result, 0, len(snap.RuleSets))
		for key := range snap.RuleSets {
			if c, ok := snap.Compiled(key); ok {
				results = append(results, EvaluateRuleSet(c, subject, salt))
			}
		}
	}

	return results
}

// subjectResolver builds the attribute source the condition tree reads.
// The subject key is exposed as the "key" attribute unless the caller
// supplied their own.
func subjectResolver(subject Subject) condgate.Resolver {
	host := make(condgate.MapResolver, len(subject.Attributes)+1)
	if subject.Key != "" {
		host["key"] = subject.Key
	}
	for k, v := range subject.Attributes {
		host[k] = v
	}
	return host
}
