package condgate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
)

// Operator names a comparison in the registry. Conditions keep the token
// they were built with; aliases such as "==" or "not in" normalize to the
// canonical tokens below only at lookup time.
type Operator string

// Canonical operator tokens.
const (
	OpEq         Operator = "eq"
	OpNeq        Operator = "neq"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpRegex      Operator = "regex"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpSemVerGt   Operator = "semver_gt"
	OpSemVerLt   Operator = "semver_lt"
)

// OperatorFunc compares a resolved host value against a condition's
// reference value. Implementations report operands they cannot compare with
// ErrTypeMismatch; equality-style operators return false instead of erroring.
type OperatorFunc func(actual, reference any) (bool, error)

var (
	registryMu sync.RWMutex
	registry   = map[Operator]OperatorFunc{
		OpEq:         opEquals,
		OpNeq:        opNotEquals,
		OpGt:         orderingOp(func(c int) bool { return c > 0 }),
		OpGte:        orderingOp(func(c int) bool { return c >= 0 }),
		OpLt:         orderingOp(func(c int) bool { return c < 0 }),
		OpLte:        orderingOp(func(c int) bool { return c <= 0 }),
		OpContains:   opContainsFn,
		OpStartsWith: affixOp(strings.HasPrefix),
		OpEndsWith:   affixOp(strings.HasSuffix),
		OpRegex:      opRegexFn,
		OpIn:         opInFn,
		OpNotIn:      opNotInFn,
		OpSemVerGt:   semverOp(func(a, b *semver.Version) bool { return a.GreaterThan(b) }),
		OpSemVerLt:   semverOp(func(a, b *semver.Version) bool { return a.LessThan(b) }),
	}

	// regexCache keeps compiled patterns for the hot evaluation path.
	// Values are *regexp.Regexp.
	regexCache sync.Map
)

// Register installs fn under the given token, replacing any previous entry.
// Adding an operator is exactly one registry entry; the token becomes usable
// in conditions immediately.
func Register(op Operator, fn OperatorFunc) error {
	if strings.TrimSpace(string(op)) == "" {
		return fmt.Errorf("%w: empty operator token", ErrMalformedCondition)
	}
	if fn == nil {
		return fmt.Errorf("%w: nil operator func for %q", ErrMalformedCondition, op)
	}
	registryMu.Lock()
	registry[normalizeOperator(op)] = fn
	registryMu.Unlock()
	return nil
}

func lookupOperator(op Operator) (OperatorFunc, error) {
	registryMu.RLock()
	fn, ok := registry[normalizeOperator(op)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
	return fn, nil
}

func normalizeOperator(op Operator) Operator {
	switch strings.ToLower(strings.TrimSpace(string(op))) {
	case "==", "eq", "equals":
		return OpEq
	case "!=", "neq", "not_equals":
		return OpNeq
	case ">", "gt":
		return OpGt
	case ">=", "gte":
		return OpGte
	case "<", "lt":
		return OpLt
	case "<=", "lte":
		return OpLte
	case "contains":
		return OpContains
	case "starts_with", "startswith":
		return OpStartsWith
	case "ends_with", "endswith":
		return OpEndsWith
	case "regex", "matches":
		return OpRegex
	case "in", "in_list":
		return OpIn
	case "not_in", "not in", "not_in_list", "nin":
		return OpNotIn
	case "semver_gt", "version_gt":
		return OpSemVerGt
	case "semver_lt", "version_lt":
		return OpSemVerLt
	default:
		return op
	}
}

// ---- equality ----

func opEquals(actual, reference any) (bool, error) {
	return looseEqual(actual, reference), nil
}

func opNotEquals(actual, reference any) (bool, error) {
	return !looseEqual(actual, reference), nil
}

// looseEqual compares across JSON-decoded and native Go representations:
// every numeric type compares as float64, strings as strings, bools as
// bools, slices element-wise. Incomparable pairings are simply not equal.
func looseEqual(actual, reference any) bool {
	if actual == nil || reference == nil {
		return actual == nil && reference == nil
	}
	if a, ok := toFloat64(actual); ok {
		b, ok := toFloat64(reference)
		return ok && a == b
	}
	if a, ok := toString(actual); ok {
		b, ok := toString(reference)
		return ok && a == b
	}
	if a, ok := actual.(bool); ok {
		b, ok := reference.(bool)
		return ok && a == b
	}
	if a, ok := toSlice(actual); ok {
		b, ok := toSlice(reference)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !looseEqual(a[i], b[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// ---- ordering ----

func orderingOp(keep func(cmp int) bool) OperatorFunc {
	return func(actual, reference any) (bool, error) {
		cmp, err := orderCompare(actual, reference)
		if err != nil {
			return false, err
		}
		return keep(cmp), nil
	}
}

func orderCompare(actual, reference any) (int, error) {
	if a, ok := toFloat64(actual); ok {
		b, ok := toFloat64(reference)
		if !ok {
			return 0, fmt.Errorf("%w: cannot order %T against %T", ErrTypeMismatch, actual, reference)
		}
		switch {
		case a < b:
			return -1, nil
		case a > b:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a, ok := toString(actual); ok {
		b, ok := toString(reference)
		if !ok {
			return 0, fmt.Errorf("%w: cannot order %T against %T", ErrTypeMismatch, actual, reference)
		}
		return compareStrings(a, b), nil
	}
	return 0, fmt.Errorf("%w: cannot order %T against %T", ErrTypeMismatch, actual, reference)
}

// compareStrings orders chronologically when both sides parse as the same
// temporal kind (instants or clock times), lexicographically otherwise.
func compareStrings(a, b string) int {
	if ta, ka := parseTemporal(a); ka != temporalNone {
		if tb, kb := parseTemporal(b); kb == ka {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a, b)
}

type temporalKind int

const (
	temporalNone temporalKind = iota
	temporalInstant // RFC 3339 timestamps, naive datetimes, plain dates
	temporalClock   // wall-clock times without a date
)

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
}

func parseTemporal(s string) (time.Time, temporalKind) {
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, temporalInstant
		}
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, temporalClock
		}
	}
	return time.Time{}, temporalNone
}

// ---- containment ----

func opContainsFn(actual, reference any) (bool, error) {
	switch host := actual.(type) {
	case string:
		needle, ok := toString(reference)
		if !ok {
			return false, fmt.Errorf("%w: contains on a string needs a string reference, got %T", ErrTypeMismatch, reference)
		}
		return strings.Contains(host, needle), nil
	case map[string]any:
		key, ok := coerceString(reference)
		if !ok {
			return false, fmt.Errorf("%w: contains on a map needs a scalar key, got %T", ErrTypeMismatch, reference)
		}
		_, present := host[key]
		return present, nil
	}
	if items, ok := toSlice(actual); ok {
		for _, item := range items {
			if looseEqual(item, reference) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w: contains needs a string, slice or map host value, got %T", ErrTypeMismatch, actual)
}

func opInFn(actual, reference any) (bool, error) {
	if items, ok := toSlice(reference); ok {
		for _, item := range items {
			if looseEqual(actual, item) {
				return true, nil
			}
		}
		return false, nil
	}
	if haystack, ok := toString(reference); ok {
		needle, ok := coerceString(actual)
		if !ok {
			return false, fmt.Errorf("%w: in on a string reference needs a scalar value, got %T", ErrTypeMismatch, actual)
		}
		return strings.Contains(haystack, needle), nil
	}
	return false, fmt.Errorf("%w: in needs a list or string reference, got %T", ErrTypeMismatch, reference)
}

func opNotInFn(actual, reference any) (bool, error) {
	ok, err := opInFn(actual, reference)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// ---- strings ----

func affixOp(match func(s, affix string) bool) OperatorFunc {
	return func(actual, reference any) (bool, error) {
		a, ok := coerceString(actual)
		if !ok {
			return false, fmt.Errorf("%w: expected a string-like value, got %T", ErrTypeMismatch, actual)
		}
		b, ok := coerceString(reference)
		if !ok {
			return false, fmt.Errorf("%w: expected a string-like reference, got %T", ErrTypeMismatch, reference)
		}
		return match(a, b), nil
	}
}

func opRegexFn(actual, reference any) (bool, error) {
	pattern, ok := toString(reference)
	if !ok {
		return false, fmt.Errorf("%w: regex pattern must be a string, got %T", ErrTypeMismatch, reference)
	}
	subject, ok := coerceString(actual)
	if !ok {
		return false, fmt.Errorf("%w: regex subject must be string-like, got %T", ErrTypeMismatch, actual)
	}
	rx, err := compiledRegex(pattern)
	if err != nil {
		// Patterns are checked at construction; only hand-built
		// conditions reach this.
		return false, fmt.Errorf("%w: invalid regex pattern %q", ErrTypeMismatch, pattern)
	}
	return rx.MatchString(subject), nil
}

func compiledRegex(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		if rx, ok := cached.(*regexp.Regexp); ok {
			return rx, nil
		}
	}
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, rx)
	return rx, nil
}

// ---- semver ----

func semverOp(cmp func(a, b *semver.Version) bool) OperatorFunc {
	return func(actual, reference any) (bool, error) {
		a, ok := toString(actual)
		if !ok {
			return false, fmt.Errorf("%w: semver comparison needs string versions, got %T", ErrTypeMismatch, actual)
		}
		b, ok := toString(reference)
		if !ok {
			return false, fmt.Errorf("%w: semver comparison needs string versions, got %T", ErrTypeMismatch, reference)
		}
		av, err := semver.NewVersion(a)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a semantic version", ErrTypeMismatch, a)
		}
		bv, err := semver.NewVersion(b)
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a semantic version", ErrTypeMismatch, b)
		}
		return cmp(av, bv), nil
	}
}

// ---- coercions ----

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// coerceString renders strings and numbers as text. Bools and composites
// stay out so "true" never silently matches true.
func coerceString(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return n, true
	case json.Number:
		return n.String(), true
	case int:
		return strconv.Itoa(n), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	default:
		return "", false
	}
}

func toSlice(v any) ([]any, bool) {
	switch items := v.(type) {
	case []any:
		return items, true
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(items))
		for i, n := range items {
			out[i] = n
		}
		return out, true
	case []int64:
		out := make([]any, len(items))
		for i, n := range items {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(items))
		for i, n := range items {
			out[i] = n
		}
		return out, true
	case []bool:
		out := make([]any, len(items))
		for i, b := range items {
			out[i] = b
		}
		return out, true
	default:
		return nil, false
	}
}
