package condgate

import "errors"

// Sentinel errors returned by construction, serialization and evaluation.
// Raise sites wrap them with fmt.Errorf("%w: ...") so callers match with
// errors.Is and still see the offending token, attribute or value.
var (
	// ErrUnknownOperator reports an operator token with no registry entry.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrAttributeNotFound reports a host attribute the resolver could not
	// produce a value for.
	ErrAttributeNotFound = errors.New("attribute not found")

	// ErrTypeMismatch reports operand types an operator cannot compare,
	// such as ordering a number against a string.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnserializableValue reports a reference value outside the
	// serializable domain (nil, bool, string, number, or a flat slice of
	// those).
	ErrUnserializableValue = errors.New("unserializable value")

	// ErrMalformedCondition reports serialized input that does not decode
	// to a valid condition or condition list.
	ErrMalformedCondition = errors.New("malformed condition")
)
