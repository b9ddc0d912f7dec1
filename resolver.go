package condgate

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Resolver produces host attribute values by name. Hosts are read through
// this interface only; the package never reflects over caller structs.
// Implementations return ok=false when the attribute has no value, which
// Evaluate reports as ErrAttributeNotFound.
type Resolver interface {
	Resolve(attribute string) (value any, ok bool)
}

// ResolverFunc adapts a plain function to the Resolver interface, the usual
// way to expose struct fields or computed attributes:
//
//	r := condgate.ResolverFunc(func(attr string) (any, bool) {
//		switch attr {
//		case "age":
//			return user.Age, true
//		}
//		return nil, false
//	})
type ResolverFunc func(attribute string) (any, bool)

func (f ResolverFunc) Resolve(attribute string) (any, bool) { return f(attribute) }

// MapResolver reads attributes from a map host. A literal key wins; failing
// that, dotted names traverse nested maps, so "profile.active" reaches
// m["profile"]["active"].
type MapResolver map[string]any

func (m MapResolver) Resolve(attribute string) (any, bool) {
	if v, ok := m[attribute]; ok {
		return v, true
	}
	if !strings.Contains(attribute, ".") {
		return nil, false
	}
	var current any = map[string]any(m)
	for _, segment := range strings.Split(attribute, ".") {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

// JSONResolver resolves attributes against a raw JSON document. Attribute
// names are gjson paths, so dotted names address nested objects without
// decoding the whole document first.
type JSONResolver struct {
	doc []byte
}

func NewJSONResolver(doc []byte) JSONResolver {
	return JSONResolver{doc: doc}
}

func (r JSONResolver) Resolve(attribute string) (any, bool) {
	res := gjson.GetBytes(r.doc, attribute)
	if !res.Exists() {
		return nil, false
	}
	return gjsonValue(res), true
}

// gjsonValue converts a gjson result into the JSON value domain the
// operators work on.
func gjsonValue(res gjson.Result) any {
	switch res.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return res.Float()
	case gjson.String:
		return res.String()
	default:
		if res.IsArray() {
			raw := res.Array()
			out := make([]any, len(raw))
			for i, item := range raw {
				out[i] = gjsonValue(item)
			}
			return out
		}
		if res.IsObject() {
			out := make(map[string]any)
			res.ForEach(func(key, value gjson.Result) bool {
				out[key.String()] = gjsonValue(value)
				return true
			})
			return out
		}
		return res.Value()
	}
}
