// Package wireval implements the tagged wire-value vocabulary: the
// dynamic variant type consumers match on whenever the static
// descriptor is "any" (descriptor.KindAny), and the shape every
// marshaled value eventually collapses into before it hits the wire
// codec.
//
// The design mirrors a Type+Payload tagging idiom generalized from a
// single integer type tag to a family of "$jsii.*" string keys, one
// per wire variant.
package wireval

import (
	"encoding/json"
	"fmt"
)

// Tag identifies which wire shape a Value holds.
type Tag int

const (
	TagNull Tag = iota
	TagPrimitive
	TagByRef
	TagStruct
	TagEnum
	TagDate
	TagArray
	TagMap
)

// ByRef is the `{ "$jsii.byref": <handle>, "$jsii.interfaces"?: [...] }`
// shape.
type ByRef struct {
	Handle     string   `json:"$jsii.byref"`
	Interfaces []string `json:"$jsii.interfaces,omitempty"`
}

// Struct is the `{ "$jsii.struct": { "fqn": ..., "data": {...} } }`
// shape.
type Struct struct {
	FQN  string           `json:"fqn"`
	Data map[string]Value `json:"data"`
}

// Enum is the `{ "$jsii.enum": "<fqn>/<MEMBER>" }` shape.
type Enum struct {
	FQN    string
	Member string
}

// Value is a dynamically-tagged wire value: exactly one of a primitive,
// a by-reference object, a by-value struct, an enum member, a date, an
// ordered array, or a string-keyed map. A zero Value is TagNull (JSON
// null, treated as equivalent to "absent").
type Value struct {
	Tag       Tag
	Primitive any // string | float64 | bool
	Ref       ByRef
	Struct    Struct
	Enum      Enum
	Date      string // ISO-8601 UTC
	Array     []Value
	Map       map[string]Value
}

// Null is the wire-null value.
var Null = Value{Tag: TagNull}

func String(s string) Value  { return Value{Tag: TagPrimitive, Primitive: s} }
func Number(n float64) Value { return Value{Tag: TagPrimitive, Primitive: n} }
func Bool(b bool) Value      { return Value{Tag: TagPrimitive, Primitive: b} }

func Ref(handle string, interfaces ...string) Value {
	return Value{Tag: TagByRef, Ref: ByRef{Handle: handle, Interfaces: interfaces}}
}

func StructOf(fqn string, data map[string]Value) Value {
	return Value{Tag: TagStruct, Struct: Struct{FQN: fqn, Data: data}}
}

func EnumOf(fqn, member string) Value {
	return Value{Tag: TagEnum, Enum: Enum{FQN: fqn, Member: member}}
}

func DateOf(iso8601 string) Value {
	return Value{Tag: TagDate, Date: iso8601}
}

func ArrayOf(items ...Value) Value {
	return Value{Tag: TagArray, Array: items}
}

func MapOf(m map[string]Value) Value {
	return Value{Tag: TagMap, Map: m}
}

// MarshalJSON renders the Value in its wire form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Tag {
	case TagNull:
		return []byte("null"), nil
	case TagPrimitive:
		return json.Marshal(v.Primitive)
	case TagByRef:
		return json.Marshal(v.Ref)
	case TagStruct:
		return json.Marshal(struct {
			Struct Struct `json:"$jsii.struct"`
		}{v.Struct})
	case TagEnum:
		return json.Marshal(struct {
			Member string `json:"$jsii.enum"`
		}{fmt.Sprintf("%s/%s", v.Enum.FQN, v.Enum.Member)})
	case TagDate:
		return json.Marshal(struct {
			Date string `json:"$jsii.date"`
		}{v.Date})
	case TagArray:
		return json.Marshal(v.Array)
	case TagMap:
		return json.Marshal(v.Map)
	default:
		return nil, fmt.Errorf("wireval: unknown tag %d", v.Tag)
	}
}

// UnmarshalJSON discriminates the wire shape by structural inspection:
// tagged-object keys first, then plain JSON kind. An object carrying an
// unrecognized "$jsii.*" key is rejected rather than silently treated
// as a plain map.
func (v *Value) UnmarshalJSON(data []byte) error {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch t := probe.(type) {
	case nil:
		*v = Null
		return nil
	case string, float64, bool:
		*v = Value{Tag: TagPrimitive, Primitive: t}
		return nil
	case []any:
		arr := make([]Value, len(t))
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return err
		}
		for i, raw := range raws {
			if err := json.Unmarshal(raw, &arr[i]); err != nil {
				return err
			}
		}
		*v = Value{Tag: TagArray, Array: arr}
		return nil
	case map[string]any:
		if raw, ok := t["$jsii.byref"]; ok {
			handle, _ := raw.(string)
			var ref ByRef
			if err := json.Unmarshal(data, &ref); err != nil {
				return fmt.Errorf("wireval: malformed $jsii.byref: %w", err)
			}
			ref.Handle = handle
			*v = Value{Tag: TagByRef, Ref: ref}
			return nil
		}
		if _, ok := t["$jsii.struct"]; ok {
			var wrapper struct {
				Struct Struct `json:"$jsii.struct"`
			}
			if err := json.Unmarshal(data, &wrapper); err != nil {
				return fmt.Errorf("wireval: malformed $jsii.struct: %w", err)
			}
			*v = Value{Tag: TagStruct, Struct: wrapper.Struct}
			return nil
		}
		if raw, ok := t["$jsii.enum"]; ok {
			s, _ := raw.(string)
			fqn, member, err := splitEnum(s)
			if err != nil {
				return err
			}
			*v = Value{Tag: TagEnum, Enum: Enum{FQN: fqn, Member: member}}
			return nil
		}
		if raw, ok := t["$jsii.date"]; ok {
			s, _ := raw.(string)
			*v = Value{Tag: TagDate, Date: s}
			return nil
		}
		for k := range t {
			if len(k) > len("$jsii.") && k[:len("$jsii.")] == "$jsii." {
				return fmt.Errorf("wireval: unrecognized tagged value key %q", k)
			}
		}

		m := make(map[string]Value, len(t))
		var raws map[string]json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return err
		}
		for k, raw := range raws {
			var elem Value
			if err := json.Unmarshal(raw, &elem); err != nil {
				return err
			}
			m[k] = elem
		}
		*v = Value{Tag: TagMap, Map: m}
		return nil
	default:
		return fmt.Errorf("wireval: unrecognized JSON shape %T", probe)
	}
}

func splitEnum(s string) (fqn, member string, err error) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("wireval: malformed $jsii.enum value %q", s)
}
