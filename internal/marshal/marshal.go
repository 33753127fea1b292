// Package marshal translates between host values and wireval.Value
// using a descriptor.Descriptor as the primary guide, with tag
// disambiguation whenever the descriptor is descriptor.KindAny.
package marshal

import (
	"fmt"
	"math"
	"time"

	"github.com/oriys/jsiihost/internal/descriptor"
	"github.com/oriys/jsiihost/internal/jerr"
	"github.com/oriys/jsiihost/internal/wireval"
)

// RefAllocator lets the marshaler turn a host-originated interface
// implementation into a $jsii.byref handle, without marshal depending
// on the whole registry package (it only needs this one capability).
// internal/registry.Registry satisfies it.
type RefAllocator interface {
	// HandleFor returns the existing handle for obj if tracked, else
	// mints and registers a new one.
	HandleFor(obj any, fqns []string) string
}

// Marshaler converts host values to and from wire values.
type Marshaler struct {
	Refs RefAllocator
}

func New(refs RefAllocator) *Marshaler {
	return &Marshaler{Refs: refs}
}

// ToWire converts a host value to its wire representation per the
// given descriptor.
func (m *Marshaler) ToWire(v any, d descriptor.Descriptor) (wireval.Value, error) {
	if v == nil {
		return wireval.Null, nil
	}

	switch d.Kind {
	case descriptor.KindPrimitiveString:
		s, ok := v.(string)
		if !ok {
			return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("expected string, got %T", v)}
		}
		return wireval.String(s), nil

	case descriptor.KindPrimitiveNumber:
		n, err := toFloat(v)
		if err != nil {
			return wireval.Value{}, err
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return wireval.Value{}, &jerr.MarshalError{Reason: "numeric NaN/Inf cannot be carried over JSON"}
		}
		return wireval.Number(n), nil

	case descriptor.KindPrimitiveBoolean:
		b, ok := v.(bool)
		if !ok {
			return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("expected bool, got %T", v)}
		}
		return wireval.Bool(b), nil

	case descriptor.KindPrimitiveDate:
		t, ok := v.(time.Time)
		if !ok {
			return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("expected time.Time, got %T", v)}
		}
		return wireval.DateOf(t.UTC().Format("2006-01-02T15:04:05.000Z")), nil

	case descriptor.KindEnum:
		member, ok := v.(string)
		if !ok {
			return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("expected enum member string, got %T", v)}
		}
		return wireval.EnumOf(d.FQN, member), nil

	case descriptor.KindClass:
		handle, fqns, ok := refOf(v)
		if !ok {
			if m.Refs == nil {
				return wireval.Value{}, &jerr.MarshalError{Reason: "no registry available to track host-originated object"}
			}
			handle = m.Refs.HandleFor(v, []string{d.FQN})
			fqns = nil
		}
		return wireval.Ref(handle, fqns...), nil

	case descriptor.KindStruct:
		data, ok := v.(map[string]any)
		if !ok {
			return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("expected struct fields map, got %T", v)}
		}
		fields := make(map[string]wireval.Value, len(data))
		for name, fd := range d.Fields {
			fv, present := data[name]
			if !present {
				if fd.Optional {
					continue
				}
				return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("missing required field %q of %s", name, d.FQN)}
			}
			wv, err := m.ToWire(fv, fd)
			if err != nil {
				return wireval.Value{}, err
			}
			fields[name] = wv
		}
		return wireval.StructOf(d.FQN, fields), nil

	case descriptor.KindCollectionArray:
		items, ok := toSlice(v)
		if !ok {
			return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("expected slice, got %T", v)}
		}
		out := make([]wireval.Value, len(items))
		for i, item := range items {
			wv, err := m.ToWire(item, *d.Element)
			if err != nil {
				return wireval.Value{}, err
			}
			out[i] = wv
		}
		return wireval.Value{Tag: wireval.TagArray, Array: out}, nil

	case descriptor.KindCollectionMap:
		mv, ok := v.(map[string]any)
		if !ok {
			return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("expected map[string]any, got %T", v)}
		}
		out := make(map[string]wireval.Value, len(mv))
		for k, item := range mv {
			wv, err := m.ToWire(item, *d.Element)
			if err != nil {
				return wireval.Value{}, err
			}
			out[k] = wv
		}
		return wireval.MapOf(out), nil

	case descriptor.KindUnion:
		for _, alt := range d.Alternatives {
			if acceptsHostValue(v, alt) {
				return m.ToWire(v, alt)
			}
		}
		return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("no union alternative accepts %T", v)}

	case descriptor.KindAny:
		return m.anyToWire(v)

	default:
		return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("unknown descriptor kind %v", d.Kind)}
	}
}

// FromWire converts a wire value to a host value per the given
// descriptor.
func (m *Marshaler) FromWire(w wireval.Value, d descriptor.Descriptor) (any, error) {
	if w.Tag == wireval.TagNull {
		return nil, nil
	}

	switch d.Kind {
	case descriptor.KindPrimitiveString, descriptor.KindPrimitiveNumber, descriptor.KindPrimitiveBoolean:
		if w.Tag != wireval.TagPrimitive {
			return nil, &jerr.MarshalError{Reason: fmt.Sprintf("expected primitive for %s, got tag %v", d.Kind, w.Tag)}
		}
		return w.Primitive, nil

	case descriptor.KindPrimitiveDate:
		if w.Tag != wireval.TagDate {
			return nil, &jerr.MarshalError{Reason: "expected $jsii.date value"}
		}
		t, err := time.Parse("2006-01-02T15:04:05.000Z", w.Date)
		if err != nil {
			return nil, &jerr.MarshalError{Reason: "malformed ISO-8601 date: " + err.Error()}
		}
		return t, nil

	case descriptor.KindEnum:
		if w.Tag != wireval.TagEnum {
			return nil, &jerr.MarshalError{Reason: "expected $jsii.enum value"}
		}
		return w.Enum.Member, nil

	case descriptor.KindClass:
		if w.Tag != wireval.TagByRef {
			return nil, &jerr.MarshalError{Reason: "expected $jsii.byref value"}
		}
		return w.Ref, nil

	case descriptor.KindStruct:
		if w.Tag != wireval.TagStruct {
			return nil, &jerr.MarshalError{Reason: "expected $jsii.struct value"}
		}
		out := make(map[string]any, len(d.Fields))
		for name, fd := range d.Fields {
			fw, present := w.Struct.Data[name]
			if !present {
				if fd.Optional {
					continue
				}
				return nil, &jerr.MarshalError{Reason: fmt.Sprintf("missing required field %q of %s", name, d.FQN)}
			}
			fv, err := m.FromWire(fw, fd)
			if err != nil {
				return nil, err
			}
			out[name] = fv
		}
		return out, nil

	case descriptor.KindCollectionArray:
		if w.Tag != wireval.TagArray {
			return nil, &jerr.MarshalError{Reason: "expected array value"}
		}
		out := make([]any, len(w.Array))
		for i, item := range w.Array {
			v, err := m.FromWire(item, *d.Element)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case descriptor.KindCollectionMap:
		if w.Tag != wireval.TagMap {
			return nil, &jerr.MarshalError{Reason: "expected map value"}
		}
		out := make(map[string]any, len(w.Map))
		for k, item := range w.Map {
			v, err := m.FromWire(item, *d.Element)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case descriptor.KindUnion:
		for _, alt := range d.Alternatives {
			if acceptsWireValue(w, alt) {
				return m.FromWire(w, alt)
			}
		}
		return nil, &jerr.MarshalError{Reason: "no union alternative accepts the wire value"}

	case descriptor.KindAny:
		return m.anyFromWire(w)

	default:
		return nil, &jerr.MarshalError{Reason: fmt.Sprintf("unknown descriptor kind %v", d.Kind)}
	}
}

// anyToWire marshals a value with no static descriptor: the Go runtime
// type of v discriminates.
func (m *Marshaler) anyToWire(v any) (wireval.Value, error) {
	switch t := v.(type) {
	case string:
		return wireval.String(t), nil
	case bool:
		return wireval.Bool(t), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return wireval.Value{}, &jerr.MarshalError{Reason: "numeric NaN/Inf cannot be carried over JSON"}
		}
		return wireval.Number(t), nil
	case int:
		return wireval.Number(float64(t)), nil
	case time.Time:
		return wireval.DateOf(t.UTC().Format("2006-01-02T15:04:05.000Z")), nil
	case []any:
		out := make([]wireval.Value, len(t))
		for i, item := range t {
			wv, err := m.anyToWire(item)
			if err != nil {
				return wireval.Value{}, err
			}
			out[i] = wv
		}
		return wireval.Value{Tag: wireval.TagArray, Array: out}, nil
	case map[string]any:
		out := make(map[string]wireval.Value, len(t))
		for k, item := range t {
			wv, err := m.anyToWire(item)
			if err != nil {
				return wireval.Value{}, err
			}
			out[k] = wv
		}
		return wireval.MapOf(out), nil
	default:
		if handle, fqns, ok := refOf(v); ok {
			return wireval.Ref(handle, fqns...), nil
		}
		return wireval.Value{}, &jerr.MarshalError{Reason: fmt.Sprintf("cannot marshal %T under an any descriptor", v)}
	}
}

// anyFromWire un-marshals a wire value with no static descriptor: the
// wire tag alone discriminates.
func (m *Marshaler) anyFromWire(w wireval.Value) (any, error) {
	switch w.Tag {
	case wireval.TagNull:
		return nil, nil
	case wireval.TagPrimitive:
		return w.Primitive, nil
	case wireval.TagByRef:
		return w.Ref, nil
	case wireval.TagStruct:
		out := make(map[string]any, len(w.Struct.Data))
		for k, item := range w.Struct.Data {
			v, err := m.anyFromWire(item)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case wireval.TagEnum:
		return w.Enum.Member, nil
	case wireval.TagDate:
		return time.Parse("2006-01-02T15:04:05.000Z", w.Date)
	case wireval.TagArray:
		out := make([]any, len(w.Array))
		for i, item := range w.Array {
			v, err := m.anyFromWire(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case wireval.TagMap:
		out := make(map[string]any, len(w.Map))
		for k, item := range w.Map {
			v, err := m.anyFromWire(item)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, &jerr.MarshalError{Reason: fmt.Sprintf("unknown wire tag %v", w.Tag)}
	}
}

// Proxy is implemented by any host proxy type (internal/registry.Proxy
// satisfies it) so marshal can find its handle without importing
// registry.
type Proxy interface {
	JsiiHandle() string
	JsiiInterfaces() []string
}

func refOf(v any) (handle string, fqns []string, ok bool) {
	if p, isProxy := v.(Proxy); isProxy {
		return p.JsiiHandle(), p.JsiiInterfaces(), true
	}
	return "", nil, false
}

// acceptsHostValue is the structural union-resolution predicate applied
// to host values.
func acceptsHostValue(v any, d descriptor.Descriptor) bool {
	switch d.Kind {
	case descriptor.KindPrimitiveString:
		_, ok := v.(string)
		return ok
	case descriptor.KindPrimitiveNumber:
		_, err := toFloat(v)
		return err == nil
	case descriptor.KindPrimitiveBoolean:
		_, ok := v.(bool)
		return ok
	case descriptor.KindPrimitiveDate:
		_, ok := v.(time.Time)
		return ok
	case descriptor.KindClass:
		_, _, ok := refOf(v)
		return ok
	case descriptor.KindStruct:
		_, ok := v.(map[string]any)
		return ok
	case descriptor.KindCollectionArray:
		_, ok := toSlice(v)
		return ok
	case descriptor.KindCollectionMap:
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

// acceptsWireValue is the structural union-resolution predicate applied
// to wire values: tagged form, primitive kind, or struct fqn match,
// never a type assertion.
func acceptsWireValue(w wireval.Value, d descriptor.Descriptor) bool {
	switch d.Kind {
	case descriptor.KindPrimitiveString, descriptor.KindPrimitiveNumber, descriptor.KindPrimitiveBoolean:
		return w.Tag == wireval.TagPrimitive
	case descriptor.KindPrimitiveDate:
		return w.Tag == wireval.TagDate
	case descriptor.KindEnum:
		return w.Tag == wireval.TagEnum
	case descriptor.KindClass:
		return w.Tag == wireval.TagByRef
	case descriptor.KindStruct:
		return w.Tag == wireval.TagStruct && (d.FQN == "" || w.Struct.FQN == d.FQN)
	case descriptor.KindCollectionArray:
		return w.Tag == wireval.TagArray
	case descriptor.KindCollectionMap:
		return w.Tag == wireval.TagMap
	default:
		return true
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, &jerr.MarshalError{Reason: fmt.Sprintf("expected a number, got %T", v)}
	}
}

func toSlice(v any) ([]any, bool) {
	items, ok := v.([]any)
	return items, ok
}
