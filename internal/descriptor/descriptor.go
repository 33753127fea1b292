// Package descriptor carries the static type information that drives
// value marshaling across the host/kernel boundary.
//
// A Descriptor is produced by generated host bindings at each call site
// (an argument, a return value, a struct field); the marshaler never
// infers one from a Go value. Only the Any kind has no generated origin —
// it means "let the wire shape alone discriminate".
package descriptor

// Kind identifies the shape of a Descriptor.
type Kind int

const (
	// KindAny defers to the wire tag: the value carries its own
	// discriminator ($jsii.byref, $jsii.struct, $jsii.enum, $jsii.date,
	// or a bare JSON primitive/array/object).
	KindAny Kind = iota
	KindPrimitiveString
	KindPrimitiveNumber
	KindPrimitiveBoolean
	KindPrimitiveDate
	KindEnum
	KindClass
	KindStruct
	KindCollectionArray
	KindCollectionMap
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindPrimitiveString:
		return "string"
	case KindPrimitiveNumber:
		return "number"
	case KindPrimitiveBoolean:
		return "boolean"
	case KindPrimitiveDate:
		return "date"
	case KindEnum:
		return "enum"
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindCollectionArray:
		return "array"
	case KindCollectionMap:
		return "map"
	case KindUnion:
		return "union"
	default:
		return "unknown"
	}
}

// Descriptor describes the static type of one value at a marshal site.
type Descriptor struct {
	Kind Kind

	// FQN names the class/interface (KindClass), enum (KindEnum), or
	// struct (KindStruct) this descriptor refers to.
	FQN string

	// Element is the element descriptor for KindCollectionArray and
	// KindCollectionMap (map keys are always strings).
	Element *Descriptor

	// Fields describes a struct's members by name, for KindStruct.
	Fields map[string]Descriptor

	// Alternatives lists the candidate descriptors for KindUnion, in the
	// order the IDL declared them. Union resolution tries them in this
	// order and takes the first structural match.
	Alternatives []Descriptor

	// Optional marks a struct field or argument that may be entirely
	// absent on the wire.
	Optional bool
}

// Any is the descriptor used when the static type is unknown to the
// call site and the wire tag must discriminate instead.
var Any = Descriptor{Kind: KindAny}

// Primitive returns a descriptor for one of the three JSON primitive
// kinds.
func Primitive(kind Kind) Descriptor {
	return Descriptor{Kind: kind}
}

// Class returns a descriptor for a by-reference class or interface FQN.
func Class(fqn string) Descriptor {
	return Descriptor{Kind: KindClass, FQN: fqn}
}

// Enum returns a descriptor for an enum FQN.
func Enum(fqn string) Descriptor {
	return Descriptor{Kind: KindEnum, FQN: fqn}
}

// Struct returns a descriptor for a by-value struct FQN with the given
// field descriptors.
func Struct(fqn string, fields map[string]Descriptor) Descriptor {
	return Descriptor{Kind: KindStruct, FQN: fqn, Fields: fields}
}

// ArrayOf returns a descriptor for an ordered collection of elem.
func ArrayOf(elem Descriptor) Descriptor {
	return Descriptor{Kind: KindCollectionArray, Element: &elem}
}

// MapOf returns a descriptor for a string-keyed mapping of elem.
func MapOf(elem Descriptor) Descriptor {
	return Descriptor{Kind: KindCollectionMap, Element: &elem}
}

// UnionOf returns a descriptor that accepts any of alts, tried in order.
func UnionOf(alts ...Descriptor) Descriptor {
	return Descriptor{Kind: KindUnion, Alternatives: alts}
}

// Optional marks d as an optional field/argument and returns it.
func Optional(d Descriptor) Descriptor {
	d.Optional = true
	return d
}
