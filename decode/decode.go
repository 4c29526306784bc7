// Package decode implements the memory decoder (§4.9): it reads a Value out
// of the inspected process for a given TypeLayout and address, following
// pointers, containers and aliases as the layout's recipe dictates. All
// addresses it touches are in the binary's own coordinate system; every
// byte actually read comes from oracle.Oracle, never straight off the mmap.
package decode

import (
	"math"

	"github.com/rudy-go/rudy/errors"
	"github.com/rudy-go/rudy/oracle"
	"github.com/rudy-go/rudy/types"
)

// Kind discriminates the variants of Value, flattening types.Kind/StdKind
// into the shapes a decoded value can actually take.
type Kind int

const (
	KindBool Kind = iota
	KindChar
	KindInt
	KindUint
	KindFloat
	KindUnit
	KindString
	KindArray
	KindTuple
	KindStruct
	KindVariant
	KindCEnum
	KindOption
	KindResult
	KindPointer
	KindMap
	KindOther
)

// Value is the tagged-union result of a decode. Only the field matching
// Kind is meaningful, the same discipline types.TypeLayout uses.
type Value struct {
	Kind     Kind
	Bool     bool
	Char     rune
	Int      int64
	Uint     uint64
	Float    float64
	Str      string
	Elements []Value
	Fields   []FieldValue
	Variant  *VariantValue
	CEnum    string
	Option   *Value // nil means None
	Result   *ResultValue
	Pointee  *Value // nil when the pointer/reference/smart pointer is null
	MapLen   uint64
	Other    string
}

type FieldValue struct {
	Name  string
	Value Value
}

type VariantValue struct {
	Name    string
	Payload Value
}

type ResultValue struct {
	Ok  bool
	Val Value
}

// Decoder reads Values out of one inspected process via o, re-entering
// resolver for any Alias a layout still carries (shallow_resolve leaves
// user-defined struct/enum fields as Alias nodes the decoder itself never
// needs — FullResolve is what the facade hands it — but a cyclic or
// self-referential type can still surface one mid-decode, so the fallback
// stays here rather than panicking on an unexpected Kind).
type Decoder struct {
	resolver *types.Resolver
	oracle   oracle.Oracle
}

func NewDecoder(resolver *types.Resolver, o oracle.Oracle) *Decoder {
	return &Decoder{resolver: resolver, oracle: o}
}

// Read implements §4.9's read(type_layout, address, oracle) -> Value.
func (d *Decoder) Read(layout types.TypeLayout, address uint64) (Value, error) {
	switch layout.Kind {
	case types.KindPrimitive:
		return d.readPrimitive(layout.Primitive, address)
	case types.KindStd:
		return d.readStd(layout.Std, address)
	case types.KindStruct:
		return d.readStruct(layout.Struct, address)
	case types.KindEnum:
		return d.readEnum(layout.Enum, address)
	case types.KindCEnum:
		return d.readCEnum(layout.CEnum, address)
	case types.KindAlias:
		full := d.resolver.FullResolve(layout.Alias)
		if full.IsAlias() {
			return Value{}, errors.E(errors.UnsupportedTypeConstruct, errors.TypeUnsupported, "alias did not resolve to a concrete layout")
		}
		return d.Read(full, address)
	default:
		return Value{Kind: KindOther, Other: layout.Other}, nil
	}
}

func (d *Decoder) bytes(address uint64, size int) ([]byte, error) {
	return oracle.Read(d.oracle, address, size)
}

func leUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (d *Decoder) readPrimitive(p types.PrimitiveKind, address uint64) (Value, error) {
	size, signed, isFloat := primitiveShape(p)

	switch p {
	case types.PrimUnit:
		return Value{Kind: KindUnit}, nil
	case types.PrimStr:
		// a bare &str type (as opposed to one reached through
		// StdLayout.Str) carries no independent length; nothing to read.
		return Value{Kind: KindString}, nil
	}

	b, err := d.bytes(address, size)
	if err != nil {
		return Value{}, err
	}

	if p == types.PrimBool {
		return Value{Kind: KindBool, Bool: b[0] != 0}, nil
	}
	if p == types.PrimChar {
		return Value{Kind: KindChar, Char: rune(leUint(b))}, nil
	}
	if isFloat {
		if size == 4 {
			return Value{Kind: KindFloat, Float: float64(math.Float32frombits(uint32(leUint(b))))}, nil
		}
		return Value{Kind: KindFloat, Float: math.Float64frombits(leUint(b))}, nil
	}

	u := leUint(b)
	if !signed {
		return Value{Kind: KindUint, Uint: u}, nil
	}
	return Value{Kind: KindInt, Int: signExtend(u, size)}, nil
}

// primitiveShape returns (byte size, is-signed, is-float) for p. i128/u128
// decode their low 8 bytes only — Go has no native 128-bit integer and
// int64/uint64 is what Value carries; a variable actually needing the high
// 64 bits decodes with silent truncation rather than failing the query.
func primitiveShape(p types.PrimitiveKind) (size int, signed bool, isFloat bool) {
	switch p {
	case types.PrimI8:
		return 1, true, false
	case types.PrimI16:
		return 2, true, false
	case types.PrimI32:
		return 4, true, false
	case types.PrimI64, types.PrimISize:
		return 8, true, false
	case types.PrimI128:
		return 8, true, false
	case types.PrimU8, types.PrimBool:
		return 1, false, false
	case types.PrimU16:
		return 2, false, false
	case types.PrimU32, types.PrimChar:
		return 4, false, false
	case types.PrimU64, types.PrimUSize:
		return 8, false, false
	case types.PrimU128:
		return 8, false, false
	case types.PrimF32:
		return 4, false, true
	case types.PrimF64:
		return 8, false, true
	}
	return 8, false, false
}

func signExtend(u uint64, size int) int64 {
	bits := uint(size * 8)
	if bits >= 64 {
		return int64(u)
	}
	shift := 64 - bits
	return int64(u<<shift) >> shift
}
