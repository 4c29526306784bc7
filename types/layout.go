// Package types resolves DWARF type DIEs into a structural description:
// primitives, Rust standard-library containers recognised by their display
// name, and arbitrary user structs/enums unfolded field by field.
package types

import "github.com/rudy-go/rudy/dwarfdie"

// Kind discriminates the variants of TypeLayout. TypeLayout is a value
// type (not an interface) so two layouts compare equal with ==/reflect.DeepEqual
// when their structural content matches, as the memoization and
// shallow-then-full equivalence property require.
type Kind int

const (
	KindPrimitive Kind = iota
	KindStd
	KindStruct
	KindEnum
	KindCEnum
	KindAlias
	KindOther
)

// PrimitiveKind enumerates the built-in scalar types this resolver
// recognises by name.
type PrimitiveKind int

const (
	PrimBool PrimitiveKind = iota
	PrimChar
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimISize
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimUSize
	PrimF32
	PrimF64
	PrimStr
	PrimUnit
)

// TypeLayout is the tagged-union result of resolving a type DIE. Only the
// field matching Kind is meaningful.
type TypeLayout struct {
	Kind      Kind
	Primitive PrimitiveKind
	Std       *StdLayout
	Struct    *StructLayout
	Enum      *EnumLayout
	CEnum     *CEnumLayout
	Alias     dwarfdie.Die
	Other     string
}

// StdKind discriminates the recognised standard-library shapes.
type StdKind int

const (
	StdArray StdKind = iota
	StdReference
	StdTuple
	StdVec
	StdString
	StdOption
	StdResult
	StdMap
	StdSmartPtr
)

type StdLayout struct {
	Kind      StdKind
	Array     *ArrayLayout
	Reference *ReferenceLayout
	Tuple     *TupleLayout
	Vec       *VecLayout
	Str       *StringLayout
	Option    *OptionLayout
	Result    *ResultLayout
	Map       *MapLayout
	SmartPtr  *SmartPtrLayout
}

type ArrayLayout struct {
	Element TypeLayout
	Length  uint64
}

type ReferenceLayout struct {
	Mutable bool
	Pointee TypeLayout
}

// TupleElement pairs one tuple field's resolved type with its byte offset
// from the tuple's own base address — rustc lays out tuples as ordinary
// structs with positionally-named members, so the offset isn't implied by
// field order or element type alone.
type TupleElement struct {
	Offset uint64
	Type   TypeLayout
}

type TupleLayout struct {
	Elements []TupleElement
}

// VecLayout records the offset of Vec's data pointer (found by following
// buf.inner.ptr) and its length field, plus the resolved element type.
type VecLayout struct {
	DataPtrOffset uint64
	LenOffset     uint64
	Element       TypeLayout
}

// StringLayout is a Vec<u8> wrapper: the byte layout is identical, the
// decoder just interprets the bytes as UTF-8 instead of a slice of u8.
type StringLayout struct {
	Vec VecLayout
}

// OptionLayout carries the discriminant offset (0 for a niche-optimised
// pointer-like payload) and the Some variant's payload layout.
type OptionLayout struct {
	DiscriminantOffset uint64
	SomePayload        TypeLayout
}

type ResultLayout struct {
	DiscriminantOffset uint64
	OkPayload          TypeLayout
	ErrPayload         TypeLayout
}

type MapKind int

const (
	MapHashMap MapKind = iota
	MapBTreeMap
)

type MapLayout struct {
	Kind    MapKind
	Key     TypeLayout
	Value   TypeLayout
	HashMap *HashMapLayout
	BTree   *BTreeMapLayout
}

// HashMapLayout matches hashbrown's RawTable layout.
type HashMapLayout struct {
	BucketMaskOffset uint64
	CtrlOffset       uint64
	ItemsOffset      uint64
}

// BTreeMapLayout matches alloc::collections::btree::map::BTreeMap. Root is
// the Option<NodeRef> layout recursed through the Option sub-parser.
// RootOffset and LengthOffset are mined from BTreeMap itself, HeightOffset
// and NodeOffset from the root's NodeRef. The leaf-node and internal-node
// types are not read, so EdgesOffset is always zero.
type BTreeMapLayout struct {
	RootOffset   uint64
	LengthOffset uint64
	HeightOffset uint64
	NodeOffset   uint64
	EdgesOffset  uint64
	Root         TypeLayout
}

type SmartPtrVariant int

const (
	PtrBox SmartPtrVariant = iota
	PtrRc
	PtrArc
	PtrCell
	PtrRefCell
	PtrUnsafeCell
	PtrMutex
)

type SmartPtrLayout struct {
	Variant        SmartPtrVariant
	Inner          TypeLayout
	InnerPtrOffset uint64
	DataPtrOffset  uint64
}

type FieldLayout struct {
	Name   string
	Offset uint64
	Type   TypeLayout
}

type StructLayout struct {
	Name      string
	Size      uint64
	Alignment uint64
	Fields    []FieldLayout
}

type VariantLayout struct {
	Name        string
	Discriminant int64
	Payload      TypeLayout
}

type EnumLayout struct {
	Name               string
	DiscriminantOffset uint64
	Variants           []VariantLayout
	Size               uint64
}

// CEnumLayout is a fieldless (C-style) enum: every variant is a bare
// discriminant with no payload.
type CEnumLayout struct {
	Name   string
	Values map[string]int64
	Size   uint64
}

func primitiveLayout(p PrimitiveKind) TypeLayout {
	return TypeLayout{Kind: KindPrimitive, Primitive: p}
}

func stdLayout(s *StdLayout) TypeLayout {
	return TypeLayout{Kind: KindStd, Std: s}
}

func aliasLayout(d dwarfdie.Die) TypeLayout {
	return TypeLayout{Kind: KindAlias, Alias: d}
}

func otherLayout(name string) TypeLayout {
	return TypeLayout{Kind: KindOther, Other: name}
}

// IsAlias reports whether l is an unresolved forwarder.
func (l TypeLayout) IsAlias() bool { return l.Kind == KindAlias }
