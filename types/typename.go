package types

import (
	"strings"

	"github.com/rudy-go/rudy/symtab"
)

// shape is the structural category a display name maps onto, before any
// DWARF offsets have been mined. It is the bridge between DWARF's textual
// type names and the sub-parsers in containers.go.
type shape int

const (
	shapeUnknown shape = iota
	shapePrimitive
	shapeReference
	shapeArray
	shapeTuple
	shapeUnit
	shapeVec
	shapeString
	shapeOption
	shapeResult
	shapeHashMap
	shapeBTreeMap
	shapeBox
	shapeRc
	shapeArc
	shapeCell
	shapeRefCell
	shapeUnsafeCell
	shapeMutex
)

var primitiveNames = map[string]PrimitiveKind{
	"bool":  PrimBool,
	"char":  PrimChar,
	"i8":    PrimI8,
	"i16":   PrimI16,
	"i32":   PrimI32,
	"i64":   PrimI64,
	"i128":  PrimI128,
	"isize": PrimISize,
	"u8":    PrimU8,
	"u16":   PrimU16,
	"u32":   PrimU32,
	"u64":   PrimU64,
	"u128":  PrimU128,
	"usize": PrimUSize,
	"f32":   PrimF32,
	"f64":   PrimF64,
	"str":   PrimStr,
}

// classify maps a DIE's display name onto a shape plus whatever raw
// sub-strings the shape's sub-parser needs (a generics string, a
// reference's referent name, an array's or tuple's bracketed contents). The actual element/key/value *types*
// are not derived from these strings: the sub-parsers in containers.go
// pull them from the DWARF tree itself (generic type parameters, member
// types), the way DW_AT_type always has to be followed to get a handle on
// another DIE rather than a name.
func classify(name string) (shape, string) {
	name = strings.TrimSpace(name)

	if name == "()" {
		return shapeUnit, ""
	}
	if strings.HasPrefix(name, "&") {
		return shapeReference, strings.TrimPrefix(strings.TrimPrefix(name, "&mut "), "&")
	}
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		return shapeArray, name[1 : len(name)-1]
	}
	if strings.HasPrefix(name, "(") && strings.HasSuffix(name, ")") {
		return shapeTuple, name[1 : len(name)-1]
	}
	if _, ok := primitiveNames[name]; ok {
		return shapePrimitive, name
	}

	n := symtab.ParseSymbolName(name)

	switch n.LookupName {
	case "Vec":
		return shapeVec, n.Generics
	case "String":
		return shapeString, ""
	case "Option":
		return shapeOption, n.Generics
	case "Result":
		return shapeResult, n.Generics
	case "HashMap":
		return shapeHashMap, n.Generics
	case "BTreeMap":
		return shapeBTreeMap, n.Generics
	case "Box":
		return shapeBox, n.Generics
	case "Rc":
		return shapeRc, n.Generics
	case "Arc":
		return shapeArc, n.Generics
	case "Cell":
		return shapeCell, n.Generics
	case "RefCell":
		return shapeRefCell, n.Generics
	case "UnsafeCell":
		return shapeUnsafeCell, n.Generics
	case "Mutex":
		return shapeMutex, n.Generics
	}

	return shapeUnknown, ""
}
