package types

import (
	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/dwarfdie"
)

// attrAlignment is DW_AT_alignment (0x88), a DWARF5 attribute rustc emits
// on struct/union DIEs when the natural size-derived alignment isn't
// correct (explicit #[repr(align(N))] types).
const attrAlignment dwarf.Attr = 0x88

// Resolver turns type DIEs into TypeLayouts, memoizing both the shallow and
// full resolution of every Die it is asked about. It holds no state beyond
// the DB it borrows and its memo tables; the query facade owns one
// Resolver per open Binary.
type Resolver struct {
	db *dwarfdie.DB

	shallow  map[dwarfdie.Die]TypeLayout
	full     map[dwarfdie.Die]TypeLayout
	inFlight map[dwarfdie.Die]bool
}

func NewResolver(db *dwarfdie.DB) *Resolver {
	return &Resolver{
		db:       db,
		shallow:  make(map[dwarfdie.Die]TypeLayout),
		full:     make(map[dwarfdie.Die]TypeLayout),
		inFlight: make(map[dwarfdie.Die]bool),
	}
}

// ShallowResolve returns a fully-structured layout for known builtins
// (primitives and standard-library containers); user-defined structs,
// unions and enums come back as an Alias pointing at the unresolved DIE.
func (r *Resolver) ShallowResolve(d dwarfdie.Die) TypeLayout {
	if d.IsZero() {
		return otherLayout("")
	}
	if tl, ok := r.shallow[d]; ok {
		return tl
	}
	tl := r.shallowResolveUncached(d)
	r.shallow[d] = tl
	return tl
}

func (r *Resolver) shallowResolveUncached(d dwarfdie.Die) TypeLayout {
	name := d.Name(r.db)
	shape, _ := classify(name)

	switch shape {
	case shapePrimitive:
		return primitiveLayout(primitiveNames[name])
	case shapeUnit:
		return primitiveLayout(PrimUnit)
	case shapeReference:
		return r.resolveReference(d, mutableRef(name))
	case shapeArray:
		return r.resolveArray(d)
	case shapeTuple:
		return r.resolveTuple(d)
	case shapeVec:
		return r.resolveVec(d)
	case shapeString:
		return r.resolveString(d)
	case shapeOption:
		return r.resolveOption(d)
	case shapeResult:
		return r.resolveResult(d)
	case shapeHashMap:
		return r.resolveHashMap(d)
	case shapeBTreeMap:
		return r.resolveBTreeMap(d)
	case shapeBox, shapeRc, shapeArc, shapeCell, shapeRefCell, shapeUnsafeCell, shapeMutex:
		return r.resolveSmartPtr(d, shape)
	}

	switch d.Tag(r.db) {
	case dwarf.TagStructType, dwarf.TagUnionType, dwarf.TagEnumerationType:
		return aliasLayout(d)
	case dwarf.TagTypedef, dwarf.TagConstType, dwarf.TagVolatileType:
		if target, ok := d.Type(r.db); ok {
			return r.ShallowResolve(target)
		}
	}

	return otherLayout(name)
}

// FullResolve performs ShallowResolve, then recursively eliminates every
// Alias the result contains — unfolding struct/enum DIEs into Struct/Enum
// layouts and re-entering FullResolve for every nested field, element or
// payload type, until no Alias node remains.
func (r *Resolver) FullResolve(d dwarfdie.Die) TypeLayout {
	if d.IsZero() {
		return otherLayout("")
	}
	if tl, ok := r.full[d]; ok {
		return tl
	}
	if r.inFlight[d] {
		// A struct reachable from itself only through an already-resolved
		// pointer/reference indirection never reaches here (StdReference
		// and StdSmartPtr stop at ShallowResolve on their pointee, they
		// don't recurse through resolveAliases). This guard exists for the
		// rarer direct struct-field cycle a malformed or synthetic binary
		// could present; it breaks the loop with the unresolved Alias
		// rather than recursing forever.
		return aliasLayout(d)
	}
	r.inFlight[d] = true
	defer delete(r.inFlight, d)

	tl := r.resolveAliases(r.ShallowResolve(d))
	r.full[d] = tl
	return tl
}

// resolveAliases walks tl's nested TypeLayouts, replacing any Alias it
// finds with its fully resolved target.
func (r *Resolver) resolveAliases(tl TypeLayout) TypeLayout {
	switch tl.Kind {
	case KindAlias:
		return r.unfoldAlias(tl.Alias)
	case KindStd:
		return stdLayout(r.resolveStdAliases(tl.Std))
	default:
		return tl
	}
}

func (r *Resolver) resolveStdAliases(s *StdLayout) *StdLayout {
	out := *s
	switch s.Kind {
	case StdArray:
		a := *s.Array
		a.Element = r.resolveAliases(a.Element)
		out.Array = &a
	case StdReference:
		rl := *s.Reference
		rl.Pointee = r.resolveAliases(rl.Pointee)
		out.Reference = &rl
	case StdTuple:
		tup := *s.Tuple
		elems := make([]TupleElement, len(tup.Elements))
		for i, e := range tup.Elements {
			elems[i] = TupleElement{Offset: e.Offset, Type: r.resolveAliases(e.Type)}
		}
		tup.Elements = elems
		out.Tuple = &tup
	case StdVec:
		vl := *s.Vec
		vl.Element = r.resolveAliases(vl.Element)
		out.Vec = &vl
	case StdOption:
		ol := *s.Option
		ol.SomePayload = r.resolveAliases(ol.SomePayload)
		out.Option = &ol
	case StdResult:
		rs := *s.Result
		rs.OkPayload = r.resolveAliases(rs.OkPayload)
		rs.ErrPayload = r.resolveAliases(rs.ErrPayload)
		out.Result = &rs
	case StdMap:
		ml := *s.Map
		ml.Key = r.resolveAliases(ml.Key)
		ml.Value = r.resolveAliases(ml.Value)
		if ml.BTree != nil {
			bt := *ml.BTree
			bt.Root = r.resolveAliases(bt.Root)
			ml.BTree = &bt
		}
		out.Key, out.Value, out.Map = ml.Key, ml.Value, &ml
	case StdSmartPtr:
		sp := *s.SmartPtr
		sp.Inner = r.resolveAliases(sp.Inner)
		out.SmartPtr = &sp
	}
	return &out
}

// unfoldAlias resolves the DIE an Alias forwards to: struct/union DIEs
// become Struct layouts, or Enum layouts if they carry a variant_part (a
// payload-bearing Rust enum); enumeration DIEs become CEnum (a fieldless
// C-style enum) layouts. Anything else is a structural dead end reported
// as Other, never an error — §4.5's failure semantics.
func (r *Resolver) unfoldAlias(target dwarfdie.Die) TypeLayout {
	switch target.Tag(r.db) {
	case dwarf.TagStructType, dwarf.TagUnionType:
		return r.unfoldStruct(target)
	case dwarf.TagEnumerationType:
		return r.unfoldEnum(target)
	}
	return otherLayout(target.Name(r.db))
}

func (r *Resolver) unfoldStruct(d dwarfdie.Die) TypeLayout {
	if discrOff, variants, ok := r.variantPart(d); ok {
		return r.unfoldVariantEnum(d, discrOff, variants)
	}

	size, _ := d.UdataAttr(r.db, dwarf.AttrByteSize)
	align := structAlignment(r.db, d, size)

	var fields []FieldLayout
	for _, c := range d.Children(r.db) {
		if c.Tag(r.db) != dwarf.TagMember {
			continue
		}
		t, ok := c.Type(r.db)
		if !ok {
			continue
		}
		off, _ := offset()(r.db, c)
		fields = append(fields, FieldLayout{Name: c.Name(r.db), Offset: off, Type: r.FullResolve(t)})
	}

	return TypeLayout{Kind: KindStruct, Struct: &StructLayout{Name: d.Name(r.db), Size: size, Alignment: align, Fields: fields}}
}

// structAlignment reads DW_AT_alignment where rustc emits it and otherwise
// falls back to the natural alignment implied by size, which is correct
// for every repr(Rust) layout without an explicit #[repr(align)].
func structAlignment(db *dwarfdie.DB, d dwarfdie.Die, size uint64) uint64 {
	if a, ok := d.UdataAttr(db, attrAlignment); ok && a > 0 {
		return a
	}
	switch {
	case size >= 8:
		return 8
	case size >= 4:
		return 4
	case size >= 2:
		return 2
	default:
		return 1
	}
}

func (r *Resolver) unfoldVariantEnum(d dwarfdie.Die, discrOff uint64, variants []variantChild) TypeLayout {
	size, _ := d.UdataAttr(r.db, dwarf.AttrByteSize)
	var out []VariantLayout
	for i, vc := range variants {
		payload := otherLayout("")
		if !vc.member.IsZero() {
			if t, ok := vc.member.Type(r.db); ok {
				payload = r.FullResolve(t)
			}
		}
		disc := vc.discrValue
		if !vc.hasValue {
			// §4.5 tie-break rule: variants without an explicit
			// discriminant use their positional index.
			disc = int64(i)
		}
		out = append(out, VariantLayout{Name: vc.name, Discriminant: disc, Payload: payload})
	}
	return TypeLayout{Kind: KindEnum, Enum: &EnumLayout{Name: d.Name(r.db), DiscriminantOffset: discrOff, Variants: out, Size: size}}
}

func (r *Resolver) unfoldEnum(d dwarfdie.Die) TypeLayout {
	size, _ := d.UdataAttr(r.db, dwarf.AttrByteSize)
	values := make(map[string]int64)
	for _, c := range d.Children(r.db) {
		if c.Tag(r.db) != dwarf.TagEnumerator {
			continue
		}
		v, _ := c.SdataAttr(r.db, dwarf.AttrConstValue)
		values[c.Name(r.db)] = v
	}
	return TypeLayout{Kind: KindCEnum, CEnum: &CEnumLayout{Name: d.Name(r.db), Values: values, Size: size}}
}
