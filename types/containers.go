package types

import (
	"strings"

	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/dwarfdie"
)

// tagVariantPart and tagVariant are DW_TAG_variant_part (0x33) and
// DW_TAG_variant (0x34), the DWARF5 tags rustc uses to encode every Rust
// enum (Option and Result included) as a tagged union: a struct containing
// one variant_part, whose DW_AT_discr names the discriminant member and
// whose variant children each carry DW_AT_discr_value plus (for
// non-fieldless variants) a member holding the payload.
const (
	tagVariantPart dwarf.Tag = 0x33
	tagVariant     dwarf.Tag = 0x34
)

// variantChild is one arm of a variant_part: its declared name (rustc sets
// DW_AT_name to e.g. "Some"/"None", "Ok"/"Err"), its discriminant value if
// one was given explicitly, and the member Die holding its payload (the
// zero Die for fieldless variants).
type variantChild struct {
	name       string
	discrValue int64
	hasValue   bool
	member     dwarfdie.Die
}

// variantPart locates d's DW_TAG_variant_part child, if it has one, and
// returns the discriminant's byte offset plus every variant in document
// order (rustc emits them in declaration order).
func (r *Resolver) variantPart(d dwarfdie.Die) (discrOffset uint64, variants []variantChild, ok bool) {
	vp, found := memberByTag(tagVariantPart)(r.db, d)
	if !found {
		return 0, nil, false
	}
	if discr, dok := vp.GetReferencedEntry(r.db, dwarf.AttrDiscr); dok {
		discrOffset, _ = offset()(r.db, discr)
	}
	for _, c := range vp.Children(r.db) {
		if c.Tag(r.db) != tagVariant {
			continue
		}
		vc := variantChild{name: c.Name(r.db)}
		if dv, dvok := c.SdataAttr(r.db, dwarf.AttrDiscrValue); dvok {
			vc.discrValue, vc.hasValue = dv, true
		}
		if m, mok := memberByTag(dwarf.TagMember)(r.db, c); mok {
			vc.member = m
		}
		variants = append(variants, vc)
	}
	return discrOffset, variants, true
}

// genericOrOther resolves d's template type parameter named name, falling
// back to an Other layout carrying the parameter's own name when the
// parameter can't be found (an unparameterised or malformed container DIE).
func (r *Resolver) genericOrOther(d dwarfdie.Die, name string) TypeLayout {
	if g, ok := generic(name)(r.db, d); ok {
		return r.ShallowResolve(g)
	}
	return otherLayout(name)
}

// resolveReference resolves &T / &mut T: a single DW_TAG_pointer_type DIE
// whose DW_AT_type is the pointee.
func (r *Resolver) resolveReference(d dwarfdie.Die, mutable bool) TypeLayout {
	pointee, ok := entryType()(r.db, d)
	if !ok {
		return otherLayout(d.Name(r.db))
	}
	return stdLayout(&StdLayout{Kind: StdReference, Reference: &ReferenceLayout{Mutable: mutable, Pointee: r.ShallowResolve(pointee)}})
}

// resolveArray resolves [T; N]: the element type is DW_AT_type, the length
// is read off the DW_TAG_subrange_type child's upper bound (inclusive,
// hence +1) or count.
func (r *Resolver) resolveArray(d dwarfdie.Die) TypeLayout {
	elem, ok := entryType()(r.db, d)
	if !ok {
		return otherLayout(d.Name(r.db))
	}
	var length uint64
	if sub, ok := memberByTag(dwarf.TagSubrangeType)(r.db, d); ok {
		if ub, ok := sub.UdataAttr(r.db, dwarf.AttrUpperBound); ok {
			length = ub + 1
		} else if c, ok := sub.UdataAttr(r.db, dwarf.AttrCount); ok {
			length = c
		}
	}
	return stdLayout(&StdLayout{Kind: StdArray, Array: &ArrayLayout{Element: r.ShallowResolve(elem), Length: length}})
}

// resolveTuple resolves (A, B, ...): rustc emits a struct whose members are
// named by position ("0", "1", ...) in declaration order.
func (r *Resolver) resolveTuple(d dwarfdie.Die) TypeLayout {
	var elems []TupleElement
	for _, c := range d.Children(r.db) {
		if c.Tag(r.db) != dwarf.TagMember {
			continue
		}
		t, ok := entryType()(r.db, c)
		if !ok {
			continue
		}
		off, _ := offset()(r.db, c)
		elems = append(elems, TupleElement{Offset: off, Type: r.ShallowResolve(t)})
	}
	return stdLayout(&StdLayout{Kind: StdTuple, Tuple: &TupleLayout{Elements: elems}})
}

// resolveVec follows the buf.inner.ptr chain §4.5 describes to find Vec's
// data pointer, reads len directly, and resolves the element type from the
// T generic parameter.
func (r *Resolver) resolveVec(d dwarfdie.Die) TypeLayout {
	dataOff, _ := chainOffset(r.db, d, "buf", "inner", "ptr")
	lenOff, _ := chainOffset(r.db, d, "len")
	elem := r.genericOrOther(d, "T")
	return stdLayout(&StdLayout{Kind: StdVec, Vec: &VecLayout{DataPtrOffset: dataOff, LenOffset: lenOff, Element: elem}})
}

// resolveString treats String as a Vec<u8> wrapper: std's String has a
// single "vec" field of that exact shape.
func (r *Resolver) resolveString(d dwarfdie.Die) TypeLayout {
	dataOff, _ := chainOffset(r.db, d, "vec", "buf", "inner", "ptr")
	lenOff, _ := chainOffset(r.db, d, "vec", "len")
	vec := VecLayout{DataPtrOffset: dataOff, LenOffset: lenOff, Element: primitiveLayout(PrimU8)}
	return stdLayout(&StdLayout{Kind: StdString, Str: &StringLayout{Vec: vec}})
}

// resolveOption parses Option<T> as an enum, extracting the discriminant
// offset and the "Some" variant's payload type. Niche-optimised Options
// (e.g. Option<&T>, discriminant folded into the pointer's null bit) still
// go through variantPart: rustc emits a variant_part for them with a
// DW_AT_discr_value-less "Some" variant, so the payload extraction is
// identical; only the concrete discriminant *value* convention differs,
// which callers never need — they compare against zero via the niche
// pointer itself during decoding, not this offset.
func (r *Resolver) resolveOption(d dwarfdie.Die) TypeLayout {
	discrOff, variants, ok := r.variantPart(d)
	some := otherLayout("T")
	if ok {
		for _, v := range variants {
			if v.name == "Some" && !v.member.IsZero() {
				if t, tok := v.member.Type(r.db); tok {
					some = r.ShallowResolve(t)
				}
			}
		}
	} else {
		some = r.genericOrOther(d, "T")
	}
	return stdLayout(&StdLayout{Kind: StdOption, Option: &OptionLayout{DiscriminantOffset: discrOff, SomePayload: some}})
}

// resolveResult mirrors resolveOption, picking the Ok/Err payloads by the
// variant's declared name rather than position.
func (r *Resolver) resolveResult(d dwarfdie.Die) TypeLayout {
	discrOff, variants, ok := r.variantPart(d)
	okPayload, errPayload := r.genericOrOther(d, "T"), r.genericOrOther(d, "E")
	if ok {
		for _, v := range variants {
			if v.member.IsZero() {
				continue
			}
			t, tok := v.member.Type(r.db)
			if !tok {
				continue
			}
			switch v.name {
			case "Ok":
				okPayload = r.ShallowResolve(t)
			case "Err":
				errPayload = r.ShallowResolve(t)
			}
		}
	}
	return stdLayout(&StdLayout{Kind: StdResult, Result: &ResultLayout{DiscriminantOffset: discrOff, OkPayload: okPayload, ErrPayload: errPayload}})
}

// resolveHashMap mines hashbrown's RawTable layout, reached from std's
// HashMap<K,V,S> through base (hashbrown::HashMap) -> table (RawTable) ->
// table (RawTableInner, confusingly reusing the field name) -> the three
// fields themselves.
func (r *Resolver) resolveHashMap(d dwarfdie.Die) TypeLayout {
	bucketMask, _ := chainOffset(r.db, d, "base", "table", "table", "bucket_mask")
	ctrl, _ := chainOffset(r.db, d, "base", "table", "table", "ctrl")
	items, _ := chainOffset(r.db, d, "base", "table", "table", "items")
	k := r.genericOrOther(d, "K")
	v := r.genericOrOther(d, "V")
	return stdLayout(&StdLayout{
		Kind: StdMap, Key: k, Value: v,
		Map: &MapLayout{Kind: MapHashMap, Key: k, Value: v, HashMap: &HashMapLayout{
			BucketMaskOffset: bucketMask, CtrlOffset: ctrl, ItemsOffset: items,
		}},
	})
}

// resolveBTreeMap mines alloc::collections::btree::map::BTreeMap: root is
// an Option<NodeRef<...>> recursed through resolveOption, length is a
// direct field. The NodeRef's height/node offsets are mined from its own
// struct layout when the root resolves far enough to reach it. The
// leaf/internal node offsets (len/keys/vals, edges) depend on rustc's
// private node-header layout, which varies across toolchain versions in a
// way this resolver doesn't chase: the node types are not read and
// EdgesOffset is always left zero. decode.Read reports only a BTreeMap's
// length and never descends into its nodes (see DESIGN.md).
func (r *Resolver) resolveBTreeMap(d dwarfdie.Die) TypeLayout {
	k := r.genericOrOther(d, "K")
	v := r.genericOrOther(d, "V")
	lengthOff, _ := chainOffset(r.db, d, "length")
	layout := &BTreeMapLayout{LengthOffset: lengthOff}

	if rootDie, ok := chain(r.db, d, "root"); ok {
		rootOff, _ := offset()(r.db, rootDie)
		layout.RootOffset = rootOff
		if rootType, tok := rootDie.Type(r.db); tok {
			layout.Root = r.ShallowResolve(rootType)
			if nodeRef, nok := r.optionSomeAliasTarget(rootType); nok {
				layout.HeightOffset, _ = chainOffset(r.db, nodeRef, "height")
				layout.NodeOffset, _ = chainOffset(r.db, nodeRef, "node")
			}
		}
	}

	return stdLayout(&StdLayout{
		Kind: StdMap, Key: k, Value: v,
		Map: &MapLayout{Kind: MapBTreeMap, Key: k, Value: v, BTree: layout},
	})
}

// optionSomeAliasTarget finds the underlying struct DIE an Option<NodeRef>
// DIE's "Some" variant payload points at, following through to the
// NodeRef's own (not-yet-resolved) type rather than a fully resolved
// layout, since the caller needs further member offsets from it.
func (r *Resolver) optionSomeAliasTarget(optionDie dwarfdie.Die) (dwarfdie.Die, bool) {
	_, variants, ok := r.variantPart(optionDie)
	if !ok {
		return dwarfdie.Die{}, false
	}
	for _, vc := range variants {
		if vc.name == "Some" && !vc.member.IsZero() {
			return vc.member.Type(r.db)
		}
	}
	return dwarfdie.Die{}, false
}

// pointeeStructDie follows a member chain to a raw-pointer-typed field and
// peels one level of DW_TAG_pointer_type to reach the struct it points at —
// used by the smart-pointer recipes to go from e.g. Rc::ptr.pointer to the
// RcBox<T> it addresses.
func (r *Resolver) pointeeStructDie(d dwarfdie.Die, names ...string) (dwarfdie.Die, bool) {
	leaf, ok := chain(r.db, d, names...)
	if !ok {
		return dwarfdie.Die{}, false
	}
	t, ok := leaf.Type(r.db)
	if !ok {
		return dwarfdie.Die{}, false
	}
	if t.Tag(r.db) == dwarf.TagPointerType {
		if pt, ok := t.Type(r.db); ok {
			return pt, true
		}
	}
	return t, true
}

func smartPtrVariantOf(s shape) SmartPtrVariant {
	switch s {
	case shapeBox:
		return PtrBox
	case shapeRc:
		return PtrRc
	case shapeArc:
		return PtrArc
	case shapeCell:
		return PtrCell
	case shapeRefCell:
		return PtrRefCell
	case shapeUnsafeCell:
		return PtrUnsafeCell
	case shapeMutex:
		return PtrMutex
	}
	return PtrBox
}

// resolveSmartPtr implements the offset-chain recipe for each of Box, Rc,
// Arc, Cell, RefCell, UnsafeCell and Mutex §4.5 lists.
func (r *Resolver) resolveSmartPtr(d dwarfdie.Die, s shape) TypeLayout {
	inner := r.genericOrOther(d, "T")
	var innerPtrOff, dataOff uint64

	switch s {
	case shapeBox:
		// Box<T> is a Unique<T> (itself {pointer, _marker}) plus an
		// allocator handle; the pointer field is positional, named "0".
		innerPtrOff, _ = chainOffset(r.db, d, "0", "pointer")
	case shapeRc:
		innerPtrOff, _ = chainOffset(r.db, d, "ptr", "pointer")
		if box, ok := r.pointeeStructDie(d, "ptr", "pointer"); ok {
			dataOff, _ = chainOffset(r.db, box, "value")
		}
	case shapeArc:
		innerPtrOff, _ = chainOffset(r.db, d, "ptr", "pointer")
		if inner2, ok := r.pointeeStructDie(d, "ptr", "pointer"); ok {
			dataOff, _ = chainOffset(r.db, inner2, "data")
		}
	case shapeCell, shapeUnsafeCell:
		dataOff, _ = chainOffset(r.db, d, "value")
	case shapeRefCell:
		dataOff, _ = chainOffset(r.db, d, "value")
	case shapeMutex:
		dataOff, _ = chainOffset(r.db, d, "data", "value")
	}

	return stdLayout(&StdLayout{Kind: StdSmartPtr, SmartPtr: &SmartPtrLayout{
		Variant: smartPtrVariantOf(s), Inner: inner, InnerPtrOffset: innerPtrOff, DataPtrOffset: dataOff,
	}})
}

// mutableRef reports whether a display name like "&mut T" denotes a
// mutable reference, vs. a shared "&T".
func mutableRef(name string) bool {
	return strings.HasPrefix(name, "&mut ")
}
