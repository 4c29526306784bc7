package types

import (
	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/expr/leb128"
)

// field pulls one piece of information out of a Die's own attributes or its
// direct children. Every standard-library layout sub-parser in
// containers.go is a short pipeline of these instead of a hand-coded tree
// walk — the parser combinator kit §4.6 describes.
type field[T any] func(db *dwarfdie.DB, d dwarfdie.Die) (T, bool)

// attrString reads a string-classed attribute off d itself.
func attrString(attr dwarf.Attr) field[string] {
	return func(db *dwarfdie.DB, d dwarfdie.Die) (string, bool) {
		s := d.StringAttr(db, attr)
		return s, s != ""
	}
}

// member finds the first direct child of d named name.
func member(name string) field[dwarfdie.Die] {
	return func(db *dwarfdie.DB, d dwarfdie.Die) (dwarfdie.Die, bool) {
		return d.GetMember(db, name)
	}
}

// memberByTag finds the first direct child of d with the given tag.
func memberByTag(tag dwarf.Tag) field[dwarfdie.Die] {
	return func(db *dwarfdie.DB, d dwarfdie.Die) (dwarfdie.Die, bool) {
		return d.GetMemberByTag(db, tag)
	}
}

// isMember asserts that d has a direct child named name.
func isMember(name string) field[bool] {
	return func(db *dwarfdie.DB, d dwarfdie.Die) (bool, bool) {
		_, ok := d.GetMember(db, name)
		return ok, true
	}
}

// entryType is shorthand for following d's DW_AT_type.
func entryType() field[dwarfdie.Die] {
	return func(db *dwarfdie.DB, d dwarfdie.Die) (dwarfdie.Die, bool) {
		return d.Type(db)
	}
}

// offset reads DW_AT_data_member_location off d. DWARF permits this
// attribute to be encoded either as a plain constant or, for layouts a
// compiler chooses not to express as a constant, a single-operation
// exprloc; only the DW_OP_plus_uconst (0x23) exprloc shape is handled,
// which is the only one rustc actually emits when it doesn't use the
// constant form.
func offset() field[uint64] {
	return func(db *dwarfdie.DB, d dwarfdie.Die) (uint64, bool) {
		v := d.GetAttr(db, dwarf.AttrDataMemberLoc)
		switch x := v.(type) {
		case int64:
			return uint64(x), true
		case uint64:
			return x, true
		case []byte:
			if len(x) >= 2 && x[0] == 0x23 {
				n, _ := leb128.DecodeULEB128(x[1:])
				return n, true
			}
		}
		return 0, false
	}
}

// generic locates a DW_TAG_template_type_parameter child of d by name and
// dereferences its type attribute.
func generic(name string) field[dwarfdie.Die] {
	return func(db *dwarfdie.DB, d dwarfdie.Die) (dwarfdie.Die, bool) {
		return d.GetGenericTypeEntry(db, name)
	}
}

// chain follows a sequence of member lookups starting at d, e.g.
// chain(db, d, "buf", "inner", "ptr") walks d.buf.inner.ptr and returns the
// innermost Die.
func chain(db *dwarfdie.DB, d dwarfdie.Die, names ...string) (dwarfdie.Die, bool) {
	cur := d
	for _, n := range names {
		next, ok := cur.GetMember(db, n)
		if !ok {
			return dwarfdie.Die{}, false
		}
		cur = next
	}
	return cur, true
}

// chainOffset sums DW_AT_data_member_location across a chain() — the total
// byte offset of the innermost field from the outermost struct's own base
// address. This is how Vec's data-pointer offset (buf.inner.ptr) and every
// smart-pointer recipe in containers.go is computed.
func chainOffset(db *dwarfdie.DB, d dwarfdie.Die, names ...string) (uint64, bool) {
	cur := d
	var total uint64
	for _, n := range names {
		next, ok := cur.GetMember(db, n)
		if !ok {
			return 0, false
		}
		off, ok := offset()(db, next)
		if !ok {
			return 0, false
		}
		total += off
		cur = next
	}
	return total, true
}

// forEachChild applies p to every direct child of d, collecting the hits —
// used where a sub-parser needs every matching member rather than the
// first (enumerators, variants).
func forEachChild[T any](db *dwarfdie.DB, d dwarfdie.Die, p field[T]) []T {
	var out []T
	for _, c := range d.Children(db) {
		if v, ok := p(db, c); ok {
			out = append(out, v)
		}
	}
	return out
}
