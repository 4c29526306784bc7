package dwarfdie

import (
	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/errors"
	"github.com/rudy-go/rudy/symtab"
)

// CompilationUnitId identifies one CU within a DebugFile by its section
// offset.
type CompilationUnitId struct {
	File   symtab.DebugFile
	Offset dwarf.Offset
}

// Die is the triple (DebugFile, CU section offset, DIE offset) — the
// primary handle the rest of the system passes around. It is cheap to
// copy and resolves lazily via the DB.
type Die struct {
	File   symtab.DebugFile
	CU     dwarf.Offset
	Offset dwarf.Offset
}

func (d Die) CUId() CompilationUnitId {
	return CompilationUnitId{File: d.File, Offset: d.CU}
}

// IsZero reports whether d is the zero Die (used as a "no entry" sentinel
// since Die is a plain value type).
func (d Die) IsZero() bool {
	return d.File == (symtab.DebugFile{}) && d.Offset == 0
}

// entry reads the raw *dwarf.Entry for d, leaving the reader positioned
// immediately after it (so a subsequent Next() continues into d's children,
// if any).
func (d Die) entry(db *DB) (*dwarf.Entry, error) {
	data := db.Data(d.File)
	if data == nil {
		return nil, errors.E(errors.MalformedDie, errors.DieMalformed, "no dwarf data for "+d.File.Name())
	}
	r := data.Reader()
	r.Seek(d.Offset)
	e, err := r.Next()
	if err != nil {
		return nil, errors.E(errors.MalformedDie, errors.DieMalformed, err)
	}
	if e == nil {
		return nil, errors.E(errors.MalformedDie, errors.DieMalformed, "no entry at offset")
	}
	return e, nil
}

// Entry exposes the raw *dwarf.Entry for d, for callers (outside this
// package) that need go-dwarf operations with no Die-level equivalent yet,
// such as Data.Ranges.
func (d Die) Entry(db *DB) (*dwarf.Entry, error) {
	return d.entry(db)
}

// Tag returns the DIE's tag, or TagReserved (0) if it cannot be read.
func (d Die) Tag(db *DB) dwarf.Tag {
	e, err := d.entry(db)
	if err != nil {
		return 0
	}
	return e.Tag
}

// Name returns DW_AT_name, or "" if absent.
func (d Die) Name(db *DB) string {
	return d.StringAttr(db, dwarf.AttrName)
}

// StringAttr returns a string-classed attribute, or "" if absent or of the
// wrong class.
func (d Die) StringAttr(db *DB, attr dwarf.Attr) string {
	v := d.GetAttr(db, attr)
	s, _ := v.(string)
	return s
}

// UdataAttr returns an unsigned-integer-classed attribute (DW_FORM_udata
// and friends decode to int64/uint64 in debug/dwarf depending on form; both
// are normalised to uint64 here), or (0, false) if absent.
func (d Die) UdataAttr(db *DB, attr dwarf.Attr) (uint64, bool) {
	v := d.GetAttr(db, attr)
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		return uint64(n), true
	}
	return 0, false
}

// SdataAttr returns a signed-integer-classed attribute, or (0, false) if absent.
func (d Die) SdataAttr(db *DB, attr dwarf.Attr) (int64, bool) {
	v := d.GetAttr(db, attr)
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// GetAttr returns the raw attribute value as decoded by go-dwarf, or nil if absent.
func (d Die) GetAttr(db *DB, attr dwarf.Attr) interface{} {
	e, err := d.entry(db)
	if err != nil {
		return nil
	}
	return e.Val(attr)
}

// crossDieAttrs lists the attributes that reference another DIE by section
// offset, in the priority order a generic "follow the type/specification
// of this DIE" lookup should try them.
var crossDieAttrs = []dwarf.Attr{
	dwarf.AttrType, dwarf.AttrSpecification, dwarf.AttrAbstractOrigin,
}

// GetReferencedEntry follows attr (DW_AT_type, DW_AT_specification,
// DW_AT_abstract_origin, etc.), possibly across CUs via section offsets.
// Returns the zero Die and false if the attribute is absent or not a
// reference.
func (d Die) GetReferencedEntry(db *DB, attr dwarf.Attr) (Die, bool) {
	e, err := d.entry(db)
	if err != nil {
		return Die{}, false
	}
	v := e.Val(attr)
	off, ok := v.(dwarf.Offset)
	if !ok {
		return Die{}, false
	}
	return Die{File: d.File, CU: d.ownerCU(db, off), Offset: off}, true
}

// ownerCU returns the CU offset recorded for a Die reached through a
// reference to off. It always returns d's own CU: go-dwarf's Entry does not
// report its containing unit, so a reference into another CU yields a Die
// carrying the referencing Die's CU offset rather than the target's. This
// is exact for the common case of DW_AT_abstract_origin/DW_AT_specification,
// and for DW_AT_type when types are not shared across CUs.
func (d Die) ownerCU(db *DB, off dwarf.Offset) dwarf.Offset {
	return d.CU
}

// Type returns the Die referenced by DW_AT_type, following it across CUs if
// necessary.
func (d Die) Type(db *DB) (Die, bool) {
	return d.GetReferencedEntry(db, dwarf.AttrType)
}

// Children returns every direct child DIE of d.
func (d Die) Children(db *DB) []Die {
	data := db.Data(d.File)
	if data == nil {
		return nil
	}
	r := data.Reader()
	r.Seek(d.Offset)
	parent, err := r.Next()
	if err != nil || parent == nil || !parent.Children {
		return nil
	}

	var out []Die
	for {
		child, err := r.Next()
		if err != nil || child == nil || child.Tag == 0 {
			break
		}
		out = append(out, Die{File: d.File, CU: d.CU, Offset: child.Offset})
		if child.Children {
			r.SkipChildren()
		}
	}
	return out
}

// GetMember returns the first direct child DIE whose DW_AT_name equals
// name, and whether it was found.
func (d Die) GetMember(db *DB, name string) (Die, bool) {
	for _, c := range d.Children(db) {
		if c.Name(db) == name {
			return c, true
		}
	}
	return Die{}, false
}

// GetMemberByTag returns the first direct child DIE with the given tag.
func (d Die) GetMemberByTag(db *DB, tag dwarf.Tag) (Die, bool) {
	for _, c := range d.Children(db) {
		if c.Tag(db) == tag {
			return c, true
		}
	}
	return Die{}, false
}

// GetGenericTypeEntry locates a DW_TAG_template_type_parameter child by
// name and dereferences its DW_AT_type attribute — used by the container
// type resolvers to pull out e.g. Vec<T>'s element type.
func (d Die) GetGenericTypeEntry(db *DB, name string) (Die, bool) {
	for _, c := range d.Children(db) {
		if c.Tag(db) != dwarf.TagTemplateTypeParameter {
			continue
		}
		if c.Name(db) != name {
			continue
		}
		return c.Type(db)
	}
	return Die{}, false
}
