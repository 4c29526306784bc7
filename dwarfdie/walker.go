package dwarfdie

import (
	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/errors"
)

// Visitor is the per-tag hook interface a depth-first pass over a
// compilation unit dispatches to. Each hook decides whether and how to
// recurse into its own children by calling Walker.WalkChildren; a hook that
// returns without calling it prunes that whole subtree from the walk.
type Visitor interface {
	VisitCompileUnit(w *Walker, d Die) error
	VisitNamespace(w *Walker, d Die) error
	VisitFunction(w *Walker, d Die) error
	VisitStruct(w *Walker, d Die) error
	VisitEnum(w *Walker, d Die) error
	VisitUnion(w *Walker, d Die) error
	VisitPointerType(w *Walker, d Die) error
	VisitVariable(w *Walker, d Die) error
	VisitLexicalBlock(w *Walker, d Die) error
	VisitOther(w *Walker, d Die) error
}

// BaseVisitor gives every hook the default behaviour of walking straight
// into the Die's children, so a concrete visitor can embed BaseVisitor and
// override just the tags it cares about.
type BaseVisitor struct{}

func (BaseVisitor) VisitCompileUnit(w *Walker, d Die) error  { return w.WalkChildren(d) }
func (BaseVisitor) VisitNamespace(w *Walker, d Die) error    { return w.WalkChildren(d) }
func (BaseVisitor) VisitFunction(w *Walker, d Die) error     { return w.WalkChildren(d) }
func (BaseVisitor) VisitStruct(w *Walker, d Die) error       { return w.WalkChildren(d) }
func (BaseVisitor) VisitEnum(w *Walker, d Die) error         { return w.WalkChildren(d) }
func (BaseVisitor) VisitUnion(w *Walker, d Die) error        { return w.WalkChildren(d) }
func (BaseVisitor) VisitPointerType(w *Walker, d Die) error  { return w.WalkChildren(d) }
func (BaseVisitor) VisitVariable(w *Walker, d Die) error     { return w.WalkChildren(d) }
func (BaseVisitor) VisitLexicalBlock(w *Walker, d Die) error { return w.WalkChildren(d) }
func (BaseVisitor) VisitOther(w *Walker, d Die) error        { return w.WalkChildren(d) }

// Walker drives a single depth-first pass with an explicit depth counter,
// re-seeking a fresh *dwarf.Reader at each node rather than holding one
// long-lived cursor across recursive calls — WalkChildren is re-entrant,
// since a hook invoked mid-walk can itself call WalkChildren on one of its
// own children before returning.
type Walker struct {
	db      *DB
	visitor Visitor
	depth   int
	lastEnd dwarf.Offset
}

// LastChildrenEnd returns the section offset immediately following the
// most recently completed WalkChildren call: either the offset of the
// null entry terminating the sibling list, or (if the reader hit EOF
// first) the offset WalkChildren was called with. A hook that needs its
// own subtree's end boundary — e.g. to record a ModuleRange — reads this
// right after calling w.WalkChildren(d).
func (w *Walker) LastChildrenEnd() dwarf.Offset { return w.lastEnd }

// WalkUnit starts a fresh pass at cuRoot (normally a DW_TAG_compile_unit
// Die), dispatching every visited tag to visitor.
func (db *DB) WalkUnit(cuRoot Die, visitor Visitor) error {
	w := &Walker{db: db, visitor: visitor}
	return w.visit(cuRoot)
}

// Depth reports how many WalkChildren calls are currently nested on the
// call stack below the initial WalkUnit call.
func (w *Walker) Depth() int { return w.depth }

// WalkChildren dispatches every direct child of d to the walker's visitor,
// in document order. A child whose hook does not itself call WalkChildren
// is a leaf of the traversal as far as this walk is concerned, even if it
// has grandchildren in the DWARF tree.
func (w *Walker) WalkChildren(d Die) error {
	data := w.db.Data(d.File)
	if data == nil {
		return errors.E(errors.MalformedDie, errors.DieMalformed, "no dwarf data for "+d.File.Name())
	}
	r := data.Reader()
	r.Seek(d.Offset)
	parent, err := r.Next()
	if err != nil || parent == nil || !parent.Children {
		w.lastEnd = d.Offset
		return nil
	}

	w.depth++
	defer func() { w.depth-- }()

	for {
		child, err := r.Next()
		if err != nil {
			return errors.E(errors.MalformedDie, errors.DieMalformed, err)
		}
		if child == nil {
			w.lastEnd = d.Offset
			return nil
		}
		if child.Tag == 0 {
			w.lastEnd = child.Offset
			return nil
		}
		childDie := Die{File: d.File, CU: d.CU, Offset: child.Offset}
		if child.Children {
			r.SkipChildren()
		}
		if err := w.visit(childDie); err != nil {
			return err
		}
	}
}

// visit reads d's own entry to recover its tag, then dispatches to the
// matching hook.
func (w *Walker) visit(d Die) error {
	e, err := d.entry(w.db)
	if err != nil {
		return err
	}
	switch e.Tag {
	case dwarf.TagCompileUnit:
		return w.visitor.VisitCompileUnit(w, d)
	case dwarf.TagNamespace:
		return w.visitor.VisitNamespace(w, d)
	case dwarf.TagSubprogram, dwarf.TagInlinedSubroutine:
		return w.visitor.VisitFunction(w, d)
	case dwarf.TagStructType:
		return w.visitor.VisitStruct(w, d)
	case dwarf.TagEnumerationType:
		return w.visitor.VisitEnum(w, d)
	case dwarf.TagUnionType:
		return w.visitor.VisitUnion(w, d)
	case dwarf.TagPointerType:
		return w.visitor.VisitPointerType(w, d)
	case dwarf.TagVariable, dwarf.TagFormalParameter:
		return w.visitor.VisitVariable(w, d)
	case dwarf.TagLexDwarfBlock:
		return w.visitor.VisitLexicalBlock(w, d)
	default:
		return w.visitor.VisitOther(w, d)
	}
}
