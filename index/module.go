package index

import (
	"sort"

	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/dwarfdie"
)

// ModuleRange records the DIE-offset span a namespace's subtree occupies,
// together with its full module path as a list of segments.
type ModuleRange struct {
	Path  []string
	Start dwarf.Offset
	End   dwarf.Offset
}

type moduleMapNode struct {
	children map[string]*moduleMapNode
	entries  []dwarfdie.Die
}

// ModuleIndex answers two different questions about one DebugFile's
// namespace structure: "what module contains this DIE offset" (ranges,
// binary-searched) and "what DIEs live directly under this module path"
// (the nested map).
type ModuleIndex struct {
	ranges []ModuleRange
	root   *moduleMapNode
}

type moduleVisitor struct {
	dwarfdie.BaseVisitor
	db      *dwarfdie.DB
	stack   []string
	ranges  []ModuleRange
	mapRoot *moduleMapNode
}

func (v *moduleVisitor) node() *moduleMapNode {
	n := v.mapRoot
	for _, seg := range v.stack {
		child, ok := n.children[seg]
		if !ok {
			child = &moduleMapNode{children: make(map[string]*moduleMapNode)}
			n.children[seg] = child
		}
		n = child
	}
	return n
}

func (v *moduleVisitor) VisitNamespace(w *dwarfdie.Walker, d dwarfdie.Die) error {
	name := d.Name(v.db)
	if name == "" {
		return w.WalkChildren(d)
	}

	v.stack = append(v.stack, name)
	start := d.Offset

	if err := w.WalkChildren(d); err != nil {
		v.stack = v.stack[:len(v.stack)-1]
		return err
	}

	path := make([]string, len(v.stack))
	copy(path, v.stack)
	v.ranges = append(v.ranges, ModuleRange{Path: path, Start: start, End: w.LastChildrenEnd()})
	v.stack = v.stack[:len(v.stack)-1]
	return nil
}

func (v *moduleVisitor) recordEntry(d dwarfdie.Die) {
	n := v.node()
	n.entries = append(n.entries, d)
}

func (v *moduleVisitor) VisitFunction(w *dwarfdie.Walker, d dwarfdie.Die) error {
	v.recordEntry(d)
	return w.WalkChildren(d)
}

func (v *moduleVisitor) VisitStruct(w *dwarfdie.Walker, d dwarfdie.Die) error {
	v.recordEntry(d)
	return w.WalkChildren(d)
}

func (v *moduleVisitor) VisitEnum(w *dwarfdie.Walker, d dwarfdie.Die) error {
	v.recordEntry(d)
	return w.WalkChildren(d)
}

func (v *moduleVisitor) VisitUnion(w *dwarfdie.Walker, d dwarfdie.Die) error {
	v.recordEntry(d)
	return w.WalkChildren(d)
}

// BuildModuleIndex walks cuRoot once, recording a ModuleRange for every
// namespace DIE and a name-keyed entry map of the non-namespace children
// found under each module path.
func BuildModuleIndex(db *dwarfdie.DB, cuRoot dwarfdie.Die) (*ModuleIndex, error) {
	v := &moduleVisitor{db: db, mapRoot: &moduleMapNode{children: make(map[string]*moduleMapNode)}}
	if err := db.WalkUnit(cuRoot, v); err != nil {
		return nil, err
	}

	sort.Slice(v.ranges, func(i, j int) bool { return v.ranges[i].Start < v.ranges[j].Start })
	return &ModuleIndex{ranges: v.ranges, root: v.mapRoot}, nil
}

// LookupByOffset finds the innermost namespace enclosing offset, returning
// its full module path, or (nil, false) if offset lies outside every
// recorded namespace.
func (mi *ModuleIndex) LookupByOffset(offset dwarf.Offset) ([]string, bool) {
	i := sort.Search(len(mi.ranges), func(i int) bool { return mi.ranges[i].Start > offset })

	for j := i - 1; j >= 0; j-- {
		r := mi.ranges[j]
		if r.Start <= offset && offset < r.End {
			return r.Path, true
		}
	}
	return nil, false
}

// LookupByPath returns every DIE recorded directly under the module path
// (not including descendants of nested namespaces).
func (mi *ModuleIndex) LookupByPath(path []string) []dwarfdie.Die {
	n := mi.root
	for _, seg := range path {
		child, ok := n.children[seg]
		if !ok {
			return nil
		}
		n = child
	}
	return n.entries
}
