package types

import (
	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/symtab"
)

// typeSearchVisitor walks a compile unit looking for the first struct,
// union or enum DIE whose display name matches a query, stopping descent
// into any subtree once a hit is recorded.
type typeSearchVisitor struct {
	dwarfdie.BaseVisitor
	db     *dwarfdie.DB
	query  symtab.SymbolName
	found  dwarfdie.Die
	hasHit bool
}

func (v *typeSearchVisitor) matches(d dwarfdie.Die) bool {
	if v.hasHit {
		return false
	}
	n := symtab.ParseSymbolName(d.Name(v.db))
	return n.MatchesNameAndModule(v.query.LookupName, v.query.ModulePath)
}

func (v *typeSearchVisitor) VisitStruct(w *dwarfdie.Walker, d dwarfdie.Die) error {
	if v.matches(d) {
		v.found, v.hasHit = d, true
		return nil
	}
	return w.WalkChildren(d)
}

func (v *typeSearchVisitor) VisitEnum(w *dwarfdie.Walker, d dwarfdie.Die) error {
	if v.matches(d) {
		v.found, v.hasHit = d, true
		return nil
	}
	return w.WalkChildren(d)
}

func (v *typeSearchVisitor) VisitUnion(w *dwarfdie.Walker, d dwarfdie.Die) error {
	if v.matches(d) {
		v.found, v.hasHit = d, true
		return nil
	}
	return w.WalkChildren(d)
}

// FindTypeDie searches every compile unit in file for a struct, union or
// enum DIE whose display name matches name (optionally module-qualified,
// e.g. "crate::module::TestStruct"), applying the same suffix-match rule
// symtab.SymbolName.MatchesNameAndModule uses for function lookups.
func FindTypeDie(db *dwarfdie.DB, file symtab.DebugFile, name string) (dwarfdie.Die, bool) {
	v := &typeSearchVisitor{db: db, query: symtab.ParseSymbolName(name)}
	for _, cu := range db.CompileUnits(file) {
		if v.hasHit {
			break
		}
		_ = db.WalkUnit(cu, v)
	}
	return v.found, v.hasHit
}
