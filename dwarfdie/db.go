// Package dwarfdie provides cursor-based and tree-based access to
// Debugging Information Entries within a compilation unit, plus a
// depth-tracking visitor framework for walking them.
//
// Dies are cheap-to-copy handles — a (DebugFile, CU offset, DIE offset)
// triple — that resolve lazily against whichever of several DebugFiles
// they belong to, rather than holding a live *dwarf.Reader open.
package dwarfdie

import (
	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/logger"
	"github.com/rudy-go/rudy/objfile"
	"github.com/rudy-go/rudy/symtab"
)

// DB borrows the set of LoadedFiles produced by symtab.Build and hands out
// *dwarf.Reader positioned within them. It implements no caching itself —
// DB is the thin, repeatedly-callable substrate every other component is
// built on; memoization lives above it, in the facade.
type DB struct {
	files map[symtab.DebugFile]*objfile.LoadedFile
	log   *logger.Log
}

func NewDB(files map[symtab.DebugFile]*objfile.LoadedFile, log *logger.Log) *DB {
	return &DB{files: files, log: log}
}

// Data returns the parsed DWARF view for f, or nil if f is unknown or
// carries no DWARF.
func (db *DB) Data(f symtab.DebugFile) *dwarf.Data {
	lf, ok := db.files[f]
	if !ok {
		return nil
	}
	return lf.DWARF()
}

// Log exposes the shared diagnostic sink.
func (db *DB) Log() *logger.Log { return db.log }

// Files returns every known DebugFile, for callers that need to iterate all
// of them (e.g. the rudy facade's address lookups, which pass the list on
// to addr.LookupAddress and addr.LookupPosition).
func (db *DB) Files() []symtab.DebugFile {
	out := make([]symtab.DebugFile, 0, len(db.files))
	for f := range db.files {
		out = append(out, f)
	}
	return out
}

// CompileUnits returns the root Die of every top-level compile unit in
// file, skipping straight past each unit's children (SkipChildren) since
// enumerating roots never needs to descend into them.
func (db *DB) CompileUnits(file symtab.DebugFile) []Die {
	data := db.Data(file)
	if data == nil {
		return nil
	}
	var out []Die
	r := data.Reader()
	for {
		e, err := r.Next()
		if err != nil || e == nil {
			break
		}
		if e.Tag == dwarf.TagCompileUnit {
			out = append(out, Die{File: file, CU: e.Offset, Offset: e.Offset})
		}
		r.SkipChildren()
	}
	return out
}
