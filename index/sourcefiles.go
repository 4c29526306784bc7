package index

import (
	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/errors"
	"github.com/rudy-go/rudy/symtab"
)

// SourceFile is one entry from a compilation unit's line-program file
// table, with its path resolved against the CU's own compile directory.
type SourceFile struct {
	Path    string
	CompDir string
}

// BuildSourceFileSet walks cuRoot's line-program header once and returns
// the set of SourceFiles it declares, alongside the CU's own compile
// directory (duplicated onto every entry so callers don't need to track
// it separately per CU).
func BuildSourceFileSet(db *dwarfdie.DB, file symtab.DebugFile, cuRoot dwarfdie.Die) ([]SourceFile, error) {
	data := db.Data(file)
	if data == nil {
		return nil, errors.E(errors.MalformedDie, errors.LineProgramError, "no dwarf data for "+file.Name())
	}

	r := data.Reader()
	r.Seek(cuRoot.Offset)
	cu, err := r.Next()
	if err != nil || cu == nil {
		return nil, errors.E(errors.MalformedDie, errors.LineProgramError, "cannot read compile unit entry")
	}

	compDir, _ := cu.Val(dwarf.AttrCompDir).(string)

	lr, err := data.LineReader(cu)
	if err != nil {
		return nil, errors.E(errors.ParseError, errors.LineProgramError, err)
	}
	if lr == nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	var out []SourceFile
	for _, f := range lr.Files() {
		if f == nil || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		out = append(out, SourceFile{Path: f.Name, CompDir: compDir})
	}
	return out, nil
}
