// Package index builds the three per-DebugFile artifacts layered on top of
// the DIE navigator: a namespace range index, a source-file set, and a
// function index restricted to what the linker actually kept. Each is
// built lazily, independently, and memoized the first time it's asked for.
package index

import (
	"sync"

	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/logger"
	"github.com/rudy-go/rudy/symtab"
)

// PerFile memoizes the three indexes for every DebugFile it has been asked
// to build, keyed on the DebugFile value itself.
type PerFile struct {
	db     *dwarfdie.DB
	log    *logger.Log
	symIdx *symtab.Index

	mu        sync.Mutex
	modules   map[symtab.DebugFile]*ModuleIndex
	sources   map[symtab.DebugFile][]SourceFile
	functions map[symtab.DebugFile]*FunctionIndex
}

func NewPerFile(db *dwarfdie.DB, log *logger.Log, symIdx *symtab.Index) *PerFile {
	return &PerFile{
		db:        db,
		log:       log,
		symIdx:    symIdx,
		modules:   make(map[symtab.DebugFile]*ModuleIndex),
		sources:   make(map[symtab.DebugFile][]SourceFile),
		functions: make(map[symtab.DebugFile]*FunctionIndex),
	}
}

// Modules returns the namespace range index for file, building and caching
// it on first use. Only the first compile unit is indexed for module
// ranges: namespace structure in Rust binaries does not vary meaningfully
// across CUs within the same DebugFile.
func (pf *PerFile) Modules(file symtab.DebugFile) (*ModuleIndex, error) {
	pf.mu.Lock()
	if mi, ok := pf.modules[file]; ok {
		pf.mu.Unlock()
		return mi, nil
	}
	pf.mu.Unlock()

	cus := pf.db.CompileUnits(file)
	if len(cus) == 0 {
		return &ModuleIndex{}, nil
	}

	mi, err := BuildModuleIndex(pf.db, cus[0])
	if err != nil {
		return nil, err
	}

	pf.mu.Lock()
	pf.modules[file] = mi
	pf.mu.Unlock()
	return mi, nil
}

// SourceFiles returns the union of every compile unit's line-program file
// table for file, building and caching it on first use.
func (pf *PerFile) SourceFiles(file symtab.DebugFile) ([]SourceFile, error) {
	pf.mu.Lock()
	if sf, ok := pf.sources[file]; ok {
		pf.mu.Unlock()
		return sf, nil
	}
	pf.mu.Unlock()

	seen := make(map[string]bool)
	var all []SourceFile
	for _, cu := range pf.db.CompileUnits(file) {
		sf, err := BuildSourceFileSet(pf.db, file, cu)
		if err != nil {
			pf.log.Warnf("index", "failed to read line program in %s: %v", file.Name(), err)
			continue
		}
		for _, f := range sf {
			if seen[f.Path] {
				continue
			}
			seen[f.Path] = true
			all = append(all, f)
		}
	}

	pf.mu.Lock()
	pf.sources[file] = all
	pf.mu.Unlock()
	return all, nil
}

// Functions returns the function index for file, building and caching it
// on first use.
func (pf *PerFile) Functions(file symtab.DebugFile) (*FunctionIndex, error) {
	pf.mu.Lock()
	if fi, ok := pf.functions[file]; ok {
		pf.mu.Unlock()
		return fi, nil
	}
	pf.mu.Unlock()

	fi, err := BuildFunctionIndex(pf.db, pf.log, pf.symIdx, file)
	if err != nil {
		return nil, err
	}

	pf.mu.Lock()
	pf.functions[file] = fi
	pf.mu.Unlock()
	return fi, nil
}
