package symtab

import (
	"sort"

	"github.com/ianlancetaylor/demangle"

	"github.com/rudy-go/rudy/logger"
	"github.com/rudy-go/rudy/objfile"
)

// DebugFile identifies a file carrying DWARF sections. An archive member
// is identified by (ArchivePath, Member); a non-relocatable DebugFile (the
// main binary itself) has Member == "".
type DebugFile struct {
	Path        string
	Member      string
	Relocatable bool
}

func (d DebugFile) Name() string {
	if d.Member == "" {
		return d.Path
	}
	return d.Path + "(" + d.Member + ")"
}

// Symbol carries a SymbolName, its absolute load address, and owning
// DebugFile.
type Symbol struct {
	Name      SymbolName
	Address   uint64
	DebugFile DebugFile
}

// Index holds every map needed to resolve a binary's symbols by name or by
// address.
type Index struct {
	// functions maps lookup_name -> {SymbolName -> Symbol}, two-level to
	// resolve name ambiguity (multiple symbols sharing a last path segment).
	functions map[string]map[string]Symbol

	// nonFunctions mirrors functions for non-function symbols.
	nonFunctions map[string]map[string]Symbol

	// bySymbolFile maps DebugFile -> {raw linkage name bytes -> Symbol},
	// used to check whether a DWARF subprogram's linkage name actually made
	// it into the final image.
	bySymbolFile map[DebugFile]map[string]Symbol

	// byAddress maps an absolute address to every Symbol at that address;
	// ties are allowed (aliased entry points).
	byAddress   map[uint64][]Symbol
	sortedAddrs []uint64
}

// NewForTesting builds an Index directly from already-computed maps,
// bypassing Build's object-file-scanning path, for other packages' tests
// that need a symbol table wired to hand-built DWARF fixtures rather than a
// real binary on disk. A nil map argument is treated as empty.
func NewForTesting(functions, nonFunctions map[string]map[string]Symbol, bySymbolFile map[DebugFile]map[string]Symbol, byAddress map[uint64][]Symbol) *Index {
	idx := &Index{
		functions:    functions,
		nonFunctions: nonFunctions,
		bySymbolFile: bySymbolFile,
		byAddress:    byAddress,
	}
	if idx.functions == nil {
		idx.functions = map[string]map[string]Symbol{}
	}
	if idx.nonFunctions == nil {
		idx.nonFunctions = map[string]map[string]Symbol{}
	}
	if idx.bySymbolFile == nil {
		idx.bySymbolFile = map[DebugFile]map[string]Symbol{}
	}
	if idx.byAddress == nil {
		idx.byAddress = map[uint64][]Symbol{}
	}
	idx.finalize()
	return idx
}

func newIndex() *Index {
	return &Index{
		functions:    make(map[string]map[string]Symbol),
		nonFunctions: make(map[string]map[string]Symbol),
		bySymbolFile: make(map[DebugFile]map[string]Symbol),
		byAddress:    make(map[uint64][]Symbol),
	}
}

func (idx *Index) insertFunction(name string, sym Symbol) {
	m, ok := idx.functions[name]
	if !ok {
		m = make(map[string]Symbol)
		idx.functions[name] = m
	}
	m[sym.Name.String()] = sym
}

func (idx *Index) insertNonFunction(name string, sym Symbol) {
	m, ok := idx.nonFunctions[name]
	if !ok {
		m = make(map[string]Symbol)
		idx.nonFunctions[name] = m
	}
	m[sym.Name.String()] = sym
}

// GetFunctionsByLookupName returns the ambiguity-resolving inner map for a
// given lookup name, or nil if no function has that name.
func (idx *Index) GetFunctionsByLookupName(name string) map[string]Symbol {
	return idx.functions[name]
}

// SymbolsByFile returns the raw-bytes-keyed symbol map for a DebugFile, used
// to confirm a linkage name was actually linked in.
func (idx *Index) SymbolsByFile(f DebugFile) map[string]Symbol {
	return idx.bySymbolFile[f]
}

// FunctionAtAddress returns the last indexed address <= a and every Symbol
// recorded there; may return multiple Symbols at the same base address
// (aliased functions).
func (idx *Index) FunctionAtAddress(a uint64) (uint64, []Symbol, bool) {
	if len(idx.sortedAddrs) == 0 {
		return 0, nil, false
	}
	i := sort.Search(len(idx.sortedAddrs), func(i int) bool { return idx.sortedAddrs[i] > a })
	if i == 0 {
		return 0, nil, false
	}
	base := idx.sortedAddrs[i-1]
	return base, idx.byAddress[base], true
}

func (idx *Index) finalize() {
	idx.sortedAddrs = make([]uint64, 0, len(idx.byAddress))
	for addr := range idx.byAddress {
		idx.sortedAddrs = append(idx.sortedAddrs, addr)
	}
	sort.Slice(idx.sortedAddrs, func(i, j int) bool { return idx.sortedAddrs[i] < idx.sortedAddrs[j] })
}

// Build opens the main binary, indexes its own symbol table if it carries
// debug info, then walks the object map to discover and index every
// relocatable DebugFile.
func Build(log *logger.Log, mainPath string) (map[DebugFile]*objfile.LoadedFile, *Index, error) {
	idx := newIndex()
	files := make(map[DebugFile]*objfile.LoadedFile)

	main, err := objfile.Open(mainPath, "")
	if err != nil {
		log.Criticalf("symtab", "failed to open main binary %s: %v", mainPath, err)
		return nil, nil, err
	}

	mainDF := DebugFile{Path: mainPath, Relocatable: false}

	if main.HasDebugInfo() {
		files[mainDF] = main
		indexSymbols(log, idx, mainDF, main.SymbolTable())
	}

	// group object-map entries by their target object (path, member) so we
	// open each referenced .o exactly once.
	type bucketKey struct{ path, member string }
	buckets := make(map[bucketKey][]objfile.MappedObjectSymbol)
	order := make([]bucketKey, 0)
	for _, m := range main.ObjectMap() {
		k := bucketKey{m.ObjectPath, m.Member}
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], m)
	}

	for _, k := range order {
		df := DebugFile{Path: k.path, Member: k.member, Relocatable: true}
		lf, err := objfile.Open(k.path, k.member)
		if err != nil {
			log.Warnf("symtab", "failed to open relocatable debug file %s: %v", df.Name(), err)
			continue
		}
		files[df] = lf

		raw := make([]objfile.RawObjectSymbol, 0, len(buckets[k]))
		for _, m := range buckets[k] {
			raw = append(raw, objfile.RawObjectSymbol{
				Name:    m.Name,
				Value:   m.Address,
				IsText:  true, // object-map symbols: function iff size != 0 (approximated: object-map entries are function stabs by construction)
				Defined: true,
			})
		}
		indexSymbols(log, idx, df, raw)
	}

	idx.finalize()
	return files, idx, nil
}

// indexSymbols classifies, demangles and inserts every raw symbol from one
// DebugFile.
func indexSymbols(log *logger.Log, idx *Index, df DebugFile, raw []objfile.RawObjectSymbol) {
	fileMap, ok := idx.bySymbolFile[df]
	if !ok {
		fileMap = make(map[string]Symbol)
		idx.bySymbolFile[df] = fileMap
	}

	for _, r := range raw {
		if !r.Defined {
			continue
		}

		demangled, err := demangle.ToString(r.Name, demangle.NoClones)
		if err != nil {
			log.Tracef("symtab", "failed to demangle %s in %s: %v", r.Name, df.Name(), err)
			continue
		}

		name := ParseSymbolName(demangled)
		sym := Symbol{Name: name, Address: r.Value, DebugFile: df}

		fileMap[r.Name] = sym

		if r.IsText {
			idx.insertFunction(name.LookupName, sym)
			idx.byAddress[r.Value] = append(idx.byAddress[r.Value], sym)
		} else {
			idx.insertNonFunction(name.LookupName, sym)
		}
	}
}
