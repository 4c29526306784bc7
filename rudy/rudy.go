// Package rudy is the query facade (§4.10): it opens a Binary, wires every
// lower layer together (object loading, symbol indexing, DIE navigation,
// per-file indexing, type resolution, address resolution, expression
// evaluation and memory decoding), and answers the five user-facing queries
// with their own result cache layered on top of what each component
// already memoizes internally.
package rudy

import (
	"io"
	"sync"

	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/addr"
	"github.com/rudy-go/rudy/decode"
	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/index"
	"github.com/rudy-go/rudy/logger"
	"github.com/rudy-go/rudy/objfile"
	"github.com/rudy-go/rudy/oracle"
	"github.com/rudy-go/rudy/symtab"
	"github.com/rudy-go/rudy/types"
)

// Option configures Open.
type Option func(*options)

type options struct {
	logWriter io.Writer
}

// WithLogOutput directs the facade's accumulated diagnostics (see Log) to
// w, in addition to the in-memory tail buffer every Binary keeps
// regardless. The default is io.Discard.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logWriter = w }
}

// Binary is one opened object (plus whatever relocatable DebugFiles its
// object map references), and the facade's own query-result cache. Every
// lower-layer index it wires in is built lazily and memoized on its own
// terms; Binary additionally caches four of the five top-level query
// results, and the oracle-independent variable structure behind the fifth
// (ResolveVariablesAt), so a repeated call with equal arguments never
// re-walks a line program or re-searches a compile unit for a type name.
type Binary struct {
	identity      objfile.Identity
	log           *logger.Log
	files         map[symtab.DebugFile]*objfile.LoadedFile
	symIdx        *symtab.Index
	db            *dwarfdie.DB
	per           *index.PerFile
	resolver      *types.Resolver
	addrRes       *addr.Resolver
	workspaceRoot string

	mu               sync.Mutex
	lookupAddrCache  map[uint64]lookupAddressResult
	lookupPosCache   map[positionKey]positionResult
	findFuncCache    map[string]findFunctionResult
	resolveTypeCache map[string]types.TypeLayout
	variablesCache   map[uint64]variableEntries
	globalsCache     map[symtab.DebugFile][]dwarfdie.Die
	indexedFiles     []symtab.DebugFile
	indexedFilesSet  bool
}

type lookupAddressResult struct {
	name  symtab.SymbolName
	loc   addr.Location
	found bool
}

type positionKey struct {
	file string
	line int
}

type positionResult struct {
	address uint64
	found   bool
}

type findFunctionResult struct {
	name  symtab.SymbolName
	file  symtab.DebugFile
	found bool
}

// Open memory-maps path (per-file identity recorded via objfile.Stat),
// indexes its symbol table and every relocatable DebugFile its object map
// references, and returns a Binary ready to answer queries. Failure to
// open or index the main binary is terminal — mirroring §4.1's failure
// semantics — and returned as-is (already a curated error).
func Open(path string, opts ...Option) (*Binary, error) {
	o := options{logWriter: io.Discard}
	for _, opt := range opts {
		opt(&o)
	}

	id, err := objfile.Stat(path)
	if err != nil {
		return nil, err
	}

	log := logger.New(o.logWriter)

	files, symIdx, err := symtab.Build(log, path)
	if err != nil {
		return nil, err
	}

	db := dwarfdie.NewDB(files, log)
	per := index.NewPerFile(db, log, symIdx)
	resolver := types.NewResolver(db)
	addrRes := addr.NewResolver(db, per, log)

	root, ok := index.DetectModuleRoot(path)
	if !ok {
		log.Warnf("index", "could not detect module workspace root for %s, name-based search will find nothing", path)
	}

	return &Binary{
		identity:         id,
		log:              log,
		files:            files,
		symIdx:           symIdx,
		db:               db,
		per:              per,
		resolver:         resolver,
		addrRes:          addrRes,
		workspaceRoot:    root,
		lookupAddrCache:  make(map[uint64]lookupAddressResult),
		lookupPosCache:   make(map[positionKey]positionResult),
		findFuncCache:    make(map[string]findFunctionResult),
		resolveTypeCache: make(map[string]types.TypeLayout),
		variablesCache:   make(map[uint64]variableEntries),
		globalsCache:     make(map[symtab.DebugFile][]dwarfdie.Die),
	}, nil
}

// indexedFiles returns the DebugFiles whose sources were detected inside
// the workspace root, memoized after the first call. Name-based search
// (FindFunction, ResolveType) is scoped to this set; address-based lookups
// are not and continue to consult every DebugFile regardless.
func (b *Binary) indexedFiles() []symtab.DebugFile {
	b.mu.Lock()
	if b.indexedFilesSet {
		defer b.mu.Unlock()
		return b.indexedFiles
	}
	b.mu.Unlock()

	files := b.per.IndexedDebugFiles(b.db.Files(), b.workspaceRoot)

	b.mu.Lock()
	b.indexedFiles = files
	b.indexedFilesSet = true
	b.mu.Unlock()
	return files
}

// Close releases every memory mapping this Binary opened. Every Die handle
// and TypeLayout it produced becomes invalid once Close returns.
func (b *Binary) Close() error {
	var first error
	for _, lf := range b.files {
		if err := lf.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Log exposes the accumulated diagnostic tail buffer built up while
// indexing and querying this Binary.
func (b *Binary) Log() *logger.Log { return b.log }

// Identity returns the (path, mtime, size) this Binary was opened with.
func (b *Binary) Identity() objfile.Identity { return b.identity }

// LookupAddress answers §6's lookup_address: the symbol and source
// location containing absolute address addr, or false if none does.
func (b *Binary) LookupAddress(address uint64) (symtab.SymbolName, addr.Location, bool) {
	b.mu.Lock()
	if r, ok := b.lookupAddrCache[address]; ok {
		b.mu.Unlock()
		return r.name, r.loc, r.found
	}
	b.mu.Unlock()

	name, loc, found := b.addrRes.LookupAddress(b.db.Files(), address)
	res := lookupAddressResult{name: name, loc: loc, found: found}

	b.mu.Lock()
	b.lookupAddrCache[address] = res
	b.mu.Unlock()
	return name, loc, found
}

// LookupPosition answers §6's lookup_position: the absolute address of the
// best-matching row for (file, line), or false if no DebugFile's indexed
// source set contains file.
func (b *Binary) LookupPosition(file string, line int) (uint64, bool) {
	key := positionKey{file: file, line: line}

	b.mu.Lock()
	if r, ok := b.lookupPosCache[key]; ok {
		b.mu.Unlock()
		return r.address, r.found
	}
	b.mu.Unlock()

	address, found := b.addrRes.LookupPosition(b.db.Files(), file, line)
	res := positionResult{address: address, found: found}

	b.mu.Lock()
	b.lookupPosCache[key] = res
	b.mu.Unlock()
	return address, found
}

// FindFunction answers §6's find_function: the resolved SymbolName and
// owning DebugFile for a (possibly module-qualified) function name, found
// via the lookup-name bucket the symbol index's two-level map already
// builds (§4.2) and disambiguated the same way symtab.SymbolName.MatchesNameAndModule
// resolves any other suffix-qualified query. Candidates are restricted to
// the workspace-indexed DebugFiles (see indexedFiles); a linked-in symbol
// whose only source references point outside the detected module root
// (vendored dependency code, for instance) is invisible to name search here
// even though LookupAddress would still find it.
func (b *Binary) FindFunction(name string) (symtab.SymbolName, symtab.DebugFile, bool) {
	b.mu.Lock()
	if r, ok := b.findFuncCache[name]; ok {
		b.mu.Unlock()
		return r.name, r.file, r.found
	}
	b.mu.Unlock()

	query := symtab.ParseSymbolName(name)
	candidates := b.symIdx.GetFunctionsByLookupName(query.LookupName)
	indexed := indexedFileSet(b.indexedFiles())

	var best symtab.Symbol
	found := false
	for _, sym := range candidates {
		if !indexed[sym.DebugFile] {
			continue
		}
		if !sym.Name.MatchesNameAndModule(query.LookupName, query.ModulePath) {
			continue
		}
		// Prefer the candidate whose module path is the shortest match: the
		// spec's suffix rule allows an under-qualified query to match several
		// symbols sharing a last segment, and the least-nested one is the
		// most likely intended target absent a fuller qualifier.
		if !found || len(sym.Name.ModulePath) < len(best.Name.ModulePath) {
			best, found = sym, true
		}
	}

	res := findFunctionResult{name: best.Name, file: best.DebugFile, found: found}

	b.mu.Lock()
	b.findFuncCache[name] = res
	b.mu.Unlock()
	return res.name, res.file, res.found
}

// indexedFileSet turns a slice of indexed DebugFiles into a membership set
// for cheap per-candidate filtering.
func indexedFileSet(files []symtab.DebugFile) map[symtab.DebugFile]bool {
	set := make(map[symtab.DebugFile]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	return set
}

// ResolveType answers §6's resolve_type: the fully-resolved TypeLayout for
// a (possibly module-qualified) struct/union/enum name, searched for across
// every workspace-indexed DebugFile (see indexedFiles). A name that
// resolves to nothing is not an error — §7 requires it come back as
// TypeLayout::Other so a caller can render something.
func (b *Binary) ResolveType(name string) types.TypeLayout {
	b.mu.Lock()
	if tl, ok := b.resolveTypeCache[name]; ok {
		b.mu.Unlock()
		return tl
	}
	b.mu.Unlock()

	result := types.TypeLayout{Kind: types.KindOther, Other: name}
	for _, f := range b.indexedFiles() {
		d, ok := types.FindTypeDie(b.db, f, name)
		if !ok {
			continue
		}
		result = b.resolver.FullResolve(d)
		break
	}

	b.mu.Lock()
	b.resolveTypeCache[name] = result
	b.mu.Unlock()
	return result
}

// Variable is one parameter, local or global resolved at a program point:
// its name, its declared type's display name as rustc emitted it, and the
// decoded Value at that point, or nil if its location couldn't be
// evaluated (e.g. the compiler optimized it out — no DW_AT_location at
// all, which is §7's NotFound case, not an error).
type Variable struct {
	Name         string
	TypeDisplay  string
	DecodedValue *decode.Value
}

// VariableSet is the result of ResolveVariablesAt.
type VariableSet struct {
	Params  []Variable
	Locals  []Variable
	Globals []Variable
}

type variableEntries struct {
	file    symtab.DebugFile
	decl    dwarfdie.Die
	params  []dwarfdie.Die
	locals  []dwarfdie.Die
	globals []dwarfdie.Die
}

// ResolveVariablesAt answers §6's resolve_variables_at: every parameter,
// local and in-scope global visible at absolute address addr, each
// decoded through o. An address matching no indexed function returns a
// zero VariableSet, not an error — mirroring every other lookup query's
// Option-like failure semantics. An error surfaces only when a variable
// that *is* found fails to decode (an oracle I/O failure, or a location
// expression this engine can't evaluate) — §7's query-fatal band.
func (b *Binary) ResolveVariablesAt(address uint64, o oracle.Oracle) (VariableSet, error) {
	for _, f := range b.db.Files() {
		fi, err := b.per.Functions(f)
		if err != nil || fi == nil {
			continue
		}
		hits := fi.ByAbsoluteAddress(address)
		if len(hits) == 0 {
			continue
		}
		info := hits[0].Value
		fd, ok := fi.ByName(info.Name.String())
		if !ok || !fd.HasRange {
			continue
		}

		entries := b.discoverVariables(f, fd.Decl)
		linkBias := info.AbsoluteStart - info.RelativeStart
		decoder := decode.NewDecoder(b.resolver, o)

		var out VariableSet
		var derr error
		if out.Params, derr = b.decodeVariables(decoder, fd.Decl, linkBias, entries.params, o); derr != nil {
			return VariableSet{}, derr
		}
		if out.Locals, derr = b.decodeVariables(decoder, fd.Decl, linkBias, entries.locals, o); derr != nil {
			return VariableSet{}, derr
		}
		if out.Globals, derr = b.decodeVariables(decoder, fd.Decl, linkBias, entries.globals, o); derr != nil {
			return VariableSet{}, derr
		}
		return out, nil
	}
	return VariableSet{}, nil
}

// discoverVariables finds the structural (name, type, location-expression)
// shape of every parameter, local and in-scope global for decl, memoized
// by decl's own entry address since that structure never changes for a
// fixed Binary — only the decoded values drawn from a fresh oracle do.
func (b *Binary) discoverVariables(file symtab.DebugFile, decl dwarfdie.Die) variableEntries {
	key := uint64(decl.Offset)

	b.mu.Lock()
	if e, ok := b.variablesCache[key]; ok {
		b.mu.Unlock()
		return e
	}
	b.mu.Unlock()

	v := &localsVisitor{db: b.db}
	_ = b.db.WalkUnit(decl, v)

	e := variableEntries{
		file:    file,
		decl:    decl,
		params:  v.params,
		locals:  v.locals,
		globals: b.globalsFor(file, decl),
	}

	b.mu.Lock()
	b.variablesCache[key] = e
	b.mu.Unlock()
	return e
}

// globalsFor returns every top-level static in the compile unit owning
// decl, memoized per DebugFile for the compile unit last asked about: a
// CU's statics don't depend on which function within it is being queried.
// A CU with no statics is walked again on every call.
func (b *Binary) globalsFor(file symtab.DebugFile, decl dwarfdie.Die) []dwarfdie.Die {
	b.mu.Lock()
	if g, ok := b.globalsCache[file]; ok && len(g) > 0 && g[0].CU == decl.CU {
		b.mu.Unlock()
		return g
	}
	b.mu.Unlock()

	cuRoot := dwarfdie.Die{File: decl.File, CU: decl.CU, Offset: decl.CU}
	g := collectGlobals(b.db, cuRoot)

	b.mu.Lock()
	b.globalsCache[file] = g
	b.mu.Unlock()
	return g
}

// collectGlobals recurses through namespace DIEs looking for top-level
// DW_TAG_variable entries — the module tree rustc emits for a crate's
// statics and consts.
func collectGlobals(db *dwarfdie.DB, d dwarfdie.Die) []dwarfdie.Die {
	var out []dwarfdie.Die
	for _, c := range d.Children(db) {
		switch c.Tag(db) {
		case dwarf.TagVariable:
			out = append(out, c)
		case dwarf.TagNamespace:
			out = append(out, collectGlobals(db, c)...)
		}
	}
	return out
}

// localsVisitor walks one function's own subtree (not its CU), collecting
// formal parameters and variables while descending into nested lexical
// blocks but not into a nested subprogram or inlined subroutine — a
// closure or inner fn item owns its own locals, which don't belong to the
// outer function's scope.
type localsVisitor struct {
	dwarfdie.BaseVisitor
	db     *dwarfdie.DB
	params []dwarfdie.Die
	locals []dwarfdie.Die
}

func (v *localsVisitor) VisitFunction(w *dwarfdie.Walker, d dwarfdie.Die) error {
	if w.Depth() > 0 {
		return nil
	}
	return w.WalkChildren(d)
}

func (v *localsVisitor) VisitVariable(w *dwarfdie.Walker, d dwarfdie.Die) error {
	if d.Tag(v.db) == dwarf.TagFormalParameter {
		v.params = append(v.params, d)
	} else {
		v.locals = append(v.locals, d)
	}
	return nil
}
