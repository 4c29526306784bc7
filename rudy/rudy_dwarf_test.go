package rudy

import (
	"bytes"
	"testing"

	dwarf "github.com/blacktop/go-dwarf"
	"github.com/stretchr/testify/require"

	"github.com/rudy-go/rudy/addr"
	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/index"
	"github.com/rudy-go/rudy/internal/dwarftest"
	"github.com/rudy-go/rudy/logger"
	"github.com/rudy-go/rudy/objfile"
	"github.com/rudy-go/rudy/symtab"
	"github.com/rudy-go/rudy/types"
)

const dwarfTestLinkage = "_ZN5crate3foo17h0000000000000000E"

// buildBinaryUnit assembles one compile unit with a single subprogram
// fn foo() at 0x2000..0x2020, a DW_AT_stmt_list line program attributing
// that range to main.rs under /src, and returns the parsed DWARF data so a
// caller can wire both a DB and a PerFile against it.
func buildBinaryUnit() *dwarf.Data {
	sub := dwarftest.Node(dwarf.TagSubprogram, []dwarftest.Attr{
		dwarftest.Str(dwarf.AttrName, "foo"),
		dwarftest.Str(dwarf.AttrLinkageName, dwarfTestLinkage),
		dwarftest.Addr(dwarf.AttrLowpc, 0x2000),
		dwarftest.Data8(dwarf.AttrHighpc, 0x20),
	})
	cu := dwarftest.Node(dwarf.TagCompileUnit, []dwarftest.Attr{
		dwarftest.Str(dwarf.AttrName, "main.rs"),
		dwarftest.Str(dwarf.AttrCompDir, "/src"),
		dwarftest.Data1(dwarf.AttrLanguage, 0x1c), // DW_LANG_Rust
		dwarftest.SecOffset(dwarf.AttrStmtList, 0),
	}, sub)

	line := dwarftest.LineProgram("main.rs", []dwarftest.LineRow{
		{Address: 0x2000, Line: 10},
		{Address: 0x2010, Line: 11},
	})

	d, err := dwarftest.DataWithLine(cu, line)
	if err != nil {
		panic(err)
	}
	return d
}

// newBinaryWithFixture wires a Binary against the fixture built by
// buildBinaryUnit, with the given workspaceRoot, exactly the way Open
// would except without an actual file on disk.
func newBinaryWithFixture(t *testing.T, workspaceRoot string) *Binary {
	t.Helper()

	file := symtab.DebugFile{Path: "main.elf"}
	name := symtab.SymbolName{LookupName: "foo", ModulePath: []string{"crate"}}
	sym := symtab.Symbol{Name: name, Address: 0x5000, DebugFile: file}

	symIdx := symtab.NewForTesting(
		map[string]map[string]symtab.Symbol{"foo": {name.String(): sym}},
		nil,
		map[symtab.DebugFile]map[string]symtab.Symbol{file: {dwarfTestLinkage: sym}},
		map[uint64][]symtab.Symbol{0x5000: {sym}},
	)

	lf := objfile.NewSynthetic(file.Path, buildBinaryUnit())
	log := logger.New(bytes.NewBuffer(nil))
	db := dwarfdie.NewDB(map[symtab.DebugFile]*objfile.LoadedFile{file: lf}, log)
	per := index.NewPerFile(db, log, symIdx)
	resolver := types.NewResolver(db)
	addrRes := addr.NewResolver(db, per, log)

	return &Binary{
		log:              log,
		files:            map[symtab.DebugFile]*objfile.LoadedFile{file: lf},
		symIdx:           symIdx,
		db:               db,
		per:              per,
		resolver:         resolver,
		addrRes:          addrRes,
		workspaceRoot:    workspaceRoot,
		lookupAddrCache:  make(map[uint64]lookupAddressResult),
		lookupPosCache:   make(map[positionKey]positionResult),
		findFuncCache:    make(map[string]findFunctionResult),
		resolveTypeCache: make(map[string]types.TypeLayout),
		variablesCache:   make(map[uint64]variableEntries),
		globalsCache:     make(map[symtab.DebugFile][]dwarfdie.Die),
	}
}

// TestFindFunctionScopedToWorkspaceRoot exercises invariant #4 (round trip
// B: find_function on an indexed function's own display name returns it)
// through the full facade, and confirms the new workspace-root filtering
// actually gates name-based search: the same binary finds the function
// when its source sits under the detected root and fails to when it
// doesn't, even though the DWARF and symbol data are identical either way.
func TestFindFunctionScopedToWorkspaceRoot(t *testing.T) {
	b := newBinaryWithFixture(t, "/src")

	name, file, ok := b.FindFunction("crate::foo")
	require.True(t, ok)
	require.Equal(t, "foo", name.LookupName)
	require.Equal(t, symtab.DebugFile{Path: "main.elf"}, file)

	outside := newBinaryWithFixture(t, "/elsewhere")
	_, _, ok = outside.FindFunction("crate::foo")
	require.False(t, ok)
}

// TestLookupAddressIgnoresWorkspaceFilter confirms §4.7's address-based
// lookup is unaffected by the workspace-root scoping that gates
// FindFunction: the same function is found by address whether or not its
// source lies under the detected root.
func TestLookupAddressIgnoresWorkspaceFilter(t *testing.T) {
	b := newBinaryWithFixture(t, "/elsewhere")

	name, loc, ok := b.LookupAddress(0x5000)
	require.True(t, ok)
	require.Equal(t, "foo", name.LookupName)
	require.Equal(t, "/src/main.rs", loc.File)
	require.Equal(t, 10, loc.Line)
}

// TestLookupPositionFindsNearestRow exercises §6's lookup_position (S2):
// requesting a line with no exact row returns the nearest row at or after
// it, translated back to an absolute address via the function's link bias.
func TestLookupPositionFindsNearestRow(t *testing.T) {
	b := newBinaryWithFixture(t, "/src")

	// line 9 has no row; the nearest row after it is line 10 at 0x2000,
	// which the link bias (0x5000 - 0x2000) maps to 0x5000.
	address, ok := b.LookupPosition("/src/main.rs", 9)
	require.True(t, ok)
	require.Equal(t, uint64(0x5000), address)
}
