package index

import (
	"bytes"
	"testing"

	dwarf "github.com/blacktop/go-dwarf"
	"github.com/stretchr/testify/require"

	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/internal/dwarftest"
	"github.com/rudy-go/rudy/logger"
	"github.com/rudy-go/rudy/objfile"
	"github.com/rudy-go/rudy/symtab"
)

// buildRustUnit assembles a single Rust compile unit with one subprogram:
// fn foo() at DW_AT_low_pc 0x2000, DW_AT_high_pc (offset form) 0x20 bytes
// long, carrying a linkage name the linker kept.
func buildRustUnit(linkage string) *dwarf.Data {
	sub := dwarftest.Node(dwarf.TagSubprogram, []dwarftest.Attr{
		dwarftest.Str(dwarf.AttrName, "foo"),
		dwarftest.Str(dwarf.AttrLinkageName, linkage),
		dwarftest.Addr(dwarf.AttrLowpc, 0x2000),
		dwarftest.Data8(dwarf.AttrHighpc, 0x20),
	})
	cu := dwarftest.Node(dwarf.TagCompileUnit, []dwarftest.Attr{
		dwarftest.Str(dwarf.AttrName, "main.rs"),
		dwarftest.Str(dwarf.AttrCompDir, "/src"),
		dwarftest.Data1(dwarf.AttrLanguage, dwLangRust),
	}, sub)

	d, err := dwarftest.Data(cu)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBuildFunctionIndexEndToEnd(t *testing.T) {
	const linkage = "_ZN5crate3foo17h0000000000000000E"

	file := symtab.DebugFile{Path: "main.elf"}
	name := symtab.SymbolName{LookupName: "foo", ModulePath: []string{"crate"}}
	sym := symtab.Symbol{Name: name, Address: 0x5000, DebugFile: file}

	symIdx := symtab.NewForTesting(
		map[string]map[string]symtab.Symbol{"foo": {name.String(): sym}},
		nil,
		map[symtab.DebugFile]map[string]symtab.Symbol{file: {linkage: sym}},
		map[uint64][]symtab.Symbol{0x5000: {sym}},
	)

	lf := objfile.NewSynthetic(file.Path, buildRustUnit(linkage))
	log := logger.New(bytes.NewBuffer(nil))
	db := dwarfdie.NewDB(map[symtab.DebugFile]*objfile.LoadedFile{file: lf}, log)

	fi, err := BuildFunctionIndex(db, log, symIdx, file)
	require.NoError(t, err)

	fd, ok := fi.ByName("crate::foo")
	require.True(t, ok)
	require.True(t, fd.HasRange)
	require.Equal(t, uint64(0x2000), fd.RelativeStart)
	require.Equal(t, uint64(0x2020), fd.RelativeEnd)
	require.Empty(t, fd.Alternates)

	// Invariant #2: the absolute-address tree's point query at any address
	// in [start, end) returns this function.
	hits := fi.ByAbsoluteAddress(0x5010)
	require.Len(t, hits, 1)
	require.Equal(t, name, hits[0].Value.Name)
	require.Equal(t, uint64(0x5000), hits[0].Value.AbsoluteStart)
	require.Equal(t, uint64(0x5020), hits[0].Value.AbsoluteEnd)

	// Invariant #7: below the minimum address there is nothing to find.
	require.Empty(t, fi.ByAbsoluteAddress(0x4fff))
	require.Empty(t, fi.ByAbsoluteAddress(0x5020))

	relHits := fi.ByRelativeAddress(0x2010)
	require.Len(t, relHits, 1)
	require.Equal(t, name, relHits[0].Value.Name)
}

func TestBuildFunctionIndexDropsLinkerDiscardedFunction(t *testing.T) {
	file := symtab.DebugFile{Path: "main.elf"}
	symIdx := symtab.NewForTesting(nil, nil, nil, nil)

	lf := objfile.NewSynthetic(file.Path, buildRustUnit("_ZN5crate3foo17h0000000000000000E"))
	log := logger.New(bytes.NewBuffer(nil))
	db := dwarfdie.NewDB(map[symtab.DebugFile]*objfile.LoadedFile{file: lf}, log)

	fi, err := BuildFunctionIndex(db, log, symIdx, file)
	require.NoError(t, err)

	_, ok := fi.ByName("crate::foo")
	require.False(t, ok)
}
