package index

import (
	"bytes"
	"testing"

	dwarf "github.com/blacktop/go-dwarf"
	"github.com/stretchr/testify/require"

	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/index/interval"
	"github.com/rudy-go/rudy/logger"
	"github.com/rudy-go/rudy/objfile"
	"github.com/rudy-go/rudy/symtab"
)

func TestFunctionIndexLookups(t *testing.T) {
	name := symtab.SymbolName{LookupName: "foo", ModulePath: []string{"crate"}}
	info := FunctionAddressInfo{AbsoluteStart: 0x1000, AbsoluteEnd: 0x1010, RelativeStart: 0x10, Name: name}

	fi := &FunctionIndex{
		byName: map[string]FunctionData{
			name.String(): {Name: name, HasRange: true, RelativeStart: 0x10, RelativeEnd: 0x20},
		},
		byAbsoluteAddr: interval.Build([]interval.Interval[FunctionAddressInfo]{
			{Start: info.AbsoluteStart, End: info.AbsoluteEnd, Value: info},
		}),
		byRelativeAddr: interval.Build([]interval.Interval[FunctionAddressInfo]{
			{Start: info.RelativeStart, End: info.RelativeStart + 0x10, Value: info},
		}),
	}

	fd, ok := fi.ByName("crate::foo")
	require.True(t, ok)
	require.True(t, fd.HasRange)

	hits := fi.ByAbsoluteAddress(0x1005)
	require.Len(t, hits, 1)
	require.Equal(t, name, hits[0].Value.Name)

	require.Len(t, fi.ByRelativeAddress(0x15), 1)
	require.Len(t, fi.ByAbsoluteAddress(0x2000), 0)
}

func TestBuildFunctionIndexFromEntriesRecordsAlternates(t *testing.T) {
	name := symtab.SymbolName{LookupName: "foo", ModulePath: []string{"crate"}}

	declOnly := dwarfDieFixture(0x10)
	fullDef := dwarfDieFixture(0x20)
	extraDef := dwarfDieFixture(0x30)

	entries := []functionEntry{
		// A bare declaration (no range) seen first...
		{die: declOnly, name: name, abs: 0x1000},
		// ...followed by the out-of-line definition that actually carries a
		// range, which should be promoted onto the canonical entry...
		{die: fullDef, name: name, abs: 0x1000, rel: struct {
			start, end uint64
			ok         bool
		}{start: 0x10, end: 0x20, ok: true}},
		// ...and a third DIE for the same linkage name, which should be
		// recorded purely as an alternate.
		{die: extraDef, name: name, abs: 0x1000},
	}

	fi := buildFunctionIndexFromEntries(symtab.DebugFile{Path: "main.elf"}, entries)

	fd, ok := fi.ByName("crate::foo")
	require.True(t, ok)
	require.True(t, fd.HasRange)
	require.Equal(t, uint64(0x10), fd.RelativeStart)
	require.Equal(t, uint64(0x20), fd.RelativeEnd)
	require.Equal(t, fullDef, fd.Decl)
	require.Equal(t, []dwarfdie.Die{declOnly, extraDef}, fd.Alternates)

	hits := fi.ByAbsoluteAddress(0x1005)
	require.Len(t, hits, 1)
	require.Equal(t, name, hits[0].Value.Name)
}

func dwarfDieFixture(offset uint64) dwarfdie.Die {
	return dwarfdie.Die{File: symtab.DebugFile{Path: "main.elf"}, Offset: dwarf.Offset(offset)}
}

func TestFunctionRangeHighPCAsOffset(t *testing.T) {
	// buildRustUnit's subprogram has low_pc 0x2000 and a constant-class
	// high_pc of 0x20: the "offset from low_pc" encoding.
	file := symtab.DebugFile{Path: "main.elf"}
	lf := objfile.NewSynthetic(file.Path, buildRustUnit("_ZN5crate3foo17h0000000000000000E"))
	db := dwarfdie.NewDB(map[symtab.DebugFile]*objfile.LoadedFile{file: lf}, logger.New(bytes.NewBuffer(nil)))
	sub := db.CompileUnits(file)[0].Children(db)[0]

	start, end, ok := functionRange(db, sub)
	require.True(t, ok)
	require.Equal(t, uint64(0x2000), start)
	require.Equal(t, uint64(0x2020), end)
}
