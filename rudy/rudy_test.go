package rudy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudy-go/rudy/addr"
	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/index"
	"github.com/rudy-go/rudy/logger"
	"github.com/rudy-go/rudy/objfile"
	"github.com/rudy-go/rudy/symtab"
	"github.com/rudy-go/rudy/types"
)

// newEmptyBinary builds a Binary with no underlying files, exercising every
// query's not-found path without a compiled DWARF fixture on disk.
func newEmptyBinary() *Binary {
	log := logger.New(bytes.NewBuffer(nil))
	db := dwarfdie.NewDB(nil, log)
	symIdx := &symtab.Index{}
	per := index.NewPerFile(db, log, symIdx)
	resolver := types.NewResolver(db)
	addrRes := addr.NewResolver(db, per, log)

	return &Binary{
		log:              log,
		files:            map[symtab.DebugFile]*objfile.LoadedFile{},
		symIdx:           symIdx,
		db:               db,
		per:              per,
		resolver:         resolver,
		addrRes:          addrRes,
		lookupAddrCache:  make(map[uint64]lookupAddressResult),
		lookupPosCache:   make(map[positionKey]positionResult),
		findFuncCache:    make(map[string]findFunctionResult),
		resolveTypeCache: make(map[string]types.TypeLayout),
		variablesCache:   make(map[uint64]variableEntries),
		globalsCache:     make(map[symtab.DebugFile][]dwarfdie.Die),
	}
}

func TestFindFunctionNotFound(t *testing.T) {
	b := newEmptyBinary()
	_, _, found := b.FindFunction("missing")
	require.False(t, found)
}

func TestResolveTypeFallsBackToOther(t *testing.T) {
	b := newEmptyBinary()
	tl := b.ResolveType("mycrate::Thing")
	require.Equal(t, types.KindOther, tl.Kind)
	require.Equal(t, "mycrate::Thing", tl.Other)
}

func TestResolveTypeIsCached(t *testing.T) {
	b := newEmptyBinary()
	first := b.ResolveType("mycrate::Thing")
	_, ok := b.resolveTypeCache["mycrate::Thing"]
	require.True(t, ok)
	second := b.ResolveType("mycrate::Thing")
	require.Equal(t, first, second)
}

func TestResolveVariablesAtNoMatchingFunction(t *testing.T) {
	b := newEmptyBinary()
	vs, err := b.ResolveVariablesAt(0xdeadbeef, nil)
	require.NoError(t, err)
	require.Empty(t, vs.Params)
	require.Empty(t, vs.Locals)
	require.Empty(t, vs.Globals)
}

func TestLookupAddressNotFoundAndCached(t *testing.T) {
	b := newEmptyBinary()
	_, _, found := b.LookupAddress(0x1000)
	require.False(t, found)
	_, ok := b.lookupAddrCache[0x1000]
	require.True(t, ok)
}

func TestLookupPositionNotFoundAndCached(t *testing.T) {
	b := newEmptyBinary()
	_, found := b.LookupPosition("src/main.rs", 10)
	require.False(t, found)
	_, ok := b.lookupPosCache[positionKey{file: "src/main.rs", line: 10}]
	require.True(t, ok)
}

func TestImmediateOracleReadMemoryInRange(t *testing.T) {
	o := immediateOracle{data: []byte{1, 2, 3, 4}}
	b, err := o.ReadMemory(1, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 3}, b)
}

func TestImmediateOracleReadMemoryOutOfRange(t *testing.T) {
	o := immediateOracle{data: []byte{1, 2, 3}}
	b, err := o.ReadMemory(10, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestImmediateOracleBaseAddressAndRegisters(t *testing.T) {
	o := immediateOracle{data: []byte{1}}
	require.Equal(t, uint64(0), o.BaseAddress())
	regs, err := o.GetRegisters()
	require.NoError(t, err)
	require.Nil(t, regs)
}

func TestCollectGlobalsEmptyDie(t *testing.T) {
	log := logger.New(bytes.NewBuffer(nil))
	db := dwarfdie.NewDB(nil, log)
	out := collectGlobals(db, dwarfdie.Die{})
	require.Empty(t, out)
}
