package types

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

// buildTestStructUnit assembles a Rust compile unit with a struct
// TestStruct { field_a: i32 }, matching S4's STATIC_TEST_STRUCT fixture.
func buildTestStructUnit() *dwarf.Data {
	baseType := dwarftest.Node(dwarf.TagBaseType, []dwarftest.Attr{
		dwarftest.Str(dwarf.AttrName, "i32"),
		dwarftest.Data1(dwarf.AttrEncoding, 5), // DW_ATE_signed
		dwarftest.Data1(dwarf.AttrByteSize, 4),
	})
	member := dwarftest.Node(dwarf.TagMember, []dwarftest.Attr{
		dwarftest.Str(dwarf.AttrName, "field_a"),
		dwarftest.Ref(dwarf.AttrType, baseType),
		dwarftest.Udata(dwarf.AttrDataMemberLoc, 0),
	})
	structType := dwarftest.Node(dwarf.TagStructType, []dwarftest.Attr{
		dwarftest.Str(dwarf.AttrName, "TestStruct"),
		dwarftest.Data1(dwarf.AttrByteSize, 4),
	}, member)
	cu := dwarftest.Node(dwarf.TagCompileUnit, []dwarftest.Attr{
		dwarftest.Str(dwarf.AttrName, "main.rs"),
		dwarftest.Str(dwarf.AttrCompDir, "/src"),
	}, structType, baseType)

	d, err := dwarftest.Data(cu)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestDB(d *dwarf.Data) (*dwarfdie.DB, symtab.DebugFile) {
	file := symtab.DebugFile{Path: "main.elf"}
	lf := objfile.NewSynthetic(file.Path, d)
	log := logger.New(bytes.NewBuffer(nil))
	db := dwarfdie.NewDB(map[symtab.DebugFile]*objfile.LoadedFile{file: lf}, log)
	return db, file
}

func TestFindTypeDieAndFullResolveEndToEnd(t *testing.T) {
	db, file := newTestDB(buildTestStructUnit())

	d, ok := FindTypeDie(db, file, "TestStruct")
	require.True(t, ok)

	r := NewResolver(db)

	shallow := r.ShallowResolve(d)
	require.Equal(t, KindAlias, shallow.Kind)

	full := r.FullResolve(d)
	require.Equal(t, KindStruct, full.Kind)
	require.Equal(t, "TestStruct", full.Struct.Name)
	require.Len(t, full.Struct.Fields, 1)

	field := full.Struct.Fields[0]
	require.Equal(t, "field_a", field.Name)
	require.Equal(t, uint64(0), field.Offset)
	require.Equal(t, KindPrimitive, field.Type.Kind)
	require.Equal(t, PrimI32, field.Type.Primitive)

	// §8 invariant #5: full_resolve never leaves an Alias node behind.
	require.NotEqual(t, KindAlias, field.Type.Kind)
}

func TestFindTypeDieModuleQualifiedNotFound(t *testing.T) {
	db, file := newTestDB(buildTestStructUnit())

	_, ok := FindTypeDie(db, file, "other_crate::Missing")
	require.False(t, ok)
}
