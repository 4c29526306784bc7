package decode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudy-go/rudy/types"
)

type fakeOracle struct {
	base uint64
	mem  map[uint64][]byte
}

func (f *fakeOracle) BaseAddress() uint64 { return f.base }

func (f *fakeOracle) ReadMemory(address uint64, size int) ([]byte, error) {
	b, ok := f.mem[address]
	if !ok {
		return make([]byte, size), nil
	}
	out := make([]byte, size)
	copy(out, b)
	return out, nil
}

func (f *fakeOracle) GetRegisters() ([]uint64, error) { return nil, nil }

func le(v uint64, n int) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func newDecoder(mem map[uint64][]byte) *Decoder {
	return NewDecoder(nil, &fakeOracle{mem: mem})
}

func TestReadPrimitiveInt(t *testing.T) {
	d := newDecoder(map[uint64][]byte{0x100: le(^uint64(0)-9, 4)}) // -10 as i32
	v, err := d.Read(types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32}, 0x100)
	require.NoError(t, err)
	require.Equal(t, KindInt, v.Kind)
	require.Equal(t, int64(-10), v.Int)
}

func TestReadPrimitiveBool(t *testing.T) {
	d := newDecoder(map[uint64][]byte{0x100: {1}})
	v, err := d.Read(types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimBool}, 0x100)
	require.NoError(t, err)
	require.True(t, v.Bool)
}

func TestReadStruct(t *testing.T) {
	mem := map[uint64][]byte{
		0x200: le(7, 4),
		0x204: {1},
	}
	d := newDecoder(mem)
	layout := types.TypeLayout{Kind: types.KindStruct, Struct: &types.StructLayout{
		Name: "Point",
		Size: 8,
		Fields: []types.FieldLayout{
			{Name: "x", Offset: 0, Type: types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32}},
			{Name: "ok", Offset: 4, Type: types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimBool}},
		},
	}}
	v, err := d.Read(layout, 0x200)
	require.NoError(t, err)
	require.Equal(t, KindStruct, v.Kind)
	require.Len(t, v.Fields, 2)
	require.Equal(t, "x", v.Fields[0].Name)
	require.Equal(t, int64(7), v.Fields[0].Value.Int)
	require.True(t, v.Fields[1].Value.Bool)
}

func TestReadArray(t *testing.T) {
	mem := map[uint64][]byte{
		0x300: le(1, 4),
		0x304: le(2, 4),
		0x308: le(3, 4),
	}
	d := newDecoder(mem)
	layout := types.TypeLayout{Kind: types.KindStd, Std: &types.StdLayout{Kind: types.StdArray, Array: &types.ArrayLayout{
		Element: types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32},
		Length:  3,
	}}}
	v, err := d.Read(layout, 0x300)
	require.NoError(t, err)
	require.Equal(t, KindArray, v.Kind)
	require.Len(t, v.Elements, 3)
	require.Equal(t, int64(2), v.Elements[1].Int)
}

func TestReadTuple(t *testing.T) {
	mem := map[uint64][]byte{
		0x400: le(1, 4),
		0x408: {1},
	}
	d := newDecoder(mem)
	layout := types.TypeLayout{Kind: types.KindStd, Std: &types.StdLayout{Kind: types.StdTuple, Tuple: &types.TupleLayout{
		Elements: []types.TupleElement{
			{Offset: 0, Type: types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32}},
			{Offset: 8, Type: types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimBool}},
		},
	}}}
	v, err := d.Read(layout, 0x400)
	require.NoError(t, err)
	require.Equal(t, KindTuple, v.Kind)
	require.Len(t, v.Elements, 2)
	require.Equal(t, int64(1), v.Elements[0].Int)
	require.True(t, v.Elements[1].Bool)
}

func TestReadOptionNone(t *testing.T) {
	d := newDecoder(map[uint64][]byte{0x500: le(0, 8)})
	layout := types.TypeLayout{Kind: types.KindStd, Std: &types.StdLayout{Kind: types.StdOption, Option: &types.OptionLayout{
		DiscriminantOffset: 0,
		SomePayload:        types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimU64},
	}}}
	v, err := d.Read(layout, 0x500)
	require.NoError(t, err)
	require.Equal(t, KindOption, v.Kind)
	require.Nil(t, v.Option)
}

func TestReadOptionSome(t *testing.T) {
	d := newDecoder(map[uint64][]byte{0x500: le(0x1234, 8)})
	layout := types.TypeLayout{Kind: types.KindStd, Std: &types.StdLayout{Kind: types.StdOption, Option: &types.OptionLayout{
		DiscriminantOffset: 0,
		SomePayload:        types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimU64},
	}}}
	v, err := d.Read(layout, 0x500)
	require.NoError(t, err)
	require.NotNil(t, v.Option)
	require.Equal(t, uint64(0x1234), v.Option.Uint)
}

func TestReadResultOk(t *testing.T) {
	mem := map[uint64][]byte{0x600: {0}}
	d := newDecoder(mem)
	layout := types.TypeLayout{Kind: types.KindStd, Std: &types.StdLayout{Kind: types.StdResult, Result: &types.ResultLayout{
		DiscriminantOffset: 0,
		OkPayload:          types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32},
		ErrPayload:         types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32},
	}}}
	v, err := d.Read(layout, 0x600)
	require.NoError(t, err)
	require.NotNil(t, v.Result)
	require.True(t, v.Result.Ok)
}

func TestReadResultErr(t *testing.T) {
	mem := map[uint64][]byte{0x600: {1}}
	d := newDecoder(mem)
	layout := types.TypeLayout{Kind: types.KindStd, Std: &types.StdLayout{Kind: types.StdResult, Result: &types.ResultLayout{
		DiscriminantOffset: 0,
		OkPayload:          types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32},
		ErrPayload:         types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32},
	}}}
	v, err := d.Read(layout, 0x600)
	require.NoError(t, err)
	require.NotNil(t, v.Result)
	require.False(t, v.Result.Ok)
}

func TestReadSmartPtrBox(t *testing.T) {
	mem := map[uint64][]byte{
		0x700: le(0x8000, 8), // pointer field itself, live address 0x8000
		0x8000: le(99, 4),
	}
	d := newDecoder(mem)
	layout := types.TypeLayout{Kind: types.KindStd, Std: &types.StdLayout{Kind: types.StdSmartPtr, SmartPtr: &types.SmartPtrLayout{
		Variant:        types.PtrBox,
		Inner:          types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32},
		InnerPtrOffset: 0,
		DataPtrOffset:  0,
	}}}
	v, err := d.Read(layout, 0x700)
	require.NoError(t, err)
	require.Equal(t, KindPointer, v.Kind)
	require.NotNil(t, v.Pointee)
	require.Equal(t, int64(99), v.Pointee.Int)
}

func TestReadSmartPtrBoxNull(t *testing.T) {
	mem := map[uint64][]byte{0x700: le(0, 8)}
	d := newDecoder(mem)
	layout := types.TypeLayout{Kind: types.KindStd, Std: &types.StdLayout{Kind: types.StdSmartPtr, SmartPtr: &types.SmartPtrLayout{
		Variant: types.PtrBox,
		Inner:   types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32},
	}}}
	v, err := d.Read(layout, 0x700)
	require.NoError(t, err)
	require.Equal(t, KindPointer, v.Kind)
	require.Nil(t, v.Pointee)
}

func TestReadCEnum(t *testing.T) {
	d := newDecoder(map[uint64][]byte{0x900: le(1, 4)})
	layout := types.TypeLayout{Kind: types.KindCEnum, CEnum: &types.CEnumLayout{
		Name:   "Color",
		Size:   4,
		Values: map[string]int64{"Red": 0, "Green": 1, "Blue": 2},
	}}
	v, err := d.Read(layout, 0x900)
	require.NoError(t, err)
	require.Equal(t, KindCEnum, v.Kind)
	require.Equal(t, "Green", v.CEnum)
}

func TestReadEnumVariant(t *testing.T) {
	mem := map[uint64][]byte{
		0xa00: {1},
		0xa04: le(55, 4),
	}
	d := newDecoder(mem)
	// rustc lays each variant's payload struct over the whole enum, so the
	// payload's own fields carry offsets from the enum's base address.
	square := types.TypeLayout{Kind: types.KindStruct, Struct: &types.StructLayout{
		Name: "Square",
		Size: 8,
		Fields: []types.FieldLayout{
			{Name: "__0", Offset: 4, Type: types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimI32}},
		},
	}}
	layout := types.TypeLayout{Kind: types.KindEnum, Enum: &types.EnumLayout{
		Name:               "Shape",
		DiscriminantOffset: 0,
		Variants: []types.VariantLayout{
			{Name: "Circle", Discriminant: 0, Payload: types.TypeLayout{Kind: types.KindPrimitive, Primitive: types.PrimUnit}},
			{Name: "Square", Discriminant: 1, Payload: square},
		},
	}}
	v, err := d.Read(layout, 0xa00)
	require.NoError(t, err)
	require.Equal(t, KindVariant, v.Kind)
	require.Equal(t, "Square", v.Variant.Name)
	require.Equal(t, int64(55), v.Variant.Payload.Fields[0].Value.Int)
}

func TestReadString(t *testing.T) {
	mem := map[uint64][]byte{
		0xb00: le(0xc000, 8), // data ptr
		0xb08: le(5, 8),      // len
		0xc000: []byte("hello"),
	}
	d := newDecoder(mem)
	layout := types.TypeLayout{Kind: types.KindStd, Std: &types.StdLayout{Kind: types.StdString, Str: &types.StringLayout{
		Vec: types.VecLayout{DataPtrOffset: 0, LenOffset: 8},
	}}}
	v, err := d.Read(layout, 0xb00)
	require.NoError(t, err)
	require.Equal(t, KindString, v.Kind)
	require.Equal(t, "hello", v.Str)
}

func TestReadMapHashMapLen(t *testing.T) {
	mem := map[uint64][]byte{0xd00: le(3, 8)}
	d := newDecoder(mem)
	layout := types.TypeLayout{Kind: types.KindStd, Std: &types.StdLayout{Kind: types.StdMap, Map: &types.MapLayout{
		Kind:    types.MapHashMap,
		HashMap: &types.HashMapLayout{ItemsOffset: 0},
	}}}
	v, err := d.Read(layout, 0xd00)
	require.NoError(t, err)
	require.Equal(t, KindMap, v.Kind)
	require.Equal(t, uint64(3), v.MapLen)
}
