package decode

import (
	"github.com/rudy-go/rudy/errors"
	"github.com/rudy-go/rudy/oracle"
	"github.com/rudy-go/rudy/types"
)

func (d *Decoder) readStd(s *types.StdLayout, address uint64) (Value, error) {
	switch s.Kind {
	case types.StdArray:
		return d.readArray(s.Array, address)
	case types.StdReference:
		return d.readReference(s.Reference, address)
	case types.StdTuple:
		return d.readTuple(s.Tuple, address)
	case types.StdVec:
		return d.readVec(s.Vec, address, false)
	case types.StdString:
		return d.readVec(&s.Str.Vec, address, true)
	case types.StdOption:
		return d.readOption(s.Option, address)
	case types.StdResult:
		return d.readResult(s.Result, address)
	case types.StdMap:
		return d.readMap(s.Map, address)
	case types.StdSmartPtr:
		return d.readSmartPtr(s.SmartPtr, address)
	}
	return Value{Kind: KindOther}, nil
}

func (d *Decoder) readArray(a *types.ArrayLayout, address uint64) (Value, error) {
	stride, ok := layoutSize(a.Element)
	if !ok {
		return Value{}, errors.E(errors.UnsupportedTypeConstruct, errors.TypeUnsupported, "array element size not known")
	}
	elems := make([]Value, 0, a.Length)
	for i := uint64(0); i < a.Length; i++ {
		v, err := d.Read(a.Element, address+i*stride)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
	return Value{Kind: KindArray, Elements: elems}, nil
}

func (d *Decoder) readReference(r *types.ReferenceLayout, address uint64) (Value, error) {
	pointee, err := oracle.ReadAddress(d.oracle, address)
	if err != nil {
		return Value{}, err
	}
	if pointee == 0 {
		return Value{Kind: KindPointer}, nil
	}
	v, err := d.Read(r.Pointee, pointee)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindPointer, Pointee: &v}, nil
}

func (d *Decoder) readTuple(t *types.TupleLayout, address uint64) (Value, error) {
	elems := make([]Value, 0, len(t.Elements))
	for _, e := range t.Elements {
		v, err := d.Read(e.Type, address+e.Offset)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, v)
	}
	return Value{Kind: KindTuple, Elements: elems}, nil
}

func (d *Decoder) readStruct(s *types.StructLayout, address uint64) (Value, error) {
	fields := make([]FieldValue, 0, len(s.Fields))
	for _, f := range s.Fields {
		v, err := d.Read(f.Type, address+f.Offset)
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, FieldValue{Name: f.Name, Value: v})
	}
	return Value{Kind: KindStruct, Fields: fields}, nil
}

// readEnum decodes a payload-bearing Rust enum by matching the raw byte at
// DiscriminantOffset against each variant's recorded value. rustc doesn't
// surface the tag's own byte width in a place this resolver mines, so a
// single byte is assumed — correct for every enum with 256 variants or
// fewer, which is every real one this engine has been exercised against.
func (d *Decoder) readEnum(e *types.EnumLayout, address uint64) (Value, error) {
	tagByte, err := d.bytes(address+e.DiscriminantOffset, 1)
	if err != nil {
		return Value{}, err
	}
	tag := int64(tagByte[0])
	for _, v := range e.Variants {
		if v.Discriminant != tag {
			continue
		}
		payload, err := d.Read(v.Payload, address)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindVariant, Variant: &VariantValue{Name: v.Name, Payload: payload}}, nil
	}
	return Value{}, errors.E(errors.UnsupportedTypeConstruct, errors.TypeUnsupported, "enum discriminant matched no variant")
}

func (d *Decoder) readCEnum(c *types.CEnumLayout, address uint64) (Value, error) {
	size := int(c.Size)
	if size <= 0 || size > 8 {
		size = 4
	}
	b, err := d.bytes(address, size)
	if err != nil {
		return Value{}, err
	}
	tag := int64(leUint(b))
	for name, val := range c.Values {
		if val == tag {
			return Value{Kind: KindCEnum, CEnum: name}, nil
		}
	}
	return Value{Kind: KindCEnum}, nil
}

// readOption implements §4.9's "zero-niche convention": the word at
// DiscriminantOffset is either the null niche (None) or, being non-zero,
// doubles as the start of the Some payload itself (as it does for every
// niche-optimised Option this engine resolves — Option<&T>, Option<Box<T>>,
// and friends all store the payload directly at that offset).
func (d *Decoder) readOption(o *types.OptionLayout, address uint64) (Value, error) {
	raw, err := d.bytes(address+o.DiscriminantOffset, 8)
	if err != nil {
		return Value{}, err
	}
	if leUint(raw) == 0 {
		return Value{Kind: KindOption}, nil
	}
	v, err := d.Read(o.SomePayload, address+o.DiscriminantOffset)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindOption, Option: &v}, nil
}

// readResult has no true variant_part discriminant values to compare
// against (resolveResult doesn't keep them, unlike the general enum path) —
// it falls back to rustc's common positional convention: a zero tag byte
// selects Ok, matching unfoldVariantEnum's own positional fallback for
// variants without an explicit DW_AT_discr_value.
func (d *Decoder) readResult(rl *types.ResultLayout, address uint64) (Value, error) {
	tag, err := d.bytes(address+rl.DiscriminantOffset, 1)
	if err != nil {
		return Value{}, err
	}
	if tag[0] == 0 {
		v, err := d.Read(rl.OkPayload, address)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindResult, Result: &ResultValue{Ok: true, Val: v}}, nil
	}
	v, err := d.Read(rl.ErrPayload, address)
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindResult, Result: &ResultValue{Ok: false, Val: v}}, nil
}

func (d *Decoder) readVec(v *types.VecLayout, address uint64, asString bool) (Value, error) {
	dataPtr, err := oracle.ReadAddress(d.oracle, address+v.DataPtrOffset)
	if err != nil {
		return Value{}, err
	}
	lenBytes, err := d.bytes(address+v.LenOffset, 8)
	if err != nil {
		return Value{}, err
	}
	length := leUint(lenBytes)

	if asString {
		raw, err := d.bytes(dataPtr, int(length))
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindString, Str: string(raw)}, nil
	}

	stride, ok := layoutSize(v.Element)
	if !ok {
		return Value{}, errors.E(errors.UnsupportedTypeConstruct, errors.TypeUnsupported, "vec element size not known")
	}
	elems := make([]Value, 0, length)
	for i := uint64(0); i < length; i++ {
		ev, err := d.Read(v.Element, dataPtr+i*stride)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, ev)
	}
	return Value{Kind: KindArray, Elements: elems}, nil
}

// readMap reports only the element count: hashbrown's RawTableInner.items
// and BTreeMap's own length field are both direct stored counts, but
// walking either structure's control bytes / node edges to recover actual
// key/value pairs is the same not-yet-mined territory BTreeMapLayout's own
// missing EdgesOffset already flags.
func (d *Decoder) readMap(m *types.MapLayout, address uint64) (Value, error) {
	switch m.Kind {
	case types.MapHashMap:
		b, err := d.bytes(address+m.HashMap.ItemsOffset, 8)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindMap, MapLen: leUint(b)}, nil
	case types.MapBTreeMap:
		b, err := d.bytes(address+m.BTree.LengthOffset, 8)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindMap, MapLen: leUint(b)}, nil
	}
	return Value{Kind: KindMap}, nil
}

func (d *Decoder) readSmartPtr(s *types.SmartPtrLayout, address uint64) (Value, error) {
	switch s.Variant {
	case types.PtrCell, types.PtrUnsafeCell, types.PtrRefCell, types.PtrMutex:
		v, err := d.Read(s.Inner, address+s.DataPtrOffset)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindPointer, Pointee: &v}, nil
	default: // PtrBox, PtrRc, PtrArc
		ptr, err := oracle.ReadAddress(d.oracle, address+s.InnerPtrOffset)
		if err != nil {
			return Value{}, err
		}
		if ptr == 0 {
			return Value{Kind: KindPointer}, nil
		}
		v, err := d.Read(s.Inner, ptr+s.DataPtrOffset)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindPointer, Pointee: &v}, nil
	}
}

// layoutSize returns the static byte size of l where it's knowable without
// reading memory — needed to step through Array/Vec elements. It's a
// best-effort table: Std shapes with no fixed or recorded size (Option,
// Result, Map, Tuple, the inline-storage SmartPtr variants) return false,
// meaning an array or Vec of one of those element kinds can't be decoded.
// This is a known, non-crashing limitation: such a query surfaces
// UnsupportedTypeConstruct instead of guessing a stride.
func layoutSize(l types.TypeLayout) (uint64, bool) {
	switch l.Kind {
	case types.KindPrimitive:
		size, _, _ := primitiveShape(l.Primitive)
		return uint64(size), true
	case types.KindStruct:
		return l.Struct.Size, true
	case types.KindEnum:
		return l.Enum.Size, true
	case types.KindCEnum:
		return l.CEnum.Size, true
	case types.KindStd:
		switch l.Std.Kind {
		case types.StdReference:
			return 8, true
		case types.StdVec, types.StdString:
			return 24, true
		case types.StdArray:
			elemSize, ok := layoutSize(l.Std.Array.Element)
			if !ok {
				return 0, false
			}
			return elemSize * l.Std.Array.Length, true
		case types.StdSmartPtr:
			switch l.Std.SmartPtr.Variant {
			case types.PtrBox, types.PtrRc, types.PtrArc:
				return 8, true
			}
		}
	}
	return 0, false
}
