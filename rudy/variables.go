package rudy

import (
	"github.com/rudy-go/rudy/decode"
	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/expr"
	"github.com/rudy-go/rudy/oracle"
)

// immediateOracle bridges a register-resident Location's already-decoded
// bytes into decode.Decoder.Read, which otherwise always fetches bytes
// through an oracle: it answers ReadMemory(0, n) with those bytes, letting
// a register value whose type is itself a multi-field struct (rare, but
// not disallowed by DWARF) decode through exactly the same code path as a
// memory-resident one.
type immediateOracle struct{ data []byte }

func (o immediateOracle) BaseAddress() uint64 { return 0 }

func (o immediateOracle) ReadMemory(address uint64, size int) ([]byte, error) {
	start := int(address)
	if start < 0 || start+size > len(o.data) {
		return make([]byte, size), nil
	}
	return o.data[start : start+size], nil
}

func (o immediateOracle) GetRegisters() ([]uint64, error) { return nil, nil }

func (b *Binary) decodeVariables(decoder *decode.Decoder, functionDie dwarfdie.Die, linkBias uint64, dies []dwarfdie.Die, o oracle.Oracle) ([]Variable, error) {
	out := make([]Variable, 0, len(dies))
	for _, d := range dies {
		v, err := b.decodeVariable(decoder, functionDie, linkBias, d, o)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// decodeVariable resolves one parameter/local/global's type and location
// and decodes its current value. A variable with no location expression
// at all (optimized out) comes back with a nil DecodedValue and no error;
// an error is returned only once a location expression exists but fails
// to evaluate, or the oracle itself fails the readout — §7's query-fatal
// band, as opposed to the NotFound case just described.
func (b *Binary) decodeVariable(decoder *decode.Decoder, functionDie dwarfdie.Die, linkBias uint64, d dwarfdie.Die, o oracle.Oracle) (Variable, error) {
	v := Variable{Name: d.Name(b.db)}

	typeDie, ok := d.Type(b.db)
	if !ok {
		return v, nil
	}
	v.TypeDisplay = typeDie.Name(b.db)

	loc, found, err := expr.ResolveDataLocation(b.db, functionDie, linkBias, d, o)
	if err != nil {
		return Variable{}, err
	}
	if !found {
		return v, nil
	}

	layout := b.resolver.FullResolve(typeDie)

	var val decode.Value
	switch loc.Kind {
	case expr.LocationAddress:
		val, err = decoder.Read(layout, loc.Address)
	case expr.LocationValue:
		imm := decode.NewDecoder(b.resolver, immediateOracle{data: loc.Value})
		val, err = imm.Read(layout, 0)
	}
	if err != nil {
		return Variable{}, err
	}

	v.DecodedValue = &val
	return v, nil
}
