package oracle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudy-go/rudy/errors"
)

type fakeOracle struct {
	base uint64
	mem  map[uint64][]byte
	regs []uint64
}

func (f *fakeOracle) BaseAddress() uint64 { return f.base }

func (f *fakeOracle) ReadMemory(address uint64, size int) ([]byte, error) {
	return f.mem[address], nil
}

func (f *fakeOracle) GetRegisters() ([]uint64, error) { return f.regs, nil }

func le64(v uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func TestReadAddressCorrectsForBase(t *testing.T) {
	// the engine asks for what it knows as address 0x100; the oracle must
	// be read at the live address 0x100+base, and the pointer value found
	// there (itself a live address) comes back normalised to this engine's
	// coordinate system.
	o := &fakeOracle{base: 0x4000, mem: map[uint64][]byte{0x4100: le64(0x4500)}}
	v, err := ReadAddress(o, 0x100)
	require.NoError(t, err)
	require.Equal(t, uint64(0x500), v)
}

func TestReadAddressUnderflow(t *testing.T) {
	o := &fakeOracle{base: 0x4000, mem: map[uint64][]byte{0x4100: le64(0x10)}}
	_, err := ReadAddress(o, 0x100)
	require.Error(t, err)
	kind, ok := errors.Kind(err)
	require.True(t, ok)
	require.Equal(t, errors.AddressUnderflow, kind)
}

func TestGetRegisterOutOfRange(t *testing.T) {
	o := &fakeOracle{regs: []uint64{1, 2, 3}}
	_, err := GetRegister(o, 5)
	require.Error(t, err)
}

func TestGetRegisterInRange(t *testing.T) {
	o := &fakeOracle{regs: []uint64{1, 2, 3}}
	v, err := GetRegister(o, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), v)
}
