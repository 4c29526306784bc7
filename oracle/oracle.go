// Package oracle defines the caller-supplied abstraction (§6) that mediates
// every read of the inspected process's memory and registers. Neither the
// expression evaluator nor the memory decoder touches an address directly —
// both go through an Oracle.
package oracle

import (
	"github.com/rudy-go/rudy/errors"
)

// pointerSize is the width, in bytes, of every pointer this engine decodes.
// Rust's DWARF output on every architecture this engine targets uses 8-byte
// pointers; a 32-bit target would need this to become a per-Binary value,
// which §9's open questions leave for a future revision.
const pointerSize = 8

// Oracle is the three-method trait §6 specifies. A caller supplies one
// implementation per inspected process; the engine never assumes anything
// about how it's backed (ptrace, a core dump, a remote debug stub, ...).
//
// Every address this engine hands between its own components (the
// expression evaluator's resolved Location, the memory decoder's Read) is
// in the binary's own linked coordinate system — the same space
// FunctionAddressInfo.AbsoluteStart lives in, derived purely from the
// object's own symbol table and DWARF, with no knowledge of where the
// inspected process actually loaded it. Read and ReadAddress, at the
// boundary with the caller-supplied Oracle, convert memory addresses and
// stored pointer values to and from the live process's own address space.
// GetRegister does not; the expression evaluator brings a register value
// it uses as an address into this space itself.
type Oracle interface {
	// BaseAddress returns the load-time offset of the binary in the
	// inspected process: the amount to add to one of this engine's own
	// addresses to get the address to actually read, and the amount to
	// subtract from a pointer value read out of live memory to bring it
	// back into this engine's coordinate system.
	BaseAddress() uint64
	// ReadMemory reads exactly size bytes from the inspected address space
	// starting at address, which is already in the live process's own
	// address space (i.e. Read/ReadAddress have already applied
	// BaseAddress).
	ReadMemory(address uint64, size int) ([]byte, error)
	// GetRegisters returns an ordered register snapshot; indices follow the
	// DWARF register numbering of the target architecture.
	GetRegisters() ([]uint64, error)
}

// ReadAddress reads a pointerSize-byte little-endian pointer value stored
// at address (one of this engine's own, pre-relocation addresses) and
// normalises it back into that same coordinate system by subtracting
// BaseAddress from the value it finds — the value in memory is itself a
// live runtime pointer, since that's what the inspected process actually
// stores there. Fails with AddressUnderflow if that raw value is below
// BaseAddress, per §6.
func ReadAddress(o Oracle, address uint64) (uint64, error) {
	base := o.BaseAddress()
	raw, err := o.ReadMemory(address+base, pointerSize)
	if err != nil {
		return 0, errors.E(errors.IoError, errors.DecodeOracleError, err)
	}
	var v uint64
	for i := pointerSize - 1; i >= 0; i-- {
		v = v<<8 | uint64(raw[i])
	}
	if v < base {
		return 0, errors.E(errors.AddressUnderflow, errors.AddressBelowBase, v, base)
	}
	return v - base, nil
}

// GetRegister returns GetRegisters()[index], bounds-checked. Register
// values are inherently live (a register has no static/link-time
// equivalent), so, unlike Read/ReadAddress, no BaseAddress correction
// applies to the result.
func GetRegister(o Oracle, index int) (uint64, error) {
	regs, err := o.GetRegisters()
	if err != nil {
		return 0, errors.E(errors.IoError, errors.DecodeOracleError, err)
	}
	if index < 0 || index >= len(regs) {
		return 0, errors.E(errors.ExpressionUnsupported, errors.RegisterOutOfRange, index, len(regs))
	}
	return regs[index], nil
}

// Read reads exactly size bytes at address (one of this engine's own
// addresses), applying the BaseAddress correction before touching the
// live process.
func Read(o Oracle, address uint64, size int) ([]byte, error) {
	b, err := o.ReadMemory(address+o.BaseAddress(), size)
	if err != nil {
		return nil, errors.E(errors.IoError, errors.DecodeOracleError, err)
	}
	return b, nil
}
