// Package expr implements the DWARF location-expression evaluator (§4.8):
// a small stack machine covering the operand classes a rustc-produced
// DW_AT_location or DW_AT_frame_base exprloc actually uses, driven by a
// caller-supplied oracle.Oracle for every register or relocated-address
// suspension point.
//
// Operator reference: "DWARF Debugging Information Format Version 5", page
// 36, section 2.6.1; opcode table page 243, section 7.7.1.
package expr

import (
	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/errors"
	"github.com/rudy-go/rudy/expr/leb128"
	"github.com/rudy-go/rudy/oracle"
)

// cfaRegister is the DWARF register number the DW_OP_call_frame_cfa
// suspension point reads through the oracle when a function's frame base
// is expressed directly as the call-frame CFA rather than a breg. This
// engine only targets x86-64 Rust binaries, where the stack pointer (rsp)
// is DWARF register 7; a different target architecture would need this to
// become a per-Binary value.
const cfaRegister = 7

// LocationKind distinguishes a memory address the decoder should read from
// a value the evaluator already has in hand (a variable that lives
// entirely in a register has no address to read).
type LocationKind int

const (
	LocationAddress LocationKind = iota
	LocationValue
)

// Location is the outcome of evaluating one DWARF location expression.
type Location struct {
	Kind    LocationKind
	Address uint64
	Value   []byte // little-endian register bytes, valid when Kind == LocationValue
}

type evaluator struct {
	db          *dwarfdie.DB
	oracle      oracle.Oracle
	base        uint64
	functionDie dwarfdie.Die
	stack       []int64
}

func (e *evaluator) push(v int64) { e.stack = append(e.stack, v) }

func (e *evaluator) pop() (int64, bool) {
	if len(e.stack) == 0 {
		return 0, false
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, true
}

// run evaluates expr and returns the single resulting Location. Any opcode
// outside the set a rustc-produced location/frame-base expression actually
// uses surfaces ExpressionUnsupported rather than panicking, per §9's
// design note that the evaluator must be "extensible" in that specific
// sense.
func (e *evaluator) run(expr []uint8) (Location, error) {
	i := 0
	for i < len(expr) {
		op := expr[i]
		i++

		switch {
		case op == 0x03: // DW_OP_addr: 8-byte link-time address, requires relocation
			if i+8 > len(expr) {
				return Location{}, errors.E(errors.ExpressionUnsupported, errors.ExprUnsupportedOp, op)
			}
			var addr uint64
			for b := 7; b >= 0; b-- {
				addr = addr<<8 | uint64(expr[i+b])
			}
			i += 8
			e.push(int64(addr + e.base))

		case op == 0x23: // DW_OP_plus_uconst
			n, used := leb128.DecodeULEB128(expr[i:])
			i += used
			top, ok := e.pop()
			if !ok {
				return Location{}, errors.E(errors.ExpressionUnsupported, errors.ExprUnsupportedOp, op)
			}
			e.push(top + int64(n))

		case op == 0x91: // DW_OP_fbreg: requires-frame-base
			n, used := leb128.DecodeSLEB128(expr[i:])
			i += used
			base, err := e.frameBase()
			if err != nil {
				return Location{}, err
			}
			e.push(int64(base) + n)

		case op == 0x9c: // DW_OP_call_frame_cfa: requires-call-frame-CFA
			sp, err := oracle.GetRegister(e.oracle, cfaRegister)
			if err != nil {
				return Location{}, err
			}
			addr, err := e.toEngineAddress(sp)
			if err != nil {
				return Location{}, err
			}
			e.push(addr)

		case op >= 0x50 && op <= 0x6f: // DW_OP_reg0..31: requires-register, value in place
			reg := int(op - 0x50)
			if i != len(expr) {
				// DW_OP_regN must be the entire expression (§2.6.1.1.3).
				return Location{}, errors.E(errors.ExpressionUnsupported, errors.ExprUnsupportedOp, op)
			}
			v, err := oracle.GetRegister(e.oracle, reg)
			if err != nil {
				return Location{}, err
			}
			return registerValue(v), nil

		case op == 0x90: // DW_OP_regx: requires-register, ULEB128 register number
			reg, used := leb128.DecodeULEB128(expr[i:])
			i += used
			if i != len(expr) {
				return Location{}, errors.E(errors.ExpressionUnsupported, errors.ExprUnsupportedOp, op)
			}
			v, err := oracle.GetRegister(e.oracle, int(reg))
			if err != nil {
				return Location{}, err
			}
			return registerValue(v), nil

		case op >= 0x70 && op <= 0x8f: // DW_OP_breg0..31: requires-register, plus signed offset
			reg := int(op - 0x70)
			n, used := leb128.DecodeSLEB128(expr[i:])
			i += used
			v, err := oracle.GetRegister(e.oracle, reg)
			if err != nil {
				return Location{}, err
			}
			addr, err := e.toEngineAddress(v)
			if err != nil {
				return Location{}, err
			}
			e.push(addr + n)

		case op == 0x92: // DW_OP_bregx: requires-register, ULEB128 reg + SLEB128 offset
			reg, used := leb128.DecodeULEB128(expr[i:])
			i += used
			n, used := leb128.DecodeSLEB128(expr[i:])
			i += used
			v, err := oracle.GetRegister(e.oracle, int(reg))
			if err != nil {
				return Location{}, err
			}
			addr, err := e.toEngineAddress(v)
			if err != nil {
				return Location{}, err
			}
			e.push(addr + n)

		default:
			return Location{}, errors.E(errors.ExpressionUnsupported, errors.ExprUnsupportedOp, op)
		}
	}

	top, ok := e.pop()
	if !ok {
		return Location{}, errors.E(errors.ExpressionUnsupported, errors.ExprNoResult)
	}
	if len(e.stack) != 0 {
		return Location{}, errors.E(errors.ExpressionUnsupported, errors.ExprMultiplePieces)
	}
	return Location{Kind: LocationAddress, Address: uint64(top)}, nil
}

// toEngineAddress normalises a live register value into this engine's own
// (pre-relocation) address space, the same space base_address already
// placed DW_OP_addr's result into — so arithmetic on either can mix freely.
// Mirrors oracle.ReadAddress's value-side correction, without the memory
// read: the register value itself is already in hand.
func (e *evaluator) toEngineAddress(v uint64) (int64, error) {
	base := e.oracle.BaseAddress()
	if v < base {
		return 0, errors.E(errors.AddressUnderflow, errors.AddressBelowBase, v, base)
	}
	return int64(v - base), nil
}

// registerValue packages a raw register snapshot value as an 8-byte
// little-endian Location the decoder treats as already-read bytes.
func registerValue(v uint64) Location {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v)
		v >>= 8
	}
	return Location{Kind: LocationValue, Value: b}
}

// ResolveDataLocation implements §4.8's resolve_data_location: it reads
// variableDie's DW_AT_location exprloc and drives the evaluator against
// functionDie's frame base and o, returning the resolved Location. The
// second return is false with a nil error when variableDie carries no
// location expression at all (e.g. an optimized-out variable) — that is
// not a failure, it is §7's "NotFound is not an error condition" case.
func ResolveDataLocation(db *dwarfdie.DB, functionDie dwarfdie.Die, baseAddress uint64, variableDie dwarfdie.Die, o oracle.Oracle) (Location, bool, error) {
	raw := variableDie.GetAttr(db, dwarf.AttrLocation)
	locExpr, ok := raw.([]byte)
	if !ok || len(locExpr) == 0 {
		return Location{}, false, nil
	}

	ev := &evaluator{db: db, oracle: o, base: baseAddress, functionDie: functionDie}
	loc, err := ev.run(locExpr)
	if err != nil {
		return Location{}, false, err
	}
	return loc, true, nil
}

// frameBase evaluates e's function's DW_AT_frame_base expression. rustc
// emits either a bare DW_OP_call_frame_cfa or a DW_OP_bregN+offset; both
// are handled by a fresh sub-evaluator over the same oracle and base.
func (e *evaluator) frameBase() (uint64, error) {
	if e.functionDie.IsZero() {
		return 0, errors.E(errors.ExpressionUnsupported, errors.ExprUnsupportedOp, 0x91)
	}
	raw := e.functionDie.GetAttr(e.db, dwarf.AttrFrameBase)
	fb, ok := raw.([]byte)
	if !ok || len(fb) == 0 {
		return 0, errors.E(errors.ExpressionUnsupported, errors.ExprUnsupportedOp, 0x91)
	}
	sub := &evaluator{db: e.db, oracle: e.oracle, base: e.base, functionDie: dwarfdie.Die{}}
	loc, err := sub.run(fb)
	if err != nil {
		return 0, err
	}
	switch loc.Kind {
	case LocationAddress:
		return loc.Address, nil
	default:
		var v uint64
		for i := len(loc.Value) - 1; i >= 0; i-- {
			v = v<<8 | uint64(loc.Value[i])
		}
		return v, nil
	}
}
