// Package dwarftest hand-assembles minimal, real .debug_abbrev/.debug_info
// byte sections so the rest of this module's tests can drive indexing and
// type resolution against genuine DWARF data read through
// github.com/blacktop/go-dwarf, instead of only exercising not-found paths
// against empty or zero-value fixtures.
package dwarftest

import (
	"bytes"
	"encoding/binary"

	dwarf "github.com/blacktop/go-dwarf"
)

// Raw DWARF4 form codes. debug/dwarf-family packages only ever decode
// DWARF, so they keep these private; a byte-level fixture builder has to
// carry its own copy to write them.
const (
	formAddr        = 0x01
	formData4       = 0x06
	formData8       = 0x07
	formString      = 0x08
	formData1       = 0x0b
	formSecOffset   = 0x17
	formRef4        = 0x13
	formUdata       = 0x0f
	formFlagPresent = 0x19
)

// Attr is one attribute/value pair on a Die. Exactly one of Val or RefTo is
// set: RefTo is resolved to its target's compile-unit-relative offset (as a
// DW_FORM_ref4) once the whole tree's layout is known.
type Attr struct {
	At    dwarf.Attr
	form  byte
	val   []byte
	refTo *Die
}

// Die is one node of a hand-built DWARF tree: a tag, its attributes, and
// its children in document order.
type Die struct {
	Tag   dwarf.Tag
	Attrs []Attr
	Kids  []*Die

	abbrevCode int
	offset     int // CU-relative, including the 11-byte unit header
}

// Node builds a Die fixture.
func Node(tag dwarf.Tag, attrs []Attr, kids ...*Die) *Die {
	return &Die{Tag: tag, Attrs: attrs, Kids: kids}
}

func Str(at dwarf.Attr, s string) Attr {
	return Attr{At: at, form: formString, val: append([]byte(s), 0)}
}

func Addr(at dwarf.Attr, v uint64) Attr {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return Attr{At: at, form: formAddr, val: b}
}

func Data1(at dwarf.Attr, v uint8) Attr {
	return Attr{At: at, form: formData1, val: []byte{v}}
}

func Data4(at dwarf.Attr, v uint32) Attr {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return Attr{At: at, form: formData4, val: b}
}

func Data8(at dwarf.Attr, v uint64) Attr {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return Attr{At: at, form: formData8, val: b}
}

func SecOffset(at dwarf.Attr, v uint32) Attr {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return Attr{At: at, form: formSecOffset, val: b}
}

func Udata(at dwarf.Attr, v uint64) Attr {
	return Attr{At: at, form: formUdata, val: uleb128(v)}
}

func FlagPresent(at dwarf.Attr) Attr {
	return Attr{At: at, form: formFlagPresent, val: nil}
}

// Ref encodes a DW_FORM_ref4 pointing at target, another Die in the same
// tree passed to Build.
func Ref(at dwarf.Attr, target *Die) Attr {
	return Attr{At: at, form: formRef4, refTo: target}
}

func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

// unitHeaderLen is unit_length(4) + version(2) + abbrev_offset(4) +
// address_size(1) for a 32-bit-DWARF, DWARF4 compile unit header.
const unitHeaderLen = 11

// Build encodes root (a single DW_TAG_compile_unit Die) as a DWARF4
// .debug_abbrev/.debug_info pair. Every Die in the tree is given its own
// abbreviation code — real compilers share abbreviations across similar
// DIEs, but a decoder has no way to tell the difference, so the fixture
// skips that deduplication for simplicity.
func Build(root *Die) (abbrev, info []byte) {
	var abbrevBuf, dieBuf bytes.Buffer

	type patch struct {
		pos    int
		target *Die
	}
	var patches []patch

	code := 1
	var write func(d *Die)
	write = func(d *Die) {
		d.abbrevCode = code
		code++

		abbrevBuf.Write(uleb128(uint64(d.abbrevCode)))
		abbrevBuf.Write(uleb128(uint64(d.Tag)))
		if len(d.Kids) > 0 {
			abbrevBuf.WriteByte(1)
		} else {
			abbrevBuf.WriteByte(0)
		}
		for _, a := range d.Attrs {
			abbrevBuf.Write(uleb128(uint64(a.At)))
			abbrevBuf.Write(uleb128(uint64(a.form)))
		}
		abbrevBuf.Write([]byte{0, 0})

		d.offset = unitHeaderLen + dieBuf.Len()
		dieBuf.Write(uleb128(uint64(d.abbrevCode)))
		for _, a := range d.Attrs {
			if a.refTo != nil {
				patches = append(patches, patch{pos: dieBuf.Len(), target: a.refTo})
				dieBuf.Write([]byte{0, 0, 0, 0})
				continue
			}
			dieBuf.Write(a.val)
		}

		for _, k := range d.Kids {
			write(k)
		}
		if len(d.Kids) > 0 {
			dieBuf.WriteByte(0)
		}
	}
	write(root)
	abbrevBuf.WriteByte(0)

	dieBytes := dieBuf.Bytes()
	for _, p := range patches {
		binary.LittleEndian.PutUint32(dieBytes[p.pos:p.pos+4], uint32(p.target.offset))
	}

	var out bytes.Buffer
	unitLen := uint32(2 + 4 + 1 + len(dieBytes))
	_ = binary.Write(&out, binary.LittleEndian, unitLen)
	_ = binary.Write(&out, binary.LittleEndian, uint16(4))
	_ = binary.Write(&out, binary.LittleEndian, uint32(0))
	out.WriteByte(8)
	out.Write(dieBytes)

	return abbrevBuf.Bytes(), out.Bytes()
}

// Data builds root's .debug_abbrev/.debug_info and parses them with
// go-dwarf, ready to hand to dwarfdie.NewDB via objfile.NewSynthetic.
func Data(root *Die) (*dwarf.Data, error) {
	abbrev, info := Build(root)
	return dwarf.New(abbrev, nil, nil, info, nil, nil, nil, nil)
}

// DataWithLine is Data plus a .debug_line section built by LineProgram,
// for fixtures whose compile unit carries a DW_AT_stmt_list attribute.
func DataWithLine(root *Die, line []byte) (*dwarf.Data, error) {
	abbrev, info := Build(root)
	return dwarf.New(abbrev, nil, nil, info, line, nil, nil, nil)
}

// LineRow is one row to emit into a LineProgram: the code address and
// source line it corresponds to, always in the fixture's single file.
type LineRow struct {
	Address uint64
	Line    int
}

// LineProgram encodes a single-sequence DWARF4 .debug_line program
// attributing each of rows to fileName, the sole entry in the file-name
// table (index 1, directory index 0, implicitly the compile unit's
// DW_AT_comp_dir). Rows must already be in increasing-address order, as
// a real line program's rows are.
func LineProgram(fileName string, rows []LineRow) []byte {
	const (
		lineBase   = -5
		lineRange  = 14
		opcodeBase = 13
	)
	opcodeLengths := []byte{0, 1, 1, 1, 1, 0, 0, 0, 1, 0, 0, 1}

	var header bytes.Buffer
	header.WriteByte(1) // minimum_instruction_length
	header.WriteByte(1) // maximum_operations_per_instruction
	header.WriteByte(1) // default_is_stmt
	header.WriteByte(byte(int8(lineBase)))
	header.WriteByte(lineRange)
	header.WriteByte(opcodeBase)
	header.Write(opcodeLengths)
	header.WriteByte(0) // include_directories: none beyond the implicit comp_dir

	header.WriteString(fileName)
	header.WriteByte(0)
	header.Write(uleb128(0)) // directory index: the compile unit's comp_dir
	header.Write(uleb128(0)) // mtime
	header.Write(uleb128(0)) // length
	header.WriteByte(0)      // file_names terminator

	var program bytes.Buffer
	lastLine := 1
	for _, row := range rows {
		program.WriteByte(0) // extended opcode
		program.Write(uleb128(9))
		program.WriteByte(2) // DW_LNE_set_address
		addrBuf := make([]byte, 8)
		binary.LittleEndian.PutUint64(addrBuf, row.Address)
		program.Write(addrBuf)

		if delta := int64(row.Line) - int64(lastLine); delta != 0 {
			program.WriteByte(3) // DW_LNS_advance_line
			program.Write(sleb128(delta))
			lastLine = row.Line
		}

		program.WriteByte(1) // DW_LNS_copy
	}
	program.WriteByte(0) // extended opcode
	program.Write(uleb128(1))
	program.WriteByte(1) // DW_LNE_end_sequence

	var out bytes.Buffer
	headerLen := uint32(header.Len())
	unitLen := uint32(2 + 4 + header.Len() + program.Len())
	_ = binary.Write(&out, binary.LittleEndian, unitLen)
	_ = binary.Write(&out, binary.LittleEndian, uint16(4))
	_ = binary.Write(&out, binary.LittleEndian, headerLen)
	out.Write(header.Bytes())
	out.Write(program.Bytes())
	return out.Bytes()
}

func sleb128(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}
