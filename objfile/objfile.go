// Package objfile memory-maps a file (optionally an archive member), parses
// its object container, and hands back the DWARF sections plus symbol
// table.
//
// Three container shapes are detected by magic: ELF and PE via the
// standard library, and Mach-O (plus its ar(1)-style archive framing used
// for split dSYM/object-map debug info) via github.com/blacktop/go-macho,
// which also supplies the DWARF section reader
// (github.com/blacktop/go-dwarf, a maintained fork of debug/dwarf).
package objfile

import (
	"bytes"
	"debug/elf"
	"debug/pe"
	"fmt"
	"io"
	"os"
	"time"

	dwarf "github.com/blacktop/go-dwarf"
	macho "github.com/blacktop/go-macho"
	"golang.org/x/exp/mmap"

	"github.com/rudy-go/rudy/errors"
)

// Kind identifies the container format detected for a LoadedFile.
type Kind int

const (
	KindUnknown Kind = iota
	KindELF
	KindMachO
	KindPE
)

// RawObjectSymbol is one entry from the main binary's own symbol table,
// normalised across container formats.
type RawObjectSymbol struct {
	Name    string
	Value   uint64
	Size    uint64
	IsText  bool
	Defined bool
}

// MappedObjectSymbol is one entry from a Mach-O "object map": a stab-style
// symbol pointing at a separately compiled .o file (possibly within an
// archive) with an address relocated into the main image.
type MappedObjectSymbol struct {
	Name       string // the linkage name as it appears in the .o's own symtab
	Address    uint64 // absolute address in the loaded main image
	ObjectPath string // path to the .o, or to the containing archive
	Member     string // archive member name, empty if ObjectPath is a plain file
}

// LoadedFile is a DebugFile paired with its memory-mapped bytes, a parsed
// object view and (if present) a parsed DWARF view.
//
// A LoadedFile must outlive every die handle derived from it: the mmap'd
// bytes back every []byte the DWARF reader hands out.
type LoadedFile struct {
	Path       string
	Member     string // archive member name, empty for a top-level file
	Kind       Kind
	reader     *mmap.ReaderAt
	data       io.ReaderAt // the mapping itself, or a section reader scoped to an archive member within it
	elf        *elf.File
	macho      *macho.File
	pe         *pe.File
	dwarfData  *dwarf.Data
	hasDebug   bool
	objSymbols []RawObjectSymbol
	objectMap  []MappedObjectSymbol
}

// NewSynthetic wraps already-parsed DWARF data as a LoadedFile with no
// backing object container or memory mapping. It exists for other
// packages' tests: building a *dwarfdie.DB or *symtab.Index against real
// DWARF bytes needs a *LoadedFile, but exercising indexing and type
// resolution end to end doesn't require an actual ELF/Mach-O/PE file on
// disk to carry it.
func NewSynthetic(path string, d *dwarf.Data) *LoadedFile {
	return &LoadedFile{Path: path, dwarfData: d, hasDebug: d != nil}
}

// Identity is a file's (path, mtime, size). Any change invalidates cached
// indices keyed by it.
type Identity struct {
	Path  string
	Mtime time.Time
	Size  int64
}

// Stat computes the Identity for path, the file-level identity check used to
// decide whether previously-cached indices for this Binary are still valid.
func Stat(path string) (Identity, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Identity{}, errors.E(errors.IoError, errors.FileOpenError, err)
	}
	return Identity{Path: path, Mtime: fi.ModTime(), Size: fi.Size()}, nil
}

// Open memory-maps path read-only, optionally extracts member from it as an
// ar(1) archive, and parses the resulting bytes as an object container.
//
// Failure to open or parse is terminal for this file: the caller is
// expected to record a Critical diagnostic and treat the file as absent,
// not to retry.
func Open(path string, member string) (*LoadedFile, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, errors.E(errors.IoError, errors.FileOpenError, err)
	}

	var payload io.ReaderAt = r
	if member != "" {
		m, err := extractArchiveMember(r, int64(r.Len()), member)
		if err != nil {
			r.Close()
			return nil, err
		}
		payload = m
	}

	lf := &LoadedFile{
		Path:   path,
		Member: member,
		reader: r,
		data:   payload,
	}

	if err := lf.parse(); err != nil {
		r.Close()
		return nil, err
	}

	return lf, nil
}

// Close releases the underlying memory mapping. Every Die derived from this
// LoadedFile becomes invalid once Close returns.
func (f *LoadedFile) Close() error {
	if f.reader != nil {
		return f.reader.Close()
	}
	return nil
}

// parse sniffs the container format from the first few bytes of f.data,
// read through the mapping (or the archive-member section reader) rather
// than a heap copy of the whole file.
func (f *LoadedFile) parse() error {
	var magic [4]byte
	n, err := f.data.ReadAt(magic[:], 0)
	if err != nil && err != io.EOF {
		return errors.E(errors.IoError, errors.MmapError, err)
	}
	head := magic[:n]

	switch {
	case len(head) >= 4 && bytes.Equal(head[:4], []byte{0x7f, 'E', 'L', 'F'}):
		return f.parseELF()
	case isMachOMagic(head):
		return f.parseMachO()
	case len(head) >= 2 && head[0] == 'M' && head[1] == 'Z':
		return f.parsePE()
	default:
		return errors.E(errors.ParseError, errors.ObjectParseError, fmt.Errorf("unrecognised object container"))
	}
}

func isMachOMagic(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	magics := [][4]byte{
		{0xfe, 0xed, 0xfa, 0xce}, {0xce, 0xfa, 0xed, 0xfe}, // 32-bit
		{0xfe, 0xed, 0xfa, 0xcf}, {0xcf, 0xfa, 0xed, 0xfe}, // 64-bit
		{0xca, 0xfe, 0xba, 0xbe}, {0xbe, 0xba, 0xfe, 0xca}, // fat/universal
	}
	var hdr [4]byte
	copy(hdr[:], b[:4])
	for _, m := range magics {
		if hdr == m {
			return true
		}
	}
	return false
}

// HasDebugInfo reports whether the LoadedFile carries its own DWARF
// sections.
func (f *LoadedFile) HasDebugInfo() bool {
	return f.hasDebug
}

// DWARF returns the parsed DWARF view, or nil if this file carries none.
func (f *LoadedFile) DWARF() *dwarf.Data {
	return f.dwarfData
}

// SymbolTable returns the main binary's own symbol table.
func (f *LoadedFile) SymbolTable() []RawObjectSymbol {
	return f.objSymbols
}

// ObjectMap returns the Mach-O style object-map entries; empty for ELF/PE
// containers, which have no such convention.
func (f *LoadedFile) ObjectMap() []MappedObjectSymbol {
	return f.objectMap
}
