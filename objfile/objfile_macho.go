package objfile

import (
	"strings"

	macho "github.com/blacktop/go-macho"

	"github.com/rudy-go/rudy/errors"
)

// Mach-O stab symbol-table entry types (N_TYPE mask of the n_type byte).
// These are the entries dsymutil / the linker leave behind to form the
// "debug map": a sequence of N_OSO markers (one per compiled .o) each
// followed by N_FUN/N_GSYM/N_STSYM stabs naming the symbols that .o
// contributed, now carrying their final relocated address in the main
// image.
const (
	stabTypeMask = 0x0e
	nGSYM        = 0x20
	nFUN         = 0x24
	nSTSYM       = 0x26
	nSO          = 0x64
	nOSO         = 0x66
)

func (f *LoadedFile) parseMachO() error {
	mf, err := macho.NewFile(f.data)
	if err != nil {
		return errors.E(errors.ParseError, errors.ObjectParseError, err)
	}
	f.macho = mf
	f.Kind = KindMachO

	if d, err := mf.DWARF(); err == nil && d != nil {
		f.dwarfData = d
		f.hasDebug = true
	}

	textSections := make(map[uint8]bool)
	sectionIndex := uint8(1)
	for _, sec := range mf.Sections {
		if sec.Name == "__text" || sec.Flags.Attrs()&0x80000000 != 0 { // S_ATTR_PURE_INSTRUCTIONS
			textSections[sectionIndex] = true
		}
		sectionIndex++
	}

	if mf.Symtab == nil {
		return nil
	}

	f.objSymbols = make([]RawObjectSymbol, 0, len(mf.Symtab.Syms))

	var currentOSOPath, currentOSOMember string
	for _, sym := range mf.Symtab.Syms {
		nType := sym.Type
		isStab := nType&0x20 != 0 // N_STAB bit

		if isStab {
			switch nType & 0xfe {
			case nOSO:
				currentOSOPath, currentOSOMember = splitArchiveMember(sym.Name)
			case nFUN, nGSYM, nSTSYM:
				if sym.Name == "" || sym.Value == 0 {
					continue
				}
				f.objectMap = append(f.objectMap, MappedObjectSymbol{
					Name:       sym.Name,
					Address:    sym.Value,
					ObjectPath: currentOSOPath,
					Member:     currentOSOMember,
				})
			case nSO:
				// new source file group; object map membership carries on
				// until the next N_OSO
			}
			continue
		}

		if sym.Name == "" {
			continue
		}
		f.objSymbols = append(f.objSymbols, RawObjectSymbol{
			Name:    sym.Name,
			Value:   sym.Value,
			IsText:  textSections[sym.Sect],
			Defined: sym.Sect != 0,
		})
	}

	return nil
}

// splitArchiveMember parses the N_OSO stab name, which is either a bare
// path to a .o file or "archive.a(member.o)".
func splitArchiveMember(name string) (path, member string) {
	if i := strings.IndexByte(name, '('); i >= 0 && strings.HasSuffix(name, ")") {
		return name[:i], name[i+1 : len(name)-1]
	}
	return name, ""
}
