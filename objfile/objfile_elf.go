package objfile

import (
	"debug/elf"

	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/errors"
)

// parseELF adapts debug/elf's own abstractions to the ones this package
// exposes uniformly across containers. ELF has no "object map" convention
// — that's a Mach-O debug-map idiom — so objectMap stays empty.
func (f *LoadedFile) parseELF() error {
	ef, err := elf.NewFile(f.data)
	if err != nil {
		return errors.E(errors.ParseError, errors.ObjectParseError, err)
	}
	f.elf = ef
	f.Kind = KindELF

	sections := make(map[string][]byte, 8)
	for _, name := range []string{
		"abbrev", "aranges", "frame", "info", "line", "pubnames", "ranges", "str",
		"loc", "str_offsets", "addr", "rnglists", "loclists", "line_str",
	} {
		sec := ef.Section(".debug_" + name)
		if sec == nil {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			continue
		}
		sections[name] = data
	}

	if len(sections["info"]) > 0 {
		d, err := dwarf.New(
			sections["abbrev"], sections["aranges"], sections["frame"],
			sections["info"], sections["line"], sections["pubnames"],
			sections["ranges"], sections["str"],
		)
		if err == nil {
			f.dwarfData = d
			f.hasDebug = true
		}
	}

	syms, _ := ef.Symbols()
	f.objSymbols = make([]RawObjectSymbol, 0, len(syms))
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		f.objSymbols = append(f.objSymbols, RawObjectSymbol{
			Name:    s.Name,
			Value:   s.Value,
			Size:    s.Size,
			IsText:  elf.ST_TYPE(s.Info) == elf.STT_FUNC,
			Defined: s.Section != elf.SHN_UNDEF,
		})
	}

	return nil
}
