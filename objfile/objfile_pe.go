package objfile

import (
	"debug/pe"

	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/errors"
)

// parsePE handles the PE container; PE has no archive/object-map
// convention, so objectMap stays empty, matching ELF.
func (f *LoadedFile) parsePE() error {
	pf, err := pe.NewFile(f.data)
	if err != nil {
		return errors.E(errors.ParseError, errors.ObjectParseError, err)
	}
	f.pe = pf
	f.Kind = KindPE

	sections := make(map[string][]byte, 8)
	for _, name := range []string{
		"abbrev", "aranges", "frame", "info", "line", "pubnames", "ranges", "str",
	} {
		sec := pf.Section(".debug_" + name)
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

	f.objSymbols = make([]RawObjectSymbol, 0, len(pf.Symbols))
	for _, s := range pf.Symbols {
		if s.Name == "" {
			continue
		}
		f.objSymbols = append(f.objSymbols, RawObjectSymbol{
			Name:    s.Name,
			Value:   uint64(s.Value),
			IsText:  s.SectionNumber > 0,
			Defined: s.SectionNumber > 0,
		})
	}

	return nil
}
