package index

import (
	dwarf "github.com/blacktop/go-dwarf"

	"github.com/rudy-go/rudy/dwarfdie"
	"github.com/rudy-go/rudy/index/interval"
	"github.com/rudy-go/rudy/logger"
	"github.com/rudy-go/rudy/symtab"
)

// dwLangRust is DW_LANG_Rust from the DWARF5 standard (0x1c). Only
// compilation units reporting this language are indexed; everything else
// is foreign to this engine's domain and skipped.
const dwLangRust = 0x1c

// FunctionData is everything the indexer recovers about one function from
// its DWARF subtree.
type FunctionData struct {
	Decl          dwarfdie.Die
	Specification dwarfdie.Die
	HasRange      bool
	RelativeStart uint64
	RelativeEnd   uint64
	Name          symtab.SymbolName
	Alternates    []dwarfdie.Die
}

// FunctionAddressInfo is one entry in either of a FunctionIndex's interval
// trees.
type FunctionAddressInfo struct {
	AbsoluteStart uint64
	AbsoluteEnd   uint64
	RelativeStart uint64
	DebugFile     symtab.DebugFile
	Name          symtab.SymbolName
}

// FunctionIndex is the per-DebugFile artifact §4.4 describes: a name-keyed
// map plus two interval trees (relative and absolute addressing) over the
// functions the linker actually kept.
type FunctionIndex struct {
	byName          map[string]FunctionData
	byRelativeAddr  *interval.Tree[FunctionAddressInfo]
	byAbsoluteAddr  *interval.Tree[FunctionAddressInfo]
}

func (fi *FunctionIndex) ByName(name string) (FunctionData, bool) {
	fd, ok := fi.byName[name]
	return fd, ok
}

func (fi *FunctionIndex) ByRelativeAddress(a uint64) []interval.Interval[FunctionAddressInfo] {
	return fi.byRelativeAddr.PointQuery(a)
}

func (fi *FunctionIndex) ByAbsoluteAddress(a uint64) []interval.Interval[FunctionAddressInfo] {
	return fi.byAbsoluteAddr.PointQuery(a)
}

type functionVisitor struct {
	dwarfdie.BaseVisitor
	db      *dwarfdie.DB
	file    symtab.DebugFile
	symIdx  *symtab.Index
	log     *logger.Log
	entries []functionEntry
}

type functionEntry struct {
	die  dwarfdie.Die
	name symtab.SymbolName
	abs  uint64
	rel  struct {
		start, end uint64
		ok         bool
	}
}

func (v *functionVisitor) VisitFunction(w *dwarfdie.Walker, d dwarfdie.Die) error {
	linkage := d.StringAttr(v.db, dwarf.AttrLinkageName)
	if linkage == "" {
		linkage = d.StringAttr(v.db, dwarf.AttrMIPSLinkageName)
	}
	if linkage == "" {
		return w.WalkChildren(d)
	}
	if v.file.Relocatable {
		linkage = "_" + linkage
	}

	sym, ok := v.symIdx.SymbolsByFile(v.file)[linkage]
	if !ok {
		v.log.Tracef("index", "linkage name %s not linked into %s, dropping", linkage, v.file.Name())
		return w.WalkChildren(d)
	}

	fe := functionEntry{die: d, name: sym.Name, abs: sym.Address}
	fe.rel.start, fe.rel.end, fe.rel.ok = functionRange(v.db, d)
	v.entries = append(v.entries, fe)

	return w.WalkChildren(d)
}

// functionRange computes (relative_start, relative_end) for a subprogram
// DIE from DW_AT_ranges if present, else DW_AT_low_pc/DW_AT_high_pc.
// DW_AT_high_pc may encode either an absolute address or an offset from
// low_pc depending on its form; a value smaller than low_pc is treated as
// an offset.
func functionRange(db *dwarfdie.DB, d dwarfdie.Die) (start, end uint64, ok bool) {
	data := db.Data(d.File)
	if data == nil {
		return 0, 0, false
	}

	e, err := d.Entry(db)
	if err != nil {
		return 0, 0, false
	}

	if ranges, err := data.Ranges(e); err == nil && len(ranges) > 0 {
		start = ranges[0][0]
		end = ranges[0][1]
		for _, r := range ranges[1:] {
			if r[1] > end {
				end = r[1]
			}
		}
		return start, end, true
	}

	low, lok := d.UdataAttr(db, dwarf.AttrLowpc)
	high, hok := d.UdataAttr(db, dwarf.AttrHighpc)
	if !lok || !hok {
		return 0, 0, false
	}
	if high < low {
		high = low + high
	}
	return low, high, true
}

// BuildFunctionIndex walks every Rust compilation unit in file once,
// dropping any subprogram whose linkage name the linker discarded, and
// builds the resulting name/relative/absolute lookup structures.
func BuildFunctionIndex(db *dwarfdie.DB, log *logger.Log, symIdx *symtab.Index, file symtab.DebugFile) (*FunctionIndex, error) {
	data := db.Data(file)
	if data == nil {
		return &FunctionIndex{byName: map[string]FunctionData{}, byRelativeAddr: interval.Build[FunctionAddressInfo](nil), byAbsoluteAddr: interval.Build[FunctionAddressInfo](nil)}, nil
	}

	v := &functionVisitor{db: db, file: file, symIdx: symIdx, log: log}

	r := data.Reader()
	for {
		cu, err := r.Next()
		if err != nil || cu == nil {
			break
		}
		if cu.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}

		lang, _ := cu.Val(dwarf.AttrLanguage).(int64)
		if lang != dwLangRust {
			log.Tracef("index", "skipping non-Rust compile unit in %s", file.Name())
			r.SkipChildren()
			continue
		}

		cuRoot := dwarfdie.Die{File: file, CU: cu.Offset, Offset: cu.Offset}
		if err := db.WalkUnit(cuRoot, v); err != nil {
			log.Warnf("index", "error walking compile unit in %s: %v", file.Name(), err)
		}
		r.SkipChildren()
	}

	return buildFunctionIndexFromEntries(file, v.entries), nil
}

// buildFunctionIndexFromEntries groups the raw per-DIE entries collected by
// a functionVisitor pass into the name-keyed map and the two interval trees,
// folding every entry after the first one seen for a given linkage name into
// that entry's Alternates instead of letting it silently overwrite the
// canonical FunctionData.
func buildFunctionIndexFromEntries(file symtab.DebugFile, entries []functionEntry) *FunctionIndex {
	byName := make(map[string]*FunctionData, len(entries))
	absByName := make(map[string]uint64, len(entries))
	order := make([]string, 0, len(entries))

	for _, fe := range entries {
		key := fe.name.String()
		fd, exists := byName[key]
		if !exists {
			nfd := &FunctionData{Decl: fe.die, Name: fe.name}
			if fe.rel.ok {
				nfd.HasRange = true
				nfd.RelativeStart = fe.rel.start
				nfd.RelativeEnd = fe.rel.end
			}
			byName[key] = nfd
			absByName[key] = fe.abs
			order = append(order, key)
			continue
		}

		// Same linkage name already seen in another CU: record d as an
		// alternate definition DIE rather than overwriting the canonical
		// entry (§3's FunctionData.Alternates).
		fd.Alternates = append(fd.Alternates, fe.die)
		if !fd.HasRange && fe.rel.ok {
			// The first-seen DIE was a bare declaration with no range;
			// promote this one to canonical instead of leaving the function
			// invisible to address lookups, demoting the old declaration to
			// an alternate in its place.
			fd.Alternates[len(fd.Alternates)-1] = fd.Decl
			fd.HasRange = true
			fd.RelativeStart = fe.rel.start
			fd.RelativeEnd = fe.rel.end
			fd.Decl = fe.die
		}
	}

	finalByName := make(map[string]FunctionData, len(byName))
	var relIvs, absIvs []interval.Interval[FunctionAddressInfo]

	for _, key := range order {
		fd := *byName[key]
		finalByName[key] = fd

		if !fd.HasRange {
			continue
		}
		length := fd.RelativeEnd - fd.RelativeStart
		absStart := absByName[key]
		absEnd := absStart + length

		info := FunctionAddressInfo{
			AbsoluteStart: absStart,
			AbsoluteEnd:   absEnd,
			RelativeStart: fd.RelativeStart,
			DebugFile:     file,
			Name:          fd.Name,
		}
		relIvs = append(relIvs, interval.Interval[FunctionAddressInfo]{Start: fd.RelativeStart, End: fd.RelativeEnd, Value: info})
		absIvs = append(absIvs, interval.Interval[FunctionAddressInfo]{Start: absStart, End: absEnd, Value: info})
	}

	return &FunctionIndex{
		byName:         finalByName,
		byRelativeAddr: interval.Build(relIvs),
		byAbsoluteAddr: interval.Build(absIvs),
	}
}
