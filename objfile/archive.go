package objfile

import (
	"io"
	"strconv"
	"strings"

	"github.com/rudy-go/rudy/errors"
)

// ar(1) common archive format: an 8-byte magic followed by a sequence of
// 60-byte headers, each followed by the (even-padded) member payload. This
// is the archive framing used to address a member by (archive path, member
// name).
const arMagic = "!<arch>\n"
const arHeaderLen = 60

// extractArchiveMember scans r (an ar(1) archive of totalSize bytes,
// typically the memory-mapped archive itself) for the member named name and
// returns a section reader scoped to that member's byte range — never a
// copy of the member's payload, let alone the whole archive. Only the small,
// fixed-size headers (and the GNU long-name table, itself just a small name
// index) are read eagerly; matching is done on raw bytes, no path
// normalisation is performed.
func extractArchiveMember(r io.ReaderAt, totalSize int64, name string) (io.ReaderAt, error) {
	magic := make([]byte, len(arMagic))
	if _, err := r.ReadAt(magic, 0); err != nil || string(magic) != arMagic {
		return nil, errors.E(errors.ParseError, errors.ArchiveParseError, "not an archive")
	}

	var longNames []byte
	hdr := make([]byte, arHeaderLen)
	off := int64(len(arMagic))
	for off+arHeaderLen <= totalSize {
		if _, err := r.ReadAt(hdr, off); err != nil {
			return nil, errors.E(errors.ParseError, errors.ArchiveParseError, err)
		}
		off += arHeaderLen

		rawName := strings.TrimRight(string(hdr[0:16]), " ")
		sizeField := strings.TrimSpace(string(hdr[48:58]))
		size, err := strconv.ParseInt(sizeField, 10, 64)
		if err != nil {
			return nil, errors.E(errors.ParseError, errors.ArchiveParseError, err)
		}

		if off+size > totalSize {
			return nil, errors.E(errors.ParseError, errors.ArchiveParseError, "truncated archive member")
		}

		memberName := rawName
		switch {
		case rawName == "//":
			// GNU extended-name table: subsequent members may reference an
			// offset into this table via "/<offset>".
			longNames = make([]byte, size)
			if _, err := r.ReadAt(longNames, off); err != nil {
				return nil, errors.E(errors.ParseError, errors.ArchiveParseError, err)
			}
			memberName = ""
		case strings.HasPrefix(rawName, "/") && rawName != "/" && rawName != "//":
			if idx, err := strconv.Atoi(strings.TrimSuffix(rawName[1:], "")); err == nil && longNames != nil {
				memberName = extractLongName(string(longNames), idx)
			}
		default:
			memberName = strings.TrimSuffix(memberName, "/")
		}

		if memberName == name {
			return io.NewSectionReader(r, off, size), nil
		}

		// members are padded to an even offset
		if size%2 != 0 {
			size++
		}
		off += size
	}

	return nil, errors.E(errors.ArchiveMemberNotFound, errors.MemberNotFound, name)
}

func extractLongName(table string, offset int) string {
	if offset < 0 || offset >= len(table) {
		return ""
	}
	rest := table[offset:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSuffix(rest, "/")
}
