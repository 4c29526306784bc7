// Package leb128 decodes the variable-length integer encodings DWARF uses
// for expression operands, abbreviation fields and line-program headers.
package leb128

// DecodeULEB128 decodes an unsigned LEB128 value from the start of encoded
// (DWARF5 §7.6, figure 7.16) and reports how many bytes it consumed. A nil
// or empty slice decodes to (0, 0).
func DecodeULEB128(encoded []uint8) (uint64, int) {
	var result uint64

	for i, b := range encoded {
		result |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return result, i + 1
		}
	}

	return result, len(encoded)
}

// DecodeSLEB128 decodes a signed LEB128 value from the start of encoded
// (DWARF5 §7.6, figure 7.17), sign-extending the final group, and reports
// how many bytes it consumed. A nil or empty slice decodes to (0, 0).
func DecodeSLEB128(encoded []uint8) (int64, int) {
	const width = 64

	var result int64
	var shift uint

	for i, b := range encoded {
		result |= int64(b&0x7f) << shift
		shift += 7

		if b&0x80 == 0 {
			if shift < width && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1
		}
	}

	return result, len(encoded)
}
