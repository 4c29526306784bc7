package errors

// error messages used throughout the dwarf query engine, grouped by the
// stage of the pipeline that raises them.

const (
	// object loading and archive extraction
	FileOpenError     = "failed to open file: %v"
	MmapError         = "failed to map file: %v"
	ObjectParseError  = "failed to parse object file: %v"
	ArchiveParseError = "failed to parse archive: %v"
	MemberNotFound    = "archive member not found: %v"

	// symbol indexing
	DemangleFailed = "failed to demangle symbol: %v"

	// DIE navigation
	DieMalformed       = "malformed die: %v"
	AttributeMissing   = "attribute missing: %v"
	AttributeWrongType = "attribute %v has unexpected type %v"

	// line program / module indexing
	LineProgramError = "failed to read line program: %v"

	// type resolution
	TypeUnsupported  = "unsupported type construct: %v"
	TypeNameParse    = "failed to parse type name: %v"
	CombinatorFailed = "combinator failed: %v"

	// expression evaluation
	ExprUnsupportedOp  = "unsupported dwarf expression opcode: %#x"
	ExprNoResult       = "dwarf expression produced no result"
	ExprMultiplePieces = "dwarf expression produced multiple pieces (unsupported)"
	ExprOracleError    = "oracle error while evaluating expression: %v"

	// memory decoding
	DecodeOracleError  = "oracle error while decoding value: %v"
	AddressBelowBase   = "address %#x is below base address %#x"
	RegisterOutOfRange = "register index %v is out of range (%v registers)"
)
