package protocol

import "fmt"

// --------------------------------------------------------------------------
// Header Layout
// --------------------------------------------------------------------------

const (
	// HeaderLength is the size of both the request and the response header
	HeaderLength = 24

	// MaxExtraLength and MaxKeyLength are the widths of the header length fields
	MaxExtraLength = 0xff
	MaxKeyLength   = 0xffff

	// DefaultMaxBodyLength bounds the total body length accepted by DecodeRequest
	DefaultMaxBodyLength uint32 = 20 * 1024 * 1024
)

// Magic identifies the direction of a frame
type Magic uint8

const (
	MagicRequest  Magic = 0x80
	MagicResponse Magic = 0x81
)

// String returns the symbolic name of the magic byte
func (m Magic) String() string {
	switch m {
	case MagicRequest:
		return "REQ"
	case MagicResponse:
		return "RES"
	default:
		return fmt.Sprintf("MAGIC(%#.2x)", uint8(m))
	}
}

// DataType is the data type field of a header. Memcached only defines raw bytes.
type DataType uint8

const (
	DataTypeRawBytes DataType = 0x00
)

// String returns the symbolic name of the data type
func (d DataType) String() string {
	if d == DataTypeRawBytes {
		return "RAW_BYTES"
	}
	return fmt.Sprintf("DATATYPE(%#.2x)", uint8(d))
}

// --------------------------------------------------------------------------
// Response Status
// --------------------------------------------------------------------------

// Status is the status field of a response header
type Status uint16

const (
	StatusSuccess        Status = 0x00
	StatusKeyNotFound    Status = 0x01
	StatusKeyExists      Status = 0x02
	StatusTooLarge       Status = 0x03 // E2BIG
	StatusInvalid        Status = 0x04 // EINVAL
	StatusNotStored      Status = 0x05
	StatusDeltaBadValue  Status = 0x06
	StatusAuthError      Status = 0x20
	StatusAuthContinue   Status = 0x21
	StatusUnknownCommand Status = 0x81
	StatusOutOfMemory    Status = 0x82
	StatusNotSupported   Status = 0x83
	StatusInternalError  Status = 0x84
	StatusBusy           Status = 0x85
	StatusTemporaryFail  Status = 0x86
)

var statusNames = map[Status]string{
	StatusSuccess:        "SUCCESS",
	StatusKeyNotFound:    "KEY_ENOENT",
	StatusKeyExists:      "KEY_EEXISTS",
	StatusTooLarge:       "E2BIG",
	StatusInvalid:        "EINVAL",
	StatusNotStored:      "NOT_STORED",
	StatusDeltaBadValue:  "DELTA_BADVAL",
	StatusAuthError:      "AUTH_ERROR",
	StatusAuthContinue:   "AUTH_CONTINUE",
	StatusUnknownCommand: "UNKNOWN_COMMAND",
	StatusOutOfMemory:    "ENOMEM",
	StatusNotSupported:   "NOT_SUPPORTED",
	StatusInternalError:  "EINTERNAL",
	StatusBusy:           "EBUSY",
	StatusTemporaryFail:  "ETMPFAIL",
}

// String returns the symbolic name of the status
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%#.4x)", uint16(s))
}

// --------------------------------------------------------------------------
// Command Opcodes
// --------------------------------------------------------------------------

// Opcode is the single byte command identifier of a frame
type Opcode uint8

const (
	OpGet        Opcode = 0x00
	OpSet        Opcode = 0x01
	OpAdd        Opcode = 0x02
	OpReplace    Opcode = 0x03
	OpDelete     Opcode = 0x04
	OpIncrement  Opcode = 0x05
	OpDecrement  Opcode = 0x06
	OpQuit       Opcode = 0x07
	OpFlush      Opcode = 0x08
	OpGetQ       Opcode = 0x09
	OpNoop       Opcode = 0x0a
	OpVersion    Opcode = 0x0b
	OpGetK       Opcode = 0x0c
	OpGetKQ      Opcode = 0x0d
	OpAppend     Opcode = 0x0e
	OpPrepend    Opcode = 0x0f
	OpStat       Opcode = 0x10
	OpSetQ       Opcode = 0x11
	OpAddQ       Opcode = 0x12
	OpReplaceQ   Opcode = 0x13
	OpDeleteQ    Opcode = 0x14
	OpIncrementQ Opcode = 0x15
	OpDecrementQ Opcode = 0x16
	OpQuitQ      Opcode = 0x17
	OpFlushQ     Opcode = 0x18
	OpAppendQ    Opcode = 0x19
	OpPrependQ   Opcode = 0x1a
	OpTouch      Opcode = 0x1c
	OpGAT        Opcode = 0x1d
	OpGATQ       Opcode = 0x1e

	OpSASLListMechs Opcode = 0x20
	OpSASLAuth      Opcode = 0x21
	OpSASLStep      Opcode = 0x22

	OpGATK  Opcode = 0x23
	OpGATKQ Opcode = 0x24

	// Range operations are reserved by the protocol but not expected to be
	// implemented by a memcached server
	OpRGet      Opcode = 0x30
	OpRSet      Opcode = 0x31
	OpRSetQ     Opcode = 0x32
	OpRAppend   Opcode = 0x33
	OpRAppendQ  Opcode = 0x34
	OpRPrepend  Opcode = 0x35
	OpRPrependQ Opcode = 0x36
	OpRDelete   Opcode = 0x37
	OpRDeleteQ  Opcode = 0x38
	OpRIncr     Opcode = 0x39
	OpRIncrQ    Opcode = 0x3a
	OpRDecr     Opcode = 0x3b
	OpRDecrQ    Opcode = 0x3c
)

// opcodeInfo is one row of the opcode registry
type opcodeInfo struct {
	name  string
	quiet bool
}

// opcodes is the registry of all known opcodes. It is never modified.
var opcodes = [256]*opcodeInfo{
	OpGet:        {"GET", false},
	OpSet:        {"SET", false},
	OpAdd:        {"ADD", false},
	OpReplace:    {"REPLACE", false},
	OpDelete:     {"DELETE", false},
	OpIncrement:  {"INCREMENT", false},
	OpDecrement:  {"DECREMENT", false},
	OpQuit:       {"QUIT", false},
	OpFlush:      {"FLUSH", false},
	OpGetQ:       {"GETQ", true},
	OpNoop:       {"NOOP", false},
	OpVersion:    {"VERSION", false},
	OpGetK:       {"GETK", false},
	OpGetKQ:      {"GETKQ", true},
	OpAppend:     {"APPEND", false},
	OpPrepend:    {"PREPEND", false},
	OpStat:       {"STAT", false},
	OpSetQ:       {"SETQ", true},
	OpAddQ:       {"ADDQ", true},
	OpReplaceQ:   {"REPLACEQ", true},
	OpDeleteQ:    {"DELETEQ", true},
	OpIncrementQ: {"INCREMENTQ", true},
	OpDecrementQ: {"DECREMENTQ", true},
	OpQuitQ:      {"QUITQ", true},
	OpFlushQ:     {"FLUSHQ", true},
	OpAppendQ:    {"APPENDQ", true},
	OpPrependQ:   {"PREPENDQ", true},
	OpTouch:      {"TOUCH", false},
	OpGAT:        {"GAT", false},
	OpGATQ:       {"GATQ", true},

	OpSASLListMechs: {"SASL_LIST_MECHS", false},
	OpSASLAuth:      {"SASL_AUTH", false},
	OpSASLStep:      {"SASL_STEP", false},

	OpGATK:  {"GATK", false},
	OpGATKQ: {"GATKQ", true},

	OpRGet:      {"RGET", false},
	OpRSet:      {"RSET", false},
	OpRSetQ:     {"RSETQ", true},
	OpRAppend:   {"RAPPEND", false},
	OpRAppendQ:  {"RAPPENDQ", true},
	OpRPrepend:  {"RPREPEND", false},
	OpRPrependQ: {"RPREPENDQ", true},
	OpRDelete:   {"RDELETE", false},
	OpRDeleteQ:  {"RDELETEQ", true},
	OpRIncr:     {"RINCR", false},
	OpRIncrQ:    {"RINCRQ", true},
	OpRDecr:     {"RDECR", false},
	OpRDecrQ:    {"RDECRQ", true},
}

// String returns the symbolic name of the opcode, e.g. "GETKQ"
func (o Opcode) String() string {
	if info := opcodes[o]; info != nil {
		return info.name
	}
	return fmt.Sprintf("OPCODE(%#.2x)", uint8(o))
}

// Known reports whether the opcode is defined by the protocol
func (o Opcode) Known() bool {
	return opcodes[o] != nil
}

// IsQuiet reports whether replies to this opcode are buffered instead of
// being flushed immediately
func (o Opcode) IsQuiet() bool {
	info := opcodes[o]
	return info != nil && info.quiet
}

// IsQuit reports whether the opcode ends the session
func (o Opcode) IsQuit() bool {
	return o == OpQuit || o == OpQuitQ
}

// Opcodes returns all known opcodes in ascending order
func Opcodes() []Opcode {
	ops := make([]Opcode, 0, 64)
	for i, info := range opcodes {
		if info != nil {
			ops = append(ops, Opcode(i))
		}
	}
	return ops
}
