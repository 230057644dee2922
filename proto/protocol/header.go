package protocol

import (
	"encoding/binary"
	"fmt"
)

// RequestHeader is the fixed 24 byte header of a request frame:
//
//	 0      1       2-3      4        5         6-7       8-11      12-15   16-23
//	magic opcode keylength extlen datatype reserved totalbody opaque   cas
type RequestHeader struct {
	Magic           Magic
	Opcode          Opcode
	KeyLength       uint16
	ExtraLength     uint8
	DataType        DataType
	Reserved        uint16 // vbucket id in other protocol flavours, must be zero here
	TotalBodyLength uint32
	Opaque          uint32
	CAS             uint64
}

// ValueLength returns the length of the value segment or an error if the
// body length is smaller than extra and key together
func (h RequestHeader) ValueLength() (int, error) {
	n := int64(h.TotalBodyLength) - int64(h.ExtraLength) - int64(h.KeyLength)
	if n < 0 {
		return 0, newProtocolError(ErrMalformedFrame,
			"body length %d smaller than extra (%d) + key (%d)", h.TotalBodyLength, h.ExtraLength, h.KeyLength)
	}
	return int(n), nil
}

func (h RequestHeader) String() string {
	return fmt.Sprintf("RequestHeader{magic=%s opcode=%s keylen=%d extlen=%d datatype=%s bodylen=%d opaque=%d cas=%d}",
		h.Magic, h.Opcode, h.KeyLength, h.ExtraLength, h.DataType, h.TotalBodyLength, h.Opaque, h.CAS)
}

// ResponseHeader is the fixed 24 byte header of a response frame. It has the
// same layout as the request header with the status in place of the reserved field.
type ResponseHeader struct {
	Magic           Magic
	Opcode          Opcode
	KeyLength       uint16
	ExtraLength     uint8
	DataType        DataType
	Status          Status
	TotalBodyLength uint32
	Opaque          uint32
	CAS             uint64
}

// ValueLength returns the length of the value segment
func (h ResponseHeader) ValueLength() (int, error) {
	n := int64(h.TotalBodyLength) - int64(h.ExtraLength) - int64(h.KeyLength)
	if n < 0 {
		return 0, newProtocolError(ErrMalformedFrame,
			"body length %d smaller than extra (%d) + key (%d)", h.TotalBodyLength, h.ExtraLength, h.KeyLength)
	}
	return int(n), nil
}

func (h ResponseHeader) String() string {
	return fmt.Sprintf("ResponseHeader{magic=%s opcode=%s keylen=%d extlen=%d datatype=%s status=%s bodylen=%d opaque=%d cas=%d}",
		h.Magic, h.Opcode, h.KeyLength, h.ExtraLength, h.DataType, h.Status, h.TotalBodyLength, h.Opaque, h.CAS)
}

// --------------------------------------------------------------------------
// Encoding (network byte order)
// --------------------------------------------------------------------------

// putHeader writes the common header layout into dst[:HeaderLength]
func putHeader(dst []byte, magic Magic, op Opcode, keyLen uint16, extLen uint8, dt DataType, slot uint16, bodyLen, opaque uint32, cas uint64) {
	_ = dst[HeaderLength-1] // bounds check hint
	dst[0] = byte(magic)
	dst[1] = byte(op)
	binary.BigEndian.PutUint16(dst[2:4], keyLen)
	dst[4] = extLen
	dst[5] = byte(dt)
	binary.BigEndian.PutUint16(dst[6:8], slot)
	binary.BigEndian.PutUint32(dst[8:12], bodyLen)
	binary.BigEndian.PutUint32(dst[12:16], opaque)
	binary.BigEndian.PutUint64(dst[16:24], cas)
}

// EncodeRequestHeader writes h into dst, which must hold at least HeaderLength bytes
func EncodeRequestHeader(dst []byte, h RequestHeader) {
	putHeader(dst, h.Magic, h.Opcode, h.KeyLength, h.ExtraLength, h.DataType, h.Reserved, h.TotalBodyLength, h.Opaque, h.CAS)
}

// EncodeResponseHeader writes h into dst, which must hold at least HeaderLength bytes
func EncodeResponseHeader(dst []byte, h ResponseHeader) {
	putHeader(dst, h.Magic, h.Opcode, h.KeyLength, h.ExtraLength, h.DataType, uint16(h.Status), h.TotalBodyLength, h.Opaque, h.CAS)
}

// DecodeRequestHeader parses a request header. src must be exactly HeaderLength bytes.
// The magic byte and the reserved field are validated, the body length is not.
func DecodeRequestHeader(src []byte) (RequestHeader, error) {
	if len(src) != HeaderLength {
		return RequestHeader{}, newProtocolError(ErrMalformedFrame, "header must be %d bytes, got %d", HeaderLength, len(src))
	}
	h := RequestHeader{
		Magic:           Magic(src[0]),
		Opcode:          Opcode(src[1]),
		KeyLength:       binary.BigEndian.Uint16(src[2:4]),
		ExtraLength:     src[4],
		DataType:        DataType(src[5]),
		Reserved:        binary.BigEndian.Uint16(src[6:8]),
		TotalBodyLength: binary.BigEndian.Uint32(src[8:12]),
		Opaque:          binary.BigEndian.Uint32(src[12:16]),
		CAS:             binary.BigEndian.Uint64(src[16:24]),
	}
	if h.Magic != MagicRequest {
		return h, newProtocolError(ErrBadMagic, "got %#.2x, expected %#.2x", uint8(h.Magic), uint8(MagicRequest))
	}
	if h.Reserved != 0 {
		return h, newProtocolError(ErrReservedNotZero, "got %#.4x", h.Reserved)
	}
	return h, nil
}

// DecodeResponseHeader parses a response header. src must be exactly HeaderLength bytes.
func DecodeResponseHeader(src []byte) (ResponseHeader, error) {
	if len(src) != HeaderLength {
		return ResponseHeader{}, newProtocolError(ErrMalformedFrame, "header must be %d bytes, got %d", HeaderLength, len(src))
	}
	h := ResponseHeader{
		Magic:           Magic(src[0]),
		Opcode:          Opcode(src[1]),
		KeyLength:       binary.BigEndian.Uint16(src[2:4]),
		ExtraLength:     src[4],
		DataType:        DataType(src[5]),
		Status:          Status(binary.BigEndian.Uint16(src[6:8])),
		TotalBodyLength: binary.BigEndian.Uint32(src[8:12]),
		Opaque:          binary.BigEndian.Uint32(src[12:16]),
		CAS:             binary.BigEndian.Uint64(src[16:24]),
	}
	if h.Magic != MagicResponse {
		return h, newProtocolError(ErrBadMagic, "got %#.2x, expected %#.2x", uint8(h.Magic), uint8(MagicResponse))
	}
	return h, nil
}
