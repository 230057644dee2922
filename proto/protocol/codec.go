package protocol

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structures
// --------------------------------------------------------------------------

// Message is one decoded request frame. The byte slices are owned by the
// message and must not be modified by handlers.
type Message struct {
	Header RequestHeader
	Extra  []byte
	Key    []byte
	Value  []byte
}

// Opcode is a shortcut for m.Header.Opcode
func (m *Message) Opcode() Opcode {
	return m.Header.Opcode
}

func (m *Message) String() string {
	return fmt.Sprintf("Message{%s extra=%q key=%q value=%d bytes}", m.Header, m.Extra, m.Key, len(m.Value))
}

// Response is one decoded response frame (client side)
type Response struct {
	Header ResponseHeader
	Extra  []byte
	Key    []byte
	Value  []byte
}

// Status is a shortcut for r.Header.Status
func (r *Response) Status() Status {
	return r.Header.Status
}

// StatPair is one key/value packet of a STAT reply
type StatPair struct {
	Key   string
	Value string
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

// DecodeRequest reads one complete request frame using DefaultMaxBodyLength
func DecodeRequest(r *FrameReader) (*Message, error) {
	return DecodeRequestLimit(r, DefaultMaxBodyLength)
}

// DecodeRequestLimit reads one complete request frame: the header, then extra,
// key and value in this order. Frames whose body exceeds maxBody are rejected
// before any body byte is read (maxBody 0 disables the check).
//
// A *ProtocolError means the stream is desynchronized and must be closed.
func DecodeRequestLimit(r *FrameReader, maxBody uint32) (*Message, error) {
	raw, err := r.next(HeaderLength)
	if err != nil {
		return nil, err
	}
	h, err := DecodeRequestHeader(raw)
	if err != nil {
		return nil, err
	}
	if maxBody > 0 && h.TotalBodyLength > maxBody {
		return nil, newProtocolError(ErrFrameTooLarge, "body length %d exceeds limit %d", h.TotalBodyLength, maxBody)
	}
	valueLen, err := h.ValueLength()
	if err != nil {
		return nil, err
	}

	msg := &Message{Header: h}
	if msg.Extra, err = r.ReadExact(int(h.ExtraLength)); err != nil {
		return nil, err
	}
	if msg.Key, err = r.ReadExact(int(h.KeyLength)); err != nil {
		return nil, err
	}
	if msg.Value, err = r.ReadExact(valueLen); err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeResponse reads one complete response frame
func DecodeResponse(r *FrameReader) (*Response, error) {
	raw, err := r.next(HeaderLength)
	if err != nil {
		return nil, err
	}
	h, err := DecodeResponseHeader(raw)
	if err != nil {
		return nil, err
	}
	valueLen, err := h.ValueLength()
	if err != nil {
		return nil, err
	}

	resp := &Response{Header: h}
	if resp.Extra, err = r.ReadExact(int(h.ExtraLength)); err != nil {
		return nil, err
	}
	if resp.Key, err = r.ReadExact(int(h.KeyLength)); err != nil {
		return nil, err
	}
	if resp.Value, err = r.ReadExact(valueLen); err != nil {
		return nil, err
	}
	return resp, nil
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// response collects the optional fields of a response frame
type response struct {
	status   Status
	key      []byte
	extra    []byte
	value    []byte
	cas      uint64
	dataType DataType
}

// ResponseOption sets an optional field of a response frame
type ResponseOption func(*response)

// WithStatus sets the response status (default StatusSuccess)
func WithStatus(s Status) ResponseOption {
	return func(r *response) { r.status = s }
}

// WithKey sets the key segment
func WithKey(key []byte) ResponseOption {
	return func(r *response) { r.key = key }
}

// WithExtra sets the extra segment
func WithExtra(extra []byte) ResponseOption {
	return func(r *response) { r.extra = extra }
}

// WithValue sets the value segment
func WithValue(value []byte) ResponseOption {
	return func(r *response) { r.value = value }
}

// WithCAS sets the CAS field
func WithCAS(cas uint64) ResponseOption {
	return func(r *response) { r.cas = cas }
}

// WithDataType sets the data type field (default DataTypeRawBytes)
func WithDataType(dt DataType) ResponseOption {
	return func(r *response) { r.dataType = dt }
}

// EncodeResponse builds a response frame for req. Opcode and opaque are
// copied from the request, the body is extra, key, value in this order.
func EncodeResponse(req *Message, opts ...ResponseOption) []byte {
	return AppendResponse(nil, req, opts...)
}

// AppendResponse appends a response frame for req to dst and returns the extended slice.
// An extra or key too long for its header field is replaced by an empty
// E2BIG response.
func AppendResponse(dst []byte, req *Message, opts ...ResponseOption) []byte {
	resp := response{status: StatusSuccess, dataType: DataTypeRawBytes}
	for _, opt := range opts {
		opt(&resp)
	}
	if CheckSegments(resp.extra, resp.key) != nil {
		resp = response{status: StatusTooLarge, dataType: DataTypeRawBytes}
	}

	bodyLen := len(resp.extra) + len(resp.key) + len(resp.value)
	start := len(dst)
	dst = grow(dst, HeaderLength+bodyLen)
	EncodeResponseHeader(dst[start:], ResponseHeader{
		Magic:           MagicResponse,
		Opcode:          req.Header.Opcode,
		KeyLength:       uint16(len(resp.key)),
		ExtraLength:     uint8(len(resp.extra)),
		DataType:        resp.dataType,
		Status:          resp.status,
		TotalBodyLength: uint32(bodyLen),
		Opaque:          req.Header.Opaque,
		CAS:             resp.cas,
	})

	pos := start + HeaderLength
	pos += copy(dst[pos:], resp.extra)
	pos += copy(dst[pos:], resp.key)
	copy(dst[pos:], resp.value)
	return dst
}

// EncodeStats builds a STAT reply: one packet per pair followed by exactly one
// packet with empty key and value, which terminates the reply even when
// pairs is empty.
func EncodeStats(req *Message, pairs []StatPair) []byte {
	var out []byte
	for _, p := range pairs {
		out = AppendResponse(out, req, WithKey([]byte(p.Key)), WithValue([]byte(p.Value)))
	}
	return AppendResponse(out, req)
}

// CheckSegments reports whether extra and key fit the header length fields
func CheckSegments(extra, key []byte) error {
	if len(extra) > MaxExtraLength {
		return fmt.Errorf("%w: extra of %d bytes (max %d)", ErrSegmentTooLarge, len(extra), MaxExtraLength)
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: key of %d bytes (max %d)", ErrSegmentTooLarge, len(key), MaxKeyLength)
	}
	return nil
}

// EncodeRequest builds a request frame. Magic and all length fields of h are
// overwritten from the given segments. It panics if CheckSegments fails.
func EncodeRequest(h RequestHeader, extra, key, value []byte) []byte {
	if err := CheckSegments(extra, key); err != nil {
		panic(err)
	}
	h.Magic = MagicRequest
	h.ExtraLength = uint8(len(extra))
	h.KeyLength = uint16(len(key))
	h.TotalBodyLength = uint32(len(extra) + len(key) + len(value))

	out := make([]byte, HeaderLength+int(h.TotalBodyLength))
	EncodeRequestHeader(out, h)
	pos := HeaderLength
	pos += copy(out[pos:], extra)
	pos += copy(out[pos:], key)
	copy(out[pos:], value)
	return out
}

// grow extends b by n bytes, reallocating only if the capacity is too small
func grow(b []byte, n int) []byte {
	if cap(b)-len(b) >= n {
		return b[:len(b)+n]
	}
	grown := make([]byte, len(b)+n, 2*cap(b)+n)
	copy(grown, b)
	return grown
}
