// Package protocol implements the wire format of the memcached binary protocol
// as seen from the server side. It contains no connection handling and no
// business logic, only the layout, framing and encoding rules.
//
// The package focuses on:
//   - The fixed 24 byte request and response headers (network byte order)
//   - Immutable registries for opcodes, response statuses and data types
//   - Exact-count reads from a stream with partial read buffering
//   - Decoding of request frames and encoding of response frames
//
// Key Components:
//
//   - RequestHeader / ResponseHeader: the two header layouts. They only differ in
//     the magic byte and in the 16 bit slot at offset 6 (reserved vs. status).
//
//   - Opcode / Status: typed protocol integers with String() for diagnostics.
//     Opcode.IsQuiet() reports the "Q" variants whose replies are buffered.
//
//   - FrameReader: ReadExact(n) returns exactly n bytes and keeps any surplus for
//     the next call. A closed stream surfaces as ErrConnectionClosed, a transient
//     empty read is retried.
//
//   - DecodeRequest / EncodeResponse: the server side codec. The body of a frame
//     is always extra, key, value in this order.
//
//   - EncodeRequest / DecodeResponse: the client side codec, used by the CLI and tests.
//
// Error Handling:
//
//	*ProtocolError (bad magic, malformed lengths, oversized frames) and
//	*ConnectionError (closed or broken transport) are both fatal to a
//	connection. Use ShouldCloseConnection and IsConnectionClosed to classify.
//
// Frame layout:
//
//	| header (24) | extra (extlen) | key (keylen) | value (bodylen - extlen - keylen) |
package protocol
