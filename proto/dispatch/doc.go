// Package dispatch routes decoded requests to handlers by opcode.
//
// A Table is a plain map from opcode to HandlerFunc. It is either built from a
// handler object with NewTable, which checks the object against a static list
// of capability interfaces (IGetHandler, IStatHandler, ...), or assembled
// explicitly with Register. Opcodes missing from the table are answered with
// UNKNOWN_COMMAND and the connection stays open.
//
// Stub is the default handler object. It has no storage and answers every
// lookup with KEY_ENOENT, which is enough for clients that probe a server with
// get_multi and disconnect. Real storage backends replace it by implementing
// the capability interfaces or by registering handlers on a table.
//
// Backend errors must never terminate a session. Guard wraps a
// FallibleHandlerFunc in a circuit breaker and converts its errors into
// response statuses (see StatusError).
package dispatch
