// Package session runs the request loop of a single client connection.
//
// The package focuses on:
//   - Decoding requests from the connection with a protocol.FrameReader
//   - Dispatching every request through a dispatch.Table
//   - Honouring the quiet flag of the binary protocol
//   - Tracking per-connection statistics
//
// Key Components:
//
//   - Session: Owns the input buffer, the output buffer and the stats of one
//     connection. Serve loops until the client sends QUIT/QUITQ or a fatal
//     error occurs. Replies are appended to the output buffer in request
//     order; the buffer is written with a single Write whenever a non-quiet
//     request was handled. Replies of quiet requests that are still pending
//     when the session ends are dropped.
//
//   - Stats / StatsSnapshot: Per-opcode request counts, bytes read and sent,
//     flush count and connection time. The session logs a snapshot on
//     connect, on quit and periodically when WithLogInterval is set.
//
//   - Observer: Optional hook that is notified about every request and every
//     flush. The server uses it to feed process wide metrics.
//
// A Session is not safe for concurrent use. The transport runs each session
// in its own goroutine.
package session
