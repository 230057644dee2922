// Package base provides the socket independent part of the stream transports.
// The tcp and unix packages extend it with protocol-specific connectors.
//
// The package focuses on:
//   - The accept loop with one goroutine per connection
//   - Enforcing the connection limit of the server
//   - Reusing read buffers between connections
//   - Per-call read and write deadlines
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific
//     operations (listen, dial, socket options).
//
//   - serverTransport: Accepts connections and runs the registered
//     transport.ConnHandleFunc for each of them. Connection slots come from a
//     puddle pool sized MaxConnections. A slot owns a protocol.FrameReader
//     that is reset onto every new connection, so its buffer survives the
//     connection. Connections above the limit are closed right after accept.
//     Close stops the accept loop, closes every open connection and waits for
//     all handlers to return.
//
//   - clientTransport: Dials a single connection and applies the socket
//     options of the connector.
//
//   - WithDeadlines: net.Conn wrapper that sets a new deadline before every
//     Read and Write, so the timeout applies per call and not per connection.
//
// Thread Safety:
//
//	All exported methods of the transports are safe for concurrent use. The
//	handler of a connection runs in the goroutine that owns the connection.
package base
