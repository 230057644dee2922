// Package transport defines the interfaces of the stream transports that
// carry the memcached binary protocol. It provides a common contract for all
// transport implementations, so the server does not depend on the socket type.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Handing every accepted connection to a single handler function
//   - Enabling multiple transport implementations (TCP, Unix sockets)
//
// Key Components:
//
//   - IServerTransport: Interface for server-side transports. Accepts
//     connections, enforces the connection limit and runs the registered
//     handler for every connection in its own goroutine.
//
//   - IClientTransport: Interface for client-side transports that open a
//     single connection to a server.
//
//   - ConnHandleFunc: Function type for connection handling callbacks.
package transport
