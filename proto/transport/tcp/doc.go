// Package tcp implements the TCP socket transport of the memcached server
// and client. It provides concrete implementations of the base package's
// connector interfaces.
//
// Key Components:
//
//   - clientConnector: Dials TCP connections with Nagle's algorithm disabled
//
//   - serverConnector: Creates the listener and applies the socket options of
//     common.ServerTransportConfig to every accepted connection (no delay,
//     keep-alive period, linger, socket buffer sizes)
//
// The default read buffer of a connection slot is 16 KB. It grows on demand
// when a single frame needs more.
package tcp
