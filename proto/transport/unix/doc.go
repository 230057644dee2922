// Package unix implements the Unix domain socket transport of the memcached
// server and client, for clients running on the same machine.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners. An existing socket file
//     at the endpoint path is removed first.
//
// The default read buffer size is 64 KB.
package unix
