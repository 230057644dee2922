// Package cmd implements the command-line interface of mcbs. It provides a
// hierarchical command structure for running the server and for inspecting a
// running server as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the memcached server
//   - stats: Prints the STAT output of a server
//   - ping: Measures NOOP round trip times
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See mcbs -help for a list of all commands.
package cmd
