// Package common provides configuration structures and the logging setup
// shared by the server, the client and the command line tools.
//
// The package focuses on:
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - ServerConfig: Listen endpoint, connection limits, frame size limit,
//     socket tuning (ServerTransportConfig) and observability settings. Validate
//     reports every invalid field at once, String renders the config for the
//     startup log.
//
//   - ClientConfig: Endpoint and I/O timeout of a client connection.
//
//   - Logger: CreateLogger is a logger.Factory that formats every line as
//     "LEVEL | package | message". InitLoggers installs it and sets the level
//     of all package loggers of this module.
package common
