package transport

import (
	"net"

	"github.com/ValentinKolb/mcbs/proto/common"
	"github.com/ValentinKolb/mcbs/proto/protocol"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ConnHandleFunc serves one accepted connection until it should be closed.
// The transport closes conn after the function returns. reader is a pooled
// frame reader that may be used to read from conn; it must not be retained.
type ConnHandleFunc func(conn net.Conn, reader *protocol.FrameReader)

// Stats holds the connection counters of a server transport
type Stats struct {
	Active   int64  // connections currently being served
	Accepted uint64 // connections accepted since start
	Rejected uint64 // connections closed because MaxConnections was reached
}

// IServerTransport is the interface for the server side of a stream transport
type IServerTransport interface {
	// RegisterHandler registers the function that serves every accepted connection
	RegisterHandler(handler ConnHandleFunc)
	// Listen creates a listener for config.Endpoint and serves it until Close is called
	Listen(config common.ServerConfig) error
	// Serve accepts connections from an existing listener until Close is called
	Serve(listener net.Listener, config common.ServerConfig) error
	// Close stops accepting, closes all open connections and waits for their handlers
	Close() error
	// Stats returns the current connection counters
	Stats() Stats
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientTransport is the interface for the client side of a stream transport
type IClientTransport interface {
	// Connect opens a connection to config.Endpoint. If config.TimeoutSecond
	// is set every read and write on the connection gets that deadline.
	Connect(config common.ClientConfig) (net.Conn, error)
}
