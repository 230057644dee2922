package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/mcbs/proto/common"
	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/ValentinKolb/mcbs/proto/transport"
	"github.com/jackc/puddle/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// pause after a failed Accept before trying again
const acceptBackoff = 10 * time.Millisecond

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// UpgradeConnection applies socket options to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerTransportConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// connSlot is one unit of the connection limit. The frame reader (and its
// buffer) is reused by the next connection that gets the slot.
type connSlot struct {
	reader *protocol.FrameReader
}

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector  IServerConnector
	handler    transport.ConnHandleFunc
	bufferSize int

	mu       sync.Mutex // guards listener, slots, closed and wg.Add
	listener net.Listener
	slots    *puddle.Pool[*connSlot]
	closed   bool
	wg       sync.WaitGroup

	conns    *xsync.MapOf[uint64, net.Conn]
	nextID   atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport. bufferSize is
// the initial read buffer size of every connection slot.
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IServerTransport {
	if bufferSize <= 0 {
		bufferSize = protocol.DefaultReadBufferSize
	}
	return &serverTransport{
		connector:  connector,
		bufferSize: bufferSize,
		conns:      xsync.NewMapOf[uint64, net.Conn](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ConnHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) GetName() string {
	return t.connector.GetName()
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	return t.Serve(listener, config)
}

func (t *serverTransport) Serve(listener net.Listener, config common.ServerConfig) error {
	if t.handler == nil {
		_ = listener.Close()
		return errors.New("no connection handler registered")
	}

	maxConns := config.MaxConnections
	if maxConns <= 0 {
		maxConns = common.DefaultMaxConnections
	}

	slots, err := puddle.NewPool(&puddle.Config[*connSlot]{
		Constructor: func(context.Context) (*connSlot, error) {
			return &connSlot{reader: protocol.NewFrameReader(nil, make([]byte, t.bufferSize))}, nil
		},
		Destructor: func(*connSlot) {},
		MaxSize:    int32(maxConns),
	})
	if err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		slots.Close()
		_ = listener.Close()
		return net.ErrClosed
	}
	t.listener = listener
	t.slots = slots
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s with at most %d connections",
		t.connector.GetName(), listener.Addr(), maxConns)

	timeout := config.Timeout()

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.isClosed() || errors.Is(err, net.ErrClosed) {
				Logger.Infof("Stopped accepting connections on %s", listener.Addr())
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			time.Sleep(acceptBackoff)
			continue
		}
		t.accepted.Add(1)

		// only this loop acquires slots, so the check cannot race with another acquire
		if slots.Stat().AcquiredResources() >= int32(maxConns) {
			t.rejected.Add(1)
			Logger.Warningf("Rejecting connection from %s: limit of %d connections reached", conn.RemoteAddr(), maxConns)
			_ = conn.Close()
			continue
		}

		res, err := slots.Acquire(context.Background())
		if err != nil {
			// pool closed by Close
			_ = conn.Close()
			return nil
		}

		if err := t.connector.UpgradeConnection(conn, config.Transport); err != nil {
			Logger.Warningf("Failed to apply socket options to %s: %v", conn.RemoteAddr(), err)
		}

		if !t.track(conn, res, timeout) {
			return nil
		}
	}
}

func (t *serverTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	listener, slots := t.listener, t.slots
	t.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	// unblock all handlers waiting for input
	t.conns.Range(func(_ uint64, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})
	t.wg.Wait()

	if slots != nil {
		slots.Close()
	}
	return err
}

func (t *serverTransport) Stats() transport.Stats {
	stats := transport.Stats{
		Accepted: t.accepted.Load(),
		Rejected: t.rejected.Load(),
	}
	t.mu.Lock()
	slots := t.slots
	t.mu.Unlock()
	if slots != nil {
		stats.Active = int64(slots.Stat().AcquiredResources())
	}
	return stats
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *serverTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// track registers the connection and starts its handler goroutine. It
// returns false if the transport was closed in the meantime.
func (t *serverTransport) track(conn net.Conn, res *puddle.Resource[*connSlot], timeout time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		_ = conn.Close()
		res.Release()
		return false
	}

	id := t.nextID.Add(1)
	t.conns.Store(id, conn)
	t.wg.Add(1)
	go t.handleConnection(id, WithDeadlines(conn, timeout), res)
	return true
}

// handleConnection runs the handler for one connection and releases its slot afterwards
func (t *serverTransport) handleConnection(id uint64, conn net.Conn, res *puddle.Resource[*connSlot]) {
	defer t.wg.Done()
	defer res.Release()
	defer t.conns.Delete(id)
	defer conn.Close()

	reader := res.Value().reader
	reader.Reset(conn)
	defer reader.Reset(nil)

	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("Handler for %s panicked: %v", conn.RemoteAddr(), r)
		}
	}()

	t.handler(conn, reader)
}
