package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ValentinKolb/mcbs/proto/common"
	"github.com/ValentinKolb/mcbs/proto/dispatch"
	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/ValentinKolb/mcbs/proto/session"
	"github.com/ValentinKolb/mcbs/proto/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("server")

// SessionInfo describes a live session
type SessionInfo struct {
	ID      uint64
	Name    string
	Started time.Time
}

// Option configures a Server
type Option func(*Server)

// WithHandler builds the dispatch table from a handler object instead of the default stub
// (see dispatch.NewTable)
func WithHandler(h any) Option {
	return func(s *Server) { s.table = dispatch.NewTable(h) }
}

// WithTable uses an explicit dispatch table
func WithTable(table dispatch.Table) Option {
	return func(s *Server) { s.table = table }
}

// Server accepts client connections on a transport and runs one session per connection
type Server struct {
	config    common.ServerConfig
	transport transport.IServerTransport
	table     dispatch.Table
	metrics   *Metrics
	sessions  *xsync.MapOf[uint64, SessionInfo]
	nextID    atomic.Uint64

	mu         sync.Mutex
	metricsSrv *metricsServer
}

// NewServer creates a new memcached server
//
// Usage:
//
//	s := server.NewServer(
//		config,
//		tcp.NewTCPServerTransport(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewServer(config common.ServerConfig, transport transport.IServerTransport, opts ...Option) *Server {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &Server{
		config:    config,
		transport: transport,
		sessions:  xsync.NewMapOf[uint64, SessionInfo](),
	}
	s.metrics = NewMetrics(func() float64 { return float64(s.sessions.Size()) })
	for _, opt := range opts {
		opt(s)
	}
	if s.table == nil {
		s.table = dispatch.NewTable(dispatch.NewStub(config.Version, s.statPairs))
	}

	s.transport.RegisterHandler(s.handleConn)
	return s
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Serve starts the metrics endpoint (if configured) and serves the transport
// until Shutdown is called.
func (s *Server) Serve() error {
	if err := s.start(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// ServeListener is like Serve but accepts connections from an existing listener
func (s *Server) ServeListener(listener net.Listener) error {
	if err := s.start(); err != nil {
		_ = listener.Close()
		return err
	}
	return s.transport.Serve(listener, s.config)
}

// Shutdown stops accepting connections, closes all live sessions and stops the metrics endpoint
func (s *Server) Shutdown(ctx context.Context) error {
	if n := s.sessions.Size(); n > 0 {
		Logger.Infof("Closing %d open sessions", n)
	}
	err := s.transport.Close()

	s.mu.Lock()
	ms := s.metricsSrv
	s.metricsSrv = nil
	s.mu.Unlock()
	if ms != nil {
		err = errors.Join(err, ms.shutdown(ctx))
	}

	Logger.Infof("Server stopped after %d requests", s.metrics.Requests())
	return err
}

// start validates the config and starts the metrics endpoint
func (s *Server) start() error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	Logger.Infof("Created memcached server (%d opcodes registered, %s transport)", len(s.table), s.transport.GetName())
	Logger.Infof("%s", s.config.String())

	if s.config.MetricsEndpoint == "" {
		return nil
	}
	ms, err := startMetricsServer(s.config.MetricsEndpoint, s.metrics.Handler(), s.config.LogLevel == "debug")
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.metricsSrv = ms
	s.mu.Unlock()
	return nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Metrics returns the process metrics of the server
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// MetricsAddr returns the address of the metrics endpoint or nil if it is not running
func (s *Server) MetricsAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metricsSrv == nil {
		return nil
	}
	return s.metricsSrv.Addr()
}

// Sessions returns the live sessions ordered by ID
func (s *Server) Sessions() []SessionInfo {
	out := make([]SessionInfo, 0, s.sessions.Size())
	s.sessions.Range(func(_ uint64, info SessionInfo) bool {
		out = append(out, info)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConn runs one session on an accepted connection (transport.ConnHandleFunc)
func (s *Server) handleConn(conn net.Conn, reader *protocol.FrameReader) {
	id := s.nextID.Add(1)
	name := sessionName(id, conn)

	s.sessions.Store(id, SessionInfo{ID: id, Name: name, Started: time.Now()})
	defer s.sessions.Delete(id)
	s.metrics.sessionStarted()

	sess := session.New(conn, s.table,
		session.WithName(name),
		session.WithReader(reader),
		session.WithMaxBodyLength(s.config.MaxBodyLength),
		session.WithLogInterval(s.config.StatsInterval()),
		session.WithObserver(s.metrics),
	)

	snap, err := sess.Serve()
	s.metrics.sessionEnded(snap, err)

	switch {
	case err == nil:
		// QUIT, the session logged it
	case protocol.IsConnectionClosed(err):
		Logger.Infof("%s: DISCONNECT: %s", name, snap)
	default:
		Logger.Errorf("%s: DISCONNECT: %v: %s", name, err, snap)
	}
}

// statPairs reports the server wide stats of STAT
func (s *Server) statPairs() []protocol.StatPair {
	ts := s.transport.Stats()
	return []protocol.StatPair{
		{Key: "curr_connections", Value: strconv.Itoa(s.sessions.Size())},
		{Key: "total_connections", Value: strconv.FormatUint(ts.Accepted, 10)},
		{Key: "rejected_connections", Value: strconv.FormatUint(ts.Rejected, 10)},
		{Key: "max_connections", Value: strconv.Itoa(s.config.MaxConnections)},
		{Key: "cmd_total", Value: strconv.FormatUint(s.metrics.Requests(), 10)},
		{Key: "bytes_read", Value: strconv.FormatUint(s.metrics.BytesRead(), 10)},
		{Key: "bytes_written", Value: strconv.FormatUint(s.metrics.BytesWritten(), 10)},
	}
}

// sessionName names a session after its peer, unix socket peers have no address
func sessionName(id uint64, conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil && addr.String() != "" && addr.String() != "@" && addr.String() != "<nil>" {
		return addr.String()
	}
	return "conn-" + strconv.FormatUint(id, 10)
}
