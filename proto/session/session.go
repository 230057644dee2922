package session

import (
	"errors"
	"io"
	"time"

	"github.com/ValentinKolb/mcbs/proto/dispatch"
	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("session")

// ErrTerminated is returned by Serve when called on a session that already ended
var ErrTerminated = errors.New("session terminated")

const (
	// output buffers above this size are not kept between flushes
	maxRetainedOutput = 1024 * 1024
)

// Observer receives events of a running session. Implementations are called
// from the session's goroutine and must not block.
type Observer interface {
	// OnRequest is called for every decoded request of n bytes before its handler runs
	OnRequest(op protocol.Opcode, n int)
	// OnFlush is called after n bytes were written to the transport
	OnFlush(n int)
}

// Session serves one connection: it decodes requests, dispatches them,
// buffers the replies and flushes the buffer for every non-quiet request.
type Session struct {
	conn        io.ReadWriter
	reader      *protocol.FrameReader
	out         []byte
	table       dispatch.Table
	stats       *Stats
	name        string
	maxBody     uint32
	logInterval time.Duration
	lastLog     time.Time
	observer    Observer
	terminated  bool
	now         func() time.Time
}

// Option configures a Session
type Option func(*Session)

// WithName sets the name used in log lines, e.g. the peer address
func WithName(name string) Option {
	return func(s *Session) { s.name = name }
}

// WithReadBuffer lets the session read through the given buffer instead of allocating one
func WithReadBuffer(buf []byte) Option {
	return func(s *Session) { s.reader = protocol.NewFrameReader(s.conn, buf) }
}

// WithReader lets the session use an existing reader. The reader is reset onto the connection.
func WithReader(r *protocol.FrameReader) Option {
	return func(s *Session) {
		r.Reset(s.conn)
		s.reader = r
	}
}

// WithMaxBodyLength limits the body length of accepted frames (0 = unlimited)
func WithMaxBodyLength(n uint32) Option {
	return func(s *Session) { s.maxBody = n }
}

// WithLogInterval enables periodic STATUS log lines (0 = disabled)
func WithLogInterval(d time.Duration) Option {
	return func(s *Session) { s.logInterval = d }
}

// WithObserver registers an observer for requests and flushes
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// New creates a session on conn. The table must not be modified while the
// session is serving.
func New(conn io.ReadWriter, table dispatch.Table, opts ...Option) *Session {
	s := &Session{
		conn:    conn,
		table:   table,
		name:    "session",
		maxBody: protocol.DefaultMaxBodyLength,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reader == nil {
		s.reader = protocol.NewFrameReader(conn, nil)
	}
	s.stats = newStats(s.now())
	s.lastLog = s.stats.started
	return s
}

// --------------------------------------------------------------------------
// Serve Loop
// --------------------------------------------------------------------------

// Serve runs the session until the client sends QUIT/QUITQ or a fatal error
// occurs. It returns the final stats in both cases.
//
// The returned error is nil after QUIT/QUITQ. Otherwise it is a
// *protocol.ProtocolError (invalid frame) or a *protocol.ConnectionError
// (use protocol.IsConnectionClosed to detect a normal disconnect). No
// response is written for the failed frame.
func (s *Session) Serve() (StatsSnapshot, error) {
	if s.terminated {
		return s.stats.Snapshot(), ErrTerminated
	}
	s.stats.startMeter()
	defer s.stats.stopMeter()
	s.logStats("CONNECT")

	read := s.reader.BytesRead()
	for {
		req, err := protocol.DecodeRequestLimit(s.reader, s.maxBody)
		if err != nil {
			return s.terminate(err)
		}
		op := req.Opcode()
		n := int(s.reader.BytesRead() - read)
		read = s.reader.BytesRead()
		Logger.Debugf("%s: request %s", s.name, req)

		s.stats.recordRequest(op, n)
		if s.observer != nil {
			s.observer.OnRequest(op, n)
		}

		if resp := s.table.Dispatch(req); len(resp) > 0 {
			s.out = append(s.out, resp...)
		}

		// quiet replies stay buffered until the next non-quiet request
		if !op.IsQuiet() {
			if err := s.flush(); err != nil {
				return s.terminate(err)
			}
		}

		if op.IsQuit() {
			s.logStats(op.String())
			return s.terminate(nil)
		}

		if s.logInterval > 0 && s.now().Sub(s.lastLog) >= s.logInterval {
			s.logStats("STATUS")
		}
	}
}

// flush writes the whole output buffer in one call and clears it
func (s *Session) flush() error {
	if len(s.out) == 0 {
		return nil
	}
	n, err := s.conn.Write(s.out)
	if err == nil && n != len(s.out) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return protocol.WrapIOError("write", err)
	}
	Logger.Debugf("%s: bytes sent: %d", s.name, n)

	s.stats.recordFlush(n)
	if s.observer != nil {
		s.observer.OnFlush(n)
	}

	if cap(s.out) > maxRetainedOutput {
		s.out = nil
	} else {
		s.out = s.out[:0]
	}
	return nil
}

// terminate ends the session. Pending quiet replies are discarded.
func (s *Session) terminate(err error) (StatsSnapshot, error) {
	s.terminated = true
	s.out = nil
	s.stats.finish(s.now())
	return s.stats.Snapshot(), err
}

// logStats writes one INFO line with the current stats
func (s *Session) logStats(prefix string) {
	s.lastLog = s.now()
	Logger.Infof("%s: %s: %s", s.name, prefix, s.stats.Snapshot())
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Name returns the name used in log lines
func (s *Session) Name() string {
	return s.name
}

// Terminated reports whether Serve has returned
func (s *Session) Terminated() bool {
	return s.terminated
}

// Stats returns a snapshot of the session's counters
func (s *Session) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Pending returns the number of buffered reply bytes not yet flushed
func (s *Session) Pending() int {
	return len(s.out)
}
