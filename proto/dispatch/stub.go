package dispatch

import (
	"os"
	"strconv"
	"time"

	"github.com/ValentinKolb/mcbs/proto/protocol"
)

// StatsSource supplies additional STAT pairs, e.g. connection counters of the server
type StatsSource func() []protocol.StatPair

// Stub is the default handler object. It has no backing store: every
// lookup misses. It implements the GET, GETK, NOOP, QUIT, VERSION and STAT
// capabilities; everything else is unknown to a table built from it.
//
// Embed a Stub in your own handler type to keep these defaults and add or
// override capabilities.
type Stub struct {
	version   string
	startedAt time.Time
	source    StatsSource
	now       func() time.Time
}

// NewStub creates a stub that reports version and the pairs of source (may be nil)
func NewStub(version string, source StatsSource) *Stub {
	return &Stub{
		version:   version,
		startedAt: time.Now(),
		source:    source,
		now:       time.Now,
	}
}

// --------------------------------------------------------------------------
// Capability Methods (docu see the I*Handler interfaces)
// --------------------------------------------------------------------------

// HandleGet answers GET and GETQ with KEY_ENOENT
func (s *Stub) HandleGet(req *protocol.Message) []byte {
	return protocol.EncodeResponse(req, protocol.WithStatus(protocol.StatusKeyNotFound))
}

// HandleGetK answers GETK and GETKQ with KEY_ENOENT and echoes the key
func (s *Stub) HandleGetK(req *protocol.Message) []byte {
	return protocol.EncodeResponse(req,
		protocol.WithStatus(protocol.StatusKeyNotFound),
		protocol.WithKey(req.Key))
}

func (s *Stub) HandleNoop(req *protocol.Message) []byte {
	return protocol.EncodeResponse(req)
}

func (s *Stub) HandleQuit(req *protocol.Message) []byte {
	return protocol.EncodeResponse(req)
}

func (s *Stub) HandleVersion(req *protocol.Message) []byte {
	return protocol.EncodeResponse(req, protocol.WithValue([]byte(s.version)))
}

// HandleStat answers STAT with an empty key with one packet per stat and a
// terminating empty packet. Named statistics are not supported: a non-empty
// key is answered with KEY_ENOENT.
func (s *Stub) HandleStat(req *protocol.Message) []byte {
	if len(req.Key) > 0 {
		Logger.Warningf("STAT %q is not supported", req.Key)
		return protocol.EncodeResponse(req,
			protocol.WithStatus(protocol.StatusKeyNotFound),
			protocol.WithKey(req.Key))
	}
	return protocol.EncodeStats(req, s.Stats())
}

// Stats returns the pairs reported by HandleStat
func (s *Stub) Stats() []protocol.StatPair {
	now := s.now()
	pairs := []protocol.StatPair{
		{Key: "pid", Value: strconv.Itoa(os.Getpid())},
		{Key: "time", Value: strconv.FormatInt(now.Unix(), 10)},
		{Key: "uptime", Value: strconv.FormatInt(int64(now.Sub(s.startedAt)/time.Second), 10)},
		{Key: "version", Value: s.version},
	}
	if s.source != nil {
		pairs = append(pairs, s.source()...)
	}
	return pairs
}
