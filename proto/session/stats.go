package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ValentinKolb/mcbs/proto/protocol"
	gometrics "github.com/rcrowley/go-metrics"
)

// Stats accumulates the counters of one session. It is owned by the session
// and must not be shared; hand out snapshots instead.
type Stats struct {
	opcodes   [256]uint64
	ops       uint64
	bytesRead uint64
	bytesSent uint64
	flushes   uint64
	started   time.Time
	ended     time.Time
	meter     gometrics.Meter // ops rate, exponentially weighted; nil until the session serves
	metering  bool
}

func newStats(now time.Time) *Stats {
	return &Stats{started: now}
}

// startMeter registers the rate meter with the go-metrics arbiter. Every call
// must be paired with stopMeter.
func (s *Stats) startMeter() {
	if s.meter == nil {
		s.meter = gometrics.NewMeter()
	}
	s.metering = true
}

// stopMeter unregisters the rate meter. The last rate stays readable.
func (s *Stats) stopMeter() {
	if s.metering {
		s.meter.Stop()
		s.metering = false
	}
}

// recordRequest counts one decoded request of n bytes
func (s *Stats) recordRequest(op protocol.Opcode, n int) {
	s.opcodes[op]++
	s.ops++
	s.bytesRead += uint64(n)
	if s.meter != nil {
		s.meter.Mark(1)
	}
}

// recordFlush counts one write of the output buffer
func (s *Stats) recordFlush(n int) {
	s.flushes++
	s.bytesSent += uint64(n)
}

// finish stamps the end time. Calling it twice is a no-op.
func (s *Stats) finish(now time.Time) {
	if s.ended.IsZero() {
		s.ended = now
	}
}

// Snapshot returns a copy of the current counters
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Opcodes:   make(map[protocol.Opcode]uint64),
		Ops:       s.ops,
		BytesRead: s.bytesRead,
		BytesSent: s.bytesSent,
		Flushes:   s.flushes,
		Started:   s.started,
		Ended:     s.ended,
	}
	if s.meter != nil {
		snap.Rate1 = s.meter.Rate1()
	}
	for op, n := range s.opcodes {
		if n > 0 {
			snap.Opcodes[protocol.Opcode(op)] = n
		}
	}
	return snap
}

// --------------------------------------------------------------------------
// Snapshot
// --------------------------------------------------------------------------

// StatsSnapshot is a point in time copy of a session's Stats
type StatsSnapshot struct {
	Opcodes   map[protocol.Opcode]uint64 // requests per opcode (only non-zero entries)
	Ops       uint64                     // total requests
	BytesRead uint64
	BytesSent uint64
	Flushes   uint64    // writes to the transport
	Started   time.Time // session start
	Ended     time.Time // zero while the session is active
	Rate1     float64   // one-minute moving average of ops/s
}

// Duration returns the connection time, up to now for active sessions
func (s StatsSnapshot) Duration() time.Duration {
	end := s.Ended
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.Started)
}

// OpsPerSecond returns the average request rate over the whole session
func (s StatsSnapshot) OpsPerSecond() float64 {
	secs := s.Duration().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Ops) / secs
}

// String formats the snapshot as a sorted, comma separated list, e.g.
// "GET: 3, bytes_read: 72, bytes_sent: 72, connection_time: 0:00:05, ..."
func (s StatsSnapshot) String() string {
	fields := []string{
		fmt.Sprintf("connection_time: %s", formatDuration(s.Duration())),
		fmt.Sprintf("ops/s: %.1f", s.OpsPerSecond()),
		fmt.Sprintf("ops/s (1m): %.1f", s.Rate1),
		fmt.Sprintf("ops: %d", s.Ops),
		fmt.Sprintf("bytes_read: %d", s.BytesRead),
		fmt.Sprintf("bytes_sent: %d", s.BytesSent),
		fmt.Sprintf("flushes: %d", s.Flushes),
	}
	for op, n := range s.Opcodes {
		fields = append(fields, fmt.Sprintf("%s: %d", op, n))
	}
	sort.Strings(fields)
	return strings.Join(fields, ", ")
}

// formatDuration renders d as h:mm:ss
func formatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
