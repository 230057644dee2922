package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/ValentinKolb/mcbs/proto/session"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var MetricsLogger = logger.GetLogger("metrics")

// --------------------------------------------------------------------------
// Process Metrics
// --------------------------------------------------------------------------

// Metrics holds the process wide counters of the server. All methods are
// safe for concurrent use; it is shared by all sessions as their Observer.
type Metrics struct {
	set             *metrics.Set
	requests        [256]*metrics.Counter // known opcodes only
	unknownRequests *metrics.Counter
	bytesRead       *metrics.Counter
	bytesWritten    *metrics.Counter
	flushes         *metrics.Counter
	sessions        *metrics.Counter
	disconnects     *metrics.Counter
	failures        *metrics.Counter
	duration        *metrics.Histogram
}

var _ session.Observer = (*Metrics)(nil)

// NewMetrics creates the metric set. currConns reports the number of live sessions.
func NewMetrics(currConns func() float64) *Metrics {
	set := metrics.NewSet()
	m := &Metrics{
		set:             set,
		unknownRequests: set.NewCounter(`mcbs_requests_total{opcode="unknown"}`),
		bytesRead:       set.NewCounter("mcbs_read_bytes_total"),
		bytesWritten:    set.NewCounter("mcbs_written_bytes_total"),
		flushes:         set.NewCounter("mcbs_flushes_total"),
		sessions:        set.NewCounter("mcbs_sessions_total"),
		disconnects:     set.NewCounter(`mcbs_sessions_closed_total{reason="disconnect"}`),
		failures:        set.NewCounter(`mcbs_sessions_closed_total{reason="error"}`),
		duration:        set.NewHistogram("mcbs_session_duration_seconds"),
	}
	for _, op := range protocol.Opcodes() {
		m.requests[op] = set.NewCounter(fmt.Sprintf(`mcbs_requests_total{opcode=%q}`, op.String()))
	}
	set.NewGauge("mcbs_curr_connections", currConns)
	return m
}

// OnRequest counts one request of n bytes (implements session.Observer)
func (m *Metrics) OnRequest(op protocol.Opcode, n int) {
	m.bytesRead.Add(n)
	if c := m.requests[op]; c != nil {
		c.Inc()
		return
	}
	m.unknownRequests.Inc()
}

// OnFlush counts one write to a client (implements session.Observer)
func (m *Metrics) OnFlush(n int) {
	m.flushes.Inc()
	m.bytesWritten.Add(n)
}

// sessionStarted counts a new session
func (m *Metrics) sessionStarted() {
	m.sessions.Inc()
}

// sessionEnded records the final stats of a session. err is the result of session.Serve.
func (m *Metrics) sessionEnded(snap session.StatsSnapshot, err error) {
	m.duration.Update(snap.Duration().Seconds())
	if err != nil && !protocol.IsConnectionClosed(err) {
		m.failures.Inc()
		return
	}
	m.disconnects.Inc()
}

// Requests returns the number of requests served so far
func (m *Metrics) Requests() uint64 {
	total := m.unknownRequests.Get()
	for _, c := range m.requests {
		if c != nil {
			total += c.Get()
		}
	}
	return total
}

// BytesRead returns the number of request bytes read so far
func (m *Metrics) BytesRead() uint64 {
	return m.bytesRead.Get()
}

// BytesWritten returns the number of response bytes written so far
func (m *Metrics) BytesWritten() uint64 {
	return m.bytesWritten.Get()
}

// Handler returns the http handler serving the metrics in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m.set.WritePrometheus(w)
		metrics.WriteProcessMetrics(w)
	})
}

// --------------------------------------------------------------------------
// Metrics Endpoint
// --------------------------------------------------------------------------

// metricsServer serves /metrics over http
type metricsServer struct {
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// startMetricsServer listens on endpoint and serves handler at /metrics in the background
func startMetricsServer(endpoint string, handler http.Handler, debug bool) (*metricsServer, error) {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on metrics endpoint: %w", err)
	}

	mux := http.NewServeMux()
	if debug {
		mux.Handle("GET /metrics", loggerMiddleware(handler))
	} else {
		mux.Handle("GET /metrics", handler)
	}

	ms := &metricsServer{
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		listener: listener,
		done:     make(chan struct{}),
	}

	MetricsLogger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
	go func() {
		defer close(ms.done)
		if err := ms.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			MetricsLogger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()
	return ms, nil
}

// Addr returns the address the endpoint listens on
func (ms *metricsServer) Addr() net.Addr {
	return ms.listener.Addr()
}

// shutdown stops the endpoint and waits for it to exit
func (ms *metricsServer) shutdown(ctx context.Context) error {
	err := ms.srv.Shutdown(ctx)
	<-ms.done
	return err
}

// --------------------------------------------------------------------------
// Middleware (logging)
// --------------------------------------------------------------------------

// responseWriter is a custom ResponseWriter that captures status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggerMiddleware is a middleware that logs HTTP requests
func loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		MetricsLogger.Debugf("%s %s => %d took %s", r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
