package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/ValentinKolb/mcbs/proto/client"
	"github.com/ValentinKolb/mcbs/proto/common"
	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/ValentinKolb/mcbs/proto/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

// startServer runs a server on a random loopback port
func startServer(t *testing.T, config common.ServerConfig) (*Server, string) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(config, tcp.NewTCPServerTransport())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(listener) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
		assert.NoError(t, <-done)
	})
	return s, listener.Addr().String()
}

func connect(t *testing.T, addr string) *client.Client {
	t.Helper()
	c, err := client.Connect(common.ClientConfig{Endpoint: addr, TimeoutSecond: 5}, tcp.NewTCPClientTransport())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func statMap(t *testing.T, c *client.Client) map[string]string {
	t.Helper()
	pairs, err := c.Stats("")
	require.NoError(t, err)
	out := map[string]string{}
	for _, p := range pairs {
		out[p.Key] = p.Value
	}
	return out
}

func testConfig() common.ServerConfig {
	config := common.DefaultServerConfig()
	config.Endpoint = "127.0.0.1:0"
	config.Version = "1.0.0-test"
	return config
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestServerAnswersProbe(t *testing.T) {
	_, addr := startServer(t, testConfig())
	c := connect(t, addr)

	values, err := c.GetMulti([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = c.Get("a")
	assert.True(t, client.IsNotFound(err))

	version, err := c.Version()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-test", version)
}

func TestServerStats(t *testing.T) {
	s, addr := startServer(t, testConfig())
	first := connect(t, addr)
	second := connect(t, addr)
	require.NoError(t, second.Noop())

	stats := statMap(t, first)
	assert.Equal(t, "2", stats["curr_connections"])
	assert.Equal(t, "2", stats["total_connections"])
	assert.Equal(t, "0", stats["rejected_connections"])
	assert.Equal(t, "1.0.0-test", stats["version"])
	assert.Equal(t, strconv.Itoa(common.DefaultMaxConnections), stats["max_connections"])

	require.NoError(t, second.Quit())
	require.Eventually(t, func() bool { return len(s.Sessions()) == 1 }, 5*time.Second, 10*time.Millisecond)

	stats = statMap(t, first)
	assert.Equal(t, "1", stats["curr_connections"])
	cmds, err := strconv.Atoi(stats["cmd_total"])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cmds, 4)
}

func TestServerClosesOnProtocolError(t *testing.T) {
	s, addr := startServer(t, testConfig())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	bad := protocol.EncodeRequest(protocol.RequestHeader{Opcode: protocol.OpNoop}, nil, nil, nil)
	bad[0] = 0x00
	_, err = conn.Write(bad)
	require.NoError(t, err)

	// no reply, the server closes the connection
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := conn.Read(make([]byte, protocol.HeaderLength))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)

	require.Eventually(t, func() bool { return len(s.Sessions()) == 0 }, 5*time.Second, 10*time.Millisecond)

	// other clients are not affected
	c := connect(t, addr)
	assert.NoError(t, c.Noop())
}

func TestServerRejectsLargeFrames(t *testing.T) {
	config := testConfig()
	config.MaxBodyLength = 16
	_, addr := startServer(t, config)
	c := connect(t, addr)

	_, err := c.Do(client.Request{Opcode: protocol.OpSet, Key: []byte("k"), Value: make([]byte, 64)})
	require.Error(t, err)
	assert.True(t, protocol.IsConnectionClosed(err))
}

func TestShutdownClosesSessions(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(testConfig(), tcp.NewTCPServerTransport())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(listener) }()

	c := connect(t, listener.Addr().String())
	require.NoError(t, c.Noop())
	require.Len(t, s.Sessions(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-done)

	assert.Empty(t, s.Sessions())
	assert.Error(t, c.Noop())
}

func TestInvalidConfig(t *testing.T) {
	config := testConfig()
	config.MaxConnections = -1

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := NewServer(config, tcp.NewTCPServerTransport())
	assert.Error(t, s.ServeListener(listener))
}

func TestMetricsEndpoint(t *testing.T) {
	config := testConfig()
	config.MetricsEndpoint = "127.0.0.1:0"
	s, addr := startServer(t, config)

	c := connect(t, addr)
	require.NoError(t, c.Noop())
	_, _ = c.Get("x")

	require.Eventually(t, func() bool { return s.MetricsAddr() != nil }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.MetricsAddr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mcbs_requests_total{opcode="NOOP"} 1`)
	assert.Contains(t, string(body), `mcbs_requests_total{opcode="GET"} 1`)
	assert.Contains(t, string(body), "mcbs_curr_connections 1")
	assert.Contains(t, string(body), "mcbs_written_bytes_total 48")
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics(func() float64 { return 0 })

	m.OnRequest(protocol.OpGet, 24)
	m.OnRequest(protocol.OpGetQ, 27)
	m.OnRequest(protocol.Opcode(0xff), 24)
	m.OnFlush(72)

	assert.Equal(t, uint64(3), m.Requests())
	assert.Equal(t, uint64(75), m.BytesRead())
	assert.Equal(t, uint64(72), m.BytesWritten())
	assert.Equal(t, uint64(1), m.unknownRequests.Get())
}

func TestSessionName(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	assert.Equal(t, "pipe", sessionName(7, a))

	unixConn := &net.UnixConn{}
	assert.Equal(t, "conn-7", sessionName(7, unixConn))
}
