package base

import (
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/ValentinKolb/mcbs/proto/common"
	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test Helpers
// --------------------------------------------------------------------------

// loopbackConnector listens on a random local tcp port
type loopbackConnector struct{}

func (c *loopbackConnector) GetName() string { return "loopback" }

func (c *loopbackConnector) Listen(common.ServerConfig) (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:0")
}

func (c *loopbackConnector) UpgradeConnection(net.Conn, common.ServerTransportConfig) error {
	return nil
}

func (c *loopbackConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("tcp", endpoint, timeout)
}

// dialer adapts loopbackConnector to IClientConnector
type dialer struct{ *loopbackConnector }

func (d dialer) UpgradeConnection(net.Conn) error { return nil }

// echoHandler echoes 4 byte frames until the connection is closed
func echoHandler(conn net.Conn, reader *protocol.FrameReader) {
	for {
		frame, err := reader.ReadExact(4)
		if err != nil {
			return
		}
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

// startServer serves a listener in the background and returns its address and the Serve result
func startServer(t *testing.T, config common.ServerConfig) (*serverTransport, string, <-chan error) {
	t.Helper()
	tr := NewBaseServerTransport(&loopbackConnector{}, 64).(*serverTransport)
	tr.RegisterHandler(echoHandler)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- tr.Serve(listener, config) }()
	t.Cleanup(func() { _ = tr.Close() })
	return tr, listener.Addr().String(), done
}

func roundTrip(t *testing.T, conn net.Conn, payload string) {
	t.Helper()
	_, err := conn.Write([]byte(payload))
	require.NoError(t, err)
	buf := make([]byte, len(payload))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, payload, string(buf))
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestServeRunsHandler(t *testing.T) {
	tr, addr, _ := startServer(t, common.DefaultServerConfig())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	roundTrip(t, conn, "ping")
	roundTrip(t, conn, "pong")

	assert.Equal(t, int64(1), tr.Stats().Active)
	assert.Equal(t, uint64(1), tr.Stats().Accepted)
}

func TestConnectionLimit(t *testing.T) {
	config := common.DefaultServerConfig()
	config.MaxConnections = 1
	tr, addr, _ := startServer(t, config)

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()
	roundTrip(t, first, "abcd")

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()

	// the server closes the second connection without serving it
	_ = second.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = second.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Equal(t, uint64(1), tr.Stats().Rejected)

	// the slot is reusable once the first client leaves
	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return tr.Stats().Active == 0 }, 5*time.Second, 10*time.Millisecond)

	third, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer third.Close()
	roundTrip(t, third, "efgh")
}

func TestCloseStopsServe(t *testing.T) {
	tr, addr, done := startServer(t, common.DefaultServerConfig())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	roundTrip(t, conn, "wait")

	require.NoError(t, tr.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Close")
	}

	// open connections were closed by the server
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Zero(t, tr.Stats().Active)

	assert.NoError(t, tr.Close(), "second Close is a no-op")
}

func TestServeAfterClose(t *testing.T) {
	tr := NewBaseServerTransport(&loopbackConnector{}, 0)
	tr.RegisterHandler(echoHandler)
	require.NoError(t, tr.Close())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Serve(listener, common.DefaultServerConfig()), net.ErrClosed)
}

func TestServeWithoutHandler(t *testing.T) {
	tr := NewBaseServerTransport(&loopbackConnector{}, 0)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Error(t, tr.Serve(listener, common.DefaultServerConfig()))
}

func TestHandlerPanicReleasesSlot(t *testing.T) {
	config := common.DefaultServerConfig()
	config.MaxConnections = 1
	tr := NewBaseServerTransport(&loopbackConnector{}, 0).(*serverTransport)
	tr.RegisterHandler(func(net.Conn, *protocol.FrameReader) { panic("boom") })

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = tr.Serve(listener, config) }()
	defer tr.Close()

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", listener.Addr().String())
		require.NoError(t, err)
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, err = conn.Read(make([]byte, 1))
		assert.ErrorIs(t, err, io.EOF)
		conn.Close()
		require.Eventually(t, func() bool { return tr.Stats().Active == 0 }, 5*time.Second, 10*time.Millisecond)
	}
	assert.Zero(t, tr.Stats().Rejected)
}

func TestDeadlines(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := WithDeadlines(server, 20*time.Millisecond)
	_, err := conn.Read(make([]byte, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrDeadlineExceeded))

	assert.Equal(t, server, WithDeadlines(server, 0))
}

func TestClientTransport(t *testing.T) {
	_, addr, _ := startServer(t, common.DefaultServerConfig())

	ct := NewBaseClientTransport(dialer{&loopbackConnector{}})
	conn, err := ct.Connect(common.ClientConfig{Endpoint: addr, TimeoutSecond: 5})
	require.NoError(t, err)
	defer conn.Close()
	roundTrip(t, conn, "1234")

	_, err = ct.Connect(common.ClientConfig{})
	assert.Error(t, err)
}
