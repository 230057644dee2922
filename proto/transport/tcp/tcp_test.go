package tcp

import (
	"io"
	"net"
	"testing"

	"github.com/ValentinKolb/mcbs/proto/common"
	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOptions(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	client, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	config := common.DefaultServerTransportConfig()
	config.ReadBufferSize = 32 * 1024
	config.WriteBufferSize = 32 * 1024
	config.TCPLingerSec = 0
	assert.NoError(t, applyOptions(client, config))

	// non tcp connections are left alone
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	assert.NoError(t, applyOptions(a, config))
}

func TestServerAndClient(t *testing.T) {
	tr := NewTCPServerTransport()
	assert.Equal(t, "tcp", tr.GetName())

	tr.RegisterHandler(func(conn net.Conn, reader *protocol.FrameReader) {
		frame, err := reader.ReadExact(2)
		if err == nil {
			_, _ = conn.Write(frame)
		}
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = tr.Serve(listener, common.DefaultServerConfig()) }()
	defer tr.Close()

	conn, err := NewTCPClientTransport().Connect(common.ClientConfig{Endpoint: listener.Addr().String(), TimeoutSecond: 5})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hi"))
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(buf))
}
