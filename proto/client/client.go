package client

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ValentinKolb/mcbs/proto/common"
	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/ValentinKolb/mcbs/proto/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("client")

// ErrUnexpectedResponse is returned when a response does not belong to the pending request
var ErrUnexpectedResponse = errors.New("unexpected response")

// StatusError is returned for responses with a status other than SUCCESS
type StatusError struct {
	Opcode protocol.Opcode
	Status protocol.Status
	Key    []byte
}

func (e *StatusError) Error() string {
	if len(e.Key) > 0 {
		return fmt.Sprintf("%s %q: %s", e.Opcode, e.Key, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Opcode, e.Status)
}

// IsNotFound reports whether err is a KEY_ENOENT response
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == protocol.StatusKeyNotFound
}

// Request is one request of a pipeline
type Request struct {
	Opcode protocol.Opcode
	Key    []byte
	Extra  []byte
	Value  []byte
	CAS    uint64
}

// Client is a synchronous memcached binary protocol client on a single
// connection. All methods are safe for concurrent use; requests are
// serialized on the connection.
type Client struct {
	conn   io.ReadWriteCloser
	reader *protocol.FrameReader
	mu     sync.Mutex
	opaque uint32
}

// Connect opens a connection with the given transport
func Connect(config common.ClientConfig, tr transport.IClientTransport) (*Client, error) {
	conn, err := tr.Connect(config)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// New creates a client on an established connection
func New(conn io.ReadWriteCloser) *Client {
	return &Client{
		conn:   conn,
		reader: protocol.NewFrameReader(conn, nil),
	}
}

// --------------------------------------------------------------------------
// Requests
// --------------------------------------------------------------------------

// Do sends a single non-quiet request and returns its response.
// A non-SUCCESS status is returned as response and *StatusError.
func (c *Client) Do(req Request) (*protocol.Response, error) {
	if req.Opcode.IsQuiet() {
		return nil, fmt.Errorf("%s: quiet requests need a pipeline", req.Opcode)
	}
	resps, err := c.Pipeline([]Request{req})
	if err != nil {
		return nil, err
	}
	resp := resps[0]
	return resp, statusError(resp)
}

// Pipeline writes all requests in one write and reads responses until the
// last request is answered. The last request must not be quiet. Quiet
// requests without a response are missing from the result.
func (c *Client) Pipeline(reqs []Request) ([]*protocol.Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if reqs[len(reqs)-1].Opcode.IsQuiet() {
		return nil, errors.New("the last request of a pipeline must not be quiet")
	}

	for _, req := range reqs {
		if err := protocol.CheckSegments(req.Extra, req.Key); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	first := c.opaque + 1
	var buf []byte
	for _, req := range reqs {
		c.opaque++
		buf = append(buf, protocol.EncodeRequest(protocol.RequestHeader{
			Opcode: req.Opcode,
			Opaque: c.opaque,
			CAS:    req.CAS,
		}, req.Extra, req.Key, req.Value)...)
	}
	last := c.opaque

	if _, err := c.conn.Write(buf); err != nil {
		return nil, protocol.WrapIOError("write", err)
	}

	var out []*protocol.Response
	for {
		resp, err := protocol.DecodeResponse(c.reader)
		if err != nil {
			return out, err
		}
		opaque := resp.Header.Opaque
		if opaque-first > last-first {
			return out, fmt.Errorf("%w: opaque %d outside of [%d, %d]", ErrUnexpectedResponse, opaque, first, last)
		}
		out = append(out, resp)

		// a STAT reply ends with an empty packet
		if opaque == last && !(resp.Header.Opcode == protocol.OpStat && isStatPacket(resp)) {
			return out, nil
		}
	}
}

// Get returns the value of key. A miss is returned as *StatusError (see IsNotFound).
func (c *Client) Get(key string) ([]byte, error) {
	resp, err := c.Do(Request{Opcode: protocol.OpGet, Key: []byte(key)})
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// GetMulti fetches several keys with GETKQ requests terminated by NOOP.
// Missing keys are not part of the result.
func (c *Client) GetMulti(keys []string) (map[string][]byte, error) {
	reqs := make([]Request, 0, len(keys)+1)
	for _, key := range keys {
		reqs = append(reqs, Request{Opcode: protocol.OpGetKQ, Key: []byte(key)})
	}
	reqs = append(reqs, Request{Opcode: protocol.OpNoop})

	resps, err := c.Pipeline(reqs)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte)
	for _, resp := range resps {
		if resp.Header.Opcode == protocol.OpGetKQ && resp.Status() == protocol.StatusSuccess {
			out[string(resp.Key)] = resp.Value
		}
	}
	return out, nil
}

// Noop sends NOOP and waits for the reply
func (c *Client) Noop() error {
	_, err := c.Do(Request{Opcode: protocol.OpNoop})
	return err
}

// Version returns the version string of the server
func (c *Client) Version() (string, error) {
	resp, err := c.Do(Request{Opcode: protocol.OpVersion})
	if err != nil {
		return "", err
	}
	return string(resp.Value), nil
}

// Stats sends STAT with an optional group key and returns the reported pairs
func (c *Client) Stats(key string) ([]protocol.StatPair, error) {
	resps, err := c.Pipeline([]Request{{Opcode: protocol.OpStat, Key: []byte(key)}})
	if err != nil {
		return nil, err
	}

	var pairs []protocol.StatPair
	for _, resp := range resps {
		if err := statusError(resp); err != nil {
			return pairs, err
		}
		if len(resp.Key) == 0 {
			break
		}
		pairs = append(pairs, protocol.StatPair{Key: string(resp.Key), Value: string(resp.Value)})
	}
	return pairs, nil
}

// Quit sends QUIT, waits for the reply and closes the connection
func (c *Client) Quit() error {
	_, err := c.Do(Request{Opcode: protocol.OpQuit})
	return errors.Join(err, c.Close())
}

// Close closes the connection without sending QUIT
func (c *Client) Close() error {
	return c.conn.Close()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// isStatPacket reports whether resp is a successful non-terminating STAT packet
func isStatPacket(resp *protocol.Response) bool {
	return resp.Status() == protocol.StatusSuccess && len(resp.Key) > 0
}

func statusError(resp *protocol.Response) error {
	if resp.Status() == protocol.StatusSuccess {
		return nil
	}
	return &StatusError{Opcode: resp.Header.Opcode, Status: resp.Status(), Key: resp.Key}
}
