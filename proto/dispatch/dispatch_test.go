package dispatch

import (
	"bytes"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// request builds a decoded request message
func request(op protocol.Opcode, key string) *protocol.Message {
	return &protocol.Message{
		Header: protocol.RequestHeader{
			Magic:     protocol.MagicRequest,
			Opcode:    op,
			KeyLength: uint16(len(key)),
			Opaque:    77,
		},
		Key: []byte(key),
	}
}

// decodeAll parses every response frame in raw
func decodeAll(t *testing.T, raw []byte) []*protocol.Response {
	t.Helper()
	r := protocol.NewFrameReader(bytes.NewReader(raw), nil)
	var out []*protocol.Response
	for r.Buffered() > 0 || len(out) == 0 {
		resp, err := protocol.DecodeResponse(r)
		if protocol.IsConnectionClosed(err) {
			break
		}
		require.NoError(t, err)
		out = append(out, resp)
	}
	return out
}

func TestNewTableFromStub(t *testing.T) {
	table := NewDefaultTable("1.2.3")

	assert.Equal(t, []protocol.Opcode{
		protocol.OpGet, protocol.OpQuit, protocol.OpGetQ, protocol.OpNoop, protocol.OpVersion,
		protocol.OpGetK, protocol.OpGetKQ, protocol.OpStat, protocol.OpQuitQ,
	}, table.Opcodes())

	_, ok := table.Lookup(protocol.OpSet)
	assert.False(t, ok, "stub has no store capability")
}

// storeOnly implements a single capability
type storeOnly struct{ calls int }

func (s *storeOnly) HandleStore(req *protocol.Message) []byte {
	s.calls++
	return protocol.EncodeResponse(req)
}

func TestNewTableRegistersWholeFamily(t *testing.T) {
	h := &storeOnly{}
	table := NewTable(h)

	assert.Equal(t, []protocol.Opcode{
		protocol.OpSet, protocol.OpAdd, protocol.OpReplace,
		protocol.OpSetQ, protocol.OpAddQ, protocol.OpReplaceQ,
	}, table.Opcodes())

	table.Dispatch(request(protocol.OpAddQ, "k"))
	assert.Equal(t, 1, h.calls)
}

// overriding embeds the stub and replaces GET
type overriding struct {
	*Stub
}

func (o overriding) HandleGet(req *protocol.Message) []byte {
	return protocol.EncodeResponse(req, protocol.WithValue([]byte("hit")))
}

func TestNewTableWithEmbeddedStub(t *testing.T) {
	table := NewTable(overriding{Stub: NewStub("v", nil)})

	resps := decodeAll(t, table.Dispatch(request(protocol.OpGetQ, "k")))
	require.Len(t, resps, 1)
	assert.Equal(t, protocol.StatusSuccess, resps[0].Status())
	assert.Equal(t, "hit", string(resps[0].Value))

	_, ok := table.Lookup(protocol.OpNoop)
	assert.True(t, ok, "promoted stub methods stay registered")
}

func TestRegisterAndClone(t *testing.T) {
	table := NewDefaultTable("v")
	clone := table.Clone()

	clone.Register(protocol.OpSet, func(req *protocol.Message) []byte { return nil })
	clone.Register(protocol.OpGet, nil)

	_, ok := table.Lookup(protocol.OpSet)
	assert.False(t, ok, "clone must not share state with its source table")
	_, ok = table.Lookup(protocol.OpGet)
	assert.True(t, ok)

	_, ok = clone.Lookup(protocol.OpSet)
	assert.True(t, ok)
	_, ok = clone.Lookup(protocol.OpGet)
	assert.False(t, ok)
}

func TestDispatchUnknownOpcode(t *testing.T) {
	table := NewDefaultTable("v")

	resps := decodeAll(t, table.Dispatch(request(protocol.Opcode(0xff), "")))
	require.Len(t, resps, 1)
	assert.Equal(t, protocol.StatusUnknownCommand, resps[0].Status())
	assert.Equal(t, protocol.Opcode(0xff), resps[0].Header.Opcode)
	assert.Equal(t, uint32(77), resps[0].Header.Opaque)
	assert.Empty(t, resps[0].Key)
	assert.Empty(t, resps[0].Value)
}

func TestExplicitTableHasNoImplicitHandlers(t *testing.T) {
	table := Table{}.Register(protocol.OpNoop, NewStub("v", nil).HandleNoop)

	resps := decodeAll(t, table.Dispatch(request(protocol.OpGet, "k")))
	require.Len(t, resps, 1)
	assert.Equal(t, protocol.StatusUnknownCommand, resps[0].Status())
}

func TestStubGet(t *testing.T) {
	stub := NewStub("v", nil)

	for _, op := range []protocol.Opcode{protocol.OpGet, protocol.OpGetQ} {
		resps := decodeAll(t, stub.HandleGet(request(op, "somekey")))
		require.Len(t, resps, 1)
		assert.Equal(t, op, resps[0].Header.Opcode)
		assert.Equal(t, protocol.StatusKeyNotFound, resps[0].Status())
		assert.Empty(t, resps[0].Key)
		assert.Empty(t, resps[0].Value)
	}
}

func TestStubGetK(t *testing.T) {
	stub := NewStub("v", nil)

	for _, op := range []protocol.Opcode{protocol.OpGetK, protocol.OpGetKQ} {
		resps := decodeAll(t, stub.HandleGetK(request(op, "somekey")))
		require.Len(t, resps, 1)
		assert.Equal(t, protocol.StatusKeyNotFound, resps[0].Status())
		assert.Equal(t, "somekey", string(resps[0].Key))
		assert.Empty(t, resps[0].Value)
	}
}

func TestStubNoopQuitVersion(t *testing.T) {
	stub := NewStub("9.9.9", nil)

	for _, fn := range []HandlerFunc{stub.HandleNoop, stub.HandleQuit} {
		resps := decodeAll(t, fn(request(protocol.OpNoop, "")))
		require.Len(t, resps, 1)
		assert.Equal(t, protocol.StatusSuccess, resps[0].Status())
		assert.Zero(t, resps[0].Header.TotalBodyLength)
	}

	resps := decodeAll(t, stub.HandleVersion(request(protocol.OpVersion, "")))
	require.Len(t, resps, 1)
	assert.Equal(t, "9.9.9", string(resps[0].Value))
}

func TestStubStat(t *testing.T) {
	stub := NewStub("v", func() []protocol.StatPair {
		return []protocol.StatPair{{Key: "curr_connections", Value: "3"}}
	})
	fixed := time.Unix(1700000000, 0)
	stub.startedAt = fixed.Add(-90 * time.Second)
	stub.now = func() time.Time { return fixed }

	resps := decodeAll(t, stub.HandleStat(request(protocol.OpStat, "")))

	require.Len(t, resps, 6)
	got := map[string]string{}
	for _, r := range resps[:5] {
		assert.NotEmpty(t, r.Key)
		got[string(r.Key)] = string(r.Value)
	}
	assert.Equal(t, "1700000000", got["time"])
	assert.Equal(t, "90", got["uptime"])
	assert.Equal(t, "v", got["version"])
	assert.Equal(t, "3", got["curr_connections"])
	_, err := strconv.Atoi(got["pid"])
	assert.NoError(t, err)

	last := resps[5]
	assert.Empty(t, last.Key)
	assert.Empty(t, last.Value)
}

func TestStubStatWithKey(t *testing.T) {
	resps := decodeAll(t, NewStub("v", nil).HandleStat(request(protocol.OpStat, "items")))

	require.Len(t, resps, 1)
	assert.Equal(t, protocol.StatusKeyNotFound, resps[0].Status())
	assert.Equal(t, "items", string(resps[0].Key))
}

func TestGuardTranslatesErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status protocol.Status
	}{
		{"status error", NewStatusError(protocol.StatusTooLarge, errors.New("value too big")), protocol.StatusTooLarge},
		{"plain error", errors.New("disk on fire"), protocol.StatusInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := Guard(tt.name, func(*protocol.Message) ([]byte, error) { return nil, tt.err }, DefaultGuardSettings())

			resps := decodeAll(t, fn(request(protocol.OpSet, "k")))
			require.Len(t, resps, 1)
			assert.Equal(t, tt.status, resps[0].Status())
			assert.Equal(t, protocol.OpSet, resps[0].Header.Opcode)
		})
	}
}

func TestGuardPassesThrough(t *testing.T) {
	fn := Guard("ok", func(req *protocol.Message) ([]byte, error) {
		return protocol.EncodeResponse(req, protocol.WithValue([]byte("v"))), nil
	}, DefaultGuardSettings())

	resps := decodeAll(t, fn(request(protocol.OpGet, "k")))
	require.Len(t, resps, 1)
	assert.Equal(t, "v", string(resps[0].Value))
}

func TestGuardOpensBreaker(t *testing.T) {
	calls := 0
	settings := DefaultGuardSettings()
	settings.ConsecutiveFailures = 2
	settings.Timeout = time.Hour

	fn := Guard("flaky", func(*protocol.Message) ([]byte, error) {
		calls++
		return nil, NewStatusError(protocol.StatusBusy, nil)
	}, settings)

	for i := 0; i < 2; i++ {
		resps := decodeAll(t, fn(request(protocol.OpGet, "k")))
		assert.Equal(t, protocol.StatusBusy, resps[0].Status())
	}

	resps := decodeAll(t, fn(request(protocol.OpGet, "k")))
	assert.Equal(t, protocol.StatusTemporaryFail, resps[0].Status())
	assert.Equal(t, 2, calls, "open breaker must not call the backend")
}

func TestGuardIgnoresClientStatuses(t *testing.T) {
	calls := 0
	settings := DefaultGuardSettings()
	settings.ConsecutiveFailures = 1

	fn := Guard("misses", func(*protocol.Message) ([]byte, error) {
		calls++
		return nil, NewStatusError(protocol.StatusKeyNotFound, nil)
	}, settings)

	for i := 0; i < 3; i++ {
		resps := decodeAll(t, fn(request(protocol.OpGet, "k")))
		assert.Equal(t, protocol.StatusKeyNotFound, resps[0].Status())
	}
	assert.Equal(t, 3, calls)
}
