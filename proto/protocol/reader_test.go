package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader returns at most chunk bytes per Read call
type chunkedReader struct {
	data  []byte
	chunk int
	reads int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	c.reads++
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.chunk
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

// stutterReader returns (0, nil) before every successful read
type stutterReader struct {
	data    []byte
	stutter bool
}

func (s *stutterReader) Read(p []byte) (int, error) {
	s.stutter = !s.stutter
	if s.stutter {
		return 0, nil
	}
	if len(s.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}

// emptyReader never makes progress
type emptyReader struct{ reads int }

func (e *emptyReader) Read([]byte) (int, error) {
	e.reads++
	return 0, nil
}

// failingReader fails with a fixed error
type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) {
	return 0, f.err
}

func TestReadExactAcrossChunks(t *testing.T) {
	data := []byte("0123456789abcdefghij")
	src := &chunkedReader{data: append([]byte(nil), data...), chunk: 3}
	r := NewFrameReader(src, make([]byte, 8))

	first, err := r.ReadExact(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("01234"), first)

	second, err := r.ReadExact(12)
	require.NoError(t, err, "request larger than the buffer must grow it")
	assert.Equal(t, []byte("56789abcdefg"), second)

	third, err := r.ReadExact(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("hij"), third)

	assert.Equal(t, uint64(len(data)), r.BytesRead())
	assert.Equal(t, 0, r.Buffered())
}

func TestReadExactKeepsSurplus(t *testing.T) {
	r := NewFrameReader(bytes.NewReader([]byte("abcdef")), nil)

	b, err := r.ReadExact(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), b)
	assert.Equal(t, 4, r.Buffered(), "one source read must buffer the rest")

	b, err = r.ReadExact(4)
	require.NoError(t, err)
	assert.Equal(t, []byte("cdef"), b)
}

func TestReadExactReturnsOwnedCopy(t *testing.T) {
	r := NewFrameReader(bytes.NewReader([]byte("abcdef")), make([]byte, 4))

	first, err := r.ReadExact(3)
	require.NoError(t, err)
	_, err = r.ReadExact(3)
	require.NoError(t, err)

	assert.Equal(t, []byte("abc"), first, "later reads must not overwrite earlier results")
}

func TestReadExactZero(t *testing.T) {
	src := &emptyReader{}
	r := NewFrameReader(src, nil)

	b, err := r.ReadExact(0)
	require.NoError(t, err)
	assert.Empty(t, b)
	assert.Equal(t, 0, src.reads, "zero length reads must not touch the source")
}

func TestReadExactToleratesTransientEmptyReads(t *testing.T) {
	r := NewFrameReader(&stutterReader{data: []byte("hello")}, nil)

	b, err := r.ReadExact(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), b)
}

func TestReadExactDetectsClosedStream(t *testing.T) {
	r := NewFrameReader(bytes.NewReader([]byte("abc")), nil)

	_, err := r.ReadExact(5)
	require.Error(t, err)
	assert.True(t, IsConnectionClosed(err))
	assert.True(t, ShouldCloseConnection(err))

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "read", connErr.Op)
}

func TestReadExactGivesUpWithoutProgress(t *testing.T) {
	src := &emptyReader{}
	r := NewFrameReader(src, nil)

	_, err := r.ReadExact(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrNoProgress)
	assert.False(t, IsConnectionClosed(err))
	assert.Equal(t, maxConsecutiveEmptyReads, src.reads)
}

func TestReadExactTransportError(t *testing.T) {
	boom := errors.New("boom")
	r := NewFrameReader(failingReader{err: boom}, nil)

	_, err := r.ReadExact(1)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsConnectionClosed(err))
	assert.True(t, ShouldCloseConnection(err))
}

func TestReset(t *testing.T) {
	r := NewFrameReader(bytes.NewReader([]byte("abcdef")), nil)
	_, err := r.ReadExact(2)
	require.NoError(t, err)

	r.Reset(bytes.NewReader([]byte("xyz")))
	assert.Equal(t, 0, r.Buffered())
	assert.Equal(t, uint64(0), r.BytesRead())

	b, err := r.ReadExact(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz"), b)
}

func TestResetDropsOversizedBuffer(t *testing.T) {
	big := bytes.Repeat([]byte{1}, maxRetainedBufferFactor*DefaultReadBufferSize+1)
	r := NewFrameReader(bytes.NewReader(big), nil)
	_, err := r.ReadExact(len(big))
	require.NoError(t, err)

	r.Reset(bytes.NewReader(nil))
	assert.Len(t, r.buf, DefaultReadBufferSize)
}
