package protocol

import (
	"io"
)

const (
	// DefaultReadBufferSize is the size of the buffer allocated by NewFrameReader
	// when no buffer is supplied
	DefaultReadBufferSize = 16 * 1024

	// maxConsecutiveEmptyReads is the number of (0, nil) reads tolerated before
	// the source is considered broken
	maxConsecutiveEmptyReads = 100

	// buffers above this multiple of the default size are dropped on Reset
	maxRetainedBufferFactor = 4
)

// FrameReader reads exact byte counts from a stream source.
//
// Reads from the source happen in chunks as large as the free space of the
// internal buffer. Bytes beyond the requested count stay buffered for the
// next call. The buffer is compacted in place when its tail runs out and only
// grows when a single call asks for more than its capacity.
//
// A FrameReader is not safe for concurrent use.
type FrameReader struct {
	src       io.Reader
	buf       []byte
	r, w      int // buf[r:w] holds unconsumed bytes
	bytesRead uint64
}

// NewFrameReader creates a reader on top of src. buf is used as the internal
// buffer if it is not empty, which allows callers to recycle buffers.
func NewFrameReader(src io.Reader, buf []byte) *FrameReader {
	if len(buf) == 0 {
		buf = make([]byte, DefaultReadBufferSize)
	}
	return &FrameReader{src: src, buf: buf}
}

// Reset discards all buffered bytes and binds the reader to a new source.
// The byte counter starts over.
func (f *FrameReader) Reset(src io.Reader) {
	if len(f.buf) > maxRetainedBufferFactor*DefaultReadBufferSize {
		f.buf = make([]byte, DefaultReadBufferSize)
	}
	f.src = src
	f.r, f.w = 0, 0
	f.bytesRead = 0
}

// BytesRead returns the number of bytes handed out by ReadExact so far
func (f *FrameReader) BytesRead() uint64 {
	return f.bytesRead
}

// Buffered returns the number of bytes read from the source but not yet consumed
func (f *FrameReader) Buffered() int {
	return f.w - f.r
}

// ReadExact returns exactly n bytes. The returned slice is owned by the caller.
//
// It blocks until n bytes are available. If the source ends first, the error
// is a *ConnectionError wrapping ErrConnectionClosed; other source failures
// are returned as *ConnectionError as well.
func (f *FrameReader) ReadExact(n int) ([]byte, error) {
	view, err := f.next(n)
	if err != nil || len(view) == 0 {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// next returns a view of the next n bytes. The view is only valid until the
// following call on the reader.
func (f *FrameReader) next(n int) ([]byte, error) {
	if n < 0 {
		return nil, newProtocolError(ErrMalformedFrame, "negative read length %d", n)
	}
	if n == 0 {
		return nil, nil
	}
	if err := f.fill(n); err != nil {
		return nil, err
	}
	view := f.buf[f.r : f.r+n]
	f.r += n
	f.bytesRead += uint64(n)
	return view, nil
}

// fill reads from the source until at least n bytes are buffered
func (f *FrameReader) fill(n int) error {
	if f.w-f.r >= n {
		return nil
	}

	// make room for n bytes starting at f.r
	if len(f.buf)-f.r < n {
		if n > len(f.buf) {
			grown := make([]byte, n)
			copy(grown, f.buf[f.r:f.w])
			f.buf = grown
		} else {
			copy(f.buf, f.buf[f.r:f.w])
		}
		f.w -= f.r
		f.r = 0
	}

	empty := 0
	for f.w-f.r < n {
		m, err := f.src.Read(f.buf[f.w:])
		f.w += m
		if f.w-f.r >= n {
			return nil
		}
		if err != nil {
			return WrapIOError("read", err)
		}
		if m == 0 {
			// a transient empty read is not progress
			empty++
			if empty >= maxConsecutiveEmptyReads {
				return &ConnectionError{Op: "read", Err: io.ErrNoProgress}
			}
			continue
		}
		empty = 0
	}
	return nil
}
