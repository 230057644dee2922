package protocol

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// Sentinel causes. Use errors.Is to test for them.
var (
	// ErrBadMagic is returned when a request header does not start with MagicRequest
	ErrBadMagic = errors.New("invalid magic byte")
	// ErrMalformedFrame is returned when the body length arithmetic of a header is inconsistent
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrFrameTooLarge is returned when the body length exceeds the configured limit
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrReservedNotZero is returned when the reserved header field of a request is set
	ErrReservedNotZero = errors.New("reserved header field not zero")
	// ErrSegmentTooLarge is returned when an extra or key does not fit its header length field
	ErrSegmentTooLarge = errors.New("segment too large")
	// ErrConnectionClosed is the cause of every ConnectionError raised by a peer going away
	ErrConnectionClosed = errors.New("connection closed")
)

// ProtocolError is raised when the peer sent bytes that do not form a valid frame.
// The stream is desynchronized afterwards.
//
// Connection handling: CLOSE connection, no response is written
type ProtocolError struct {
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return "protocol error: " + e.Message + ": " + e.Err.Error()
	}
	return "protocol error: " + e.Message
}

// Unwrap returns the sentinel cause
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - the stream can not be resynchronized
func (e *ProtocolError) ShouldCloseConnection() bool {
	return true
}

// ConnectionError wraps failures of the underlying transport.
// When Err is (or wraps) ErrConnectionClosed the peer simply went away,
// every other cause is a transport failure.
//
// Connection handling: connection is already broken, CLOSE
type ConnectionError struct {
	Op  string // read or write
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean the connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by all errors of this package
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err requires closing the connection.
// Unknown errors are treated conservatively.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}
	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}
	return true
}

// IsConnectionClosed reports whether err is a normal disconnect of the peer
func IsConnectionClosed(err error) bool {
	return errors.Is(err, ErrConnectionClosed)
}

// IsProtocolError reports whether err was caused by an invalid frame
func IsProtocolError(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// newProtocolError wraps a sentinel with a formatted detail message
func newProtocolError(cause error, format string, args ...interface{}) error {
	return &ProtocolError{Message: fmt.Sprintf(format, args...), Err: cause}
}

// WrapIOError classifies an error returned by the transport for the given op (read, write)
func WrapIOError(op string, err error) error {
	if isClosedError(err) {
		return &ConnectionError{Op: op, Err: fmt.Errorf("%w: %w", ErrConnectionClosed, err)}
	}
	return &ConnectionError{Op: op, Err: err}
}

// isClosedError reports whether err means that the peer or the local side closed the stream
func isClosedError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
