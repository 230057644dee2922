package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/sony/gobreaker/v2"
)

// FallibleHandlerFunc is a handler backed by something that can fail, e.g. a
// storage engine. Errors are turned into response statuses by Guard.
type FallibleHandlerFunc func(req *protocol.Message) ([]byte, error)

// StatusError carries the protocol status a backend failure should be reported with
type StatusError struct {
	Status protocol.Status
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Status, e.Err)
	}
	return e.Status.String()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// NewStatusError wraps err with a protocol status
func NewStatusError(status protocol.Status, err error) error {
	return &StatusError{Status: status, Err: err}
}

// GuardSettings configures the circuit breaker of a guarded handler
type GuardSettings struct {
	// MaxRequests passed through while half-open
	MaxRequests uint32
	// Interval after which the failure counts are cleared while closed (0 = never)
	Interval time.Duration
	// Timeout after which an open breaker becomes half-open
	Timeout time.Duration
	// ConsecutiveFailures that trip the breaker
	ConsecutiveFailures uint32
}

// DefaultGuardSettings returns the settings used when none are given
func DefaultGuardSettings() GuardSettings {
	return GuardSettings{
		MaxRequests:         1,
		Interval:            0,
		Timeout:             5 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Guard turns a fallible backend handler into a HandlerFunc. Calls run
// through a circuit breaker named name. Errors never reach the session:
//   - *StatusError is answered with its status
//   - an open breaker is answered with ETMPFAIL
//   - any other error is answered with EINTERNAL
//
// Only server side statuses (ENOMEM, EINTERNAL, EBUSY, ETMPFAIL) and plain
// errors count as failures for the breaker; a miss or an invalid request does not.
func Guard(name string, fn FallibleHandlerFunc, settings GuardSettings) HandlerFunc {
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = 1
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return !isBackendFailure(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			Logger.Warningf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return func(req *protocol.Message) []byte {
		resp, err := cb.Execute(func() ([]byte, error) {
			return fn(req)
		})
		if err == nil {
			return resp
		}
		status := statusOf(err)
		Logger.Debugf("%s failed with %s: %v", req.Opcode(), status, err)
		return protocol.EncodeResponse(req, protocol.WithStatus(status))
	}
}

// statusOf maps an error returned by a guarded handler to a response status
func statusOf(err error) protocol.Status {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		return se.Status
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return protocol.StatusTemporaryFail
	default:
		return protocol.StatusInternalError
	}
}

// isBackendFailure reports whether err means the backend itself is unhealthy
func isBackendFailure(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if !errors.As(err, &se) {
		return true
	}
	switch se.Status {
	case protocol.StatusOutOfMemory, protocol.StatusInternalError, protocol.StatusBusy, protocol.StatusTemporaryFail:
		return true
	default:
		return false
	}
}
