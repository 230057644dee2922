package dispatch

import (
	"sort"

	"github.com/ValentinKolb/mcbs/proto/protocol"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("dispatch")

// Table maps opcodes to handlers. A table must not be modified once a
// session started serving with it.
type Table map[protocol.Opcode]HandlerFunc

// NewTable builds a table from a handler object. For every capability
// interface h implements, all opcodes of that family are registered.
// Opcodes without a matching capability are left out and answered with
// UNKNOWN_COMMAND.
//
// Usage:
//
//	table := dispatch.NewTable(dispatch.NewStub("1.0.0", nil))
//	table.Register(protocol.OpSet, mySetHandler)
func NewTable(h any) Table {
	t := make(Table)
	for _, c := range capabilities {
		fn := c.probe(h)
		if fn == nil {
			continue
		}
		for _, op := range c.ops {
			t[op] = fn
			Logger.Debugf("registered handler %s (%#.2x)", op, uint8(op))
		}
	}
	return t
}

// NewDefaultTable builds a table from a Stub without extra stats
func NewDefaultTable(version string) Table {
	return NewTable(NewStub(version, nil))
}

// Register adds or replaces the handler for op. A nil fn removes the opcode.
// Returns the table to allow chaining.
func (t Table) Register(op protocol.Opcode, fn HandlerFunc) Table {
	if fn == nil {
		delete(t, op)
		return t
	}
	t[op] = fn
	return t
}

// Lookup returns the handler for op
func (t Table) Lookup(op protocol.Opcode) (HandlerFunc, bool) {
	fn, ok := t[op]
	return fn, ok
}

// Clone returns a shallow copy that can be modified independently
func (t Table) Clone() Table {
	c := make(Table, len(t))
	for op, fn := range t {
		c[op] = fn
	}
	return c
}

// Opcodes returns the registered opcodes in ascending order
func (t Table) Opcodes() []protocol.Opcode {
	ops := make([]protocol.Opcode, 0, len(t))
	for op := range t {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Dispatch invokes the handler registered for the request's opcode or
// answers with UNKNOWN_COMMAND if there is none
func (t Table) Dispatch(req *protocol.Message) []byte {
	if fn, ok := t[req.Opcode()]; ok {
		return fn(req)
	}
	Logger.Warningf("no handler for %s %s", req.Opcode(), req.Header)
	return UnknownCommand(req)
}

// UnknownCommand builds the reply for an opcode without handler
func UnknownCommand(req *protocol.Message) []byte {
	return protocol.EncodeResponse(req, protocol.WithStatus(protocol.StatusUnknownCommand))
}
