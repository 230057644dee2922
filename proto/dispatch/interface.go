package dispatch

import (
	"github.com/ValentinKolb/mcbs/proto/protocol"
)

// HandlerFunc handles one decoded request and returns the raw response bytes.
// A nil result means that no reply is sent. A handler may return several
// concatenated frames (e.g. STAT).
type HandlerFunc func(req *protocol.Message) (resp []byte)

// --------------------------------------------------------------------------
// Capability Interfaces
// --------------------------------------------------------------------------

/*
	Each interface covers one opcode family. NewTable registers every opcode of
	a family when the handler object implements the interface. The handler can
	inspect req.Opcode() to tell the variants (e.g. GET and GETQ) apart.
*/

// IGetHandler handles GET and GETQ
type IGetHandler interface {
	HandleGet(req *protocol.Message) []byte
}

// IGetKHandler handles GETK and GETKQ
type IGetKHandler interface {
	HandleGetK(req *protocol.Message) []byte
}

// IStoreHandler handles SET, ADD, REPLACE and their quiet variants
type IStoreHandler interface {
	HandleStore(req *protocol.Message) []byte
}

// IDeleteHandler handles DELETE and DELETEQ
type IDeleteHandler interface {
	HandleDelete(req *protocol.Message) []byte
}

// IDeltaHandler handles INCREMENT, DECREMENT and their quiet variants
type IDeltaHandler interface {
	HandleDelta(req *protocol.Message) []byte
}

// IConcatHandler handles APPEND, PREPEND and their quiet variants
type IConcatHandler interface {
	HandleConcat(req *protocol.Message) []byte
}

// IFlushHandler handles FLUSH and FLUSHQ
type IFlushHandler interface {
	HandleFlush(req *protocol.Message) []byte
}

// ITouchHandler handles TOUCH, GAT, GATQ, GATK and GATKQ
type ITouchHandler interface {
	HandleTouch(req *protocol.Message) []byte
}

// INoopHandler handles NOOP
type INoopHandler interface {
	HandleNoop(req *protocol.Message) []byte
}

// IQuitHandler handles QUIT and QUITQ. The session ends after either of
// them regardless of what the handler returns.
type IQuitHandler interface {
	HandleQuit(req *protocol.Message) []byte
}

// IVersionHandler handles VERSION
type IVersionHandler interface {
	HandleVersion(req *protocol.Message) []byte
}

// IStatHandler handles STAT. A reply must always end with exactly one packet
// with empty key and value (see protocol.EncodeStats).
type IStatHandler interface {
	HandleStat(req *protocol.Message) []byte
}

// capability maps a family of opcodes to a probe on the handler object
type capability struct {
	ops   []protocol.Opcode
	probe func(h any) HandlerFunc
}

// capabilities is the static list used by NewTable
var capabilities = []capability{
	{
		ops: []protocol.Opcode{protocol.OpGet, protocol.OpGetQ},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(IGetHandler); ok {
				return c.HandleGet
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpGetK, protocol.OpGetKQ},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(IGetKHandler); ok {
				return c.HandleGetK
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpSet, protocol.OpSetQ, protocol.OpAdd, protocol.OpAddQ, protocol.OpReplace, protocol.OpReplaceQ},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(IStoreHandler); ok {
				return c.HandleStore
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpDelete, protocol.OpDeleteQ},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(IDeleteHandler); ok {
				return c.HandleDelete
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpIncrement, protocol.OpIncrementQ, protocol.OpDecrement, protocol.OpDecrementQ},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(IDeltaHandler); ok {
				return c.HandleDelta
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpAppend, protocol.OpAppendQ, protocol.OpPrepend, protocol.OpPrependQ},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(IConcatHandler); ok {
				return c.HandleConcat
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpFlush, protocol.OpFlushQ},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(IFlushHandler); ok {
				return c.HandleFlush
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpTouch, protocol.OpGAT, protocol.OpGATQ, protocol.OpGATK, protocol.OpGATKQ},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(ITouchHandler); ok {
				return c.HandleTouch
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpNoop},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(INoopHandler); ok {
				return c.HandleNoop
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpQuit, protocol.OpQuitQ},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(IQuitHandler); ok {
				return c.HandleQuit
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpVersion},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(IVersionHandler); ok {
				return c.HandleVersion
			}
			return nil
		},
	},
	{
		ops: []protocol.Opcode{protocol.OpStat},
		probe: func(h any) HandlerFunc {
			if c, ok := h.(IStatHandler); ok {
				return c.HandleStat
			}
			return nil
		},
	},
}
