package storage

import "github.com/mcoot/cubegame/internal/model"

// OpKind identifies a buffered store mutation
type OpKind int

const (
	OpSaveConnection OpKind = iota
	OpDeleteConnection
	OpSaveJoinRequest
	OpDeleteJoinRequest
	OpSavePlayer
	OpDeletePlayer
	OpLinkOwned
	OpUnlinkOwned
)

func (k OpKind) String() string {
	switch k {
	case OpSaveConnection:
		return "save_connection"
	case OpDeleteConnection:
		return "delete_connection"
	case OpSaveJoinRequest:
		return "save_join_request"
	case OpDeleteJoinRequest:
		return "delete_join_request"
	case OpSavePlayer:
		return "save_player"
	case OpDeletePlayer:
		return "delete_player"
	case OpLinkOwned:
		return "link_owned"
	case OpUnlinkOwned:
		return "unlink_owned"
	default:
		return "unknown"
	}
}

// Op is a single buffered mutation. Only the fields relevant to Kind are set.
// Ops are only built by the Batch recorders, so payloads are never nil.
type Op struct {
	Kind        OpKind
	Connection  *model.Connection
	JoinRequest *model.JoinRequest
	Player      *model.PlayerRecord
	Handle      model.ConnectionHandle
	RequestID   model.JoinRequestID
	PlayerID    model.PlayerID
}

// Batch buffers mutations made during a system pass.
// Values are copied on record, so callers may keep mutating their structs.
type Batch struct {
	ops []Op
}

// NewBatch creates an empty batch
func NewBatch() *Batch {
	return &Batch{}
}

// SaveConnection records an upsert of the connection
func (b *Batch) SaveConnection(c *model.Connection) *Batch {
	cp := *c
	b.ops = append(b.ops, Op{Kind: OpSaveConnection, Connection: &cp, Handle: c.Handle})
	return b
}

// DeleteConnection records removal of the connection
func (b *Batch) DeleteConnection(handle model.ConnectionHandle) *Batch {
	b.ops = append(b.ops, Op{Kind: OpDeleteConnection, Handle: handle})
	return b
}

// SaveJoinRequest records an upsert of the request
func (b *Batch) SaveJoinRequest(r *model.JoinRequest) *Batch {
	cp := *r
	b.ops = append(b.ops, Op{Kind: OpSaveJoinRequest, JoinRequest: &cp, RequestID: r.ID})
	return b
}

// DeleteJoinRequest records removal of the request
func (b *Batch) DeleteJoinRequest(id model.JoinRequestID) *Batch {
	b.ops = append(b.ops, Op{Kind: OpDeleteJoinRequest, RequestID: id})
	return b
}

// SavePlayer records an upsert of the player record
func (b *Batch) SavePlayer(p *model.PlayerRecord) *Batch {
	cp := *p
	b.ops = append(b.ops, Op{Kind: OpSavePlayer, Player: &cp, PlayerID: p.ID})
	return b
}

// DeletePlayer records removal of the player record
func (b *Batch) DeletePlayer(id model.PlayerID) *Batch {
	b.ops = append(b.ops, Op{Kind: OpDeletePlayer, PlayerID: id})
	return b
}

// LinkOwned registers the player for destruction when the connection closes
func (b *Batch) LinkOwned(handle model.ConnectionHandle, id model.PlayerID) *Batch {
	b.ops = append(b.ops, Op{Kind: OpLinkOwned, Handle: handle, PlayerID: id})
	return b
}

// UnlinkOwned drops the whole ownership entry of the connection
func (b *Batch) UnlinkOwned(handle model.ConnectionHandle) *Batch {
	b.ops = append(b.ops, Op{Kind: OpUnlinkOwned, Handle: handle})
	return b
}

// Ops returns the recorded operations in order
func (b *Batch) Ops() []Op {
	return b.ops
}

// Len returns the number of recorded operations
func (b *Batch) Len() int {
	return len(b.ops)
}

// Empty reports whether nothing was recorded
func (b *Batch) Empty() bool {
	return len(b.ops) == 0
}
