package causalsync

import (
	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/object"
	"github.com/causalmesh/go-causalmesh/p2p"
)

//go:generate mockgen -typed -package=mocks -destination=./mocks/mocks.go -source=./interface.go

// Transport hands messages off for delivery to the agent with the same id on
// the remote peer. Send must not wait for the remote and reports only whether
// the message was accepted for delivery.
type Transport interface {
	Send(peer p2p.Peer, agentID string, msg []byte) bool
}

// Store is the content store the synchronizer validates against and commits to.
// Absent objects are reported with store.ErrNotFound.
type Store interface {
	LoadHistory(types.HistoryID) (*history.Node, error)
	LoadHistoryByOpID(types.OpID) (*history.Node, error)
	LoadLiteral(types.Hash32) (*object.Literal, error)
	LoadOp(types.OpID) (*object.Op, error)
	HasHistory(types.HistoryID) (bool, error)
	SaveOp(*object.Literal, []*object.Literal) (*history.Node, error)
	TerminalHistories(types.ObjectID) ([]types.HistoryID, error)
}

// OpValidator checks that an op is valid for the mutable object being synchronized.
type OpValidator func(*object.Op) error

// FetchedHandler is notified about every op fetched from a remote and persisted.
type FetchedHandler func(*object.Op, *history.Node)
