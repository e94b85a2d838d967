package causalsync

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/spacemeshos/go-scale"

	"github.com/causalmesh/go-causalmesh/codec"
	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/object"
)

//go:generate scalegen -types RequestMsg,OmittedObject,ResponseMsg,LiteralMsg,CancelMsg,RejectMsg,StateMsg

const (
	maxHistory   = 4096
	maxOps       = 1024
	maxTerminals = 1024
	maxChain     = 64
	maxDetail    = 1024
)

// ErrUnknownMessage is returned when the message type prefix is not recognized.
var ErrUnknownMessage = errors.New("unknown message type")

// MessageType prefixes every encoded message.
type MessageType byte

const (
	TypeRequest MessageType = iota + 1
	TypeResponse
	TypeLiteral
	TypeCancel
	TypeReject
	TypeState
)

func (t MessageType) String() string {
	switch t {
	case TypeRequest:
		return "request"
	case TypeResponse:
		return "response"
	case TypeLiteral:
		return "literal"
	case TypeCancel:
		return "cancel"
	case TypeReject:
		return "reject"
	case TypeState:
		return "state"
	}
	return fmt.Sprintf("unknown(%d)", byte(t))
}

// Mode tells the responder whether it may send ops that were not asked for.
type Mode byte

const (
	// ModeInferOps allows the responder to add ops that directly follow the
	// requester's current state.
	ModeInferOps Mode = iota + 1
	// ModeAsRequested restricts the response to the requested ops.
	ModeAsRequested
)

func (m Mode) String() string {
	switch m {
	case ModeInferOps:
		return "infer-ops"
	case ModeAsRequested:
		return "as-requested"
	}
	return fmt.Sprintf("unknown(%d)", byte(m))
}

// CancelReason is sent to the responder when the requester abandons a request.
type CancelReason byte

const (
	CancelInvalidResponse CancelReason = iota + 1
	CancelInvalidLiteral
	CancelOutOfOrderLiteral
	CancelInvalidOmittedObjects
	CancelSlowConnection
	CancelOther
)

func (r CancelReason) String() string {
	switch r {
	case CancelInvalidResponse:
		return "invalid-response"
	case CancelInvalidLiteral:
		return "invalid-literal"
	case CancelOutOfOrderLiteral:
		return "out-of-order-literal"
	case CancelInvalidOmittedObjects:
		return "invalid-omitted-objs"
	case CancelSlowConnection:
		return "slow-connection"
	case CancelOther:
		return "other"
	}
	return fmt.Sprintf("unknown(%d)", byte(r))
}

// RequestID is a random request identifier chosen by the requester.
type RequestID [16]byte

// NewRequestID generates a random id.
func NewRequestID() RequestID {
	var id RequestID
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("read random request id: %v", err))
	}
	return id
}

func (id RequestID) String() string {
	return hex.EncodeToString(id[:])
}

// EncodeScale implements scale codec interface.
func (id *RequestID) EncodeScale(e *scale.Encoder) (int, error) {
	return scale.EncodeByteArray(e, id[:])
}

// DecodeScale implements scale codec interface.
func (id *RequestID) DecodeScale(d *scale.Decoder) (int, error) {
	return scale.DecodeByteArray(d, id[:])
}

// Message is any message exchanged by the synchronizers of a mutable object.
type Message interface {
	codec.Encodable
	Type() MessageType
}

// RequestMsg asks a remote for history and ops of the target.
type RequestMsg struct {
	ID     RequestID
	Target types.ObjectID
	Mode   Mode
	// TerminalHistories are the history ids the requester wants, together with
	// their past up to StartingHistories.
	TerminalHistories []types.HistoryID `scale:"max=1024"`
	// StartingHistories are known to the requester and must not be sent back.
	StartingHistories []types.HistoryID `scale:"max=1024"`
	Ops               []types.OpID      `scale:"max=1024"`
	// CurrentState is the history the requester has, or will have once the
	// ops it already asked for arrive.
	CurrentState   []types.HistoryID `scale:"max=1024"`
	OmissionSecret types.Hash32
}

func (*RequestMsg) Type() MessageType { return TypeRequest }

// OmittedObject is a dependency the responder did not send because the
// requester can reach it from objects it holds. Chain starts at such an object
// and ends at Hash. Proof shows that the responder holds the literal.
type OmittedObject struct {
	Hash  types.Hash32
	Chain []types.Hash32 `scale:"max=64"`
	Proof types.Hash32
}

// ResponseMsg announces what the responder will stream for a request.
type ResponseMsg struct {
	ID RequestID
	// History is a fragment ending at requested terminal histories.
	History []history.Node `scale:"max=4096"`
	// SendingOps are streamed in this order, each preceded by the literals it
	// depends on.
	SendingOps   []types.OpID `scale:"max=1024"`
	LiteralCount uint32
	Omitted      []OmittedObject `scale:"max=4096"`
}

func (*ResponseMsg) Type() MessageType { return TypeResponse }

// LiteralMsg carries one literal of the response stream.
type LiteralMsg struct {
	ID       RequestID
	Sequence uint32
	Literal  object.Literal
}

func (*LiteralMsg) Type() MessageType { return TypeLiteral }

// CancelMsg tells the responder to stop serving the request.
type CancelMsg struct {
	ID     RequestID
	Reason CancelReason
	Detail string `scale:"max=1024"`
}

func (*CancelMsg) Type() MessageType { return TypeCancel }

// RejectMsg tells the requester the request will not be served.
type RejectMsg struct {
	ID     RequestID
	Detail string `scale:"max=1024"`
}

func (*RejectMsg) Type() MessageType { return TypeReject }

// StateMsg advertises terminal histories of the target held by the sender.
type StateMsg struct {
	Target    types.ObjectID
	Terminals []types.HistoryID `scale:"max=1024"`
}

func (*StateMsg) Type() MessageType { return TypeState }

// EncodeMessage encodes the message with its type prefix.
func EncodeMessage(msg Message) ([]byte, error) {
	body, err := codec.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	buf := make([]byte, 0, len(body)+1)
	buf = append(buf, byte(msg.Type()))
	return append(buf, body...), nil
}

// DecodeMessage decodes a message produced by EncodeMessage.
func DecodeMessage(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrUnknownMessage)
	}
	var msg interface {
		Message
		codec.Decodable
	}
	switch typ := MessageType(data[0]); typ {
	case TypeRequest:
		msg = &RequestMsg{}
	case TypeResponse:
		msg = &ResponseMsg{}
	case TypeLiteral:
		msg = &LiteralMsg{}
	case TypeCancel:
		msg = &CancelMsg{}
	case TypeReject:
		msg = &RejectMsg{}
	case TypeState:
		msg = &StateMsg{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, typ)
	}
	if err := codec.Decode(data[1:], msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", msg.Type(), err)
	}
	return msg, nil
}
