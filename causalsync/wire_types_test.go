package causalsync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/causalmesh/go-causalmesh/common/types"
	"github.com/causalmesh/go-causalmesh/history"
	"github.com/causalmesh/go-causalmesh/object"
)

func TestMessageEnvelope(t *testing.T) {
	root := history.New(types.CalcHash32([]byte("root")), nil)
	resp := &ResponseMsg{
		ID:           NewRequestID(),
		History:      []history.Node{*history.New(types.CalcHash32([]byte("op")), []types.HistoryID{root.ID})},
		SendingOps:   []types.OpID{root.OpID},
		LiteralCount: 1,
		Omitted: []OmittedObject{{
			Hash:  testTarget.ID(),
			Chain: []types.Hash32{testTarget.ID()},
		}},
	}
	data, err := EncodeMessage(resp)
	require.NoError(t, err)
	require.Equal(t, byte(TypeResponse), data[0])

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, resp, decoded)

	lit := &LiteralMsg{ID: resp.ID, Sequence: 7, Literal: *object.NewLiteral("element", []byte("x"), nil)}
	data, err = EncodeMessage(lit)
	require.NoError(t, err)
	decoded, err = DecodeMessage(data)
	require.NoError(t, err)
	require.Equal(t, lit.Literal.Hash, decoded.(*LiteralMsg).Literal.Hash)
	require.NoError(t, decoded.(*LiteralMsg).Literal.Validate())
}

func TestDecodeMalformedMessage(t *testing.T) {
	_, err := DecodeMessage(nil)
	require.ErrorIs(t, err, ErrUnknownMessage)

	_, err = DecodeMessage([]byte{0xff, 1, 2})
	require.ErrorIs(t, err, ErrUnknownMessage)

	data, err := EncodeMessage(&CancelMsg{ID: NewRequestID(), Reason: CancelSlowConnection, Detail: "timeout"})
	require.NoError(t, err)
	_, err = DecodeMessage(data[:len(data)-3])
	require.Error(t, err)

	req := &StateMsg{Target: testTarget.ID(), Terminals: make([]types.HistoryID, maxTerminals+1)}
	_, err = EncodeMessage(req)
	require.Error(t, err)
}

func TestCancelReasonString(t *testing.T) {
	for reason, expect := range map[CancelReason]string{
		CancelInvalidResponse:       "invalid-response",
		CancelInvalidLiteral:        "invalid-literal",
		CancelOutOfOrderLiteral:     "out-of-order-literal",
		CancelInvalidOmittedObjects: "invalid-omitted-objs",
		CancelSlowConnection:        "slow-connection",
		CancelOther:                 "other",
		CancelReason(42):            "unknown(42)",
	} {
		require.Equal(t, expect, reason.String())
	}
}
