package common

import (
	"encoding/json"
	"testing"

	"github.com/ValentinKolb/dList/lib/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestParseMessageType(t *testing.T) {
	for msgType := MsgTUnknown; msgType <= MsgTCustom; msgType++ {
		parsed, ok := ParseMessageType(msgType.String())
		require.True(t, ok, msgType.String())
		require.Equal(t, msgType, parsed)
	}

	_, ok := ParseMessageType("hgetall")
	require.False(t, ok)
	require.Equal(t, "unknown", MessageType(200).String())
}

func TestMessageTypeJSON(t *testing.T) {
	b, err := json.Marshal(NewKeyRequest(MsgTLLen, "jobs"))
	require.NoError(t, err)
	require.JSONEq(t, `{"msg_type":"llen","key":"jobs"}`, string(b))

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"msg_type":"brpoplpush","key":"a","dest":"b","timeout_ms":10}`), &msg))
	require.Equal(t, MsgTBRPopLPush, msg.MsgType)
	require.Equal(t, int64(10), msg.TimeoutMs)

	require.Error(t, json.Unmarshal([]byte(`{"msg_type":"nope"}`), &msg))
}

func TestResponseErrors(t *testing.T) {
	// no error
	resp := NewLengthResponse(MsgTRPush, 2, nil)
	require.NoError(t, resp.Error())

	// store errors keep their code and message
	resp = NewOkResponse(MsgTLSet, false, store.NewError(store.RetCIndexOutOfRange, "index 7 out of range"))
	require.Equal(t, store.RetCIndexOutOfRange, resp.ErrCode)
	require.Equal(t, "index 7 out of range", resp.Err)
	require.True(t, store.IsIndexOutOfRange(resp.Error()))

	// wrapped store errors are unwrapped
	wrapped := errors.Wrap(store.NewError(store.RetCInvalidOperation, "negative timeout"), "blpop")
	resp = NewKeyValueResponse(MsgTBLPop, "", nil, false, wrapped)
	require.Equal(t, store.RetCInvalidOperation, resp.ErrCode)
	require.True(t, store.IsInvalidOperation(resp.Error()))

	// other errors become internal errors
	resp = NewValuesResponse(nil, errors.New("boom"))
	require.Equal(t, store.RetCInternalError, store.CodeOf(resp.Error()))
	require.Contains(t, resp.Error().Error(), "boom")

	// an error without code is an internal error
	resp = &Message{MsgType: MsgTError, Err: "shard not found"}
	require.Equal(t, store.RetCInternalError, store.CodeOf(resp.Error()))
}

func TestInfoResponse(t *testing.T) {
	resp := NewInfoResponse(map[string]int{"keys": 3}, nil)
	require.NoError(t, resp.Error())
	require.JSONEq(t, `{"keys":3}`, string(resp.Meta))

	// values that cannot be encoded are reported as error
	resp = NewInfoResponse(make(chan int), nil)
	require.Error(t, resp.Error())
}

func TestInsertRequestPosition(t *testing.T) {
	require.False(t, NewInsertRequest("k", []byte("p"), []byte("v"), store.PositionBefore).After)
	require.True(t, NewInsertRequest("k", []byte("p"), []byte("v"), store.PositionAfter).After)
}
