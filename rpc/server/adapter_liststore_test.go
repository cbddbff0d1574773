package server

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/ValentinKolb/dList/lib/db"
	"github.com/ValentinKolb/dList/lib/db/engines/maple"
	"github.com/ValentinKolb/dList/lib/store"
	"github.com/ValentinKolb/dList/lib/store/lstore"
	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/stretchr/testify/require"
)

func newTestShard(t *testing.T) (IRPCServerAdapter, store.IListStore) {
	s := lstore.NewLocalStore(func() db.KeySpace { return maple.NewMapleKeySpace(nil) })
	t.Cleanup(func() { _ = s.Close() })
	return NewIListStoreServerAdapter(), s
}

func handleAsync(adapter IRPCServerAdapter, ctx context.Context, req *common.Message, s store.IListStore) <-chan *common.Message {
	ch := make(chan *common.Message, 1)
	go func() { ch <- adapter.Handle(ctx, req, s) }()
	return ch
}

func await(t *testing.T, ch <-chan *common.Message) *common.Message {
	t.Helper()
	select {
	case resp := <-ch:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("blocking request did not return")
	}
	return nil
}

func TestHandleCommands(t *testing.T) {
	adapter, s := newTestShard(t)
	ctx := context.Background()

	resp := adapter.Handle(ctx, common.NewPushRequest(common.MsgTRPush, "jobs", []byte("a")), s)
	require.NoError(t, resp.Error())
	require.Equal(t, int64(1), resp.Length)

	resp = adapter.Handle(ctx, common.NewPushRequest(common.MsgTLPush, "jobs", []byte("b")), s)
	require.Equal(t, int64(2), resp.Length)

	resp = adapter.Handle(ctx, common.NewRangeRequest("jobs", 0, -1), s)
	require.Equal(t, [][]byte{[]byte("b"), []byte("a")}, resp.Values)

	resp = adapter.Handle(ctx, common.NewInsertRequest("jobs", []byte("a"), []byte("c"), store.PositionAfter), s)
	require.True(t, resp.Ok)

	resp = adapter.Handle(ctx, common.NewIndexRequest("jobs", -1), s)
	require.True(t, resp.Ok)
	require.Equal(t, "c", string(resp.Value))

	resp = adapter.Handle(ctx, common.NewSetRequest("jobs", 10, []byte("x")), s)
	require.False(t, resp.Ok)
	require.True(t, store.IsIndexOutOfRange(resp.Error()))

	resp = adapter.Handle(ctx, common.NewMoveRequest("jobs", "done"), s)
	require.True(t, resp.Ok)
	require.Equal(t, "c", string(resp.Value))

	resp = adapter.Handle(ctx, common.NewTypeRequest(common.MsgTInfo), s)
	require.NoError(t, resp.Error())
	var info db.DatabaseInfo
	require.NoError(t, json.Unmarshal(resp.Meta, &info))
	require.Equal(t, 2, info.Keys)
	require.Equal(t, 3, info.Elements)

	resp = adapter.Handle(ctx, common.NewTypeRequest(common.MsgTFlush), s)
	require.True(t, resp.Ok)
	resp = adapter.Handle(ctx, common.NewKeyRequest(common.MsgTLLen, "jobs"), s)
	require.Equal(t, int64(0), resp.Length)
}

func TestHandleUnsupported(t *testing.T) {
	adapter, s := newTestShard(t)

	resp := adapter.Handle(context.Background(), common.NewCustomRequest([]byte("x")), s)
	require.Equal(t, common.MsgTError, resp.MsgType)
	require.Equal(t, store.RetCUnsupportedOperation, resp.ErrCode)

	resp = adapter.Handle(context.Background(), common.NewKeyRequest(common.MsgTLLen, "k"), nil)
	require.Error(t, resp.Error())
}

func TestHandleBlockingPopServed(t *testing.T) {
	adapter, s := newTestShard(t)

	ch := handleAsync(adapter, context.Background(), common.NewBlockingPopRequest(common.MsgTBRPop, []string{"a", "b"}, 0, "c-1"), s)
	time.Sleep(50 * time.Millisecond)

	_, err := s.PushTail("b", []byte("x"))
	require.NoError(t, err)

	resp := await(t, ch)
	require.NoError(t, resp.Error())
	require.True(t, resp.Ok)
	require.Equal(t, "b", resp.Key)
	require.Equal(t, "x", string(resp.Value))
}

func TestHandleCancelMessage(t *testing.T) {
	adapter, s := newTestShard(t)

	ch := handleAsync(adapter, context.Background(), common.NewBlockingPopRequest(common.MsgTBLPop, []string{"a"}, 0, "c-1"), s)
	require.Eventually(t, func() bool {
		_, running := adapter.(*iListStoreServerAdapterImpl).calls.Load("c-1")
		return running
	}, time.Second, time.Millisecond)

	resp := adapter.Handle(context.Background(), common.NewCancelRequest("c-1"), s)
	require.True(t, resp.Ok)

	resp = await(t, ch)
	require.False(t, resp.Ok)
	require.Error(t, resp.Error())

	// the call is unregistered after it returned
	_, running := adapter.(*iListStoreServerAdapterImpl).calls.Load("c-1")
	require.False(t, running)

	// the element pushed afterwards is not consumed
	_, err := s.PushTail("a", []byte("x"))
	require.NoError(t, err)
	n, _ := s.Length("a")
	require.Equal(t, 1, n)
}

func TestHandleCancelBeforeCall(t *testing.T) {
	adapter, s := newTestShard(t)

	resp := adapter.Handle(context.Background(), common.NewCancelRequest("c-2"), s)
	require.False(t, resp.Ok)

	// the call was cancelled before it arrived and returns right away
	resp = await(t, handleAsync(adapter, context.Background(), common.NewBlockingMoveRequest("a", "b", 0, "c-2"), s))
	require.False(t, resp.Ok)
	require.Error(t, resp.Error())
}

func TestHandleConnectionContext(t *testing.T) {
	adapter, s := newTestShard(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch := handleAsync(adapter, ctx, common.NewBlockingPopRequest(common.MsgTBLPop, []string{"a"}, 0, ""), s)
	time.Sleep(50 * time.Millisecond)
	cancel()

	resp := await(t, ch)
	require.False(t, resp.Ok)
	require.Error(t, resp.Error())
}

func TestHandleBlockingTimeout(t *testing.T) {
	adapter, s := newTestShard(t)

	resp := await(t, handleAsync(adapter, context.Background(), common.NewBlockingPopRequest(common.MsgTBLPop, []string{"a"}, 20, "c-3"), s))
	require.NoError(t, resp.Error())
	require.False(t, resp.Ok)

	resp = adapter.Handle(context.Background(), common.NewBlockingPopRequest(common.MsgTBLPop, []string{"a"}, -1, "c-4"), s)
	require.True(t, store.IsInvalidOperation(resp.Error()))
}

func TestBlockingTimeoutClamp(t *testing.T) {
	require.Equal(t, time.Duration(0), blockingTimeout(0))
	require.Equal(t, 1500*time.Millisecond, blockingTimeout(1500))
	require.Equal(t, time.Duration(math.MaxInt64), blockingTimeout(math.MaxInt64))
	require.Equal(t, time.Duration(math.MinInt64), blockingTimeout(math.MinInt64))

	adapter, s := newTestShard(t)

	// a huge timeout blocks until an element arrives
	ch := handleAsync(adapter, context.Background(), common.NewBlockingPopRequest(common.MsgTBLPop, []string{"a"}, math.MaxInt64, "c-5"), s)
	time.Sleep(50 * time.Millisecond)
	_, err := s.PushTail("a", []byte("one"))
	require.NoError(t, err)
	resp := await(t, ch)
	require.NoError(t, resp.Error())
	require.True(t, resp.Ok)
	require.Equal(t, "one", string(resp.Value))

	// a huge negative timeout stays invalid
	resp = adapter.Handle(context.Background(), common.NewBlockingPopRequest(common.MsgTBLPop, []string{"a"}, math.MinInt64, "c-6"), s)
	require.True(t, store.IsInvalidOperation(resp.Error()))
}
