package server

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dList/lib/store"
	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/puzpuzpuz/xsync/v3"
	"math"
	"sync"
	"time"
)

// cancelTombstoneTTL is how long a cancel for an unknown call is remembered.
// A cancel can overtake its blocking request if they travel on different connections.
const cancelTombstoneTTL = time.Minute

// maxTimeoutMs is the largest timeout in milliseconds that fits into a time.Duration
const maxTimeoutMs = math.MaxInt64 / int64(time.Millisecond)

// NewIListStoreServerAdapter creates the adapter that maps list messages onto store.IListStore
func NewIListStoreServerAdapter() IRPCServerAdapter {
	return &iListStoreServerAdapterImpl{
		calls: xsync.NewMapOf[string, *blockingCall](),
	}
}

type iListStoreServerAdapterImpl struct {
	// calls holds the running blocking calls by their call id
	calls *xsync.MapOf[string, *blockingCall]
}

// blockingCall is the cancel signal of one blocking call
type blockingCall struct {
	once      sync.Once
	cancelled chan struct{}
}

func newBlockingCall() *blockingCall {
	return &blockingCall{cancelled: make(chan struct{})}
}

func (c *blockingCall) cancel() {
	c.once.Do(func() { close(c.cancelled) })
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (adapter *iListStoreServerAdapterImpl) Handle(ctx context.Context, req *common.Message, s store.IListStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {

	// Push
	case common.MsgTLPush:
		n, err := s.PushHead(req.Key, req.Value)
		return common.NewLengthResponse(req.MsgType, n, err)
	case common.MsgTRPush:
		n, err := s.PushTail(req.Key, req.Value)
		return common.NewLengthResponse(req.MsgType, n, err)
	case common.MsgTLPushX:
		n, err := s.PushHeadIfExists(req.Key, req.Value)
		return common.NewLengthResponse(req.MsgType, n, err)
	case common.MsgTRPushX:
		n, err := s.PushTailIfExists(req.Key, req.Value)
		return common.NewLengthResponse(req.MsgType, n, err)

	// Pop
	case common.MsgTLPop:
		v, ok, err := s.PopHead(req.Key)
		return common.NewValueResponse(req.MsgType, v, ok, err)
	case common.MsgTRPop:
		v, ok, err := s.PopTail(req.Key)
		return common.NewValueResponse(req.MsgType, v, ok, err)

	// Positional
	case common.MsgTLLen:
		n, err := s.Length(req.Key)
		return common.NewLengthResponse(req.MsgType, n, err)
	case common.MsgTLRange:
		values, err := s.Range(req.Key, int(req.Index), int(req.Stop))
		return common.NewValuesResponse(values, err)
	case common.MsgTLIndex:
		v, ok, err := s.IndexGet(req.Key, int(req.Index))
		return common.NewValueResponse(req.MsgType, v, ok, err)
	case common.MsgTLSet:
		err := s.IndexSet(req.Key, int(req.Index), req.Value)
		return common.NewOkResponse(req.MsgType, err == nil, err)
	case common.MsgTLInsert:
		pos := store.PositionBefore
		if req.After {
			pos = store.PositionAfter
		}
		ok, err := s.InsertRelative(req.Key, req.Pivot, req.Value, pos)
		return common.NewOkResponse(req.MsgType, ok, err)
	case common.MsgTLRem:
		n, err := s.RemoveMatching(req.Key, req.Value, int(req.Count))
		return common.NewLengthResponse(req.MsgType, n, err)

	// Move
	case common.MsgTRPopLPush:
		v, ok, err := s.MoveTailToHead(req.Key, req.Dest)
		return common.NewValueResponse(req.MsgType, v, ok, err)

	// Blocking
	case common.MsgTBLPop, common.MsgTBRPop:
		callCtx, done := adapter.callContext(ctx, req.CallID)
		defer done()
		timeout := blockingTimeout(req.TimeoutMs)
		var key string
		var v []byte
		var ok bool
		var err error
		if req.MsgType == common.MsgTBLPop {
			key, v, ok, err = s.BlockingPopHead(callCtx, req.Keys, timeout)
		} else {
			key, v, ok, err = s.BlockingPopTail(callCtx, req.Keys, timeout)
		}
		return common.NewKeyValueResponse(req.MsgType, key, v, ok, err)
	case common.MsgTBRPopLPush:
		callCtx, done := adapter.callContext(ctx, req.CallID)
		defer done()
		v, ok, err := s.BlockingMoveTailToHead(callCtx, req.Key, req.Dest, blockingTimeout(req.TimeoutMs))
		return common.NewValueResponse(req.MsgType, v, ok, err)
	case common.MsgTCancel:
		return common.NewOkResponse(req.MsgType, adapter.cancelCall(req.CallID), nil)

	// Administration
	case common.MsgTFlush:
		err := s.Reset()
		return common.NewOkResponse(req.MsgType, err == nil, err)
	case common.MsgTInfo:
		info, err := s.GetDBInfo()
		return common.NewInfoResponse(info, err)

	default:
		return common.NewCodeErrorResponse(store.RetCUnsupportedOperation,
			fmt.Sprintf("RPC IListStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// blockingTimeout converts a timeout in milliseconds to a duration.
// Timeouts beyond the range of time.Duration are clamped, so their sign is kept.
func blockingTimeout(ms int64) time.Duration {
	switch {
	case ms > maxTimeoutMs:
		return time.Duration(math.MaxInt64)
	case ms < -maxTimeoutMs:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

// callContext registers a blocking call and returns a context that is cancelled
// with the connection or by a cancel message for callID. done must be called when
// the call returned.
func (adapter *iListStoreServerAdapterImpl) callContext(ctx context.Context, callID string) (context.Context, func()) {
	if callID == "" {
		return ctx, func() {}
	}

	// a cancel that arrived first left a cancelled entry behind
	call, _ := adapter.calls.LoadOrStore(callID, newBlockingCall())

	callCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-call.cancelled:
			cancel()
		case <-callCtx.Done():
		}
	}()

	return callCtx, func() {
		cancel()
		adapter.calls.Delete(callID)
	}
}

// cancelCall cancels the blocking call with the given id.
// It reports whether the call was running.
func (adapter *iListStoreServerAdapterImpl) cancelCall(callID string) bool {
	if callID == "" {
		return false
	}
	call, loaded := adapter.calls.LoadOrStore(callID, newBlockingCall())
	call.cancel()
	if !loaded {
		// the call has not arrived yet (or already returned), forget the cancel eventually
		time.AfterFunc(cancelTombstoneTTL, func() { adapter.calls.Delete(callID) })
	}
	return loaded
}
