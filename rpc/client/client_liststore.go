package client

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dList/lib/db"
	"github.com/ValentinKolb/dList/lib/store"
	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/ValentinKolb/dList/rpc/serializer"
	"github.com/ValentinKolb/dList/rpc/transport"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	cancelRetryBackoff    = 50 * time.Millisecond
	maxCancelRetryBackoff = time.Second
)

// NewRPCListStore creates a new RPC list store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IListStore and an error
func NewRPCListStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IListStore, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcListStore{
		rpcClientAdapter: rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
		callPrefix: uuid.NewString() + "-",
	}, nil
}

type rpcListStore struct {
	rpcClientAdapter

	// call ids of blocking calls are callPrefix + counter, unique across clients of a server
	callPrefix string
	nextCall   atomic.Uint64
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcListStore) PushHead(key string, value []byte) (int, error) {
	return i.push(common.MsgTLPush, key, value)
}

func (i *rpcListStore) PushTail(key string, value []byte) (int, error) {
	return i.push(common.MsgTRPush, key, value)
}

func (i *rpcListStore) PushHeadIfExists(key string, value []byte) (int, error) {
	return i.push(common.MsgTLPushX, key, value)
}

func (i *rpcListStore) PushTailIfExists(key string, value []byte) (int, error) {
	return i.push(common.MsgTRPushX, key, value)
}

func (i *rpcListStore) PopHead(key string) ([]byte, bool, error) {
	return i.value(common.NewKeyRequest(common.MsgTLPop, key))
}

func (i *rpcListStore) PopTail(key string) ([]byte, bool, error) {
	return i.value(common.NewKeyRequest(common.MsgTRPop, key))
}

func (i *rpcListStore) Length(key string) (int, error) {
	resp, err := i.invoke(common.NewKeyRequest(common.MsgTLLen, key))
	if err != nil {
		return 0, err
	}
	return int(resp.Length), nil
}

func (i *rpcListStore) Range(key string, start, stop int) ([][]byte, error) {
	resp, err := i.invoke(common.NewRangeRequest(key, start, stop))
	if err != nil {
		return nil, err
	}
	if resp.Values == nil {
		return [][]byte{}, nil
	}
	return resp.Values, nil
}

func (i *rpcListStore) IndexGet(key string, index int) ([]byte, bool, error) {
	return i.value(common.NewIndexRequest(key, index))
}

func (i *rpcListStore) IndexSet(key string, index int, value []byte) error {
	_, err := i.invoke(common.NewSetRequest(key, index, value))
	return err
}

func (i *rpcListStore) InsertRelative(key string, pivot, value []byte, pos store.Position) (bool, error) {
	if pos != store.PositionBefore && pos != store.PositionAfter {
		return false, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown position %d", pos))
	}
	resp, err := i.invoke(common.NewInsertRequest(key, pivot, value, pos))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcListStore) RemoveMatching(key string, value []byte, count int) (int, error) {
	resp, err := i.invoke(common.NewRemoveRequest(key, value, count))
	if err != nil {
		return 0, err
	}
	return int(resp.Length), nil
}

func (i *rpcListStore) MoveTailToHead(src, dst string) ([]byte, bool, error) {
	return i.value(common.NewMoveRequest(src, dst))
}

func (i *rpcListStore) BlockingPopHead(ctx context.Context, keys []string, timeout time.Duration) (string, []byte, bool, error) {
	return i.blockingPop(ctx, common.MsgTBLPop, keys, timeout)
}

func (i *rpcListStore) BlockingPopTail(ctx context.Context, keys []string, timeout time.Duration) (string, []byte, bool, error) {
	return i.blockingPop(ctx, common.MsgTBRPop, keys, timeout)
}

func (i *rpcListStore) BlockingMoveTailToHead(ctx context.Context, src, dst string, timeout time.Duration) ([]byte, bool, error) {
	resp, err := i.blocking(ctx, common.NewBlockingMoveRequest(src, dst, timeoutMillis(timeout), i.newCallID()), timeout)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcListStore) Reset() error {
	_, err := i.invoke(common.NewTypeRequest(common.MsgTFlush))
	return err
}

func (i *rpcListStore) GetDBInfo() (db.DatabaseInfo, error) {
	resp, err := i.invoke(common.NewTypeRequest(common.MsgTInfo))
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return db.DatabaseInfo{}, errors.Wrap(err, "failed to decode info")
	}
	return info, nil
}

// Close closes the connection to the server, the lists on the server are not affected
func (i *rpcListStore) Close() error {
	return i.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (i *rpcListStore) push(t common.MessageType, key string, value []byte) (int, error) {
	resp, err := i.invoke(common.NewPushRequest(t, key, value))
	if err != nil {
		return 0, err
	}
	return int(resp.Length), nil
}

// value sends a request that answers with an optional value
func (i *rpcListStore) value(req *common.Message) ([]byte, bool, error) {
	resp, err := i.invoke(req)
	if err != nil {
		return nil, false, err
	}
	if !resp.Ok {
		return nil, false, nil
	}
	return resp.Value, true, nil
}

func (i *rpcListStore) blockingPop(ctx context.Context, t common.MessageType, keys []string, timeout time.Duration) (string, []byte, bool, error) {
	resp, err := i.blocking(ctx, common.NewBlockingPopRequest(t, keys, timeoutMillis(timeout), i.newCallID()), timeout)
	if err != nil {
		return "", nil, false, err
	}
	if !resp.Ok {
		return "", nil, false, nil
	}
	return resp.Key, resp.Value, true, nil
}

// blocking sends a blocking request and waits for its response.
//
// If ctx is done first, the server is asked to cancel the call. The response of the
// call is still awaited: if the server served the call before the cancel arrived,
// the element was taken from the list and is returned instead of ctx.Err().
func (i *rpcListStore) blocking(ctx context.Context, req *common.Message, timeout time.Duration) (*common.Message, error) {
	// the call itself is not bound to ctx, only a cancel message ends it early
	reqCtx, cancel := i.requestContext(context.Background(), timeout, timeout == 0)
	defer cancel()

	type result struct {
		resp *common.Message
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := invokeRPCRequest(reqCtx, i.shardId, req, i.transport, i.serializer)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
	}

	// Until the server confirmed the cancel the call may still be served, so the
	// cancel is retried while the response is awaited. A lost connection fails the
	// call and ends the loop.
	backoff := cancelRetryBackoff
	for {
		_, err := i.invoke(common.NewCancelRequest(req.CallID))
		if err == nil {
			break
		}
		Logger.Warningf("failed to cancel blocking call %s: %v", req.CallID, err)

		select {
		case r := <-done:
			return cancelledResult(ctx, r.resp, r.err)
		case <-time.After(backoff):
			backoff = min(2*backoff, maxCancelRetryBackoff)
		}
	}

	r := <-done
	return cancelledResult(ctx, r.resp, r.err)
}

// cancelledResult returns the response of a cancelled call if it was served anyway
func cancelledResult(ctx context.Context, resp *common.Message, err error) (*common.Message, error) {
	if err == nil && resp.Ok {
		return resp, nil
	}
	return nil, ctx.Err()
}

func (i *rpcListStore) newCallID() string {
	return i.callPrefix + strconv.FormatUint(i.nextCall.Add(1), 36)
}

// timeoutMillis converts a timeout to milliseconds, rounding up so short timeouts do not become 0 (= block forever)
func timeoutMillis(timeout time.Duration) int64 {
	if timeout <= 0 {
		return timeout.Milliseconds()
	}
	ms := int64(timeout / time.Millisecond)
	if timeout%time.Millisecond != 0 {
		ms++
	}
	return ms
}
