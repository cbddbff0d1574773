package client

import (
	"context"
	"github.com/ValentinKolb/dList/rpc/common"
	"github.com/ValentinKolb/dList/rpc/serializer"
	"github.com/ValentinKolb/dList/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"math"
	"time"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPC list store with composition pattern
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// requestContext returns the context of a single request.
// The configured timeout is extended by extra, unbounded requests only end with parent.
func (a *rpcClientAdapter) requestContext(parent context.Context, extra time.Duration, unbounded bool) (context.Context, context.CancelFunc) {
	if unbounded || a.config.TimeoutSecond <= 0 {
		return context.WithCancel(parent)
	}
	timeout := time.Duration(a.config.TimeoutSecond) * time.Second
	if extra > math.MaxInt64-timeout {
		// the sum does not fit into a time.Duration
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout+max(extra, 0))
}

// invoke sends a request with the configured timeout
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	ctx, cancel := a.requestContext(context.Background(), 0, false)
	defer cancel()
	return invokeRPCRequest(ctx, a.shardId, req, a.transport, a.serializer)
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type.
// Errors reported by the store are returned as *store.Error.
func invokeRPCRequest(ctx context.Context, shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize %s request", req.MsgType)
	}

	respBytes, err := transport.Send(ctx, shardId, reqBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "%s request failed", req.MsgType)
	}

	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, errors.Wrapf(err, "failed to deserialize %s response", req.MsgType)
	}

	// Check if the response is an error response
	if err := resp.Error(); err != nil {
		return resp, err
	}
	if resp.MsgType == common.MsgTError {
		return resp, errors.Errorf("%s request failed without message", req.MsgType)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, errors.Errorf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
