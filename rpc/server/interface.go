package server

import (
	"context"
	"github.com/ValentinKolb/dList/lib/store"
	"github.com/ValentinKolb/dList/rpc/common"
)

// IRPCServerAdapter is the interface for all server adapters.
// An adapter executes a request against the store of a shard and builds the response.
type IRPCServerAdapter interface {
	// Handle executes req against s. ctx is cancelled when the client connection closes,
	// blocking commands return early in that case.
	Handle(ctx context.Context, req *common.Message, s store.IListStore) *common.Message
}
