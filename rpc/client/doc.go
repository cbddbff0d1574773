// Package client implements the RPC client of the list store.
// NewRPCListStore returns a store.IListStore that forwards every operation to one shard
// of a remote server, so remote and local stores can be used interchangeably.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		TimeoutSecond: 5,
//		Transport: common.ClientTransportConfig{
//			Endpoints:              []string{"localhost:8080"},
//			RetryCount:             3,
//			ConnectionsPerEndpoint: 1,
//		},
//	}
//
//	lists, _ := client.NewRPCListStore(100, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	defer lists.Close()
//
//	lists.PushTail("jobs", []byte("job-1"))
//	key, job, ok, _ := lists.BlockingPopHead(ctx, []string{"jobs"}, 10*time.Second)
//
// Blocking Calls:
//
//	A blocking call only ends when it was served, when its timeout expired or when the
//	context of the caller is done. The request timeout of the client config is added on top
//	of the timeout of the call, a timeout of 0 (block forever) disables the request timeout.
//	When the context is done the client sends a cancel message for the call to the server.
//	If the server had already served the call, the element is returned instead of the context
//	error, so no element is lost.
//
// Thread Safety:
//
//	The client is safe for concurrent use. Concurrent blocking calls share the connections
//	of the transport.
package client
