// Package server implements the RPC server of dList. It provides the adapter that
// executes list messages against a store.IListStore, along with the core server
// implementation that manages shards and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for all list commands
//   - Adapter pattern to decouple the store from RPC mechanisms
//   - Several independent shards (logical databases) per server
//   - Remote cancellation of blocking commands
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.
//
//   - NewIListStoreServerAdapter: Factory function creating the adapter for list
//     commands, translating RPC requests to store.IListStore method calls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Blocking commands:
//
//	A blocking request holds its handler until it is served, times out or is
//	cancelled. It is cancelled when its connection closes or when a cancel message
//	with the same call id arrives. The response to the blocking request is always
//	sent, so a client that cancelled a call still learns whether it got an element.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeLocalIListStore},
//	  },
//	  Transport: common.ServerTransportConfig{Endpoint: "0.0.0.0:8080"},
//	  TimeoutSecond: 5,
//	  MetricsEndpoint: ":9100",
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Metrics:
//
//	dlist_rpc_request_duration_seconds{cmd="..."}  handling time per command
//
// If a metrics endpoint is configured, all metrics (including those of the stores)
// are served in the prometheus text format on /metrics.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve is not thread-safe and should be called only once.
package server
