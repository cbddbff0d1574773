// Package base provides the foundation of the dList transport layers, implementing
// the core functionality for RPC communication independent of the specific
// network protocol (TCP, Unix sockets, etc.). It is extended with protocol-specific
// connectors by the tcp and unix packages.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Frame-based message protocol with shardID and requestID tracking
//   - Asynchronous request routing and response correlation
//   - Cancellation of requests on both sides of a connection
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different network protocols.
//
//   - clientTransport: Core client implementation that manages multiple connections
//     with round-robin load balancing. Lost connections are re-established in the
//     background, requests pending on them fail.
//
//   - serverTransport: Core server implementation that accepts connections and
//     routes requests to the handler.
//
// Frame format:
//
//	| shardID (8 bytes) | requestID (8 bytes) | length (4 bytes) | payload |
//
// Blocking commands:
//
//	A request may take arbitrarily long (a blocked pop). Therefore neither side uses
//	read deadlines, and the server processes every request in its own goroutine so
//	a blocked request never delays the following ones. The handler context of a
//	connection is cancelled when the connection closes, which ends the blocked
//	commands of a client that went away. On the client, Send returns as soon as its
//	context is done, a response that arrives later is dropped.
//
//	Requests are only retried if their frame could not be written. A written
//	request may have been executed and list commands are not idempotent.
//
// Performance Optimizations:
//
//   - Connection Pooling: Multiple connections per endpoint improve throughput
//     for high-load scenarios with large messages.
//
//   - Buffer Pooling: The server uses a sync.Pool to reuse request buffers.
//
//   - Frame Batching: net.Buffers combines header and payload into a single write.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to a connection are serialized by a
//	mutex, responses are correlated through an xsync.MapOf of pending requests.
package base
