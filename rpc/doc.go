// Package rpc makes the list store available over the network.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol shared by client and server, the configuration
//     structures and the logger setup.
//
//   - transport: Framed request/response transports over TCP and Unix sockets.
//
//   - serializer: Converts Messages to bytes and back (Binary, JSON, GOB).
//
//   - client: A store.IListStore that forwards every operation to a remote shard.
//
//   - server: Hosts one local list store per shard and maps incoming messages onto it.
package rpc
