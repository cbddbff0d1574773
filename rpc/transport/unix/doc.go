// Package unix implements a transport layer for the dList RPC system using Unix
// domain sockets. It provides fast communication for processes running on the
// same machine.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting all core functionality like connection pooling, request routing,
// cancellation and error handling from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners (replacing a stale socket file)
//
// Performance Characteristics:
//
//   - Default buffer size: 64 KB, optimized for local communication patterns
//   - No TCP/IP stack processing, which lowers latency compared to tcp on loopback
package unix
