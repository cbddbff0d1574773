// Package common provides core data structures and utilities shared across
// the dList RPC system. It defines the message protocol, the configuration
// structures and the logger setup used by the other rpc packages.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. One struct carries
//     every command and every response, which fields are used depends on the
//     MessageType. Factory methods create requests (NewPushRequest,
//     NewBlockingPopRequest, ...) and responses (NewLengthResponse,
//     NewValueResponse, ...). Responses carry the store.RetCode of a failed
//     command in ErrCode, Message.Error turns it back into a *store.Error.
//
//   - MessageType: Enumeration of all commands (lpush, rpush, lpushx, rpushx,
//     lpop, rpop, llen, lrange, lindex, lset, linsert, lrem, rpoplpush, blpop,
//     brpop, brpoplpush, flush, info) plus the control messages (success, error,
//     cancel). ParseMessageType maps a command name to its type.
//
//   - Cancellation: Blocking requests carry a CallID chosen by the client. A cancel
//     message with the same CallID ends the blocked command on the server. The
//     blocked command still answers, a command that got its element before the
//     cancel arrived answers with that element.
//
//   - ServerConfig / ClientConfig: Configuration of servers (shards, endpoint,
//     buffer size, metrics endpoint) and clients (endpoints, timeout, retries).
//
//   - Logger: Custom logger factory for dragonboat's logger package, which is used
//     for all logging in dList. InitLoggers installs it and sets the log level.
package common
