// Package cmd implements the command-line interface of dList.
// It provides a hierarchical command structure with operations for running
// the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - list: Commands for every list operation (lpush, blpop, lrange, ...) and a perf tool
//   - serve: Command for starting and configuring the dList server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dlist -help for a list of all commands.
package cmd
