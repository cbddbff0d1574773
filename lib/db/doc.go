// Package db provides the data model of the list store: the ListValue deque and
// the KeySpace interface mapping keys to lists.
//
// The package focuses on:
//   - A compact, copy-safe list representation
//   - One set of index normalization rules shared by every command
//   - A KeySpace contract that keeps empty lists from ever becoming visible
//
// Key Components:
//
//   - ListValue: An ordered sequence of byte values backed by a growable ring buffer.
//     Head and tail operations are O(1) amortized, positional reads are O(1),
//     insertion and removal in the middle are O(n). All values are copied on the
//     way in and on the way out of a read, so callers can never alias list storage.
//
//   - Index normalization: NormalizeIndex and NormalizeRange implement the rules
//     used by all positional commands. For a list of length L a negative index i
//     denotes L+i. A single index outside [0, L-1] after normalization is out of
//     range. For inclusive ranges a start that stays negative becomes 0, a stop
//     beyond the end becomes L-1, and start > stop selects nothing.
//
//   - KeySpace Interface: The mapping from keys to lists. An absent key behaves
//     like an empty list for reads. Implementations are not synchronized, the
//     store that owns a KeySpace guards it with a single lock.
//
//   - Database Information: DatabaseInfo reports key and element counts, an
//     estimated size and implementation specific metadata.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/dList/lib/db/engines/maple)
// provides the hash-sharded KeySpace used by the stores.
//
// The util package (github.com/ValentinKolb/dList/lib/db/util) provides the
// size statistics used by GetDBInfo and the data structures used by the blocking
// coordinator of the local store:
//   - SizeHistogram: Utilities for analyzing data size distributions
//   - MapHeap: A priority queue with key based access, used as deadline queue
//   - LockFreeMPSC: A lock-free multi-producer single-consumer queue
//
// The testing package (github.com/ValentinKolb/dList/lib/db/testing) provides
// standardized tests and benchmarks for KeySpace implementations:
//   - RunKeySpaceTests: Runs a standardized test suite to validate implementations
//   - RunKeySpaceBenchmarks: Provides performance benchmarks for comparing implementations
package db
