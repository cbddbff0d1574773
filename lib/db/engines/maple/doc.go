// Package maple implements the db.KeySpace interface with a set of hash-sharded
// maps. It is the key space used by the list stores.
//
// Key Components:
//
//   - mapleImpl: The central structure implementing db.KeySpace. It owns the
//     shards and keeps the number of keys so that Len is O(1).
//
//   - Shard: A partition of the key space holding a plain map from key to
//     *db.ListValue. Keys are distributed across shards in a two-step process:
//     1. String keys are converted to 64-bit integers using the HashString function
//     with a key space specific seed
//     2. The integer key is right-shifted by 7 bits to use higher-quality bits for
//     distribution
//
// Locking:
//
// The key space does not lock. Every store command runs inside the critical
// section of the owning store, which covers the key space and the waiter queues
// of the blocking coordinator at once. The key space must not be shared
// between stores.
//
// Empty Lists:
//
// GetOrCreate inserts an empty list which the caller fills immediately.
// RemoveIfEmpty drops a key once its list is drained. Lookup and Keys treat
// empty lists as absent, so even a caller that forgets RemoveIfEmpty can never
// make an empty list observable.
//
// Metrics and Monitoring:
//
// GetInfo reports exact key and element counts. Element sizes are estimated from
// a sample (at most 16 elements of at most 256 lists per shard) using a
// util.SizeHistogram. The metadata also contains the shard distribution and
// statistics about list lengths.
package maple
