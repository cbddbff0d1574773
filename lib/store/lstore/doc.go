// Package lstore implements a local, in-memory, single-node list store based on the
// store.IListStore interface. Data is stored entirely in memory and is not
// persisted between process restarts.
//
// Key Features:
//   - All list commands with index normalization shared through the db package
//   - Blocking pops and moves over several keys with FIFO fairness and timeouts
//   - Linearizable execution of every command, including multi-key moves
//   - Metrics about commands and blocked clients
//
// Implementation Details:
//
//   - Locking: One mutex guards the key space (db.KeySpace), the waiter queues and
//     the waiter registry. Every command runs completely inside this critical
//     section, which makes each command atomic and the whole store linearizable.
//     Blocked clients wait on a per-waiter channel with the lock released.
//
//   - Waiters: A blocking call that finds all its keys empty registers a waiter
//     and appends it to the FIFO queue of each of its (deduplicated) keys. A waiter
//     goes from WAITING into exactly one final state: SATISFIED, TIMEOUT or
//     CANCELLED. The transition happens under the store lock and unlinks the
//     waiter from all queues, so it can never consume an element twice.
//
//   - Wake-up: Every command that adds elements to a key marks the key as ready.
//     Before the command releases the lock, the store serves the ready keys: while
//     a ready key is non-empty and has waiters, the earliest waiter is served from
//     the first non-empty of its own keys (in the order the client gave them).
//     A served move pushes to its destination, which in turn becomes ready. Since
//     this happens in the same critical section as the push, no wake-up can be lost
//     and no other client can steal the element in between.
//
//   - Timeouts: A reaper goroutine keeps the deadlines of all waiters in a
//     util.MapHeap. Registrations arrive over a util.LockFreeMPSC so the store
//     never blocks on the reaper. Expired waiters are moved to TIMEOUT under the
//     store lock, unless they were satisfied first.
//
//   - Cancellation: If the context of a blocked call is done, the caller takes the
//     lock and cancels its waiter. If the waiter was already satisfied, the result
//     is returned instead and the element is not lost.
//
// Metrics:
//
//	dlist_commands_total{cmd="..."}  number of executed commands per command name
//	dlist_waiters_blocked            number of currently blocked clients
//	dlist_blocking_wait_seconds      time clients spent blocked
//	dlist_blocking_timeouts_total    number of blocking calls that timed out
//
// Usage Example:
//
//	// Create a store with a maple key space
//	factory := func() db.KeySpace { return maple.NewMapleKeySpace(nil) }
//	s := lstore.NewLocalStore(factory)
//	defer s.Close()
//
//	// Producer
//	_, err := s.PushTail("jobs", []byte("job-1"))
//
//	// Consumer, waiting up to 5 seconds
//	key, job, ok, err := s.BlockingPopHead(ctx, []string{"jobs"}, 5*time.Second)
package lstore
