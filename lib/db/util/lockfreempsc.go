// Package util
//
// This file provides a lock-free Multi-Producer Single-Consumer (MPSC) queue.
//
// Producers append to a linked list with compare-and-swap, a single internal
// goroutine forwards the values in list order to the channel returned by Recv.
// The local store uses it to hand deadline registrations from any number of
// blocking callers to the deadline reaper without taking the store lock.
//
// Properties:
//
//   - Push never blocks on the consumer and never fails unless the queue is closed
//   - Unbounded: the list grows as needed, limited only by available memory
//   - Items pushed by one goroutine are received in the order they were pushed.
//     Items of different producers are ordered by the moment their append succeeded.
//   - Close stops accepting items. Items already queued are still delivered, then
//     the Recv channel is closed.
package util

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node represents a single element in the queue
type node[T interface{}] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// LockFreeMPSC is a lock-free multi-producer single-consumer queue
type LockFreeMPSC[T interface{}] struct {
	head   atomic.Pointer[node[T]] // sentinel, only moved by the consumer
	tail   atomic.Pointer[node[T]]
	out    chan *T
	closed atomic.Bool

	// used by the consumer to sleep while the list is empty
	mu   sync.Mutex
	cond *sync.Cond
}

// NewLockFreeMPSC creates a new queue and starts its forwarding goroutine
func NewLockFreeMPSC[T interface{}]() *LockFreeMPSC[T] {
	sentinel := &node[T]{}

	q := &LockFreeMPSC[T]{
		out: make(chan *T),
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	go q.forward()

	return q
}

// Push appends an item to the queue.
// Returns false if the item is nil or the queue is closed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (q *LockFreeMPSC[T]) Push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	n := &node[T]{value: value}
	var spins uint8

	for {
		last := q.tail.Load()
		next := last.next.Load()

		if next == nil {
			if last.next.CompareAndSwap(nil, n) {
				// another producer may already have swung the tail, that is fine
				q.tail.CompareAndSwap(last, n)
				q.wake()
				return true
			}
		} else {
			// a producer appended but has not moved the tail yet, help it
			q.tail.CompareAndSwap(last, next)
		}

		// spin a few times under contention, then yield
		if spins < 10 {
			spins++
			for i := 0; i < 1<<spins; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the consumer. Signalling under the mutex guarantees the consumer
// is either before its emptiness check or already waiting.
func (q *LockFreeMPSC[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// forward moves items from the linked list to the output channel
func (q *LockFreeMPSC[T]) forward() {
	defer close(q.out)

	for {
		// deliver everything that is currently linked
		delivered := false
		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			delivered = true

			value := next.value
			q.head.Store(next)
			q.out <- value
			next.value = nil // next is the new sentinel
		}

		if delivered {
			continue
		}

		q.mu.Lock()
		if q.head.Load().next.Load() == nil {
			if q.closed.Load() {
				q.mu.Unlock()
				return
			}
			q.cond.Wait()
		}
		q.mu.Unlock()
	}
}

// Recv returns the channel the queued items are delivered on.
// The channel is closed after Close once all queued items were delivered.
func (q *LockFreeMPSC[T]) Recv() <-chan *T {
	return q.out
}

// Close stops accepting new items.
func (q *LockFreeMPSC[T]) Close() {
	q.closed.Store(true)
	q.wake()
}

// IsClosed returns true if the queue is closed.
func (q *LockFreeMPSC[T]) IsClosed() bool {
	return q.closed.Load()
}

// Len returns the number of items not yet handed to the output channel.
// This is O(n) and meant for debugging and tests.
func (q *LockFreeMPSC[T]) Len() int {
	count := 0
	for current := q.head.Load().next.Load(); current != nil; current = current.next.Load() {
		count++
	}
	return count
}
