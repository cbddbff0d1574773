package lstore

import (
	"container/list"
	"context"
	"github.com/ValentinKolb/dList/lib/store"
	"math"
	"time"
)

// --------------------------------------------------------------------------
// Waiter
// --------------------------------------------------------------------------

type waiterKind uint8

const (
	waitPopHead waiterKind = iota // blocking pop from the head
	waitPopTail                   // blocking pop from the tail
	waitMove                      // blocking move from the tail of keys[0] to the head of dest
)

type waiterState uint8

const (
	stateWaiting   waiterState = iota // linked into the queues of all its keys
	stateSatisfied                    // got an element, result is set
	stateTimeout                      // deadline passed, no result
	stateCancelled                    // context done or store closed, no result
)

// waiter is a blocked client.
//
// All fields except done are guarded by the store lock. Once done is closed the
// waiter has reached its final state and is no longer referenced by the store.
type waiter struct {
	id    uint64
	kind  waiterKind
	keys  []string                 // candidate keys in priority order, without duplicates
	dest  string                   // destination of a move
	elems map[string]*list.Element // position in the queue of each candidate key

	deadline time.Time // zero if the waiter blocks indefinitely
	since    time.Time

	state waiterState
	key   string // key the element was taken from
	value []byte
	done  chan struct{}
}

// --------------------------------------------------------------------------
// Blocking Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) BlockingPopHead(ctx context.Context, keys []string, timeout time.Duration) (string, []byte, bool, error) {
	countCommand("blpop")
	return s.blockingPop(ctx, waitPopHead, keys, timeout)
}

func (s *storeImpl) BlockingPopTail(ctx context.Context, keys []string, timeout time.Duration) (string, []byte, bool, error) {
	countCommand("brpop")
	return s.blockingPop(ctx, waitPopTail, keys, timeout)
}

func (s *storeImpl) BlockingMoveTailToHead(ctx context.Context, src, dst string, timeout time.Duration) ([]byte, bool, error) {
	countCommand("brpoplpush")
	if err := validateTimeout(timeout); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, false, errClosed
	}
	if v, ok := s.move(src, dst); ok {
		s.serveReady()
		s.mu.Unlock()
		return v, true, nil
	}
	w := s.enqueue(waitMove, []string{src}, dst, timeout)
	s.mu.Unlock()

	if err := s.await(ctx, w); err != nil {
		return nil, false, err
	}
	if w.state != stateSatisfied {
		return nil, false, nil
	}
	return w.value, true, nil
}

func (s *storeImpl) blockingPop(ctx context.Context, kind waiterKind, keys []string, timeout time.Duration) (string, []byte, bool, error) {
	if len(keys) == 0 {
		return "", nil, false, store.NewError(store.RetCInvalidOperation, "at least one key is required")
	}
	if err := validateTimeout(timeout); err != nil {
		return "", nil, false, err
	}
	keys = uniqueKeys(keys)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", nil, false, errClosed
	}

	// fast path: the first non-empty key in caller order
	for _, key := range keys {
		if v, ok := s.pop(key, kind == waitPopHead); ok {
			s.mu.Unlock()
			return key, v, true, nil
		}
	}
	w := s.enqueue(kind, keys, "", timeout)
	s.mu.Unlock()

	if err := s.await(ctx, w); err != nil {
		return "", nil, false, err
	}
	if w.state != stateSatisfied {
		return "", nil, false, nil
	}
	return w.key, w.value, true, nil
}

// --------------------------------------------------------------------------
// Waiting
// --------------------------------------------------------------------------

var errClosed = store.NewError(store.RetCInternalError, "store is closed")

// maxDeadline is the latest deadline the reaper can represent in unix nanoseconds
var maxDeadline = time.Unix(0, math.MaxInt64)

func validateTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return store.NewError(store.RetCInvalidOperation, "timeout must not be negative")
	}
	return nil
}

// uniqueKeys drops repeated keys, keeping the first occurrence
func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// enqueue registers a new waiter at the end of the queue of each of its keys.
// Must be called with s.mu held.
func (s *storeImpl) enqueue(kind waiterKind, keys []string, dest string, timeout time.Duration) *waiter {
	s.nextID++
	now := time.Now()
	w := &waiter{
		id:    s.nextID,
		kind:  kind,
		keys:  keys,
		dest:  dest,
		elems: make(map[string]*list.Element, len(keys)),
		since: now,
		done:  make(chan struct{}),
	}

	for _, key := range keys {
		q, ok := s.queues[key]
		if !ok {
			q = list.New()
			s.queues[key] = q
		}
		w.elems[key] = q.PushBack(w)
	}
	s.waiters[w.id] = w

	// deadlines past the range of UnixNano are treated as no deadline
	if deadline := now.Add(timeout); timeout > 0 && deadline.Before(maxDeadline) {
		w.deadline = deadline
		s.reaper.add(w.id, w.deadline)
	}
	waitersBlocked.Inc()
	return w
}

// await blocks until the waiter reached a final state or ctx is done.
// A non-nil error is only returned if the waiter was cancelled by ctx, a waiter
// that was satisfied concurrently with the cancellation keeps its result.
func (s *storeImpl) await(ctx context.Context, w *waiter) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w.state == stateWaiting {
		s.finish(w, stateCancelled)
		return ctx.Err()
	}
	return nil
}

// finish moves a waiting waiter into a final state and unlinks it from the store.
// Must be called with s.mu held.
func (s *storeImpl) finish(w *waiter, state waiterState) {
	w.state = state
	for key, e := range w.elems {
		q := s.queues[key]
		q.Remove(e)
		if q.Len() == 0 {
			delete(s.queues, key)
		}
	}
	w.elems = nil
	delete(s.waiters, w.id)

	// an expired waiter was already dropped by the reaper
	if !w.deadline.IsZero() && state != stateTimeout {
		s.reaper.remove(w.id)
	}

	waitersBlocked.Dec()
	blockingWait.UpdateDuration(w.since)
	close(w.done)
}

// expire is called by the reaper with the ids of waiters whose deadline passed
func (s *storeImpl) expire(ids []uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		w, ok := s.waiters[id]
		if !ok || w.state != stateWaiting {
			continue
		}
		s.finish(w, stateTimeout)
		blockingTimeouts.Inc()
	}
}

// --------------------------------------------------------------------------
// Wake-up
// --------------------------------------------------------------------------

// markReady notes that key received elements. Must be called with s.mu held.
func (s *storeImpl) markReady(key string) {
	if _, ok := s.queues[key]; !ok {
		return
	}
	if _, ok := s.readySet[key]; ok {
		return
	}
	s.readySet[key] = struct{}{}
	s.ready = append(s.ready, key)
}

// serveReady hands elements of ready keys to their waiters in FIFO order.
// Must be called with s.mu held, before the command releases the lock.
func (s *storeImpl) serveReady() {
	for len(s.ready) > 0 {
		key := s.ready[0]
		s.ready = s.ready[1:]
		delete(s.readySet, key)

		for {
			q, ok := s.queues[key]
			if !ok {
				break
			}
			if _, ok := s.ks.Lookup(key); !ok {
				break
			}
			s.satisfy(q.Front().Value.(*waiter))
		}
	}
	s.ready = s.ready[:0]
}

// satisfy serves a waiter from the first non-empty of its keys.
// The caller guarantees that at least one of them is non-empty.
func (s *storeImpl) satisfy(w *waiter) {
	for _, key := range w.keys {
		var v []byte
		var ok bool
		switch w.kind {
		case waitPopHead:
			v, ok = s.pop(key, true)
		case waitPopTail:
			v, ok = s.pop(key, false)
		case waitMove:
			v, ok = s.move(key, w.dest)
		}
		if ok {
			w.key = key
			w.value = v
			s.finish(w, stateSatisfied)
			return
		}
	}

	// unreachable while the queues only hold waiters of empty keys
	log.Errorf("waiter %d queued on a non-empty key found no element", w.id)
	s.finish(w, stateCancelled)
}
