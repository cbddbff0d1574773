package lstore

import (
	"container/list"
	"fmt"
	"github.com/ValentinKolb/dList/lib/db"
	"github.com/ValentinKolb/dList/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
)

var log = logger.GetLogger("store")

// storeImpl is the single-node list store.
//
// One mutex guards the key space, the waiter queues and the waiter registry.
// Every command (including both halves of a move and the wake-up of blocked
// clients caused by it) runs inside a single critical section.
type storeImpl struct {
	mu sync.Mutex
	ks db.KeySpace

	// blocking coordinator state, see blocking.go
	queues   map[string]*list.List // FIFO of *waiter per key, absent if empty
	waiters  map[uint64]*waiter    // all waiters in state WAITING
	ready    []string              // keys that received elements during the current command
	readySet map[string]struct{}
	nextID   uint64
	reaper   *reaper
	closed   bool
}

// NewLocalStore creates a new local list store using the key space created by factory.
// The store starts a background goroutine for blocking timeouts, call Close to stop it.
func NewLocalStore(factory store.KeySpaceFactory) store.IListStore {
	s := &storeImpl{
		ks:       factory(),
		queues:   make(map[string]*list.List),
		waiters:  make(map[uint64]*waiter),
		readySet: make(map[string]struct{}),
	}
	s.reaper = newReaper(s.expire)
	return s
}

// --------------------------------------------------------------------------
// Internal helpers (must be called with s.mu held)
// --------------------------------------------------------------------------

// push adds value to the head or tail of key and wakes clients blocked on key
func (s *storeImpl) push(key string, value []byte, head bool) int {
	l := s.ks.GetOrCreate(key)
	var n int
	if head {
		n = l.PushHead(value)
	} else {
		n = l.PushTail(value)
	}
	s.markReady(key)
	return n
}

// pop removes the head or tail of key, dropping the key if it becomes empty
func (s *storeImpl) pop(key string, head bool) ([]byte, bool) {
	l, ok := s.ks.Lookup(key)
	if !ok {
		return nil, false
	}
	var v []byte
	if head {
		v, ok = l.PopHead()
	} else {
		v, ok = l.PopTail()
	}
	s.ks.RemoveIfEmpty(key)
	return v, ok
}

// move pops the tail of src and pushes it to the head of dst
func (s *storeImpl) move(src, dst string) ([]byte, bool) {
	v, ok := s.pop(src, false)
	if !ok {
		return nil, false
	}
	s.push(dst, v, true)
	return v, true
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) PushHead(key string, value []byte) (int, error) {
	countCommand("lpush")
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.push(key, value, true)
	s.serveReady()
	return n, nil
}

func (s *storeImpl) PushTail(key string, value []byte) (int, error) {
	countCommand("rpush")
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.push(key, value, false)
	s.serveReady()
	return n, nil
}

func (s *storeImpl) PushHeadIfExists(key string, value []byte) (int, error) {
	countCommand("lpushx")
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ks.Lookup(key); !ok {
		return 0, nil
	}
	n := s.push(key, value, true)
	s.serveReady()
	return n, nil
}

func (s *storeImpl) PushTailIfExists(key string, value []byte) (int, error) {
	countCommand("rpushx")
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ks.Lookup(key); !ok {
		return 0, nil
	}
	n := s.push(key, value, false)
	s.serveReady()
	return n, nil
}

func (s *storeImpl) PopHead(key string) ([]byte, bool, error) {
	countCommand("lpop")
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.pop(key, true)
	return v, ok, nil
}

func (s *storeImpl) PopTail(key string) ([]byte, bool, error) {
	countCommand("rpop")
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.pop(key, false)
	return v, ok, nil
}

func (s *storeImpl) Length(key string) (int, error) {
	countCommand("llen")
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ks.Lookup(key)
	if !ok {
		return 0, nil
	}
	return l.Len(), nil
}

func (s *storeImpl) Range(key string, start, stop int) ([][]byte, error) {
	countCommand("lrange")
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ks.Lookup(key)
	if !ok {
		return [][]byte{}, nil
	}
	return l.Range(start, stop), nil
}

func (s *storeImpl) IndexGet(key string, index int) ([]byte, bool, error) {
	countCommand("lindex")
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ks.Lookup(key)
	if !ok {
		return nil, false, nil
	}
	v, ok := l.Index(index)
	return v, ok, nil
}

func (s *storeImpl) IndexSet(key string, index int, value []byte) error {
	countCommand("lset")
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ks.Lookup(key)
	if !ok {
		return store.NewError(store.RetCIndexOutOfRange, fmt.Sprintf("no such key %q", key))
	}
	if !l.Set(index, value) {
		return store.NewError(store.RetCIndexOutOfRange, fmt.Sprintf("index %d out of range for length %d", index, l.Len()))
	}
	return nil
}

func (s *storeImpl) InsertRelative(key string, pivot, value []byte, pos store.Position) (bool, error) {
	countCommand("linsert")
	if pos != store.PositionBefore && pos != store.PositionAfter {
		return false, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown position %d", pos))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ks.Lookup(key)
	if !ok {
		return false, nil
	}
	at := l.Find(pivot)
	if at < 0 {
		return false, nil
	}
	if pos == store.PositionAfter {
		at++
	}
	l.InsertAt(at, value)
	s.markReady(key)
	s.serveReady()
	return true, nil
}

func (s *storeImpl) RemoveMatching(key string, value []byte, count int) (int, error) {
	countCommand("lrem")
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ks.Lookup(key)
	if !ok {
		return 0, nil
	}
	removed := l.RemoveMatching(value, count)
	s.ks.RemoveIfEmpty(key)
	return removed, nil
}

func (s *storeImpl) MoveTailToHead(src, dst string) ([]byte, bool, error) {
	countCommand("rpoplpush")
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.move(src, dst)
	if ok {
		s.serveReady()
	}
	return v, ok, nil
}

func (s *storeImpl) Reset() error {
	countCommand("flush")
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ks.Reset()
	return nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	countCommand("info")
	s.mu.Lock()
	defer s.mu.Unlock()

	info := s.ks.GetInfo()
	info.Metadata = &struct {
		KeySpace       interface{} `json:"key_space"`
		BlockedClients int         `json:"blocked_clients"`
		BlockedKeys    int         `json:"blocked_keys"`
	}{
		KeySpace:       info.Metadata,
		BlockedClients: len(s.waiters),
		BlockedKeys:    len(s.queues),
	}
	return info, nil
}

// Close cancels all blocked clients and stops the timeout goroutine.
// Blocked calls return without a result. Afterwards blocking calls fail, the other
// commands keep working on the key space.
func (s *storeImpl) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	n := len(s.waiters)
	for _, w := range s.waiters {
		s.finish(w, stateCancelled)
	}
	s.mu.Unlock()

	s.reaper.stop()
	if n > 0 {
		log.Infof("closed store, released %d blocked clients", n)
	}
	return nil
}
