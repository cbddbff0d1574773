package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dList/lib/store"
	"github.com/stretchr/testify/require"
)

// StoreFactory is a function that creates a new instance of an IListStore implementation.
// Instances may share state (e.g. remote clients of one server), every test resets the store first.
type StoreFactory func() store.IListStore

// RunListStoreTests runs the conformance suite for an IListStore implementation.
func RunListStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("PushRange", func(t *testing.T) { testPushRange(t, setup(t, factory)) })
		t.Run("PushIfExists", func(t *testing.T) { testPushIfExists(t, setup(t, factory)) })
		t.Run("Pop", func(t *testing.T) { testPop(t, setup(t, factory)) })
		t.Run("Length", func(t *testing.T) { testLength(t, setup(t, factory)) })
		t.Run("RangeBounds", func(t *testing.T) { testRangeBounds(t, setup(t, factory)) })
		t.Run("IndexGet", func(t *testing.T) { testIndexGet(t, setup(t, factory)) })
		t.Run("IndexSet", func(t *testing.T) { testIndexSet(t, setup(t, factory)) })
		t.Run("InsertRelative", func(t *testing.T) { testInsertRelative(t, setup(t, factory)) })
		t.Run("RemoveMatching", func(t *testing.T) { testRemoveMatching(t, setup(t, factory)) })
		t.Run("MoveTailToHead", func(t *testing.T) { testMoveTailToHead(t, setup(t, factory)) })
		t.Run("EmptyListsDisappear", func(t *testing.T) { testEmptyListsDisappear(t, setup(t, factory)) })
		t.Run("Reset", func(t *testing.T) { testReset(t, setup(t, factory)) })
		t.Run("BinaryValues", func(t *testing.T) { testBinaryValues(t, setup(t, factory)) })

		t.Run("BlockingInvalidArguments", func(t *testing.T) { testBlockingInvalidArguments(t, setup(t, factory)) })
		t.Run("BlockingPopImmediate", func(t *testing.T) { testBlockingPopImmediate(t, setup(t, factory)) })
		t.Run("BlockingPopTimeout", func(t *testing.T) { testBlockingPopTimeout(t, setup(t, factory)) })
		t.Run("BlockingPopWakeUp", func(t *testing.T) { testBlockingPopWakeUp(t, setup(t, factory)) })
		t.Run("BlockingPopFIFO", func(t *testing.T) { testBlockingPopFIFO(t, setup(t, factory)) })
		t.Run("BlockingPopKeyPriority", func(t *testing.T) { testBlockingPopKeyPriority(t, setup(t, factory)) })
		t.Run("BlockingPopDuplicateKeys", func(t *testing.T) { testBlockingPopDuplicateKeys(t, setup(t, factory)) })
		t.Run("BlockingMove", func(t *testing.T) { testBlockingMove(t, setup(t, factory)) })
		t.Run("BlockingMoveChain", func(t *testing.T) { testBlockingMoveChain(t, setup(t, factory)) })
		t.Run("BlockingCancel", func(t *testing.T) { testBlockingCancel(t, setup(t, factory)) })
		t.Run("ProducersConsumers", func(t *testing.T) { testProducersConsumers(t, setup(t, factory)) })
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// registerDelay is the time given to a blocking call to register before the test continues
const registerDelay = 100 * time.Millisecond

// setup creates a store, empties it and closes it at the end of the test
func setup(t *testing.T, factory StoreFactory) store.IListStore {
	s := factory()
	require.NoError(t, s.Reset())
	t.Cleanup(func() {
		_ = s.Reset()
		_ = s.Close()
	})
	return s
}

func rangeAll(t *testing.T, s store.IListStore, key string) []string {
	values, err := s.Range(key, 0, -1)
	require.NoError(t, err)
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

func pushTail(t *testing.T, s store.IListStore, key string, values ...string) {
	for _, v := range values {
		_, err := s.PushTail(key, []byte(v))
		require.NoError(t, err)
	}
}

type popResult struct {
	key   string
	value string
	ok    bool
	err   error
}

// blockingPopAsync starts a BlockingPopHead in the background
func blockingPopAsync(s store.IListStore, ctx context.Context, keys []string, timeout time.Duration) <-chan popResult {
	ch := make(chan popResult, 1)
	go func() {
		key, value, ok, err := s.BlockingPopHead(ctx, keys, timeout)
		ch <- popResult{key: key, value: string(value), ok: ok, err: err}
	}()
	return ch
}

func receive(t *testing.T, ch <-chan popResult) popResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("blocking call did not return")
	}
	return popResult{}
}

// --------------------------------------------------------------------------
// Test functions: Command Executor
// --------------------------------------------------------------------------

func testPushRange(t *testing.T, s store.IListStore) {
	n, err := s.PushHead("foo", []byte("bar"))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = s.PushHead("foo", []byte("baz"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	require.Equal(t, []string{"baz", "bar"}, rangeAll(t, s, "foo"))

	n, err = s.PushTail("foo", []byte("qux"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []string{"baz", "bar", "qux"}, rangeAll(t, s, "foo"))
}

func testPushIfExists(t *testing.T, s store.IListStore) {
	n, err := s.PushHeadIfExists("foo", []byte("one"))
	require.NoError(t, err)
	require.Equal(t, 0, n)
	n, err = s.PushTailIfExists("foo", []byte("one"))
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, rangeAll(t, s, "foo"))

	pushTail(t, s, "foo", "two")
	n, err = s.PushHeadIfExists("foo", []byte("one"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	n, err = s.PushTailIfExists("foo", []byte("three"))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []string{"one", "two", "three"}, rangeAll(t, s, "foo"))
}

func testPop(t *testing.T, s store.IListStore) {
	_, ok, err := s.PopHead("foo")
	require.NoError(t, err)
	require.False(t, ok)

	pushTail(t, s, "foo", "one", "two", "three")

	v, ok, err := s.PopHead("foo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "one", string(v))

	v, ok, err = s.PopTail("foo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "three", string(v))

	require.Equal(t, []string{"two"}, rangeAll(t, s, "foo"))
}

func testLength(t *testing.T, s store.IListStore) {
	n, err := s.Length("foo")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	pushTail(t, s, "foo", "one", "two", "three")
	n, err = s.Length("foo")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func testRangeBounds(t *testing.T, s store.IListStore) {
	pushTail(t, s, "foo", "one", "two", "three")

	check := func(start, stop int, expected ...string) {
		values, err := s.Range("foo", start, stop)
		require.NoError(t, err)
		got := make([]string, 0, len(values))
		for _, v := range values {
			got = append(got, string(v))
		}
		if expected == nil {
			expected = []string{}
		}
		require.Equal(t, expected, got, "range %d..%d", start, stop)
	}

	check(0, -1, "one", "two", "three")
	check(0, 0, "one")
	check(-2, -1, "two", "three")
	check(-100, 100, "one", "two", "three")
	check(1, 100, "two", "three")
	check(2, 1)
	check(5, 10)

	values, err := s.Range("absent", 0, -1)
	require.NoError(t, err)
	require.Empty(t, values)
}

func testIndexGet(t *testing.T, s store.IListStore) {
	_, ok, err := s.IndexGet("foo", 0)
	require.NoError(t, err)
	require.False(t, ok)

	pushTail(t, s, "foo", "one", "two")

	v, ok, err := s.IndexGet("foo", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "one", string(v))

	v, ok, err = s.IndexGet("foo", -1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", string(v))

	_, ok, err = s.IndexGet("foo", 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func testIndexSet(t *testing.T, s store.IListStore) {
	err := s.IndexSet("foo", 0, []byte("x"))
	require.Error(t, err)
	require.True(t, store.IsIndexOutOfRange(err), "unexpected error %v", err)
	require.Empty(t, rangeAll(t, s, "foo"))

	pushTail(t, s, "foo", "one", "two", "three")

	require.NoError(t, s.IndexSet("foo", 0, []byte("four")))
	require.NoError(t, s.IndexSet("foo", -1, []byte("five")))
	require.Equal(t, []string{"four", "two", "five"}, rangeAll(t, s, "foo"))

	err = s.IndexSet("foo", 3, []byte("six"))
	require.True(t, store.IsIndexOutOfRange(err), "unexpected error %v", err)
	err = s.IndexSet("foo", -4, []byte("six"))
	require.True(t, store.IsIndexOutOfRange(err), "unexpected error %v", err)

	// failed updates leave the list untouched
	require.Equal(t, []string{"four", "two", "five"}, rangeAll(t, s, "foo"))
}

func testInsertRelative(t *testing.T, s store.IListStore) {
	inserted, err := s.InsertRelative("foo", []byte("one"), []byte("x"), store.PositionBefore)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Empty(t, rangeAll(t, s, "foo"))

	pushTail(t, s, "foo", "one", "two", "three")

	inserted, err = s.InsertRelative("foo", []byte("two"), []byte("too"), store.PositionBefore)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, []string{"one", "too", "two", "three"}, rangeAll(t, s, "foo"))

	inserted, err = s.InsertRelative("foo", []byte("three"), []byte("four"), store.PositionAfter)
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, []string{"one", "too", "two", "three", "four"}, rangeAll(t, s, "foo"))

	inserted, err = s.InsertRelative("foo", []byte("missing"), []byte("x"), store.PositionAfter)
	require.NoError(t, err)
	require.False(t, inserted)
	require.Equal(t, 5, len(rangeAll(t, s, "foo")))
}

func testRemoveMatching(t *testing.T, s store.IListStore) {
	fresh := func() {
		require.NoError(t, s.Reset())
		pushTail(t, s, "foo", "same", "same", "same", "other", "same")
	}

	fresh()
	removed, err := s.RemoveMatching("foo", []byte("same"), 2)
	require.NoError(t, err)
	require.Equal(t, 2, removed)
	require.Equal(t, []string{"same", "other", "same"}, rangeAll(t, s, "foo"))

	fresh()
	removed, err = s.RemoveMatching("foo", []byte("same"), -2)
	require.NoError(t, err)
	require.Equal(t, 2, removed)
	require.Equal(t, []string{"same", "same", "other"}, rangeAll(t, s, "foo"))

	fresh()
	removed, err = s.RemoveMatching("foo", []byte("same"), 0)
	require.NoError(t, err)
	require.Equal(t, 4, removed)
	require.Equal(t, []string{"other"}, rangeAll(t, s, "foo"))

	removed, err = s.RemoveMatching("foo", []byte("missing"), 0)
	require.NoError(t, err)
	require.Equal(t, 0, removed)

	removed, err = s.RemoveMatching("absent", []byte("same"), 0)
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}

func testMoveTailToHead(t *testing.T, s store.IListStore) {
	_, ok, err := s.MoveTailToHead("foo", "bar")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, rangeAll(t, s, "bar"))

	pushTail(t, s, "foo", "one", "two")
	pushTail(t, s, "bar", "one")

	v, ok, err := s.MoveTailToHead("foo", "bar")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", string(v))
	require.Equal(t, []string{"one"}, rangeAll(t, s, "foo"))
	require.Equal(t, []string{"two", "one"}, rangeAll(t, s, "bar"))

	// same key rotates the list
	pushTail(t, s, "rot", "a", "b", "c")
	v, ok, err = s.MoveTailToHead("rot", "rot")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "c", string(v))
	require.Equal(t, []string{"c", "a", "b"}, rangeAll(t, s, "rot"))
}

func testEmptyListsDisappear(t *testing.T, s store.IListStore) {
	pushTail(t, s, "foo", "one")
	_, _, err := s.PopTail("foo")
	require.NoError(t, err)

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	require.Equal(t, 0, info.Keys)

	pushTail(t, s, "bar", "x", "x")
	_, err = s.RemoveMatching("bar", []byte("x"), 0)
	require.NoError(t, err)

	pushTail(t, s, "baz", "y")
	_, _, err = s.MoveTailToHead("baz", "qux")
	require.NoError(t, err)

	info, err = s.GetDBInfo()
	require.NoError(t, err)
	require.Equal(t, 1, info.Keys) // only qux
	require.Equal(t, 1, info.Elements)
}

func testReset(t *testing.T, s store.IListStore) {
	pushTail(t, s, "foo", "one")
	pushTail(t, s, "bar", "two")

	require.NoError(t, s.Reset())

	n, err := s.Length("foo")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	require.Equal(t, 0, info.Keys)
}

func testBinaryValues(t *testing.T, s store.IListStore) {
	values := [][]byte{{}, {0x00}, {0xff, 0x00, 0x10}, []byte("ü")}
	for _, v := range values {
		_, err := s.PushTail("bin", v)
		require.NoError(t, err)
	}

	got, err := s.Range("bin", 0, -1)
	require.NoError(t, err)
	require.Len(t, got, len(values))
	for i := range values {
		require.Equal(t, len(values[i]), len(got[i]))
		if len(values[i]) > 0 {
			require.Equal(t, values[i], got[i])
		}
	}
}

// --------------------------------------------------------------------------
// Test functions: Blocking Coordinator
// --------------------------------------------------------------------------

func testBlockingInvalidArguments(t *testing.T, s store.IListStore) {
	ctx := context.Background()

	_, _, _, err := s.BlockingPopHead(ctx, nil, time.Second)
	require.True(t, store.IsInvalidOperation(err), "unexpected error %v", err)

	_, _, _, err = s.BlockingPopTail(ctx, []string{"foo"}, -time.Second)
	require.True(t, store.IsInvalidOperation(err), "unexpected error %v", err)

	_, _, err = s.BlockingMoveTailToHead(ctx, "foo", "bar", -time.Second)
	require.True(t, store.IsInvalidOperation(err), "unexpected error %v", err)
}

func testBlockingPopImmediate(t *testing.T, s store.IListStore) {
	ctx := context.Background()
	pushTail(t, s, "foo", "one", "two")
	pushTail(t, s, "bar", "three")

	// keys are tried in caller order
	key, v, ok, err := s.BlockingPopHead(ctx, []string{"baz", "bar", "foo"}, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bar", key)
	require.Equal(t, "three", string(v))

	// bar is now empty, foo is next
	key, v, ok, err = s.BlockingPopHead(ctx, []string{"bar", "foo"}, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "foo", key)
	require.Equal(t, "one", string(v))

	key, v, ok, err = s.BlockingPopTail(ctx, []string{"bar", "foo"}, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "foo", key)
	require.Equal(t, "two", string(v))
}

func testBlockingPopTimeout(t *testing.T, s store.IListStore) {
	start := time.Now()
	_, _, ok, err := s.BlockingPopHead(context.Background(), []string{"foo", "bar"}, 200*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.False(t, ok)
	require.GreaterOrEqual(t, elapsed, 190*time.Millisecond)
	require.Less(t, elapsed, 3*time.Second)

	_, ok, err = s.BlockingMoveTailToHead(context.Background(), "foo", "bar", 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, rangeAll(t, s, "bar"))
}

func testBlockingPopWakeUp(t *testing.T, s store.IListStore) {
	ch := blockingPopAsync(s, context.Background(), []string{"foo"}, 0)
	time.Sleep(registerDelay)

	_, err := s.PushTail("foo", []byte("one"))
	require.NoError(t, err)

	r := receive(t, ch)
	require.NoError(t, r.err)
	require.True(t, r.ok)
	require.Equal(t, "foo", r.key)
	require.Equal(t, "one", r.value)

	// the element was handed over, not left in the list
	n, err := s.Length("foo")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func testBlockingPopFIFO(t *testing.T, s store.IListStore) {
	first := blockingPopAsync(s, context.Background(), []string{"foo"}, 5*time.Second)
	time.Sleep(registerDelay)
	second := blockingPopAsync(s, context.Background(), []string{"foo"}, 5*time.Second)
	time.Sleep(registerDelay)

	pushTail(t, s, "foo", "one")
	r := receive(t, first)
	require.True(t, r.ok)
	require.Equal(t, "one", r.value)

	pushTail(t, s, "foo", "two")
	r = receive(t, second)
	require.True(t, r.ok)
	require.Equal(t, "two", r.value)
}

func testBlockingPopKeyPriority(t *testing.T, s store.IListStore) {
	// bar and foo are empty, the client waits on both
	ch := blockingPopAsync(s, context.Background(), []string{"bar", "foo"}, 5*time.Second)
	time.Sleep(registerDelay)

	pushTail(t, s, "foo", "one")
	r := receive(t, ch)
	require.True(t, r.ok)
	require.Equal(t, "foo", r.key)
	require.Equal(t, "one", r.value)

	ch = blockingPopAsync(s, context.Background(), []string{"bar", "foo"}, 5*time.Second)
	time.Sleep(registerDelay)

	pushTail(t, s, "bar", "two")
	r = receive(t, ch)
	require.True(t, r.ok)
	require.Equal(t, "bar", r.key)
	require.Equal(t, "two", r.value)
}

func testBlockingPopDuplicateKeys(t *testing.T, s store.IListStore) {
	ch := blockingPopAsync(s, context.Background(), []string{"foo", "foo", "bar", "foo"}, 5*time.Second)
	time.Sleep(registerDelay)

	pushTail(t, s, "foo", "one", "two")
	r := receive(t, ch)
	require.True(t, r.ok)
	require.Equal(t, "one", r.value)

	// a duplicated key must not consume a second element
	require.Equal(t, []string{"two"}, rangeAll(t, s, "foo"))
}

func testBlockingMove(t *testing.T, s store.IListStore) {
	ctx := context.Background()

	// immediate
	pushTail(t, s, "foo", "one", "two")
	v, ok, err := s.BlockingMoveTailToHead(ctx, "foo", "bar", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "two", string(v))
	require.Equal(t, []string{"two"}, rangeAll(t, s, "bar"))

	// blocking
	type moveResult struct {
		value string
		ok    bool
		err   error
	}
	ch := make(chan moveResult, 1)
	go func() {
		v, ok, err := s.BlockingMoveTailToHead(ctx, "src", "dst", 5*time.Second)
		ch <- moveResult{string(v), ok, err}
	}()
	time.Sleep(registerDelay)

	pushTail(t, s, "src", "x")
	select {
	case r := <-ch:
		require.NoError(t, r.err)
		require.True(t, r.ok)
		require.Equal(t, "x", r.value)
	case <-time.After(5 * time.Second):
		t.Fatalf("blocking move did not return")
	}
	require.Empty(t, rangeAll(t, s, "src"))
	require.Equal(t, []string{"x"}, rangeAll(t, s, "dst"))
}

func testBlockingMoveChain(t *testing.T, s store.IListStore) {
	ctx := context.Background()

	// a client blocked on dst is woken by a move that was itself blocked
	popCh := blockingPopAsync(s, ctx, []string{"dst"}, 5*time.Second)
	time.Sleep(registerDelay)

	moveDone := make(chan error, 1)
	go func() {
		_, _, err := s.BlockingMoveTailToHead(ctx, "src", "dst", 5*time.Second)
		moveDone <- err
	}()
	time.Sleep(registerDelay)

	pushTail(t, s, "src", "hop")

	r := receive(t, popCh)
	require.True(t, r.ok)
	require.Equal(t, "dst", r.key)
	require.Equal(t, "hop", r.value)

	select {
	case err := <-moveDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("blocking move did not return")
	}

	require.Empty(t, rangeAll(t, s, "src"))
	require.Empty(t, rangeAll(t, s, "dst"))
}

func testBlockingCancel(t *testing.T, s store.IListStore) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := blockingPopAsync(s, ctx, []string{"foo"}, 0)
	time.Sleep(registerDelay)

	cancel()
	r := receive(t, ch)
	require.ErrorIs(t, r.err, context.Canceled)
	require.False(t, r.ok)

	// the cancelled client must not consume later elements
	pushTail(t, s, "foo", "one")
	require.Equal(t, []string{"one"}, rangeAll(t, s, "foo"))
}

func testProducersConsumers(t *testing.T, s store.IListStore) {
	const producers = 4
	const consumers = 4
	const perProducer = 100
	total := producers * perProducer

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup

	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				done := len(seen) >= total
				mu.Unlock()
				if done {
					return
				}
				_, v, ok, err := s.BlockingPopHead(context.Background(), []string{"q1", "q2"}, 300*time.Millisecond)
				if err != nil {
					t.Errorf("blocking pop failed: %v", err)
					return
				}
				if ok {
					mu.Lock()
					seen[string(v)]++
					mu.Unlock()
				}
			}
		}()
	}

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			key := "q1"
			if p%2 == 1 {
				key = "q2"
			}
			for i := 0; i < perProducer; i++ {
				if _, err := s.PushTail(key, []byte(fmt.Sprintf("%d-%d", p, i))); err != nil {
					t.Errorf("push failed: %v", err)
					return
				}
			}
		}(p)
	}

	wg.Wait()

	require.Len(t, seen, total)
	for v, n := range seen {
		require.Equal(t, 1, n, "value %s consumed %d times", v, n)
	}
}
