package lstore

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/ValentinKolb/dList/lib/db"
	"github.com/ValentinKolb/dList/lib/db/engines/maple"
	"github.com/ValentinKolb/dList/lib/store"
	storetesting "github.com/ValentinKolb/dList/lib/store/testing"
	"github.com/stretchr/testify/require"
)

func newTestStore() *storeImpl {
	return NewLocalStore(func() db.KeySpace { return maple.NewMapleKeySpace(nil) }).(*storeImpl)
}

func Test(t *testing.T) {
	storetesting.RunListStoreTests(t, "LocalStore", func() store.IListStore {
		return newTestStore()
	})
}

// blockedCount returns the number of registered waiters
func blockedCount(s *storeImpl) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

func waitBlocked(t *testing.T, s *storeImpl, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return blockedCount(s) == n }, 2*time.Second, time.Millisecond)
}

func TestWaiterUnlinkedAfterTimeout(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	_, _, ok, err := s.BlockingPopHead(context.Background(), []string{"a", "b"}, 20*time.Millisecond)
	require.NoError(t, err)
	require.False(t, ok)

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Empty(t, s.waiters)
	require.Empty(t, s.queues)
}

func TestCloseReleasesWaiters(t *testing.T) {
	s := newTestStore()

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, _, ok, err := s.BlockingPopTail(context.Background(), []string{"foo"}, 0)
			if ok {
				err = context.DeadlineExceeded
			}
			done <- err
		}()
	}
	waitBlocked(t, s, 2)

	require.NoError(t, s.Close())
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatalf("waiter was not released by Close")
		}
	}

	// blocking calls on a closed store fail immediately, even if the key holds elements
	_, _, _, err := s.BlockingPopHead(context.Background(), []string{"foo"}, 0)
	require.ErrorIs(t, err, errClosed)

	// the other commands still work on the key space
	n, err := s.PushTail("foo", []byte("one"))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, _, _, err = s.BlockingPopHead(context.Background(), []string{"foo"}, 0)
	require.ErrorIs(t, err, errClosed)
	_, _, err = s.BlockingMoveTailToHead(context.Background(), "foo", "bar", 0)
	require.ErrorIs(t, err, errClosed)

	v, ok, err := s.PopHead("foo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "one", string(v))

	// closing twice is fine
	require.NoError(t, s.Close())
}

func TestHugeTimeoutHasNoDeadline(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	done := make(chan string, 1)
	go func() {
		_, v, _, _ := s.BlockingPopHead(context.Background(), []string{"k"}, time.Duration(math.MaxInt64))
		done <- string(v)
	}()
	waitBlocked(t, s, 1)

	// the deadline does not fit into unix nanoseconds, the waiter blocks indefinitely
	s.mu.Lock()
	var deadlines []time.Time
	for _, w := range s.waiters {
		deadlines = append(deadlines, w.deadline)
	}
	s.mu.Unlock()
	require.Len(t, deadlines, 1)
	require.True(t, deadlines[0].IsZero())

	_, err := s.PushTail("k", []byte("one"))
	require.NoError(t, err)
	select {
	case v := <-done:
		require.Equal(t, "one", v)
	case <-time.After(2 * time.Second):
		t.Fatalf("waiter was not served")
	}
}

func TestSatisfiedWaiterKeepsResultOnCancel(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	s.mu.Lock()
	w := s.enqueue(waitPopHead, []string{"foo"}, "", 0)
	// satisfy the waiter before the caller notices its cancellation
	s.push("foo", []byte("one"), false)
	s.serveReady()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.await(ctx, w))
	require.Equal(t, stateSatisfied, w.state)
	require.Equal(t, "one", string(w.value))

	n, _ := s.Length("foo")
	require.Equal(t, 0, n)
}

func TestCancelledWaiterIsUnlinked(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, _, err := s.BlockingPopHead(ctx, []string{"a", "b", "c"}, time.Minute)
		done <- err
	}()
	waitBlocked(t, s, 1)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	s.mu.Lock()
	require.Empty(t, s.queues)
	s.mu.Unlock()
}

func TestServeWakesWaitersAcrossKeys(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	// three clients blocked on overlapping keys, registered in this order
	results := make([]chan string, 3)
	keys := [][]string{{"a"}, {"b", "a"}, {"a", "b"}}
	for i := range keys {
		results[i] = make(chan string, 1)
		go func(i int) {
			key, v, _, _ := s.BlockingPopHead(context.Background(), keys[i], 5*time.Second)
			results[i] <- key + ":" + string(v)
		}(i)
		waitBlocked(t, s, i+1)
	}

	// two elements on a: the first two waiters of a's queue are served (clients 0 and 1)
	_, err := s.PushTail("a", []byte("x"))
	require.NoError(t, err)
	_, err = s.PushTail("a", []byte("y"))
	require.NoError(t, err)

	require.Equal(t, "a:x", <-results[0])
	require.Equal(t, "a:y", <-results[1])

	// client 2 is still waiting and is served from b
	_, err = s.PushTail("b", []byte("z"))
	require.NoError(t, err)
	require.Equal(t, "b:z", <-results[2])
}

func TestMoveRotateWakesWaiter(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	done := make(chan string, 1)
	go func() {
		v, _, _ := s.BlockingMoveTailToHead(context.Background(), "ring", "ring", 5*time.Second)
		done <- string(v)
	}()
	waitBlocked(t, s, 1)

	_, err := s.PushTail("ring", []byte("only"))
	require.NoError(t, err)
	require.Equal(t, "only", <-done)

	values, _ := s.Range("ring", 0, -1)
	require.Len(t, values, 1)
}

func TestGetDBInfoReportsBlockedClients(t *testing.T) {
	s := newTestStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.BlockingPopHead(ctx, []string{"a", "b"}, 0)
	waitBlocked(t, s, 1)

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	b, err := json.Marshal(info.Metadata)
	require.NoError(t, err)
	require.Contains(t, string(b), `"blocked_clients":1`)
	require.Contains(t, string(b), `"blocked_keys":2`)
}
