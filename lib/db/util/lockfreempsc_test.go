package util

import (
	"sync"
	"testing"
	"time"
)

// recvOne receives a single item or fails the test after the timeout
func recvOne[T any](t *testing.T, q *LockFreeMPSC[T], timeout time.Duration) *T {
	t.Helper()
	select {
	case v, ok := <-q.Recv():
		if !ok {
			t.Fatalf("Recv channel closed unexpectedly")
		}
		return v
	case <-time.After(timeout):
		t.Fatalf("Timeout waiting for item")
	}
	return nil
}

// TestPushRecv tests that items of a single producer arrive in order
func TestPushRecv(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	for i := 0; i < 100; i++ {
		v := i
		if !q.Push(&v) {
			t.Fatalf("Failed to push item %d", i)
		}
	}

	for i := 0; i < 100; i++ {
		if v := recvOne(t, q, time.Second); *v != i {
			t.Fatalf("Expected %d, got %d", i, *v)
		}
	}

	select {
	case v := <-q.Recv():
		t.Errorf("Queue should be empty, but got %v", *v)
	case <-time.After(10 * time.Millisecond):
	}
}

// TestPushNil tests that nil items are rejected
func TestPushNil(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	if q.Push(nil) {
		t.Errorf("Pushing nil should fail")
	}
}

// TestConcurrentProducers tests that no item is lost or duplicated under contention
func TestConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	const producers = 8
	const perProducer = 2000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := p*perProducer + i
				q.Push(&v)
			}
		}(p)
	}

	seen := make(map[int]bool, producers*perProducer)
	lastOfProducer := make(map[int]int)
	for i := 0; i < producers*perProducer; i++ {
		v := *recvOne(t, q, 2*time.Second)
		if seen[v] {
			t.Fatalf("Duplicate item %d", v)
		}
		seen[v] = true

		// items of one producer keep their order
		p := v / perProducer
		if last, ok := lastOfProducer[p]; ok && v < last {
			t.Fatalf("Producer %d: item %d received after %d", p, v, last)
		}
		lastOfProducer[p] = v
	}
	wg.Wait()
}

// TestClose tests that queued items are still delivered after Close
func TestClose(t *testing.T) {
	q := NewLockFreeMPSC[int]()

	for i := 0; i < 5; i++ {
		v := i
		q.Push(&v)
	}
	q.Close()

	if !q.IsClosed() {
		t.Errorf("IsClosed should report true after Close")
	}
	v := 100
	if q.Push(&v) {
		t.Errorf("Push after Close should fail")
	}

	for i := 0; i < 5; i++ {
		if got := recvOne(t, q, time.Second); *got != i {
			t.Errorf("Expected %d, got %d", i, *got)
		}
	}

	select {
	case _, ok := <-q.Recv():
		if ok {
			t.Errorf("Recv channel should be closed")
		}
	case <-time.After(time.Second):
		t.Errorf("Recv channel was not closed after Close")
	}
}

// TestIdleConsumerWakes tests that a sleeping consumer is woken by a late push
func TestIdleConsumerWakes(t *testing.T) {
	q := NewLockFreeMPSC[string]()
	defer q.Close()

	for i := 0; i < 50; i++ {
		time.Sleep(time.Millisecond)
		v := "late"
		q.Push(&v)
		if got := recvOne(t, q, time.Second); *got != "late" {
			t.Fatalf("Expected 'late', got %s", *got)
		}
	}
}

func BenchmarkMultiProducer(b *testing.B) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	go func() {
		for range q.Recv() {
		}
	}()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			v := i
			q.Push(&v)
			i++
		}
	})
}
