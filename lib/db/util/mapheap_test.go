package util

import (
	"math/rand"
	"sort"
	"testing"
)

func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap()

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}
	if _, ok := mh.Peek(); ok {
		t.Errorf("Peek on an empty heap should return false")
	}
	if _, ok := mh.PopMin(); ok {
		t.Errorf("PopMin on an empty heap should return false")
	}
}

func TestAddItemAndPeek(t *testing.T) {
	mh := NewMapHeap()
	mh.AddItem(1, 100)
	mh.AddItem(2, 200)
	mh.AddItem(3, 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}
	for _, key := range []uint64{1, 2, 3} {
		if !mh.Contains(key) {
			t.Errorf("Heap should contain key %d", key)
		}
	}

	it, ok := mh.Peek()
	if !ok {
		t.Fatal("Peek() should return an item")
	}
	if it.Key != 3 || it.Priority != 50 {
		t.Errorf("Expected min item to be (3,50), got %s", it)
	}
}

func TestAddItemUpdatesPriority(t *testing.T) {
	mh := NewMapHeap()
	mh.AddItem(1, 100)
	mh.AddItem(2, 200)

	// move key 2 to the front
	mh.AddItem(2, 10)

	if mh.Len() != 2 {
		t.Errorf("Updating an item must not add a new one, length is %d", mh.Len())
	}
	it, _ := mh.Peek()
	if it.Key != 2 {
		t.Errorf("Expected key 2 at the front after update, got %d", it.Key)
	}

	got, ok := mh.GetByKey(2)
	if !ok || got.Priority != 10 {
		t.Errorf("Expected priority 10 for key 2, got %v", got)
	}
}

func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap()
	mh.AddItem(1, 100)
	mh.AddItem(2, 50)
	mh.AddItem(3, 150)

	priority, ok := mh.RemoveByKey(2)
	if !ok || priority != 50 {
		t.Errorf("Expected to remove key 2 with priority 50, got %d (%v)", priority, ok)
	}
	if mh.Contains(2) {
		t.Errorf("Key 2 should be gone after RemoveByKey")
	}
	if _, ok := mh.RemoveByKey(2); ok {
		t.Errorf("Removing a key twice should fail")
	}

	it, _ := mh.Peek()
	if it.Key != 1 {
		t.Errorf("Expected key 1 at the front, got %d", it.Key)
	}
}

func TestPopExpired(t *testing.T) {
	mh := NewMapHeap()
	mh.AddItem(10, 300)
	mh.AddItem(11, 100)
	mh.AddItem(12, 200)
	mh.AddItem(13, 400)

	expired := mh.PopExpired(250)
	if len(expired) != 2 || expired[0] != 11 || expired[1] != 12 {
		t.Errorf("Expected keys [11 12], got %v", expired)
	}
	if mh.Len() != 2 {
		t.Errorf("Expected 2 remaining items, got %d", mh.Len())
	}

	if expired := mh.PopExpired(50); len(expired) != 0 {
		t.Errorf("Expected no expired keys, got %v", expired)
	}
}

func TestHeapOrderRandom(t *testing.T) {
	mh := NewMapHeap()
	r := rand.New(rand.NewSource(1))

	priorities := make([]uint64, 0, 1000)
	for i := 0; i < 1000; i++ {
		p := uint64(r.Intn(100000))
		priorities = append(priorities, p)
		mh.AddItem(uint64(i), p)
	}

	// remove some keys to exercise heap.Remove
	for i := 0; i < 1000; i += 3 {
		mh.RemoveByKey(uint64(i))
	}
	var remaining []uint64
	for i := 0; i < 1000; i++ {
		if i%3 != 0 {
			remaining = append(remaining, priorities[i])
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i] < remaining[j] })

	for i, want := range remaining {
		it, ok := mh.PopMin()
		if !ok {
			t.Fatalf("Heap ran empty after %d items", i)
		}
		if it.Priority != want {
			t.Fatalf("Item %d: expected priority %d, got %d", i, want, it.Priority)
		}
	}
	if mh.Len() != 0 {
		t.Errorf("Heap should be empty, has %d items", mh.Len())
	}
}
