// Package util
//
// This file provides a min-heap of (key, priority) pairs that also supports
// access by key. The blocking coordinator of the local store uses it as its
// deadline queue: the key is the id of a waiting client, the priority is the
// deadline in unix nanoseconds.
//
// Time Complexity:
//   - O(log n) for AddItem, RemoveByKey and PopMin
//   - O(1) for Peek, Contains and GetByKey
//
// Waiters that are satisfied or cancelled before their deadline are removed by
// key, so the heap only ever holds deadlines that may still fire.
//
// Thread-safety: MapHeap is not thread-safe. It is owned by a single goroutine
// (the deadline reaper) or guarded externally.
//
// Example usage:
//
//	deadlines := NewMapHeap()
//	deadlines.AddItem(waiterID, uint64(deadline.UnixNano()))
//
//	// waiter was satisfied in time
//	deadlines.RemoveByKey(waiterID)
//
//	// collect all waiters whose deadline passed
//	expired := deadlines.PopExpired(uint64(time.Now().UnixNano()))
package util

import (
	"container/heap"
	"strconv"
)

// HeapItem is an entry of a MapHeap
type HeapItem struct {
	Key      uint64 // Unique identifier for the item
	Priority uint64 // Smaller priorities are popped first
	index    int    // Index in the heap, maintained by heap package
}

func (i *HeapItem) String() string {
	return "{Key: " + strconv.FormatUint(i.Key, 10) + ", Priority: " + strconv.FormatUint(i.Priority, 10) + "}"
}

// MapHeap is a min-heap ordered by priority with O(1) access by key
type MapHeap struct {
	items    []*HeapItem          // The actual heap slice
	itemsMap map[uint64]*HeapItem // Map for O(1) access by key
}

// NewMapHeap creates a new empty heap
func NewMapHeap() *MapHeap {
	return &MapHeap{
		items:    make([]*HeapItem, 0),
		itemsMap: make(map[uint64]*HeapItem),
	}
}

// --------------------------------------------------------------------------
// heap.Interface
// --------------------------------------------------------------------------

// Len returns the number of items in the heap
func (mh *MapHeap) Len() int { return len(mh.items) }

func (mh *MapHeap) Less(i, j int) bool {
	return mh.items[i].Priority < mh.items[j].Priority
}

func (mh *MapHeap) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push is used by the heap package, use AddItem instead
func (mh *MapHeap) Push(x interface{}) {
	it := x.(*HeapItem)
	it.index = len(mh.items)
	mh.items = append(mh.items, it)
	mh.itemsMap[it.Key] = it
}

// Pop is used by the heap package, use PopMin instead
func (mh *MapHeap) Pop() interface{} {
	old := mh.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1
	mh.items = old[:n-1]
	delete(mh.itemsMap, it.Key)
	return it
}

// --------------------------------------------------------------------------
// Key Based Operations
// --------------------------------------------------------------------------

// AddItem adds a new item or updates the priority of an existing one
func (mh *MapHeap) AddItem(key, priority uint64) {
	if it, exists := mh.itemsMap[key]; exists {
		it.Priority = priority
		heap.Fix(mh, it.index)
		return
	}
	heap.Push(mh, &HeapItem{
		Key:      key,
		Priority: priority,
	})
}

// RemoveByKey removes an item by its key and returns its priority
func (mh *MapHeap) RemoveByKey(key uint64) (uint64, bool) {
	it, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(mh, it.index)
	return it.Priority, true
}

// Contains checks if a key exists in the heap
func (mh *MapHeap) Contains(key uint64) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap) GetByKey(key uint64) (*HeapItem, bool) {
	it, exists := mh.itemsMap[key]
	return it, exists
}

// --------------------------------------------------------------------------
// Priority Based Operations
// --------------------------------------------------------------------------

// Peek returns the item with the smallest priority without removing it
func (mh *MapHeap) Peek() (*HeapItem, bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return mh.items[0], true
}

// PopMin removes and returns the item with the smallest priority
func (mh *MapHeap) PopMin() (*HeapItem, bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return heap.Pop(mh).(*HeapItem), true
}

// PopExpired removes all items with a priority <= limit and returns their keys
// in ascending priority order
func (mh *MapHeap) PopExpired(limit uint64) []uint64 {
	var keys []uint64
	for len(mh.items) > 0 && mh.items[0].Priority <= limit {
		it := heap.Pop(mh).(*HeapItem)
		keys = append(keys, it.Key)
	}
	return keys
}
