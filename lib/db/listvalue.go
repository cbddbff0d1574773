package db

import "bytes"

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	minListCapacity = 4 // initial capacity of the ring buffer
)

// --------------------------------------------------------------------------
// Index Normalization
// --------------------------------------------------------------------------

// NormalizeIndex converts a raw (possibly negative) index into a position in a
// list of the given length. Negative indices count from the tail (-1 is the last
// element). The boolean is false if the resulting position is outside [0, length-1].
func NormalizeIndex(index, length int) (int, bool) {
	if index < 0 {
		index += length
	}
	if index < 0 || index >= length {
		return 0, false
	}
	return index, true
}

// NormalizeRange converts raw inclusive range bounds into positions of a list of
// the given length. A negative start that is still negative after adding the
// length becomes 0, stop is clamped to length-1. The boolean is false if the
// range selects no element.
func NormalizeRange(start, stop, length int) (int, int, bool) {
	if start < 0 {
		start += length
	}
	if stop < 0 {
		stop += length
	}
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if start > stop || start >= length {
		return 0, 0, false
	}
	return start, stop, true
}

// --------------------------------------------------------------------------
// ListValue
// --------------------------------------------------------------------------

// ListValue is an ordered sequence of elements backed by a growable ring buffer.
// Pushing and popping at both ends is O(1) amortized, positional access is O(1).
//
// All values passed into a ListValue are copied, all values returned by read
// operations are copies. Popped values are handed out directly since the list
// no longer references them.
//
// Thread-safety: A ListValue is not thread-safe. It is owned by a KeySpace and
// guarded by the lock of the store using the KeySpace.
type ListValue struct {
	buf  [][]byte // ring buffer, len(buf) is the capacity
	head int      // position of the first element in buf
	size int      // number of elements
}

// NewListValue creates an empty list.
func NewListValue() *ListValue {
	return &ListValue{
		buf: make([][]byte, minListCapacity),
	}
}

// Len returns the number of elements in the list.
func (l *ListValue) Len() int {
	return l.size
}

// pos maps a logical position to a position in the ring buffer
func (l *ListValue) pos(i int) int {
	return (l.head + i) % len(l.buf)
}

// grow doubles the capacity if the buffer is full
func (l *ListValue) grow() {
	if l.size < len(l.buf) {
		return
	}
	newCap := len(l.buf) * 2
	if newCap < minListCapacity {
		newCap = minListCapacity
	}
	newBuf := make([][]byte, newCap)
	for i := 0; i < l.size; i++ {
		newBuf[i] = l.buf[l.pos(i)]
	}
	l.buf = newBuf
	l.head = 0
}

func copyValue(value []byte) []byte {
	c := make([]byte, len(value))
	copy(c, value)
	return c
}

// --------------------------------------------------------------------------
// Head / Tail Operations
// --------------------------------------------------------------------------

// PushHead inserts a value before the first element and returns the new length.
func (l *ListValue) PushHead(value []byte) int {
	l.grow()
	l.head = (l.head - 1 + len(l.buf)) % len(l.buf)
	l.buf[l.head] = copyValue(value)
	l.size++
	return l.size
}

// PushTail inserts a value after the last element and returns the new length.
func (l *ListValue) PushTail(value []byte) int {
	l.grow()
	l.buf[l.pos(l.size)] = copyValue(value)
	l.size++
	return l.size
}

// PopHead removes and returns the first element.
// The boolean is false if the list is empty.
func (l *ListValue) PopHead() ([]byte, bool) {
	if l.size == 0 {
		return nil, false
	}
	value := l.buf[l.head]
	l.buf[l.head] = nil // help the go gc
	l.head = l.pos(1)
	l.size--
	return value, true
}

// PopTail removes and returns the last element.
// The boolean is false if the list is empty.
func (l *ListValue) PopTail() ([]byte, bool) {
	if l.size == 0 {
		return nil, false
	}
	p := l.pos(l.size - 1)
	value := l.buf[p]
	l.buf[p] = nil
	l.size--
	return value, true
}

// --------------------------------------------------------------------------
// Positional Operations
// --------------------------------------------------------------------------

// Index returns a copy of the element at the raw (possibly negative) index.
// The boolean is false if the index is out of range.
func (l *ListValue) Index(index int) ([]byte, bool) {
	i, ok := NormalizeIndex(index, l.size)
	if !ok {
		return nil, false
	}
	return copyValue(l.buf[l.pos(i)]), true
}

// Set replaces the element at the raw (possibly negative) index.
// If the index is out of range the list is not modified and false is returned.
func (l *ListValue) Set(index int, value []byte) bool {
	i, ok := NormalizeIndex(index, l.size)
	if !ok {
		return false
	}
	l.buf[l.pos(i)] = copyValue(value)
	return true
}

// Range returns copies of the elements between the raw inclusive bounds start and stop.
// The result is never nil.
func (l *ListValue) Range(start, stop int) [][]byte {
	from, to, ok := NormalizeRange(start, stop, l.size)
	if !ok {
		return [][]byte{}
	}
	result := make([][]byte, 0, to-from+1)
	for i := from; i <= to; i++ {
		result = append(result, copyValue(l.buf[l.pos(i)]))
	}
	return result
}

// Values returns copies of all elements from head to tail.
func (l *ListValue) Values() [][]byte {
	return l.Range(0, -1)
}

// Find returns the position of the first element equal to pivot (scanning
// from head to tail), or -1 if there is none.
func (l *ListValue) Find(pivot []byte) int {
	for i := 0; i < l.size; i++ {
		if bytes.Equal(l.buf[l.pos(i)], pivot) {
			return i
		}
	}
	return -1
}

// InsertAt inserts a value so that it ends up at position at (0 <= at <= Len()).
// Elements from at onwards move one position towards the tail.
// Positions outside this range are ignored.
func (l *ListValue) InsertAt(at int, value []byte) {
	if at < 0 || at > l.size {
		return
	}
	if at == 0 {
		l.PushHead(value)
		return
	}
	l.grow()
	for i := l.size; i > at; i-- {
		l.buf[l.pos(i)] = l.buf[l.pos(i-1)]
	}
	l.buf[l.pos(at)] = copyValue(value)
	l.size++
}

// RemoveMatching removes elements equal to value and returns how many were removed.
//
//   - count == 0: remove all matches
//   - count > 0: remove the first count matches scanning from head to tail
//   - count < 0: remove the last |count| matches scanning from tail to head
func (l *ListValue) RemoveMatching(value []byte, count int) int {
	if l.size == 0 {
		return 0
	}

	// mark the positions to remove
	remove := make([]bool, l.size)
	removed := 0
	if count >= 0 {
		for i := 0; i < l.size && (count == 0 || removed < count); i++ {
			if bytes.Equal(l.buf[l.pos(i)], value) {
				remove[i] = true
				removed++
			}
		}
	} else {
		// -count overflows for math.MinInt
		limit := l.size
		if count > -l.size {
			limit = -count
		}
		for i := l.size - 1; i >= 0 && removed < limit; i-- {
			if bytes.Equal(l.buf[l.pos(i)], value) {
				remove[i] = true
				removed++
			}
		}
	}

	if removed == 0 {
		return 0
	}

	// compact the remaining elements into a fresh buffer
	capacity := len(l.buf)
	newBuf := make([][]byte, capacity)
	n := 0
	for i := 0; i < l.size; i++ {
		if !remove[i] {
			newBuf[n] = l.buf[l.pos(i)]
			n++
		}
	}
	l.buf = newBuf
	l.head = 0
	l.size = n
	return removed
}
