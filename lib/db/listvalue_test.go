package db

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func values(l *ListValue) []string {
	var out []string
	for _, v := range l.Values() {
		out = append(out, string(v))
	}
	return out
}

func listOf(items ...string) *ListValue {
	l := NewListValue()
	for _, item := range items {
		l.PushTail([]byte(item))
	}
	return l
}

func TestNormalizeIndex(t *testing.T) {
	tests := []struct {
		index, length, want int
		ok                   bool
	}{
		{0, 3, 0, true},
		{2, 3, 2, true},
		{3, 3, 0, false},
		{-1, 3, 2, true},
		{-3, 3, 0, true},
		{-4, 3, 0, false},
		{0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.index, tt.length), func(t *testing.T) {
			got, ok := NormalizeIndex(tt.index, tt.length)
			require.Equal(t, tt.ok, ok)
			if ok {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizeRange(t *testing.T) {
	tests := []struct {
		start, stop, length int
		from, to            int
		ok                  bool
	}{
		{0, -1, 3, 0, 2, true},
		{0, 100, 3, 0, 2, true},
		{-100, 1, 3, 0, 1, true},
		{-2, -1, 3, 1, 2, true},
		{2, 1, 3, 0, 0, false},
		{3, 5, 3, 0, 0, false},
		{0, -1, 0, 0, 0, false},
		{-100, -50, 3, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d..%d/%d", tt.start, tt.stop, tt.length), func(t *testing.T) {
			from, to, ok := NormalizeRange(tt.start, tt.stop, tt.length)
			require.Equal(t, tt.ok, ok)
			if ok {
				require.Equal(t, tt.from, from)
				require.Equal(t, tt.to, to)
			}
		})
	}
}

func TestListValue_PushPop(t *testing.T) {
	l := NewListValue()
	require.Equal(t, 1, l.PushTail([]byte("b")))
	require.Equal(t, 2, l.PushHead([]byte("a")))
	require.Equal(t, 3, l.PushTail([]byte("c")))
	require.Equal(t, []string{"a", "b", "c"}, values(l))

	v, ok := l.PopHead()
	require.True(t, ok)
	require.Equal(t, "a", string(v))

	v, ok = l.PopTail()
	require.True(t, ok)
	require.Equal(t, "c", string(v))

	v, ok = l.PopTail()
	require.True(t, ok)
	require.Equal(t, "b", string(v))

	_, ok = l.PopHead()
	require.False(t, ok)
	_, ok = l.PopTail()
	require.False(t, ok)
	require.Equal(t, 0, l.Len())
}

func TestListValue_GrowAcrossWrap(t *testing.T) {
	l := NewListValue()

	// move the head into the middle of the buffer before growing
	for i := 0; i < 3; i++ {
		l.PushTail([]byte("x"))
		l.PopHead()
	}
	var expected []string
	for i := 0; i < 50; i++ {
		s := fmt.Sprintf("%d", i)
		if i%2 == 0 {
			l.PushTail([]byte(s))
			expected = append(expected, s)
		} else {
			l.PushHead([]byte(s))
			expected = append([]string{s}, expected...)
		}
	}
	require.Equal(t, expected, values(l))
}

func TestListValue_Copies(t *testing.T) {
	in := []byte("value")
	l := NewListValue()
	l.PushTail(in)
	in[0] = 'X'

	got, ok := l.Index(0)
	require.True(t, ok)
	require.Equal(t, "value", string(got))

	got[0] = 'Y'
	again, _ := l.Index(0)
	require.Equal(t, "value", string(again))

	r := l.Range(0, -1)
	r[0][0] = 'Z'
	require.Equal(t, []string{"value"}, values(l))
}

func TestListValue_IndexSet(t *testing.T) {
	l := listOf("a", "b", "c")

	v, ok := l.Index(-1)
	require.True(t, ok)
	require.Equal(t, "c", string(v))

	_, ok = l.Index(3)
	require.False(t, ok)

	require.True(t, l.Set(-2, []byte("B")))
	require.False(t, l.Set(5, []byte("nope")))
	require.False(t, l.Set(-4, []byte("nope")))
	require.Equal(t, []string{"a", "B", "c"}, values(l))
}

func TestListValue_Range(t *testing.T) {
	l := listOf("one", "two", "three")

	require.Equal(t, 3, len(l.Range(0, -1)))
	require.Equal(t, 2, len(l.Range(1, 10)))
	require.Empty(t, l.Range(2, 1))
	require.NotNil(t, l.Range(5, 10))
	require.Empty(t, NewListValue().Range(0, -1))
}

func TestListValue_FindInsertAt(t *testing.T) {
	l := listOf("one", "two", "two")

	require.Equal(t, 1, l.Find([]byte("two")))
	require.Equal(t, -1, l.Find([]byte("four")))

	l.InsertAt(1, []byte("x"))
	require.Equal(t, []string{"one", "x", "two", "two"}, values(l))

	l.InsertAt(0, []byte("head"))
	l.InsertAt(l.Len(), []byte("tail"))
	require.Equal(t, []string{"head", "one", "x", "two", "two", "tail"}, values(l))

	l.InsertAt(100, []byte("ignored"))
	require.Equal(t, 6, l.Len())
}

func TestListValue_RemoveMatching(t *testing.T) {
	t.Run("All", func(t *testing.T) {
		l := listOf("a", "b", "a", "c", "a")
		require.Equal(t, 3, l.RemoveMatching([]byte("a"), 0))
		require.Equal(t, []string{"b", "c"}, values(l))
	})

	t.Run("FromHead", func(t *testing.T) {
		l := listOf("a", "b", "a", "c", "a")
		require.Equal(t, 2, l.RemoveMatching([]byte("a"), 2))
		require.Equal(t, []string{"b", "c", "a"}, values(l))
	})

	t.Run("FromTail", func(t *testing.T) {
		l := listOf("a", "b", "a", "c", "a")
		require.Equal(t, 2, l.RemoveMatching([]byte("a"), -2))
		require.Equal(t, []string{"a", "b", "c"}, values(l))
	})

	t.Run("FromTailMinInt", func(t *testing.T) {
		l := listOf("a", "x", "a", "a")
		require.Equal(t, 3, l.RemoveMatching([]byte("a"), math.MinInt))
		require.Equal(t, []string{"x"}, values(l))
	})

	t.Run("NoMatch", func(t *testing.T) {
		l := listOf("a", "b")
		require.Equal(t, 0, l.RemoveMatching([]byte("z"), 0))
		require.Equal(t, []string{"a", "b"}, values(l))
	})

	t.Run("Drain", func(t *testing.T) {
		l := listOf("a", "a")
		require.Equal(t, 2, l.RemoveMatching([]byte("a"), 5))
		require.Equal(t, 0, l.Len())

		// still usable afterwards
		l.PushHead([]byte("b"))
		require.Equal(t, []string{"b"}, values(l))
	})
}
