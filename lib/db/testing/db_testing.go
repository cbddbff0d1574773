package testing

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ValentinKolb/dList/lib/db"
)

// KeySpaceFactory is a function that creates a new instance of a KeySpace implementation
type KeySpaceFactory func() db.KeySpace

// RunKeySpaceTests runs a comprehensive test suite for a KeySpace implementation.
func RunKeySpaceTests(t *testing.T, name string, factory KeySpaceFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("GetOrCreate&Lookup", func(t *testing.T) {
			testGetOrCreateLookup(t, factory())
		})

		t.Run("RemoveIfEmpty", func(t *testing.T) {
			testRemoveIfEmpty(t, factory())
		})

		t.Run("EmptyListsInvisible", func(t *testing.T) {
			testEmptyListsInvisible(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("Reset", func(t *testing.T) {
			testReset(t, factory())
		})

		t.Run("GetInfo", func(t *testing.T) {
			testGetInfo(t, factory())
		})

		t.Run("ManyKeys", func(t *testing.T) {
			testManyKeys(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// fill creates the key and pushes the values to its tail
func fill(ks db.KeySpace, key string, values ...string) {
	list := ks.GetOrCreate(key)
	for _, v := range values {
		list.PushTail([]byte(v))
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testGetOrCreateLookup(t *testing.T, ks db.KeySpace) {
	if _, ok := ks.Lookup("foo"); ok {
		t.Errorf("Expected key foo to be absent in a new key space")
	}

	fill(ks, "foo", "one", "two")

	list, ok := ks.Lookup("foo")
	if !ok {
		t.Fatalf("Expected key foo to exist after GetOrCreate and push")
	}
	if list.Len() != 2 {
		t.Errorf("Expected length 2, got %d", list.Len())
	}

	// GetOrCreate must return the existing list
	again := ks.GetOrCreate("foo")
	if again != list {
		t.Errorf("Expected GetOrCreate to return the existing list")
	}
	if again.Len() != 2 {
		t.Errorf("Expected length 2 after second GetOrCreate, got %d", again.Len())
	}

	if ks.Len() != 1 {
		t.Errorf("Expected 1 key, got %d", ks.Len())
	}
}

func testRemoveIfEmpty(t *testing.T, ks db.KeySpace) {
	fill(ks, "foo", "one")

	if ks.RemoveIfEmpty("foo") {
		t.Errorf("Expected RemoveIfEmpty to keep a non-empty list")
	}

	list, _ := ks.Lookup("foo")
	list.PopHead()

	if !ks.RemoveIfEmpty("foo") {
		t.Errorf("Expected RemoveIfEmpty to remove the drained list")
	}
	if ks.Len() != 0 {
		t.Errorf("Expected 0 keys after removal, got %d", ks.Len())
	}
	if ks.RemoveIfEmpty("foo") {
		t.Errorf("Expected RemoveIfEmpty on an absent key to return false")
	}
}

func testEmptyListsInvisible(t *testing.T, ks db.KeySpace) {
	ks.GetOrCreate("empty")

	if _, ok := ks.Lookup("empty"); ok {
		t.Errorf("Expected an empty list to be reported as absent")
	}
	for _, k := range ks.Keys() {
		if k == "empty" {
			t.Errorf("Expected Keys to omit empty lists")
		}
	}

	ks.RemoveIfEmpty("empty")
	if ks.Len() != 0 {
		t.Errorf("Expected 0 keys, got %d", ks.Len())
	}
}

func testKeys(t *testing.T, ks db.KeySpace) {
	for _, k := range []string{"c", "a", "b"} {
		fill(ks, k, "x")
	}

	keys := ks.Keys()
	expected := []string{"a", "b", "c"}
	if len(keys) != len(expected) {
		t.Fatalf("Expected %d keys, got %d", len(expected), len(keys))
	}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Errorf("Expected key %s at position %d, got %s", expected[i], i, keys[i])
		}
	}
}

func testReset(t *testing.T, ks db.KeySpace) {
	fill(ks, "foo", "one")
	fill(ks, "bar", "two")

	ks.Reset()

	if ks.Len() != 0 {
		t.Errorf("Expected 0 keys after Reset, got %d", ks.Len())
	}
	if _, ok := ks.Lookup("foo"); ok {
		t.Errorf("Expected key foo to be absent after Reset")
	}

	// the key space must be usable after a reset
	fill(ks, "foo", "three")
	list, ok := ks.Lookup("foo")
	if !ok || list.Len() != 1 {
		t.Errorf("Expected key foo with one element after Reset and push")
	}
}

func testGetInfo(t *testing.T, ks db.KeySpace) {
	fill(ks, "foo", "one", "two", "three")
	fill(ks, "bar", "four")

	info := ks.GetInfo()
	if info.Keys != 2 {
		t.Errorf("Expected 2 keys in info, got %d", info.Keys)
	}
	if info.Elements != 4 {
		t.Errorf("Expected 4 elements in info, got %d", info.Elements)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected a positive size estimate, got %d", info.SizeBytes)
	}
	if info.DbType == "" {
		t.Errorf("Expected a db type in info")
	}
}

func testManyKeys(t *testing.T, ks db.KeySpace) {
	n := 1000
	for i := 0; i < n; i++ {
		fill(ks, fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}
	if ks.Len() != n {
		t.Errorf("Expected %d keys, got %d", n, ks.Len())
	}

	for i := 0; i < n; i++ {
		list, ok := ks.Lookup(fmt.Sprintf("key-%d", i))
		if !ok {
			t.Fatalf("Expected key-%d to exist", i)
		}
		v, _ := list.Index(0)
		if !bytes.Equal(v, []byte(fmt.Sprintf("value-%d", i))) {
			t.Errorf("Expected value-%d, got %s", i, v)
		}
	}

	// drain every second key
	for i := 0; i < n; i += 2 {
		key := fmt.Sprintf("key-%d", i)
		list, _ := ks.Lookup(key)
		list.PopTail()
		ks.RemoveIfEmpty(key)
	}
	if ks.Len() != n/2 {
		t.Errorf("Expected %d keys after draining, got %d", n/2, ks.Len())
	}
	if len(ks.Keys()) != n/2 {
		t.Errorf("Expected Keys to return %d keys, got %d", n/2, len(ks.Keys()))
	}
}
