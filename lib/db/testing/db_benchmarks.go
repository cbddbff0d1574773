package testing

import (
	"fmt"
	"github.com/ValentinKolb/dList/lib/db"
	"math/rand"
	"testing"
)

// RunKeySpaceBenchmarks runs all benchmarks for a key space implementation
func RunKeySpaceBenchmarks(b *testing.B, name string, factory KeySpaceFactory) {

	b.Run("PushTail", func(b *testing.B) {
		benchmarkPushTail(b, factory())
	})

	b.Run("PushPop", func(b *testing.B) {
		benchmarkPushPop(b, factory())
	})

	b.Run("Lookup", func(b *testing.B) {
		benchmarkLookup(b, factory())
	})

	b.Run("Lookup(not)", func(b *testing.B) {
		benchmarkLookupNot(b, factory())
	})

	b.Run("CreateRemove", func(b *testing.B) {
		benchmarkCreateRemove(b, factory())
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for pushing to the tail of few keys
func benchmarkPushTail(b *testing.B, ks db.KeySpace) {
	value := []byte("benchmark-value")
	keys := make([]string, 16)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ks.GetOrCreate(keys[i%len(keys)]).PushTail(value)
	}
}

// Benchmark for a push immediately followed by a pop (queue usage)
func benchmarkPushPop(b *testing.B, ks db.KeySpace) {
	value := []byte("benchmark-value")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ks.GetOrCreate("queue").PushHead(value)
		list, _ := ks.Lookup("queue")
		list.PopTail()
		ks.RemoveIfEmpty("queue")
	}
}

// Benchmark for looking up existing keys
func benchmarkLookup(b *testing.B, ks db.KeySpace) {
	numKeys := 10000
	keys := make([]string, numKeys)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
		ks.GetOrCreate(keys[i]).PushTail([]byte("value"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ks.Lookup(keys[i%numKeys])
	}
}

// Benchmark for looking up absent keys
func benchmarkLookupNot(b *testing.B, ks db.KeySpace) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ks.Lookup("absent")
	}
}

// Benchmark for creating and removing keys
func benchmarkCreateRemove(b *testing.B, ks db.KeySpace) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("key-%d", i%1024)
		ks.GetOrCreate(key)
		ks.RemoveIfEmpty(key)
	}
}

// Benchmark for a realistic mix of operations
func benchmarkMixedUsage(b *testing.B, ks db.KeySpace) {
	numKeys := 1000
	keys := make([]string, numKeys)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}
	value := []byte("benchmark-value")
	r := rand.New(rand.NewSource(42))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := keys[r.Intn(numKeys)]
		switch op := r.Intn(100); {
		case op < 40: // 40% push
			ks.GetOrCreate(key).PushTail(value)
		case op < 70: // 30% pop
			if list, ok := ks.Lookup(key); ok {
				list.PopHead()
				ks.RemoveIfEmpty(key)
			}
		default: // 30% range
			if list, ok := ks.Lookup(key); ok {
				list.Range(0, 9)
			}
		}
	}
}
