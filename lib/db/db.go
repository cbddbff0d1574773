package db

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// DatabaseInfo describes the state of a KeySpace.
type DatabaseInfo struct {
	Keys      int            `json:"keys"`       // number of non-empty lists
	Elements  int            `json:"elements"`   // total number of elements in all lists
	SizeBytes int            `json:"size_bytes"` // estimated size of all elements
	DbType    Implementation `json:"db_type"`
	Metadata  interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// KeySpace Interface
// --------------------------------------------------------------------------

// KeySpace maps keys to list values.
//
// Invariant: once a mutating store command returns, no key maps to an empty
// list. Callers that remove elements must call RemoveIfEmpty before releasing
// their lock, Lookup never reports an empty list as present.
//
// Thread-safety: Implementations are not required to be thread-safe. The store
// owning the KeySpace serializes all access with its own lock.
type KeySpace interface {

	// Lookup returns the list stored at key.
	// The boolean is false if the key is absent (or holds an empty list).
	Lookup(key string) (list *ListValue, ok bool)

	// GetOrCreate returns the list stored at key, creating an empty one if the key is absent.
	// The caller must add at least one element or call RemoveIfEmpty.
	GetOrCreate(key string) (list *ListValue)

	// RemoveIfEmpty deletes the key if its list holds no elements.
	// Returns true if the key was removed.
	RemoveIfEmpty(key string) (removed bool)

	// Len returns the number of keys.
	Len() int

	// Keys returns all keys in ascending order.
	Keys() []string

	// Reset removes all keys.
	Reset()

	// GetInfo returns information about the key space.
	GetInfo() (info DatabaseInfo)
}
