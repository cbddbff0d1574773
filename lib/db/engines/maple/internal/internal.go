package internal

import (
	"github.com/ValentinKolb/dList/lib/db"
	"github.com/ValentinKolb/dList/lib/db/util"
)

// --------------------------------------------------------------------------
// Shard Type (partition of the key space)
// --------------------------------------------------------------------------

// Shard represents a partition of the key space.
// Shards have no lock of their own, the owner of the key space serializes access.
type Shard struct {
	Lists map[string]*db.ListValue // lists of this shard
}

// NewShard creates a new empty shard
func NewShard() *Shard {
	return &Shard{
		Lists: make(map[string]*db.ListValue),
	}
}

// Reset removes all lists from the shard
func (s *Shard) Reset() {
	s.Lists = make(map[string]*db.ListValue)
}

// GetShard returns the appropriate shard for a given key hash
func GetShard[T any](key util.UintKey, shards []*T) *T {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := uint64(key) >> 7
	shardPos := shiftedKey % uint64(len(shards))
	return shards[shardPos]
}
