package maple

import (
	"github.com/ValentinKolb/dList/lib/db"
	"github.com/ValentinKolb/dList/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dList/lib/db/util"
	"runtime"
	"sort"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	listOverhead     = 48  // ring buffer header, key header and map entry
	elementOverhead  = 24  // slice header per element
	samplesPerList   = 16  // elements sampled per list for size estimation
	maxSampledLists  = 256 // lists sampled per shard for size estimation
	defaultMaxShards = 64
)

// --------------------------------------------------------------------------
// Core Maple key space structure
// --------------------------------------------------------------------------

// mapleImpl implements a key space with hash-sharded maps
type mapleImpl struct {
	seed   uint64            // Seed for hash function
	shards []*internal.Shard // Array of shards
	keys   int               // Number of keys over all shards
}

// Options configures the mapleImpl behavior during initialization
type Options struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *Options {
	return &Options{
		NumShards: min(runtime.NumCPU(), defaultMaxShards), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleKeySpace creates a new maple key space with the specified options (optional)
func NewMapleKeySpace(opts *Options) db.KeySpace {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = DefaultOptions().NumShards
	}

	shards := make([]*internal.Shard, opts.NumShards)
	for i := range shards {
		shards[i] = internal.NewShard()
	}

	return &mapleImpl{
		seed:   util.GenerateSeed(),
		shards: shards,
	}
}

// shard returns the shard responsible for the key
func (maple *mapleImpl) shard(key string) *internal.Shard {
	return internal.GetShard(util.HashString(key, maple.seed), maple.shards)
}

// --------------------------------------------------------------------------
// KeySpace Interface Methods
// --------------------------------------------------------------------------

// Lookup returns the list stored at key, empty lists are reported as absent
func (maple *mapleImpl) Lookup(key string) (*db.ListValue, bool) {
	list, ok := maple.shard(key).Lists[key]
	if !ok || list.Len() == 0 {
		return nil, false
	}
	return list, true
}

// GetOrCreate returns the list stored at key or creates an empty one
func (maple *mapleImpl) GetOrCreate(key string) *db.ListValue {
	s := maple.shard(key)
	if list, ok := s.Lists[key]; ok {
		return list
	}
	list := db.NewListValue()
	s.Lists[key] = list
	maple.keys++
	return list
}

// RemoveIfEmpty deletes the key if its list is empty
func (maple *mapleImpl) RemoveIfEmpty(key string) bool {
	s := maple.shard(key)
	list, ok := s.Lists[key]
	if !ok || list.Len() > 0 {
		return false
	}
	delete(s.Lists, key)
	maple.keys--
	return true
}

// Len returns the number of keys
func (maple *mapleImpl) Len() int {
	return maple.keys
}

// Keys returns all keys in ascending order
func (maple *mapleImpl) Keys() []string {
	keys := make([]string, 0, maple.keys)
	for _, s := range maple.shards {
		for key, list := range s.Lists {
			if list.Len() > 0 {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// Reset removes all keys from all shards
func (maple *mapleImpl) Reset() {
	for _, s := range maple.shards {
		s.Reset()
	}
	maple.keys = 0
}

// GetInfo returns statistics about the key space.
// Element counts are exact, sizes are estimated from a sample of elements.
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	histogram := util.NewSizeHistogram()
	shardSizes := make([]float64, len(maple.shards))
	listLengths := make([]float64, 0, maple.keys)
	elements := 0

	for i, s := range maple.shards {
		sampled := 0
		for _, list := range s.Lists {
			n := list.Len()
			elements += n
			listLengths = append(listLengths, float64(n))

			// only sample a few elements of a few lists per shard
			if sampled < maxSampledLists {
				for _, v := range list.Range(0, samplesPerList-1) {
					histogram.AddSample(len(v))
				}
				sampled++
			}
		}
		shardSizes[i] = float64(len(s.Lists))
	}

	// weighted estimate (60% median, 40% average) per element
	elementSize := (histogram.MedianEstimate()*60+histogram.AverageSize()*40)/100 + elementOverhead
	sizeBytes := elements*elementSize + maple.keys*listOverhead

	// Metadata for this specific implementation
	meta := &struct {
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		ListLengths       util.Stats             `json:"list_lengths"`
		ElementSizeP90    int                    `json:"element_size_p90"`
		Info              string                 `json:"info"`
	}{
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		ListLengths:       util.NewStats(listLengths),
		ElementSizeP90:    histogram.GetPercentileEstimate(90),
		Info:              "SizeBytes is an estimate based on sampled element sizes.",
	}

	return db.DatabaseInfo{
		Keys:      maple.keys,
		Elements:  elements,
		SizeBytes: sizeBytes,
		DbType:    db.ImplMaple,
		Metadata:  meta,
	}
}
