// Package util provides the supporting data structures of the list store.
//
// The package contains:
//   - statistics: Summary statistics and a SizeHistogram used by KeySpace.GetInfo
//   - functions: Seed generation and the FNV-1a string hash used for sharding
//   - mapheap: A min-heap with key based access, used as deadline queue for blocked clients
//   - lockfreempsc: A lock-free Multi-Producer Single-Consumer (MPSC) queue that feeds
//     deadline registrations to the deadline reaper
package util
