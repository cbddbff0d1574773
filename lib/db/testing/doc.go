// Package testing provides standardised tests and benchmarks for
// key space implementations that satisfy the db.KeySpace interface.
//
// The package contains:
//   - testing: A test suite for validating conformance to the KeySpace contract,
//     most importantly that empty lists never become visible
//   - benchmark: Performance tests for the list access patterns of the store
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.KeySpace {
//		return NewMyKeySpace()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKeySpaceTests(t, "MyKeySpace", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKeySpaceBenchmarks(b, "MyKeySpace", factory)
package testing
