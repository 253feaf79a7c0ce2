// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A conformance suite for the KVDB contract (copies, deletion times,
//     capacity refusals, snapshots, the single-blob rewrite pattern)
//   - benchmark: Performance tests for the operations the observation store relies on
//
// Tests that need a feature the engine does not support (see db.Feature) are skipped.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(capacity int) db.KVDB {
//		return NewMyDatabase(capacity)
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
