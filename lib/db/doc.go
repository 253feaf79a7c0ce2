// Package db provides a standardized interface for the key-value engines that
// back the observation log's persistence medium.
//
// The package focuses on:
//   - A unified interface for key-value operations
//   - Feature discovery through capability flags
//   - A capacity bound shared by all engines (ErrCapacityExceeded)
//   - Standardized persistence operations
//
// Key Components:
//
//   - KVDB Interface: The interface every engine satisfies. Basic operations
//     (Set, Get, Has, Delete), a conditional insert with a deletion time
//     (SetEIfUnset), snapshot persistence (Save, Load), metadata (GetInfo).
//
//   - Feature Flags: Engines advertise what they support through SupportsFeature.
//     The durable sqlite engine for example has no use for Save/Load.
//
//   - Database Information: DatabaseInfo reports size, capacity and key count
//     plus engine specific metadata.
//
// Note on Time-Based Operations:
//   - All write operations take a write index that serves as a logical clock.
//     A deletion time passed to SetEIfUnset is relative to that index, so an
//     entry with deleteIn=N disappears once N more writes have happened.
//   - Read operations use the most recently set write index.
//   - The write index only ever increases. SetWriteIdx ignores smaller values.
//
// Related Packages:
//
// The engines/memdb package implements KVDB in memory with binary snapshots,
// engines/sqlitedb implements it on a single sqlite file, and the testing
// package holds the conformance suite both engines run (RunKVDBTests).
package db
