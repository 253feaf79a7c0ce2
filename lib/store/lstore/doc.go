// Package lstore implements a local, single-node key-value store based on the
// store.IStore interface. It provides a thin wrapper around any db.KVDB
// implementation with automatic write index management.
//
// Key Features:
//   - Origin scoping: every key is stored as "<origin>/<key>", so stores opened
//     with different origins on one database never see each other's data
//   - Optional snapshot file for in-memory engines, loaded on Open and replaced
//     atomically (temp file + rename) after every write and on Close. A write whose
//     snapshot fails is rolled back before the error is returned
//   - Capacity refusals of the engine surface as store.RetCCapacityExceeded
//   - Feature detection to handle unsupported operations gracefully
//
// Implementation Details:
//
//   - Write Index Management: The store keeps an atomic counter that increments with
//     each write operation. Before incrementing it is raised to the index of the
//     database, which keeps the index monotonic when several processes write to one
//     sqlite file. Deletion times of SetEIfUnset are measured in these indices.
//
//   - Composition Architecture: The store.DBFactory injects the underlying db.KVDB,
//     so the store works with the memdb and sqlitedb engines alike.
//
// Usage Example:
//
//	factory := func() (db.KVDB, error) { return memdb.NewMemDB(memdb.DefaultOptions()), nil }
//	medium, err := lstore.Open(factory, &lstore.Options{
//		Origin:       "local",
//		SnapshotPath: "/var/lib/fieldlog/local.snapshot",
//	})
//	defer medium.Close()
//
//	err = medium.Set("fish_bird_observations", blob)
//	value, exists, err := medium.Get("fish_bird_observations")
package lstore
