// Package memdb implements db.KVDB in process memory.
//
// Entries live in an xsync.MapOf keyed by the raw string key, so reads are
// lock-free. Writers are serialized by a single mutex which keeps the
// capacity check and the update atomic: a write that would grow the database
// beyond DBOptions.Capacity is rejected with db.ErrCapacityExceeded and
// leaves the database untouched.
//
// Entries inserted with SetEIfUnset may carry a deletion time (in write
// operations). They stay physically present, and keep counting against the
// capacity, until they are overwritten, deleted or dropped by Save.
//
// The database itself is not durable. Save writes a binary snapshot
// ("FLOGMEM" magic, version, write index, length-prefixed entries) and Load
// restores one, which is what lstore uses to keep data across process runs.
//
// Engine counters (writes, deletes, rejected writes) are kept in a
// go-metrics registry and reported through GetInfo().Metadata.
package memdb
