// Package store provides the key/value medium the observation store persists into.
// It serves as an abstraction layer over the lower-level db.KVDB implementations, adding
// write index management and standardized error reporting.
//
// Key Components:
//
//   - IStore Interface: synchronous get/set/remove on string keys and opaque byte values,
//     plus SetEIfUnset (used by the lock manager), Has, GetDBInfo and Close.
//     Any implementation can be used by the observation store, which makes it easy to
//     inject test doubles that refuse writes.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages. A full medium is reported with RetCCapacityExceeded,
//     which lets callers tell quota exhaustion apart from other failures.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances, providing dependency injection and flexible configuration of
//     storage backends.
//
// Implementations:
//
//	- Local Store (lstore): an origin-scoped store that directly utilizes a db.KVDB
//	  instance and optionally persists an in-memory engine to a snapshot file.
//	  Available in the "github.com/ValentinKolb/fieldlog/lib/store/lstore" package.
package store
