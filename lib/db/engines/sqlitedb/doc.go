// Package sqlitedb implements db.KVDB on top of a single sqlite file using the
// pure Go modernc.org/sqlite driver.
//
// Unlike memdb the data is durable as soon as a write returns, so Save and
// Load are not supported. The write index lives in a meta table next to the
// kv table, which lets several processes work on one file: every write runs
// in an immediate transaction that first advances the shared index, then
// drops entries whose deletion time has passed, checks the capacity and
// finally upserts the entry.
package sqlitedb
