// Package observation implements the log of field observations of fish and birds.
//
// A Store persists the whole collection as a single JSON array under one key
// of a store.IStore (by default "fish_bird_observations"). The medium only
// offers get, set and remove, so every mutation is a full read-modify-write of
// that blob:
//
//	medium, _ := lstore.Open(factory, &lstore.Options{Origin: "local"})
//	observations := observation.New(medium, &observation.Options{Catalog: species.Default()})
//
//	obs, err := observations.Add("salmon", "2024-03-01", "Tana river", "")
//	all, err := observations.List()
//	stats, err := observations.Statistics()
//
// Failure policy:
//   - a blob that can't be decoded is logged, counted and treated as empty
//   - a medium that refuses a read or write yields ErrStorageUnavailable
//   - an empty species id or unparseable date is rejected with ErrValidation
//   - deleting an unknown id does nothing
//
// Note that Add on top of an undecodable blob replaces it.
//
// Dates are "YYYY-MM-DD" or RFC 3339. Ids are UUIDv7, createdAt is UTC
// RFC 3339 with nanoseconds and never goes backwards within one Store.
package observation
