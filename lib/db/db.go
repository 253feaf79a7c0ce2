package db

import (
	"errors"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMemory Implementation = "memory"
	ImplSQLite Implementation = "sqlite"
)

// ErrCapacityExceeded is returned by write operations that would grow the
// database beyond its configured capacity. The write is not applied.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet         Feature = 1 << iota // Support for Set operations
	FeatureSetEIfUnset                     // Support for SetEIfUnset operations
	FeatureGet                             // Support for Get operations
	FeatureDelete                          // Support for Delete operations
	FeatureHas                             // Support for Has operations
	FeatureSave                            // Support for Save operations
	FeatureLoad                            // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureSetEIfUnset:
		return "SetEIfUnset"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	CapacityBytes     int            `json:"capacity_bytes"`
	Keys              int            `json:"keys"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// EntrySize is the number of bytes an entry counts against the capacity of a database.
func EntrySize(key string, value []byte) int {
	return len(key) + len(value)
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for key-value database implementations.
// Any implementation of this interface must manage keys in a consistent way.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates an entry with the given key, value, and writeIndex.
	// If the key already exists, the old value is overwritten and any pending deletion is cleared.
	// Returns ErrCapacityExceeded if the new value does not fit.
	Set(key string, value []byte, writeIndex uint64) (err error)

	// SetEIfUnset inserts an entry only if the key does not exist.
	// If the key already exists, the old value is not updated and no error is returned.
	// The deleteIn parameter sets a deletion time relative to writeIndex (0 = never).
	SetEIfUnset(key string, value []byte, writeIndex uint64, deleteIn uint64) (err error)

	// Delete removes an entry with the specified key.
	// Deleting a missing key is not an error.
	Delete(key string, writeIndex uint64) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The returned slice is a copy and safe to modify.
	Get(key string) (value []byte, loaded bool, err error)

	// Has checks whether a (not deleted) key exists in the database.
	Has(key string) (loaded bool, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database state with the data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current one.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database.
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
