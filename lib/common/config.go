package common

import (
	"fmt"
	"path/filepath"
	"strings"
)

// --------------------------------------------------------------------------
// Configuration struct
// --------------------------------------------------------------------------

type Engine string

const (
	EngineMemory Engine = "memory" // in-memory engine persisted as a snapshot file
	EngineSQLite Engine = "sqlite" // sqlite file, shareable between processes
)

// Config holds all configuration parameters of the fieldlog CLI.
type Config struct {
	// Storage medium
	Engine     Engine
	DataDir    string
	Origin     string
	CapacityKB int

	// Observation store
	StorageKey string
	LockWrites bool

	// Species catalog file, empty means the embedded catalog
	CatalogPath string

	// Logging and metrics
	LogLevel string
	Metrics  bool
}

// Validate checks the configuration for values that can't work
func (c *Config) Validate() error {
	switch c.Engine {
	case EngineMemory, EngineSQLite:
	default:
		return fmt.Errorf("invalid engine %q (expected one of: %s, %s)", c.Engine, EngineMemory, EngineSQLite)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data-dir must not be empty")
	}
	if c.Origin == "" || strings.ContainsAny(c.Origin, `/\`) {
		return fmt.Errorf("invalid origin %q: must be non-empty and must not contain path separators", c.Origin)
	}
	if c.CapacityKB < 0 {
		return fmt.Errorf("capacity-kb must not be negative")
	}
	if c.StorageKey == "" {
		return fmt.Errorf("storage-key must not be empty")
	}
	// every memory process writes its own copy to the snapshot, a lock inside it protects nothing
	if c.LockWrites && c.Engine == EngineMemory {
		return fmt.Errorf("lock-writes requires the %s engine, the %s engine is not shared between processes", EngineSQLite, EngineMemory)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// CapacityBytes returns the capacity of the medium in bytes (0 = unbounded)
func (c *Config) CapacityBytes() int {
	return c.CapacityKB * 1024
}

// SnapshotPath is the snapshot file of the memory engine. There is one file per origin.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, c.Origin+".snapshot")
}

// SQLitePath is the database file of the sqlite engine. All origins share it.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "fieldlog.db")
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Engine", string(c.Engine))
	addField("Data Directory", c.DataDir)
	switch c.Engine {
	case EngineMemory:
		addField("Snapshot", c.SnapshotPath())
	case EngineSQLite:
		addField("Database File", c.SQLitePath())
	}
	addField("Origin", c.Origin)
	if c.CapacityKB == 0 {
		addField("Capacity", "unbounded")
	} else {
		addField("Capacity", fmt.Sprintf("%d KB", c.CapacityKB))
	}

	addSection("Observations")
	addField("Storage Key", c.StorageKey)
	addField("Lock Writes", fmt.Sprintf("%t", c.LockWrites))
	if c.CatalogPath == "" {
		addField("Species Catalog", "embedded")
	} else {
		addField("Species Catalog", c.CatalogPath)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)
	addField("Metrics", fmt.Sprintf("%t", c.Metrics))

	return sb.String()
}
