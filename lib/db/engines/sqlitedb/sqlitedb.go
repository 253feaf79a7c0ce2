package sqlitedb

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/ValentinKolb/fieldlog/lib/db"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var log = logger.GetLogger("db")

const (
	DefaultCapacity = 5 * 1024 * 1024 // Default capacity in bytes (5 MiB)
	busyTimeoutMs   = 5000            // How long a writer waits for another process' transaction
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key       TEXT PRIMARY KEY,
	value     BLOB NOT NULL,
	delete_at INTEGER NOT NULL DEFAULT 0,
	idx       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
INSERT INTO meta (name, value) VALUES ('write_idx', 0) ON CONFLICT(name) DO NOTHING;
`

// DBOptions configures the engine during initialization
type DBOptions struct {
	Path     string // Path of the database file (created if missing)
	Capacity int    // Capacity in bytes of keys plus values (0 = unbounded)
}

// DefaultOptions returns the default engine options for the given file
func DefaultOptions(path string) *DBOptions {
	return &DBOptions{
		Path:     path,
		Capacity: DefaultCapacity,
	}
}

type sqliteImpl struct {
	db       *sql.DB
	path     string
	capacity int

	// last write index seen by this process, the authoritative value lives in the meta table
	currIndex atomic.Uint64

	registry gometrics.Registry
	writes   gometrics.Counter
	deletes  gometrics.Counter
	rejected gometrics.Counter
}

// NewSQLiteDB opens (or creates) the database file and prepares the schema.
// Several processes may open the same file, writes are serialized by sqlite.
func NewSQLiteDB(opts *DBOptions) (db.KVDB, error) {
	if opts == nil || opts.Path == "" {
		return nil, fmt.Errorf("sqlitedb: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate", opts.Path, busyTimeoutMs)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	registry := gometrics.NewRegistry()
	s := &sqliteImpl{
		db:       conn,
		path:     opts.Path,
		capacity: opts.Capacity,
		registry: registry,
		writes:   gometrics.NewRegisteredCounter("writes", registry),
		deletes:  gometrics.NewRegisteredCounter("deletes", registry),
		rejected: gometrics.NewRegisteredCounter("rejected_writes", registry),
	}
	s.currIndex.Store(s.WriteIdx())
	return s, nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Set(key string, value []byte, writeIndex uint64) error {
	return s.put(key, value, writeIndex, 0, false)
}

func (s *sqliteImpl) SetEIfUnset(key string, value []byte, writeIndex uint64, deleteIn uint64) error {
	return s.put(key, value, writeIndex, deleteIn, true)
}

// put runs the capacity check and the upsert in one immediate transaction,
// which makes SetEIfUnset atomic across processes sharing the file.
func (s *sqliteImpl) put(key string, value []byte, writeIndex, deleteIn uint64, onlyIfUnset bool) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now, err := advanceWriteIdx(tx, writeIndex)
	if err != nil {
		return err
	}

	// entries past their deletion time are dropped before anything is counted
	if _, err = tx.Exec(`DELETE FROM kv WHERE delete_at != 0 AND delete_at <= ?`, now); err != nil {
		return err
	}

	if onlyIfUnset {
		var exists int
		err = tx.QueryRow(`SELECT COUNT(*) FROM kv WHERE key = ?`, key).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			return tx.Commit()
		}
	}

	if s.capacity > 0 {
		var used int
		err = tx.QueryRow(`SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(value)), 0) FROM kv WHERE key != ?`, key).Scan(&used)
		if err != nil {
			return err
		}
		if used+db.EntrySize(key, value) > s.capacity {
			s.rejected.Inc(1)
			err = db.ErrCapacityExceeded
			return err
		}
	}

	var deleteAt uint64
	if deleteIn > 0 {
		deleteAt = writeIndex + deleteIn
	}
	if value == nil {
		value = []byte{}
	}
	_, err = tx.Exec(`INSERT INTO kv (key, value, delete_at, idx) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, delete_at = excluded.delete_at, idx = excluded.idx`,
		key, value, deleteAt, writeIndex)
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	s.observeIdx(now)
	s.writes.Inc(1)
	return nil
}

func (s *sqliteImpl) Delete(key string, writeIndex uint64) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now, err := advanceWriteIdx(tx, writeIndex)
	if err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	s.observeIdx(now)
	if n, _ := res.RowsAffected(); n > 0 {
		s.deletes.Inc(n)
	}
	return nil
}

// advanceWriteIdx raises the stored write index to at least idx and returns the resulting index
func advanceWriteIdx(tx *sql.Tx, idx uint64) (uint64, error) {
	if _, err := tx.Exec(`UPDATE meta SET value = MAX(value, ?) WHERE name = 'write_idx'`, idx); err != nil {
		return 0, err
	}
	var now uint64
	err := tx.QueryRow(`SELECT value FROM meta WHERE name = 'write_idx'`).Scan(&now)
	return now, err
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

const liveEntry = `(delete_at = 0 OR delete_at > (SELECT value FROM meta WHERE name = 'write_idx'))`

func (s *sqliteImpl) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ? AND `+liveEntry, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *sqliteImpl) Has(key string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM kv WHERE key = ? AND `+liveEntry, key).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --------------------------------------------------------------------------
// Persistence Operations (the file is the persistence)
// --------------------------------------------------------------------------

func (s *sqliteImpl) Save(io.Writer) error {
	return fmt.Errorf("sqlitedb: Save is not supported, data is written to %s directly", s.path)
}

func (s *sqliteImpl) Load(io.Reader) error {
	return fmt.Errorf("sqlitedb: Load is not supported, data is read from %s directly", s.path)
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	var keys, size int
	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(length(CAST(key AS BLOB)) + length(value)), 0) FROM kv`).Scan(&keys, &size)
	if err != nil {
		log.Warningf("failed to collect info for %s: %v", s.path, err)
	}

	meta := &struct {
		Path              string                            `json:"path"`
		CurrentWriteIndex uint64                            `json:"current_write_index"`
		Counters          map[string]map[string]interface{} `json:"counters"`
	}{
		Path:              s.path,
		CurrentWriteIndex: s.WriteIdx(),
		Counters:          s.registry.GetAll(),
	}

	return db.DatabaseInfo{
		SizeBytes:     size,
		CapacityBytes: s.capacity,
		Keys:          keys,
		DbType:        db.ImplSQLite,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureSetEIfUnset,
			db.FeatureGet, db.FeatureHas, db.FeatureDelete,
		},
		Metadata: meta,
	}
}

func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureSet |
		db.FeatureSetEIfUnset |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas
	return supported&feature == feature
}

func (s *sqliteImpl) Close() error {
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Index Management
// --------------------------------------------------------------------------

func (s *sqliteImpl) SetWriteIdx(index uint64) {
	if _, err := s.db.Exec(`UPDATE meta SET value = MAX(value, ?) WHERE name = 'write_idx'`, index); err != nil {
		log.Errorf("failed to set write index of %s: %v", s.path, err)
		return
	}
	s.observeIdx(index)
}

// WriteIdx reads the index from the file so writes of other processes are taken into account.
// If the file can't be read the last index seen by this process is returned.
func (s *sqliteImpl) WriteIdx() uint64 {
	var idx uint64
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE name = 'write_idx'`).Scan(&idx); err != nil {
		log.Errorf("failed to read write index of %s: %v", s.path, err)
		return s.currIndex.Load()
	}
	s.observeIdx(idx)
	return idx
}

// observeIdx raises the cached index
func (s *sqliteImpl) observeIdx(idx uint64) {
	for {
		curr := s.currIndex.Load()
		if idx <= curr || s.currIndex.CompareAndSwap(curr, idx) {
			return
		}
	}
}
