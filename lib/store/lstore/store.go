package lstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/fieldlog/lib/db"
	"github.com/ValentinKolb/fieldlog/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// DefaultOrigin is used when no origin is configured
const DefaultOrigin = "local"

// Options configures a local store
type Options struct {
	// Origin namespaces all keys of the store, stores with different origins
	// never see each other's keys even if they share one database.
	Origin string
	// SnapshotPath is the file an in-memory database is loaded from on open and
	// written to after every write and on Close. Empty disables snapshots.
	// Ignored for databases that do not support Save and Load.
	SnapshotPath string
}

// DefaultOptions returns the default options (default origin, no snapshot)
func DefaultOptions() *Options {
	return &Options{
		Origin: DefaultOrigin,
	}
}

type storeImpl struct {
	db     db.KVDB
	index  atomic.Uint64
	prefix string

	snapshotPath string
	snapshotMu   sync.Mutex
	closed       atomic.Bool
}

// Open creates a new local store instance on top of the database created by factory.
// If a snapshot path is configured and the file exists, the database is restored from it.
func Open(factory store.DBFactory, opts *Options) (store.IStore, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	origin := opts.Origin
	if origin == "" {
		origin = DefaultOrigin
	}
	if strings.Contains(origin, "/") {
		return nil, fmt.Errorf("invalid origin %q: must not contain '/'", origin)
	}

	database, err := factory()
	if err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}

	s := &storeImpl{
		db:     database,
		prefix: origin + "/",
	}

	if opts.SnapshotPath != "" && database.SupportsFeature(db.FeatureSave|db.FeatureLoad) {
		s.snapshotPath = opts.SnapshotPath
		if err := s.loadSnapshot(); err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	s.index.Store(database.WriteIdx())
	return s, nil
}

// NewLocalStore creates a store without snapshot for the default origin.
// It panics if the factory fails.
func NewLocalStore(factory store.DBFactory) store.IStore {
	s, err := Open(factory, nil)
	if err != nil {
		panic(err)
	}
	return s
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
// Other processes may advance the index of a shared database, so the local
// counter is raised to the database index first.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	dbIdx := s.db.WriteIdx()
	for {
		curr := s.index.Load()
		next := max(curr, dbIdx) + 1
		if s.index.CompareAndSwap(curr, next) {
			return next
		}
	}
}

// key maps a caller key into the origin namespace
func (s *storeImpl) key(key string) string {
	return s.prefix + key
}

// toStoreError converts a database error into a *store.Error
func toStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrCapacityExceeded) {
		return store.NewError(store.RetCCapacityExceeded, fmt.Sprintf("%s: %v", op, err))
	}
	return store.NewError(store.RetCInternalError, fmt.Sprintf("%s: %v", op, err))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Set operation is not supported")
	}
	return s.write("Set", key, false, func(k string, idx uint64) error {
		return s.db.Set(k, value, idx)
	})
}

func (s *storeImpl) SetEIfUnset(key string, value []byte, deleteIn uint64) error {
	if !s.db.SupportsFeature(db.FeatureSetEIfUnset) {
		return store.NewError(store.RetCUnsupportedOperation, "SetEIfUnset operation is not supported")
	}
	return s.write("SetEIfUnset", key, true, func(k string, idx uint64) error {
		return s.db.SetEIfUnset(k, value, idx, deleteIn)
	})
}

func (s *storeImpl) Delete(key string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	return s.write("Delete", key, false, func(k string, idx uint64) error {
		return s.db.Delete(k, idx)
	})
}

// write applies one write and, if snapshots are enabled, persists it. When the
// snapshot can't be written the previous entry is put back, a failed write is
// never visible. Entries that existed before a SetEIfUnset were not touched and
// are left alone.
func (s *storeImpl) write(op, key string, onlyIfUnset bool, apply func(key string, idx uint64) error) error {
	k := s.key(key)
	if s.snapshotPath == "" {
		return toStoreError(op, apply(k, s.incAndGetIndex()))
	}

	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()

	prev, existed, err := s.db.Get(k)
	if err != nil {
		return toStoreError(op, err)
	}
	if err := apply(k, s.incAndGetIndex()); err != nil {
		return toStoreError(op, err)
	}

	persistErr := s.writeSnapshot()
	if persistErr == nil || (onlyIfUnset && existed) {
		return persistErr
	}

	var restoreErr error
	if existed {
		restoreErr = s.db.Set(k, prev, s.incAndGetIndex())
	} else {
		restoreErr = s.db.Delete(k, s.incAndGetIndex())
	}
	if restoreErr != nil {
		log.Errorf("failed to roll back %s of %s after snapshot error: %v", op, key, restoreErr)
	}
	return persistErr
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok, err := s.db.Get(s.key(key))
	if err != nil {
		return nil, false, toStoreError("Get", err)
	}
	return val, ok, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
	}
	ok, err := s.db.Has(s.key(key))
	if err != nil {
		return false, toStoreError("Has", err)
	}
	return ok, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	persistErr := s.persist()
	if err := s.db.Close(); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("Close: %v", err))
	}
	return persistErr
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

// loadSnapshot restores the database from the snapshot file. A missing file is not an error.
func (s *storeImpl) loadSnapshot() error {
	f, err := os.Open(s.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Debugf("no snapshot at %s, starting empty", s.snapshotPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	if err := s.db.Load(f); err != nil {
		return fmt.Errorf("load snapshot %s: %w", s.snapshotPath, err)
	}
	log.Debugf("loaded snapshot %s (write index %d)", s.snapshotPath, s.db.WriteIdx())
	return nil
}

// persist writes the snapshot file if one is configured
func (s *storeImpl) persist() error {
	if s.snapshotPath == "" {
		return nil
	}
	s.snapshotMu.Lock()
	defer s.snapshotMu.Unlock()
	return s.writeSnapshot()
}

// writeSnapshot replaces the snapshot file atomically, a crash never leaves a half
// written snapshot behind. The caller holds snapshotMu.
func (s *storeImpl) writeSnapshot() error {
	dir := filepath.Dir(s.snapshotPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("create snapshot dir: %v", err))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.snapshotPath)+".tmp-*")
	if err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("create snapshot: %v", err))
	}
	tmpName := tmp.Name()

	if err := s.db.Save(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return store.NewError(store.RetCInternalError, fmt.Sprintf("write snapshot: %v", err))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return store.NewError(store.RetCInternalError, fmt.Sprintf("sync snapshot: %v", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return store.NewError(store.RetCInternalError, fmt.Sprintf("close snapshot: %v", err))
	}
	if err := os.Rename(tmpName, s.snapshotPath); err != nil {
		_ = os.Remove(tmpName)
		return store.NewError(store.RetCInternalError, fmt.Sprintf("replace snapshot: %v", err))
	}
	return nil
}
