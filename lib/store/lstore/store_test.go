package lstore

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/fieldlog/lib/db"
	"github.com/ValentinKolb/fieldlog/lib/db/engines/memdb"
	"github.com/ValentinKolb/fieldlog/lib/db/engines/sqlitedb"
	"github.com/ValentinKolb/fieldlog/lib/store"
)

func memFactory(capacity int) store.DBFactory {
	return func() (db.KVDB, error) {
		return memdb.NewMemDB(&memdb.DBOptions{Capacity: capacity}), nil
	}
}

func TestSetGetDelete(t *testing.T) {
	s := NewLocalStore(memFactory(0))
	defer s.Close()

	if _, ok, err := s.Get("key"); err != nil || ok {
		t.Errorf("Expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := s.Set("key", []byte("value")); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}
	value, ok, err := s.Get("key")
	if err != nil || !ok {
		t.Fatalf("Expected key to exist, got ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(value, []byte("value")) {
		t.Errorf("Expected value %q, got %q", "value", value)
	}

	if err := s.Delete("key"); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}
	if ok, _ := s.Has("key"); ok {
		t.Errorf("Expected key to be gone after Delete")
	}
	if err := s.Delete("key"); err != nil {
		t.Errorf("Deleting a missing key should not fail, got %v", err)
	}
}

func TestOriginIsolation(t *testing.T) {
	shared := memdb.NewMemDB(nil)
	factory := func() (db.KVDB, error) { return shared, nil }

	a, err := Open(factory, &Options{Origin: "a.example"})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	b, err := Open(factory, &Options{Origin: "b.example"})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	if err := a.Set("observations", []byte("from-a")); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}
	if ok, _ := b.Has("observations"); ok {
		t.Errorf("Expected origin b not to see keys of origin a")
	}

	if err := b.Set("observations", []byte("from-b")); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}
	if value, _, _ := a.Get("observations"); string(value) != "from-a" {
		t.Errorf("Expected origin a to keep %q, got %q", "from-a", value)
	}
}

func TestInvalidOrigin(t *testing.T) {
	if _, err := Open(memFactory(0), &Options{Origin: "a/b"}); err == nil {
		t.Errorf("Expected an error for an origin containing '/'")
	}
}

func TestCapacityExceeded(t *testing.T) {
	s := NewLocalStore(memFactory(32))
	defer s.Close()

	err := s.Set("key", bytes.Repeat([]byte("x"), 64))
	if !store.IsCode(err, store.RetCCapacityExceeded) {
		t.Fatalf("Expected RetCCapacityExceeded, got %v", err)
	}
	if ok, _ := s.Has("key"); ok {
		t.Errorf("A refused write must not be stored")
	}
}

func TestSetEIfUnsetDeletion(t *testing.T) {
	s := NewLocalStore(memFactory(0))
	defer s.Close()

	if err := s.SetEIfUnset("lock", []byte("owner-1"), 2); err != nil {
		t.Fatalf("Unexpected error during SetEIfUnset: %v", err)
	}
	if err := s.SetEIfUnset("lock", []byte("owner-2"), 2); err != nil {
		t.Fatalf("Unexpected error during SetEIfUnset: %v", err)
	}
	if value, _, _ := s.Get("lock"); string(value) != "owner-1" {
		t.Errorf("Expected first owner to keep the key, got %q", value)
	}

	// every write advances the index, the next one reaches the deletion index
	_ = s.Set("other", []byte("x"))
	if ok, _ := s.Has("lock"); ok {
		t.Errorf("Expected key to be deleted after its deletion time")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap", "local.snapshot")
	opts := &Options{Origin: "local", SnapshotPath: path}

	s, err := Open(memFactory(0), opts)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	if err := s.Set("key", []byte("value")); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	// the snapshot is written on every write, not only on Close
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected snapshot to exist after a write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}

	reopened, err := Open(memFactory(0), opts)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get("key")
	if err != nil || !ok {
		t.Fatalf("Expected key after reopen, got ok=%v err=%v", ok, err)
	}
	if string(value) != "value" {
		t.Errorf("Expected value %q, got %q", "value", value)
	}

	// no temp files are left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected only the snapshot file, got %d entries", len(entries))
	}
}

func TestCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.snapshot")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(memFactory(0), &Options{SnapshotPath: path}); err == nil {
		t.Errorf("Expected an error for a corrupt snapshot")
	}
}

func TestSharedSQLiteIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldlog.db")
	factory := func() (db.KVDB, error) {
		return sqlitedb.NewSQLiteDB(sqlitedb.DefaultOptions(path))
	}

	first, err := Open(factory, nil)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer first.Close()
	second, err := Open(factory, nil)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer second.Close()

	for i := 0; i < 3; i++ {
		if err := first.Set("key", []byte("first")); err != nil {
			t.Fatalf("Unexpected error during Set: %v", err)
		}
	}
	if err := second.Set("key", []byte("second")); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	info, _ := second.GetDBInfo()
	if info.DbType != db.ImplSQLite {
		t.Errorf("Expected %s, got %s", db.ImplSQLite, info.DbType)
	}
	if value, _, _ := first.Get("key"); string(value) != "second" {
		t.Errorf("Expected last writer to win, got %q", value)
	}
	if idx := second.(*storeImpl).index.Load(); idx != 4 {
		t.Errorf("Expected second store to continue at write index 4, got %d", idx)
	}
}

func TestFailedSnapshotRollsBackWrite(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := Open(memFactory(0), &Options{SnapshotPath: filepath.Join(dir, "local.snapshot")})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	if err := s.Set("kept", []byte("v1")); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	// a regular file where the snapshot directory should be makes every snapshot fail
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dir, []byte("not a directory"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := s.Set("new", []byte("v")); err == nil {
		t.Errorf("Expected Set to fail when the snapshot can't be written")
	}
	if ok, _ := s.Has("new"); ok {
		t.Errorf("Expected the failed Set to be rolled back")
	}

	if err := s.Set("kept", []byte("v2")); err == nil {
		t.Errorf("Expected overwrite to fail when the snapshot can't be written")
	}
	if value, _, _ := s.Get("kept"); string(value) != "v1" {
		t.Errorf("Expected previous value %q after failed overwrite, got %q", "v1", value)
	}

	if err := s.Delete("kept"); err == nil {
		t.Errorf("Expected Delete to fail when the snapshot can't be written")
	}
	if ok, _ := s.Has("kept"); !ok {
		t.Errorf("Expected the failed Delete to be rolled back")
	}

	if err := s.SetEIfUnset("lock", []byte("owner"), 10); err == nil {
		t.Errorf("Expected SetEIfUnset to fail when the snapshot can't be written")
	}
	if ok, _ := s.Has("lock"); ok {
		t.Errorf("Expected the failed SetEIfUnset to be rolled back")
	}

	// once the directory is back, writes succeed again
	if err := os.Remove(dir); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("new", []byte("v")); err != nil {
		t.Errorf("Unexpected error after the directory was restored: %v", err)
	}
}
