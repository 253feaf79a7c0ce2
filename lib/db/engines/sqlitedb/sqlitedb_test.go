package sqlitedb

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/fieldlog/lib/db"
	dbtesting "github.com/ValentinKolb/fieldlog/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "SQLiteDB", func(capacity int) db.KVDB {
		database, err := NewSQLiteDB(&DBOptions{
			Path:     filepath.Join(t.TempDir(), "fieldlog.db"),
			Capacity: capacity,
		})
		if err != nil {
			t.Fatalf("Failed to open database: %v", err)
		}
		return database
	})
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "SQLiteDB", func(capacity int) db.KVDB {
		database, err := NewSQLiteDB(&DBOptions{
			Path:     filepath.Join(b.TempDir(), "fieldlog.db"),
			Capacity: capacity,
		})
		if err != nil {
			b.Fatalf("Failed to open database: %v", err)
		}
		return database
	})
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fieldlog.db")

	database, err := NewSQLiteDB(DefaultOptions(path))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := database.Set("key", []byte("value"), 7); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}

	database, err = NewSQLiteDB(DefaultOptions(path))
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer database.Close()

	value, ok, err := database.Get("key")
	if err != nil || !ok {
		t.Fatalf("Expected key to exist after reopen, got ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(value, []byte("value")) {
		t.Errorf("Expected value %q, got %q", "value", value)
	}
	if idx := database.WriteIdx(); idx != 7 {
		t.Errorf("Expected write index 7 after reopen, got %d", idx)
	}
}

func TestSharedFileSeesOtherWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldlog.db")

	first, err := NewSQLiteDB(DefaultOptions(path))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer first.Close()
	second, err := NewSQLiteDB(DefaultOptions(path))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer second.Close()

	if err := first.Set("key", []byte("from-first"), 3); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	if idx := second.WriteIdx(); idx != 3 {
		t.Errorf("Expected second handle to see write index 3, got %d", idx)
	}
	if value, ok, _ := second.Get("key"); !ok || string(value) != "from-first" {
		t.Errorf("Expected second handle to read %q, got %q (ok=%v)", "from-first", value, ok)
	}
}

func TestMissingPath(t *testing.T) {
	if _, err := NewSQLiteDB(&DBOptions{}); err == nil {
		t.Errorf("Expected an error for an empty path")
	}
}
