package memdb

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ValentinKolb/fieldlog/lib/db"
	dbtesting "github.com/ValentinKolb/fieldlog/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MemDB", func(capacity int) db.KVDB {
		return NewMemDB(&DBOptions{Capacity: capacity})
	})
}

func Benchmark(t *testing.B) {
	dbtesting.RunKVDBBenchmarks(t, "MemDB", func(capacity int) db.KVDB {
		return NewMemDB(&DBOptions{Capacity: capacity})
	})
}

func TestDeletedEntryStillCountsAgainstCapacity(t *testing.T) {
	database := NewMemDB(&DBOptions{Capacity: 20})
	defer database.Close()

	if err := database.SetEIfUnset("a", []byte("0123456789"), 1, 1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	database.SetWriteIdx(2)

	if ok, _ := database.Has("a"); ok {
		t.Errorf("Expected key a to be logically deleted")
	}
	if info := database.GetInfo(); info.SizeBytes != 11 {
		t.Errorf("Expected size 11, got %d", info.SizeBytes)
	}

	// overwriting frees the old space
	if err := database.Set("a", []byte("0123456789012345678"), 3); err != nil {
		t.Errorf("Expected overwrite of a deleted entry to fit, got %v", err)
	}
}

func TestDefaultOptions(t *testing.T) {
	database := NewMemDB(nil)
	defer database.Close()

	info := database.GetInfo()
	if info.CapacityBytes != DefaultCapacity {
		t.Errorf("Expected capacity %d, got %d", DefaultCapacity, info.CapacityBytes)
	}
	if info.DbType != db.ImplMemory {
		t.Errorf("Expected type %s, got %s", db.ImplMemory, info.DbType)
	}
}

// corruptSnapshot returns a snapshot header with one entry whose key claims length n
func corruptSnapshot(n uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString(magicNum)
	buf.WriteByte(snapshotVersion)
	_ = binary.Write(&buf, binary.LittleEndian, uint64(7)) // write index
	_ = binary.Write(&buf, binary.LittleEndian, uint64(1)) // entries
	_ = binary.Write(&buf, binary.LittleEndian, n)
	buf.WriteString("short")
	return buf.Bytes()
}

func TestLoadRejectsOversizedEntry(t *testing.T) {
	database := NewMemDB(&DBOptions{Capacity: 1024})
	if err := database.Set("kept", []byte("value"), 1); err != nil {
		t.Fatalf("Unexpected error during Set: %v", err)
	}

	if err := database.Load(bytes.NewReader(corruptSnapshot(0xFFFFFFF0))); err == nil {
		t.Fatalf("Expected an error for an entry larger than the capacity")
	}
	// a failed load leaves the database untouched
	if value, ok, _ := database.Get("kept"); !ok || string(value) != "value" {
		t.Errorf("Expected the previous entry to survive, got %q (ok=%v)", value, ok)
	}

	unbounded := NewMemDB(&DBOptions{Capacity: 0})
	if err := unbounded.Load(bytes.NewReader(corruptSnapshot(0xFFFFFFF0))); err == nil {
		t.Errorf("Expected an error for a truncated entry")
	}
}
