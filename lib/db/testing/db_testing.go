package testing

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/fieldlog/lib/db"
)

// DBFactory creates a new, empty instance of a KVDB implementation with the given capacity (0 = unbounded)
type DBFactory func(capacity int) db.KVDB

// RunKVDBTests runs the conformance test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(0))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(0))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory(0))
		})

		t.Run("SetEIfUnset", func(t *testing.T) {
			testSetEIfUnset(t, factory(0))
		})

		t.Run("WriteIdx", func(t *testing.T) {
			testWriteIdx(t, factory(0))
		})

		t.Run("Capacity", func(t *testing.T) {
			testCapacity(t, factory(64))
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(0))
		})

		t.Run("BlobRewrite", func(t *testing.T) {
			testBlobRewrite(t, factory(0))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// requireFeature skips the test if the database does not support the feature
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// mustSet fails the test if a Set returns an error
func mustSet(t testing.TB, database db.KVDB, key string, value []byte, idx uint64) {
	t.Helper()
	if err := database.Set(key, value, idx); err != nil {
		t.Fatalf("Unexpected error during Set(%q): %v", key, err)
	}
}

// mustGet fails the test if a Get returns an error
func mustGet(t testing.TB, database db.KVDB, key string) ([]byte, bool) {
	t.Helper()
	value, ok, err := database.Get(key)
	if err != nil {
		t.Fatalf("Unexpected error during Get(%q): %v", key, err)
	}
	return value, ok
}

// mustHas fails the test if a Has returns an error
func mustHas(t testing.TB, database db.KVDB, key string) bool {
	t.Helper()
	ok, err := database.Has(key)
	if err != nil {
		t.Fatalf("Unexpected error during Has(%q): %v", key, err)
	}
	return ok
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustSet(t, database, testKey, testValue1, 1)

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustSet(t, database, testKey, testValue2, 2)

	result, exists = mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists = mustGet(t, database, "nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := mustGet(t, database, testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := mustGet(t, database, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("mutable-input")
	mustSet(t, database, "mutable", input, 3)
	input[0] = 'X'
	if result, _ = mustGet(t, database, "mutable"); !bytes.Equal(result, []byte("mutable-input")) {
		t.Errorf("Set should store a copy of the value, got %s", result)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	testKey := "delete-test-key"
	mustSet(t, database, testKey, []byte("delete-test-value"), 1)

	if _, exists := mustGet(t, database, testKey); !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	if err := database.Delete(testKey, 2); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}

	if _, exists := mustGet(t, database, testKey); exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}
	if mustHas(t, database, testKey) {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	if err := database.Delete("nonexistent-key", 3); err != nil {
		t.Errorf("Deleting a missing key should not fail, got %v", err)
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas)

	if mustHas(t, database, "has-key") {
		t.Errorf("Expected Has to return false before Set")
	}

	mustSet(t, database, "has-key", []byte("value"), 1)

	if !mustHas(t, database, "has-key") {
		t.Errorf("Expected Has to return true after Set")
	}
}

func testSetEIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetEIfUnset|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value")
	testValue2 := []byte("test-value2")

	if err := database.SetEIfUnset(testKey, testValue1, 1, 10); err != nil {
		t.Fatalf("Unexpected error during SetEIfUnset: %v", err)
	}

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after SetEIfUnset", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	// second insert must not overwrite
	if err := database.SetEIfUnset(testKey, testValue2, 5, 20); err != nil {
		t.Fatalf("Unexpected error during SetEIfUnset: %v", err)
	}

	result, exists = mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after second SetEIfUnset", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.SetWriteIdx(11)
	if _, exists = mustGet(t, database, testKey); exists {
		t.Errorf("Expected key %s to not exist after the deletion time passed", testKey)
	}
	if mustHas(t, database, testKey) {
		t.Errorf("Expected Has to return false after the deletion time passed")
	}

	// the key is free again
	if err := database.SetEIfUnset(testKey, testValue2, 12, 0); err != nil {
		t.Fatalf("Unexpected error during SetEIfUnset: %v", err)
	}
	if result, _ = mustGet(t, database, testKey); !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s after re-insert, got %s", testValue2, result)
	}
}

func testWriteIdx(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)

	mustSet(t, database, "a", []byte("a"), 5)
	if idx := database.WriteIdx(); idx != 5 {
		t.Errorf("Expected write index 5, got %d", idx)
	}

	database.SetWriteIdx(3)
	if idx := database.WriteIdx(); idx != 5 {
		t.Errorf("Write index must not decrease, got %d", idx)
	}

	database.SetWriteIdx(9)
	if idx := database.WriteIdx(); idx != 9 {
		t.Errorf("Expected write index 9, got %d", idx)
	}
}

func testCapacity(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	// capacity is 64 bytes of keys plus values
	mustSet(t, database, "k1", bytes.Repeat([]byte("a"), 30), 1)

	err := database.Set("k2", bytes.Repeat([]byte("b"), 40), 2)
	if !errors.Is(err, db.ErrCapacityExceeded) {
		t.Fatalf("Expected ErrCapacityExceeded, got %v", err)
	}
	if _, exists := mustGet(t, database, "k2"); exists {
		t.Errorf("A rejected write must not be stored")
	}

	// replacing an entry only counts the difference
	mustSet(t, database, "k1", bytes.Repeat([]byte("c"), 60), 3)

	if err := database.Delete("k1", 4); err != nil {
		t.Fatalf("Unexpected error during Delete: %v", err)
	}
	mustSet(t, database, "k2", bytes.Repeat([]byte("b"), 40), 5)

	if info := database.GetInfo(); info.SizeBytes != db.EntrySize("k2", make([]byte, 40)) {
		t.Errorf("Expected size %d, got %d", db.EntrySize("k2", make([]byte, 40)), info.SizeBytes)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory(0)
	database2 := factory(0)

	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 500
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		mustSet(t, database, key, []byte(fmt.Sprintf("save-load-test-value-%d", i)), uint64(i+1))
	}
	if err := database.SetEIfUnset("gone", []byte("x"), uint64(numEntries), 1); err != nil {
		t.Fatalf("Unexpected error during SetEIfUnset: %v", err)
	}
	database.SetWriteIdx(uint64(numEntries + 1))

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		expected := []byte(fmt.Sprintf("save-load-test-value-%d", i))

		actual, exists := mustGet(t, database2, key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if !bytes.Equal(actual, expected) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expected, actual)
		}
	}

	if mustHas(t, database2, "gone") {
		t.Errorf("Deleted entries must not be part of a snapshot")
	}
	if database2.WriteIdx() < uint64(numEntries+1) {
		t.Errorf("Expected the write index to be restored, got %d", database2.WriteIdx())
	}

	if err := database2.Load(bytes.NewReader([]byte("garbage"))); err == nil {
		t.Errorf("Expected an error when loading garbage")
	}
	if _, exists := mustGet(t, database2, "save-load-test-key-0"); !exists {
		t.Errorf("A failed Load must leave the database unchanged")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	emptyKeyValue := []byte("value for empty key")
	mustSet(t, database, "", emptyKeyValue, 1)

	if result, exists := mustGet(t, database, ""); !exists {
		t.Errorf("Empty key not found after Set")
	} else if !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	mustSet(t, database, "nil-value-key", nil, 2)

	if result, exists := mustGet(t, database, "nil-value-key"); !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	unicodeKey := "fish_bird_observations/Ørret 🐟"
	mustSet(t, database, unicodeKey, []byte("ok"), 3)
	if _, exists := mustGet(t, database, unicodeKey); !exists {
		t.Errorf("Unicode key not found after Set")
	}

	largeValue := make([]byte, 1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	mustSet(t, database, "large-value-key", largeValue, 4)

	if result, exists := mustGet(t, database, "large-value-key"); !exists {
		t.Errorf("Key for large value not found after Set")
	} else if !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch (len %d, expected %d)", len(result), len(largeValue))
	}
}

// testBlobRewrite mimics how the observation store uses the database:
// one key whose value is replaced as a whole on every change.
func testBlobRewrite(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	key := "blob"
	var blob []byte
	for i := 0; i < 200; i++ {
		blob = append(blob, []byte(fmt.Sprintf("record-%d;", i))...)
		mustSet(t, database, key, blob, uint64(i+1))
	}

	result, exists := mustGet(t, database, key)
	if !exists {
		t.Fatalf("Expected blob to exist")
	}
	if !bytes.Equal(result, blob) {
		t.Errorf("Expected the last written blob, got %d bytes instead of %d", len(result), len(blob))
	}

	info := database.GetInfo()
	if info.Keys != 1 {
		t.Errorf("Expected 1 key, got %d", info.Keys)
	}
	if info.SizeBytes != db.EntrySize(key, blob) {
		t.Errorf("Expected size %d, got %d", db.EntrySize(key, blob), info.SizeBytes)
	}
}
