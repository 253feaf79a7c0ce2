package memdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/fieldlog/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum        = "FLOGMEM\x00"    // Snapshot format identifier
	readChunk       = 64 * 1024       // Initial buffer size when reading snapshot entries
	snapshotVersion = 1               // Snapshot format version
	DefaultCapacity = 5 * 1024 * 1024 // Default capacity in bytes (5 MiB)
)

// --------------------------------------------------------------------------
// Core structure
// --------------------------------------------------------------------------

// entry stores a value with its metadata
type entry struct {
	Value    []byte
	DeleteAt uint64 // write index at which the entry disappears (0 = never)
	Index    uint64 // write index of the last update
}

// deleted reports whether the entry is logically gone at the given write index
func (e entry) deleted(writeIdx uint64) bool {
	return e.DeleteAt != 0 && writeIdx >= e.DeleteAt
}

type memImpl struct {
	data      *xsync.MapOf[string, entry]
	capacity  int
	size      atomic.Int64
	currIndex atomic.Uint64

	// writeMu serializes writers so the capacity check and the update are atomic.
	// Readers never take it.
	writeMu sync.Mutex

	registry gometrics.Registry
	writes   gometrics.Counter
	deletes  gometrics.Counter
	rejected gometrics.Counter
}

// DBOptions configures the engine during initialization
type DBOptions struct {
	Capacity int // Capacity in bytes of keys plus values (0 = unbounded)
}

// DefaultOptions returns the default engine options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Capacity: DefaultCapacity,
	}
}

// NewMemDB creates a new in-memory database with the specified options (optional)
func NewMemDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}

	registry := gometrics.NewRegistry()
	return &memImpl{
		data:     xsync.NewMapOf[string, entry](),
		capacity: opts.Capacity,
		registry: registry,
		writes:   gometrics.NewRegisteredCounter("writes", registry),
		deletes:  gometrics.NewRegisteredCounter("deletes", registry),
		rejected: gometrics.NewRegisteredCounter("rejected_writes", registry),
	}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (m *memImpl) Set(key string, value []byte, writeIndex uint64) error {
	return m.put(key, value, writeIndex, 0, false)
}

func (m *memImpl) SetEIfUnset(key string, value []byte, writeIndex uint64, deleteIn uint64) error {
	return m.put(key, value, writeIndex, deleteIn, true)
}

// put is the shared implementation of Set and SetEIfUnset.
// It checks the capacity, copies the value and stores the entry.
func (m *memImpl) put(key string, value []byte, writeIndex, deleteIn uint64, onlyIfUnset bool) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.SetWriteIdx(writeIndex)
	now := m.currIndex.Load()

	// a logically deleted entry still occupies space until it is replaced
	old, present := m.data.Load(key)
	if present && onlyIfUnset && !old.deleted(now) {
		return nil
	}

	delta := db.EntrySize(key, value)
	if present {
		delta -= db.EntrySize(key, old.Value)
	}
	if m.capacity > 0 && delta > 0 && int(m.size.Load())+delta > m.capacity {
		m.rejected.Inc(1)
		return db.ErrCapacityExceeded
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	e := entry{Value: valueCopy, Index: writeIndex}
	if deleteIn > 0 {
		e.DeleteAt = writeIndex + deleteIn
	}

	m.data.Store(key, e)
	m.size.Add(int64(delta))
	m.writes.Inc(1)
	return nil
}

func (m *memImpl) Delete(key string, writeIndex uint64) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.SetWriteIdx(writeIndex)

	if old, loaded := m.data.LoadAndDelete(key); loaded {
		m.size.Add(-int64(db.EntrySize(key, old.Value)))
		m.deletes.Inc(1)
	}
	return nil
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (m *memImpl) Get(key string) ([]byte, bool, error) {
	e, ok := m.data.Load(key)
	if !ok || e.deleted(m.currIndex.Load()) {
		return nil, false, nil
	}

	data := make([]byte, len(e.Value))
	copy(data, e.Value)
	return data, true, nil
}

func (m *memImpl) Has(key string) (bool, error) {
	e, ok := m.data.Load(key)
	return ok && !e.deleted(m.currIndex.Load()), nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a binary snapshot of all live entries.
// Writers are blocked for the duration of the snapshot.
func (m *memImpl) Save(w io.Writer) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	bw := bufio.NewWriter(w)
	now := m.currIndex.Load()

	type keyed struct {
		key   string
		entry entry
	}
	var live []keyed
	m.data.Range(func(key string, e entry) bool {
		if !e.deleted(now) {
			live = append(live, keyed{key, e})
		}
		return true
	})

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, now); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(live))); err != nil {
		return err
	}

	for _, item := range live {
		if err := writeBytes(bw, []byte(item.key)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.DeleteAt); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, item.entry.Index); err != nil {
			return err
		}
		if err := writeBytes(bw, item.entry.Value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces the database content with a snapshot written by Save.
// On error the database is left unchanged.
func (m *memImpl) Load(r io.Reader) error {
	br := bufio.NewReader(r)

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != snapshotVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, snapshotVersion)
	}

	var writeIdx, count uint64
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return err
	}
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	data := xsync.NewMapOf[string, entry]()
	var size int64
	for i := uint64(0); i < count; i++ {
		key, err := readBytes(br, m.capacity)
		if err != nil {
			return err
		}
		var e entry
		if err := binary.Read(br, binary.LittleEndian, &e.DeleteAt); err != nil {
			return err
		}
		if err := binary.Read(br, binary.LittleEndian, &e.Index); err != nil {
			return err
		}
		if e.Value, err = readBytes(br, m.capacity); err != nil {
			return err
		}
		data.Store(string(key), e)
		size += int64(db.EntrySize(string(key), e.Value))
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	m.data.Clear()
	data.Range(func(key string, e entry) bool {
		m.data.Store(key, e)
		return true
	})
	m.size.Store(size)
	m.SetWriteIdx(writeIdx)
	return nil
}

// writeBytes writes a length-prefixed byte slice
func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readBytes reads a length-prefixed byte slice. A length above limit (if > 0) is
// rejected, and the buffer only grows with the bytes actually read, so a corrupt
// length can't allocate gigabytes.
func readBytes(r io.Reader, limit int) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if limit > 0 && int64(n) > int64(limit) {
		return nil, fmt.Errorf("corrupt snapshot: entry of %d bytes exceeds capacity of %d bytes", n, limit)
	}
	if n == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	buf.Grow(int(min(n, readChunk)))
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

func (m *memImpl) GetInfo() db.DatabaseInfo {
	meta := &struct {
		CurrentWriteIndex uint64                            `json:"current_write_index"`
		Counters          map[string]map[string]interface{} `json:"counters"`
	}{
		CurrentWriteIndex: m.currIndex.Load(),
		Counters:          m.registry.GetAll(),
	}

	return db.DatabaseInfo{
		SizeBytes:     int(m.size.Load()),
		CapacityBytes: m.capacity,
		Keys:          m.data.Size(),
		DbType:        db.ImplMemory,
		SupportedFeatures: []db.Feature{
			db.FeatureSet, db.FeatureSetEIfUnset,
			db.FeatureGet, db.FeatureHas, db.FeatureDelete,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

func (m *memImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeatureSet |
		db.FeatureSetEIfUnset |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureSave |
		db.FeatureLoad
	return supported&feature == feature
}

func (m *memImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index Management
// --------------------------------------------------------------------------

// SetWriteIdx only updates the index if the new one is greater than the current one.
func (m *memImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := m.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if m.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

func (m *memImpl) WriteIdx() uint64 {
	return m.currIndex.Load()
}
