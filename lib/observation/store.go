package observation

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/fieldlog/lib/lockmgr"
	"github.com/ValentinKolb/fieldlog/lib/species"
	"github.com/ValentinKolb/fieldlog/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("observation")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

const (
	DefaultKey          = "fish_bird_observations" // Storage key of the blob
	DefaultLockTimeout  = 100                      // Lock timeout in write operations
	DefaultLockAttempts = 20                       // Attempts to acquire the writer lock
	DefaultLockWait     = 25 * time.Millisecond    // Wait between two attempts
)

// Catalog resolves species ids, *species.Catalog implements it.
type Catalog interface {
	Lookup(id string) (species.Species, bool)
}

// Options configures a Store
type Options struct {
	// Key under which the whole collection is stored
	Key string
	// Catalog is used to count observations by type, nil disables the count
	Catalog Catalog
	// LockWrites makes every read-modify-write hold a lock in the medium,
	// which is needed if several processes write to one medium.
	LockWrites   bool
	LockTimeout  uint64
	LockAttempts int
	LockWait     time.Duration
	// Now is the clock used for createdAt (defaults to time.Now)
	Now func() time.Time
	// NewID generates observation ids (defaults to UUIDv7)
	NewID func() (string, error)
}

// DefaultOptions returns the default store options
func DefaultOptions() *Options {
	return &Options{
		Key:          DefaultKey,
		LockTimeout:  DefaultLockTimeout,
		LockAttempts: DefaultLockAttempts,
		LockWait:     DefaultLockWait,
		Now:          time.Now,
		NewID:        newUUID,
	}
}

func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store keeps all observations as one JSON array under a single key of the medium.
// Every mutation loads the whole collection, changes it and writes it back.
//
// Writes of one Store are serialized. Without LockWrites two processes writing to
// the same medium race and the last write wins.
type Store struct {
	medium  store.IStore
	key     string
	catalog Catalog

	locks        lockmgr.ILockManager
	lockKey      string
	lockTimeout  uint64
	lockAttempts int
	lockWait     time.Duration

	now   func() time.Time
	newID func() (string, error)

	mu          sync.Mutex
	lastCreated time.Time

	metrics *storeMetrics
}

// New creates a store on top of the given medium. opts may be nil.
func New(medium store.IStore, opts *Options) *Store {
	defaults := DefaultOptions()
	if opts == nil {
		opts = defaults
	}

	s := &Store{
		medium:       medium,
		key:          opts.Key,
		catalog:      opts.Catalog,
		lockTimeout:  opts.LockTimeout,
		lockAttempts: opts.LockAttempts,
		lockWait:     opts.LockWait,
		now:          opts.Now,
		newID:        opts.NewID,
		metrics:      newStoreMetrics(),
	}
	if s.key == "" {
		s.key = defaults.Key
	}
	if s.lockTimeout == 0 {
		s.lockTimeout = defaults.LockTimeout
	}
	if s.lockAttempts == 0 {
		s.lockAttempts = defaults.LockAttempts
	}
	if s.lockWait == 0 {
		s.lockWait = defaults.LockWait
	}
	if s.now == nil {
		s.now = defaults.Now
	}
	if s.newID == nil {
		s.newID = defaults.NewID
	}
	if opts.LockWrites {
		s.locks = lockmgr.NewLockManager(medium)
		s.lockKey = s.key + ".lock"
	}
	return s
}

// Key returns the storage key of the store
func (s *Store) Key() string {
	return s.key
}

// --------------------------------------------------------------------------
// Read path
// --------------------------------------------------------------------------

// load returns the persisted collection in stored order.
// A missing or undecodable blob is an empty collection.
func (s *Store) load() ([]Observation, error) {
	blob, ok, err := s.medium.Get(s.key)
	if err != nil {
		log.Errorf("failed to read %s: %v", s.key, err)
		return nil, storageError("read "+s.key, err)
	}
	if !ok {
		return nil, nil
	}

	observations, err := decode(blob)
	if err != nil {
		s.metrics.decodeFailures.Inc()
		log.Warningf("stored observations under %s can't be decoded, treating them as empty: %v", s.key, err)
		return nil, nil
	}
	return observations, nil
}

// List returns all observations, most recent date first.
// Ties are ordered by createdAt and then id, both descending.
func (s *Store) List() ([]Observation, error) {
	defer s.metrics.observe("list", time.Now())

	observations, err := s.load()
	if err != nil {
		return nil, err
	}
	if observations == nil {
		return []Observation{}, nil
	}
	slices.SortStableFunc(observations, compareObservations)
	return observations, nil
}

// BySpecies returns the observations of one species in List order
func (s *Store) BySpecies(speciesID string) ([]Observation, error) {
	observations, err := s.List()
	if err != nil {
		return nil, err
	}
	return filter(observations, func(o Observation) bool {
		return o.SpeciesID == speciesID
	}), nil
}

// ByDateRange returns the observations with start <= date <= end in List order.
// A date-only bound is compared with the calendar day of the stored date as written
// (the same day the month statistics use), a timestamp bound with the instant.
// If a bound can't be parsed the result is empty, observations with an unparseable
// date are never included.
func (s *Store) ByDateRange(start, end string) ([]Observation, error) {
	observations, err := s.List()
	if err != nil {
		return nil, err
	}

	from, fromDateOnly, okFrom := parseDate(start)
	to, toDateOnly, okTo := parseDate(end)
	if !okFrom || !okTo {
		log.Debugf("invalid date range %q..%q", start, end)
		return []Observation{}, nil
	}

	return filter(observations, func(o Observation) bool {
		d, _, ok := parseDate(o.Date)
		if !ok {
			return false
		}
		if fromDateOnly && calendarDay(d).Before(from) || !fromDateOnly && d.Before(from) {
			return false
		}
		if toDateOnly && calendarDay(d).After(to) || !toDateOnly && d.After(to) {
			return false
		}
		return true
	}), nil
}

func filter(observations []Observation, keep func(Observation) bool) []Observation {
	out := []Observation{}
	for _, o := range observations {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Write path
// --------------------------------------------------------------------------

// Add validates and stores a new observation and returns it.
// location and notes are optional, pass "" to omit them.
func (s *Store) Add(speciesID, date, location, notes string) (Observation, error) {
	defer s.metrics.observe("add", time.Now())

	if strings.TrimSpace(speciesID) == "" {
		return Observation{}, validationError("species id must not be empty")
	}
	if _, _, ok := parseDate(date); !ok {
		return Observation{}, validationError("date %q is neither YYYY-MM-DD nor RFC 3339", date)
	}

	id, err := s.newID()
	if err != nil {
		return Observation{}, &Error{Kind: ErrStorageUnavailable, Msg: "generate id", Err: err}
	}

	var created Observation
	err = s.withWriteLock(func() error {
		observations, err := s.load()
		if err != nil {
			return err
		}

		created = Observation{
			ID:        id,
			SpeciesID: speciesID,
			Date:      date,
			Location:  location,
			Notes:     notes,
			CreatedAt: s.createdAt(),
		}
		return s.save(append(observations, created))
	})
	if err != nil {
		return Observation{}, err
	}

	s.metrics.added.Inc()
	log.Debugf("added observation %s (%s on %s)", created.ID, created.SpeciesID, created.Date)
	return created, nil
}

// Delete removes the observation with the given id. Unknown ids are ignored.
func (s *Store) Delete(id string) error {
	defer s.metrics.observe("delete", time.Now())

	return s.withWriteLock(func() error {
		observations, err := s.load()
		if err != nil {
			return err
		}

		remaining := make([]Observation, 0, len(observations))
		for _, o := range observations {
			if o.ID != id {
				remaining = append(remaining, o)
			}
		}
		if len(remaining) == len(observations) {
			log.Debugf("observation %s not found, nothing to delete", id)
			return nil
		}

		if err := s.save(remaining); err != nil {
			return err
		}
		s.metrics.deleted.Add(len(observations) - len(remaining))
		log.Debugf("deleted observation %s", id)
		return nil
	})
}

// Clear removes the whole collection from the medium
func (s *Store) Clear() error {
	defer s.metrics.observe("clear", time.Now())

	return s.withWriteLock(func() error {
		if err := s.medium.Delete(s.key); err != nil {
			s.metrics.writeFailures.Inc()
			log.Errorf("failed to clear %s: %v", s.key, err)
			return storageError("clear "+s.key, err)
		}
		s.metrics.cleared.Inc()
		log.Debugf("cleared %s", s.key)
		return nil
	})
}

func (s *Store) save(observations []Observation) error {
	blob, err := encode(observations)
	if err != nil {
		return storageError("encode observations", err)
	}
	if err := s.medium.Set(s.key, blob); err != nil {
		s.metrics.writeFailures.Inc()
		log.Errorf("failed to write %s (%d bytes): %v", s.key, len(blob), err)
		return storageError("write "+s.key, err)
	}
	return nil
}

// createdAt returns the current time, never earlier than the last value it returned.
// Must be called with s.mu held.
func (s *Store) createdAt() string {
	now := s.now().UTC()
	if now.Before(s.lastCreated) {
		now = s.lastCreated
	}
	s.lastCreated = now
	return now.Format(time.RFC3339Nano)
}

// withWriteLock runs fn with the store mutex held and, if enabled, the writer lock in the medium.
func (s *Store) withWriteLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locks == nil {
		return fn()
	}

	owner, err := lockmgr.AcquireWithRetry(s.locks, s.lockKey, s.lockTimeout, s.lockAttempts, s.lockWait)
	if errors.Is(err, lockmgr.ErrLockBusy) {
		log.Warningf("writer lock %s is held by another writer", s.lockKey)
		return &Error{Kind: ErrBusy, Msg: "acquire " + s.lockKey, Err: err}
	}
	if err != nil {
		return storageError("acquire "+s.lockKey, err)
	}
	defer func() {
		if released, err := s.locks.ReleaseLock(s.lockKey, owner); err != nil || !released {
			log.Warningf("failed to release writer lock %s (released=%v): %v", s.lockKey, released, err)
		}
	}()

	return fn()
}
