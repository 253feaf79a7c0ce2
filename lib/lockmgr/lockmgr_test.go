package lockmgr

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/fieldlog/lib/db"
	"github.com/ValentinKolb/fieldlog/lib/db/engines/memdb"
	"github.com/ValentinKolb/fieldlog/lib/store"
	"github.com/ValentinKolb/fieldlog/lib/store/lstore"
)

func newStore() store.IStore {
	return lstore.NewLocalStore(func() (db.KVDB, error) {
		return memdb.NewMemDB(nil), nil
	})
}

func TestAcquireRelease(t *testing.T) {
	s := newStore()
	defer s.Close()
	lm := NewLockManager(s)

	ok, owner, err := lm.AcquireLock("res.lock", 0)
	if err != nil || !ok {
		t.Fatalf("Expected lock to be acquired, got ok=%v err=%v", ok, err)
	}
	if len(owner) != ownerIDLength {
		t.Errorf("Expected owner id of %d bytes, got %d", ownerIDLength, len(owner))
	}

	ok, _, err = lm.AcquireLock("res.lock", 0)
	if err != nil || ok {
		t.Errorf("Expected second acquire to fail, got ok=%v err=%v", ok, err)
	}

	if released, _ := lm.ReleaseLock("res.lock", []byte("not-the-owner")); released {
		t.Errorf("Expected release with a foreign owner id to fail")
	}

	released, err := lm.ReleaseLock("res.lock", owner)
	if err != nil || !released {
		t.Fatalf("Expected lock to be released, got released=%v err=%v", released, err)
	}

	// releasing a missing lock is fine
	if released, _ := lm.ReleaseLock("res.lock", owner); !released {
		t.Errorf("Expected release of a missing lock to succeed")
	}
}

func TestLockTimeout(t *testing.T) {
	s := newStore()
	defer s.Close()
	lm := NewLockManager(s)

	if ok, _, _ := lm.AcquireLock("res.lock", 2); !ok {
		t.Fatalf("Expected lock to be acquired")
	}

	// the failed attempt is a write, after it the lock has timed out
	if ok, _, _ := lm.AcquireLock("res.lock", 2); ok {
		t.Fatalf("Expected lock to be held")
	}
	if ok, _, _ := lm.AcquireLock("res.lock", 2); !ok {
		t.Errorf("Expected lock to be acquirable after its timeout")
	}
}

func TestAcquireWithRetry(t *testing.T) {
	s := newStore()
	defer s.Close()
	lm := NewLockManager(s)

	owner, err := AcquireWithRetry(lm, "res.lock", 0, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := AcquireWithRetry(lm, "res.lock", 0, 3, time.Millisecond); !errors.Is(err, ErrLockBusy) {
		t.Errorf("Expected ErrLockBusy, got %v", err)
	}

	if _, err := lm.ReleaseLock("res.lock", owner); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := AcquireWithRetry(lm, "res.lock", 0, 0, 0); err != nil {
		t.Errorf("Expected acquire after release to succeed, got %v", err)
	}
}
