package lockmgr

import (
	"bytes"

	"github.com/ValentinKolb/fieldlog/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// mediumLocks keeps every lock as one entry of the medium
type mediumLocks struct {
	medium store.IStore
}

// NewLockManager returns a lock manager storing its locks in medium
func NewLockManager(medium store.IStore) ILockManager {
	return &mediumLocks{medium: medium}
}

func (l *mediumLocks) AcquireLock(key string, timeout uint64) (bool, []byte, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	// SetEIfUnset is a no-op if the lock entry exists, reading it back tells who won
	if err := l.medium.SetEIfUnset(key, ownerID, timeout); err != nil {
		log.Errorf("failed to set lock %s: %v", key, err)
		return false, nil, err
	}
	holder, found, err := l.medium.Get(key)
	if err != nil {
		return false, nil, err
	}

	if !found || !bytes.Equal(holder, ownerID) {
		log.Debugf("lock %s is held by someone else", key)
		return false, nil, nil
	}
	return true, ownerID, nil
}

func (l *mediumLocks) ReleaseLock(key string, ownerID []byte) (bool, error) {
	holder, found, err := l.medium.Get(key)
	switch {
	case err != nil:
		return false, err
	case !found:
		return true, nil
	case !bytes.Equal(ownerID, holder):
		log.Warningf("not releasing lock %s, it has another owner", key)
		return false, nil
	}

	if err := l.medium.Delete(key); err != nil {
		return false, err
	}
	return true, nil
}
