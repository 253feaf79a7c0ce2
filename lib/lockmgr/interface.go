package lockmgr

// ILockManager hands out named locks stored in an IStore. A lock is an entry under
// its key whose value is the owner id.
type ILockManager interface {
	// AcquireLock takes the lock for key. The lock disappears by itself after timeout
	// write operations on the store (0 = never). ok is false if someone else holds it;
	// ownerID is needed to release the lock.
	AcquireLock(key string, timeout uint64) (ok bool, ownerID []byte, err error)

	// ReleaseLock gives the lock back if ownerID still owns it. A lock that no
	// longer exists counts as released.
	ReleaseLock(key string, ownerID []byte) (ok bool, err error)
}
