package lockmgr

import (
	"crypto/rand"
	"errors"
	"time"
)

const (
	ownerIDLength = 32 // 256 bit
)

// ErrLockBusy is returned by AcquireWithRetry if the lock is still held by someone else
// after all attempts.
var ErrLockBusy = errors.New("lock is held by another owner")

// generateOwnerID creates a new unique owner ID
// The owner ID is a random byte slice of 256 bit.
func generateOwnerID() ([]byte, error) {
	randomBytes := make([]byte, ownerIDLength)
	_, err := rand.Read(randomBytes)
	return randomBytes, err
}

// AcquireWithRetry tries to acquire the lock up to attempts times, sleeping wait
// between attempts. It returns the owner ID needed for ReleaseLock or ErrLockBusy.
func AcquireWithRetry(lm ILockManager, key string, timeout uint64, attempts int, wait time.Duration) ([]byte, error) {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		ok, ownerID, err := lm.AcquireLock(key, timeout)
		if err != nil {
			return nil, err
		}
		if ok {
			return ownerID, nil
		}
		if i < attempts-1 {
			time.Sleep(wait)
		}
	}
	return nil, ErrLockBusy
}
