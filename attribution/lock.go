package attribution

import (
	"context"
	"sync"
	"time"
)

// computeStoreCalls store calls of one compute: journey, model, touchpoints and results.
const computeStoreCalls = 4

// Locker serializes computes for a (journey, model) key. unlock must be
// called once the lock is acquired.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func GetComputeLockKey(journeyID, modelID string) string {
	return "attribution:compute:" + journeyID + ":" + modelID
}

// GetComputeLockTTL longest a compute can hold its lock under the options'
// timeouts, plus one call timeout to release it. Expiring locks must outlast it.
func GetComputeLockTTL(options Options) time.Duration {
	options = withDefaults(options)
	return time.Duration(computeStoreCalls+1)*options.CallTimeout + options.ProviderTimeout
}

type keyedLock struct {
	held chan struct{}
	refs int
}

// KeyedMutex in process Locker. Entries are removed once no caller holds or waits on a key.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (keyedMutex *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	keyedMutex.mu.Lock()
	lock, exists := keyedMutex.locks[key]
	if !exists {
		lock = &keyedLock{held: make(chan struct{}, 1)}
		keyedMutex.locks[key] = lock
	}
	lock.refs++
	keyedMutex.mu.Unlock()

	select {
	case lock.held <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lock.held
				keyedMutex.release(key, lock)
			})
		}, nil
	case <-ctx.Done():
		keyedMutex.release(key, lock)
		return nil, ctx.Err()
	}
}

func (keyedMutex *KeyedMutex) release(key string, lock *keyedLock) {
	keyedMutex.mu.Lock()
	defer keyedMutex.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(keyedMutex.locks, key)
	}
}

// size number of keys held or waited on.
func (keyedMutex *KeyedMutex) size() int {
	keyedMutex.mu.Lock()
	defer keyedMutex.mu.Unlock()
	return len(keyedMutex.locks)
}
