package redis

import (
	"context"
	"sync"
	"time"

	"mta/cache"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
)

const (
	lockKeyPrefix = "lock"

	DefaultLockTTL           = time.Minute
	DefaultLockRetryInterval = 50 * time.Millisecond
)

// Locker distributed lock on redis, shared by all replicas computing attribution.
// The TTL bounds how long a crashed holder blocks other computes on the key and
// must outlast the longest compute, see attribution.GetComputeLockTTL.
type Locker struct {
	TTL           time.Duration
	RetryInterval time.Duration
}

func NewLocker(ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Locker{TTL: ttl, RetryInterval: DefaultLockRetryInterval}
}

// Lock waits till the key is acquired or ctx is done.
func (locker *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey, err := cache.NewKey(lockKeyPrefix, key)
	if err != nil {
		return nil, err
	}
	token := xid.New().String()

	for {
		acquired, err := SetIfNotExists(ctx, lockKey, token, locker.TTL)
		if err != nil {
			return nil, err
		}
		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(locker.RetryInterval):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Released even when the caller's ctx is done. Bounded by the dial timeouts.
			released, err := DelIfValue(context.Background(), lockKey, token)
			if err != nil || !released {
				log.WithFields(log.Fields{"key": key, "released": released}).WithError(err).
					Warn("Failed to release lock. Will expire after ttl.")
			}
		})
	}, nil
}
