package redis

import (
	"context"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"

	"mta/cache"
	C "mta/config"
)

var ErrorRedisNotInitialized = errors.New("redis not initialized")

// releaseLockScript deletes the key only when it still holds the caller's token.
var releaseLockScript = redis.NewScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func getConnection(ctx context.Context) (redis.Conn, error) {
	pool := C.GetCacheRedisPool()
	if pool == nil {
		return nil, ErrorRedisNotInitialized
	}
	return pool.GetContext(ctx)
}

// doWithContext caps the reply wait by the remaining ctx deadline. Without a
// deadline the read timeout of the pool's dialer applies.
func doWithContext(ctx context.Context, redisConn redis.Conn, cmd string, args ...interface{}) (interface{}, error) {
	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return redisConn.Do(cmd, args...)
	}

	timeout := time.Until(deadline)
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	reply, err := redis.DoWithTimeout(redisConn, timeout, cmd, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !time.Now().Before(deadline) {
			return nil, context.DeadlineExceeded
		}
	}
	return reply, err
}

// SetIfNotExists sets the value with expiry only when the key is absent.
// Returns false when the key already exists.
func SetIfNotExists(ctx context.Context, key *cache.Key, value string, expiry time.Duration) (bool, error) {
	cKey, err := key.Key()
	if err != nil {
		return false, err
	}
	if value == "" {
		return false, errors.New("empty cache key value")
	}

	redisConn, err := getConnection(ctx)
	if err != nil {
		return false, err
	}
	defer redisConn.Close()

	_, err = redis.String(doWithContext(ctx, redisConn, "SET", cKey, value, "NX", "PX", expiry.Milliseconds()))
	if err == redis.ErrNil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DelIfValue deletes the key only when it holds the given value.
func DelIfValue(ctx context.Context, key *cache.Key, value string) (bool, error) {
	cKey, err := key.Key()
	if err != nil {
		return false, err
	}

	redisConn, err := getConnection(ctx)
	if err != nil {
		return false, err
	}
	defer redisConn.Close()

	deleted, err := redis.Int(releaseLockScript.Do(redisConn, cKey, value))
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}
