package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock only while it still holds our token, so a
// holder whose TTL lapsed cannot release a lock someone else now owns.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock is a best-effort mutual exclusion across replicas.
type Lock struct {
	RDB *redis.Client
	Job string
	TTL time.Duration
}

// TryAcquire returns ok=false without waiting when another holder has the
// lock. release must be called when ok is true.
func (l *Lock) TryAcquire(ctx context.Context) (release func(context.Context), ok bool, err error) {
	key := fmt.Sprintf(KeyLock, l.Job)
	token := uuid.NewString()
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	ok, err = l.RDB.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func(ctx context.Context) {
		_ = unlockScript.Run(ctx, l.RDB, []string{key}, token).Err()
	}, true, nil
}
