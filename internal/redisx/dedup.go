package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dedup is a fast-path memory of handled deliveries. A Redis failure reads
// as "not seen", so the caller falls through to its own idempotent path.
type Dedup struct {
	RDB   *redis.Client
	Scope string
	Log   *zap.Logger
}

func (d *Dedup) key(id string) string { return fmt.Sprintf(KeyDedup, d.Scope, id) }

func (d *Dedup) Seen(ctx context.Context, id string) bool {
	ok, err := Exists(ctx, d.RDB, d.key(id))
	if err != nil && d.Log != nil {
		d.Log.Warn("dedup lookup failed", zap.String("key", d.key(id)), zap.Error(err))
	}
	return ok
}

func (d *Dedup) Mark(ctx context.Context, id string) {
	if err := d.RDB.SetNX(ctx, d.key(id), "1", TTLDedup).Err(); err != nil && d.Log != nil {
		d.Log.Warn("dedup mark failed", zap.String("key", d.key(id)), zap.Error(err))
	}
}
