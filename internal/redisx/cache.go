package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type CachedStatus struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusCache is a read-through copy of order status. Redis errors are
// logged and treated as a miss; postgres stays the source of truth.
type StatusCache struct {
	RDB *redis.Client
	Log *zap.Logger
}

func (c *StatusCache) Get(ctx context.Context, orderID string) (CachedStatus, bool) {
	raw, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("status cache get", err)
		}
		return CachedStatus{}, false
	}
	var s CachedStatus
	if err := json.Unmarshal(raw, &s); err != nil || s.Status == "" {
		return CachedStatus{}, false
	}
	return s, true
}

func (c *StatusCache) Set(ctx context.Context, orderID string, s CachedStatus) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.RDB.Set(ctx, fmt.Sprintf(KeyOrderStatus, orderID), b, TTLStatusCache).Err(); err != nil {
		c.warn("status cache set", err)
	}
}

func (c *StatusCache) Forget(ctx context.Context, orderID string) {
	if err := c.RDB.Del(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Err(); err != nil {
		c.warn("status cache forget", err)
	}
}

func (c *StatusCache) warn(op string, err error) {
	if c.Log != nil {
		c.Log.Warn(op, zap.Error(err))
	}
}
