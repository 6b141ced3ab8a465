package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"reservd/internal/model"
)

// CachedDB layers an optional Redis cache over shop lookups. Only the
// shop record (schedule configuration) is cached: reservations are
// never cached, so capacity grids are always rebuilt from the
// authoritative reservation set.
type CachedDB struct {
	*DB
	rdb    *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewCachedDB wraps db with a Redis shop cache.
func NewCachedDB(db *DB, rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *CachedDB {
	return &CachedDB{DB: db, rdb: rdb, ttl: ttl, logger: logger}
}

// GetShop reads through the cache.
func (c *CachedDB) GetShop(ctx context.Context, id string) (*model.Shop, error) {
	key := shopKey(id)

	var shop model.Shop
	if c.readCache(ctx, key, &shop) {
		return &shop, nil
	}

	loaded, err := c.DB.GetShop(ctx, id)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, loaded)
	return loaded, nil
}

// DeleteShop invalidates the cached record after deleting.
func (c *CachedDB) DeleteShop(ctx context.Context, id string) error {
	if err := c.DB.DeleteShop(ctx, id); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, shopKey(id)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("shop_id", id).Msg("invalidate shop cache")
	}
	return nil
}

func shopKey(id string) string {
	return "shop:" + id
}

func (c *CachedDB) readCache(ctx context.Context, key string, out any) bool {
	if c.rdb == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *CachedDB) writeCache(ctx context.Context, key string, v any) {
	if c.rdb == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("write shop cache")
	}
}
