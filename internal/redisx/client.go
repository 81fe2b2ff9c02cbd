package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Dedup is a best-effort processed-id memory. Redis errors read as "not seen"
// so a redis outage never blocks processing.
type Dedup struct {
	Redis *redis.Client
	TTL   time.Duration
}

func (d *Dedup) Seen(ctx context.Context, scope, id string) bool {
	if d == nil || d.Redis == nil {
		return false
	}
	ok, err := Exists(ctx, d.Redis, fmt.Sprintf(KeyDedup, scope, id))
	if err != nil {
		log.Printf("redis dedup check failed scope=%s id=%s err=%v", scope, id, err)
		return false
	}
	return ok
}

func (d *Dedup) Mark(ctx context.Context, scope, id string) {
	if d == nil || d.Redis == nil {
		return
	}
	ttl := d.TTL
	if ttl == 0 {
		ttl = TTLDedup
	}
	if err := d.Redis.Set(ctx, fmt.Sprintf(KeyDedup, scope, id), "1", ttl).Err(); err != nil {
		log.Printf("redis dedup mark failed scope=%s id=%s err=%v", scope, id, err)
	}
}

// Cache stores JSON snapshots under a key template.
type Cache struct {
	Redis *redis.Client
	Key   string
	TTL   time.Duration
}

// Get decodes the snapshot for id into out. A miss or any redis error
// returns false.
func (c *Cache) Get(ctx context.Context, id string, out any) bool {
	if c == nil || c.Redis == nil {
		return false
	}
	b, err := c.Redis.Get(ctx, fmt.Sprintf(c.Key, id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("redis cache get failed key=%s err=%v", fmt.Sprintf(c.Key, id), err)
		}
		return false
	}
	return json.Unmarshal(b, out) == nil
}

func (c *Cache) Set(ctx context.Context, id string, v any) {
	if c == nil || c.Redis == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.Redis.Set(ctx, fmt.Sprintf(c.Key, id), b, c.TTL).Err(); err != nil {
		log.Printf("redis cache set failed key=%s err=%v", fmt.Sprintf(c.Key, id), err)
	}
}
