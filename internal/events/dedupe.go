package events

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const dedupeKeyPrefix = "slack:event:"

// RedisDeduper records seen event ids in redis with a TTL. SET NX makes the
// first-delivery check atomic across replicas.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisDeduper builds a deduper; ttl <= 0 defaults to one hour, well past
// Slack's redelivery horizon.
func NewRedisDeduper(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisDeduper {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl, log: log}
}

// FirstDelivery claims an event id. On redis failure it fails open and
// reports first delivery: the check-in upsert is idempotent anyway, so a
// duplicate side effect is a repeated confirmation DM at worst.
func (d *RedisDeduper) FirstDelivery(ctx context.Context, eventID string) bool {
	ok, err := d.client.SetNX(ctx, dedupeKeyPrefix+eventID, 1, d.ttl).Result()
	if err != nil {
		d.log.Warn("event dedupe unavailable", zap.Error(err))
		return true
	}
	return ok
}
