package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const updatePrefix = "tg:update:"

// UpdateDeduper remembers Telegram update ids so that redeliveries of an
// already accepted update are skipped.
type UpdateDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewUpdateDeduper(client *redis.Client, ttl time.Duration) *UpdateDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &UpdateDeduper{client: client, ttl: ttl}
}

// FirstSeen reports true the first time updateID is offered within ttl.
func (d *UpdateDeduper) FirstSeen(ctx context.Context, updateID int64) (bool, error) {
	return d.client.SetNX(ctx, updatePrefix+strconv.FormatInt(updateID, 10), 1, d.ttl).Result()
}
