package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency maps a buyer's Idempotency-Key to the order it produced.
// Keys are scoped per buyer so two buyers can reuse the same value.
type Idempotency struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotency(rdb *redis.Client, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = TTLIdempotency
	}
	return &Idempotency{rdb: rdb, ttl: ttl}
}

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Reserve claims the key with token. When it is already taken the current
// value is returned instead; an empty value means it expired in between.
func (i *Idempotency) Reserve(ctx context.Context, buyerID, key, token string) (string, bool, error) {
	k := IdemOrderPlaceKey(buyerID, key)
	ok, err := i.rdb.SetNX(ctx, k, token, i.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return token, true, nil
	}
	current, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return current, false, nil
}

// Remember binds the key to the placed order, replacing the reservation.
func (i *Idempotency) Remember(ctx context.Context, buyerID, key, orderID string) error {
	return i.rdb.Set(ctx, IdemOrderPlaceKey(buyerID, key), orderID, i.ttl).Err()
}

func (i *Idempotency) Release(ctx context.Context, buyerID, key, token string) error {
	return releaseScript.Run(ctx, i.rdb, []string{IdemOrderPlaceKey(buyerID, key)}, token).Err()
}
