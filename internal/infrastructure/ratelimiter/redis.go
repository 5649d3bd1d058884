package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisOpTimeout = 250 * time.Millisecond
	maxTxRetries   = 5

	tokensField = "tokens"
	fillField   = "fill"
)

// Redis shares bucket state between replicas. Each bucket is one hash
// updated inside a WATCH/MULTI transaction.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Update(key string, ttl time.Duration, fn UpdateFunc) (Bucket, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	var next Bucket
	txf := func(tx *redis.Tx) error {
		values, err := tx.HMGet(ctx, key, tokensField, fillField).Result()
		if err != nil {
			return err
		}

		current, found, err := parseBucket(values)
		if err != nil {
			return err
		}
		next = fn(current, found)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, tokensField, next.Tokens, fillField, next.LastFill)
			if ttl > 0 {
				pipe.PExpire(ctx, key, ttl)
			}
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return next, err
	}

	return Bucket{}, ErrContended
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// parseBucket reads an HMGET reply. A missing field means a new bucket.
func parseBucket(values []any) (Bucket, bool, error) {
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return Bucket{}, false, nil
	}

	tokens, err := parseField(values[0])
	if err != nil {
		return Bucket{}, false, err
	}
	fill, err := parseField(values[1])
	if err != nil {
		return Bucket{}, false, err
	}

	return Bucket{Tokens: tokens, LastFill: fill}, true, nil
}

func parseField(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected bucket field type %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}
