package ratelimiter

import (
	"errors"
	"time"
)

var ErrContended = errors.New("bucket update kept conflicting")

// Bucket is the stored token-bucket state of one source key.
type Bucket struct {
	Tokens   int64
	LastFill int64 // unix millis
}

// UpdateFunc computes the next state. found is false for a new or expired key.
// It may run more than once for a single Update.
type UpdateFunc func(current Bucket, found bool) Bucket

// Store keeps buckets. Update applies fn atomically with respect to every
// other Update of the same key, across processes when the store is shared.
type Store interface {
	Update(key string, ttl time.Duration, fn UpdateFunc) (Bucket, error)
	Close() error
}
