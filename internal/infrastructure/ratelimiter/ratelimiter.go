package ratelimiter

import (
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	bucketKeyPrefix  = "rl:bucket:"
	defaultSourceKey = "X-Forwarded-For"
)

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
}

// RateLimiter is a token bucket per source key.
type RateLimiter struct {
	maxRatePerMillisecond float64
	maxBurst              int64
	cache                 Store
	cacheTTL              time.Duration
	sourceHeaderKey       string
	trustSourceHeader     bool
	now                   func() time.Time
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            Store
	CacheTTL         time.Duration
	SourceHeaderKey  string
	// TrustSourceHeader keys buckets on SourceHeaderKey. Only enable it
	// behind a proxy that overwrites the header.
	TrustSourceHeader bool
}

func New(options Options) *RateLimiter {
	if options.Cache == nil {
		options.Cache = NewInMemory()
	}

	if options.CacheTTL == 0 {
		options.CacheTTL = 10 * time.Second
	}

	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}

	if options.SourceHeaderKey == "" {
		options.SourceHeaderKey = defaultSourceKey
	}

	return &RateLimiter{
		maxRatePerMillisecond: float64(options.MaxRatePerSecond) / 1000.0,
		maxBurst:              int64(options.MaxBurst),
		cache:                 options.Cache,
		cacheTTL:              options.CacheTTL,
		sourceHeaderKey:       options.SourceHeaderKey,
		trustSourceHeader:     options.TrustSourceHeader,
		now:                   time.Now,
	}
}

// refill adds whole tokens for the elapsed time. lastFill only advances by
// the time those tokens represent, so partial progress is not lost.
func (rl *RateLimiter) refill(state Bucket, found bool, now int64) Bucket {
	if !found {
		return Bucket{Tokens: rl.maxBurst, LastFill: now}
	}

	elapsed := now - state.LastFill
	if elapsed <= 0 || rl.maxRatePerMillisecond <= 0 {
		return state
	}

	added := int64(float64(elapsed) * rl.maxRatePerMillisecond)
	if added <= 0 {
		return state
	}

	tokens := state.Tokens + added
	if tokens >= rl.maxBurst {
		return Bucket{Tokens: rl.maxBurst, LastFill: now}
	}

	return Bucket{
		Tokens:   tokens,
		LastFill: state.LastFill + int64(float64(added)/rl.maxRatePerMillisecond),
	}
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	now := rl.now().UnixMilli()
	next, err := rl.cache.Update(bucketKeyPrefix+sourceKey, rl.cacheTTL, func(current Bucket, found bool) Bucket {
		return rl.refill(current, found, now)
	})
	if err != nil {
		return int(rl.maxBurst)
	}

	return int(next.Tokens)
}

func (rl *RateLimiter) GetMaxBurst() int {
	return int(rl.maxBurst)
}

// Allow takes one token. A failing store admits the request.
func (rl *RateLimiter) Allow(sourceKey string) bool {
	now := rl.now().UnixMilli()

	var allowed bool
	_, err := rl.cache.Update(bucketKeyPrefix+sourceKey, rl.cacheTTL, func(current Bucket, found bool) Bucket {
		next := rl.refill(current, found, now)
		allowed = next.Tokens > 0
		if allowed {
			next.Tokens--
		}
		return next
	})
	if err != nil {
		return true
	}

	return allowed
}

// GetSourceKey keys on the client address. The configured header is used
// only when it is trusted; for X-Forwarded-For the first hop is taken.
func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if rl.trustSourceHeader {
		if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
			first, _, _ := strings.Cut(key, ",")
			return strings.TrimSpace(first)
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (rl *RateLimiter) Close() error {
	return rl.cache.Close()
}
