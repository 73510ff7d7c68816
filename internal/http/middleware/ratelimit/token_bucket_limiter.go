package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Config stores TokenBucketLimiter settings.
type Config struct {
	Rate       float64       // tokens per second
	Burst      int           // capacity (max tokens)
	TTL        time.Duration // idle buckets older than TTL are dropped, 0 keeps them forever
	MaxBuckets int           // 0 means unbounded
}

const minSweepInterval = time.Minute

// TokenBucketLimiter keeps one token bucket per key (a courier or a client IP).
type TokenBucketLimiter struct {
	cfg   Config
	clock Clock

	mu        sync.Mutex
	buckets   map[string]*bucket
	nextSweep time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucketLimiter creates limiter with explicit config and injected clock.
func NewTokenBucketLimiter(clock Clock, cfg Config) *TokenBucketLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	cfg.Rate = math.Max(cfg.Rate, 1)
	cfg.Burst = max(cfg.Burst, 1)
	cfg.MaxBuckets = max(cfg.MaxBuckets, 0)
	return &TokenBucketLimiter{
		cfg:     cfg,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// NewLimiter returns a per-key token bucket or a NopLimiter when limiting is disabled.
func NewLimiter(enabled bool, clock Clock, cfg Config) Limiter {
	if !enabled {
		return NopLimiter{}
	}
	return NewTokenBucketLimiter(clock, cfg)
}

// Len returns the number of live buckets.
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Allow takes one token from the key's bucket. A new key is denied while the table is full of live buckets.
func (l *TokenBucketLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.TTL > 0 && !now.Before(l.nextSweep) {
		l.sweep(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		if l.full() && l.cfg.TTL > 0 {
			// под давлением чистим раньше срока
			l.sweep(now)
		}
		if l.full() {
			return false
		}
		b = &bucket{tokens: float64(l.cfg.Burst), last: now}
		l.buckets[key] = b
	}
	return b.take(now, l.cfg.Rate, float64(l.cfg.Burst))
}

func (l *TokenBucketLimiter) full() bool {
	return l.cfg.MaxBuckets > 0 && len(l.buckets) >= l.cfg.MaxBuckets
}

// sweep must be called with l.mu held.
func (l *TokenBucketLimiter) sweep(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.last) > l.cfg.TTL {
			delete(l.buckets, k)
		}
	}
	l.nextSweep = now.Add(max(l.cfg.TTL/2, minSweepInterval))
}

func (b *bucket) take(now time.Time, rate, burst float64) bool {
	if dt := now.Sub(b.last); dt > 0 {
		b.tokens = math.Min(burst, b.tokens+dt.Seconds()*rate)
	}
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
