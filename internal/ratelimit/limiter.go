package ratelimit

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

// Tier names the time window that rejected a request.
type Tier string

const (
	TierSecond Tier = "second"
	TierMinute Tier = "minute"
	TierHour   Tier = "hour"
)

// LimitError reports which tier ran out of tokens.
type LimitError struct {
	Origin string
	Method string
	Tier   Tier
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s %s: per-%s limit", e.Origin, e.Method, e.Tier)
}

const (
	bucketIdleTTL = 2 * time.Hour
	sweepInterval = 10 * time.Minute
)

// bucket tracks tokens for one (origin, method) key across the three tiers.
// A request is admitted only when every tier holds at least one token, and
// consumes one token from each.
type bucket struct {
	second     float64
	minute     float64
	hour       float64
	lastRefill time.Time
	lastUsed   time.Time
	cfg        Config
}

func newBucket(cfg Config, now time.Time) *bucket {
	return &bucket{
		second:     cfg.Burst,
		minute:     cfg.PerMinute,
		hour:       cfg.PerHour,
		lastRefill: now,
		lastUsed:   now,
		cfg:        cfg,
	}
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.second = math.Min(b.second+elapsed*b.cfg.PerSecond, b.cfg.Burst)
	b.minute = math.Min(b.minute+(elapsed/60)*b.cfg.PerMinute, b.cfg.PerMinute)
	b.hour = math.Min(b.hour+(elapsed/3600)*b.cfg.PerHour, b.cfg.PerHour)
	b.lastRefill = now
}

// tryConsume admits the request only if all three tiers hold a token and
// then decrements all three. A rejection consumes nothing and names the
// most restrictive tier that failed.
func (b *bucket) tryConsume(now time.Time) (Tier, bool) {
	b.refill(now)
	b.lastUsed = now
	if b.second < 1 {
		return TierSecond, false
	}
	if b.minute < 1 {
		return TierMinute, false
	}
	if b.hour < 1 {
		return TierHour, false
	}
	b.second--
	b.minute--
	b.hour--
	return "", true
}

// Limiter applies per-(origin, method) admission control. Buckets are created
// lazily and evicted after two hours of inactivity.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	methods   *MethodConfigs
	logger    *log.Logger
	lastSweep time.Time

	now func() time.Time // test hook
}

func New(methods *MethodConfigs, logger *log.Logger) *Limiter {
	if methods == nil {
		methods = DefaultMethodConfigs()
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		methods: methods,
		logger:  logger,
		now:     time.Now,
	}
}

// CheckAndConsume admits or rejects one call for (origin, method). The
// check-then-consume sequence runs under the limiter lock, so concurrent
// callers on the same key cannot double-spend the last token.
func (l *Limiter) CheckAndConsume(origin, method string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	key := origin + ":" + method
	b, ok := l.buckets[key]
	if !ok {
		b = newBucket(l.methods.For(method), now)
		l.buckets[key] = b
	}

	if tier, ok := b.tryConsume(now); !ok {
		l.logf("limit exceeded: origin=%s method=%s tier=%s", origin, method, tier)
		return &LimitError{Origin: origin, Method: method, Tier: tier}
	}
	return nil
}

// Reset drops the bucket for one key, restoring its full burst.
func (l *Limiter) Reset(origin, method string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, origin+":"+method)
}

func (l *Limiter) sweepLocked(now time.Time) {
	if l.lastSweep.IsZero() {
		l.lastSweep = now
		return
	}
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastUsed) > bucketIdleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *Limiter) logf(format string, args ...any) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}
