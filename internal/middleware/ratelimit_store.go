package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimitDecision is the outcome of one Hit.
type RateLimitDecision struct {
	Allowed   bool
	Count     int       // requests recorded in the current window
	Remaining int       // requests left before the limit
	ResetAt   time.Time // when the oldest recorded request leaves the window
}

// RateLimitStore records requests in a sliding log per key. Rejected
// requests are not recorded, so a client that keeps hammering is let back
// in as soon as its oldest accepted request slides out of the window.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (RateLimitDecision, error)
}

// MemoryStore keeps the log in process memory. It is correct only when a
// single process serves all traffic (dev, tests).
type MemoryStore struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	calls  int
	window time.Duration
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{hits: make(map[string][]time.Time)} }

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, limit int, window time.Duration) (RateLimitDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window = window
	if s.calls++; s.calls%1024 == 0 {
		s.sweep(now)
	}

	log := prune(s.hits[key], now.Add(-window))
	d := RateLimitDecision{}
	if len(log) < limit {
		log = append(log, now)
		d.Allowed = true
	}
	s.hits[key] = log
	d.Count = len(log)
	d.Remaining = max(0, limit-len(log))
	d.ResetAt = now.Add(window)
	if len(log) > 0 {
		d.ResetAt = log[0].Add(window)
	}
	return d, nil
}

// sweep drops keys whose whole log has left the window.
func (s *MemoryStore) sweep(now time.Time) {
	cutoff := now.Add(-s.window)
	for k, log := range s.hits {
		if log = prune(log, cutoff); len(log) == 0 {
			delete(s.hits, k)
		} else {
			s.hits[k] = log
		}
	}
}

// prune drops entries at or before cutoff. log is sorted.
func prune(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	return log[i:]
}

// slidingWindowScript keeps one sorted-set member per accepted request,
// scored by its time in milliseconds.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now_ms - window_ms)
	local count = redis.call('ZCARD', key)
	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now_ms, member)
		count = count + 1
		allowed = 1
	end

	local reset_ms = now_ms + window_ms
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if oldest[2] ~= nil then
		reset_ms = tonumber(oldest[2]) + window_ms
	end
	redis.call('PEXPIRE', key, window_ms)

	return { allowed, count, reset_ms }
`)

// RedisStore shares the log between processes through Redis.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Hit(ctx context.Context, key string, now time.Time, limit int, window time.Duration) (RateLimitDecision, error) {
	vals, err := slidingWindowScript.Run(ctx, s.rdb, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString()).Result()
	if err != nil {
		return RateLimitDecision{}, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return RateLimitDecision{}, fmt.Errorf("ratelimit: unexpected script result %#v", vals)
	}
	count := int(asInt64(arr[1]))
	return RateLimitDecision{
		Allowed:   asInt64(arr[0]) == 1,
		Count:     count,
		Remaining: max(0, limit-count),
		ResetAt:   time.UnixMilli(asInt64(arr[2])),
	}, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
